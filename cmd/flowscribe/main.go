// Command flowscribe records device interaction logs into flows and writes
// the synthesized test scripts to disk.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rpggio/flowscribe/internal/app"
	"github.com/rpggio/flowscribe/internal/config"
)

// Version is the flowscribe CLI version.
var Version = "0.1.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	// Logs go to stderr so stdout carries only the JSON results.
	logger, closeLog, err := app.NewLogger(os.Stderr, cfg.Log.Level, cfg.Log.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "log file error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = newCLIApp(cfg, logger, os.Stdout).RunContext(ctx, os.Args)
	stop()
	closeLog()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
