package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/rpggio/flowscribe/internal/app"
	"github.com/rpggio/flowscribe/internal/config"
	"github.com/rpggio/flowscribe/internal/domain/flow"
	"github.com/rpggio/flowscribe/internal/domain/script"
	"github.com/rpggio/flowscribe/internal/ingest"
	"github.com/rpggio/flowscribe/internal/mcp"
	"github.com/rpggio/flowscribe/internal/pipeline"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(cfg config.Config, logger *slog.Logger, stdout io.Writer) *cli.App {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	a := &cli.App{
		Name:    "flowscribe",
		Usage:   "Turn recorded device interactions into UI test scripts",
		Version: Version,
		Writer:  stdout,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "db", Usage: "SQLite database path (overrides FLOWSCRIBE_DB_PATH)"},
		},
		Commands: []*cli.Command{
			replayCmd(cfg, logger, stdout),
			watchCmd(cfg, logger, stdout),
			flowsCmd(cfg, logger, stdout),
			languagesCmd(cfg, stdout),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	a.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return a
}

func languageFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Value: "scripts", Usage: "Directory the scripts are written to"},
		&cli.StringSliceFlag{Name: "lang", Aliases: []string{"l"}, Usage: "Target language (repeatable); defaults to the configured set"},
		&cli.BoolFlag{Name: "validate", Usage: "Validate each script after synthesis"},
	}
}

// replayCmd creates the replay command.
func replayCmd(cfg config.Config, logger *slog.Logger, stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "replay",
		Usage:     "Record a JSON Lines file of device events and write the synthesized scripts",
		ArgsUsage: "<events.jsonl>",
		Flags: append([]cli.Flag{
			&cli.StringFlag{Name: "flow", Aliases: []string{"f"}, Value: "recorded", Usage: "Flow for events that name none"},
		}, languageFlags()...),
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("replay needs exactly one events file", 2)
			}
			langs, err := parseLanguages(c.StringSlice("lang"))
			if err != nil {
				return outputError(err)
			}

			decoder, err := ingest.NewDecoder()
			if err != nil {
				return outputError(err)
			}
			f, err := os.Open(c.Args().First())
			if err != nil {
				return outputError(err)
			}
			defer f.Close()
			events, err := decoder.ReadAll(f)
			if err != nil {
				return outputError(err)
			}

			a, err := openApp(c, cfg, logger)
			if err != nil {
				return outputError(err)
			}
			defer a.Close()

			results := []flowResult{}
			for _, batch := range ingest.GroupByFlow(events, c.String("flow")) {
				inputs, err := ingest.Inputs(batch.Events)
				if err != nil {
					return outputError(fmt.Errorf("flow %s: %w", batch.Flow, err))
				}
				recorded, err := a.Studio.Capture(c.Context, batch.Flow, inputs)
				if err != nil {
					return outputError(fmt.Errorf("flow %s: %w", batch.Flow, err))
				}
				res, err := emit(c.Context, a.Studio, recorded, langs, c.String("out"), c.Bool("validate"))
				if err != nil {
					return outputError(err)
				}
				results = append(results, res)
			}
			return outputJSON(stdout, results)
		},
	}
}

// watchCmd creates the watch command.
func watchCmd(cfg config.Config, logger *slog.Logger, stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "Record events appended to a JSON Lines file until interrupted, then write the scripts",
		ArgsUsage: "<events.jsonl>",
		Flags: append([]cli.Flag{
			&cli.StringFlag{Name: "flow", Aliases: []string{"f"}, Required: true, Usage: "Flow being recorded"},
			&cli.DurationFlag{Name: "for", Usage: "Stop recording after this long; zero waits for an interrupt"},
		}, languageFlags()...),
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("watch needs exactly one events file", 2)
			}
			langs, err := parseLanguages(c.StringSlice("lang"))
			if err != nil {
				return outputError(err)
			}
			a, err := openApp(c, cfg, logger)
			if err != nil {
				return outputError(err)
			}
			defer a.Close()

			decoder, err := ingest.NewDecoder()
			if err != nil {
				return outputError(err)
			}
			tailer, err := ingest.NewTailer(c.Args().First(), decoder, logger)
			if err != nil {
				return outputError(err)
			}
			if err := tailer.Start(); err != nil {
				return outputError(err)
			}

			info, err := a.Studio.StartRecording(c.Context, c.String("flow"))
			if err != nil {
				if stopErr := tailer.Stop(); stopErr != nil {
					logger.Warn("stopping event feed", "error", stopErr)
				}
				return outputError(err)
			}
			logger.Info("recording", "flow_id", info.FlowID, "session_id", info.ID)

			ctx := c.Context
			if d := c.Duration("for"); d > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, d)
				defer cancel()
			}
			recordErr := record(ctx, a.Studio, info.ID, tailer, logger)
			if err := tailer.Stop(); err != nil {
				logger.Warn("stopping event feed", "error", err)
			}

			// The recording is stopped even when the caller's context has ended.
			stopCtx, cancel := context.WithTimeout(context.WithoutCancel(c.Context), 30*time.Second)
			defer cancel()
			recorded, err := a.Studio.StopRecording(stopCtx, info.ID)
			if err != nil {
				return outputError(errors.Join(recordErr, err))
			}
			if recordErr != nil {
				return outputError(recordErr)
			}
			res, err := emit(stopCtx, a.Studio, recorded, langs, c.String("out"), c.Bool("validate"))
			if err != nil {
				return outputError(err)
			}
			return outputJSON(stdout, []flowResult{res})
		},
	}
}

// record appends tailed events to the session until ctx ends or the feed closes.
func record(ctx context.Context, studio *pipeline.Studio, sessionID string, tailer *ingest.Tailer, logger *slog.Logger) error {
	feed, errs := tailer.Events(), tailer.Errors()
	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-feed:
			if !ok {
				return nil
			}
			in, err := ingest.ToInput(evt)
			if err != nil {
				logger.Warn("skipping event", "error", err)
				continue
			}
			rec, err := studio.Record(ctx, sessionID, in)
			if err != nil {
				return err
			}
			logger.Info("action recorded", "action_id", rec.ID, "kind", rec.Kind())
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logger.Warn("event feed error", "error", err)
		}
	}
}

// flowsCmd creates the flows command.
func flowsCmd(cfg config.Config, logger *slog.Logger, stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "flows",
		Usage: "List the flow catalog",
		Action: func(c *cli.Context) error {
			a, err := openApp(c, cfg, logger)
			if err != nil {
				return outputError(err)
			}
			defer a.Close()

			flows, err := a.Studio.Flows().List(c.Context)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(stdout, flows)
		},
	}
}

// languagesCmd creates the languages command.
func languagesCmd(cfg config.Config, stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "languages",
		Usage: "List supported and enabled target languages",
		Action: func(c *cli.Context) error {
			enabled, err := cfg.Languages()
			if err != nil {
				return outputError(err)
			}
			type language struct {
				Name      script.Language `json:"name"`
				Extension string          `json:"extension"`
				Enabled   bool            `json:"enabled"`
			}
			out := make([]language, 0, len(script.SupportedLanguages))
			for _, lang := range script.SupportedLanguages {
				out = append(out, language{
					Name:      lang,
					Extension: lang.Extension(),
					Enabled:   len(enabled) == 0 || contains(enabled, lang),
				})
			}
			return outputJSON(stdout, out)
		},
	}
}

type scriptResult struct {
	ScriptID    string                 `json:"script_id"`
	Language    script.Language        `json:"language"`
	Path        string                 `json:"path"`
	Validation  script.ValidationState `json:"validation"`
	DeviceReady bool                   `json:"device_ready"`
	Failure     *script.Failure        `json:"failure,omitempty"`
}

type flowResult struct {
	Flow       string            `json:"flow"`
	Confidence int               `json:"confidence"`
	Usable     bool              `json:"usable"`
	Actions    int               `json:"actions"`
	Scripts    []scriptResult    `json:"scripts"`
	Failures   map[string]string `json:"failures,omitempty"`
}

// emit synthesizes a classified flow, optionally validates each script and
// writes the sources under dir.
func emit(ctx context.Context, studio *pipeline.Studio, f *flow.Flow, langs []script.Language, dir string, validate bool) (flowResult, error) {
	res := flowResult{
		Flow:       f.ID,
		Confidence: f.Confidence,
		Usable:     f.Confidence >= flow.UsabilityThreshold,
		Actions:    len(f.Actions),
		Scripts:    []scriptResult{},
	}
	out, err := studio.Synthesize(ctx, f.ID, langs)
	if err != nil {
		return res, fmt.Errorf("flow %s: %w", f.ID, err)
	}
	for lang, ferr := range out.Failures {
		if res.Failures == nil {
			res.Failures = make(map[string]string)
		}
		res.Failures[string(lang)] = ferr.Error()
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return res, err
	}
	for _, artifact := range out.Artifacts {
		if validate {
			validated, err := studio.Validate(ctx, artifact.ID)
			if err != nil {
				return res, fmt.Errorf("validating %s: %w", artifact.ID, err)
			}
			artifact = validated
		}
		path := filepath.Join(dir, script.FileName(artifact))
		if err := os.WriteFile(path, []byte(artifact.SourceCode), 0o644); err != nil {
			return res, err
		}
		res.Scripts = append(res.Scripts, scriptResult{
			ScriptID:    artifact.ID,
			Language:    artifact.Language,
			Path:        path,
			Validation:  artifact.Validation,
			DeviceReady: artifact.DeviceReady,
			Failure:     artifact.Failure,
		})
	}
	return res, nil
}

func openApp(c *cli.Context, cfg config.Config, logger *slog.Logger) (*app.App, error) {
	if path := c.String("db"); path != "" {
		cfg.DB.Path = path
	}
	return app.Open(c.Context, cfg, logger)
}

func parseLanguages(names []string) ([]script.Language, error) {
	out := make([]script.Language, 0, len(names))
	for _, name := range names {
		lang, err := script.ParseLanguage(name)
		if err != nil {
			return nil, err
		}
		out = append(out, lang)
	}
	return out, nil
}

func contains(langs []script.Language, lang script.Language) bool {
	for _, l := range langs {
		if l == lang {
			return true
		}
	}
	return false
}

// Helper functions

// outputJSON writes v to w as indented JSON.
func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if apiErr := mcp.MapError(err); apiErr != nil && apiErr.Code != "INTERNAL" {
		return cli.Exit(fmt.Sprintf("[%s] %s", apiErr.Code, apiErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}
