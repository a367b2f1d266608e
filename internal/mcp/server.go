package mcp

import (
	"io"
	"log/slog"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/flowscribe/internal/pipeline"
)

// Version is reported to MCP clients during initialization.
const Version = "0.1.0"

// Config contains server configuration.
type Config struct {
	Studio        *pipeline.Studio
	Activity      ActivityService
	Resolver      TokenResolver
	AuthEnabled   bool
	TransportMode string // "stdio" or "http"
	RecentActions int
	Logger        *slog.Logger
}

// NewServer creates and configures an MCP server with all tools and middleware.
func NewServer(cfg Config) *sdkmcp.Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	server := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "flowscribe",
		Version: Version,
	}, &sdkmcp.ServerOptions{
		Instructions: serverInstructions,
		Logger:       logger,
	})

	registerDocResources(server)

	// Middleware added later runs first, so auth wraps traffic logging.
	server.AddReceivingMiddleware(trafficLoggingMiddleware(logger, "inbound"))
	server.AddSendingMiddleware(trafficLoggingMiddleware(logger, "outbound"))
	// Stdio is local only; HTTP checks bearer tokens when enabled.
	if cfg.TransportMode != "stdio" && cfg.AuthEnabled {
		server.AddReceivingMiddleware(authMiddleware(cfg.Resolver))
	} else {
		server.AddReceivingMiddleware(localMiddleware("local"))
	}

	registerTools(server, NewHandler(cfg.Studio, cfg.Activity, cfg.RecentActions, logger))

	return server
}
