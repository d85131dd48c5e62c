package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/akrisanov/canvas-mcp/internal/canvas"
	"github.com/akrisanov/canvas-mcp/internal/config"
	"github.com/akrisanov/canvas-mcp/internal/logging"
	"github.com/akrisanov/canvas-mcp/internal/mcp"
	"github.com/akrisanov/canvas-mcp/internal/search"
	"github.com/akrisanov/canvas-mcp/internal/tools"
)

// Flag variables. Empty values leave the loaded configuration alone.
var (
	flagTransport string
	flagHTTPAddr  string
	flagLogLevel  string
)

var rootCmd = &cobra.Command{
	Use:   "canvas-mcp",
	Short: "MCP server for Canvas LMS courses and assignments",
	Long: `canvas-mcp exposes your Canvas LMS courses and assignments to MCP clients.

Without a subcommand it serves MCP over stdio, or over streamable HTTP when
MCP_TRANSPORT=http or --transport http is given. Configuration comes from the
environment, an optional .env file, and the YAML file named by CANVAS_MCP_CONFIG.`,
	SilenceUsage: true,
	Args:         cobra.NoArgs,
	RunE:         runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error (overrides LOG_LEVEL)")
	rootCmd.Flags().StringVar(&flagTransport, "transport", "", "MCP transport: stdio or http (overrides MCP_TRANSPORT)")
	rootCmd.Flags().StringVar(&flagHTTPAddr, "http-addr", "", "Listen address for the HTTP transport (overrides MCP_HTTP_ADDR)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := logging.New(cfg.LogLevel, os.Stderr)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := mcp.NewServer(cfg, newService(cfg, logger), logger)
	switch cfg.Transport {
	case "http", "streamable-http":
		logger.Info("starting MCP HTTP transport", "addr", cfg.HTTPAddr, "path", cfg.HTTPPath)
		err = server.RunHTTP(ctx)
	default:
		logger.Info("starting MCP stdio transport")
		err = server.Run(ctx)
	}
	if err != nil {
		return fmt.Errorf("server stopped: %w", err)
	}
	return nil
}

// loadConfig applies command-line flags on top of config.Load.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, fmt.Errorf("config: %w", err)
	}
	if flagTransport != "" {
		transport := strings.ToLower(strings.TrimSpace(flagTransport))
		switch transport {
		case "stdio", "http", "streamable-http":
			cfg.Transport = transport
		default:
			return config.Config{}, fmt.Errorf("--transport must be stdio or http, got %q", flagTransport)
		}
	}
	if flagHTTPAddr != "" {
		cfg.HTTPAddr = flagHTTPAddr
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	return cfg, nil
}

func newService(cfg config.Config, logger *slog.Logger) *tools.Service {
	client := canvas.NewClient(cfg, logger)
	searcher := search.NewSearcher(client, search.Options{
		PageSize:    cfg.PageSize,
		Concurrency: cfg.MaxConcurrency,
		BucketHints: cfg.BucketHints,
		Logger:      logger,
	})
	return tools.NewService(client, searcher, logger)
}
