package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/hass-mcp/internal/audit"
	"github.com/rickgao/hass-mcp/internal/automation"
	"github.com/rickgao/hass-mcp/internal/config"
	"github.com/rickgao/hass-mcp/internal/connection"
	"github.com/rickgao/hass-mcp/internal/database"
	"github.com/rickgao/hass-mcp/internal/logging"
	"github.com/rickgao/hass-mcp/internal/mcp"
	"github.com/rickgao/hass-mcp/internal/tool"
	"github.com/rickgao/hass-mcp/internal/version"
)

func main() {
	flags := pflag.NewFlagSet("hass-mcp", pflag.ExitOnError)
	configPath := flags.StringP("config", "c", "", "path to config file (default: HASS_* environment variables)")
	addr := flags.String("addr", "", "listen address, overrides server.addr")
	showVersion := flags.BoolP("version", "v", false, "print version and exit")
	_ = flags.Parse(os.Args[1:])

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hass-mcp: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	logger, err := logging.New(cfg.Logging, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hass-mcp: %v\n", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("hass-mcp exited with error", "error", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.FromEnv()
	}
	return config.LoadAndValidate(path)
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("starting hass-mcp",
		"version", version.Version,
		"commit", version.Commit,
		"host", cfg.HomeAssistant.Host,
		"addr", cfg.Server.Addr,
	)

	connCfg, err := connection.FromConfig(cfg.HomeAssistant)
	if err != nil {
		return err
	}
	conn := connection.NewConnection(connCfg, logger)
	supervisor := connection.NewSupervisor(conn, connection.SupervisorConfigFrom(cfg.HomeAssistant), logger)

	registry, err := tool.NewRegistry(
		tool.NewAutomationTool(automation.NewService(conn, logger), logger),
	)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	var recorder audit.Recorder = audit.NopRecorder{}
	if cfg.Audit.Enabled {
		db := cfg.Audit.Database
		logger.Info("connecting to audit database", "host", db.Host, "port", db.Port, "database", db.Name)

		pool, err := database.Connect(ctx, db)
		if err != nil {
			return fmt.Errorf("connect audit database: %w", err)
		}
		defer pool.Close()

		if err := audit.EnsureSchema(ctx, pool); err != nil {
			return err
		}

		writer := audit.NewWriter(audit.WriterConfig{
			BatchSize:     cfg.Audit.BatchSize,
			FlushInterval: cfg.Audit.FlushInterval,
		}, pool, logger)
		recorder = writer
		g.Go(func() error { return writer.Run(ctx) })
	}

	server := mcp.NewServer(mcp.Config{
		Addr:            cfg.Server.Addr,
		RateLimit:       cfg.Server.RateLimit,
		RateBurst:       cfg.Server.RateBurst,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, registry, conn, recorder, logger)

	g.Go(func() error { return supervisor.Run(ctx) })
	g.Go(func() error { return server.Run(ctx) })

	err = g.Wait()
	logger.Info("hass-mcp stopped", "reconnects", supervisor.Stats().Reconnects)
	return err
}
