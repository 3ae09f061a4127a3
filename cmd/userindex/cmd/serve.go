package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/userindex/internal/config"
	"github.com/Aman-CERP/userindex/internal/daemon"
	apperrors "github.com/Aman-CERP/userindex/internal/errors"
	"github.com/Aman-CERP/userindex/internal/logging"
	"github.com/Aman-CERP/userindex/internal/mcp"
	"github.com/Aman-CERP/userindex/internal/source"
	"github.com/Aman-CERP/userindex/internal/telemetry"
	"github.com/Aman-CERP/userindex/internal/watcher"
)

func newServeCmd() *cobra.Command {
	var (
		transport   string
		metricsAddr string
		noLoad      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the daemon, MCP server and metrics endpoint",
		Long: `Start serving lookups and searches.

Transports:
  daemon  JSON-RPC over the Unix socket used by the other CLI commands
  stdio   MCP server on stdin/stdout for AI assistants
  both    daemon and MCP together

With ingestion.load_on_start the source is loaded once at boot. With
ingestion.watch and a file:// source, edits to the file trigger a reload.`,
		Example: `  # Daemon for the CLI
  userindex serve

  # MCP server for an assistant, plus Prometheus metrics
  userindex serve --transport stdio --metrics-addr 127.0.0.1:9464`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if transport != "" {
				cfg.Server.Transport = transport
			}
			if metricsAddr != "" {
				cfg.Server.MetricsAddr = metricsAddr
			}
			if noLoad {
				cfg.Ingestion.LoadOnStart = false
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "", "daemon, stdio or both (default from config)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	cmd.Flags().BoolVar(&noLoad, "no-load", false, "Skip the ingestion run at startup")

	return cmd
}

// runServe blocks until SIGINT/SIGTERM, or until stdin closes when MCP is
// the only transport.
func runServe(ctx context.Context, cfg *config.Config) error {
	transport := strings.ToLower(cfg.Server.Transport)
	withDaemon := transport == "daemon" || transport == "both"
	withMCP := transport == "stdio" || transport == "both"

	dcfg := daemon.DefaultConfig().WithSocketPath(cfg.Server.SocketPath)
	if withDaemon && daemon.NewClient(dcfg).IsRunning() {
		return fmt.Errorf("cannot start daemon: %w (socket %s)", daemon.ErrAlreadyRunning, dcfg.SocketPath)
	}

	// stdout belongs to the MCP stream; keep logs off the terminal.
	logCfg := logging.DefaultConfig()
	if withMCP {
		logCfg = logging.StdioConfig(cfg.Server.LogLevel)
	}
	logCfg.Level = cfg.Server.LogLevel
	if debugMode {
		logCfg.Level = "debug"
	}
	if err := installLogger(logCfg); err != nil {
		return err
	}

	if err := dcfg.EnsureDir(); err != nil {
		return err
	}
	pid := daemon.NewPIDFile(dcfg.PIDPath)
	if withDaemon {
		if err := pid.Acquire(); err != nil {
			return fmt.Errorf("cannot start daemon: %w", err)
		}
		defer func() { _ = pid.Remove() }()
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	svc := daemon.NewService(a.engine, a.runner)
	g, gctx := errgroup.WithContext(ctx)

	if withDaemon {
		srv, err := daemon.NewServer(dcfg)
		if err != nil {
			return err
		}
		srv.SetHandler(svc)
		g.Go(func() error { return srv.ListenAndServe(gctx) })
	}

	if withMCP {
		ms, err := mcp.NewServer(svc)
		if err != nil {
			return err
		}
		ms.SetMetrics(a.queries)
		g.Go(func() error {
			err := ms.Serve(gctx, "stdio")
			if !withDaemon {
				cancel()
			}
			return err
		})
	}

	if cfg.Server.MetricsAddr != "" {
		g.Go(func() error { return telemetry.NewServer(cfg.Server.MetricsAddr, a.metrics).Run(gctx) })
	}

	if cfg.Ingestion.LoadOnStart {
		g.Go(func() error {
			runIngestion(gctx, a, "startup")
			return nil
		})
	}

	if cfg.Ingestion.Watch {
		w, err := sourceWatcher(cfg)
		if err != nil {
			slog.Warn("watch_disabled", slog.String("reason", err.Error()))
		} else {
			svc.SetWatching(w.Active)
			g.Go(func() error {
				return w.Run(gctx, func(ctx context.Context, ev watcher.FileEvent) {
					runIngestion(ctx, a, "watch:"+strings.ToLower(ev.Operation.String()))
				})
			})
		}
	}

	slog.Info("serve_started",
		slog.String("transport", transport),
		slog.String("socket", dcfg.SocketPath),
		slog.String("source", a.source.Location()),
		slog.Int("pid", os.Getpid()))

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	slog.Info("serve_stopped")
	return err
}

// runIngestion runs one ingestion in the background and only logs the
// outcome; a failed run leaves the previous generation serving.
func runIngestion(ctx context.Context, a *app, trigger string) {
	res, err := a.runner.Run(ctx, nil)
	if err != nil {
		slog.Error("ingest_failed", slog.String("trigger", trigger), apperrors.LogAttr(err))
		return
	}
	slog.Info("ingest_triggered_completed",
		slog.String("trigger", trigger),
		slog.Int("loaded", res.Loaded),
		slog.Int("skipped", res.Skipped))
}

// sourceWatcher returns a watcher for a file:// source.
func sourceWatcher(cfg *config.Config) (*watcher.SourceWatcher, error) {
	u, err := url.Parse(cfg.Source.URL)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "file" {
		return nil, fmt.Errorf("ingestion.watch needs a file:// source, got %s", u.Scheme)
	}
	return watcher.New(source.FilePath(u), watcher.Options{DebounceWindow: cfg.Ingestion.WatchDebounce})
}
