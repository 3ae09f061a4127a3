package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/userindex/internal/config"
	"github.com/Aman-CERP/userindex/internal/daemon"
	"github.com/Aman-CERP/userindex/internal/output"
	"github.com/Aman-CERP/userindex/internal/ui"
)

func newLoadCmd() *cobra.Command {
	var (
		plain   bool
		noColor bool
		local   bool
	)

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Fetch users from the source and replace the local copy",
		Long: `Run one ingestion: fetch the source document (retrying transient
failures), map every record to a user, then replace the store and rebuild
the search index in one step. Records that cannot be mapped are skipped
and reported.

When a daemon is running the load happens inside it, so its caches and
index switch to the new generation. Otherwise the load runs in this
process against the configured store.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if !local {
				client := daemonClient(cfg)
				if client.IsRunning() {
					return runRemoteLoad(cmd, client)
				}
			}
			return runLocalLoad(cmd, cfg, plain, noColor)
		},
	}

	cmd.Flags().BoolVar(&plain, "plain", false, "Plain text progress (no TUI)")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colors")
	cmd.Flags().BoolVar(&local, "local", false, "Load in this process even if a daemon is running")

	return cmd
}

func runRemoteLoad(cmd *cobra.Command, client *daemon.Client) error {
	out := output.New(cmd.OutOrStdout())
	out.Status("⏳", "Loading through the running daemon...")

	res, err := client.Ingest(cmd.Context())
	if err != nil {
		return err
	}
	out.Successf("Loaded %d users from %s in %s", res.Loaded, res.Source, res.Duration)
	printSkips(out, res.Skipped, res.Attempts)
	return nil
}

func runLocalLoad(cmd *cobra.Command, cfg *config.Config, plain, noColor bool) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	renderer := ui.NewRenderer(ui.NewConfig(cmd.OutOrStdout(),
		ui.WithForcePlain(plain),
		ui.WithNoColor(noColor || ui.DetectNoColor()),
		ui.WithTitle(a.source.Location()),
	))
	if err := renderer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start progress display: %w", err)
	}

	res, err := a.runner.Run(ctx, renderer)
	if err != nil {
		_ = renderer.Stop()
		return err
	}
	renderer.Complete(ui.CompletionStats{
		Source:   res.Source,
		Loaded:   res.Loaded,
		Skipped:  res.Skipped,
		Attempts: res.Attempts,
		Duration: res.Duration,
	})
	// Leave the final TUI frame on screen briefly.
	if _, isPlain := renderer.(*ui.PlainRenderer); !isPlain {
		sleepCtx(ctx, 300*time.Millisecond)
	}
	return renderer.Stop()
}

func printSkips(out *output.Writer, skipped, attempts int) {
	if attempts > 1 {
		out.Statusf("", "succeeded after %d attempts", attempts)
	}
	if skipped > 0 {
		out.Warningf("%d records skipped (run with --debug for details)", skipped)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// daemonClient returns a client for the configured socket.
func daemonClient(cfg *config.Config) *daemon.Client {
	return daemon.NewClient(daemon.DefaultConfig().WithSocketPath(cfg.Server.SocketPath))
}
