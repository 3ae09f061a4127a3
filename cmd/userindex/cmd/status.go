package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/userindex/internal/config"
	"github.com/Aman-CERP/userindex/internal/daemon"
	"github.com/Aman-CERP/userindex/internal/store"
	"github.com/Aman-CERP/userindex/internal/ui"
)

func newStatusCmd() *cobra.Command {
	var (
		jsonOutput bool
		noColor    bool
		local      bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index, ingestion and cache status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			b, closeFn, err := openBackend(cmd.Context(), cfg, local)
			if err != nil {
				return err
			}
			defer closeFn()

			st, err := b.Status(cmd.Context())
			if err != nil {
				return err
			}
			_, remote := b.(*daemon.Client)

			r := ui.NewStatusRenderer(cmd.OutOrStdout(), noColor || ui.DetectNoColor())
			info := statusInfo(cfg, st, remote)
			if jsonOutput {
				return r.RenderJSON(info)
			}
			return r.Render(info)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colors")
	cmd.Flags().BoolVar(&local, "local", false, "Read the store directly instead of the daemon")

	return cmd
}

// statusInfo flattens a daemon status for display. The watcher only runs
// inside a daemon, so a local status reports it as n/a.
func statusInfo(cfg *config.Config, st *daemon.StatusResult, remote bool) ui.StatusInfo {
	info := ui.StatusInfo{
		Source:       st.Source,
		Backend:      st.Backend,
		Users:        st.Users,
		Generation:   st.Generation,
		CommittedAt:  st.CommittedAt,
		Ingesting:    st.Ingestion.Running,
		Stage:        st.Ingestion.Stage,
		Runs:         st.Ingestion.Runs,
		Failures:     st.Ingestion.Failures,
		LastRunAt:    st.Ingestion.LastRunAt,
		LastError:    st.Ingestion.LastError,
		CacheEntries: st.Cache.SearchEntries + st.Cache.ByIDEntries + st.Cache.ByEmailEntries,
		CacheHitRate: st.Cache.HitRate(),
	}

	switch {
	case !remote:
		info.WatcherStatus = "n/a"
	case st.Watching:
		info.WatcherStatus = "running"
	case cfg.Ingestion.Watch:
		info.WatcherStatus = "stopped"
	default:
		info.WatcherStatus = "n/a"
	}

	if cfg.Store.Backend == string(store.BackendSQLite) {
		if size, ok := fileSize(cfg.Store.Path); ok {
			info.StoreSize = size
		}
	}
	return info
}
