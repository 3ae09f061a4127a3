package cmd

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/userindex/internal/output"
)

func newSearchCmd() *cobra.Command {
	var (
		limit      int
		jsonOutput bool
		local      bool
	)

	cmd := &cobra.Command{
		Use:   "search <text>",
		Short: "Search users by name, email or SSN",
		Long: `Search the loaded users. The text matches a user when it is contained
in the first or last name (case-insensitive), equals the email
(case-insensitive) or equals the SSN. Users satisfying more of these rank
first; ties are ordered by id.`,
		Example: `  userindex search john
  userindex search emily.johnson@x.dummyjson.com --json
  userindex search smi --limit 5`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			b, closeFn, err := openBackend(cmd.Context(), cfg, local)
			if err != nil {
				return err
			}
			defer closeFn()

			query := strings.Join(args, " ")
			res, err := b.Search(cmd.Context(), query, limit)
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			output.New(cmd.OutOrStdout()).Users(res.Query, res.Users)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum results (0 = server default)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&local, "local", false, "Query the store directly instead of the daemon")

	return cmd
}
