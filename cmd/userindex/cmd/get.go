package cmd

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	apperrors "github.com/Aman-CERP/userindex/internal/errors"
	"github.com/Aman-CERP/userindex/internal/output"
	"github.com/Aman-CERP/userindex/internal/store"
)

func newGetCmd() *cobra.Command {
	var (
		email      string
		jsonOutput bool
		local      bool
	)

	cmd := &cobra.Command{
		Use:   "get [id]",
		Short: "Show one user by id or email",
		Example: `  userindex get 42
  userindex get --email emily.johnson@x.dummyjson.com`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (len(args) == 1) == (email != "") {
				return apperrors.ValidationError("pass either an id or --email", nil)
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			b, closeFn, err := openBackend(cmd.Context(), cfg, local)
			if err != nil {
				return err
			}
			defer closeFn()

			var u *store.User
			if email != "" {
				u, err = b.GetUserByEmail(cmd.Context(), email)
			} else {
				id, perr := strconv.ParseInt(args[0], 10, 64)
				if perr != nil {
					return apperrors.ValidationError(fmt.Sprintf("invalid id %q", args[0]), perr)
				}
				u, err = b.GetUser(cmd.Context(), id)
			}
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(u)
			}
			output.New(cmd.OutOrStdout()).User(u)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Look up by email (case-insensitive)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&local, "local", false, "Query the store directly instead of the daemon")

	return cmd
}
