package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/userindex/internal/config"
	"github.com/Aman-CERP/userindex/internal/output"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Manage the userindex configuration.

Configuration precedence (lowest to highest):
  1. Hardcoded defaults
  2. User config (~/.config/userindex/config.yaml)
  3. Project config (.userindex.yaml in --dir)
  4. Environment variables (USERINDEX_*)`,
		Example: `  # Write the user config with defaults
  userindex config init

  # Show the effective configuration
  userindex config show`,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigPathCmd())
	cmd.AddCommand(newConfigRestoreCmd())

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the user configuration file",
		Long: `Write the default configuration to ~/.config/userindex/config.yaml
(or $XDG_CONFIG_HOME/userindex/config.yaml). With --force an existing file
is backed up and its values are kept, with any new settings filled in from
the defaults.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigInit(cmd, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Rewrite an existing configuration (a backup is kept)")

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	var (
		jsonOutput bool
		from       string
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigShow(cmd, jsonOutput, from)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().StringVar(&from, "source", "merged", "Config source: merged, user, defaults")

	return cmd
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print user config file path",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), config.GetUserConfigPath())
			return err
		},
	}
}

func newConfigRestoreCmd() *cobra.Command {
	var list bool

	cmd := &cobra.Command{
		Use:   "restore [backup]",
		Short: "Restore the user config from a backup",
		Long:  `Restore the newest backup, or the one given. The current file is backed up first.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.New(cmd.OutOrStdout())
			backups, err := config.ListUserConfigBackups()
			if err != nil {
				return err
			}
			if list {
				if len(backups) == 0 {
					out.Status("", "No backups found")
				}
				for _, b := range backups {
					out.Status("", b)
				}
				return nil
			}

			target := ""
			switch {
			case len(args) == 1:
				target = args[0]
			case len(backups) > 0:
				target = backups[0]
			default:
				return fmt.Errorf("no backups found in %s", config.GetUserConfigDir())
			}

			if err := config.RestoreUserConfig(target); err != nil {
				return err
			}
			out.Successf("Restored configuration from %s", target)
			return nil
		},
	}

	cmd.Flags().BoolVar(&list, "list", false, "List available backups, newest first")

	return cmd
}

func runConfigInit(cmd *cobra.Command, force bool) error {
	out := output.New(cmd.OutOrStdout())
	configPath := config.GetUserConfigPath()

	cfg := config.NewConfig()
	if config.UserConfigExists() {
		if !force {
			out.Warning("User configuration already exists")
			out.Statusf("📁", "Location: %s", configPath)
			out.Status("💡", "Use --force to rewrite it (your values are kept)")
			return nil
		}

		backupPath, err := config.BackupUserConfig()
		if err != nil {
			return fmt.Errorf("failed to backup config: %w", err)
		}
		existing, err := config.LoadUserConfig()
		if err != nil {
			return fmt.Errorf("failed to load existing config: %w", err)
		}
		cfg = existing
		out.Statusf("💾", "Backup: %s", backupPath)
	}

	if err := cfg.WriteYAML(configPath); err != nil {
		return err
	}
	out.Success("Wrote user configuration")
	out.Statusf("📁", "Location: %s", configPath)
	out.Status("", "Run 'userindex config show' to verify")
	return nil
}

func runConfigShow(cmd *cobra.Command, jsonOutput bool, from string) error {
	var (
		cfg *config.Config
		err error
	)
	switch from {
	case "merged", "":
		cfg, err = loadConfig()
	case "user":
		cfg, err = config.LoadUserConfig()
	case "defaults":
		cfg = config.NewConfig()
	default:
		return fmt.Errorf("unknown config source %q (valid options: merged, user, defaults)", from)
	}
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

// fileSize returns the size of a regular file.
func fileSize(path string) (int64, bool) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return 0, false
	}
	return info.Size(), true
}
