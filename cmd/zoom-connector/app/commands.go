// Package app provides the commands of the zoom-connector binary.
package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stacklok/zoom-search-connector/internal/config"
	"github.com/stacklok/zoom-search-connector/internal/status"
	"github.com/stacklok/zoom-search-connector/internal/versions"
)

// exitError carries a process exit status out of a command
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

// NewRootCmd creates the root command with every subcommand attached.
func NewRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(config.EnvPrefix)
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:               "zoom-connector",
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		SilenceErrors:     true,
		Short:             "Synchronize Zoom objects into Workplace Search",
		Long: `zoom-connector extracts users, meetings, recordings, chats, files, channels, roles,
groups and past meetings from Zoom and keeps a Workplace Search content source in sync,
including deletions and document level permissions.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	root.PersistentFlags().String("config", "", "Path to configuration file (YAML format)")
	if err := v.BindPFlag("config", root.PersistentFlags().Lookup("config")); err != nil {
		slog.Error("Error binding config flag", "error", err)
	}

	for _, mode := range syncModes {
		root.AddCommand(newSyncCmd(v, mode))
	}
	root.AddCommand(
		newScheduleCmd(v),
		newStatusCmd(v),
		newMigrateCmd(v),
		newVersionCmd(),
	)
	return root
}

// Execute runs the root command and returns the process exit status.
func Execute() int {
	return exitCode(NewRootCmd().Execute())
}

func exitCode(err error) int {
	if err == nil {
		return status.ExitSuccess
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.code != status.ExitSuccess {
			slog.Error("Command failed", "error", ee.err, "exit_code", ee.code)
		}
		return ee.code
	}
	slog.Error("Command failed", "error", err)
	return status.ExitFatal
}

// loadConfig reads the configuration file named by --config or ZOOM_CONNECTOR_CONFIG.
func loadConfig(v *viper.Viper) (*config.Config, error) {
	path := v.GetString("config")
	if path == "" {
		return nil, fmt.Errorf("--config or %s_CONFIG is required", config.EnvPrefix)
	}
	cfg, err := config.LoadConfig(config.WithConfigPath(path))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := versions.GetVersionInfo()
			format, err := cmd.Flags().GetString("format")
			if err != nil {
				return err
			}
			if format == "json" {
				output, err := json.MarshalIndent(info, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to format version info: %w", err)
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(output))
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "zoom-connector %s (commit %s, built %s, %s %s)\n",
				info.Version, info.Commit, info.BuildDate, info.GoVersion, info.Platform)
			return err
		},
	}
	cmd.Flags().String("format", "", "Output format (json)")
	return cmd
}
