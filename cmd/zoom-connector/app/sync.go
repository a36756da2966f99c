package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stacklok/zoom-search-connector/internal/status"
	pkgsync "github.com/stacklok/zoom-search-connector/internal/sync"
)

// pushTimeout bounds the Pushgateway push after a one-shot run
const pushTimeout = 10 * time.Second

// syncMode describes one sync command
type syncMode struct {
	mode  pkgsync.Mode
	use   string
	short string
	long  string
}

var syncModes = []syncMode{
	{
		mode:  pkgsync.ModeIncremental,
		use:   "incremental-sync",
		short: "Index objects changed since the last checkpoint",
		long: `Index every object created or modified since the checkpoint of its type, then
advance the checkpoint to the start of this run. With document permissions enabled the
user permissions are refreshed afterwards.`,
	},
	{
		mode:  pkgsync.ModeFull,
		use:   "full-sync",
		short: "Index every object in the configured time window",
		long: `Index every object whose timestamp falls between startTime and endTime (the run
start when unset), ignoring stored checkpoints. Use it to recover objects skipped by
earlier runs.`,
	},
	{
		mode:  pkgsync.ModeDeletion,
		use:   "deletion-sync",
		short: "Remove documents whose objects no longer exist in Zoom",
		long: `Compare the indexed id set with a fresh enumeration of Zoom, confirm each missing
object with a direct lookup where Zoom allows it, and delete the confirmed documents.
Objects past the Zoom retention window are left in place.`,
	},
	{
		mode:  pkgsync.ModePermission,
		use:   "permission-sync",
		short: "Replace user permissions from the user mapping table",
		long: `Make the permissions of every Workplace Search user match the user mapping table.
Requires enableDocumentPermission and a non-empty zoom.userMapping.`,
	},
}

func newSyncCmd(v *viper.Viper, m syncMode) *cobra.Command {
	cmd := &cobra.Command{
		Use:   m.use,
		Short: m.short,
		Long:  m.long,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dryRun, err := cmd.Flags().GetBool("dry-run")
			if err != nil {
				return err
			}
			timeout, err := cmd.Flags().GetDuration("timeout")
			if err != nil {
				return err
			}
			return runSync(cmd.Context(), v, m.mode, dryRun, timeout)
		},
	}
	cmd.Flags().Bool("dry-run", false, "Extract and transform without writing documents or state")
	cmd.Flags().Duration("timeout", 0, "Cancel the run after this duration (0 = no limit)")
	return cmd
}

func runSync(ctx context.Context, v *viper.Viper, mode pkgsync.Mode, dryRun bool, timeout time.Duration) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cfg, err := loadConfig(v)
	if err != nil {
		return err
	}
	rt, err := newRuntime(ctx, cfg, dryRun)
	if err != nil {
		return err
	}
	defer rt.close(context.WithoutCancel(ctx))

	slog.InfoContext(ctx, "Starting sync", "mode", mode, "dry_run", dryRun)
	summary, runErr := rt.manager.Run(ctx, mode)

	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), pushTimeout)
	defer cancel()
	if err := rt.telemetry.Push(pushCtx, string(mode)); err != nil {
		slog.Warn("Failed to push metrics", "error", err)
	}

	return runResult(summary, runErr)
}

// runResult maps the outcome of a run to the command error and exit status.
func runResult(summary *status.RunSummary, runErr *pkgsync.Error) error {
	if runErr != nil {
		return &exitError{code: status.ExitFatal, err: runErr}
	}
	if summary == nil {
		return nil
	}
	code := summary.Outcome.ExitCode()
	if code == status.ExitSuccess {
		return nil
	}
	return &exitError{code: code, err: fmt.Errorf("%s sync %s: %s", summary.Mode, summary.Outcome, summary.Message)}
}
