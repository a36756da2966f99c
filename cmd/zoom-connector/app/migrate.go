package app

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/stacklok/zoom-search-connector/database"
	"github.com/stacklok/zoom-search-connector/internal/config"
)

func newMigrateCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the schema of the postgres state backend",
		Long:  `Manage the schema of the postgres state backend. Use with 'up' or 'down' subcommands.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Usage()
		},
	}
	cmd.PersistentFlags().BoolP("yes", "y", false, "Answer yes to all questions")
	cmd.PersistentFlags().UintP("num-steps", "n", 0, "Number of steps to migrate down (0 = all)")

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrate(cmd, v, false)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Revert migrations",
		Long: `Revert migrations of the postgres state backend.
WARNING: reverting removes stored checkpoints and indexed id sets. The next
incremental sync then behaves like a first run and deletion sync finds nothing to delete.

Examples:
  # Revert one step
  zoom-connector migrate down --config config.yaml --num-steps 1 --yes`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrate(cmd, v, true)
		},
	})
	return cmd
}

func runMigrate(cmd *cobra.Command, v *viper.Viper, down bool) error {
	yes, err := cmd.Flags().GetBool("yes")
	if err != nil {
		return fmt.Errorf("failed to get yes flag: %w", err)
	}
	numSteps, err := cmd.Flags().GetUint("num-steps")
	if err != nil {
		return fmt.Errorf("failed to get num-steps flag: %w", err)
	}
	if numSteps > math.MaxInt32 {
		return fmt.Errorf("number of steps exceeds maximum allowed value")
	}

	cfg, err := loadConfig(v)
	if err != nil {
		return err
	}
	if cfg.GetStorageType() != config.StorageTypePostgres || cfg.Storage.Database == nil {
		return fmt.Errorf("migrations require storage.type %q with a database section", config.StorageTypePostgres)
	}
	db := cfg.Storage.Database
	connString, err := db.GetConnectionString()
	if err != nil {
		return fmt.Errorf("failed to build connection string: %w", err)
	}

	if !yes {
		if !isTerminal(cmd.InOrStdin()) {
			return fmt.Errorf("stdin is not a terminal, pass --yes to migrate non-interactively")
		}
		prompt := fmt.Sprintf("Apply migrations to %s@%s/%s?", db.User, db.Host, db.Database)
		if down {
			prompt = fmt.Sprintf("WARNING: this reverts %s of %s@%s/%s and drops stored sync state. Continue?",
				stepsLabel(numSteps), db.User, db.Host, db.Database)
		}
		if !confirm(cmd.InOrStdin(), cmd.OutOrStdout(), prompt) {
			slog.Info("Migration cancelled by user")
			return nil
		}
	}

	m, err := database.NewFromConnectionString(connString)
	if err != nil {
		return err
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			slog.Warn("Failed to close migrator", "source_error", srcErr, "database_error", dbErr)
		}
	}()

	if down {
		slog.Info("Reverting migrations", "steps", stepsLabel(numSteps))
		err = database.MigrateDown(m, int(numSteps))
	} else {
		slog.Info("Applying migrations")
		err = database.MigrateUp(m)
	}
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	version, dirty, err := m.Version()
	switch {
	case err != nil:
		slog.Info("Migration completed, no schema version recorded")
	case dirty:
		slog.Warn("Database is in a dirty state, manual intervention may be required", "version", version)
	default:
		slog.Info("Migration completed", "version", version)
	}
	return nil
}

func stepsLabel(n uint) string {
	if n == 0 {
		return "all migrations"
	}
	return fmt.Sprintf("%d migration(s)", n)
}

func isTerminal(in io.Reader) bool {
	f, ok := in.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// confirm asks prompt on out and reads a yes/no answer from in.
func confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprintf(out, "%s (yes/no): ", prompt)
	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && answer == "" {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "yes" || answer == "y"
}
