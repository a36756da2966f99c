package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stacklok/zoom-search-connector/internal/status"
	pkgsync "github.com/stacklok/zoom-search-connector/internal/sync"
	"github.com/stacklok/zoom-search-connector/internal/versions"
)

func newStatusCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status [mode]",
		Short: "Show the last run of each sync mode",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := cmd.Flags().GetString("format")
			if err != nil {
				return err
			}
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			summaries, err := loadSummaries(cmd.Context(), status.NewFilePersistence(cfg.GetStatusPath()), args)
			if err != nil {
				return err
			}
			return printSummaries(cmd.OutOrStdout(), format, summaries)
		},
	}
	cmd.Flags().String("format", "text", "Output format (text|json)")
	return cmd
}

// loadSummaries returns the last summary of the requested mode, or of every mode, in mode order.
func loadSummaries(ctx context.Context, p status.Persistence, args []string) ([]*status.RunSummary, error) {
	modes := pkgsync.Modes()
	if len(args) == 1 {
		mode, err := pkgsync.ParseMode(args[0])
		if err != nil {
			return nil, err
		}
		modes = []pkgsync.Mode{mode}
	}

	all, err := p.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load run summaries: %w", err)
	}
	var out []*status.RunSummary
	for _, mode := range modes {
		summary, ok := all[string(mode)]
		if !ok {
			continue
		}
		if versions.WrittenByNewer(summary.Version) {
			slog.Warn("Run summary was written by a newer connector", "mode", mode, "version", summary.Version)
		}
		out = append(out, summary)
	}
	return out, nil
}

func printSummaries(w io.Writer, format string, summaries []*status.RunSummary) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if summaries == nil {
			summaries = []*status.RunSummary{}
		}
		return enc.Encode(summaries)
	case "text", "":
	default:
		return fmt.Errorf("unsupported format %q", format)
	}

	if len(summaries) == 0 {
		_, err := fmt.Fprintln(w, "No sync has run yet")
		return err
	}
	for _, s := range summaries {
		finished := "-"
		if s.FinishedAt != nil {
			finished = s.FinishedAt.Format(time.RFC3339)
		}
		if _, err := fmt.Fprintf(w, "%-12s %-15s started %s finished %s run %s\n",
			s.Mode, s.Outcome, s.StartedAt.Format(time.RFC3339), finished, s.RunID); err != nil {
			return err
		}
		if s.Message != "" {
			fmt.Fprintf(w, "  %s\n", s.Message)
		}
		for _, t := range slices.Sorted(maps.Keys(s.Types)) {
			ts := s.Types[t]
			fmt.Fprintf(w, "  %-14s extracted %d indexed %d failed %d skipped %d unresolved %d deleted %d failed pages %d\n",
				t, ts.Extracted, ts.Indexed, ts.Failed, ts.Skipped, ts.Unresolved, ts.Deleted, ts.FailedPages)
		}
		if p := s.Permissions; p != nil {
			fmt.Fprintf(w, "  permissions    users %d removed %d added %d failed %d\n", p.Users, p.Removed, p.Added, p.Failed)
		}
	}
	return nil
}
