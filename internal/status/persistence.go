// Package status records the summary of every sync run so operators can inspect
// the last outcome of each mode.
package status

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

//go:generate mockgen -destination=mocks/mock_persistence.go -package=mocks -source=persistence.go Persistence

const (
	// SummaryFileName is the name of the per-mode summary file
	SummaryFileName = "last_run.json"
)

// Persistence stores the latest run summary of each mode
type Persistence interface {
	// SaveSummary overwrites the latest summary of summary.Mode
	SaveSummary(ctx context.Context, summary *RunSummary) error

	// LoadSummary loads the latest summary of a mode.
	// Returns nil without error if the mode never ran.
	LoadSummary(ctx context.Context, mode string) (*RunSummary, error)

	// LoadAll loads the latest summary of every mode that ran
	LoadAll(ctx context.Context) (map[string]*RunSummary, error)
}

// filePersistence implements Persistence using local filesystem
type filePersistence struct {
	basePath string
}

// NewFilePersistence creates a file-based persistence rooted at basePath,
// keeping one directory per mode
func NewFilePersistence(basePath string) Persistence {
	return &filePersistence{
		basePath: basePath,
	}
}

// SaveSummary writes the summary atomically through a temporary file
func (f *filePersistence) SaveSummary(_ context.Context, summary *RunSummary) error {
	if summary == nil || summary.Mode == "" {
		return fmt.Errorf("summary with a mode is required")
	}
	modeDir := filepath.Join(f.basePath, summary.Mode)
	if err := os.MkdirAll(modeDir, 0750); err != nil {
		return fmt.Errorf("failed to create status directory for mode '%s': %w", summary.Mode, err)
	}

	filePath := filepath.Join(modeDir, SummaryFileName)
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal summary for mode '%s': %w", summary.Mode, err)
	}

	tempPath := filePath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary summary for mode '%s': %w", summary.Mode, err)
	}
	if err := os.Rename(tempPath, filePath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename summary for mode '%s': %w", summary.Mode, err)
	}
	return nil
}

// LoadSummary reads the summary of a mode
func (f *filePersistence) LoadSummary(_ context.Context, mode string) (*RunSummary, error) {
	filePath := filepath.Join(f.basePath, mode, SummaryFileName)

	// #nosec G304 -- filePath is built from the configured status directory and a known mode name
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read summary for mode '%s': %w", mode, err)
	}

	var summary RunSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("failed to unmarshal summary for mode '%s': %w", mode, err)
	}
	return &summary, nil
}

// LoadAll reads every mode directory under the base path
func (f *filePersistence) LoadAll(ctx context.Context) (map[string]*RunSummary, error) {
	result := make(map[string]*RunSummary)

	entries, err := os.ReadDir(f.basePath)
	if err != nil {
		if os.IsNotExist(err) {
			return result, nil
		}
		return nil, fmt.Errorf("failed to read status directory: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		summary, err := f.LoadSummary(ctx, entry.Name())
		if err != nil || summary == nil {
			// Unreadable summaries are left out so the rest can still be shown
			continue
		}
		result[entry.Name()] = summary
	}
	return result, nil
}
