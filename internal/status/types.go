package status

import "time"

// Outcome is the result of one sync run
type Outcome string

const (
	// OutcomeRunning means the run has started and not finished
	OutcomeRunning Outcome = "Running"

	// OutcomeSucceeded means every attempted object type completed without failures
	OutcomeSucceeded Outcome = "Succeeded"

	// OutcomePartialFailure means the run completed but some pages or documents were lost
	OutcomePartialFailure Outcome = "PartialFailure"

	// OutcomeFailed means the run stopped on a fatal error
	OutcomeFailed Outcome = "Failed"

	// OutcomeCancelled means the run was interrupted before it completed
	OutcomeCancelled Outcome = "Cancelled"
)

// Exit codes returned by the sync commands
const (
	ExitSuccess        = 0
	ExitFatal          = 1
	ExitPartialFailure = 2
)

// ExitCode maps an outcome to the process exit status.
func (o Outcome) ExitCode() int {
	switch o {
	case OutcomeSucceeded:
		return ExitSuccess
	case OutcomePartialFailure:
		return ExitPartialFailure
	default:
		return ExitFatal
	}
}

// RunSummary describes one invocation of a sync mode
type RunSummary struct {
	// RunID uniquely identifies the run in logs and metrics
	RunID string `json:"runId"`

	// Mode is the sync mode that ran (incremental, full, deletion, permission)
	Mode string `json:"mode"`

	Outcome Outcome `json:"outcome"`

	// Message is a human readable result
	Message string `json:"message,omitempty"`

	// Reason is a machine readable failure cause
	Reason string `json:"reason,omitempty"`

	DryRun bool `json:"dryRun,omitempty"`

	// Version is the connector build that wrote the summary
	Version string `json:"version,omitempty"`

	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`

	// Since and Until bound the window of incremental and full runs
	Since *time.Time `json:"since,omitempty"`
	Until *time.Time `json:"until,omitempty"`

	// Types holds per object type counters, keyed by object type
	Types map[string]*TypeSummary `json:"types,omitempty"`

	// Permissions is set by permission sync runs
	Permissions *PermissionSummary `json:"permissions,omitempty"`
}

// TypeSummary counts the work done for one object type
type TypeSummary struct {
	Extracted   int `json:"extracted"`
	FailedPages int `json:"failedPages,omitempty"`
	Indexed     int `json:"indexed,omitempty"`
	Failed      int `json:"failed,omitempty"`
	Skipped     int `json:"skipped,omitempty"`
	Unresolved  int `json:"unresolved,omitempty"`
	Deleted     int `json:"deleted,omitempty"`
	// Incomplete is set when the enumeration is known to have missed records
	Incomplete bool   `json:"incomplete,omitempty"`
	LastError  string `json:"lastError,omitempty"`
}

// HasFailures reports whether anything of this type was lost in the run.
func (t *TypeSummary) HasFailures() bool {
	return t.FailedPages > 0 || t.Failed > 0 || t.Incomplete
}

// PermissionSummary counts the work of a permission sync
type PermissionSummary struct {
	Users   int `json:"users"`
	Removed int `json:"removed"`
	Added   int `json:"added"`
	Failed  int `json:"failed,omitempty"`
}

// TypeSummary returns the counters of an object type, creating them on first use.
func (s *RunSummary) TypeSummary(objectType string) *TypeSummary {
	if s.Types == nil {
		s.Types = map[string]*TypeSummary{}
	}
	ts, ok := s.Types[objectType]
	if !ok {
		ts = &TypeSummary{}
		s.Types[objectType] = ts
	}
	return ts
}

// HasFailures reports whether any object type or permission update failed.
func (s *RunSummary) HasFailures() bool {
	for _, t := range s.Types {
		if t.HasFailures() {
			return true
		}
	}
	return s.Permissions != nil && s.Permissions.Failed > 0
}
