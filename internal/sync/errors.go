package sync

import (
	"context"
	"errors"

	"github.com/stacklok/zoom-search-connector/internal/credentials"
	"github.com/stacklok/zoom-search-connector/internal/httpclient"
	"github.com/stacklok/zoom-search-connector/internal/identity"
	"github.com/stacklok/zoom-search-connector/internal/model"
	"github.com/stacklok/zoom-search-connector/internal/sync/writer"
)

var (
	// ErrPermissionSyncDisabled is returned by permission sync when document permissions are turned off.
	ErrPermissionSyncDisabled = errors.New("document permissions are disabled")

	// ErrRunCancelled is returned when a run is interrupted before it completes.
	ErrRunCancelled = errors.New("sync run cancelled")
)

// Failure reasons recorded in run summaries
const (
	ReasonCancelled          = "Cancelled"
	ReasonCredentialsInvalid = "CredentialsInvalid"
	ReasonTargetUnavailable  = "TargetUnavailable"
	ReasonPermissionDisabled = "PermissionSyncDisabled"
	ReasonMappingMissing     = "UserMappingMissing"
	ReasonStateFailed        = "StateFailed"
	ReasonExtractionFailed   = "ExtractionFailed"
)

// Error represents a run-fatal failure with the reason recorded in the run summary
type Error struct {
	Err     error
	Message string
	// ObjectType is set when the failure is tied to one object type.
	ObjectType model.ObjectType
	Reason     string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// newError wraps err, deriving the reason from its cause.
func newError(err error, message string, t model.ObjectType) *Error {
	return &Error{
		Err:        err,
		Message:    message + ": " + err.Error(),
		ObjectType: t,
		Reason:     reasonOf(err),
	}
}

func reasonOf(err error) string {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded),
		httpclient.KindOf(err) == httpclient.KindCanceled:
		return ReasonCancelled
	case errors.Is(err, writer.ErrTargetUnavailable):
		return ReasonTargetUnavailable
	case errors.Is(err, credentials.ErrRefreshTokenInvalid), errors.Is(err, credentials.ErrNoRefreshToken),
		httpclient.IsFatal(err):
		return ReasonCredentialsInvalid
	case errors.Is(err, ErrPermissionSyncDisabled):
		return ReasonPermissionDisabled
	case errors.Is(err, identity.ErrEmptyMapping):
		return ReasonMappingMissing
	default:
		return ReasonExtractionFailed
	}
}
