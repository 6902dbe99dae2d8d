package types

import (
	"errors"
	"fmt"
)

var (
	ErrReportNotFound       = errors.New("report not found")
	ErrCandidateNotFound    = errors.New("routing candidate not found")
	ErrNotificationNotFound = errors.New("notification not found")
	ErrProfileNotFound      = errors.New("profile not found")
	ErrReportNumberTaken    = errors.New("report number already exists")

	// ErrStatusConflict means another transaction already moved the report
	// to the requested status.
	ErrStatusConflict = errors.New("report already has the requested status")

	ErrInvalidStatus        = errors.New("invalid report status")
	ErrInvalidCandidateType = errors.New("invalid candidate type")
	ErrEmptyQuery           = errors.New("query text is required")

	ErrUnauthenticated = errors.New("no active session")
	ErrForbidden       = errors.New("actor is not allowed to perform this action")
)

// ValidationError is raised before any network call when input fails the
// field rules.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// TransitionError reports a status change outside the transition table.
type TransitionError struct {
	ReportID string
	From     ReportStatus
	To       ReportStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("report %s cannot move from %s to %s", e.ReportID, e.From, e.To)
}

// RemoteError wraps a failure from an external collaborator (embedding API,
// vector index, push gateway). Message carries the provider's own error text.
type RemoteError struct {
	Service    string
	StatusCode int
	Message    string
	Retryable  bool
	Err        error
}

func (e *RemoteError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Service, e.StatusCode, msg)
	}
	return fmt.Sprintf("%s: %s", e.Service, msg)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// IsRetryable reports whether err carries a RemoteError marked retryable.
func IsRetryable(err error) bool {
	var remote *RemoteError
	return errors.As(err, &remote) && remote.Retryable
}
