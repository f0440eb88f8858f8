package types

import (
	"errors"
	"fmt"
)

// SourceUnavailableError indicates a watcher could not reach its source this
// cycle. The condition is transient; the next scheduled poll retries.
type SourceUnavailableError struct {
	Source string
	Err    error
}

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("source %s unavailable: %v", e.Source, e.Err)
}

func (e *SourceUnavailableError) Unwrap() error { return e.Err }

// NewSourceUnavailableError wraps err as a transient source failure.
func NewSourceUnavailableError(source string, err error) error {
	return &SourceUnavailableError{Source: source, Err: err}
}

// ValidationError indicates content failed policy checks before submission.
// Terminal for the task; it is routed to the rejected store.
type ValidationError struct {
	Target  string
	Reasons []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %v", e.Target, e.Reasons)
}

// NewValidationError creates a terminal validation failure for target.
func NewValidationError(target string, reasons ...string) error {
	return &ValidationError{Target: target, Reasons: reasons}
}

// DeliveryError indicates a connector call failed. Terminal for the task, no
// automatic retry; resubmission goes back through the approval path.
type DeliveryError struct {
	Connector string
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery via %s failed: %v", e.Connector, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// NewDeliveryError wraps err as a terminal delivery failure.
func NewDeliveryError(connector string, err error) error {
	return &DeliveryError{Connector: connector, Err: err}
}

// CorrelationError indicates an approval artifact could not be matched to
// exactly one originating task. The engine must surface it, never pick an
// arbitrary candidate.
type CorrelationError struct {
	Target     string
	Candidates []string
}

func (e *CorrelationError) Error() string {
	if len(e.Candidates) == 0 {
		return fmt.Sprintf("no originating task for %s", e.Target)
	}
	return fmt.Sprintf("ambiguous correlation for %s: %d candidates", e.Target, len(e.Candidates))
}

// NewCorrelationError creates a correlation failure for target.
func NewCorrelationError(target string, candidates ...string) error {
	return &CorrelationError{Target: target, Candidates: candidates}
}

// IsSourceUnavailable reports whether err is a transient source failure.
func IsSourceUnavailable(err error) bool {
	var e *SourceUnavailableError
	return errors.As(err, &e)
}

// IsValidation reports whether err is a terminal validation failure.
func IsValidation(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}

// IsDelivery reports whether err is a terminal delivery failure.
func IsDelivery(err error) bool {
	var e *DeliveryError
	return errors.As(err, &e)
}

// IsCorrelation reports whether err is a correlation failure.
func IsCorrelation(err error) bool {
	var e *CorrelationError
	return errors.As(err, &e)
}
