package domain

import "fmt"

// ValidationError indicates malformed user input. It fails fast and never
// reaches the network.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NetworkError indicates a transport or HTTP failure after the retry budget
// was exhausted (or a non-retryable status observed on the first attempt).
// A caller may recover by retrying the whole operation.
type NetworkError struct {
	URL        string
	Attempts   int
	LastStatus int // 0 when the last attempt failed at transport level
	Err        error
}

func (e *NetworkError) Error() string {
	if e.LastStatus > 0 {
		return fmt.Sprintf("request to %s failed after %d attempt(s): last status %d", e.URL, e.Attempts, e.LastStatus)
	}
	return fmt.Sprintf("request to %s failed after %d attempt(s): %v", e.URL, e.Attempts, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// UpstreamDataError indicates a remote response parsed but was missing an
// expected field. It triggers the documented fallback substitution rather
// than failing a run.
type UpstreamDataError struct {
	Stage Stage
	Field string
}

func (e *UpstreamDataError) Error() string {
	return fmt.Sprintf("stage %s: response missing field %q", e.Stage, e.Field)
}
