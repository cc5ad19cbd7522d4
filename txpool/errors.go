package txpool

import "fmt"

// statusError wraps a non-success Status as an error, for the callback and
// log-line paths that need an error value rather than a bare status code:
// a submit callback fires with a matching invalid-receipt error whenever
// its status is non-success.
type statusError struct {
	status Status
}

func (e *statusError) Error() string {
	return fmt.Sprintf("txpool: %s", e.status)
}

// Status reports the underlying Status code, for callers that want to
// branch on it without a string comparison.
func (e *statusError) Status() Status {
	return e.status
}

// StatusError converts a non-success Status into an error. It panics if
// status is StatusNone: callers only construct an error for a failure
// status; a nil error already conveys success.
func StatusError(status Status) error {
	if status.OK() {
		panic("txpool: StatusError called with a success status")
	}
	return &statusError{status: status}
}
