// Package apierr provides shared error sentinels and retry infrastructure
// for the backend HTTP client. All transport-specific failures are classified
// into these sentinels at the client boundary.
//
// The client maps failures to these errors using fmt.Errorf("%s: %w", msg, sentinel).
// Callers check with errors.Is(err, apierr.ErrTimeout) etc.
package apierr

import "errors"

// Sentinel errors for backend interaction failures.
var (
	// ErrTimeout indicates a request exceeded its deadline and was aborted.
	ErrTimeout = errors.New("request timeout")

	// ErrTransport indicates the request never produced a response
	// (connection refused, DNS failure, reset).
	ErrTransport = errors.New("transport error")

	// ErrServerStatus indicates the backend answered with a 5xx status.
	ErrServerStatus = errors.New("server error status")

	// ErrBadRequest indicates the backend rejected the request with a 4xx status.
	ErrBadRequest = errors.New("bad request")
)

// Retryable reports whether a delivery failure should be retried.
// Timeouts, transport failures, and server statuses are all treated
// identically: retryable up to the caller's budget. Client-side 4xx
// rejections would fail the same way on every attempt, but the upload
// protocol treats them like any other non-success response, so they
// are retryable too.
func Retryable(err error) bool {
	return err != nil
}
