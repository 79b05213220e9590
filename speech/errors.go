package speech

import "errors"

// Common errors for the speech subsystem. Implementations wrap these with
// detail using fmt.Errorf("%w: ...", ...) so callers can classify failures
// with errors.Is.
var (
	// ErrInvalidInput indicates empty or missing input text. The service
	// short-circuits this case with an empty Result instead of returning it;
	// it is surfaced only when components are invoked directly.
	ErrInvalidInput = errors.New("empty input text")

	// ErrSynthesisUnavailable covers network failures, provider-side errors,
	// timeouts, and responses with no audio in them.
	ErrSynthesisUnavailable = errors.New("synthesis unavailable")

	// ErrStorageFailure covers blob-write and index-insert failures at the
	// cache layer. Distinct from a cache miss: callers must not re-synthesize
	// forever on a persistent storage outage.
	ErrStorageFailure = errors.New("cache storage failure")

	// ErrEncodingFailure indicates malformed PCM parameters during container
	// construction. This is a programming or configuration error, not a
	// transient condition.
	ErrEncodingFailure = errors.New("audio encoding failure")
)
