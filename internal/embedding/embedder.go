package embedding

import (
	"errors"
	"fmt"

	"rag-retrieval/internal/domain"
)

// Provider converts free text into vectors through a remote model.
type Provider = domain.EmbeddingProvider

var (
	// ErrUnavailable wraps every provider failure. Callers that only need
	// "no embedding" semantics check for this one.
	ErrUnavailable = errors.New("embedding unavailable")

	// ErrConfiguration marks a missing or rejected credential. Retrying will
	// not help without operator action.
	ErrConfiguration = errors.New("embedding provider misconfigured")

	// ErrTransport marks network failures, timeouts and non-success statuses.
	ErrTransport = errors.New("embedding transport failure")

	// ErrMalformedResponse marks a response that arrived but lacks the
	// expected vectors.
	ErrMalformedResponse = errors.New("malformed embedding response")
)

// Fail wraps err with ErrUnavailable and the given failure class.
func Fail(class error, format string, args ...any) error {
	return fmt.Errorf("%w: %w: %s", ErrUnavailable, class, fmt.Sprintf(format, args...))
}

// IsConfiguration reports whether err is a non-retryable configuration failure.
func IsConfiguration(err error) bool {
	return errors.Is(err, ErrConfiguration)
}
