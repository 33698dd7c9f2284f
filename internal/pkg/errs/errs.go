package errs

import "errors"

var (
	ErrInvalid              = errors.New("invalid")
	ErrInvalidConfig        = errors.New("invalid config")
	ErrNoCaptions           = errors.New("no captions available")
	ErrCollectionNotFound   = errors.New("collection not found")
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
	ErrUpstreamTimeout      = errors.New("upstream timeout")
	ErrUpstream             = errors.New("upstream error")
)

func IsNoCaptions(err error) bool {
	return errors.Is(err, ErrNoCaptions)
}

func IsCollectionNotFound(err error) bool {
	return errors.Is(err, ErrCollectionNotFound)
}

// IsRetryable reports whether a second attempt against the upstream could
// plausibly succeed. Validation failures and missing data are final.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrUpstream) ||
		errors.Is(err, ErrUpstreamTimeout) ||
		errors.Is(err, ErrEmbeddingUnavailable)
}
