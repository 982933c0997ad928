package downloader

import (
	"context"
	"errors"
	"fmt"
)

// ErrTooManyRedirects is returned when a redirect chain exceeds the
// configured bound.
var ErrTooManyRedirects = errors.New("too many redirects")

// Fetcher streams a single remote resource to a local path.
type Fetcher interface {
	// Fetch writes the body of url to dest. The parent directory of dest
	// must exist. On failure no file is left at dest.
	Fetch(ctx context.Context, url, dest string) error
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, url, dest string) error

func (f FetcherFunc) Fetch(ctx context.Context, url, dest string) error { return f(ctx, url, dest) }

// NetworkError wraps a transport-level failure (dial, TLS, reset, timeout).
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string { return fmt.Sprintf("fetch %s: %v", e.URL, e.Err) }

func (e *NetworkError) Unwrap() error { return e.Err }

// HTTPStatusError reports a final, non-redirect response other than 200.
type HTTPStatusError struct {
	URL  string
	Code int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.Code)
}
