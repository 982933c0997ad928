package httpdl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/tinoosan/modsync/internal/downloader"
	"github.com/tinoosan/modsync/internal/metrics"
)

// Fetch streams url into dest. 301/302/303/307/308 responses are followed
// against their Location header up to MaxRedirects hops. The body is
// written to a temp file next to dest and renamed into place only after
// the copy completes, so a failed fetch never leaves a file at dest.
func (c *Client) Fetch(ctx context.Context, rawURL, dest string) (err error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}
		metrics.FetchLatency.WithLabelValues(result).Observe(time.Since(start).Seconds())
	}()

	resp, err := c.follow(ctx, rawURL)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	metrics.ActiveFetches.Inc()
	defer metrics.ActiveFetches.Dec()

	n, err := writeAtomic(dest, resp.Body)
	if err != nil {
		if ctx.Err() != nil || isNetErr(err) {
			return &downloader.NetworkError{URL: rawURL, Err: err}
		}
		return fmt.Errorf("write %s: %w", dest, err)
	}
	metrics.FetchedBytes.Add(float64(n))
	c.log.Debug("fetched", "url", rawURL, "dest", dest, "bytes", n, "dur_ms", time.Since(start).Milliseconds())
	return nil
}

// follow issues GETs until a non-redirect response arrives. The returned
// response has status 200 and an open body.
func (c *Client) follow(ctx context.Context, rawURL string) (*http.Response, error) {
	target := rawURL
	origin := ""
	for hop := 0; ; hop++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", target, err)
		}
		if hop == 0 {
			origin = req.URL.Host
		}
		req.Header.Set("User-Agent", c.userAgent)
		if c.token != "" && req.URL.Host == origin {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, &downloader.NetworkError{URL: target, Err: err}
		}

		if isRedirect(resp.StatusCode) {
			loc, lerr := resp.Location()
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
			_ = resp.Body.Close()
			if lerr != nil {
				return nil, fmt.Errorf("fetch %s: redirect %d without usable Location: %w", target, resp.StatusCode, lerr)
			}
			if hop >= c.maxRedirects {
				return nil, fmt.Errorf("fetch %s: %w (limit %d)", rawURL, downloader.ErrTooManyRedirects, c.maxRedirects)
			}
			c.log.Debug("redirect", "from", target, "to", loc.String(), "status", resp.StatusCode)
			target = loc.String()
			continue
		}

		if resp.StatusCode != http.StatusOK {
			_ = resp.Body.Close()
			return nil, &downloader.HTTPStatusError{URL: target, Code: resp.StatusCode}
		}
		return resp, nil
	}
}

func isRedirect(code int) bool {
	switch code {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

// writeAtomic copies r into a temp file in dest's directory and renames it
// to dest. The temp file is removed on every failure path.
func writeAtomic(dest string, r io.Reader) (int64, error) {
	dir := filepath.Dir(dest)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dest)+".*.part")
	if err != nil {
		return 0, err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	n, err := io.Copy(tmp, r)
	if err != nil {
		return n, &readError{err}
	}
	if err := tmp.Close(); err != nil {
		return n, err
	}
	if err := os.Rename(tmpName, dest); err != nil {
		return n, err
	}
	committed = true
	return n, nil
}

// readError marks a failure that happened while copying the body. io.Copy
// does not distinguish read from write failures, so anything surfacing
// here is treated as a network failure unless it is a filesystem error.
type readError struct{ err error }

func (e *readError) Error() string { return e.err.Error() }

func (e *readError) Unwrap() error { return e.err }

func isNetErr(err error) bool {
	var re *readError
	if !errors.As(err, &re) {
		return false
	}
	var pe *os.PathError
	return !errors.As(re.err, &pe)
}
