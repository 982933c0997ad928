// Package modio is a small read-only client for the mod.io REST API. It
// lists the user's subscriptions and turns them into data.Game values.
package modio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultTimeout = 30 * time.Second
	pageSize       = 100
)

// ErrNoToken is returned by New when no API token is configured.
var ErrNoToken = errors.New("modio: api token is required")

// APIError is the error object mod.io returns in non-2xx bodies.
type APIError struct {
	Status   int    `json:"-"`
	Code     int    `json:"code"`
	ErrorRef int    `json:"error_ref"`
	Msg      string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("modio: status %d", e.Status)
	}
	return fmt.Sprintf("modio: %s (status %d, ref %d)", e.Msg, e.Status, e.ErrorRef)
}

type Options struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	// HTTPClient overrides the default client; Timeout is ignored then.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

type Client struct {
	base  *url.URL
	token string
	http  *http.Client
	log   *slog.Logger
}

func New(o Options) (*Client, error) {
	if o.Token == "" {
		return nil, ErrNoToken
	}
	base, err := url.Parse(strings.TrimRight(o.BaseURL, "/") + "/")
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("modio: invalid api url %q", o.BaseURL)
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: o.Timeout}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return &Client{base: base, token: o.Token, http: o.HTTPClient, log: o.Logger}, nil
}

// get decodes the JSON body of GET base/path?query into v.
func (c *Client) get(ctx context.Context, path string, query url.Values, v any) error {
	u := c.base.JoinPath(path)
	if query != nil {
		u.RawQuery = query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("modio: GET %s: %w", path, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	c.log.Debug("modio request", "path", path, "status", resp.StatusCode, "dur_ms", time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("modio: decode %s: %w", path, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	var body struct {
		Error *APIError `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(raw, &body) == nil && body.Error != nil {
		body.Error.Status = resp.StatusCode
		return body.Error
	}
	return &APIError{Status: resp.StatusCode, Msg: strings.TrimSpace(string(raw))}
}

func pageQuery(offset int) url.Values {
	return url.Values{
		"_offset": {strconv.Itoa(offset)},
		"_limit":  {strconv.Itoa(pageSize)},
	}
}
