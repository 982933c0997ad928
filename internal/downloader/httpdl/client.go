package httpdl

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/tinoosan/modsync/internal/downloader"
)

const (
	DefaultTimeout      = 10 * time.Minute
	DefaultMaxRedirects = 10
)

// Options configures a Client. Zero values fall back to the defaults.
type Options struct {
	// Timeout is the absolute ceiling for one fetch, redirects included.
	Timeout      time.Duration
	MaxRedirects int
	UserAgent    string
	// Token is sent as a bearer Authorization header to the host of the
	// original URL. It is dropped once a redirect leaves that host.
	Token     string
	Transport http.RoundTripper
	Logger    *slog.Logger
}

// Client fetches archives over HTTP(S). Redirects are followed by the
// client itself so each hop can be counted and logged.
type Client struct {
	http         *http.Client
	timeout      time.Duration
	maxRedirects int
	userAgent    string
	token        string
	log          *slog.Logger
}

var _ downloader.Fetcher = (*Client)(nil)

func NewClient(o Options) *Client {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.MaxRedirects <= 0 {
		o.MaxRedirects = DefaultMaxRedirects
	}
	if o.UserAgent == "" {
		o.UserAgent = "modsync"
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return &Client{
		http: &http.Client{
			Transport: o.Transport,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		timeout:      o.Timeout,
		maxRedirects: o.MaxRedirects,
		userAgent:    o.UserAgent,
		token:        o.Token,
		log:          o.Logger,
	}
}

func (c *Client) HTTP() *http.Client { return c.http }

func (c *Client) MaxRedirects() int { return c.maxRedirects }
