// Package hydrate fetches the canonical smartmenu state document and the
// server-rendered page used for bootstrap.
package hydrate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"

	"smartmenu/wire"
)

// ErrNoSlug is returned when no smartmenu slug is known.
var ErrNoSlug = errors.New("hydrate: no smartmenu slug")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("hydrate: %s: HTTP %d", e.URL, e.Code)
}

type Config struct {
	BaseURL    string
	Timeout    time.Duration
	MaxBytes   int64
	UserAgent  string
	HTTPClient *http.Client
	Now        func() time.Time
}

// Client talks to the ordering server. It holds no per-request state and is
// safe for concurrent use.
type Client struct {
	base     string
	maxBytes int64
	ua       string
	http     *http.Client
	now      func() time.Time
}

func NewClient(c Config) *Client {
	hc := c.HTTPClient
	if hc == nil {
		timeout := c.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	maxBytes := c.MaxBytes
	if maxBytes <= 0 {
		maxBytes = 4 << 20
	}
	ua := c.UserAgent
	if ua == "" {
		ua = "smartmenu-agent/1.0"
	}
	now := c.Now
	if now == nil {
		now = time.Now
	}
	return &Client{
		base:     strings.TrimRight(c.BaseURL, "/"),
		maxBytes: maxBytes,
		ua:       ua,
		http:     hc,
		now:      now,
	}
}

// StateURL builds the cache-busted state URL for slug.
func (c *Client) StateURL(slug string) string {
	ts := strconv.FormatInt(c.now().UnixMilli(), 10)
	return c.base + "/smartmenus/" + url.PathEscape(slug) + ".json?ts=" + ts
}

// PageURL is the server-rendered ordering page for slug.
func (c *Client) PageURL(slug string) string {
	return c.base + "/smartmenus/" + url.PathEscape(slug)
}

// Fetch returns the current state document for slug. Every request carries a
// fresh ts parameter and no-cache headers so no intermediate cache can serve
// a stale bill.
func (c *Client) Fetch(ctx context.Context, slug string) (*wire.Payload, error) {
	if slug == "" {
		return nil, ErrNoSlug
	}
	body, err := c.get(ctx, c.StateURL(slug), "application/json")
	if err != nil {
		return nil, err
	}
	p, err := wire.Decode(body)
	if err != nil {
		return nil, fmt.Errorf("hydrate: %s: %w", slug, err)
	}
	return p, nil
}

// FetchPage returns the parsed ordering page for slug.
func (c *Client) FetchPage(ctx context.Context, slug string) (*html.Node, error) {
	if slug == "" {
		return nil, ErrNoSlug
	}
	body, err := c.get(ctx, c.PageURL(slug), "text/html")
	if err != nil {
		return nil, err
	}
	root, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("hydrate: parse page: %w", err)
	}
	return root, nil
}

func (c *Client) get(ctx context.Context, u, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("hydrate: new request: %w", err)
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")
	req.Header.Set("User-Agent", c.ua)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("hydrate: do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{Code: resp.StatusCode, URL: u}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("hydrate: read body: %w", err)
	}
	if int64(len(body)) > c.maxBytes {
		return nil, fmt.Errorf("hydrate: response exceeds %d bytes", c.maxBytes)
	}
	return body, nil
}
