// Package scriptapi is the HTTP client for the scriptApi endpoints:
//
//	GET  {base}/scriptApi/file?path=<path>      raw file text
//	POST {base}/scriptApi/updateFile            form: path, content
//	GET  {base}/scriptApi/scripts               {"data": [Script...]}
//
// The base URL is injected at construction and normalized to end with a slash, so
// "http://host/ci" and "http://host/ci/" produce identical request URLs.
package scriptapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"scriptview/internal/scripts"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"
)

const (
	PathFile       = "scriptApi/file"
	PathUpdateFile = "scriptApi/updateFile"
	PathScripts    = "scriptApi/scripts"
)

// DefaultTimeout bounds a single request when the caller's context has no deadline.
const DefaultTimeout = 30 * time.Second

// maxErrorBody caps how much of a failed response body is kept on StatusError.
const maxErrorBody = 4 << 10

type Client struct {
	base    *url.URL
	http    *http.Client
	timeout time.Duration
	log     *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

func NewClient(baseURL string, opts ...Option) (*Client, error) {
	base, err := NormalizeBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	c := &Client{
		base:    base,
		http:    http.DefaultClient,
		timeout: DefaultTimeout,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NormalizeBaseURL parses s and guarantees a trailing slash on the path.
func NormalizeBaseURL(s string) (*url.URL, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("scriptapi: missing base url")
	}
	u, err := url.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("scriptapi: invalid base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("scriptapi: base url must be absolute: %q", s)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	if u.RawPath != "" && !strings.HasSuffix(u.RawPath, "/") {
		u.RawPath += "/"
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}

// BaseURL returns the normalized base URL (always ending in "/").
func (c *Client) BaseURL() string { return c.base.String() }

// Endpoint resolves a relative endpoint path against the base URL.
func (c *Client) Endpoint(rel string, q url.Values) string {
	u := c.base.ResolveReference(&url.URL{Path: rel})
	if len(q) > 0 {
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// File fetches the raw text of path. The body is returned unchanged.
func (c *Client) File(ctx context.Context, path string) (string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	endpoint := c.Endpoint(PathFile, url.Values{"path": {path}})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	b, err := c.do(req, "file")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// UpdateFile replaces the content of path on the server.
func (c *Client) UpdateFile(ctx context.Context, path string, content string) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	form := url.Values{"path": {path}, "content": {content}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint(PathUpdateFile, nil), strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	_, err = c.do(req, "updateFile")
	return err
}

type scriptsEnvelope struct {
	Data []scripts.Script `json:"data"`
}

// Scripts lists the scripts the server offers for selection.
func (c *Client) Scripts(ctx context.Context) ([]scripts.Script, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Endpoint(PathScripts, nil), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	b, err := c.do(req, "scripts")
	if err != nil {
		return nil, err
	}
	var env scriptsEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("scriptapi: decode scripts: %w", err)
	}
	if env.Data == nil {
		env.Data = []scripts.Script{}
	}
	return env.Data, nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); ok || c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *Client) do(req *http.Request, op string) ([]byte, error) {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug("request failed", zap.String("op", op), zap.String("url", req.URL.String()), zap.Error(err))
		return nil, fmt.Errorf("scriptapi: %s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.log.Debug("request rejected", zap.String("op", op), zap.Int("status", resp.StatusCode), zap.Duration("took", time.Since(start)))
		return nil, &StatusError{Op: op, Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("scriptapi: %s: read body: %w", op, err)
	}
	c.log.Debug("request done", zap.String("op", op), zap.Int("status", resp.StatusCode), zap.Int("bytes", len(b)), zap.Duration("took", time.Since(start)))
	return b, nil
}
