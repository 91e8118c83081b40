// Package rest implements the gateway against a hosted REST-over-Postgres
// backend: PostgREST tables and RPCs, a GoTrue auth server and an object
// storage API, all behind one base URL.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/dom/pulse/internal/domain"
	"github.com/dom/pulse/internal/gateway"
)

// Client talks to the backend. One Client implements every gateway
// capability; the current session lives in its notifier only for the
// lifetime of the process.
type Client struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client
	notifier   *gateway.Notifier
	now        func() time.Time
	log        *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

func WithLogger(log *slog.Logger) Option {
	return func(c *Client) { c.log = log }
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// NewClient creates a client for the backend at baseURL using the project's
// public anon key.
func NewClient(baseURL, anonKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		anonKey: anonKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		notifier: gateway.NewNotifier(),
		now:      time.Now,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Gateway exposes the client through the capability surface.
func (c *Client) Gateway() *gateway.Gateway {
	return &gateway.Gateway{
		Auth:        c,
		Profiles:    c,
		Events:      c,
		TicketTypes: c,
		Orders:      c,
		RSVPs:       c,
		Tickets:     c,
		Storage:     c,
	}
}

// request describes one call. Body is JSON-encoded unless RawBody is set.
type request struct {
	Method      string
	Path        string
	Query       url.Values
	Body        interface{}
	RawBody     []byte
	ContentType string
	Headers     map[string]string
	// Token overrides the bearer token; empty means session token or anon key.
	Token string
}

func (c *Client) do(ctx context.Context, r request, out interface{}) error {
	var bodyReader io.Reader
	contentType := r.ContentType
	switch {
	case r.RawBody != nil:
		bodyReader = bytes.NewReader(r.RawBody)
	case r.Body != nil:
		jsonBody, err := json.Marshal(r.Body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
		if contentType == "" {
			contentType = "application/json"
		}
	}

	target := c.baseURL + r.Path
	if len(r.Query) > 0 {
		target += "?" + r.Query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, target, bodyReader)
	if err != nil {
		return err
	}

	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+c.bearer(r.Token))
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &domain.RemoteError{Kind: domain.ErrTransport, Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &domain.RemoteError{Kind: domain.ErrTransport, Status: resp.StatusCode, Message: err.Error()}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		remoteErr := decodeError(resp.StatusCode, body, isAuthPath(r.Path))
		c.log.Debug("backend request failed",
			"method", r.Method,
			"path", r.Path,
			"status", resp.StatusCode,
			"code", remoteErr.Code,
		)
		return remoteErr
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", r.Method, r.Path, err)
	}
	return nil
}

func (c *Client) bearer(override string) string {
	if override != "" {
		return override
	}
	if session := c.notifier.Current(); session != nil && session.AccessToken != "" {
		return session.AccessToken
	}
	return c.anonKey
}
