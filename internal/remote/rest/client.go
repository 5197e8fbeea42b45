// Package rest implements the remote service interfaces over the backend's JSON HTTP API.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MuhammadAbdiel/aora-app/internal/api"
	"github.com/MuhammadAbdiel/aora-app/internal/logging"
	"github.com/MuhammadAbdiel/aora-app/internal/remote"
)

// DefaultTimeout bounds a single request when Config.Timeout is unset.
const DefaultTimeout = 30 * time.Second

// Config describes how to reach the backend.
type Config struct {
	Endpoint   string
	ProjectID  string
	Platform   string
	Timeout    time.Duration
	HTTPClient *http.Client
	Sessions   SessionStore
}

// Client speaks the backend's HTTP API. It is safe for concurrent use.
type Client struct {
	endpoint  string
	project   string
	userAgent string
	http      *http.Client
	sessions  SessionStore
	urls      remote.URLBuilder
}

// New validates cfg and constructs a client. Without a session store the session only
// lives in memory.
func New(cfg Config) (*Client, error) {
	endpoint := strings.TrimSuffix(strings.TrimSpace(cfg.Endpoint), "/")
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid endpoint %q", cfg.Endpoint)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	sessions := cfg.Sessions
	if sessions == nil {
		sessions = &MemorySessionStore{}
	}

	userAgent := "aora-go"
	if cfg.Platform != "" {
		userAgent += " (" + cfg.Platform + ")"
	}

	return &Client{
		endpoint:  endpoint,
		project:   cfg.ProjectID,
		userAgent: userAgent,
		http:      httpClient,
		sessions:  sessions,
		urls:      remote.URLBuilder{Endpoint: endpoint, Project: cfg.ProjectID},
	}, nil
}

// Remote exposes the client through the remote service interfaces.
func (c *Client) Remote() remote.Client {
	return remote.Client{
		Accounts:  accounts{c},
		Databases: databases{c},
		Storage:   storage{c},
		Avatars:   avatars{c},
	}
}

type request struct {
	method      string
	path        string
	query       url.Values
	body        io.Reader
	contentType string
}

func jsonRequest(method, path string, payload any) (request, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return request{}, fmt.Errorf("encode request: %w", err)
	}
	return request{method: method, path: path, body: bytes.NewReader(data), contentType: "application/json"}, nil
}

// do sends req and decodes a successful response into out when out is non-nil.
func (c *Client) do(ctx context.Context, req request, out any) error {
	logger := logging.FromContext(ctx)

	target := c.endpoint + req.path
	if encoded := req.query.Encode(); encoded != "" {
		target += "?" + encoded
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, req.body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}
	if c.project != "" {
		httpReq.Header.Set(api.ProjectHeader, c.project)
	}

	secret, err := c.sessions.Load()
	if err != nil {
		logger.Warn("session store unreadable", "error", err)
	}
	if secret != "" {
		httpReq.Header.Set(api.SessionHeader, secret)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %v", remote.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	logger.Debug("remote request",
		slog.String("method", req.method),
		slog.String("path", req.path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", remote.ErrUnavailable, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	var apiErr api.Error
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(body, &apiErr); err != nil || apiErr.Code == 0 {
		apiErr.Code = resp.StatusCode
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr.Err()
}

// clearSession forgets the stored secret, logging rather than failing when the store
// cannot be written.
func (c *Client) clearSession(ctx context.Context) {
	if err := c.sessions.Clear(); err != nil {
		logging.FromContext(ctx).Warn("session store not cleared", "error", err)
	}
}

func isSessionGone(err error) bool {
	return errors.Is(err, remote.ErrUnauthorized) || errors.Is(err, remote.ErrNotFound)
}
