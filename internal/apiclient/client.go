// Package apiclient talks to the marketplace REST API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"pkt.systems/pslog"
	"pkt.systems/wayfare/internal/logx"
	"pkt.systems/wayfare/internal/metrics"
	"pkt.systems/wayfare/schema"
)

const (
	// DefaultTimeout bounds a single API call.
	DefaultTimeout = 30 * time.Second
	// DefaultUserAgent is sent when none is configured.
	DefaultUserAgent = "wayfare"

	maxResponseBytes = 1 << 20
)

// TokenSource returns the bearer token for outgoing calls.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func(ctx context.Context) (string, error)

// Token implements TokenSource.
func (f TokenFunc) Token(ctx context.Context) (string, error) {
	return f(ctx)
}

// StaticToken is a fixed bearer token. An empty token reports ErrNoCredentials.
type StaticToken string

// Token implements TokenSource.
func (t StaticToken) Token(context.Context) (string, error) {
	if strings.TrimSpace(string(t)) == "" {
		return "", schema.ErrNoCredentials
	}
	return string(t), nil
}

// Config configures a Client.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	UserAgent  string
	HTTPClient *http.Client
}

// Client is a marketplace API client.
type Client struct {
	base      *url.URL
	tokens    TokenSource
	http      *http.Client
	userAgent string
	metrics   *metrics.Metrics
	log       pslog.Logger
}

// New builds a client. tokens may be nil for anonymous calls such as Login.
func New(cfg Config, tokens TokenSource, m *metrics.Metrics, logger pslog.Logger) (*Client, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		return nil, errors.New("api base url is required")
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse api base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("api base url must be http or https: %q", raw)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("api base url must include a host: %q", raw)
	}
	base.Path = strings.TrimRight(base.Path, "/")
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &Client{
		base:      base,
		tokens:    tokens,
		http:      httpClient,
		userAgent: userAgent,
		metrics:   m,
		log:       logger,
	}, nil
}

// WithTokenSource returns a copy of the client using tokens.
func (c *Client) WithTokenSource(tokens TokenSource) *Client {
	clone := *c
	clone.tokens = tokens
	return &clone
}

// BaseURL returns the configured API root.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// LoginResult is returned by Login.
type LoginResult struct {
	Token   string
	Session *schema.AuthSession
}

// Me fetches the current auth session.
func (c *Client) Me(ctx context.Context) (*schema.AuthSession, error) {
	var session schema.AuthSession
	if err := c.do(ctx, http.MethodGet, "/auth/me", "/auth/me", nil, &session, true); err != nil {
		return nil, err
	}
	if session.Agencies == nil {
		session.Agencies = []schema.AgencyMembership{}
	}
	return &session, nil
}

// Login exchanges email and password for a bearer token.
func (c *Client) Login(ctx context.Context, email, password string) (LoginResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return LoginResult{}, fmt.Errorf("%w: email and password are required", schema.ErrInvalidRequest)
	}
	var resp struct {
		Token       string                    `json:"token"`
		AccessToken string                    `json:"accessToken"`
		User        *schema.User              `json:"user"`
		Agencies    []schema.AgencyMembership `json:"agencies"`
	}
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", "/auth/login", body, &resp, false); err != nil {
		return LoginResult{}, err
	}
	token := resp.Token
	if token == "" {
		token = resp.AccessToken
	}
	if token == "" {
		return LoginResult{}, errors.New("login response did not include a token")
	}
	agencies := resp.Agencies
	if agencies == nil {
		agencies = []schema.AgencyMembership{}
	}
	return LoginResult{
		Token:   token,
		Session: &schema.AuthSession{User: resp.User, Agencies: agencies},
	}, nil
}

func (c *Client) do(ctx context.Context, method, endpoint, path string, in any, out any, auth bool) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, endpoint, err)
		}
		body = bytes.NewReader(data)
	}
	// path is already escaped; ids inside it may carry reserved characters.
	target := *c.base
	target.RawPath = c.base.EscapedPath() + path
	unescaped, err := url.PathUnescape(target.RawPath)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	target.Path = unescaped
	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	requestID, ok := logx.RequestID(ctx)
	if !ok {
		requestID = uuid.NewString()
	}
	req.Header.Set("X-Request-ID", requestID)
	if auth && c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.APIRequest(method, endpoint, 0, time.Since(start))
		if c.log != nil {
			c.log.Debug("api request failed", "method", method, "path", path, "request_id", requestID, "err", err)
		}
		return err
	}
	defer resp.Body.Close()
	data, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	elapsed := time.Since(start)
	c.metrics.APIRequest(method, endpoint, resp.StatusCode, elapsed)
	if c.log != nil {
		c.log.Debug("api request", "method", method, "path", path, "status", resp.StatusCode, "request_id", requestID, "duration_ms", elapsed.Milliseconds())
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &HTTPError{
			Method:  method,
			Path:    path,
			Status:  resp.StatusCode,
			Message: errorMessage(data),
		}
	}
	if readErr != nil {
		return fmt.Errorf("read %s %s: %w", method, endpoint, readErr)
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, endpoint, err)
	}
	return nil
}
