// Package client is the typed HTTP client for the registry and share-node
// APIs. The daemons use it for self-registration and server-to-server
// forwarding; sharectl uses it for everything.
package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/nodemesh/datashare/models"
)

const (
	defaultTimeout   = 30 * time.Second
	retryAttempts    = 3
	retryInitialWait = 500 * time.Millisecond
)

// ErrNotFound is returned for 404 responses, e.g. an unknown node id or a
// share whose invitation was never created.
var ErrNotFound = errors.New("client: not found")

// RemoteError carries the structured error body a service returned with a
// non-2xx status.
type RemoteError struct {
	StatusCode int
	Detail     models.Error
}

func (e *RemoteError) Error() string {
	if e.Detail.Message != "" {
		return fmt.Sprintf("remote error (status %d): %s", e.StatusCode, e.Detail.Message)
	}
	return fmt.Sprintf("remote error (status %d)", e.StatusCode)
}

type Config struct {
	BaseURL    string
	Timeout    time.Duration
	SkipVerify bool
	Logger     *slog.Logger
}

// Client talks to one service instance identified by its base URL.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	logger     *slog.Logger
}

func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("baseURL cannot be empty")
	}
	baseURL, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL %q: %w", cfg.BaseURL, err)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	transport := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: cfg.SkipVerify},
	}

	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		logger: cfg.Logger.With("component", "client", "base_url", baseURL.String()),
	}, nil
}

// doRequest performs one round trip. Non-2xx responses are decoded into a
// RemoteError so callers keep the remote's code and message; 404s are
// additionally marked with ErrNotFound so the distinction survives
// wrapping.
func (c *Client) doRequest(ctx context.Context, method, path string, query map[string]string, body any, target any) error {
	// The path arrives escaped; parsing keeps the escaping intact instead
	// of re-encoding the percent signs.
	ref, err := url.Parse(path)
	if err != nil {
		return fmt.Errorf("invalid request path %q: %w", path, err)
	}
	reqURL := c.baseURL.ResolveReference(ref)
	if len(query) > 0 {
		q := reqURL.Query()
		for k, v := range query {
			q.Set(k, v)
		}
		reqURL.RawQuery = q.Encode()
	}

	var reqBody []byte
	if body != nil {
		var err error
		reqBody, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body for %s %s: %w", method, path, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("failed to create request %s %s: %w", method, path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug("Sending request", "method", method, "url", reqURL.String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request %s %s failed: %w", method, reqURL.String(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		remote := &RemoteError{StatusCode: resp.StatusCode}
		if data, readErr := io.ReadAll(resp.Body); readErr == nil {
			// Services embed a models.Error JSON document in the error
			// detail; fall back to the raw text when it isn't one.
			if jsonErr := json.Unmarshal(data, &remote.Detail); jsonErr != nil {
				remote.Detail.Message = string(data)
			}
		}
		c.logger.Warn("Received non-2xx status code",
			"method", method, "url", reqURL.String(), "status_code", resp.StatusCode)
		if resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %w", ErrNotFound, remote)
		}
		return remote
	}

	if target != nil {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return fmt.Errorf("failed to decode response body for %s %s: %w", method, path, err)
		}
	}
	return nil
}

// doIdempotent retries transient failures of safe requests. Transport
// errors and 5xx responses are retried with backoff; 4xx responses are
// definitive and returned immediately.
func (c *Client) doIdempotent(ctx context.Context, method, path string, query map[string]string, body any, target any) error {
	return retry.Do(
		func() error {
			return c.doRequest(ctx, method, path, query, body, target)
		},
		retry.Context(ctx),
		retry.Attempts(retryAttempts),
		retry.Delay(retryInitialWait),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			var remote *RemoteError
			if errors.As(err, &remote) {
				return remote.StatusCode >= 500
			}
			return true
		}),
	)
}
