package openai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"plenary/internal/config"
	"plenary/internal/services"
)

const defaultHTTPTimeout = 120 * time.Second

// Client wraps the Azure OpenAI REST API for the four model operations the
// pipeline needs: transcription, entity extraction, summarization, and
// embeddings. The client performs single attempts; retry policy belongs to
// the stage executor driving it.
type Client struct {
	cfg        config.OpenAI
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs a client from the OpenAI section of the configuration.
func NewClient(cfg config.OpenAI, opts ...Option) (*Client, error) {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.Endpoint = strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	if cfg.APIKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, "openai", "new client",
			"API key is required", nil)
	}
	if cfg.Endpoint == "" {
		return nil, services.Wrap(services.ErrConfiguration, "openai", "new client",
			"endpoint is required", nil)
	}

	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// HealthCheck verifies the endpoint and credentials by issuing a minimal
// embeddings request.
func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.EmbedBatch(ctx, []string{"ping"})
	return err
}

func (c *Client) deploymentURL(deployment, operation string) string {
	return fmt.Sprintf("%s/openai/deployments/%s/%s?api-version=%s",
		c.cfg.Endpoint, url.PathEscape(deployment), operation,
		url.QueryEscape(c.cfg.APIVersion))
}

type httpStatusError struct {
	StatusCode int
	Body       string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

// classify maps a raw request failure onto the error taxonomy. Rate limits,
// server errors, and network timeouts are retryable under the collaborator
// marker; credential and request-shape problems are terminal.
func (c *Client) classify(marker error, operation string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return services.Wrap(services.ErrCancelled, "openai", operation, "request cancelled", err)
	}

	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusUnauthorized,
			statusErr.StatusCode == http.StatusForbidden:
			return services.Wrap(services.ErrConfiguration, "openai", operation,
				"credentials rejected", err)
		case statusErr.StatusCode == http.StatusNotFound:
			return services.Wrap(services.ErrNotFound, "openai", operation,
				"deployment not found", err)
		case statusErr.StatusCode == http.StatusRequestTimeout,
			statusErr.StatusCode == http.StatusTooManyRequests,
			statusErr.StatusCode >= http.StatusInternalServerError:
			return services.Wrap(marker, "openai", operation,
				fmt.Sprintf("upstream returned %d", statusErr.StatusCode), err)
		default:
			return services.Wrap(services.ErrValidation, "openai", operation,
				"request rejected", err)
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, "openai", operation, "request timed out", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return services.Wrap(services.ErrTimeout, "openai", operation, "request timed out", err)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return services.Wrap(marker, "openai", operation, "request failed", err)
	}
	return services.Wrap(marker, "openai", operation, "request failed", err)
}
