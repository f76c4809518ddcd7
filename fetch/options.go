package fetch

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/sig-0/centavo/metrics"
)

type Option func(c *Client)

// WithLogger specifies the logger for the client
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithHTTPClient specifies the underlying HTTP client.
// Its timeout is the per-attempt timeout
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.client = hc
	}
}

// WithTimeout specifies the per-attempt timeout. Defaults to 30s
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithInitialBackoff specifies the wait before the first retry.
// Every following wait doubles. Defaults to 1s
func WithInitialBackoff(d time.Duration) Option {
	return func(c *Client) {
		c.initialBackoff = d
	}
}

// WithMaxAttempts specifies the total number of attempts, the first one included.
// Defaults to 5
func WithMaxAttempts(n uint) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithMetrics specifies the metrics sink for fetch attempts
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}
