package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/sig-0/centavo/metrics"
)

const (
	DefaultTimeout        = 30 * time.Second
	DefaultInitialBackoff = time.Second
	DefaultMaxAttempts    = 5

	maxBodySize = 64 << 20
)

var (
	// ErrMalformedResponse is returned when a response does not match the expected shape.
	// It is never retried
	ErrMalformedResponse = errors.New("malformed response")

	// ErrRetriesExhausted is returned when every attempt failed with a transient error
	ErrRetriesExhausted = errors.New("retries exhausted")

	errInvalidURL = errors.New("invalid url")
)

// retryableStatuses are the HTTP statuses considered transient
var retryableStatuses = map[int]struct{}{
	http.StatusTooManyRequests:     {},
	http.StatusInternalServerError: {},
	http.StatusBadGateway:          {},
	http.StatusServiceUnavailable:  {},
	http.StatusGatewayTimeout:      {},
}

// StatusError is a non-2xx response
type StatusError struct {
	URL        string // without the query string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("invalid status code received from %s: %d", e.URL, e.StatusCode)
}

// Retryable reports whether the status is transient
func (e *StatusError) Retryable() bool {
	_, ok := retryableStatuses[e.StatusCode]

	return ok
}

// Client issues JSON GET requests, retrying transient failures
// with exponential backoff (no jitter)
type Client struct {
	client  *http.Client
	logger  *slog.Logger
	metrics *metrics.Metrics

	initialBackoff time.Duration
	maxAttempts    uint
}

// New creates a new fetch client
func New(opts ...Option) *Client {
	c := &Client{
		client: &http.Client{
			Timeout: DefaultTimeout,
		},
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		initialBackoff: DefaultInitialBackoff,
		maxAttempts:    DefaultMaxAttempts,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// GetJSON fetches the URL with the given query params, and decodes the JSON body into out
func (c *Client) GetJSON(ctx context.Context, rawURL string, params url.Values, out any) error {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("%w: %q", errInvalidURL, rawURL)
	}

	if len(params) > 0 {
		q := u.Query()

		for key, values := range params {
			for _, v := range values {
				q.Add(key, v)
			}
		}

		u.RawQuery = q.Encode()
	}

	var (
		target  = redact(u)
		attempt uint

		lastTransient bool
	)

	operation := func() ([]byte, error) {
		attempt++

		body, err := c.get(ctx, u.String(), target)
		if err == nil {
			c.metrics.ObserveFetchAttempt(u.Host, metrics.OutcomeSuccess)

			return body, nil
		}

		var permanent *backoff.PermanentError

		lastTransient = !errors.As(err, &permanent)

		switch {
		case !lastTransient:
			c.metrics.ObserveFetchAttempt(u.Host, metrics.OutcomePermanent)
		case attempt >= c.maxAttempts:
			c.metrics.ObserveFetchAttempt(u.Host, metrics.OutcomeExhausted)
		default:
			c.metrics.ObserveFetchAttempt(u.Host, metrics.OutcomeRetry)
		}

		return nil, err
	}

	body, err := backoff.Retry(
		ctx,
		operation,
		backoff.WithBackOff(c.newBackOff()),
		backoff.WithMaxTries(c.maxAttempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.metrics.ObserveFetchRetry(u.Host)

			c.logger.Warn(
				"transient fetch failure, retrying",
				"url", target,
				"attempt", attempt,
				"backoff", next.String(),
				"err", err,
			)
		}),
	)
	if err != nil {
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			err = permanent.Unwrap()
		}

		if lastTransient && ctx.Err() == nil {
			return fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempt, err)
		}

		return err
	}

	if err = json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: unable to decode body from %s: %w", ErrMalformedResponse, target, err)
	}

	return nil
}

// get executes a single attempt. Permanent failures are wrapped with backoff.Permanent
func (c *Client) get(ctx context.Context, u, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("unable to create new GET request: %w", err))
	}

	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}

		// url.Error carries the full URL, query (and credentials) included
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}

		return nil, fmt.Errorf("unable to execute GET request to %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := &StatusError{
			URL:        target,
			StatusCode: resp.StatusCode,
		}

		if statusErr.Retryable() {
			return nil, statusErr
		}

		return nil, backoff.Permanent(statusErr)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("unable to read response body from %s: %w", target, err)
	}

	return body, nil
}

// newBackOff creates the doubling backoff policy, starting at the initial interval
func (c *Client) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()

	b.InitialInterval = c.initialBackoff
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = c.initialBackoff << c.maxAttempts

	return b
}

// redact strips the query string, which can hold API credentials
func redact(u *url.URL) string {
	return u.Scheme + "://" + u.Host + u.Path
}
