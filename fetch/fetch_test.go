package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sig-0/centavo/metrics"
)

const testBackoff = 20 * time.Millisecond

type payload struct {
	Value string `json:"value"`
}

// statusSequence serves the given statuses in order, then 200 with a payload
func statusSequence(t *testing.T, calls *atomic.Int32, statuses ...int) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		n := int(calls.Add(1))

		if n <= len(statuses) {
			w.WriteHeader(statuses[n-1])

			return
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"value":"ok"}`))
	}))

	t.Cleanup(srv.Close)

	return srv
}

func TestClient_GetJSON(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32

		var (
			srv = statusSequence(t, &calls)
			c   = New(WithInitialBackoff(testBackoff))

			out payload
		)

		require.NoError(t, c.GetJSON(context.Background(), srv.URL, nil, &out))

		assert.Equal(t, "ok", out.Value)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("query params", func(t *testing.T) {
		t.Parallel()

		var captured url.Values

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			captured = r.URL.Query()

			_, _ = w.Write([]byte(`{"value":"ok"}`))
		}))
		t.Cleanup(srv.Close)

		var (
			c      = New()
			out    payload
			params = url.Values{
				"format":   {"json"},
				"per_page": {"400"},
			}
		)

		require.NoError(t, c.GetJSON(context.Background(), srv.URL+"/country?lang=en", params, &out))

		assert.Equal(t, "json", captured.Get("format"))
		assert.Equal(t, "400", captured.Get("per_page"))
		assert.Equal(t, "en", captured.Get("lang"))
	})

	t.Run("retries transient statuses with doubling backoff", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32

		var (
			reg = prometheus.NewRegistry()
			m   = metrics.New(reg)

			srv = statusSequence(t, &calls, http.StatusServiceUnavailable, http.StatusServiceUnavailable)
			c   = New(WithInitialBackoff(testBackoff), WithMetrics(m))

			out payload
		)

		start := time.Now()

		require.NoError(t, c.GetJSON(context.Background(), srv.URL, nil, &out))

		elapsed := time.Since(start)

		assert.Equal(t, "ok", out.Value)
		assert.Equal(t, int32(3), calls.Load())

		// 1 + 2 backoff units
		assert.GreaterOrEqual(t, elapsed, 3*testBackoff)
		assert.Less(t, elapsed, 5*time.Second)

		host, err := url.Parse(srv.URL)
		require.NoError(t, err)

		assert.Equal(t, 2.0, testutil.ToFloat64(m.FetchRetries.WithLabelValues(host.Host)))
		assert.Equal(t, 1.0, testutil.ToFloat64(m.FetchAttempts.WithLabelValues(host.Host, metrics.OutcomeSuccess)))
	})

	t.Run("every retryable status", func(t *testing.T) {
		t.Parallel()

		for _, status := range []int{
			http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout,
		} {
			var calls atomic.Int32

			var (
				srv = statusSequence(t, &calls, status)
				c   = New(WithInitialBackoff(time.Millisecond))
				out payload
			)

			require.NoError(t, c.GetJSON(context.Background(), srv.URL, nil, &out), "status %d", status)
			assert.Equal(t, int32(2), calls.Load(), "status %d", status)
		}
	})

	t.Run("permanent status is not retried", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32

		var (
			srv = statusSequence(t, &calls, http.StatusNotFound)
			c   = New(WithInitialBackoff(testBackoff))
			out payload
		)

		err := c.GetJSON(context.Background(), srv.URL, nil, &out)
		require.Error(t, err)

		var statusErr *StatusError

		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
		assert.False(t, statusErr.Retryable())
		assert.NotErrorIs(t, err, ErrRetriesExhausted)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("retries exhausted", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32

		srv := statusSequence(
			t,
			&calls,
			http.StatusBadGateway,
			http.StatusBadGateway,
			http.StatusBadGateway,
			http.StatusBadGateway,
			http.StatusBadGateway,
		)

		var (
			c   = New(WithInitialBackoff(time.Millisecond))
			out payload
		)

		err := c.GetJSON(context.Background(), srv.URL, nil, &out)

		require.ErrorIs(t, err, ErrRetriesExhausted)

		var statusErr *StatusError

		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
		assert.Equal(t, int32(DefaultMaxAttempts), calls.Load())
	})

	t.Run("max attempts option", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32

		var (
			srv = statusSequence(t, &calls, http.StatusBadGateway, http.StatusBadGateway, http.StatusBadGateway)
			c   = New(WithInitialBackoff(time.Millisecond), WithMaxAttempts(2))
			out payload
		)

		assert.ErrorIs(t, c.GetJSON(context.Background(), srv.URL, nil, &out), ErrRetriesExhausted)
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("malformed body is not retried", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)

			_, _ = w.Write([]byte(`{not json`))
		}))
		t.Cleanup(srv.Close)

		var (
			c   = New(WithInitialBackoff(testBackoff))
			out payload
		)

		assert.ErrorIs(t, c.GetJSON(context.Background(), srv.URL, nil, &out), ErrMalformedResponse)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("credentials are not leaked", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32

		var (
			srv = statusSequence(t, &calls, http.StatusUnauthorized)
			c   = New()
			out payload
		)

		err := c.GetJSON(
			context.Background(),
			srv.URL+"/latest",
			url.Values{"access_key": {"super-secret"}},
			&out,
		)

		require.Error(t, err)
		assert.NotContains(t, err.Error(), "super-secret")
		assert.Contains(t, err.Error(), "/latest")
	})

	t.Run("ctx canceled", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32

		var (
			srv = statusSequence(t, &calls, http.StatusServiceUnavailable, http.StatusServiceUnavailable)
			c   = New(WithInitialBackoff(time.Second))
			out payload
		)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		err := c.GetJSON(ctx, srv.URL, nil, &out)

		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.NotErrorIs(t, err, ErrRetriesExhausted)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("invalid url", func(t *testing.T) {
		t.Parallel()

		var out payload

		assert.ErrorIs(t, New().GetJSON(context.Background(), "not a url", nil, &out), errInvalidURL)
	})
}
