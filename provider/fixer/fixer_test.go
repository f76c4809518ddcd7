package fixer

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sig-0/centavo/fetch"
	"github.com/sig-0/centavo/storage/types"
)

const testKey = "test-key"

type mockFetcher struct {
	getJSONFn func(ctx context.Context, url string, params url.Values, out any) error
}

func (m *mockFetcher) GetJSON(ctx context.Context, u string, params url.Values, out any) error {
	if m.getJSONFn != nil {
		return m.getJSONFn(ctx, u, params, out)
	}

	return nil
}

// newFixerAPI serves the given body for every request, and checks the access key
func newFixerAPI(t *testing.T, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)

		assert.Equal(t, testKey, r.URL.Query().Get("access_key"))

		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	return srv, &calls
}

func TestNewProvider(t *testing.T) {
	t.Parallel()

	t.Run("missing access key", func(t *testing.T) {
		t.Parallel()

		for _, key := range []string{"", "   "} {
			var called bool

			fetcher := &mockFetcher{
				getJSONFn: func(context.Context, string, url.Values, any) error {
					called = true

					return nil
				},
			}

			p, err := NewProvider(DefaultURL, key, fetcher)

			assert.ErrorIs(t, err, ErrMissingAccessKey)
			assert.Nil(t, p)
			assert.False(t, called)
		}
	})

	t.Run("default url", func(t *testing.T) {
		t.Parallel()

		p, err := NewProvider("", testKey, &mockFetcher{})
		require.NoError(t, err)

		assert.Equal(t, DefaultURL, p.url)
		assert.Equal(t, DefaultAnchor, p.anchor)
	})
}

func TestProvider_Rates(t *testing.T) {
	t.Parallel()

	t.Run("valid table", func(t *testing.T) {
		t.Parallel()

		var (
			srv, calls = newFixerAPI(t, `{
				"success": true,
				"timestamp": 1714560000,
				"base": "EUR",
				"date": "2024-05-01",
				"rates": {"USD": 1.08, "MXN": 19.98, "JPY": 168.2}
			}`)

			fetchedAt = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		)

		p, err := NewProvider(
			srv.URL,
			testKey,
			fetch.New(),
			WithClock(func() time.Time {
				return fetchedAt
			}),
		)
		require.NoError(t, err)

		table, err := p.Rates(context.Background())
		require.NoError(t, err)

		assert.Equal(t, int32(1), calls.Load())
		assert.Equal(t, types.CurrencyEUR, table.Base)
		assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), table.Date)
		assert.Equal(t, fetchedAt, table.FetchedAt)

		assert.InDelta(t, 1.08, table.Rates[types.CurrencyUSD], 1e-9)
		assert.InDelta(t, 1.0, table.Rates[types.CurrencyEUR], 1e-9)

		fx, err := table.Convert(types.CurrencyUSD, types.CurrencyMXN)
		require.NoError(t, err)

		assert.InDelta(t, 18.5, fx, 1e-9)
	})

	t.Run("unsuccessful response", func(t *testing.T) {
		t.Parallel()

		srv, _ := newFixerAPI(t, `{
			"success": false,
			"error": {"code": 101, "type": "invalid_access_key", "info": "You have not supplied a valid API Access Key."}
		}`)

		p, err := NewProvider(srv.URL, testKey, fetch.New())
		require.NoError(t, err)

		_, err = p.Rates(context.Background())

		var apiErr *APIError

		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, 101, apiErr.Code)
		assert.Equal(t, "invalid_access_key", apiErr.Type)
		assert.NotContains(t, err.Error(), testKey)
	})

	t.Run("unsuccessful response without error", func(t *testing.T) {
		t.Parallel()

		srv, _ := newFixerAPI(t, `{"success": false}`)

		p, err := NewProvider(srv.URL, testKey, fetch.New())
		require.NoError(t, err)

		_, err = p.Rates(context.Background())

		var apiErr *APIError

		assert.ErrorAs(t, err, &apiErr)
	})

	t.Run("malformed responses", func(t *testing.T) {
		t.Parallel()

		for _, body := range []string{
			`{"rates": {"USD": 1.08}}`,
			`{"success": true, "base": "EUR"}`,
			`{"success": true, "date": "01/05/2024", "rates": {"USD": 1.08}}`,
			`[1, 2, 3]`,
		} {
			srv, _ := newFixerAPI(t, body)

			p, err := NewProvider(srv.URL, testKey, fetch.New())
			require.NoError(t, err)

			_, err = p.Rates(context.Background())

			assert.ErrorIs(t, err, fetch.ErrMalformedResponse, body)
		}
	})

	t.Run("missing base falls back to the anchor", func(t *testing.T) {
		t.Parallel()

		srv, _ := newFixerAPI(t, `{"success": true, "rates": {"EUR": 0.92, "MXN": 18.5}}`)

		p, err := NewProvider(srv.URL, testKey, fetch.New(), WithAnchor(types.CurrencyUSD))
		require.NoError(t, err)

		table, err := p.Rates(context.Background())
		require.NoError(t, err)

		assert.Equal(t, types.CurrencyUSD, table.Base)
		assert.InDelta(t, 1.0, table.Rates[types.CurrencyUSD], 1e-9)
	})

	t.Run("fetch error", func(t *testing.T) {
		t.Parallel()

		fetchErr := errors.New("boom")

		p, err := NewProvider(DefaultURL, testKey, &mockFetcher{
			getJSONFn: func(context.Context, string, url.Values, any) error {
				return fetchErr
			},
		})
		require.NoError(t, err)

		_, err = p.Rates(context.Background())

		assert.ErrorIs(t, err, fetchErr)
	})
}
