//nolint:tagliatelle // Fixer API uses its own casing
package fixer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/sig-0/centavo/fetch"
	"github.com/sig-0/centavo/storage/types"
)

const (
	DefaultURL    = "https://data.fixer.io/api/latest"
	DefaultAnchor = types.CurrencyEUR // the free plan only serves EUR based rates
)

// ErrMissingAccessKey is returned when the provider is created without an API key
var ErrMissingAccessKey = errors.New("missing fixer access key")

// Fetcher fetches and decodes JSON documents
type Fetcher interface {
	GetJSON(ctx context.Context, url string, params url.Values, out any) error
}

// APIError is the error object Fixer returns alongside success=false
type APIError struct {
	Type string `json:"type"`
	Info string `json:"info"`
	Code int    `json:"code"`
}

func (e *APIError) Error() string {
	if e.Info == "" {
		return fmt.Sprintf("fixer api error %d (%s)", e.Code, e.Type)
	}

	return fmt.Sprintf("fixer api error %d (%s): %s", e.Code, e.Type, e.Info)
}

type latestResponse struct {
	Error   *APIError           `json:"error"`
	Success *bool               `json:"success"`
	Rates   *map[string]float64 `json:"rates"`
	Base    string              `json:"base"`
	Date    string              `json:"date"`
}

// Provider is the Fixer latest rates source
type Provider struct {
	fetcher Fetcher
	logger  *slog.Logger
	now     func() time.Time

	url       string
	accessKey string
	anchor    types.Currency
}

// NewProvider creates a new Fixer provider.
// The access key is checked eagerly, so a misconfiguration
// is surfaced before any request is made
func NewProvider(
	endpoint,
	accessKey string,
	fetcher Fetcher,
	opts ...Option,
) (*Provider, error) {
	accessKey = strings.TrimSpace(accessKey)
	if accessKey == "" {
		return nil, ErrMissingAccessKey
	}

	if endpoint == "" {
		endpoint = DefaultURL
	}

	p := &Provider{
		fetcher:   fetcher,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:       time.Now,
		url:       endpoint,
		accessKey: accessKey,
		anchor:    DefaultAnchor,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

func (p *Provider) Name() string {
	return "Fixer"
}

// Rates fetches the full rate table, anchored to the account's base currency
func (p *Provider) Rates(ctx context.Context) (*types.RateTable, error) {
	var resp latestResponse

	params := url.Values{
		"access_key": {p.accessKey},
	}

	if err := p.fetcher.GetJSON(ctx, p.url, params, &resp); err != nil {
		return nil, fmt.Errorf("unable to fetch fx rates: %w", err)
	}

	if resp.Success == nil {
		return nil, fmt.Errorf("%w: fx response is missing success", fetch.ErrMalformedResponse)
	}

	if !*resp.Success {
		if resp.Error == nil {
			return nil, &APIError{Type: "unknown_error"}
		}

		return nil, resp.Error
	}

	if resp.Rates == nil {
		return nil, fmt.Errorf("%w: fx response is missing rates", fetch.ErrMalformedResponse)
	}

	table := &types.RateTable{
		Base:      p.anchor,
		Rates:     make(map[types.Currency]float64, len(*resp.Rates)),
		FetchedAt: p.now().UTC(),
	}

	if resp.Base != "" {
		table.Base = types.Currency(strings.ToUpper(resp.Base))
	}

	if resp.Date != "" {
		date, err := time.Parse(time.DateOnly, resp.Date)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid fx date %q", fetch.ErrMalformedResponse, resp.Date)
		}

		table.Date = date
	}

	for code, rate := range *resp.Rates {
		table.Rates[types.Currency(strings.ToUpper(code))] = rate
	}

	// The anchor is implicitly 1 against itself
	if _, ok := table.Rates[table.Base]; !ok {
		table.Rates[table.Base] = 1
	}

	p.logger.Debug(
		"fetched fx rates",
		"base", table.Base,
		"date", resp.Date,
		"count", len(table.Rates),
	)

	return table, nil
}
