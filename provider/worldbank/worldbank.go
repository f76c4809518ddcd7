//nolint:tagliatelle // World Bank API uses its own casing
package worldbank

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/sig-0/centavo/fetch"
	"github.com/sig-0/centavo/storage/types"
)

const (
	DefaultBaseURL          = "https://api.worldbank.org/v2"
	DefaultIndicator        = "SP.POP.TOTL"
	DefaultPerPage          = 20000 // exceeds any realistic entity count
	DefaultCountriesPerPage = 400

	// AggregateRegion is the region id the API assigns to aggregates
	// ("World", "OECD members", income groups, ...)
	AggregateRegion = "NA"
)

var errInvalidLimit = errors.New("invalid limit")

// Fetcher fetches and decodes JSON documents
type Fetcher interface {
	GetJSON(ctx context.Context, url string, params url.Values, out any) error
}

// APIError is the error envelope the World Bank API returns in place of data
type APIError struct {
	ID    string `json:"id"`
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("world bank api error %s (%s): %s", e.ID, e.Key, e.Value)
}

type pageMetadata struct {
	Message []APIError  `json:"message"`
	Pages   json.Number `json:"pages"`
	Total   json.Number `json:"total"`
}

type countryRow struct {
	ID     *string `json:"id"`
	Region *struct {
		ID *string `json:"id"`
	} `json:"region"`
}

type indicatorRow struct {
	CountryISO3 *string  `json:"countryiso3code"`
	Date        *string  `json:"date"`
	Value       *float64 `json:"value"`
	Country     *struct {
		ID    string  `json:"id"`
		Value *string `json:"value"`
	} `json:"country"`
}

// Provider is the World Bank indicators API population source
type Provider struct {
	fetcher Fetcher
	logger  *slog.Logger

	baseURL          string
	indicator        string
	perPage          int
	countriesPerPage int
	aggregateRegion  string
}

// NewProvider creates a new World Bank population provider
func NewProvider(fetcher Fetcher, opts ...Option) *Provider {
	p := &Provider{
		fetcher:          fetcher,
		logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
		baseURL:          DefaultBaseURL,
		indicator:        DefaultIndicator,
		perPage:          DefaultPerPage,
		countriesPerPage: DefaultCountriesPerPage,
		aggregateRegion:  AggregateRegion,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

func (p *Provider) Name() string {
	return "World Bank"
}

// Countries fetches the country registry, and returns the ISO-3 codes
// of every entity that is not an aggregate
func (p *Provider) Countries(ctx context.Context) (types.CountrySet, error) {
	params := url.Values{
		"format":   {"json"},
		"per_page": {strconv.Itoa(p.countriesPerPage)},
	}

	var rows []countryRow

	if err := p.fetchPage(ctx, p.baseURL+"/country", params, &rows); err != nil {
		return nil, fmt.Errorf("unable to fetch country registry: %w", err)
	}

	countries := make(types.CountrySet, len(rows))

	for i, row := range rows {
		if row.ID == nil || row.Region == nil || row.Region.ID == nil {
			return nil, fmt.Errorf(
				"%w: country registry row %d is missing id or region",
				fetch.ErrMalformedResponse,
				i,
			)
		}

		if strings.TrimSpace(*row.Region.ID) == p.aggregateRegion {
			continue
		}

		countries[*row.ID] = struct{}{}
	}

	return countries, nil
}

// LatestPopulation fetches the most recent population value of every entity,
// keeps the ones that are countries, and returns them sorted by
// descending population. A positive limit truncates the result
func (p *Provider) LatestPopulation(
	ctx context.Context,
	countries types.CountrySet,
	limit int,
) ([]*types.PopulationRecord, error) {
	if limit < 0 {
		return nil, fmt.Errorf("%w: %d", errInvalidLimit, limit)
	}

	params := url.Values{
		"format":   {"json"},
		"mrv":      {"1"},
		"per_page": {strconv.Itoa(p.perPage)},
	}

	var rows []indicatorRow

	endpoint := fmt.Sprintf("%s/country/all/indicator/%s", p.baseURL, url.PathEscape(p.indicator))

	if err := p.fetchPage(ctx, endpoint, params, &rows); err != nil {
		return nil, fmt.Errorf("unable to fetch population indicator: %w", err)
	}

	var (
		records = make([]*types.PopulationRecord, 0, len(countries))
		seen    = make(map[string]struct{}, len(countries))
	)

	for i, row := range rows {
		if row.CountryISO3 == nil {
			return nil, fmt.Errorf(
				"%w: indicator row %d is missing countryiso3code",
				fetch.ErrMalformedResponse,
				i,
			)
		}

		code := *row.CountryISO3

		if row.Value == nil || !countries.Has(code) {
			continue // no data, or an aggregate
		}

		if _, ok := seen[code]; ok {
			continue
		}

		record, err := parseRecord(code, row)
		if err != nil {
			return nil, fmt.Errorf("%w: indicator row %d: %w", fetch.ErrMalformedResponse, i, err)
		}

		seen[code] = struct{}{}
		records = append(records, record)
	}

	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Population != records[j].Population {
			return records[i].Population > records[j].Population
		}

		return records[i].CountryCode < records[j].CountryCode
	})

	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}

	return records, nil
}

// fetchPage fetches a `[metadata, rows]` envelope and decodes the rows into out
func (p *Provider) fetchPage(ctx context.Context, endpoint string, params url.Values, out any) error {
	var envelope []json.RawMessage

	if err := p.fetcher.GetJSON(ctx, endpoint, params, &envelope); err != nil {
		return err
	}

	if len(envelope) == 0 {
		return fmt.Errorf("%w: empty envelope", fetch.ErrMalformedResponse)
	}

	var meta pageMetadata
	if err := json.Unmarshal(envelope[0], &meta); err != nil {
		return fmt.Errorf("%w: unable to decode page metadata: %w", fetch.ErrMalformedResponse, err)
	}

	if len(meta.Message) > 0 {
		return &meta.Message[0]
	}

	if len(envelope) != 2 {
		return fmt.Errorf("%w: expected [metadata, rows], got %d elements", fetch.ErrMalformedResponse, len(envelope))
	}

	if pages, err := meta.Pages.Int64(); err == nil && pages > 1 {
		p.logger.Warn(
			"response is paginated, only the first page is used",
			"url", endpoint,
			"pages", pages,
			"total", meta.Total.String(),
		)
	}

	if err := json.Unmarshal(envelope[1], out); err != nil {
		return fmt.Errorf("%w: unable to decode rows: %w", fetch.ErrMalformedResponse, err)
	}

	return nil
}

// parseRecord validates an indicator row that carries a value
func parseRecord(code string, row indicatorRow) (*types.PopulationRecord, error) {
	if row.Country == nil || row.Country.Value == nil {
		return nil, errors.New("missing country name")
	}

	if row.Date == nil {
		return nil, errors.New("missing date")
	}

	year, err := strconv.Atoi(strings.TrimSpace(*row.Date))
	if err != nil {
		return nil, fmt.Errorf("invalid date %q", *row.Date)
	}

	value := *row.Value
	if value < 0 || math.IsNaN(value) || math.IsInf(value, 0) {
		return nil, fmt.Errorf("invalid population %v", value)
	}

	return &types.PopulationRecord{
		CountryCode: code,
		CountryName: *row.Country.Value,
		Year:        year,
		Population:  int64(math.Round(value)),
	}, nil
}
