package types

import "time"

type Currency string

const (
	CurrencyEUR Currency = "EUR"
	CurrencyMXN Currency = "MXN"
	CurrencyUSD Currency = "USD"
)

func (c Currency) String() string {
	return string(c)
}

// CountrySet is the set of ISO-3 codes that denote real countries
// (as opposed to regional or income aggregates)
type CountrySet map[string]struct{}

// Has reports whether the code belongs to the set
func (s CountrySet) Has(code string) bool {
	_, ok := s[code]

	return ok
}

// PopulationRecord is the latest population figure for a single country
type PopulationRecord struct {
	CountryCode string `json:"country_code"`
	CountryName string `json:"country_name"`
	Year        int    `json:"year"`
	Population  int64  `json:"population"`
}

// Row is a population record joined with its currency and FX data.
// Nil fields are resolution gaps, not zeros
type Row struct {
	CountryCode  string    `json:"country_code"`
	CountryName  string    `json:"country_name"`
	Year         int       `json:"year"`
	Population   int64     `json:"population"`
	Currency     *Currency `json:"currency"`
	FxToTarget   *float64  `json:"fx_to_target"`
	DerivedValue *float64  `json:"derived_value"`
}

// Run is the output of a single pipeline run
type Run struct {
	GeneratedAt time.Time `json:"generated_at"`
	ID          string    `json:"id"`
	Target      Currency  `json:"target_currency"`
	Anchor      Currency  `json:"anchor_currency,omitempty"`
	Directory   string    `json:"directory,omitempty"`
	Rows        []*Row    `json:"rows"`
	Limit       int       `json:"limit"`
	GrandTotal  float64   `json:"grand_total"`
}

// Summary returns the run summary, without the rows
func (r *Run) Summary() *RunSummary {
	return &RunSummary{
		GeneratedAt: r.GeneratedAt,
		ID:          r.ID,
		Target:      r.Target,
		Directory:   r.Directory,
		RowCount:    len(r.Rows),
		GrandTotal:  r.GrandTotal,
	}
}

type RunSummary struct {
	GeneratedAt time.Time `json:"generated_at"`
	ID          string    `json:"id"`
	Target      Currency  `json:"target_currency"`
	Directory   string    `json:"directory,omitempty"`
	RowCount    int       `json:"row_count"`
	GrandTotal  float64   `json:"grand_total"`
}

type RunQuery struct {
	Offset int64 `json:"offset"`
	Limit  int32 `json:"limit"`
}

// Page wraps the results for pagination
type Page[T any] struct {
	Results []T   `json:"results"`
	Total   int64 `json:"total"`
}
