package types

import (
	"errors"
	"fmt"
	"time"
)

// ErrCurrencyNotFound is returned when a currency is absent from the rate table
var ErrCurrencyNotFound = errors.New("currency not found")

// RateTable holds the rates of every currency against a single anchor currency
type RateTable struct {
	Date      time.Time            `json:"date"`
	FetchedAt time.Time            `json:"fetched_at"`
	Rates     map[Currency]float64 `json:"rates"`
	Base      Currency             `json:"base"`
}

// Convert returns the amount of `to` one unit of `from` is worth,
// derived as rate[to] / rate[from]
func (t *RateTable) Convert(from, to Currency) (float64, error) {
	toRate, ok := t.Rates[to]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrCurrencyNotFound, to)
	}

	fromRate, ok := t.Rates[from]
	if !ok || fromRate == 0 {
		return 0, fmt.Errorf("%w: %s", ErrCurrencyNotFound, from)
	}

	return toRate / fromRate, nil
}

// Has reports whether the currency has a rate in the table
func (t *RateTable) Has(c Currency) bool {
	_, ok := t.Rates[c]

	return ok
}
