package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/sig-0/centavo/provider/currencies"
	"github.com/sig-0/centavo/storage/types"
)

// centsPerUnit is the contribution of a single resident, in their local currency
const centsPerUnit = 0.01

// Converter converts a currency to the run's target currency
type Converter interface {
	// ToTarget returns how much target currency one unit of c is worth.
	// A currency without a rate yields types.ErrCurrencyNotFound
	ToTarget(ctx context.Context, c types.Currency) (float64, error)
}

// Enrich joins every record with its currency and FX rate, and computes
// the derived value (population x 0.01 x rate). Records that cannot be
// resolved keep nil currency, rate and derived value, and do not count
// towards the grand total. Row order follows the record order.
// The only error returned is a fatal converter error
func Enrich(
	ctx context.Context,
	records []*types.PopulationRecord,
	resolver currencies.Resolver,
	converter Converter,
) ([]*types.Row, float64, error) {
	var (
		rows       = make([]*types.Row, 0, len(records))
		grandTotal float64
	)

	for _, record := range records {
		row := &types.Row{
			CountryCode: record.CountryCode,
			CountryName: record.CountryName,
			Year:        record.Year,
			Population:  record.Population,
		}

		rows = append(rows, row)

		currency, ok := resolver.Resolve(record.CountryCode)
		if !ok {
			continue
		}

		row.Currency = &currency

		fx, err := converter.ToTarget(ctx, currency)
		if err != nil {
			if errors.Is(err, types.ErrCurrencyNotFound) {
				continue
			}

			return nil, 0, fmt.Errorf("unable to convert %s: %w", currency, err)
		}

		derived := float64(record.Population) * centsPerUnit * fx

		row.FxToTarget = &fx
		row.DerivedValue = &derived

		grandTotal += derived
	}

	return rows, grandTotal, nil
}
