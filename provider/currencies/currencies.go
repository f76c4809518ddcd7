// Package currencies maps countries to the currency that is legal tender there.
//
// Territory data comes from the CLDR tables bundled with golang.org/x/text,
// corrected for the currency changes published after that release.
// Lookups never fail: unknown, malformed or currency-less codes resolve to
// no currency, which is an expected outcome for historical and disputed
// territories.
package currencies

import (
	"strconv"
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"

	"github.com/sig-0/centavo/storage/types"
)

// Resolver resolves a country code to its currency
type Resolver interface {
	Resolve(code string) (types.Currency, bool)
}

// CLDR is the Resolver backed by the CLDR territory tables
type CLDR struct{}

func (CLDR) Resolve(code string) (types.Currency, bool) {
	return Resolve(code)
}

// Resolve returns the tender currency of the country with the given
// ISO 3166 alpha-2 or alpha-3 code
func Resolve(code string) (types.Currency, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if !isAlpha(code) {
		return "", false
	}

	region, err := language.ParseRegion(code)
	if err != nil {
		return "", false
	}

	if c, ok := tender(region); ok {
		return c, true
	}

	// Numeric cross-reference, for territories whose
	// alphabetic code was reassigned or retired
	if m49 := region.M49(); m49 != 0 {
		numeric, err := language.ParseRegion(leftPad(strconv.Itoa(m49)))
		if err == nil && numeric != region {
			if c, ok := tender(numeric); ok {
				return c, true
			}
		}
	}

	if canonical := region.Canonicalize(); canonical != region {
		if c, ok := tender(canonical); ok {
			return c, true
		}
	}

	return "", false
}

// IsISO reports whether code is an active ISO 4217 currency code,
// including the ones introduced after the bundled CLDR release
func IsISO(code string) bool {
	if len(code) != 3 || !isAlpha(code) {
		return false
	}

	if _, ok := introduced[types.Currency(code)]; ok {
		return true
	}

	_, err := currency.ParseISO(code)

	return err == nil
}

// tender returns the current tender currency of the region
func tender(region language.Region) (types.Currency, bool) {
	if c, ok := tenderChanges[region.String()]; ok {
		return c, true
	}

	unit, ok := currency.FromRegion(region)
	if !ok {
		return "", false
	}

	return types.Currency(unit.String()), true
}

// isAlpha checks the code is 2 or 3 ASCII letters
func isAlpha(code string) bool {
	if len(code) != 2 && len(code) != 3 {
		return false
	}

	for i := 0; i < len(code); i++ {
		if code[i] < 'A' || code[i] > 'Z' {
			return false
		}
	}

	return true
}

// leftPad pads M.49 codes to their 3-digit form
func leftPad(s string) string {
	for len(s) < 3 {
		s = "0" + s
	}

	return s
}
