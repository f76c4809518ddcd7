package app

import (
	"fmt"
	"io"
	"text/tabwriter"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sig-0/centavo/storage/types"
)

const missing = "-"

var printer = message.NewPrinter(language.English)

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
}

// PrintPopulation prints the population table
func PrintPopulation(w io.Writer, records []*types.PopulationRecord) error {
	tw := newTable(w)

	_, _ = fmt.Fprintln(tw, "#\tCode\tCountry\tYear\tPopulation\t")

	for i, r := range records {
		_, _ = printer.Fprintf(
			tw,
			"%d\t%s\t%s\t%d\t%d\t\n",
			i+1,
			r.CountryCode,
			r.CountryName,
			r.Year,
			r.Population,
		)
	}

	return tw.Flush()
}

// PrintRun prints the enriched table, followed by the grand total
func PrintRun(w io.Writer, run *types.Run) error {
	tw := newTable(w)

	_, _ = fmt.Fprintf(tw, "#\tCode\tCountry\tYear\tPopulation\tCurrency\tFX to %s\tValue (%s)\t\n", run.Target, run.Target)

	for i, r := range run.Rows {
		currency := missing
		if r.Currency != nil {
			currency = r.Currency.String()
		}

		_, _ = printer.Fprintf(
			tw,
			"%d\t%s\t%s\t%d\t%d\t%s\t%s\t%s\t\n",
			i+1,
			r.CountryCode,
			r.CountryName,
			r.Year,
			r.Population,
			currency,
			formatOptional("%.4f", r.FxToTarget),
			formatOptional("%.2f", r.DerivedValue),
		)
	}

	if err := tw.Flush(); err != nil {
		return err
	}

	_, err := printer.Fprintf(w, "\nGrand total: %.2f %s\n", run.GrandTotal, run.Target)

	return err
}

func formatOptional(format string, v *float64) string {
	if v == nil {
		return missing
	}

	return printer.Sprintf(format, *v)
}
