package export

import (
	"sort"

	"github.com/shopspring/decimal"

	"marketprice/internal/currency"
	"marketprice/internal/model"
)

// LatestRow is one observed listing on a marketplace's most recent day.
type LatestRow struct {
	URL          string
	UnitPriceUSD decimal.Decimal
}

// Latest collects, for each marketplace, every observation on the most
// recent calendar date present for that marketplace, sorted ascending
// by unit price. ISO dates compare lexicographically, which matches
// chronological order.
func Latest(observations []model.Observation, conv *currency.Converter) (map[string][]LatestRow, error) {
	latestDates := make(map[string]string)
	for _, o := range observations {
		m := o.Marketplace()
		if d := o.DateString(); d > latestDates[m] {
			latestDates[m] = d
		}
	}

	latest := make(map[string][]LatestRow, len(latestDates))
	for _, o := range observations {
		m := o.Marketplace()
		if o.DateString() != latestDates[m] {
			continue
		}
		up, err := o.UnitPriceUSD(conv)
		if err != nil {
			return nil, err
		}
		latest[m] = append(latest[m], LatestRow{URL: o.URL, UnitPriceUSD: up})
	}

	for m := range latest {
		rows := latest[m]
		sort.SliceStable(rows, func(i, j int) bool {
			return rows[i].UnitPriceUSD.LessThan(rows[j].UnitPriceUSD)
		})
		latest[m] = rows
	}
	return latest, nil
}
