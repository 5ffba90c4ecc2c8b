// Package export aggregates the filtered observation set into the
// per-marketplace tables the pipeline persists. The aggregation
// functions are pure: they never re-derive consolidation or outlier
// filtering.
package export

import (
	"sort"

	"github.com/shopspring/decimal"

	"marketprice/internal/currency"
	"marketprice/internal/model"
	"marketprice/pkg/stats"
)

// TimeseriesRow is one dated median unit price for a marketplace.
type TimeseriesRow struct {
	Date               string
	MedianUnitPriceUSD decimal.Decimal
}

// Timeseries computes the per-day median unit price in USD for every
// marketplace. Each marketplace's rows are sorted ascending by date.
func Timeseries(observations []model.Observation, conv *currency.Converter) (map[string][]TimeseriesRow, error) {
	type groupKey struct {
		date        string
		marketplace string
	}

	dailyUnitPrices := make(map[groupKey][]decimal.Decimal)
	for _, o := range observations {
		up, err := o.UnitPriceUSD(conv)
		if err != nil {
			return nil, err
		}
		k := groupKey{date: o.DateString(), marketplace: o.Marketplace()}
		dailyUnitPrices[k] = append(dailyUnitPrices[k], up)
	}

	series := make(map[string][]TimeseriesRow)
	for k, unitPrices := range dailyUnitPrices {
		series[k.marketplace] = append(series[k.marketplace], TimeseriesRow{
			Date:               k.date,
			MedianUnitPriceUSD: stats.Median(unitPrices),
		})
	}
	for marketplace := range series {
		rows := series[marketplace]
		sort.Slice(rows, func(i, j int) bool { return rows[i].Date < rows[j].Date })
		series[marketplace] = rows
	}
	return series, nil
}
