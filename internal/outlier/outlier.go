// Package outlier removes statistically anomalous unit prices from the
// consolidated observation set.
package outlier

import (
	"math"
	"sort"

	"marketprice/internal/currency"
	"marketprice/internal/model"
	"marketprice/pkg/stats"
)

const (
	// zThreshold is deliberately aggressive: unit prices within one
	// marketplace and day are assumed to be close to uniform.
	zThreshold = 1.0

	// minBucketSize is the smallest bucket where outlier detection is
	// meaningful at all.
	minBucketSize = 3
)

type bucketKey struct {
	marketplace string
	date        string
}

// Filter partitions observations into (marketplace, date) buckets and
// drops every observation whose unit price sits zThreshold or more
// standard deviations from its bucket's mean. Buckets smaller than
// minBucketSize pass through unchanged, as does any bucket with zero
// variance. Output order is deterministic: buckets in key order, input
// order within a bucket, so downstream exports stay byte-stable.
func Filter(observations []model.Observation, conv *currency.Converter) ([]model.Observation, error) {
	buckets := make(map[bucketKey][]model.Observation)
	var keys []bucketKey
	for _, o := range observations {
		k := bucketKey{marketplace: o.Marketplace(), date: o.DateString()}
		if _, seen := buckets[k]; !seen {
			keys = append(keys, k)
		}
		buckets[k] = append(buckets[k], o)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].marketplace != keys[j].marketplace {
			return keys[i].marketplace < keys[j].marketplace
		}
		return keys[i].date < keys[j].date
	})

	kept := make([]model.Observation, 0, len(observations))
	for _, k := range keys {
		group := buckets[k]
		if len(group) < minBucketSize {
			kept = append(kept, group...)
			continue
		}

		unitPrices := make([]float64, len(group))
		for i, o := range group {
			up, err := o.UnitPriceUSD(conv)
			if err != nil {
				return nil, err
			}
			unitPrices[i] = up.InexactFloat64()
		}

		scores := stats.ZScores(unitPrices)
		for i, o := range group {
			if math.Abs(scores[i]) < zThreshold {
				kept = append(kept, o)
			}
		}
	}
	return kept, nil
}
