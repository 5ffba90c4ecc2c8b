// Package model holds the records flowing through the price pipeline:
// crowd tasks, raw worker reports and reconciled observations.
package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"marketprice/internal/currency"
)

// Observation is the reconciled, trusted price record derived from one
// task's worker reports. It is immutable once constructed. The ID is
// bookkeeping only and is never persisted.
type Observation struct {
	ID             string
	Timestamp      time.Time // UTC
	PriceCents     int64
	CurrencySymbol string
	Quantity       int
	InStock        bool
	DomainName     string
	URL            string
}

// NewObservation builds an Observation with a fresh bookkeeping ID.
// Callers guarantee quantity > 0 and priceCents > 0; the consolidator
// rejects anything else before an Observation exists.
func NewObservation(ts time.Time, priceCents int64, symbol string, quantity int, inStock bool, domain, url string) Observation {
	return Observation{
		ID:             uuid.New().String(),
		Timestamp:      ts.UTC(),
		PriceCents:     priceCents,
		CurrencySymbol: symbol,
		Quantity:       quantity,
		InStock:        inStock,
		DomainName:     domain,
		URL:            url,
	}
}

// Price returns the observed price in major currency units.
func (o Observation) Price() decimal.Decimal {
	return decimal.New(o.PriceCents, -2)
}

// Date returns the UTC calendar date of the observation.
func (o Observation) Date() time.Time {
	y, m, d := o.Timestamp.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DateString returns the ISO YYYY-MM-DD date. Lexicographic order on
// these strings matches chronological order.
func (o Observation) DateString() string {
	return o.Timestamp.UTC().Format("2006-01-02")
}

// PriceUSD converts the observed price to USD at the observation date.
func (o Observation) PriceUSD(conv *currency.Converter) (decimal.Decimal, error) {
	return conv.ToUSD(o.Price(), o.CurrencySymbol, o.Date())
}

// UnitPriceUSD returns the USD price of a single unit in the package.
func (o Observation) UnitPriceUSD(conv *currency.Converter) (decimal.Decimal, error) {
	usd, err := o.PriceUSD(conv)
	if err != nil {
		return decimal.Zero, err
	}
	return usd.Div(decimal.NewFromInt(int64(o.Quantity))), nil
}

// Marketplace returns the grouping key for the observation's
// marketplace: the domain name with a leading "www." stripped and dots
// replaced by underscores, safe for use in file names.
func (o Observation) Marketplace() string {
	name := strings.TrimPrefix(o.DomainName, "www.")
	return strings.ReplaceAll(name, ".", "_")
}
