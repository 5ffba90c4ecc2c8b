package crowd

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	perrors "marketprice/pkg/errors"
)

var (
	// leadingSymbolRe / trailingSymbolRe match a Unicode currency
	// symbol at either end of a price answer.
	leadingSymbolRe  = regexp.MustCompile(`^\p{Sc}`)
	trailingSymbolRe = regexp.MustCompile(`\p{Sc}$`)

	// thousandsRe matches a separator directly followed by a run of
	// three or more digits, i.e. a thousands separator.
	thousandsRe = regexp.MustCompile(`[\s,.](\d{3,})`)

	// decimalCommaRe matches a trailing decimal comma with one or two
	// decimals.
	decimalCommaRe = regexp.MustCompile(`,(\d{1,2})$`)
)

// ParseQuantity parses a free-text quantity answer. Anything that is
// not a plain integer comes back nil.
func ParseQuantity(raw string) *int {
	q, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return nil
	}
	return &q
}

// ParsePriceCurrency splits a free-text price answer like "$12.99" or
// "3,50 €" into cents and a currency symbol. A nil or empty answer
// yields nil values. An in-stock answer without any currency symbol is
// an error: workers are instructed to copy the price verbatim, so a
// bare number means the answer cannot be trusted.
func ParsePriceCurrency(rawPrice *string, inStock bool, reportID string) (*int64, *string, error) {
	if rawPrice == nil || *rawPrice == "" {
		return nil, nil, nil
	}
	raw := strings.TrimSpace(*rawPrice)

	var symbol, numeric string
	if loc := leadingSymbolRe.FindStringIndex(raw); loc != nil {
		symbol = raw[loc[0]:loc[1]]
		numeric = raw[loc[1]:]
	} else if loc := trailingSymbolRe.FindStringIndex(raw); loc != nil {
		symbol = raw[loc[0]:loc[1]]
		numeric = raw[:loc[0]]
	}

	if symbol == "" {
		if inStock {
			return nil, nil, perrors.NewInvalidAnswerError(reportID,
				fmt.Sprintf("Invalid price answer: %q", raw))
		}
		return nil, nil, nil
	}

	return cleanPrice(numeric), &symbol, nil
}

// cleanPrice normalizes a numeric price string into cents: thousand
// separators are stripped, a decimal comma becomes a dot. Garbage
// yields nil.
func cleanPrice(raw string) *int64 {
	s := strings.TrimSpace(raw)
	for thousandsRe.MatchString(s) {
		s = thousandsRe.ReplaceAllString(s, "$1")
	}
	s = decimalCommaRe.ReplaceAllString(s, ".$1")

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	cents := int64(math.Round(f * 100))
	return &cents
}
