package currency

import (
	"strings"

	perrors "marketprice/pkg/errors"
)

// symbolToISO covers the currency symbols seen across the observed
// marketplace set. The dollar sign is ambiguous between the national
// dollars; it is pinned to USD on purpose and must stay that way.
var symbolToISO = map[string]string{
	"$":   "USD",
	"US$": "USD",
	"€":   "EUR",
	"£":   "GBP",
	"¥":   "JPY",
	"₹":   "INR",
	"C$":  "CAD",
	"A$":  "AUD",
	"NZ$": "NZD",
	"HK$": "HKD",
	"₩":   "KRW",
	"₺":   "TRY",
	"zł":  "PLN",
	"Kč":  "CZK",
	"R$":  "BRL",
	"₽":   "RUB",
	"฿":   "THB",
}

// ResolveSymbol maps a currency symbol to its ISO 4217 alpha-3 code.
// Three-letter uppercase input is accepted as an ISO code directly.
// An unknown symbol is a hard error: the marketplace set is expected
// to use unambiguous symbols only.
func ResolveSymbol(symbol string) (string, error) {
	if iso, ok := symbolToISO[symbol]; ok {
		return iso, nil
	}
	if len(symbol) == 3 && symbol == strings.ToUpper(symbol) && isAlpha(symbol) {
		return symbol, nil
	}
	return "", perrors.NewUnknownCurrencyError(symbol)
}

func isAlpha(s string) bool {
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
