// Package currency converts observed marketplace prices into USD using
// the ECB historical daily reference rates.
package currency

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	perrors "marketprice/pkg/errors"
)

// DefaultSourceURL is the ECB historical reference-rate archive. The
// rates inside are quoted as units of each currency per one euro.
const DefaultSourceURL = "https://www.ecb.europa.eu/stats/eurofxref/eurofxref-hist.zip"

const dateLayout = "2006-01-02"

type dailyRate struct {
	date string // YYYY-MM-DD
	rate decimal.Decimal
}

// Converter resolves currency symbols and converts amounts to USD with
// historical daily rates. Construct one per run and pass it by handle;
// the rate table is fetched at most once for the Converter's lifetime.
type Converter struct {
	sourceURL string
	client    *http.Client

	once    sync.Once
	loadErr error
	// rates[iso] holds the date-ascending rate history for one currency.
	rates map[string][]dailyRate
}

// NewConverter creates a Converter backed by the rate archive at
// sourceURL (DefaultSourceURL when empty). The archive is fetched
// lazily, on the first non-USD conversion.
func NewConverter(sourceURL string) *Converter {
	if sourceURL == "" {
		sourceURL = DefaultSourceURL
	}
	return &Converter{
		sourceURL: sourceURL,
		client:    &http.Client{Timeout: 60 * time.Second},
	}
}

// NewConverterWithRates builds a Converter over a fixed in-memory rate
// table keyed by ISO code and YYYY-MM-DD date. Intended for tests.
func NewConverterWithRates(table map[string]map[string]decimal.Decimal) *Converter {
	c := &Converter{rates: make(map[string][]dailyRate)}
	for iso, byDate := range table {
		history := make([]dailyRate, 0, len(byDate))
		for date, rate := range byDate {
			history = append(history, dailyRate{date: date, rate: rate})
		}
		sort.Slice(history, func(i, j int) bool { return history[i].date < history[j].date })
		c.rates[iso] = history
	}
	c.once.Do(func() {})
	return c
}

// ToUSD converts amount in the currency identified by symbol into USD
// at the given date. "$" always means USD and converts to itself. A
// missing rate for the exact date falls back to the most recent known
// earlier rate; a currency with no history at all is a hard error.
func (c *Converter) ToUSD(amount decimal.Decimal, symbol string, on time.Time) (decimal.Decimal, error) {
	iso, err := ResolveSymbol(symbol)
	if err != nil {
		return decimal.Zero, err
	}
	if iso == "USD" {
		return amount, nil
	}

	if err := c.load(); err != nil {
		return decimal.Zero, err
	}

	date := on.UTC().Format(dateLayout)
	cur, err := c.rateOn(iso, date)
	if err != nil {
		return decimal.Zero, err
	}
	usd, err := c.rateOn("USD", date)
	if err != nil {
		return decimal.Zero, err
	}

	// ECB rates are quoted per euro, so cross through EUR.
	return amount.Div(cur).Mul(usd), nil
}

// Load fetches and parses the rate archive now instead of on first
// use, so an unreachable source fails the run before any output is
// touched.
func (c *Converter) Load() error {
	return c.load()
}

func (c *Converter) load() error {
	c.once.Do(func() {
		c.loadErr = c.fetch()
	})
	return c.loadErr
}

// rateOn returns the rate for iso on date, falling back to the most
// recent earlier date. Dates before the start of history clamp to the
// earliest known rate.
func (c *Converter) rateOn(iso, date string) (decimal.Decimal, error) {
	if iso == "EUR" {
		return decimal.NewFromInt(1), nil
	}

	history := c.rates[iso]
	if len(history) == 0 {
		return decimal.Zero, perrors.NewNoRateHistoryError(iso)
	}

	// First index with history[i].date > date.
	i := sort.Search(len(history), func(i int) bool { return history[i].date > date })
	if i == 0 {
		return history[0].rate, nil
	}
	return history[i-1].rate, nil
}

func (c *Converter) fetch() error {
	resp, err := c.client.Get(c.sourceURL)
	if err != nil {
		return perrors.NewRateSourceError(c.sourceURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return perrors.NewRateSourceError(c.sourceURL, fmt.Errorf("unexpected status %s", resp.Status))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return perrors.NewRateSourceError(c.sourceURL, err)
	}

	archive, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return perrors.NewRateSourceError(c.sourceURL, err)
	}

	for _, f := range archive.File {
		if !strings.HasSuffix(f.Name, ".csv") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return perrors.NewRateSourceError(c.sourceURL, err)
		}
		rates, err := parseRateCSV(rc)
		rc.Close()
		if err != nil {
			return perrors.NewRateSourceError(c.sourceURL, err)
		}
		c.rates = rates
		return nil
	}

	return perrors.NewRateSourceError(c.sourceURL, fmt.Errorf("no CSV entry in archive"))
}

// parseRateCSV reads the eurofxref history table: a Date column
// followed by one column per ISO code, newest rows first, gaps marked
// "N/A".
func parseRateCSV(r io.Reader) (map[string][]dailyRate, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) < 2 || header[0] != "Date" {
		return nil, fmt.Errorf("unexpected header: %v", header)
	}

	rates := make(map[string][]dailyRate, len(header)-1)
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		if len(row) < 2 {
			continue
		}
		date := strings.TrimSpace(row[0])
		for i := 1; i < len(row) && i < len(header); i++ {
			iso := strings.TrimSpace(header[i])
			raw := strings.TrimSpace(row[i])
			if iso == "" || raw == "" || raw == "N/A" {
				continue
			}
			rate, err := decimal.NewFromString(raw)
			if err != nil {
				continue
			}
			rates[iso] = append(rates[iso], dailyRate{date: date, rate: rate})
		}
	}

	for iso := range rates {
		history := rates[iso]
		sort.Slice(history, func(i, j int) bool { return history[i].date < history[j].date })
		rates[iso] = history
	}
	return rates, nil
}
