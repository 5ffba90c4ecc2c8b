package export

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"marketprice/internal/currency"
	"marketprice/internal/model"
)

func usdObs(domain, date, url string, priceCents int64, quantity int) model.Observation {
	ts, err := time.Parse("2006-01-02", date)
	if err != nil {
		panic(err)
	}
	return model.NewObservation(ts, priceCents, "$", quantity, true, domain, url)
}

func TestTimeseries(t *testing.T) {
	conv := currency.NewConverter("")

	// shop_example_com, 2024-05-02: unit prices 1, 2, 6 -> median 2.
	// shop_example_com, 2024-05-03: unit prices 2, 4 -> median 3.
	observations := []model.Observation{
		usdObs("www.shop.example.com", "2024-05-02", "u1", 500, 5),
		usdObs("www.shop.example.com", "2024-05-02", "u2", 1000, 5),
		usdObs("www.shop.example.com", "2024-05-02", "u3", 3000, 5),
		usdObs("www.shop.example.com", "2024-05-03", "u4", 1000, 5),
		usdObs("www.shop.example.com", "2024-05-03", "u5", 2000, 5),
		usdObs("www.other.example.org", "2024-05-01", "u6", 700, 5),
	}

	series, err := Timeseries(observations, conv)
	if err != nil {
		t.Fatalf("Timeseries() error = %v", err)
	}
	if len(series) != 2 {
		t.Fatalf("got %d marketplaces, want 2", len(series))
	}

	shop := series["shop_example_com"]
	if len(shop) != 2 {
		t.Fatalf("shop_example_com has %d rows, want 2", len(shop))
	}
	if shop[0].Date != "2024-05-02" || shop[1].Date != "2024-05-03" {
		t.Errorf("rows not date-ascending: %q, %q", shop[0].Date, shop[1].Date)
	}
	if !shop[0].MedianUnitPriceUSD.Equal(decimal.RequireFromString("2")) {
		t.Errorf("median on 2024-05-02 = %s, want 2", shop[0].MedianUnitPriceUSD)
	}
	if !shop[1].MedianUnitPriceUSD.Equal(decimal.RequireFromString("3")) {
		t.Errorf("median on 2024-05-03 = %s, want 3", shop[1].MedianUnitPriceUSD)
	}

	other := series["other_example_org"]
	if len(other) != 1 {
		t.Fatalf("other_example_org has %d rows, want 1", len(other))
	}
	if !other[0].MedianUnitPriceUSD.Equal(decimal.RequireFromString("1.4")) {
		t.Errorf("median = %s, want 1.4", other[0].MedianUnitPriceUSD)
	}
}

func TestLatest(t *testing.T) {
	conv := currency.NewConverter("")

	observations := []model.Observation{
		usdObs("www.shop.example.com", "2024-05-02", "stale", 500, 5),
		usdObs("www.shop.example.com", "2024-05-03", "pricier", 3000, 5),
		usdObs("www.shop.example.com", "2024-05-03", "cheaper", 1000, 5),
		usdObs("www.other.example.org", "2024-05-01", "only", 700, 5),
	}

	latest, err := Latest(observations, conv)
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}

	shop := latest["shop_example_com"]
	if len(shop) != 2 {
		t.Fatalf("shop_example_com has %d rows, want 2 (older date excluded)", len(shop))
	}
	if shop[0].URL != "cheaper" || shop[1].URL != "pricier" {
		t.Errorf("rows not price-ascending: %q, %q", shop[0].URL, shop[1].URL)
	}
	if !shop[0].UnitPriceUSD.Equal(decimal.RequireFromString("2")) {
		t.Errorf("cheapest unit price = %s, want 2", shop[0].UnitPriceUSD)
	}

	other := latest["other_example_org"]
	if len(other) != 1 || other[0].URL != "only" {
		t.Errorf("other_example_org rows = %+v, want the single listing", other)
	}
}
