package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"marketprice/internal/currency"
)

func TestObservationMarketplace(t *testing.T) {
	tests := []struct {
		domain string
		want   string
	}{
		{"www.shop.example.com", "shop_example_com"},
		{"shop.example.com", "shop_example_com"},
		{"example.org", "example_org"},
		{"www.example.org", "example_org"},
	}

	for _, tt := range tests {
		t.Run(tt.domain, func(t *testing.T) {
			o := Observation{DomainName: tt.domain}
			if got := o.Marketplace(); got != tt.want {
				t.Errorf("Marketplace() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestObservationPrice(t *testing.T) {
	o := Observation{PriceCents: 1299}
	if got := o.Price(); !got.Equal(decimal.RequireFromString("12.99")) {
		t.Errorf("Price() = %s, want 12.99", got)
	}
}

func TestObservationDate(t *testing.T) {
	o := Observation{Timestamp: time.Date(2024, 5, 2, 23, 59, 59, 0, time.UTC)}

	want := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
	if got := o.Date(); !got.Equal(want) {
		t.Errorf("Date() = %v, want %v", got, want)
	}
	if got := o.DateString(); got != "2024-05-02" {
		t.Errorf("DateString() = %q, want %q", got, "2024-05-02")
	}
}

func TestObservationUnitPriceUSD(t *testing.T) {
	conv := currency.NewConverterWithRates(nil)

	o := Observation{PriceCents: 1000, CurrencySymbol: "$", Quantity: 5}
	got, err := o.UnitPriceUSD(conv)
	if err != nil {
		t.Fatalf("UnitPriceUSD() error = %v", err)
	}
	if !got.Equal(decimal.RequireFromString("2")) {
		t.Errorf("UnitPriceUSD() = %s, want 2", got)
	}
}

func TestNewObservationNormalizesToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	ts := time.Date(2024, 5, 3, 1, 0, 0, 0, loc)

	o := NewObservation(ts, 1299, "$", 25, true, "www.shop.example.com", "https://shop")
	if o.Timestamp.Location() != time.UTC {
		t.Errorf("Timestamp location = %v, want UTC", o.Timestamp.Location())
	}
	if got := o.DateString(); got != "2024-05-02" {
		t.Errorf("DateString() = %q, want %q (local midnight crosses the date line)", got, "2024-05-02")
	}
}
