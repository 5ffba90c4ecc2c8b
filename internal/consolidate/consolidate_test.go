package consolidate

import (
	"testing"
	"time"

	"marketprice/internal/model"
)

var testTask = model.Task{
	TaskID:       "T1",
	CreationTime: time.Date(2024, 5, 2, 10, 30, 0, 0, time.UTC),
	BatchName:    "batch_2024-05-02_10_00_00",
	URL:          "https://www.shop.example.com/item/42",
	DomainName:   "www.shop.example.com",
}

func report(id string, priceCents int64, quantity int, currency string, inStock bool) model.RawReport {
	return model.RawReport{
		ReportID:   id,
		TaskID:     testTask.TaskID,
		InStock:    inStock,
		PriceCents: &priceCents,
		Currency:   &currency,
		Quantity:   &quantity,
	}
}

func TestConsolidateMajority(t *testing.T) {
	reports := []model.RawReport{
		report("A1", 1299, 25, "$", true),
		report("A2", 1499, 25, "$", true),
		report("A3", 1299, 25, "$", true),
	}

	obs := Consolidate(testTask, reports)
	if obs == nil {
		t.Fatal("Consolidate() = nil, want observation")
	}
	if obs.PriceCents != 1299 {
		t.Errorf("PriceCents = %d, want 1299", obs.PriceCents)
	}
	if obs.Quantity != 25 {
		t.Errorf("Quantity = %d, want 25", obs.Quantity)
	}
	if obs.CurrencySymbol != "$" {
		t.Errorf("CurrencySymbol = %q, want %q", obs.CurrencySymbol, "$")
	}
	if !obs.InStock {
		t.Error("InStock = false, want true")
	}
	if obs.DomainName != testTask.DomainName {
		t.Errorf("DomainName = %q, want %q", obs.DomainName, testTask.DomainName)
	}
	if obs.URL != testTask.URL {
		t.Errorf("URL = %q, want %q", obs.URL, testTask.URL)
	}
	if !obs.Timestamp.Equal(testTask.CreationTime) {
		t.Errorf("Timestamp = %v, want %v", obs.Timestamp, testTask.CreationTime)
	}
	if obs.ID == "" {
		t.Error("ID is empty")
	}
}

func TestConsolidateRejections(t *testing.T) {
	tests := []struct {
		name    string
		reports []model.RawReport
	}{
		{
			name:    "no reports",
			reports: nil,
		},
		{
			name: "single report is not a consensus",
			reports: []model.RawReport{
				report("A1", 1299, 25, "$", true),
			},
		},
		{
			name: "all answers disagree",
			reports: []model.RawReport{
				report("A1", 1299, 25, "$", true),
				report("A2", 1399, 25, "$", true),
				report("A3", 1499, 25, "$", true),
			},
		},
		{
			name: "majority quantity not a multiple of five",
			reports: []model.RawReport{
				report("A1", 1299, 7, "$", true),
				report("A2", 1299, 7, "$", true),
			},
		},
		{
			name: "majority quantity below minimum",
			reports: []model.RawReport{
				report("A1", 1299, 4, "$", true),
				report("A2", 1299, 4, "$", true),
			},
		},
		{
			name: "majority quantity above maximum",
			reports: []model.RawReport{
				report("A1", 1299, 505, "$", true),
				report("A2", 1299, 505, "$", true),
			},
		},
		{
			name: "majority price is zero",
			reports: []model.RawReport{
				report("A1", 0, 25, "$", true),
				report("A2", 0, 25, "$", true),
			},
		},
		{
			name: "out-of-stock answers with no price or quantity",
			reports: []model.RawReport{
				{ReportID: "A1", TaskID: "T1", InStock: false},
				{ReportID: "A2", TaskID: "T1", InStock: false},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if obs := Consolidate(testTask, tt.reports); obs != nil {
				t.Errorf("Consolidate() = %+v, want nil", obs)
			}
		})
	}
}

func TestConsolidateBoundaryQuantities(t *testing.T) {
	for _, q := range []int{5, 500} {
		reports := []model.RawReport{
			report("A1", 1299, q, "$", true),
			report("A2", 1299, q, "$", true),
		}
		obs := Consolidate(testTask, reports)
		if obs == nil {
			t.Errorf("quantity %d rejected, want accepted", q)
			continue
		}
		if obs.Quantity != q {
			t.Errorf("Quantity = %d, want %d", obs.Quantity, q)
		}
	}
}

func TestConsolidateTieKeepsFirstSeen(t *testing.T) {
	reports := []model.RawReport{
		report("A1", 1299, 25, "$", true),
		report("A2", 1299, 25, "$", true),
		report("A3", 1499, 30, "$", true),
		report("A4", 1499, 30, "$", true),
	}

	obs := Consolidate(testTask, reports)
	if obs == nil {
		t.Fatal("Consolidate() = nil, want observation")
	}
	if obs.PriceCents != 1299 || obs.Quantity != 25 {
		t.Errorf("tie resolved to (%d, %d), want first-seen (1299, 25)",
			obs.PriceCents, obs.Quantity)
	}
}

func TestConsolidateMissingFieldsStayDistinct(t *testing.T) {
	// A report with no price must not vote together with a report
	// answering a zero price.
	zero := int64(0)
	q := 25
	cur := "$"
	reports := []model.RawReport{
		{ReportID: "A1", TaskID: "T1", InStock: true, Quantity: &q, Currency: &cur},
		{ReportID: "A2", TaskID: "T1", InStock: true, PriceCents: &zero, Quantity: &q, Currency: &cur},
	}

	if obs := Consolidate(testTask, reports); obs != nil {
		t.Errorf("Consolidate() = %+v, want nil", obs)
	}
}
