package crowd

import (
	"errors"
	"testing"

	perrors "marketprice/pkg/errors"
)

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		raw  string
		want *int
	}{
		{"25", intp(25)},
		{" 30 ", intp(30)},
		{"0", intp(0)},
		{"", nil},
		{"abc", nil},
		{"2.5", nil},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got := ParseQuantity(tt.raw)
			if (got == nil) != (tt.want == nil) {
				t.Fatalf("ParseQuantity(%q) = %v, want %v", tt.raw, got, tt.want)
			}
			if got != nil && *got != *tt.want {
				t.Errorf("ParseQuantity(%q) = %d, want %d", tt.raw, *got, *tt.want)
			}
		})
	}
}

func TestParsePriceCurrency(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantCents int64
		wantCur   string
	}{
		{"leading dollar", "$12.99", 1299, "$"},
		{"leading pound with thousands comma", "£1,299.99", 129999, "£"},
		{"trailing euro with decimal comma", "3,50 €", 350, "€"},
		{"trailing euro with dot thousands", "1.299,99 €", 129999, "€"},
		{"yen without decimals", "¥1500", 150000, "¥"},
		{"space thousands separator", "$1 299.99", 129999, "$"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := tt.raw
			cents, cur, err := ParsePriceCurrency(&raw, true, "A1")
			if err != nil {
				t.Fatalf("ParsePriceCurrency(%q) error = %v", tt.raw, err)
			}
			if cents == nil || *cents != tt.wantCents {
				t.Errorf("cents = %v, want %d", cents, tt.wantCents)
			}
			if cur == nil || *cur != tt.wantCur {
				t.Errorf("currency = %v, want %q", cur, tt.wantCur)
			}
		})
	}
}

func TestParsePriceCurrencyMissingAnswer(t *testing.T) {
	t.Run("nil answer", func(t *testing.T) {
		cents, cur, err := ParsePriceCurrency(nil, true, "A1")
		if err != nil || cents != nil || cur != nil {
			t.Errorf("got (%v, %v, %v), want all nil", cents, cur, err)
		}
	})

	t.Run("empty answer", func(t *testing.T) {
		raw := ""
		cents, cur, err := ParsePriceCurrency(&raw, true, "A1")
		if err != nil || cents != nil || cur != nil {
			t.Errorf("got (%v, %v, %v), want all nil", cents, cur, err)
		}
	})
}

func TestParsePriceCurrencyNoSymbol(t *testing.T) {
	t.Run("in stock without symbol is invalid", func(t *testing.T) {
		raw := "12.99"
		_, _, err := ParsePriceCurrency(&raw, true, "A1")
		if err == nil {
			t.Fatal("error = nil, want invalid answer error")
		}
		var perr *perrors.PipelineError
		if !errors.As(err, &perr) || perr.Code != perrors.ErrCodeInvalidAnswer {
			t.Errorf("error = %v, want code %s", err, perrors.ErrCodeInvalidAnswer)
		}
		if perr.Subject != "A1" {
			t.Errorf("Subject = %q, want report id A1", perr.Subject)
		}
	})

	t.Run("out of stock without symbol is tolerated", func(t *testing.T) {
		raw := "0"
		cents, cur, err := ParsePriceCurrency(&raw, false, "A1")
		if err != nil || cents != nil || cur != nil {
			t.Errorf("got (%v, %v, %v), want all nil", cents, cur, err)
		}
	})
}

func intp(v int) *int { return &v }
