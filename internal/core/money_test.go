package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1", true},
		{"1.0", "1", true},
		{"1.23", "1.23", true},
		{"1,23", "1.23", true},
		{"0.01", "0.01", true},
		{"1.005", "1.01", true}, // half-up rounding
		{" 2.50 ", "2.5", true},
		{"-1", "", false},
		{"0", "", false},
		{"0.001", "", false},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || !got.Equal(decimal.RequireFromString(tc.out)) {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestCentsRoundTrip(t *testing.T) {
	if got := FromCents(12345); !got.Equal(decimal.RequireFromString("123.45")) {
		t.Fatalf("unexpected %s", got)
	}
	if got := ToCents(decimal.RequireFromString("0.1").Add(decimal.RequireFromString("0.2"))); got != 30 {
		t.Fatalf("expected 30 cents, got %d", got)
	}
	if got := ToCents(decimal.RequireFromString("10.005")); got != 1001 {
		t.Fatalf("expected 1001 cents, got %d", got)
	}
	if got := ToCents(decimal.RequireFromString("-4.20")); got != -420 {
		t.Fatalf("expected -420 cents, got %d", got)
	}
}

func TestAvailabilityCovers(t *testing.T) {
	amt := decimal.RequireFromString("100")
	if !UnlimitedAvailability().Covers(decimal.RequireFromString("1000000000")) {
		t.Fatalf("unlimited must cover any amount")
	}
	cases := []struct {
		remaining string
		covers    bool
	}{
		{"100", true},
		{"100.01", true},
		{"99.99", false},
		{"-5", false},
	}
	for _, tc := range cases {
		a := LimitedAvailability(decimal.RequireFromString(tc.remaining))
		if a.Covers(amt) != tc.covers {
			t.Fatalf("remaining %s: expected covers=%v", tc.remaining, tc.covers)
		}
	}
	if FormatAmount(decimal.RequireFromString("3.5")) != "$3.50" {
		t.Fatalf("unexpected format")
	}
}
