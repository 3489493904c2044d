package core

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestAddMonthsClamped(t *testing.T) {
	cases := []struct {
		in   Date
		n    int
		want Date
	}{
		{NewDate(2024, 1, 31), 1, NewDate(2024, 2, 29)},
		{NewDate(2024, 2, 29), 1, NewDate(2024, 3, 29)},
		{NewDate(2023, 1, 31), 1, NewDate(2023, 2, 28)},
		{NewDate(2024, 3, 31), 1, NewDate(2024, 4, 30)},
		{NewDate(2024, 12, 15), 1, NewDate(2025, 1, 15)},
		{NewDate(2024, 12, 31), 2, NewDate(2025, 2, 28)},
		{NewDate(2024, 5, 10), 0, NewDate(2024, 5, 10)},
	}
	for _, tc := range cases {
		got := tc.in.AddMonthsClamped(tc.n)
		if !got.Equal(tc.want) {
			t.Fatalf("%s + %d months: expected %s, got %s", tc.in, tc.n, tc.want, got)
		}
	}
}

func TestDateOfAndParse(t *testing.T) {
	d := DateOf(time.Date(2024, 6, 3, 23, 59, 0, 0, time.UTC))
	if d.String() != "2024-06-03" {
		t.Fatalf("unexpected date %s", d)
	}
	p, err := ParseDate("2024-06-03")
	if err != nil || !p.Equal(d) {
		t.Fatalf("parse mismatch: %v %v", p, err)
	}
	if _, err := ParseDate("03/06/2024"); err == nil {
		t.Fatalf("expected error for bad layout")
	}
	start, end := NewDate(2024, 2, 17).MonthBounds()
	if start.String() != "2024-02-01" || end.String() != "2024-03-01" {
		t.Fatalf("unexpected bounds %s %s", start, end)
	}
}

func TestFixedPaymentValidate(t *testing.T) {
	good := FixedPayment{
		UserID:      1,
		Description: "rent",
		Amount:      decimal.RequireFromString("500"),
		Recurrence:  RecurrenceMonthly,
		NextRunDate: NewDate(2025, 1, 1),
		Active:      true,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bad := func(mut func(*FixedPayment)) FixedPayment {
		p := good
		mut(&p)
		return p
	}
	bads := []FixedPayment{
		bad(func(p *FixedPayment) { p.Description = " " }),
		bad(func(p *FixedPayment) { p.Amount = decimal.Zero }),
		bad(func(p *FixedPayment) { p.Amount = decimal.RequireFromString("-1") }),
		bad(func(p *FixedPayment) { p.Recurrence = "yearly" }),
		bad(func(p *FixedPayment) { p.NextRunDate = Date{} }),
	}
	for i, p := range bads {
		if err := p.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestTransactionValidate(t *testing.T) {
	tx := Transaction{
		UserID:     1,
		Kind:       TransactionExpense,
		Amount:     decimal.RequireFromString("1.50"),
		Status:     StatusCompleted,
		OccurredAt: time.Now(),
	}
	if err := tx.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	tx.Kind = "refund"
	if err := tx.Validate(); err != ErrInvalidKind {
		t.Fatalf("expected ErrInvalidKind, got %v", err)
	}
}

func TestBudgetValidate(t *testing.T) {
	b := Budget{UserID: 1, CategoryID: 1, MonthlyAmount: decimal.Zero, Month: 2, Year: 2024}
	if err := b.Validate(); err != nil {
		t.Fatalf("zero budget should be valid, got %v", err)
	}
	b.Month = 13
	if err := b.Validate(); err != ErrInvalidMonth {
		t.Fatalf("expected ErrInvalidMonth, got %v", err)
	}
}
