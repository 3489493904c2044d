package memory

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"lana/internal/core"
	"lana/internal/sheets"

	"github.com/shopspring/decimal"
)

func validRow() sheets.Row {
	return sheets.Row{
		TransactionID: 7,
		Date:          core.NewDate(2024, 3, 1),
		User:          "Ada",
		Kind:          core.TransactionExpense,
		Category:      "Rent",
		Description:   "Fixed payment: Rent",
		Amount:        decimal.RequireFromString("800.00"),
	}
}

func TestMemoryStoreAppendAndList(t *testing.T) {
	s := New([]string{"A", "B", "A"})
	cats, err := s.ListCategories(context.Background())
	if err != nil || len(cats) != 2 {
		t.Fatalf("unexpected list: cats=%v err=%v", cats, err)
	}

	ref, err := s.Append(context.Background(), validRow())
	if err != nil || ref != "mem:1" {
		t.Fatalf("unexpected append: ref=%q err=%v", ref, err)
	}
	if rows := s.Rows(); len(rows) != 1 || rows[0].TransactionID != 7 {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}

func TestMemoryStoreRejectsInvalidRow(t *testing.T) {
	s := New(nil)
	r := validRow()
	r.Amount = decimal.Zero
	if _, err := s.Append(context.Background(), r); err == nil {
		t.Fatal("expected validation error for zero amount")
	}
	if len(s.Rows()) != 0 {
		t.Fatal("invalid row must not be stored")
	}
}

func TestNewFromFilesSeedsAndDedupe(t *testing.T) {
	dir := t.TempDir()
	// No files -> defaults
	s := NewFromFiles(dir)
	cats, _ := s.ListCategories(context.Background())
	if len(cats) == 0 {
		t.Fatalf("expected defaults when files missing")
	}

	if err := os.WriteFile(filepath.Join(dir, "seed_categories.txt"), []byte("# header\nA\nB\nA\n\n"), 0o644); err != nil {
		t.Fatalf("write seed file: %v", err)
	}

	s = NewFromFiles(dir)
	cats, _ = s.ListCategories(context.Background())
	if len(cats) != 2 || cats[0] != "A" || cats[1] != "B" {
		t.Fatalf("unexpected cats: %v", cats)
	}
}

func TestRowValues(t *testing.T) {
	got := validRow().Values()
	want := []any{"2024-03-01", "Ada", "expense", "Rent", "Fixed payment: Rent", "800.00", int64(7)}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("col %d = %v, want %v", i, got[i], want[i])
		}
	}
}
