package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lana/internal/core"
	"lana/internal/storage"

	"github.com/shopspring/decimal"
)

// BudgetReader is the read side the calculator needs. *storage.Queries
// satisfies it both on the pool and inside a transaction.
type BudgetReader interface {
	FindBudget(ctx context.Context, userID, categoryID int64, year, month int) (core.Budget, error)
	SumExpenses(ctx context.Context, userID, categoryID int64, year, month int) (decimal.Decimal, error)
}

// BudgetCalculator answers how much of a category budget is left in a month.
type BudgetCalculator struct {
	reader BudgetReader
}

func NewBudgetCalculator(reader BudgetReader) *BudgetCalculator {
	return &BudgetCalculator{reader: reader}
}

// Within returns a calculator reading through r, typically an open
// transaction, so the check sees the same snapshot as the write.
func (c *BudgetCalculator) Within(r BudgetReader) *BudgetCalculator {
	return &BudgetCalculator{reader: r}
}

// Available returns the remaining budget for the user's category in the
// UTC calendar month of ref. No budget row means unlimited.
func (c *BudgetCalculator) Available(ctx context.Context, userID, categoryID int64, ref time.Time) (core.Availability, error) {
	ref = ref.UTC()
	year, month := ref.Year(), int(ref.Month())

	budget, err := c.reader.FindBudget(ctx, userID, categoryID, year, month)
	if errors.Is(err, storage.ErrNotFound) {
		return core.UnlimitedAvailability(), nil
	}
	if err != nil {
		return core.Availability{}, fmt.Errorf("find budget: %w", err)
	}

	spent, err := c.reader.SumExpenses(ctx, userID, categoryID, year, month)
	if err != nil {
		return core.Availability{}, fmt.Errorf("sum expenses: %w", err)
	}

	return core.LimitedAvailability(budget.MonthlyAmount.Sub(spent)), nil
}
