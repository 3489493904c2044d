package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"lana/internal/core"
	"lana/internal/storage"

	"github.com/shopspring/decimal"
)

// AlertLevel classifies how close spending is to a budget.
type AlertLevel string

const (
	AlertNone      AlertLevel = ""
	AlertNearLimit AlertLevel = "near limit"
	AlertExceeded  AlertLevel = "exceeded"
)

// SweepSummary counts what one threshold sweep found.
type SweepSummary struct {
	Checked   int `json:"checked"`
	NearLimit int `json:"near_limit"`
	Exceeded  int `json:"exceeded"`
}

// ThresholdSweep alerts users whose monthly spending reached a share of a
// category budget.
type ThresholdSweep struct {
	store    *storage.SQLiteRepository
	notifier Notifier
	percent  decimal.Decimal
}

// NewThresholdSweep alerts at alertPercent of a budget. Values outside
// (0, 100] fall back to 80.
func NewThresholdSweep(store *storage.SQLiteRepository, notifier Notifier, alertPercent int) *ThresholdSweep {
	if alertPercent <= 0 || alertPercent > 100 {
		alertPercent = 80
	}
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &ThresholdSweep{
		store:    store,
		notifier: notifier,
		percent:  decimal.NewFromInt(int64(alertPercent)),
	}
}

// Classify compares spending to a limit without dividing: near limit when
// spent*100 >= limit*percent, exceeded when spent >= limit. A zero limit
// never alerts.
func (s *ThresholdSweep) Classify(spent, limit decimal.Decimal) AlertLevel {
	if !limit.IsPositive() {
		return AlertNone
	}
	if spent.GreaterThanOrEqual(limit) {
		return AlertExceeded
	}
	if spent.Mul(hundredPercent).GreaterThanOrEqual(limit.Mul(s.percent)) {
		return AlertNearLimit
	}
	return AlertNone
}

var hundredPercent = decimal.NewFromInt(100)

// Sweep checks every user's budgets for the month of now. It only reads
// the ledger and may be repeated.
func (s *ThresholdSweep) Sweep(ctx context.Context, now time.Time) (SweepSummary, error) {
	var summary SweepSummary
	now = now.UTC()
	year, month := now.Year(), int(now.Month())

	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return summary, fmt.Errorf("list users: %w", err)
	}

	for _, u := range users {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		budgets, err := s.store.ListBudgetsForMonth(ctx, u.ID, year, month)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to list budgets", "user_id", u.ID, "error", err)
			continue
		}

		for _, b := range budgets {
			summary.Checked++

			spent, err := s.store.SumExpenses(ctx, u.ID, b.CategoryID, year, month)
			if err != nil {
				slog.ErrorContext(ctx, "Failed to sum expenses",
					"user_id", u.ID, "category_id", b.CategoryID, "error", err)
				continue
			}

			level := s.Classify(spent, b.MonthlyAmount)
			switch level {
			case AlertNone:
				continue
			case AlertExceeded:
				summary.Exceeded++
			case AlertNearLimit:
				summary.NearLimit++
			}

			name := fmt.Sprintf("#%d", b.CategoryID)
			if c, err := s.store.GetCategory(ctx, b.CategoryID); err == nil {
				name = c.Name
			}
			s.notifier.Notify(ctx, u, subjectBudgetAlert, budgetAlertMessage(name, spent, b.MonthlyAmount, level))
		}
	}

	slog.InfoContext(ctx, "Budget threshold sweep complete",
		"checked", summary.Checked,
		"near_limit", summary.NearLimit,
		"exceeded", summary.Exceeded)
	return summary, nil
}

func budgetAlertMessage(category string, spent, limit decimal.Decimal, level AlertLevel) string {
	pct := spent.Mul(hundredPercent).Div(limit).Round(1).InexactFloat64()
	return fmt.Sprintf("You have spent %s in '%s' (%.1f%% of your %s budget). Status: %s.",
		core.FormatAmount(spent), category, pct, core.FormatAmount(limit), level)
}
