package services

import (
	"context"
	"fmt"

	"lana/internal/core"
	"lana/internal/storage"

	"github.com/shopspring/decimal"
)

var (
	weeksPerYear  = decimal.NewFromInt(52)
	monthsPerYear = decimal.NewFromInt(12)
)

// CommitmentReport relates a user's recurring obligations to their balance.
type CommitmentReport struct {
	UserID         int64           `json:"user_id"`
	MonthlyFixed   decimal.Decimal `json:"monthly_fixed"`
	OneShotFixed   decimal.Decimal `json:"one_shot_fixed"`
	Balance        decimal.Decimal `json:"balance"`
	ActivePayments int             `json:"active_payments"`
	// CommittedRatio is MonthlyFixed/Balance, nil when the balance is not
	// positive.
	CommittedRatio *decimal.Decimal `json:"committed_ratio,omitempty"`
}

// Commitment sums the user's active fixed payments as a monthly figure.
// Weekly amounts count 52/12 times per month; one-shot payments are
// reported apart.
func Commitment(ctx context.Context, store *storage.SQLiteRepository, userID int64) (CommitmentReport, error) {
	user, err := store.GetUser(ctx, userID)
	if err != nil {
		return CommitmentReport{}, fmt.Errorf("get user: %w", err)
	}
	payments, err := store.ListActiveFixedPaymentsByUser(ctx, userID)
	if err != nil {
		return CommitmentReport{}, fmt.Errorf("list fixed payments: %w", err)
	}

	report := CommitmentReport{
		UserID:         userID,
		MonthlyFixed:   decimal.Zero,
		OneShotFixed:   decimal.Zero,
		Balance:        user.Balance,
		ActivePayments: len(payments),
	}
	for _, p := range payments {
		switch p.Recurrence {
		case core.RecurrenceMonthly:
			report.MonthlyFixed = report.MonthlyFixed.Add(p.Amount)
		case core.RecurrenceWeekly:
			report.MonthlyFixed = report.MonthlyFixed.Add(p.Amount.Mul(weeksPerYear).Div(monthsPerYear))
		default:
			report.OneShotFixed = report.OneShotFixed.Add(p.Amount)
		}
	}
	report.MonthlyFixed = report.MonthlyFixed.Round(2)

	if user.Balance.IsPositive() {
		ratio := report.MonthlyFixed.Div(user.Balance).Round(4)
		report.CommittedRatio = &ratio
	}
	return report, nil
}
