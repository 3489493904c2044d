package services

import (
	"context"
	"fmt"

	"lana/internal/core"
)

// Notifier delivers a message to a user. Implementations swallow their own
// delivery failures.
type Notifier interface {
	Notify(ctx context.Context, user core.User, subject, message string)
}

// EventPublisher announces committed transactions to other processes.
type EventPublisher interface {
	PublishTransactionPosted(ctx context.Context, t core.Transaction) error
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, core.User, string, string) {}

const (
	subjectExecuted       = "Fixed payment executed"
	subjectSkippedBudget  = "Payment not executed: insufficient budget"
	subjectSkippedBalance = "Payment not executed: insufficient balance"
	subjectWarnBudget     = "Upcoming payment: insufficient budget"
	subjectWarnBalance    = "Upcoming payment: insufficient balance"
	subjectBudgetAlert    = "Budget alert"
)

func executedMessage(p core.FixedPayment) string {
	return fmt.Sprintf("The fixed payment '%s' for %s was executed.", p.Description, core.FormatAmount(p.Amount))
}

func skippedBudgetMessage(p core.FixedPayment) string {
	return fmt.Sprintf("The fixed payment '%s' for %s was not executed because the category budget does not cover it.",
		p.Description, core.FormatAmount(p.Amount))
}

func skippedBalanceMessage(p core.FixedPayment) string {
	return fmt.Sprintf("The fixed payment '%s' for %s was not executed because your balance is too low.",
		p.Description, core.FormatAmount(p.Amount))
}

func warnBudgetMessage(p core.FixedPayment, leadDays int) string {
	return fmt.Sprintf("In %d days the fixed payment '%s' for %s is due, but the category budget does not cover it.",
		leadDays, p.Description, core.FormatAmount(p.Amount))
}

func warnBalanceMessage(p core.FixedPayment, leadDays int) string {
	return fmt.Sprintf("In %d days the fixed payment '%s' for %s is due, but your balance is too low.",
		leadDays, p.Description, core.FormatAmount(p.Amount))
}
