package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	RecurrenceNone    RecurrenceType = "none"
	RecurrenceWeekly  RecurrenceType = "weekly"
	RecurrenceMonthly RecurrenceType = "monthly"
)

const (
	CategoryIncome  CategoryKind = "income"
	CategoryExpense CategoryKind = "expense"
)

const (
	TransactionIncome          TransactionKind = "income"
	TransactionExpense         TransactionKind = "expense"
	TransactionTransferOut     TransactionKind = "transfer-out"
	TransactionTransferRequest TransactionKind = "transfer-request"
)

const (
	StatusPending   TransactionStatus = "pending"
	StatusCompleted TransactionStatus = "completed"
	StatusCancelled TransactionStatus = "cancelled"
)

type (
	RecurrenceType    string
	CategoryKind      string
	TransactionKind   string
	TransactionStatus string

	User struct {
		ID        int64
		Name      string
		Email     string
		Phone     string // optional, enables SMS notifications
		Balance   decimal.Decimal
		Version   int64 // bumped on every balance write
		CreatedAt time.Time
	}

	Category struct {
		ID   int64
		Name string
		Kind CategoryKind
	}

	Budget struct {
		ID            int64
		UserID        int64
		CategoryID    int64
		MonthlyAmount decimal.Decimal
		Month         int // 1-12
		Year          int
	}

	Transaction struct {
		ID             int64
		UserID         int64
		Kind           TransactionKind
		Amount         decimal.Decimal
		CategoryID     *int64
		Description    string
		CounterpartyID *int64
		Status         TransactionStatus
		OccurredAt     time.Time
	}

	FixedPayment struct {
		ID           int64
		UserID       int64
		Description  string
		Amount       decimal.Decimal
		CategoryID   *int64
		Recurrence   RecurrenceType
		ScheduledFor Date
		NextRunDate  Date
		Active       bool
	}
)

var (
	ErrInvalidDay         = errors.New("invalid day")
	ErrInvalidMonth       = errors.New("invalid month")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrEmptyDescription   = errors.New("empty description")
	ErrEmptyName          = errors.New("empty name")
	ErrInvalidRecurrence  = errors.New("invalid recurrence")
	ErrInvalidKind        = errors.New("invalid kind")
	ErrInvalidStatus      = errors.New("invalid status")
	ErrDescriptionTooLong = errors.New("description too long (max 200 characters)")
)

// Valid reports whether r is one of the supported recurrences.
func (r RecurrenceType) Valid() bool {
	switch r {
	case RecurrenceNone, RecurrenceWeekly, RecurrenceMonthly:
		return true
	}
	return false
}

func (k CategoryKind) Valid() bool {
	return k == CategoryIncome || k == CategoryExpense
}

func (k TransactionKind) Valid() bool {
	switch k {
	case TransactionIncome, TransactionExpense, TransactionTransferOut, TransactionTransferRequest:
		return true
	}
	return false
}

func (s TransactionStatus) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// ValidateAmount rejects zero and negative amounts.
func ValidateAmount(d decimal.Decimal) error {
	if !d.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

func validateDescription(desc string) error {
	if len(strings.TrimSpace(desc)) == 0 {
		return ErrEmptyDescription
	}
	if len(desc) > 200 {
		return ErrDescriptionTooLong
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if len(c.Name) > 50 {
		return errors.New("category name too long (max 50 characters)")
	}
	if !c.Kind.Valid() {
		return ErrInvalidKind
	}
	return nil
}

func (b Budget) Validate() error {
	if b.Month < 1 || b.Month > 12 {
		return ErrInvalidMonth
	}
	if b.Year < 1970 {
		return errors.New("invalid year")
	}
	if b.MonthlyAmount.IsNegative() {
		return ErrInvalidAmount
	}
	return nil
}

func (t Transaction) Validate() error {
	if !t.Kind.Valid() {
		return ErrInvalidKind
	}
	if !t.Status.Valid() {
		return ErrInvalidStatus
	}
	if err := ValidateAmount(t.Amount); err != nil {
		return err
	}
	if len(t.Description) > 200 {
		return ErrDescriptionTooLong
	}
	if t.OccurredAt.IsZero() {
		return errors.New("transaction time cannot be zero")
	}
	return nil
}

func (p FixedPayment) Validate() error {
	if err := validateDescription(p.Description); err != nil {
		return err
	}
	if err := ValidateAmount(p.Amount); err != nil {
		return err
	}
	if !p.Recurrence.Valid() {
		return ErrInvalidRecurrence
	}
	if err := p.NextRunDate.Validate(); err != nil {
		return errors.New("invalid next run date: " + err.Error())
	}
	return nil
}

// Categorized reports whether the payment is subject to a category budget.
func (p FixedPayment) Categorized() bool {
	return p.CategoryID != nil
}
