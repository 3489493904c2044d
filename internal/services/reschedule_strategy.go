// Package services holds the ledger's policy logic: budget availability,
// fixed-payment execution, threshold alerts and manual postings.
package services

import (
	"fmt"
	"sync"

	"lana/internal/core"
)

// RescheduleStrategy computes the occurrence that follows a fixed payment's
// current run date. Each recurrence has its own strategy.
type RescheduleStrategy interface {
	// Next returns the run date after current.
	Next(current core.Date) core.Date
	// Repeats is false for one-shot payments, which deactivate instead.
	Repeats() bool
}

// OneShot never repeats.
type OneShot struct{}

func (OneShot) Next(current core.Date) core.Date { return current }
func (OneShot) Repeats() bool                    { return false }

// Weekly adds seven days.
type Weekly struct{}

func (Weekly) Next(current core.Date) core.Date { return current.AddDays(7) }
func (Weekly) Repeats() bool                    { return true }

// Monthly adds one calendar month, clamping the day to the month's end.
type Monthly struct{}

func (Monthly) Next(current core.Date) core.Date { return current.AddMonthsClamped(1) }
func (Monthly) Repeats() bool                    { return true }

var (
	strategiesMu sync.RWMutex
	strategies   = map[core.RecurrenceType]RescheduleStrategy{
		core.RecurrenceNone:    OneShot{},
		core.RecurrenceWeekly:  Weekly{},
		core.RecurrenceMonthly: Monthly{},
	}
)

// GetRescheduleStrategy returns the strategy for a recurrence.
func GetRescheduleStrategy(r core.RecurrenceType) (RescheduleStrategy, error) {
	strategiesMu.RLock()
	defer strategiesMu.RUnlock()
	s, ok := strategies[r]
	if !ok {
		return nil, fmt.Errorf("unknown recurrence: %s", r)
	}
	return s, nil
}

// RegisterRescheduleStrategy adds or replaces the strategy for a recurrence.
func RegisterRescheduleStrategy(r core.RecurrenceType, s RescheduleStrategy) {
	strategiesMu.Lock()
	defer strategiesMu.Unlock()
	strategies[r] = s
}

// NextSchedule returns where a payment goes after its run on today.
// Recurring payments land on the first occurrence strictly after today, so
// a payment that fell behind catches up in one step and runs once.
// One-shot payments keep their date and become inactive.
func NextSchedule(p core.FixedPayment, today core.Date) (core.Date, bool, error) {
	s, err := GetRescheduleStrategy(p.Recurrence)
	if err != nil {
		return core.Date{}, false, err
	}
	if !s.Repeats() {
		return p.NextRunDate, false, nil
	}
	next := s.Next(p.NextRunDate)
	for !next.After(today) {
		next = s.Next(next)
	}
	return next, true, nil
}
