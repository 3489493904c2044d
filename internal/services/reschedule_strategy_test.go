package services

import (
	"testing"

	"lana/internal/core"
)

func TestNextSchedule(t *testing.T) {
	tests := []struct {
		name       string
		recurrence core.RecurrenceType
		current    core.Date
		today      core.Date
		wantNext   core.Date
		wantActive bool
	}{
		{
			name:       "weekly adds seven days",
			recurrence: core.RecurrenceWeekly,
			current:    core.NewDate(2024, 1, 1),
			today:      core.NewDate(2024, 1, 1),
			wantNext:   core.NewDate(2024, 1, 8),
			wantActive: true,
		},
		{
			name:       "monthly clamps into leap february",
			recurrence: core.RecurrenceMonthly,
			current:    core.NewDate(2024, 1, 31),
			today:      core.NewDate(2024, 1, 31),
			wantNext:   core.NewDate(2024, 2, 29),
			wantActive: true,
		},
		{
			name:       "monthly keeps the clamped day afterwards",
			recurrence: core.RecurrenceMonthly,
			current:    core.NewDate(2024, 2, 29),
			today:      core.NewDate(2024, 2, 29),
			wantNext:   core.NewDate(2024, 3, 29),
			wantActive: true,
		},
		{
			name:       "one-shot deactivates in place",
			recurrence: core.RecurrenceNone,
			current:    core.NewDate(2024, 5, 5),
			today:      core.NewDate(2024, 5, 5),
			wantNext:   core.NewDate(2024, 5, 5),
			wantActive: false,
		},
		{
			name:       "weekly payment three weeks late catches up past today",
			recurrence: core.RecurrenceWeekly,
			current:    core.NewDate(2024, 1, 1),
			today:      core.NewDate(2024, 1, 22),
			wantNext:   core.NewDate(2024, 1, 29),
			wantActive: true,
		},
		{
			name:       "monthly payment scanned late lands after today",
			recurrence: core.RecurrenceMonthly,
			current:    core.NewDate(2024, 1, 15),
			today:      core.NewDate(2024, 3, 1),
			wantNext:   core.NewDate(2024, 3, 15),
			wantActive: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := core.FixedPayment{Recurrence: tt.recurrence, NextRunDate: tt.current}
			next, active, err := NextSchedule(p, tt.today)
			if err != nil {
				t.Fatalf("NextSchedule() error = %v", err)
			}
			if !next.Equal(tt.wantNext) || active != tt.wantActive {
				t.Errorf("NextSchedule() = %s, %v; want %s, %v", next, active, tt.wantNext, tt.wantActive)
			}
			if active && !next.After(tt.today) {
				t.Errorf("next run %s is not after %s", next, tt.today)
			}
		})
	}
}

func TestGetRescheduleStrategy_Unknown(t *testing.T) {
	if _, err := GetRescheduleStrategy("yearly"); err == nil {
		t.Fatal("expected error for unknown recurrence")
	}
}

type fortnightly struct{}

func (fortnightly) Next(d core.Date) core.Date { return d.AddDays(14) }
func (fortnightly) Repeats() bool              { return true }

func TestRegisterRescheduleStrategy(t *testing.T) {
	const biweekly core.RecurrenceType = "biweekly"
	RegisterRescheduleStrategy(biweekly, fortnightly{})

	s, err := GetRescheduleStrategy(biweekly)
	if err != nil {
		t.Fatalf("GetRescheduleStrategy() error = %v", err)
	}
	if got := s.Next(core.NewDate(2024, 1, 1)); !got.Equal(core.NewDate(2024, 1, 15)) {
		t.Errorf("Next() = %s", got)
	}
}
