package booking

import (
	"fmt"
	"time"

	"github.com/brokerconnect/service-booking/pkg/apperror"
)

// DateLayout is the wire and storage format of a visit date.
const DateLayout = "2006-01-02"

const (
	firstSlotMinutes = 9 * 60
	lastSlotMinutes  = 18 * 60
	slotStepMinutes  = 30
)

// Schedule is a proposed visit: a calendar date and a slot.
type Schedule struct {
	Date time.Time
	Time string
}

// NewSchedule parses and validates a visit date and slot.
func NewSchedule(date, slot string) (Schedule, error) {
	if date == "" || slot == "" {
		return Schedule{}, apperror.NewValidationError("visit date and visit time are required")
	}
	d, err := time.Parse(DateLayout, date)
	if err != nil {
		return Schedule{}, apperror.NewValidationError(fmt.Sprintf("invalid visit date: %s", date))
	}
	if !IsValidSlot(slot) {
		return Schedule{}, apperror.NewValidationError(fmt.Sprintf("invalid visit time: %s", slot))
	}
	return Schedule{Date: d, Time: slot}, nil
}

// DateString returns the date in DateLayout.
func (s Schedule) DateString() string {
	return s.Date.Format(DateLayout)
}

// IsValidSlot reports whether slot is HH:MM on a half hour between 09:00 and 18:00.
func IsValidSlot(slot string) bool {
	t, err := time.Parse("15:04", slot)
	if err != nil || len(slot) != 5 {
		return false
	}
	m := t.Hour()*60 + t.Minute()
	return m >= firstSlotMinutes && m <= lastSlotMinutes && m%slotStepMinutes == 0
}

// Slots returns every valid slot in order.
func Slots() []string {
	var out []string
	for m := firstSlotMinutes; m <= lastSlotMinutes; m += slotStepMinutes {
		out = append(out, fmt.Sprintf("%02d:%02d", m/60, m%60))
	}
	return out
}
