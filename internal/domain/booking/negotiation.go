package booking

import (
	"time"

	"github.com/google/uuid"

	"github.com/brokerconnect/service-booking/pkg/apperror"
)

// ErrNegotiationExhausted is returned when a proposal would exceed the round cap.
var ErrNegotiationExhausted = apperror.NewConflictError("negotiation round limit reached: accept or cancel the booking")

// NegotiationPolicy bounds the reschedule exchange. MaxRounds <= 0 means unbounded.
type NegotiationPolicy struct {
	MaxRounds int
}

// Unbounded allows any number of rounds.
var Unbounded = NegotiationPolicy{}

// Allow reports whether one more proposal may follow roundsSoFar proposals.
func (p NegotiationPolicy) Allow(roundsSoFar int) error {
	if p.MaxRounds > 0 && roundsSoFar >= p.MaxRounds {
		return ErrNegotiationExhausted
	}
	return nil
}

// ProposalEntry is one row of a booking's negotiation history.
type ProposalEntry struct {
	ID        uuid.UUID
	BookingID uuid.UUID
	Round     int
	By        Actor
	VisitDate string
	VisitTime string
	Note      string
	CreatedAt time.Time
}

// NewProposalEntry records the proposal b just accepted as round b.Rounds().
func NewProposalEntry(b *Booking, p Proposal) ProposalEntry {
	return ProposalEntry{
		ID:        uuid.New(),
		BookingID: b.ID(),
		Round:     b.Rounds(),
		By:        p.By,
		VisitDate: p.Schedule.DateString(),
		VisitTime: p.Schedule.Time,
		Note:      p.Note,
		CreatedAt: p.At,
	}
}
