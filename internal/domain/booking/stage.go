package booking

import (
	"fmt"
	"time"
)

// Proposal is a pending schedule change and who offered it.
type Proposal struct {
	By       Actor
	Schedule Schedule
	Note     string
	At       time.Time
}

// Stage is the lifecycle state together with the data valid only in that state.
// The concrete types are Pending, Confirmed, ReschedulePending, CounterPending,
// Completed and Cancelled.
type Stage interface {
	Status() BookingStatus
	isStage()
}

// Pending awaits the broker's first decision.
type Pending struct{}

// Confirmed is an agreed visit.
type Confirmed struct{}

// ReschedulePending holds a broker proposal awaiting the client.
type ReschedulePending struct{ Proposal Proposal }

// CounterPending holds a client counter-proposal awaiting the broker.
type CounterPending struct{ Proposal Proposal }

// Completed records when the broker marked the visit done.
type Completed struct{ At time.Time }

// Cancelled records who cancelled and when.
type Cancelled struct {
	By Actor
	At time.Time
}

func (Pending) Status() BookingStatus           { return StatusPending }
func (Confirmed) Status() BookingStatus         { return StatusConfirmed }
func (ReschedulePending) Status() BookingStatus { return StatusReschedulePending }
func (CounterPending) Status() BookingStatus    { return StatusCounterPending }
func (Completed) Status() BookingStatus         { return StatusCompleted }
func (Cancelled) Status() BookingStatus         { return StatusCancelled }

func (Pending) isStage()           {}
func (Confirmed) isStage()         {}
func (ReschedulePending) isStage() {}
func (CounterPending) isStage()    {}
func (Completed) isStage()         {}
func (Cancelled) isStage()         {}

// AwaitingResponseFrom returns the actor whose turn it is in a negotiation stage.
func AwaitingResponseFrom(s Stage) (Actor, bool) {
	switch st := s.(type) {
	case ReschedulePending:
		return st.Proposal.By.Counterparty(), true
	case CounterPending:
		return st.Proposal.By.Counterparty(), true
	case Pending:
		return ActorBroker, true
	default:
		return "", false
	}
}

// StageRecord is the flat persisted form of a Stage.
type StageRecord struct {
	Status      BookingStatus
	Schedule    Schedule
	Message     string
	ProposedAt  *time.Time
	CompletedAt *time.Time
	CancelledBy Actor
	CancelledAt *time.Time
}

// RecordOf flattens a stage for persistence.
func RecordOf(s Stage, schedule Schedule, message string) StageRecord {
	rec := StageRecord{Status: s.Status(), Schedule: schedule, Message: message}
	switch st := s.(type) {
	case ReschedulePending:
		at := st.Proposal.At
		rec.ProposedAt = &at
	case CounterPending:
		at := st.Proposal.At
		rec.ProposedAt = &at
	case Completed:
		at := st.At
		rec.CompletedAt = &at
	case Cancelled:
		at := st.At
		rec.CancelledBy = st.By
		rec.CancelledAt = &at
	}
	return rec
}

// StageFromRecord rebuilds a Stage, rejecting rows that do not describe a legal state.
func StageFromRecord(rec StageRecord) (Stage, error) {
	switch rec.Status {
	case StatusPending:
		return Pending{}, nil
	case StatusConfirmed:
		return Confirmed{}, nil
	case StatusReschedulePending, StatusCounterPending:
		if rec.ProposedAt == nil {
			return nil, fmt.Errorf("booking in %s has no proposal timestamp", rec.Status)
		}
		p := Proposal{Schedule: rec.Schedule, Note: rec.Message, At: *rec.ProposedAt}
		if rec.Status == StatusReschedulePending {
			p.By = ActorBroker
			return ReschedulePending{Proposal: p}, nil
		}
		p.By = ActorClient
		return CounterPending{Proposal: p}, nil
	case StatusCompleted:
		if rec.CompletedAt == nil {
			return nil, fmt.Errorf("completed booking has no completion timestamp")
		}
		return Completed{At: *rec.CompletedAt}, nil
	case StatusCancelled:
		if rec.CancelledAt == nil || !rec.CancelledBy.IsValid() {
			return nil, fmt.Errorf("cancelled booking is missing cancellation data")
		}
		return Cancelled{By: rec.CancelledBy, At: *rec.CancelledAt}, nil
	default:
		return nil, fmt.Errorf("unknown booking status %q", rec.Status)
	}
}
