package application

import (
	"time"

	"github.com/google/uuid"

	bookingDomain "github.com/brokerconnect/service-booking/internal/domain/booking"
	"github.com/brokerconnect/service-booking/pkg/auth"
)

// Caller is the authenticated user behind a request.
type Caller struct {
	UserID uuid.UUID
	Role   auth.Role
}

// MeDTO echoes the claims of the caller's token.
type MeDTO struct {
	ID    uuid.UUID `json:"id"`
	Role  auth.Role `json:"role"`
	Email string    `json:"email,omitempty"`
}

// CreateBookingRequest is the body of POST /bookings.
type CreateBookingRequest struct {
	BrokerID    uuid.UUID `json:"brokerId" binding:"required"`
	PropertyID  uuid.UUID `json:"propertyId" binding:"required"`
	VisitDate   string    `json:"visitDate" binding:"required,datetime=2006-01-02"`
	VisitTime   string    `json:"visitTime" binding:"required,visitslot"`
	ClientName  string    `json:"clientName" binding:"required,max=120"`
	ClientPhone string    `json:"clientPhone" binding:"required,max=40"`
	Message     string    `json:"message" binding:"max=1000"`
}

// UpdateStatusRequest is the body of PUT /bookings/{id}/status.
type UpdateStatusRequest struct {
	Status         string `json:"status" binding:"required"`
	ExpectedStatus string `json:"expectedStatus"`
}

// RescheduleRequest is the body of PUT /bookings/{id}/reschedule.
type RescheduleRequest struct {
	VisitDate      string `json:"visitDate" binding:"required,datetime=2006-01-02"`
	VisitTime      string `json:"visitTime" binding:"required,visitslot"`
	Message        string `json:"message" binding:"max=1000"`
	ExpectedStatus string `json:"expectedStatus"`
}

// Reschedule response actions.
const (
	ResponseAccept  = "accept"
	ResponseCounter = "counter"
)

// RescheduleResponseRequest is the body of PUT /bookings/{id}/reschedule-response.
type RescheduleResponseRequest struct {
	Action         string `json:"action" binding:"required,oneof=accept counter"`
	VisitDate      string `json:"visitDate" binding:"omitempty,datetime=2006-01-02"`
	VisitTime      string `json:"visitTime" binding:"omitempty,visitslot"`
	Message        string `json:"message" binding:"max=1000"`
	ExpectedStatus string `json:"expectedStatus"`
}

// ProposalDTO describes the pending proposal of a negotiation stage.
type ProposalDTO struct {
	ProposedBy string    `json:"proposed_by"`
	ProposedAt time.Time `json:"proposed_at"`
}

// BookingDTO is the response representation of a booking.
type BookingDTO struct {
	ID             uuid.UUID    `json:"id"`
	PropertyID     uuid.UUID    `json:"property_id"`
	BrokerID       uuid.UUID    `json:"broker_id"`
	ClientID       uuid.UUID    `json:"client_id"`
	ClientName     string       `json:"client_name"`
	ClientPhone    string       `json:"client_phone"`
	VisitDate      string       `json:"visit_date"`
	VisitTime      string       `json:"visit_time"`
	Message        string       `json:"message"`
	Status         string       `json:"status"`
	Rounds         int          `json:"rounds"`
	AwaitingAction string       `json:"awaiting_action_from,omitempty"`
	Proposal       *ProposalDTO `json:"proposal,omitempty"`
	CompletedAt    *time.Time   `json:"completed_at,omitempty"`
	CancelledBy    string       `json:"cancelled_by,omitempty"`
	CancelledAt    *time.Time   `json:"cancelled_at,omitempty"`
	Version        int64        `json:"version"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// ProposalEntryDTO is one row of the negotiation history.
type ProposalEntryDTO struct {
	ID         uuid.UUID `json:"id"`
	Round      int       `json:"round"`
	ProposedBy string    `json:"proposed_by"`
	VisitDate  string    `json:"visit_date"`
	VisitTime  string    `json:"visit_time"`
	Message    string    `json:"message"`
	CreatedAt  time.Time `json:"created_at"`
}

// BookingStatsDTO holds booking statistics for the admin dashboard.
type BookingStatsDTO struct {
	TotalBookings int64            `json:"total_bookings"`
	ByStatus      map[string]int64 `json:"by_status"`
}

func toBookingDTO(bk *bookingDomain.Booking) BookingDTO {
	dto := BookingDTO{
		ID:          bk.ID(),
		PropertyID:  bk.PropertyID(),
		BrokerID:    bk.BrokerID(),
		ClientID:    bk.ClientID(),
		ClientName:  bk.ClientName(),
		ClientPhone: bk.ClientPhone(),
		VisitDate:   bk.Schedule().DateString(),
		VisitTime:   bk.Schedule().Time,
		Message:     bk.Message(),
		Status:      string(bk.Status()),
		Rounds:      bk.Rounds(),
		Version:     bk.Version(),
		CreatedAt:   bk.CreatedAt(),
		UpdatedAt:   bk.UpdatedAt(),
	}
	if next, ok := bookingDomain.AwaitingResponseFrom(bk.Stage()); ok {
		dto.AwaitingAction = string(next)
	}

	switch st := bk.Stage().(type) {
	case bookingDomain.ReschedulePending:
		dto.Proposal = &ProposalDTO{ProposedBy: string(st.Proposal.By), ProposedAt: st.Proposal.At}
	case bookingDomain.CounterPending:
		dto.Proposal = &ProposalDTO{ProposedBy: string(st.Proposal.By), ProposedAt: st.Proposal.At}
	case bookingDomain.Completed:
		at := st.At
		dto.CompletedAt = &at
	case bookingDomain.Cancelled:
		at := st.At
		dto.CancelledBy = string(st.By)
		dto.CancelledAt = &at
	}
	return dto
}

func toProposalEntryDTO(e bookingDomain.ProposalEntry) ProposalEntryDTO {
	return ProposalEntryDTO{
		ID:         e.ID,
		Round:      e.Round,
		ProposedBy: string(e.By),
		VisitDate:  e.VisitDate,
		VisitTime:  e.VisitTime,
		Message:    e.Note,
		CreatedAt:  e.CreatedAt,
	}
}
