package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	bookingDomain "github.com/brokerconnect/service-booking/internal/domain/booking"
	"github.com/brokerconnect/service-booking/pkg/apperror"
)

// BookingModel is the GORM model for the bookings table.
type BookingModel struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey"`
	PropertyID  uuid.UUID  `gorm:"type:uuid;index;not null"`
	BrokerID    uuid.UUID  `gorm:"type:uuid;index;not null"`
	ClientID    uuid.UUID  `gorm:"type:uuid;index;not null"`
	ClientName  string     `gorm:"not null;size:120"`
	ClientPhone string     `gorm:"not null;size:40"`
	VisitDate   time.Time  `gorm:"type:date;not null"`
	VisitTime   string     `gorm:"not null;size:5"`
	Message     string     `gorm:"size:1000"`
	Status      string     `gorm:"not null;size:30;index"`
	Rounds      int        `gorm:"not null;default:0"`
	ProposedAt  *time.Time `gorm:""`
	CompletedAt *time.Time `gorm:""`
	CancelledBy string     `gorm:"size:10"`
	CancelledAt *time.Time `gorm:""`
	Version     int64      `gorm:"not null;default:1"`
	CreatedAt   time.Time  `gorm:"not null"`
	UpdatedAt   time.Time  `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (BookingModel) TableName() string {
	return "bookings"
}

// ProposalModel is the GORM model for the booking_proposals table.
type ProposalModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	BookingID uuid.UUID `gorm:"type:uuid;index;not null"`
	Round     int       `gorm:"not null"`
	Proposer  string    `gorm:"not null;size:10"`
	VisitDate time.Time `gorm:"type:date;not null"`
	VisitTime string    `gorm:"not null;size:5"`
	Note      string    `gorm:"size:1000"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (ProposalModel) TableName() string {
	return "booking_proposals"
}

// GormBookingRepository is the GORM-based implementation of BookingRepository.
type GormBookingRepository struct {
	db *gorm.DB
}

// NewGormBookingRepository creates a new GormBookingRepository.
func NewGormBookingRepository(db *gorm.DB) *GormBookingRepository {
	return &GormBookingRepository{db: db}
}

// FindByID retrieves a booking by its unique identifier.
func (r *GormBookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*bookingDomain.Booking, error) {
	var model BookingModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NewNotFoundError("Booking", id.String())
		}
		return nil, fmt.Errorf("failed to find booking by ID: %w", err)
	}
	return toDomainBooking(&model)
}

// FindActiveByClientAndProperty returns the client's non-terminal booking for a property, or nil.
func (r *GormBookingRepository) FindActiveByClientAndProperty(ctx context.Context, clientID, propertyID uuid.UUID) (*bookingDomain.Booking, error) {
	var models []BookingModel
	if err := r.db.WithContext(ctx).
		Where("client_id = ? AND property_id = ?", clientID, propertyID).
		Where("status NOT IN ?", terminalStatuses()).
		Limit(1).
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to find active booking: %w", err)
	}
	if len(models) == 0 {
		return nil, nil
	}
	return toDomainBooking(&models[0])
}

// FindByClientID retrieves a client's bookings with filters and pagination.
func (r *GormBookingRepository) FindByClientID(ctx context.Context, clientID uuid.UUID, filter bookingDomain.ListFilter) ([]*bookingDomain.Booking, int64, error) {
	return r.list(ctx, r.db.WithContext(ctx).Where("client_id = ?", clientID), filter)
}

// FindByBrokerID retrieves a broker's bookings with filters and pagination.
func (r *GormBookingRepository) FindByBrokerID(ctx context.Context, brokerID uuid.UUID, filter bookingDomain.ListFilter) ([]*bookingDomain.Booking, int64, error) {
	return r.list(ctx, r.db.WithContext(ctx).Where("broker_id = ?", brokerID), filter)
}

// ListAll retrieves all bookings with pagination (admin).
func (r *GormBookingRepository) ListAll(ctx context.Context, filter bookingDomain.ListFilter) ([]*bookingDomain.Booking, int64, error) {
	return r.list(ctx, r.db.WithContext(ctx), filter)
}

func (r *GormBookingRepository) list(ctx context.Context, q *gorm.DB, filter bookingDomain.ListFilter) ([]*bookingDomain.Booking, int64, error) {
	q = q.Model(&BookingModel{})
	if filter.Status != "" {
		q = q.Where("status = ?", string(filter.Status))
	}
	if filter.PropertyID != nil {
		q = q.Where("property_id = ?", *filter.PropertyID)
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count bookings: %w", err)
	}

	page, limit := normalizePage(filter.Page, filter.Limit)
	var models []BookingModel
	if err := q.Session(&gorm.Session{}).
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list bookings: %w", err)
	}

	bookings := make([]*bookingDomain.Booking, len(models))
	for i := range models {
		bk, err := toDomainBooking(&models[i])
		if err != nil {
			return nil, 0, err
		}
		bookings[i] = bk
	}
	return bookings, total, nil
}

// CountByStatus returns booking counts grouped by status (admin).
func (r *GormBookingRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	type statusCount struct {
		Status string
		Count  int64
	}
	var results []statusCount
	if err := r.db.WithContext(ctx).Model(&BookingModel{}).
		Select("status, count(*) as count").
		Group("status").
		Find(&results).Error; err != nil {
		return nil, fmt.Errorf("failed to count by status: %w", err)
	}

	counts := make(map[string]int64)
	for _, sc := range results {
		counts[sc.Status] = sc.Count
	}
	return counts, nil
}

// Save persists a new booking. The partial unique index on active
// (client_id, property_id) pairs turns a racing duplicate into a conflict.
func (r *GormBookingRepository) Save(ctx context.Context, bk *bookingDomain.Booking) error {
	model := toBookingModel(bk)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperror.NewConflictError("an active booking already exists for this property")
		}
		return fmt.Errorf("failed to save booking: %w", err)
	}
	return nil
}

// Update persists changes to an existing booking with optimistic locking.
func (r *GormBookingRepository) Update(ctx context.Context, bk *bookingDomain.Booking) error {
	return r.update(r.db.WithContext(ctx), bk)
}

// UpdateWithProposal writes the booking and its history row in one transaction.
func (r *GormBookingRepository) UpdateWithProposal(ctx context.Context, bk *bookingDomain.Booking, entry bookingDomain.ProposalEntry) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := r.update(tx, bk); err != nil {
			return err
		}
		if err := tx.Create(toProposalModel(entry)).Error; err != nil {
			return fmt.Errorf("failed to save proposal: %w", err)
		}
		return nil
	})
}

func (r *GormBookingRepository) update(db *gorm.DB, bk *bookingDomain.Booking) error {
	model := toBookingModel(bk)

	// IncrementVersion was called before Update, so the stored row holds Version()-1.
	expectedVersion := bk.Version() - 1
	result := db.Model(&BookingModel{}).
		Where("id = ? AND version = ?", model.ID, expectedVersion).
		Updates(map[string]interface{}{
			"visit_date":   model.VisitDate,
			"visit_time":   model.VisitTime,
			"message":      model.Message,
			"status":       model.Status,
			"rounds":       model.Rounds,
			"proposed_at":  model.ProposedAt,
			"completed_at": model.CompletedAt,
			"cancelled_by": model.CancelledBy,
			"cancelled_at": model.CancelledAt,
			"version":      model.Version,
			"updated_at":   model.UpdatedAt,
		})

	if result.Error != nil {
		return fmt.Errorf("failed to update booking: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperror.NewStaleStateError("booking was modified by another request; reload and try again")
	}
	return nil
}

// ListProposals returns a booking's negotiation history, oldest first.
func (r *GormBookingRepository) ListProposals(ctx context.Context, bookingID uuid.UUID) ([]bookingDomain.ProposalEntry, error) {
	var models []ProposalModel
	if err := r.db.WithContext(ctx).
		Where("booking_id = ?", bookingID).
		Order("round ASC").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list proposals: %w", err)
	}

	out := make([]bookingDomain.ProposalEntry, len(models))
	for i, m := range models {
		out[i] = bookingDomain.ProposalEntry{
			ID:        m.ID,
			BookingID: m.BookingID,
			Round:     m.Round,
			By:        bookingDomain.Actor(m.Proposer),
			VisitDate: m.VisitDate.Format(bookingDomain.DateLayout),
			VisitTime: m.VisitTime,
			Note:      m.Note,
			CreatedAt: m.CreatedAt,
		}
	}
	return out, nil
}

// --- Conversion Helpers ---

func terminalStatuses() []string {
	return []string{string(bookingDomain.StatusCompleted), string(bookingDomain.StatusCancelled)}
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}

func toBookingModel(bk *bookingDomain.Booking) *BookingModel {
	rec := bookingDomain.RecordOf(bk.Stage(), bk.Schedule(), bk.Message())
	return &BookingModel{
		ID:          bk.ID(),
		PropertyID:  bk.PropertyID(),
		BrokerID:    bk.BrokerID(),
		ClientID:    bk.ClientID(),
		ClientName:  bk.ClientName(),
		ClientPhone: bk.ClientPhone(),
		VisitDate:   bk.Schedule().Date,
		VisitTime:   bk.Schedule().Time,
		Message:     bk.Message(),
		Status:      string(rec.Status),
		Rounds:      bk.Rounds(),
		ProposedAt:  rec.ProposedAt,
		CompletedAt: rec.CompletedAt,
		CancelledBy: string(rec.CancelledBy),
		CancelledAt: rec.CancelledAt,
		Version:     bk.Version(),
		CreatedAt:   bk.CreatedAt(),
		UpdatedAt:   bk.UpdatedAt(),
	}
}

func toDomainBooking(m *BookingModel) (*bookingDomain.Booking, error) {
	status, err := bookingDomain.ParseBookingStatus(m.Status)
	if err != nil {
		return nil, fmt.Errorf("booking %s: %w", m.ID, err)
	}

	schedule := bookingDomain.Schedule{
		Date: time.Date(m.VisitDate.Year(), m.VisitDate.Month(), m.VisitDate.Day(), 0, 0, 0, 0, time.UTC),
		Time: m.VisitTime,
	}
	stage, err := bookingDomain.StageFromRecord(bookingDomain.StageRecord{
		Status:      status,
		Schedule:    schedule,
		Message:     m.Message,
		ProposedAt:  m.ProposedAt,
		CompletedAt: m.CompletedAt,
		CancelledBy: bookingDomain.Actor(m.CancelledBy),
		CancelledAt: m.CancelledAt,
	})
	if err != nil {
		return nil, fmt.Errorf("booking %s: %w", m.ID, err)
	}

	return bookingDomain.ReconstructBooking(
		m.ID,
		m.PropertyID,
		m.BrokerID,
		m.ClientID,
		m.ClientName,
		m.ClientPhone,
		schedule,
		m.Message,
		stage,
		m.Rounds,
		m.Version,
		m.CreatedAt,
		m.UpdatedAt,
	), nil
}

func toProposalModel(e bookingDomain.ProposalEntry) *ProposalModel {
	d, _ := time.Parse(bookingDomain.DateLayout, e.VisitDate)
	return &ProposalModel{
		ID:        e.ID,
		BookingID: e.BookingID,
		Round:     e.Round,
		Proposer:  string(e.By),
		VisitDate: d,
		VisitTime: e.VisitTime,
		Note:      e.Note,
		CreatedAt: e.CreatedAt,
	}
}
