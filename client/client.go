// Package client is the Go SDK for the booking API. It keeps an explicit
// session, checks transitions locally before sending them, and caches the
// caller's bookings between polls.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/brokerconnect/service-booking/internal/application"
	"github.com/brokerconnect/service-booking/pkg/response"
)

// DefaultTimeout bounds every request, mutations included.
const DefaultTimeout = 15 * time.Second

// Booking, Proposal and review shapes are shared with the server.
type (
	Booking      = application.BookingDTO
	ProposalItem = application.ProposalEntryDTO
	Review       = application.ReviewDTO
	HasReview    = application.HasReviewDTO
	BrokerReview = application.BrokerReviewsDTO
	TakenItem    = application.TakenPropertyDTO
	BookingStats = application.BookingStatsDTO
	User         = application.MeDTO

	CreateBookingRequest      = application.CreateBookingRequest
	UpdateStatusRequest       = application.UpdateStatusRequest
	RescheduleRequest         = application.RescheduleRequest
	RescheduleResponseRequest = application.RescheduleResponseRequest
	SubmitReviewRequest       = application.SubmitReviewRequest
)

// Page is one page of a list endpoint.
type Page[T any] struct {
	Data []T              `json:"data"`
	Meta response.PageMeta `json:"meta"`
}

// ListOptions are the optional list filters.
type ListOptions struct {
	Status     string
	PropertyID uuid.UUID
	Page       int
	Limit      int
}

func (o ListOptions) query() string {
	q := url.Values{}
	if o.Status != "" {
		q.Set("status", o.Status)
	}
	if o.PropertyID != uuid.Nil {
		q.Set("propertyId", o.PropertyID.String())
	}
	if o.Page > 0 {
		q.Set("page", strconv.Itoa(o.Page))
	}
	if o.Limit > 0 {
		q.Set("limit", strconv.Itoa(o.Limit))
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithLogger sets the logger used for detached mutation failures.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithCache attaches a BookingCache; it is cleared on logout.
func WithCache(bc *BookingCache) Option {
	return func(c *Client) { c.cache = bc }
}

// Client calls the booking API on behalf of a Session.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	session    *Session
	cache      *BookingCache
	logger     *zap.Logger

	inFlight   atomic.Int64
	mutationMu sync.Mutex
	generation uint64
}

// New creates a Client for baseURL (e.g. "https://api.example.com/api/v1").
func New(baseURL string, session *Session, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: DefaultTimeout,
		session: session,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.timeout}
	}
	if c.cache != nil {
		session.OnLogout(c.cache.Clear)
	}
	return c
}

// Session returns the client's session.
func (c *Client) Session() *Session { return c.session }

// Cache returns the attached cache, or nil.
func (c *Client) Cache() *BookingCache { return c.cache }

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	token := c.session.Token()
	if token == "" {
		return ErrNoSession
	}

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &NetworkError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Op: "read " + path, Err: err}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp.StatusCode, raw)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}

// mutate sends a state-changing request. It runs on a context detached from
// the caller's cancellation, so a UI that goes away does not abort a write the
// server may already be applying; the SDK timeout still bounds it. Any cached
// state is invalidated whatever the outcome.
func (c *Client) mutate(ctx context.Context, method, path string, in, out any) error {
	c.beginMutation()
	defer c.endMutation()

	ctx = context.WithoutCancel(ctx)
	err := c.do(ctx, method, path, in, out)
	if c.cache != nil {
		c.cache.Invalidate()
	}
	if err != nil {
		c.logger.Warn("booking mutation failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
	}
	return err
}

func (c *Client) beginMutation() {
	c.mutationMu.Lock()
	c.generation++
	c.mutationMu.Unlock()
	c.inFlight.Add(1)
}

func (c *Client) endMutation() {
	c.inFlight.Add(-1)
}

// mutationSnapshot returns the mutation generation and whether any mutation
// is currently in flight.
func (c *Client) mutationSnapshot() (uint64, bool) {
	c.mutationMu.Lock()
	defer c.mutationMu.Unlock()
	return c.generation, c.inFlight.Load() > 0
}

// Me returns the caller as seen by the server.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var u User
	if err := c.do(ctx, http.MethodGet, "/me", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateBooking requests a visit.
func (c *Client) CreateBooking(ctx context.Context, req CreateBookingRequest) (*Booking, error) {
	var b Booking
	if err := c.mutate(ctx, http.MethodPost, "/bookings", req, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// GetBooking fetches one booking.
func (c *Client) GetBooking(ctx context.Context, id uuid.UUID) (*Booking, error) {
	var b Booking
	if err := c.do(ctx, http.MethodGet, "/bookings/"+id.String(), nil, &b); err != nil {
		return nil, err
	}
	if c.cache != nil {
		c.cache.PutBooking(b)
	}
	return &b, nil
}

// ListClientBookings lists the caller's bookings as a client.
func (c *Client) ListClientBookings(ctx context.Context, opts ListOptions) (*Page[Booking], error) {
	return c.listBookings(ctx, "/bookings/client"+opts.query())
}

// ListBrokerBookings lists the bookings of the caller's properties.
func (c *Client) ListBrokerBookings(ctx context.Context, opts ListOptions) (*Page[Booking], error) {
	return c.listBookings(ctx, "/bookings/broker"+opts.query())
}

func (c *Client) listBookings(ctx context.Context, path string) (*Page[Booking], error) {
	var p Page[Booking]
	if err := c.do(ctx, http.MethodGet, path, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateStatus moves a booking to target, failing fast when the cached
// booking shows the move cannot be legal.
func (c *Client) UpdateStatus(ctx context.Context, id uuid.UUID, req UpdateStatusRequest) (*Booking, error) {
	if err := c.checkTarget(id, req.Status); err != nil {
		return nil, err
	}
	var b Booking
	if err := c.mutate(ctx, http.MethodPut, "/bookings/"+id.String()+"/status", req, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// Reschedule proposes a new slot (broker).
func (c *Client) Reschedule(ctx context.Context, id uuid.UUID, req RescheduleRequest) (*Booking, error) {
	if err := c.checkAction(id, actionProposeReschedule); err != nil {
		return nil, err
	}
	var b Booking
	if err := c.mutate(ctx, http.MethodPut, "/bookings/"+id.String()+"/reschedule", req, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// RespondToReschedule accepts or counters a proposal (client).
func (c *Client) RespondToReschedule(ctx context.Context, id uuid.UUID, req RescheduleResponseRequest) (*Booking, error) {
	action := actionAccept
	if req.Action == application.ResponseCounter {
		action = actionCounterPropose
	}
	if err := c.checkAction(id, action); err != nil {
		return nil, err
	}
	var b Booking
	if err := c.mutate(ctx, http.MethodPut, "/bookings/"+id.String()+"/reschedule-response", req, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// ListProposals returns the negotiation history.
func (c *Client) ListProposals(ctx context.Context, id uuid.UUID) ([]ProposalItem, error) {
	var out []ProposalItem
	if err := c.do(ctx, http.MethodGet, "/bookings/"+id.String()+"/proposals", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SubmitReview reviews a completed booking.
func (c *Client) SubmitReview(ctx context.Context, req SubmitReviewRequest) (*Review, error) {
	var r Review
	if err := c.mutate(ctx, http.MethodPost, "/reviews", req, &r); err != nil {
		return nil, err
	}
	if c.cache != nil {
		c.cache.SetReviewed(req.BookingID)
	}
	return &r, nil
}

// HasReview reports whether a booking has been reviewed, using the cache when
// it already knows the answer is yes.
func (c *Client) HasReview(ctx context.Context, bookingID uuid.UUID) (bool, error) {
	if c.cache != nil && c.cache.Reviewed(bookingID) {
		return true, nil
	}
	var out HasReview
	if err := c.do(ctx, http.MethodGet, "/reviews/booking/"+bookingID.String(), nil, &out); err != nil {
		return false, err
	}
	if out.HasReview && c.cache != nil {
		c.cache.SetReviewed(bookingID)
	}
	return out.HasReview, nil
}

// BrokerReviews lists a broker's reviews.
func (c *Client) BrokerReviews(ctx context.Context, brokerID uuid.UUID) (*BrokerReview, error) {
	var out BrokerReview
	if err := c.do(ctx, http.MethodGet, "/reviews/broker/"+brokerID.String(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// TakenProperties lists the client's "My Properties" bundles.
func (c *Client) TakenProperties(ctx context.Context) ([]TakenItem, error) {
	var out []TakenItem
	if err := c.do(ctx, http.MethodGet, "/properties/client/taken", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AdminListBookings lists every booking (admin).
func (c *Client) AdminListBookings(ctx context.Context, opts ListOptions) (*Page[Booking], error) {
	return c.listBookings(ctx, "/admin/bookings"+opts.query())
}

// AdminStats returns booking counts per status (admin).
func (c *Client) AdminStats(ctx context.Context) (*BookingStats, error) {
	var out BookingStats
	if err := c.do(ctx, http.MethodGet, "/admin/stats/bookings", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
