package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/brokerconnect/service-booking/internal/application"
	bookingDomain "github.com/brokerconnect/service-booking/internal/domain/booking"
	"github.com/brokerconnect/service-booking/pkg/apperror"
	"github.com/brokerconnect/service-booking/pkg/auth"
	"github.com/brokerconnect/service-booking/pkg/middleware"
	"github.com/brokerconnect/service-booking/pkg/response"
)

// BookingHandler handles HTTP requests for booking operations.
type BookingHandler struct {
	service *application.BookingService
}

// NewBookingHandler creates a new BookingHandler.
func NewBookingHandler(service *application.BookingService) *BookingHandler {
	return &BookingHandler{service: service}
}

// RegisterRoutes registers all booking routes on the given router group.
func (h *BookingHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	authMW := middleware.AuthMiddleware(jwtManager)
	clientOnly := middleware.RequireRole(auth.RoleClient)
	brokerOnly := middleware.RequireRole(auth.RoleBroker)

	bookings := r.Group("/bookings")
	bookings.Use(authMW)
	{
		bookings.POST("", clientOnly, h.CreateBooking)
		bookings.GET("/client", clientOnly, h.ListClientBookings)
		bookings.GET("/broker", brokerOnly, h.ListBrokerBookings)
		bookings.GET("/:id", h.GetBooking)
		bookings.GET("/:id/proposals", h.ListProposals)
		bookings.PUT("/:id/status", middleware.RequireRole(auth.RoleClient, auth.RoleBroker), h.UpdateStatus)
		bookings.PUT("/:id/reschedule", brokerOnly, h.Reschedule)
		bookings.PUT("/:id/reschedule-response", clientOnly, h.RespondToReschedule)
	}
}

// CreateBooking handles POST /api/v1/bookings.
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}

	var req application.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.CreateBooking(c.Request.Context(), caller.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// ListClientBookings handles GET /api/v1/bookings/client.
func (h *BookingHandler) ListClientBookings(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	filter, err := parseListFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.service.ListClientBookings(c.Request.Context(), caller.UserID, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, result.Items, result.Total, result.Page, result.Limit)
}

// ListBrokerBookings handles GET /api/v1/bookings/broker.
func (h *BookingHandler) ListBrokerBookings(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	filter, err := parseListFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.service.ListBrokerBookings(c.Request.Context(), caller.UserID, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, result.Items, result.Total, result.Page, result.Limit)
}

// GetBooking handles GET /api/v1/bookings/:id.
func (h *BookingHandler) GetBooking(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	bookingID, ok := bookingIDParam(c)
	if !ok {
		return
	}

	result, err := h.service.GetBooking(c.Request.Context(), caller, bookingID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// ListProposals handles GET /api/v1/bookings/:id/proposals.
func (h *BookingHandler) ListProposals(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	bookingID, ok := bookingIDParam(c)
	if !ok {
		return
	}

	result, err := h.service.ListProposals(c.Request.Context(), caller, bookingID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// UpdateStatus handles PUT /api/v1/bookings/:id/status.
func (h *BookingHandler) UpdateStatus(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	bookingID, ok := bookingIDParam(c)
	if !ok {
		return
	}

	var req application.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.UpdateStatus(c.Request.Context(), caller, bookingID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// Reschedule handles PUT /api/v1/bookings/:id/reschedule.
func (h *BookingHandler) Reschedule(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	bookingID, ok := bookingIDParam(c)
	if !ok {
		return
	}

	var req application.RescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.Reschedule(c.Request.Context(), caller, bookingID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// RespondToReschedule handles PUT /api/v1/bookings/:id/reschedule-response.
func (h *BookingHandler) RespondToReschedule(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	bookingID, ok := bookingIDParam(c)
	if !ok {
		return
	}

	var req application.RescheduleResponseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if req.Action == application.ResponseCounter && (req.VisitDate == "" || req.VisitTime == "") {
		response.BadRequest(c, "visitDate and visitTime are required to counter a proposal")
		return
	}

	result, err := h.service.RespondToReschedule(c.Request.Context(), caller, bookingID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// callerFrom reads the authenticated caller, writing 401 when absent.
func callerFrom(c *gin.Context) (application.Caller, bool) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return application.Caller{}, false
	}
	role, ok := middleware.GetUserRole(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return application.Caller{}, false
	}
	return application.Caller{UserID: userID, Role: role}, true
}

func bookingIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid booking ID")
		return uuid.Nil, false
	}
	return id, true
}

// parseListFilter reads the status, propertyId, page and limit query parameters.
func parseListFilter(c *gin.Context) (bookingDomain.ListFilter, error) {
	page, limit := parsePagination(c)
	filter := bookingDomain.ListFilter{Page: page, Limit: limit}

	if s := c.Query("status"); s != "" {
		status, err := bookingDomain.ParseBookingStatus(s)
		if err != nil {
			return filter, err
		}
		filter.Status = status
	}
	if p := c.Query("propertyId"); p != "" {
		id, err := uuid.Parse(p)
		if err != nil {
			return filter, apperror.NewValidationError("invalid propertyId")
		}
		filter.PropertyID = &id
	}
	return filter, nil
}

// parsePagination extracts page and limit query parameters with defaults.
func parsePagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	return page, limit
}
