package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/brokerconnect/service-booking/internal/application"
	"github.com/brokerconnect/service-booking/pkg/auth"
	"github.com/brokerconnect/service-booking/pkg/middleware"
	"github.com/brokerconnect/service-booking/pkg/response"
)

// ReviewHandler serves the review gate and review reads.
type ReviewHandler struct {
	service *application.ReviewService
}

// NewReviewHandler creates a new ReviewHandler.
func NewReviewHandler(service *application.ReviewService) *ReviewHandler {
	return &ReviewHandler{service: service}
}

// RegisterRoutes registers review routes and the client's taken-properties view.
func (h *ReviewHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	authMW := middleware.AuthMiddleware(jwtManager)
	clientOnly := middleware.RequireRole(auth.RoleClient)

	reviews := r.Group("/reviews")
	reviews.Use(authMW)
	{
		reviews.POST("", clientOnly, h.SubmitReview)
		reviews.GET("/booking/:id", h.HasReview)
		reviews.GET("/broker/:id", h.BrokerReviews)
	}

	properties := r.Group("/properties")
	properties.Use(authMW)
	properties.GET("/client/taken", clientOnly, h.TakenProperties)
}

// SubmitReview handles POST /api/v1/reviews.
func (h *ReviewHandler) SubmitReview(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}

	var req application.SubmitReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.SubmitReview(c.Request.Context(), caller.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// HasReview handles GET /api/v1/reviews/booking/:id.
func (h *ReviewHandler) HasReview(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	bookingID, ok := bookingIDParam(c)
	if !ok {
		return
	}

	result, err := h.service.HasReview(c.Request.Context(), caller, bookingID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// BrokerReviews handles GET /api/v1/reviews/broker/:id.
func (h *ReviewHandler) BrokerReviews(c *gin.Context) {
	brokerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid broker ID")
		return
	}

	result, err := h.service.BrokerReviews(c.Request.Context(), brokerID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// TakenProperties handles GET /api/v1/properties/client/taken.
func (h *ReviewHandler) TakenProperties(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}

	result, err := h.service.TakenProperties(c.Request.Context(), caller.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}
