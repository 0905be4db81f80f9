package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/brokerconnect/service-booking/internal/application"
	"github.com/brokerconnect/service-booking/pkg/auth"
	"github.com/brokerconnect/service-booking/pkg/middleware"
	"github.com/brokerconnect/service-booking/pkg/response"
)

// MeHandler serves GET /api/v1/me.
type MeHandler struct{}

// RegisterRoutes registers the session refresh route.
func (h MeHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	r.GET("/me", middleware.AuthMiddleware(jwtManager), h.Me)
}

// Me handles GET /api/v1/me.
func (MeHandler) Me(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	response.Success(c, application.MeDTO{ID: caller.UserID, Role: caller.Role, Email: middleware.GetUserEmail(c)})
}
