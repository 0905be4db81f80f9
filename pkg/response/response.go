// Package response writes the JSON envelopes used by every handler.
package response

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/brokerconnect/service-booking/pkg/apperror"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// PageMeta describes a paginated list.
type PageMeta struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
}

// Success writes 200 with data as the body.
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

// Created writes 201 with data as the body.
func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, data)
}

// Paginated writes 200 with {data, meta}.
func Paginated(c *gin.Context, items any, total int64, page, limit int) {
	c.JSON(http.StatusOK, gin.H{
		"data": items,
		"meta": PageMeta{Page: page, Limit: limit, Total: total},
	})
}

// BadRequest writes a 400 validation error.
func BadRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorBody{Error: string(apperror.KindValidation), Message: message})
}

// Unauthorized writes a 401.
func Unauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorBody{Error: string(apperror.KindUnauthorized), Message: message})
}

// Error maps err to a status code and writes it.
func Error(c *gin.Context, err error) {
	status, body := Classify(err)
	c.AbortWithStatusJSON(status, body)
}

// Classify maps an application error to its HTTP status and body.
func Classify(err error) (int, ErrorBody) {
	var te *apperror.TransitionError
	if errors.As(err, &te) {
		return http.StatusConflict, ErrorBody{
			Error:   string(apperror.KindInvalidTransition),
			Message: te.Error(),
			Details: gin.H{"action": te.Action, "status": te.From, "role": te.Actor},
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusServiceUnavailable, ErrorBody{Error: "TIMEOUT", Message: "request timed out"}
	}

	var ae *apperror.Error
	if !errors.As(err, &ae) {
		return http.StatusInternalServerError, ErrorBody{Error: "INTERNAL_ERROR", Message: "internal server error"}
	}

	body := ErrorBody{Error: string(ae.Kind), Message: ae.Error()}
	switch ae.Kind {
	case apperror.KindValidation:
		return http.StatusBadRequest, body
	case apperror.KindNotFound:
		return http.StatusNotFound, body
	case apperror.KindForbidden:
		return http.StatusForbidden, body
	case apperror.KindUnauthorized:
		return http.StatusUnauthorized, body
	case apperror.KindConflict, apperror.KindStaleState, apperror.KindInvalidTransition:
		return http.StatusConflict, body
	default:
		return http.StatusInternalServerError, ErrorBody{Error: "INTERNAL_ERROR", Message: "internal server error"}
	}
}
