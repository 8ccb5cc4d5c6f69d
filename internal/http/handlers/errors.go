package handlers

import (
	"errors"
	"net/http"

	"driverdesk/internal/domain"
	"driverdesk/internal/http/middleware"
	"driverdesk/internal/utils"

	"github.com/gin-gonic/gin"
)

// ErrorResponse standardizes error payloads.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	Details   any    `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func respondError(c *gin.Context, status int, code, message string, details any) {
	if code == "" {
		code = http.StatusText(status)
	}
	c.JSON(status, ErrorResponse{
		Error:     message,
		Code:      code,
		Details:   details,
		RequestID: middleware.GetRequestID(c),
	})
}

// RespondDomainError maps domain errors to HTTP responses.
func RespondDomainError(c *gin.Context, err error) {
	var (
		illegal  domain.IllegalTransitionError
		busy     domain.ScannerBusyError
		capacity domain.CapacityExceededError
	)
	switch {
	case errors.As(err, &illegal):
		respondError(c, http.StatusConflict, "illegal_transition", err.Error(), gin.H{"from": illegal.From, "attempted": illegal.Attempted})
	case errors.As(err, &busy):
		respondError(c, http.StatusConflict, "scanner_busy", err.Error(), gin.H{"session_id": busy.SessionID})
	case errors.As(err, &capacity):
		respondError(c, http.StatusConflict, "capacity_exceeded", err.Error(), gin.H{"requested": capacity.Requested, "free": capacity.Free})
	case domain.IsValidation(err):
		respondError(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case domain.IsNotFound(err):
		respondError(c, http.StatusNotFound, "not_found", err.Error(), nil)
	case domain.IsConflict(err):
		respondError(c, http.StatusConflict, "conflict", err.Error(), nil)
	default:
		utils.LogEvent(middleware.GetRequestID(c), "http", "internal_error", err.Error())
		respondError(c, http.StatusInternalServerError, "internal_error", "internal error", nil)
	}
}
