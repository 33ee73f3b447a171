package api

import (
	"errors"
	"net/http"

	"github.com/Domenick1991/airreservations/internal/domain"
	"github.com/gin-gonic/gin"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// statusFor maps a service error to its HTTP status and machine-readable code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusUnprocessableEntity, "validation_error"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, domain.ErrInsufficientInventory):
		return http.StatusUnprocessableEntity, "insufficient_inventory"
	case errors.Is(err, domain.ErrBookingClosed):
		return http.StatusUnprocessableEntity, "booking_closed"
	case errors.Is(err, domain.ErrAlreadyCanceled):
		return http.StatusUnprocessableEntity, "already_canceled"
	case errors.Is(err, domain.ErrTransactionConflict):
		return http.StatusConflict, "transaction_conflict"
	case errors.Is(err, domain.ErrFlightHasBookings):
		return http.StatusConflict, "flight_has_bookings"
	case errors.Is(err, domain.ErrCodeGenerationExhausted):
		return http.StatusServiceUnavailable, "code_generation_exhausted"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func writeError(c *gin.Context, err error) {
	status, code := statusFor(err)
	resp := errorResponse{Error: code, Message: err.Error()}

	var vErr *domain.ValidationError
	if errors.As(err, &vErr) {
		resp.Field = vErr.Field
		resp.Message = vErr.Error()
	}
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		resp.Message = "internal server error"
	}
	if domain.IsRetryable(err) {
		c.Header("Retry-After", "1")
	}
	c.AbortWithStatusJSON(status, resp)
}

func writeBadRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: "bad_request", Message: message})
}
