package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// ErrorResponse represents error response structure
type ErrorResponse struct {
	Error   string            `json:"error"`             // Error message
	Details map[string]string `json:"details,omitempty"` // Validation details
}

// ValidationHelper provides shared validation functionality
type ValidationHelper struct {
	validator *validator.Validate
}

// NewValidationHelper creates a new validation helper
func NewValidationHelper() *ValidationHelper {
	return &ValidationHelper{
		validator: validator.New(),
	}
}

// ValidateStruct validates a struct and returns validation errors
func (vh *ValidationHelper) ValidateStruct(s any) error {
	return vh.validator.Struct(s)
}

// SendErrorResponse sends a JSON error response
func SendErrorResponse(w http.ResponseWriter, message string, statusCode int, validationErr error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errorResp := ErrorResponse{Error: message}
	if validationErr != nil {
		errorResp.Details = make(map[string]string)
		var validationErrors validator.ValidationErrors
		if errors.As(validationErr, &validationErrors) {
			for _, err := range validationErrors {
				errorResp.Details[err.Field()] = fmt.Sprintf("Field Validation Failed on '%s' tag", err.Tag())
			}
		}
	}

	json.NewEncoder(w).Encode(errorResp)
}

// BusinessErrorStatus maps the ledger/entitlement sentinel errors to an HTTP
// status and a user-facing message. Anything unmapped is an infrastructure
// failure the caller should retry, surfaced as a generic 503.
func BusinessErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, ErrInvalidAmount):
		return http.StatusBadRequest, "Amount must be positive"
	case errors.Is(err, ErrInsufficientFunds):
		return http.StatusPaymentRequired, "Insufficient credits"
	case errors.Is(err, ErrDailyLimitReached):
		return http.StatusTooManyRequests, "Daily earn limit reached"
	case errors.Is(err, ErrAlreadyProcessed):
		return http.StatusConflict, "Payment already processed"
	case errors.Is(err, ErrNotCompleted):
		return http.StatusBadRequest, "Payment not completed"
	case errors.Is(err, ErrUserNotFound):
		return http.StatusNotFound, "User not found"
	case errors.Is(err, ErrPaymentNotFound):
		return http.StatusNotFound, "Payment not found"
	case errors.Is(err, ErrSessionNotFound):
		return http.StatusNotFound, "Watch session not found"
	}
	return http.StatusServiceUnavailable, "Temporary error, please retry"
}
