package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Mikespro21/ARC/internal/domain/entities"
)

// Error codes as constants for consistent error responses across handlers
const (
	// Validation errors
	ErrCodeInvalidRequest  = "INVALID_REQUEST"
	ErrCodeValidationError = "VALIDATION_ERROR"
	ErrCodeInvalidPeriod   = "INVALID_PERIOD"

	// Operation errors
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// Error messages as constants for consistency
const (
	MsgInvalidRequest = "Invalid request payload"
	MsgInternalError  = "Internal server error"
)

// ErrorResponseBuilder provides a fluent interface for building error responses
type ErrorResponseBuilder struct {
	status  int
	code    string
	message string
	details map[string]interface{}
}

// NewError creates a new ErrorResponseBuilder
func NewError(status int, code string) *ErrorResponseBuilder {
	return &ErrorResponseBuilder{
		status: status,
		code:   code,
	}
}

// Message sets the error message
func (e *ErrorResponseBuilder) Message(msg string) *ErrorResponseBuilder {
	e.message = msg
	return e
}

// Detail adds a single detail to the error response
func (e *ErrorResponseBuilder) Detail(key string, value interface{}) *ErrorResponseBuilder {
	if e.details == nil {
		e.details = make(map[string]interface{})
	}
	e.details[key] = value
	return e
}

// Send sends the error response
func (e *ErrorResponseBuilder) Send(c *gin.Context) {
	c.JSON(e.status, entities.ErrorResponse{
		Code:    e.code,
		Message: e.message,
		Details: e.details,
	})
}

// SendValidationError sends a validation error with field details
func SendValidationError(c *gin.Context, message string, fieldErrors map[string]string) {
	c.JSON(http.StatusBadRequest, entities.ErrorResponse{
		Code:    ErrCodeValidationError,
		Message: message,
		Details: map[string]interface{}{
			"validation_errors": fieldErrors,
		},
	})
}
