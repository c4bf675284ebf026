package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/Mikespro21/ARC/internal/domain/entities"
	domainerrors "github.com/Mikespro21/ARC/internal/domain/errors"
)

// getRequestID extracts request ID from context
func getRequestID(c *gin.Context) string {
	if reqID, exists := c.Get("request_id"); exists {
		if id, ok := reqID.(string); ok {
			return id
		}
	}
	return ""
}

// respondError sends a standardized error response
func respondError(c *gin.Context, status int, code, message string, details map[string]interface{}) {
	c.JSON(status, entities.ErrorResponse{
		Code:    code,
		Message: message,
		Details: details,
	})
}

// respondBadRequest sends a bad request error
func respondBadRequest(c *gin.Context, message string, details ...map[string]interface{}) {
	var det map[string]interface{}
	if len(details) > 0 {
		det = details[0]
	}
	respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, message, det)
}

// respondSuccess sends a success response with data
func respondSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// respondCreated sends a created response with data
func respondCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

// parseIntParam parses a query parameter to int with default value
func parseIntParam(c *gin.Context, param string, defaultVal int) int {
	if val := c.Query(param); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return defaultVal
}

// bindJSON decodes and validates the request body, writing a 400 on failure
func bindJSON(c *gin.Context, v *validator.Validate, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		respondBadRequest(c, MsgInvalidRequest, map[string]interface{}{"error": err.Error()})
		return false
	}
	if err := v.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			SendValidationError(c, "Request validation failed", fieldErrors(verrs))
			return false
		}
		respondBadRequest(c, MsgInvalidRequest)
		return false
	}
	return true
}

func fieldErrors(verrs validator.ValidationErrors) map[string]string {
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[fe.Field()] = fe.Tag()
	}
	return out
}

// handleDomainError maps engine errors onto HTTP status codes
func handleDomainError(c *gin.Context, err error) {
	status := statusFor(err)
	code := domainerrors.GetErrorCode(err)
	if code == "UNKNOWN_ERROR" {
		code = ErrCodeInternalError
	}

	message := err.Error()
	if status == http.StatusInternalServerError {
		message = MsgInternalError
	}

	details := domainerrors.GetErrorDetails(err)
	if reqID := getRequestID(c); reqID != "" && status >= http.StatusInternalServerError {
		if details == nil {
			details = map[string]interface{}{}
		}
		details["request_id"] = reqID
	}

	respondError(c, status, code, message, details)
}

func statusFor(err error) int {
	switch {
	case domainerrors.IsInvalidInput(err):
		return http.StatusBadRequest
	case domainerrors.IsNotFound(err):
		return http.StatusNotFound
	case domainerrors.IsConflict(err):
		return http.StatusConflict
	case domainerrors.IsServiceUnavailable(err):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
