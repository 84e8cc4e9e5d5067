package errors

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/fossbin/propease/internal/logger"
	"github.com/fossbin/propease/internal/middleware"
	"github.com/fossbin/propease/internal/services"
)

// Error code constants for standardized error responses
const (
	ErrNotFound            = "NOT_FOUND"
	ErrBadRequest          = "BAD_REQUEST"
	ErrInternalServer      = "INTERNAL_SERVER_ERROR"
	ErrValidation          = "VALIDATION_ERROR"
	ErrUnauthorized        = "UNAUTHORIZED"
	ErrForbidden           = "FORBIDDEN"
	ErrInvalidState        = "INVALID_STATE"
	ErrAlreadyResolved     = "ALREADY_RESOLVED"
	ErrPropertyNotEligible = "PROPERTY_NOT_ELIGIBLE"
	ErrDuplicatePayment    = "DUPLICATE_PAYMENT"
	ErrOutOfOrderPayment   = "OUT_OF_ORDER_PAYMENT"
	ErrForbiddenTransition = "FORBIDDEN_TRANSITION"
	ErrImmutableRecord     = "IMMUTABLE_RECORD"
	ErrStoreUnavailable    = "STORE_UNAVAILABLE"
)

// ErrorResponse is the top-level error response structure.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the error information.
type ErrorDetail struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}

// serviceError maps a service sentinel to its HTTP representation.
type serviceError struct {
	target error
	status int
	code   string
}

// Ordered; the first match wins.
var serviceErrors = []serviceError{
	{services.ErrValidation, http.StatusBadRequest, ErrValidation},
	{services.ErrNotFound, http.StatusNotFound, ErrNotFound},
	{services.ErrNotAuthorized, http.StatusForbidden, ErrForbidden},
	{services.ErrInvalidState, http.StatusConflict, ErrInvalidState},
	{services.ErrAlreadyResolved, http.StatusConflict, ErrAlreadyResolved},
	{services.ErrPropertyNotEligible, http.StatusConflict, ErrPropertyNotEligible},
	{services.ErrDuplicatePayment, http.StatusConflict, ErrDuplicatePayment},
	{services.ErrOutOfOrderPayment, http.StatusConflict, ErrOutOfOrderPayment},
	{services.ErrForbiddenTransition, http.StatusUnprocessableEntity, ErrForbiddenTransition},
	{services.ErrImmutableRecord, http.StatusUnprocessableEntity, ErrImmutableRecord},
}

// Classify returns the HTTP status and code for a service error.
// Unknown errors are internal.
func Classify(err error) (int, string) {
	for _, se := range serviceErrors {
		if errors.Is(err, se.target) {
			return se.status, se.code
		}
	}
	return http.StatusInternalServerError, ErrInternalServer
}

// FromService writes the response for an error returned by the services
// package. Client errors carry the wrapped message; anything unrecognised is
// logged and reported as a generic internal error.
func FromService(c *gin.Context, err error) {
	status, code := Classify(err)
	if status == http.StatusInternalServerError {
		InternalServerError(c, "An unexpected error occurred", err)
		return
	}
	if status == http.StatusNotFound {
		NotFound(c, err.Error())
		return
	}

	if log := middleware.GetLogger(c); log != nil {
		log.Warn("Request refused", logger.Fields{
			"code":       code,
			"message":    err.Error(),
			"request_id": middleware.GetRequestID(c),
			"path":       c.Request.URL.Path,
		})
	}
	respond(c, status, code, err.Error(), nil)
}

func respond(c *gin.Context, status int, code, message string, details map[string]interface{}) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		Error: ErrorDetail{
			Code:      code,
			Message:   message,
			Details:   details,
			RequestID: middleware.GetRequestID(c),
		},
	})
}

// NotFound returns a 404 Not Found error response.
// It logs a warning and sends a JSON response with the error details.
func NotFound(c *gin.Context, message string) {
	if log := middleware.GetLogger(c); log != nil {
		log.Warn("Resource not found", logger.Fields{
			"message":    message,
			"request_id": middleware.GetRequestID(c),
			"path":       c.Request.URL.Path,
		})
	}
	respond(c, http.StatusNotFound, ErrNotFound, message, nil)
}

// BadRequest returns a 400 Bad Request error response with optional details.
func BadRequest(c *gin.Context, message string, details map[string]interface{}) {
	if log := middleware.GetLogger(c); log != nil {
		fields := logger.Fields{
			"message":    message,
			"request_id": middleware.GetRequestID(c),
			"path":       c.Request.URL.Path,
		}
		if details != nil {
			fields["details"] = details
		}
		log.Warn("Bad request", fields)
	}
	respond(c, http.StatusBadRequest, ErrBadRequest, message, details)
}

// Unauthorized returns a 401 response for requests without a caller identity.
func Unauthorized(c *gin.Context, message string) {
	respond(c, http.StatusUnauthorized, ErrUnauthorized, message, nil)
}

// Forbidden returns a 403 response for callers lacking permission.
func Forbidden(c *gin.Context, message string) {
	respond(c, http.StatusForbidden, ErrForbidden, message, nil)
}

// ServiceUnavailable returns a 503 response when the store cannot be reached.
func ServiceUnavailable(c *gin.Context, message string, err error) {
	if log := middleware.GetLogger(c); log != nil {
		log.Error("Store unavailable", err, logger.Fields{
			"request_id": middleware.GetRequestID(c),
			"path":       c.Request.URL.Path,
		})
	}
	respond(c, http.StatusServiceUnavailable, ErrStoreUnavailable, message, nil)
}

// InternalServerError returns a 500 Internal Server Error response.
// The underlying error is logged and never exposed to the client.
func InternalServerError(c *gin.Context, message string, err error) {
	if log := middleware.GetLogger(c); log != nil {
		log.Error("Internal server error", err, logger.Fields{
			"message":    message,
			"request_id": middleware.GetRequestID(c),
			"path":       c.Request.URL.Path,
			"method":     c.Request.Method,
		})
	}
	respond(c, http.StatusInternalServerError, ErrInternalServer, message, nil)
}

// BindingError reports a failed gin bind. Validator failures become
// field-level details; anything else is a malformed request.
func BindingError(c *gin.Context, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		ValidationError(c, validationErrors)
		return
	}
	BadRequest(c, "Malformed request", map[string]interface{}{"reason": err.Error()})
}

// ValidationError returns a 400 Bad Request error response with field-specific validation errors.
func ValidationError(c *gin.Context, validationErrors validator.ValidationErrors) {
	details := make(map[string]interface{}, len(validationErrors))
	for _, err := range validationErrors {
		details[err.Field()] = formatValidationError(err)
	}

	if log := middleware.GetLogger(c); log != nil {
		log.Warn("Validation error", logger.Fields{
			"request_id": middleware.GetRequestID(c),
			"path":       c.Request.URL.Path,
			"fields":     details,
		})
	}
	respond(c, http.StatusBadRequest, ErrValidation, "Validation failed for one or more fields", details)
}

// formatValidationError converts a validator.FieldError to a human-readable message.
func formatValidationError(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return "This field is required"
	case "required_with":
		return "This field is required together with " + err.Param()
	case "min":
		return "Value is too short or small (minimum: " + err.Param() + ")"
	case "max":
		return "Value is too long or large (maximum: " + err.Param() + ")"
	case "gt":
		return "Must be greater than " + err.Param()
	case "gte":
		return "Must be greater than or equal to " + err.Param()
	case "lt":
		return "Must be less than " + err.Param()
	case "lte":
		return "Must be less than or equal to " + err.Param()
	case "oneof":
		return "Must be one of: " + err.Param()
	case "uuid":
		return "Must be a valid UUID"
	case "datetime":
		return "Must be a date in the format " + err.Param()
	case "dive":
		return "Contains an invalid element"
	default:
		return "Validation failed for tag: " + err.Tag()
	}
}
