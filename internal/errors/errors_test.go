package errors

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/gin-gonic/gin"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fossbin/propease/internal/logger"
	"github.com/fossbin/propease/internal/middleware"
	"github.com/fossbin/propease/internal/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// setupTestContext creates a test Gin context with logger and request ID in context.
func setupTestContext() (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/test", nil)
	c.Set("logger", logger.Nop())
	c.Set(middleware.RequestIDKey, "test-request-id")
	return c, w
}

// parseErrorResponse parses the JSON response into an ErrorResponse struct.
func parseErrorResponse(t *testing.T, body *bytes.Buffer) ErrorResponse {
	var response ErrorResponse
	err := json.Unmarshal(body.Bytes(), &response)
	require.NoError(t, err, "Failed to parse error response JSON")
	return response
}

func TestNotFound(t *testing.T) {
	c, w := setupTestContext()

	NotFound(c, "Resource not found")

	assert.Equal(t, http.StatusNotFound, w.Code)
	response := parseErrorResponse(t, w.Body)
	assert.Equal(t, ErrNotFound, response.Error.Code)
	assert.Equal(t, "Resource not found", response.Error.Message)
	assert.Equal(t, "test-request-id", response.Error.RequestID)
	assert.Nil(t, response.Error.Details)
	assert.True(t, c.IsAborted())
}

func TestBadRequest(t *testing.T) {
	t.Run("without details", func(t *testing.T) {
		c, w := setupTestContext()

		BadRequest(c, "Invalid input", nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		response := parseErrorResponse(t, w.Body)
		assert.Equal(t, ErrBadRequest, response.Error.Code)
		assert.Nil(t, response.Error.Details)
	})

	t.Run("with details", func(t *testing.T) {
		c, w := setupTestContext()

		BadRequest(c, "Invalid as_of", map[string]interface{}{"as_of": "yesterday"})

		response := parseErrorResponse(t, w.Body)
		assert.Equal(t, "yesterday", response.Error.Details["as_of"])
	})
}

func TestInternalServerError(t *testing.T) {
	c, w := setupTestContext()

	InternalServerError(c, "An unexpected error occurred", errors.New("connection reset"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	response := parseErrorResponse(t, w.Body)
	assert.Equal(t, ErrInternalServer, response.Error.Code)
	assert.Equal(t, "An unexpected error occurred", response.Error.Message)
	assert.NotContains(t, w.Body.String(), "connection reset")
}

func TestAuthResponses(t *testing.T) {
	c, w := setupTestContext()
	Unauthorized(c, "who are you")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, ErrUnauthorized, parseErrorResponse(t, w.Body).Error.Code)

	c, w = setupTestContext()
	Forbidden(c, "not yours")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, ErrForbidden, parseErrorResponse(t, w.Body).Error.Code)

	c, w = setupTestContext()
	ServiceUnavailable(c, "store down", errors.New("dial tcp"))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, ErrStoreUnavailable, parseErrorResponse(t, w.Body).Error.Code)
}

func TestFromService(t *testing.T) {
	tests := []struct {
		sentinel error
		status   int
		code     string
	}{
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

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			c, w := setupTestContext()
			err := fmt.Errorf("%w: detail for the client", tt.sentinel)

			FromService(c, err)

			assert.Equal(t, tt.status, w.Code)
			response := parseErrorResponse(t, w.Body)
			assert.Equal(t, tt.code, response.Error.Code)
			assert.Equal(t, err.Error(), response.Error.Message)
			assert.Equal(t, "test-request-id", response.Error.RequestID)
		})
	}

	t.Run("unknown errors are internal", func(t *testing.T) {
		c, w := setupTestContext()

		FromService(c, errors.New("pq: relation does not exist"))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "relation")
	})
}

func TestBindingError(t *testing.T) {
	type request struct {
		Reason string `validate:"required"`
	}
	err := validator.New().Struct(request{})
	require.Error(t, err)

	c, w := setupTestContext()
	BindingError(c, err)
	response := parseErrorResponse(t, w.Body)
	assert.Equal(t, ErrValidation, response.Error.Code)
	assert.Equal(t, "This field is required", response.Error.Details["Reason"])

	c, w = setupTestContext()
	BindingError(c, errors.New("unexpected EOF"))
	response = parseErrorResponse(t, w.Body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, ErrBadRequest, response.Error.Code)
}

func TestValidationError(t *testing.T) {
	c, w := setupTestContext()

	type TestStruct struct {
		Price    string `validate:"required"`
		Capacity int    `validate:"required,gte=1"`
	}

	err := validator.New().Struct(TestStruct{Capacity: -1})
	require.Error(t, err)

	var validationErrors validator.ValidationErrors
	require.True(t, errors.As(err, &validationErrors))

	ValidationError(c, validationErrors)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	response := parseErrorResponse(t, w.Body)
	assert.Equal(t, ErrValidation, response.Error.Code)
	assert.Equal(t, "Validation failed for one or more fields", response.Error.Message)
	assert.Contains(t, response.Error.Details, "Price")
	assert.Contains(t, response.Error.Details, "Capacity")
}

func TestFormatValidationError(t *testing.T) {
	tests := []struct {
		tag      string
		param    string
		expected string
	}{
		{"required", "", "This field is required"},
		{"required_with", "Lat", "This field is required together with Lat"},
		{"min", "5", "Value is too short or small (minimum: 5)"},
		{"max", "100", "Value is too long or large (maximum: 100)"},
		{"gt", "0", "Must be greater than 0"},
		{"gte", "18", "Must be greater than or equal to 18"},
		{"lt", "100", "Must be less than 100"},
		{"lte", "100", "Must be less than or equal to 100"},
		{"oneof", "Approved Rejected", "Must be one of: Approved Rejected"},
		{"uuid", "", "Must be a valid UUID"},
		{"datetime", "2006-01-02", "Must be a date in the format 2006-01-02"},
		{"unknown_tag", "", "Validation failed for tag: unknown_tag"},
	}

	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			result := formatValidationError(&mockFieldError{tag: tt.tag, param: tt.param})
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestErrorResponseWithoutContext(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/test", nil)

	FromService(c, fmt.Errorf("%w: property x", services.ErrNotFound))

	assert.Equal(t, http.StatusNotFound, w.Code)
	response := parseErrorResponse(t, w.Body)
	assert.Empty(t, response.Error.RequestID)
}

// mockFieldError is a mock implementation of validator.FieldError for testing.
type mockFieldError struct {
	tag   string
	param string
}

func (m *mockFieldError) Tag() string                    { return m.tag }
func (m *mockFieldError) ActualTag() string              { return m.tag }
func (m *mockFieldError) Namespace() string              { return "" }
func (m *mockFieldError) StructNamespace() string        { return "" }
func (m *mockFieldError) Field() string                  { return "TestField" }
func (m *mockFieldError) StructField() string            { return "TestField" }
func (m *mockFieldError) Value() interface{}             { return nil }
func (m *mockFieldError) Param() string                  { return m.param }
func (m *mockFieldError) Kind() reflect.Kind             { return reflect.String }
func (m *mockFieldError) Type() reflect.Type             { return nil }
func (m *mockFieldError) Translate(ut.Translator) string { return "" }
func (m *mockFieldError) Error() string                  { return "" }
