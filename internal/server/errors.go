package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	apartmentdomain "github.com/smallbiznis/bluemoon/internal/apartment/domain"
	"github.com/smallbiznis/bluemoon/internal/authorization"
	extrafeedomain "github.com/smallbiznis/bluemoon/internal/extrafee/domain"
	invoicedomain "github.com/smallbiznis/bluemoon/internal/invoice/domain"
	obsmetrics "github.com/smallbiznis/bluemoon/internal/observability/metrics"
	pricedomain "github.com/smallbiznis/bluemoon/internal/price/domain"
	ratingdomain "github.com/smallbiznis/bluemoon/internal/rating/domain"
	usagedomain "github.com/smallbiznis/bluemoon/internal/usage/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, authorization.ErrInvalidRole):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authorization.ErrForbidden):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: conflictMessage(err),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case isBillingConfigError(err):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "billing_configuration_error",
			Message: err.Error(),
		}
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, invoicedomain.ErrInvalidPeriod),
		errors.Is(err, invoicedomain.ErrInvalidID),
		errors.Is(err, invoicedomain.ErrInvalidYear),
		errors.Is(err, pricedomain.ErrInvalidCategory),
		errors.Is(err, pricedomain.ErrInvalidModel),
		errors.Is(err, pricedomain.ErrInvalidDateRange),
		errors.Is(err, pricedomain.ErrInvalidUnitPrice),
		errors.Is(err, pricedomain.ErrInvalidTiers),
		errors.Is(err, extrafeedomain.ErrInvalidID),
		errors.Is(err, extrafeedomain.ErrInvalidApartment),
		errors.Is(err, extrafeedomain.ErrInvalidTitle),
		errors.Is(err, extrafeedomain.ErrInvalidQuantity),
		errors.Is(err, extrafeedomain.ErrInvalidUnitPrice),
		errors.Is(err, extrafeedomain.ErrInvalidFeeDate),
		errors.Is(err, usagedomain.ErrInvalidPeriod),
		errors.Is(err, usagedomain.ErrInvalidApartment),
		errors.Is(err, usagedomain.ErrInvalidCategory),
		errors.Is(err, usagedomain.ErrInvalidIndex),
		errors.Is(err, usagedomain.ErrIndexRegression),
		errors.Is(err, usagedomain.ErrDuplicateReading),
		errors.Is(err, usagedomain.ErrEmptyImport),
		errors.Is(err, ratingdomain.ErrInvalidInput),
		errors.Is(err, apartmentdomain.ErrInvalidVehicleClass):
		return true
	default:
		return false
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, ErrConflict),
		errors.Is(err, invoicedomain.ErrPeriodFinalized),
		errors.Is(err, invoicedomain.ErrGenerationInProgress),
		errors.Is(err, pricedomain.ErrOverlappingSchedule):
		return true
	default:
		return false
	}
}

func conflictMessage(err error) string {
	switch {
	case errors.Is(err, invoicedomain.ErrPeriodFinalized):
		return "period already has finalized invoices"
	case errors.Is(err, invoicedomain.ErrGenerationInProgress):
		return "invoice generation already running for this period"
	case errors.Is(err, pricedomain.ErrOverlappingSchedule):
		return "price schedule overlaps an existing schedule"
	default:
		return "conflict"
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, invoicedomain.ErrNotFound),
		errors.Is(err, pricedomain.ErrNotFound),
		errors.Is(err, extrafeedomain.ErrNotFound),
		errors.Is(err, apartmentdomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func isBillingConfigError(err error) bool {
	switch {
	case errors.Is(err, pricedomain.ErrNoActivePrice),
		errors.Is(err, pricedomain.ErrAmbiguousPrice),
		errors.Is(err, pricedomain.ErrUnexpectedModel),
		errors.Is(err, pricedomain.ErrTierNotFound),
		errors.Is(err, ratingdomain.ErrUnknownCategory):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	default:
		code := err.Error()
		if idx := strings.Index(code, ":"); idx > 0 {
			code = code[:idx]
		}
		return code
	}
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "meter_index_regression":
		return "new index is lower than old index"
	case "duplicate_reading":
		return "reading already recorded"
	case "empty_import":
		return "no readings supplied"
	default:
		return "invalid value"
	}
}

// classifyErrorForLog returns the error type and code attached to request logs.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	switch {
	case status >= http.StatusInternalServerError:
		return payload.Type, obsmetrics.ClassifyFailureReason(err)
	case len(payload.Errors) > 0:
		return payload.Type, payload.Errors[0].Code
	default:
		return payload.Type, payload.Type
	}
}
