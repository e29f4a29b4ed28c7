package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	apikeydomain "github.com/smallbiznis/telcoquota/internal/apikey/domain"
	"github.com/smallbiznis/telcoquota/internal/authorization"
	reservationdomain "github.com/smallbiznis/telcoquota/internal/reservation/domain"
	subscriptiondomain "github.com/smallbiznis/telcoquota/internal/subscription/domain"
	usagedomain "github.com/smallbiznis/telcoquota/internal/usage/domain"
	"github.com/smallbiznis/telcoquota/pkg/db/pagination"
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
	ErrRateLimited        = errors.New("rate_limited")
	ErrPayloadTooLarge    = errors.New("payload_too_large")
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
		errors.Is(err, apikeydomain.ErrUnauthorized):
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
	case errors.Is(err, ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge, errorPayload{
			Type:    "payload_too_large",
			Message: "request body too large",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
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

// classifyErrorForLog feeds the request log middleware.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	if status == http.StatusBadRequest && len(payload.Errors) > 0 {
		return payload.Type, payload.Errors[0].Code
	}
	return payload.Type, payload.Type
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
		errors.Is(err, pagination.ErrInvalidPageToken),
		errors.Is(err, usagedomain.ErrInvalidDelta),
		errors.Is(err, usagedomain.ErrInvalidSubscription),
		errors.Is(err, subscriptiondomain.ErrInvalidSubscription),
		errors.Is(err, subscriptiondomain.ErrInvalidReference),
		errors.Is(err, subscriptiondomain.ErrInvalidPlan),
		errors.Is(err, subscriptiondomain.ErrInvalidPlanQuota),
		errors.Is(err, reservationdomain.ErrInvalidReservation),
		errors.Is(err, reservationdomain.ErrInvalidMSISDN),
		errors.Is(err, reservationdomain.ErrInvalidCustomer),
		errors.Is(err, apikeydomain.ErrInvalidName),
		errors.Is(err, apikeydomain.ErrInvalidRole),
		errors.Is(err, apikeydomain.ErrInvalidKeyID):
		return true
	default:
		return false
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, ErrConflict),
		errors.Is(err, subscriptiondomain.ErrInvalidTransition),
		errors.Is(err, subscriptiondomain.ErrReferenceAlreadyActive),
		errors.Is(err, reservationdomain.ErrMSISDNExists),
		errors.Is(err, reservationdomain.ErrMSISDNUnavailable),
		errors.Is(err, reservationdomain.ErrReservationExpired),
		errors.Is(err, reservationdomain.ErrInvalidTransition):
		return true
	default:
		return false
	}
}

// conflictMessage surfaces the domain code so callers can tell an expired
// reservation from a taken number.
func conflictMessage(err error) string {
	for _, known := range []error{
		subscriptiondomain.ErrInvalidTransition,
		subscriptiondomain.ErrReferenceAlreadyActive,
		reservationdomain.ErrMSISDNExists,
		reservationdomain.ErrMSISDNUnavailable,
		reservationdomain.ErrReservationExpired,
		reservationdomain.ErrInvalidTransition,
	} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return "conflict"
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, subscriptiondomain.ErrSubscriptionNotFound),
		errors.Is(err, reservationdomain.ErrReservationNotFound),
		errors.Is(err, apikeydomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, pagination.ErrInvalidPageToken):
		return "invalid_page_token"
	default:
		return err.Error()
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
	default:
		return "invalid value"
	}
}
