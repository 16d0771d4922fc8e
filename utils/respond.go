package utils

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"dashboard/backend"

	"github.com/gin-gonic/gin"
)

// HTTPError carries the status and user-facing message for a failure.
type HTTPError struct {
	Status  int
	Message string
	Err     error
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *HTTPError) Unwrap() error { return e.Err }

func NewHTTPError(status int, message string, err error) *HTTPError {
	return &HTTPError{Status: status, Message: message, Err: err}
}

type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Fields, "; ")
}

// RespondError writes err in the dashboard's error shape. fallback is the
// message used when err carries none worth showing.
func RespondError(c *gin.Context, err error, fallback string) {
	var (
		httpErr  *HTTPError
		validErr *ValidationError
		apiErr   *backend.APIError
	)
	switch {
	case errors.As(err, &httpErr):
		c.JSON(httpErr.Status, gin.H{"success": false, "error": httpErr.Message})
	case errors.As(err, &validErr):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "validation failed", "fields": validErr.Fields})
	case errors.Is(err, backend.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "Service temporarily unavailable. Please try again shortly."})
	case errors.As(err, &apiErr):
		status := apiErr.StatusCode
		if status < http.StatusBadRequest || status >= http.StatusInternalServerError {
			status = http.StatusBadGateway
		}
		msg := apiErr.Message
		if msg == "" {
			msg = fallback
		}
		c.JSON(status, gin.H{"success": false, "error": msg})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"success": false, "error": fallback})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": fallback})
	}
}
