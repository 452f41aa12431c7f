package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"pantrychef/internal/recipe"
	"pantrychef/internal/search"
)

// Error codes returned in the "code" field of error responses.
const (
	CodeInvalidRequest   = "INVALID_REQUEST"
	CodeInvalidImageType = "INVALID_IMAGE_TYPE"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeNotFound         = "NOT_FOUND"
	CodeConflict         = "CONFLICT"
	CodePayloadTooLarge  = "PAYLOAD_TOO_LARGE"
	CodeQuotaExceeded    = "QUOTA_EXCEEDED"
	CodeRequestTimeout   = "REQUEST_TIMEOUT"
	CodeAIServiceError   = "AI_SERVICE_ERROR"
	CodeInternalError    = "INTERNAL_ERROR"
)

// HTTPError is an error with the status and code it is reported with.
type HTTPError struct {
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

// NewError creates a new HTTPError.
func NewError(status int, code, message string, err error) *HTTPError {
	return &HTTPError{Status: status, Code: code, Message: message, Err: err}
}

// badRequest reports a malformed body. A body cut off by BodySizeLimit is
// reported as 413 instead, since the size is only known once it is read.
func badRequest(message string, err error) *HTTPError {
	if tooLarge(err) {
		return NewError(http.StatusRequestEntityTooLarge, CodePayloadTooLarge, "request body too large", err)
	}
	return NewError(http.StatusBadRequest, CodeInvalidRequest, message, err)
}

// classify maps an error from the service layer to its HTTP form. Unknown
// errors become a generic failure so internals never leak to the client.
func classify(err error) *HTTPError {
	var httpErr *HTTPError
	switch {
	case errors.As(err, &httpErr):
		return httpErr
	case errors.Is(err, search.ErrQuotaExceeded):
		return NewError(http.StatusTooManyRequests, CodeQuotaExceeded, "daily free tier limit reached", err)
	case errors.Is(err, search.ErrNoInput):
		return NewError(http.StatusBadRequest, CodeInvalidRequest, "provide at least one ingredient or image", err)
	case errors.Is(err, search.ErrUnsupportedImage):
		return NewError(http.StatusBadRequest, CodeInvalidImageType, "only JPEG, PNG, WEBP and HEIC images are supported", err)
	case errors.Is(err, context.DeadlineExceeded):
		return NewError(http.StatusRequestTimeout, CodeRequestTimeout, "request timed out, try again", err)
	case errors.Is(err, search.ErrInference):
		return NewError(http.StatusBadGateway, CodeAIServiceError, "failed to generate recipes, try again", err)
	case errors.Is(err, search.ErrNotCached):
		return NewError(http.StatusNotFound, CodeNotFound, "recipe not found in your recent results", err)
	case errors.Is(err, recipe.ErrNotFound):
		return NewError(http.StatusNotFound, CodeNotFound, "bookmark not found", err)
	default:
		return NewError(http.StatusInternalServerError, CodeInternalError, "request failed, try again", err)
	}
}

// respondError writes the error response and records err on the context for
// the request logger.
func respondError(c *gin.Context, err error) {
	httpErr := classify(err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(httpErr.Status, gin.H{
		"error": httpErr.Message,
		"code":  httpErr.Code,
	})
}

func tooLarge(err error) bool {
	if err == nil {
		return false
	}
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return true
	}
	// multipart does not always wrap the reader error.
	return strings.Contains(err.Error(), "http: request body too large")
}
