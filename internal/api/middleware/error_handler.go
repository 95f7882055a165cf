package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"whisperflow/internal/app/apperr"
)

// ErrorResponse is the JSON error body every failed request returns.
type ErrorResponse struct {
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// httpStatus maps error kinds to status codes.
func httpStatus(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation, apperr.KindConversion:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindDuplicateSubmission, apperr.KindConstraint:
		return http.StatusConflict
	case apperr.KindResourceUnavailable, apperr.KindInferenceExhausted:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// HandleError renders err as a JSON error response. Typed errors map to
// their status; anything else is a 500 with the detail kept server-side.
func HandleError(c *gin.Context, logger *zap.Logger, err error) {
	requestID := c.GetString("request_id")

	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		c.AbortWithStatusJSON(httpStatus(appErr.Kind), ErrorResponse{
			Kind:      string(appErr.Kind),
			Message:   appErr.Message,
			RequestID: requestID,
		})
		return
	}

	logger.Error("internal server error",
		zap.String("request_id", requestID),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err))
	c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
		Kind:      string(apperr.KindInternal),
		Message:   "internal server error",
		RequestID: requestID,
	})
}

// ErrorHandler recovers panics into 500 responses.
func ErrorHandler(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		requestID := c.GetString("request_id")
		logger.Error("panic recovered",
			zap.String("request_id", requestID),
			zap.String("path", c.Request.URL.Path),
			zap.Any("panic", recovered))

		c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
			Kind:      string(apperr.KindInternal),
			Message:   "internal server error",
			RequestID: requestID,
		})
	})
}
