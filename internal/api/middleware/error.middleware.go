package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/platformbuilds/countgate/internal/models"
	"github.com/platformbuilds/countgate/pkg/logger"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error   string      `json:"error"`
	Code    string      `json:"code,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

// ErrorHandler turns the last error attached with c.Error into a JSON
// response. Error metadata set with SetMeta is returned as details.
func ErrorHandler(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		last := c.Errors.Last()
		statusCode, code := classify(last)
		logError(log, statusCode, last.Err, c)

		c.JSON(statusCode, ErrorResponse{
			Error:   last.Err.Error(),
			Code:    code,
			Details: last.Meta,
		})
	}
}

// classify maps the error taxonomy onto HTTP status codes.
func classify(e *gin.Error) (int, string) {
	var (
		ce *models.ConfigurationError
		ee *models.EncodingError
		te *models.TransportError
		de *models.DecodeError
	)
	switch {
	case e.IsType(gin.ErrorTypeBind):
		return http.StatusBadRequest, "INVALID_REQUEST"
	case errors.As(e.Err, &ce):
		return http.StatusBadRequest, "CONFIGURATION_ERROR"
	case errors.As(e.Err, &ee):
		return http.StatusBadRequest, "ENCODING_ERROR"
	case errors.As(e.Err, &te) && errors.Is(te, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "TIMEOUT"
	case errors.As(e.Err, &te):
		return http.StatusBadGateway, "TRANSPORT_ERROR"
	case errors.As(e.Err, &de):
		return http.StatusBadGateway, "DECODE_ERROR"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

// logError logs errors with appropriate level
func logError(log logger.Logger, statusCode int, err error, c *gin.Context) {
	fields := []interface{}{
		"status", statusCode,
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"client_ip", c.ClientIP(),
		"error", err.Error(),
	}

	if requestID := c.Request.Header.Get("X-Request-ID"); requestID != "" {
		fields = append(fields, "request_id", requestID)
	}

	if statusCode >= 500 {
		log.Error("HTTP Error", fields...)
	} else {
		log.Warn("HTTP Error", fields...)
	}
}
