package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/sessionsync/internal/domain/session"
	"github.com/GriffinCanCode/sessionsync/internal/remote"
	"github.com/GriffinCanCode/sessionsync/internal/vfs"
)

// errorStatus maps domain errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, session.ErrSuperseded):
		return http.StatusConflict
	case errors.Is(err, session.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, remote.ErrRemoteUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, remote.ErrRemoteRejected):
		return http.StatusBadGateway
	case errors.Is(err, vfs.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, vfs.ErrExists):
		return http.StatusPreconditionFailed
	case errors.Is(err, vfs.ErrIsDirectory), errors.Is(err, vfs.ErrInvalidPath):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return 499
	default:
		return http.StatusInternalServerError
	}
}

// fail writes an error response and records err on the context.
func (h *Handlers) fail(c *gin.Context, err error) {
	status := errorStatus(err)
	_ = c.Error(err)

	body := gin.H{"error": err.Error()}
	if code := remote.StatusCode(err); code != 0 {
		body["remote_status"] = code
	}
	if status >= http.StatusInternalServerError {
		h.logger.Warn("Request failed",
			zap.String("path", c.FullPath()),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	c.JSON(status, body)
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
