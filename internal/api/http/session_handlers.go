package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/sessionsync/internal/archive"
	"github.com/GriffinCanCode/sessionsync/internal/types"
)

var errNoSession = errors.New("no active session")

// LoadRequest is the body of POST /session/load
type LoadRequest struct {
	SessionID string `json:"session_id"`
}

// OpenRequest is the body of POST /open
type OpenRequest struct {
	URI string `json:"uri"`
}

// GetSession returns the controller status and the indexed files
func (h *Handlers) GetSession(c *gin.Context) {
	status := h.session.Status()
	snap := h.index.Current()

	c.JSON(http.StatusOK, gin.H{
		"state":         status.State,
		"session_id":    snap.SessionID,
		"files":         snap.Files,
		"updated_at":    snap.UpdatedAt,
		"loaded_at":     status.LoadedAt,
		"root":          h.session.Root(),
		"uploads":       status.Uploads,
		"upload_errors": status.UploadErrs,
	})
}

// LoadSession replaces the active session
func (h *Handlers) LoadSession(c *gin.Context) {
	var req LoadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, fmt.Errorf("invalid request body: %w", err))
		return
	}
	req.SessionID = strings.TrimSpace(req.SessionID)
	if err := ValidateSessionID(req.SessionID); err != nil {
		badRequest(c, err)
		return
	}

	report, err := h.session.Load(c.Request.Context(), req.SessionID)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, loadResponse(report))
}

// UnloadSession evicts the active session
func (h *Handlers) UnloadSession(c *gin.Context) {
	if err := h.session.Unload(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": h.session.Status().State})
}

// ExportSession streams the session files as a tar archive
func (h *Handlers) ExportSession(c *gin.Context) {
	format, err := archive.ParseFormat(c.Query("format"))
	if err != nil {
		badRequest(c, err)
		return
	}

	status := h.session.Status()
	if status.State != types.SessionActive {
		c.JSON(http.StatusConflict, gin.H{"error": errNoSession.Error()})
		return
	}

	filename := status.SessionID + format.Extension()
	c.Header("Content-Type", format.ContentType())
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Status(http.StatusOK)

	n, err := archive.Write(c.Writer, h.store, h.session.Root(), status.SessionID, format)
	if err != nil {
		// Headers are already sent; the truncated stream is the signal
		_ = c.Error(err)
		h.logger.Error("Archive export failed",
			zap.String("session_id", status.SessionID),
			zap.Error(err),
		)
		return
	}
	h.logger.Debug("Archive exported",
		zap.String("session_id", status.SessionID),
		zap.String("format", string(format)),
		zap.Int("files", n),
	)
}

// Open resolves a deep link and loads the session it names
func (h *Handlers) Open(c *gin.Context) {
	var req OpenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if strings.TrimSpace(req.URI) == "" {
		badRequest(c, errors.New("uri is required"))
		return
	}

	sessionID, matched, err := h.resolver.Resolve(c.Request.Context(), req.URI)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"matched":    matched,
		"session_id": sessionID,
	})
}

func loadResponse(report *types.LoadReport) gin.H {
	failed := report.Failed
	if failed == nil {
		failed = map[string]string{}
	}
	return gin.H{
		"session_id":  report.Session.ID,
		"files":       report.Session.Files,
		"written":     report.Written,
		"failed":      failed,
		"partial":     report.Partial(),
		"duration_ms": report.Duration.Milliseconds(),
	}
}
