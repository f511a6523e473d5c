package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/sessionsync/internal/types"
	"github.com/GriffinCanCode/sessionsync/internal/vfs"
)

// ListFiles lists the files in the session folder, optionally filtered by a
// glob in ?match=
func (h *Handlers) ListFiles(c *gin.Context) {
	root := h.session.Root()
	paths, err := h.store.List(root)
	if err != nil && !errors.Is(err, vfs.ErrNotFound) {
		h.fail(c, err)
		return
	}

	if pattern := c.Query("match"); pattern != "" {
		paths, err = vfs.Match(paths, root, pattern)
		if err != nil {
			badRequest(c, err)
			return
		}
	}

	names := make([]string, 0, len(paths))
	for _, p := range paths {
		names = append(names, strings.TrimPrefix(p, root+"/"))
	}

	c.JSON(http.StatusOK, gin.H{
		"root":  root,
		"files": names,
	})
}

// ReadFile returns one file's content
func (h *Handlers) ReadFile(c *gin.Context) {
	p, ok := h.filePath(c)
	if !ok {
		return
	}

	data, err := h.store.ReadFile(p)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.Data(http.StatusOK, mimetype.Detect(data).String(), data)
}

// WriteFile creates or replaces one file. With If-None-Match: * an existing
// file is not overwritten.
func (h *Handlers) WriteFile(c *gin.Context) {
	p, ok := h.filePath(c)
	if !ok || !h.requireActive(c) {
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, MaxFileSize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("file exceeds %d bytes", MaxFileSize)})
			return
		}
		badRequest(c, fmt.Errorf("failed to read body: %w", err))
		return
	}

	opts := vfs.WriteOptions{Create: true, Overwrite: c.GetHeader("If-None-Match") != "*"}
	if err := h.store.WriteFile(p, data, opts); err != nil {
		h.fail(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// DeleteFile removes one file
func (h *Handlers) DeleteFile(c *gin.Context) {
	p, ok := h.filePath(c)
	if !ok || !h.requireActive(c) {
		return
	}

	if err := h.store.Delete(p, vfs.DeleteOptions{}); err != nil {
		h.fail(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// filePath resolves the :name wildcard to a store path inside the session
// folder.
func (h *Handlers) filePath(c *gin.Context) (string, bool) {
	name := strings.TrimPrefix(c.Param("name"), "/")
	if err := ValidateFileName(name); err != nil {
		badRequest(c, err)
		return "", false
	}
	return vfs.Join(h.session.Root(), name), true
}

func (h *Handlers) requireActive(c *gin.Context) bool {
	if h.session.Status().State != types.SessionActive {
		c.JSON(http.StatusConflict, gin.H{"error": errNoSession.Error()})
		return false
	}
	return true
}
