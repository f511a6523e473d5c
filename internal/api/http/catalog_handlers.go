package http

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// ListCollections lists catalog collections
func (h *Handlers) ListCollections(c *gin.Context) {
	collections, err := h.catalog.Collections(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"collections": collections})
}

// ListDomains lists the domains of a collection
func (h *Handlers) ListDomains(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	domains, err := h.catalog.Domains(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"domains": domains})
}

// ListProblems lists the problems of a domain
func (h *Handlers) ListProblems(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	problems, err := h.catalog.Problems(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"problems": problems})
}

func intParam(c *gin.Context, key string) (int, bool) {
	v, err := strconv.Atoi(c.Param(key))
	if err != nil || v < 0 {
		badRequest(c, fmt.Errorf("invalid %s: %q", key, c.Param(key)))
		return 0, false
	}
	return v, true
}
