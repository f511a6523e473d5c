package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/sessionsync/internal/domain/index"
	"github.com/GriffinCanCode/sessionsync/internal/domain/workspace"
	"github.com/GriffinCanCode/sessionsync/internal/infrastructure/logging"
	"github.com/GriffinCanCode/sessionsync/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/sessionsync/internal/types"
	"github.com/GriffinCanCode/sessionsync/internal/vfs"
)

// SessionController loads and unloads the active session.
type SessionController interface {
	Load(ctx context.Context, sessionID string) (*types.LoadReport, error)
	Unload(ctx context.Context) error
	Status() types.SessionStatus
	Root() string
}

// LinkResolver handles deep links.
type LinkResolver interface {
	Resolve(ctx context.Context, uri string) (string, bool, error)
}

// Catalog lists the public planning catalog.
type Catalog interface {
	Collections(ctx context.Context) ([]types.Collection, error)
	Domains(ctx context.Context, collectionID int) ([]types.Domain, error)
	Problems(ctx context.Context, domainID int) ([]types.Problem, error)
}

// Deps are the collaborators of the handlers. Session and Store are
// required; a nil Resolver or Catalog disables its routes.
type Deps struct {
	Session   SessionController
	Store     vfs.Store
	Index     *index.Index
	Workspace *workspace.Workspace
	Resolver  LinkResolver
	Catalog   Catalog
	Metrics   *monitoring.Metrics
	Logger    *logging.Logger
	Version   string
}

// Handlers contains all HTTP handlers
type Handlers struct {
	session   SessionController
	store     vfs.Store
	index     *index.Index
	workspace *workspace.Workspace
	resolver  LinkResolver
	catalog   Catalog
	metrics   *monitoring.Metrics
	logger    *logging.Logger
	version   string
}

// NewHandlers creates a new handler set
func NewHandlers(deps Deps) *Handlers {
	h := &Handlers{
		session:   deps.Session,
		store:     deps.Store,
		index:     deps.Index,
		workspace: deps.Workspace,
		resolver:  deps.Resolver,
		catalog:   deps.Catalog,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		version:   deps.Version,
	}
	if h.index == nil {
		h.index = index.New()
	}
	if h.workspace == nil {
		h.workspace = workspace.New()
	}
	if h.logger == nil {
		h.logger = logging.NewNop()
	}
	if h.version == "" {
		h.version = "dev"
	}
	h.logger = h.logger.Named("api")
	return h
}

// Register mounts every route on r.
func (h *Handlers) Register(r gin.IRouter) {
	r.GET("/health", h.Health)
	r.GET("/stats", h.Stats)
	r.GET("/workspace", h.Workspace)
	if h.metrics != nil {
		r.GET("/metrics", gin.WrapH(h.metrics.Handler()))
	}

	r.GET("/session", h.GetSession)
	r.POST("/session/load", h.LoadSession)
	r.DELETE("/session", h.UnloadSession)
	r.GET("/session/archive", h.ExportSession)

	if h.resolver != nil {
		r.POST("/open", h.Open)
	}

	r.GET("/files", h.ListFiles)
	r.GET("/files/*name", h.ReadFile)
	r.PUT("/files/*name", h.WriteFile)
	r.DELETE("/files/*name", h.DeleteFile)

	if h.catalog != nil {
		r.GET("/catalog/collections", h.ListCollections)
		r.GET("/catalog/collections/:id/domains", h.ListDomains)
		r.GET("/catalog/domains/:id/problems", h.ListProblems)
	}
}

// Health handles health check
func (h *Handlers) Health(c *gin.Context) {
	status := h.session.Status()
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "sessionsync",
		"version": h.version,
		"session": gin.H{
			"state":      status.State,
			"session_id": status.SessionID,
		},
	})
}

// Stats returns the JSON metrics snapshot
func (h *Handlers) Stats(c *gin.Context) {
	status := h.session.Status()
	c.JSON(http.StatusOK, gin.H{
		"metrics": h.metrics.Snapshot(),
		"sync": gin.H{
			"uploads":       status.Uploads,
			"upload_errors": status.UploadErrs,
		},
	})
}

// Workspace lists the workspace folders
func (h *Handlers) Workspace(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"folders": h.workspace.Folders(),
	})
}
