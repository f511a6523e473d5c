package server

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/sessionsync/internal/catalog"
	"github.com/GriffinCanCode/sessionsync/internal/domain/index"
	"github.com/GriffinCanCode/sessionsync/internal/domain/resolver"
	"github.com/GriffinCanCode/sessionsync/internal/domain/session"
	"github.com/GriffinCanCode/sessionsync/internal/domain/workspace"
	"github.com/GriffinCanCode/sessionsync/internal/infrastructure/config"
	"github.com/GriffinCanCode/sessionsync/internal/infrastructure/httpclient"
	"github.com/GriffinCanCode/sessionsync/internal/infrastructure/logging"
	"github.com/GriffinCanCode/sessionsync/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/sessionsync/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/sessionsync/internal/remote"
	"github.com/GriffinCanCode/sessionsync/internal/vfs"
)

// closableStore is a store that owns background resources.
type closableStore interface {
	vfs.Store
	Close() error
}

// Engine is the sync engine without any outer surface. The HTTP server and
// the CLI both drive one.
type Engine struct {
	Store      vfs.Store
	Index      *index.Index
	Workspace  *workspace.Workspace
	Remote     *remote.Client
	Catalog    *catalog.Client
	Controller *session.Controller
	Resolver   *resolver.Resolver

	store  closableStore
	logger *logging.Logger
}

// NewEngine wires the engine from configuration. prompter may be nil.
func NewEngine(cfg *config.Config, logger *logging.Logger, metrics *monitoring.Metrics, prompter resolver.Prompter) (*Engine, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	onStateChange := func(name string, from, to resilience.State) {
		metrics.SetBreakerState(name, int(to))
		logger.Warn("Circuit breaker state changed",
			zap.String("endpoint", name),
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	}

	remoteHTTP := httpclient.NewClient(httpclient.Config{
		Name:          "session_store",
		BaseURL:       cfg.Remote.BaseURL,
		Timeout:       cfg.Remote.Timeout(),
		RetryMax:      cfg.Remote.RetryMax,
		RateLimit:     cfg.Remote.RateLimit,
		UserAgent:     cfg.Remote.UserAgent,
		OnStateChange: onStateChange,
	})
	catalogHTTP := httpclient.NewClient(httpclient.Config{
		Name:          "catalog",
		BaseURL:       cfg.Remote.CatalogURL,
		Timeout:       cfg.Remote.Timeout(),
		RetryMax:      cfg.Remote.RetryMax,
		UserAgent:     cfg.Remote.UserAgent,
		OnStateChange: onStateChange,
	})

	store, err := newStore(cfg.Workspace, logger)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		Store:     store,
		Index:     index.New(),
		Workspace: workspace.New(),
		Remote:    remote.NewClient(remoteHTTP).WithLogger(logger).WithMetrics(metrics),
		Catalog:   catalog.NewClient(catalogHTTP).WithMetrics(metrics),
		store:     store,
		logger:    logger,
	}

	e.Controller = session.NewController(e.Remote, store, e.Index, e.Workspace, session.Config{
		Root:             cfg.Workspace.Root,
		FolderName:       cfg.Workspace.FolderName,
		Ordering:         session.Ordering(cfg.Sync.Ordering),
		FetchConcurrency: cfg.Sync.FetchConcurrency,
	}).WithLogger(logger).WithMetrics(metrics)

	e.Resolver = resolver.New(e.Controller, prompter).
		WithFocus(e.Index).
		WithLogger(logger)

	logger.Info("Sync engine initialized",
		zap.String("remote", cfg.Remote.BaseURL),
		zap.String("root", e.Controller.Root()),
		zap.String("ordering", cfg.Sync.Ordering),
		zap.String("mirror_dir", cfg.Workspace.MirrorDir),
	)
	return e, nil
}

func newStore(cfg config.WorkspaceConfig, logger *logging.Logger) (closableStore, error) {
	if cfg.MirrorDir == "" {
		return vfs.NewMemFS(), nil
	}
	store, err := vfs.NewDirFS(cfg.MirrorDir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open mirror directory: %w", err)
	}
	return store, nil
}

// Close stops syncing and releases the store. The session files stay where
// they are.
func (e *Engine) Close() error {
	return errors.Join(e.Controller.Close(), e.store.Close())
}
