package session

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/GriffinCanCode/sessionsync/internal/domain/index"
	"github.com/GriffinCanCode/sessionsync/internal/domain/workspace"
	"github.com/GriffinCanCode/sessionsync/internal/infrastructure/logging"
	"github.com/GriffinCanCode/sessionsync/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/sessionsync/internal/types"
	"github.com/GriffinCanCode/sessionsync/internal/vfs"
)

var (
	// ErrEvictionFailed is logged when the root scope could not be removed.
	// It never aborts a load.
	ErrEvictionFailed = errors.New("failed to evict session root")
	// ErrSuperseded is returned by a load overtaken by a newer load or unload.
	ErrSuperseded = errors.New("session load superseded")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("session controller closed")
)

// RemoteClient is the remote session store as seen by the controller.
type RemoteClient interface {
	FetchSession(ctx context.Context, sessionID string) (*types.Session, error)
	FetchFileContent(ctx context.Context, sessionID, fileName string) (string, error)
	CreateFile(ctx context.Context, sessionID, fileName, content string) (string, error)
	UpdateFile(ctx context.Context, sessionID, fileName, content string) (string, error)
	DeleteFile(ctx context.Context, sessionID, fileName string) (string, error)
}

// Ordering selects how local changes are dispatched.
type Ordering string

const (
	OrderingUnordered Ordering = "unordered"
	OrderingPerPath   Ordering = "per-path"
)

// Config defines controller behavior.
type Config struct {
	// Root is the store directory holding the current session's files
	Root string
	// FolderName is the workspace folder label for Root
	FolderName string
	// Ordering selects the upload dispatch policy
	Ordering Ordering
	// FetchConcurrency caps parallel file fetches during a load; 0 is unlimited
	FetchConcurrency int
}

// Controller owns the current session. It is safe for concurrent use.
//
// Index observers are notified while the controller's lock is held and must
// not call back into the controller.
type Controller struct {
	remote    RemoteClient
	store     vfs.Store
	index     *index.Index
	workspace *workspace.Workspace
	cfg       Config
	logger    *logging.Logger
	metrics   *monitoring.Metrics
	dispatch  dispatcher

	mu          sync.Mutex
	state       types.SessionState
	current     *types.Session
	loadedAt    time.Time
	generation  uint64
	sub         *subscriber
	folderAdded bool
	closed      bool

	uploads    atomic.Int64
	uploadErrs atomic.Int64
}

// NewController creates an idle controller.
func NewController(remote RemoteClient, store vfs.Store, idx *index.Index, ws *workspace.Workspace, cfg Config) *Controller {
	if cfg.Root == "" {
		cfg.Root = "/session"
	}
	cfg.Root = path.Clean(cfg.Root)
	if cfg.FolderName == "" {
		cfg.FolderName = "Planning.domains Session"
	}
	if idx == nil {
		idx = index.New()
	}
	if ws == nil {
		ws = workspace.New()
	}

	var d dispatcher = &unorderedDispatcher{}
	if cfg.Ordering == OrderingPerPath {
		d = newPerPathDispatcher()
	}

	return &Controller{
		remote:    remote,
		store:     store,
		index:     idx,
		workspace: ws,
		cfg:       cfg,
		logger:    logging.NewNop(),
		dispatch:  d,
		state:     types.SessionIdle,
	}
}

// WithLogger attaches a logger.
func (c *Controller) WithLogger(logger *logging.Logger) *Controller {
	if logger != nil {
		c.logger = logger.Named("session")
	}
	return c
}

// WithMetrics attaches a metrics collector.
func (c *Controller) WithMetrics(metrics *monitoring.Metrics) *Controller {
	c.metrics = metrics
	return c
}

// Root returns the store directory of the current session.
func (c *Controller) Root() string {
	return c.cfg.Root
}

// Load replaces the current session with sessionID.
//
// A failed session fetch leaves the controller as it was, unless an
// overlapping load already evicted the previous session. Per-file failures
// are reported in the LoadReport and do not fail the load.
func (c *Controller) Load(ctx context.Context, sessionID string) (*types.LoadReport, error) {
	start := time.Now()
	log := c.logger.WithSession(sessionID)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.generation++
	gen := c.generation
	c.state = types.SessionLoading
	c.mu.Unlock()

	log.Info("Loading session")

	session, err := c.remote.FetchSession(ctx, sessionID)
	if err != nil {
		c.mu.Lock()
		if gen == c.generation {
			c.state = c.settledState()
		}
		c.mu.Unlock()

		c.metrics.RecordLoad("failed")
		log.Error("Failed to fetch session", zap.Error(err))
		return nil, fmt.Errorf("failed to fetch session %s: %w", sessionID, err)
	}

	if err := c.prepare(gen, log); err != nil {
		c.metrics.RecordLoad("superseded")
		return nil, err
	}

	report := &types.LoadReport{
		Session: session.Clone(),
		Written: []string{},
		Failed:  make(map[string]string),
	}
	c.materializeAll(ctx, gen, session, report, log)
	report.Duration = time.Since(start)

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation || c.closed {
		c.metrics.RecordLoad("superseded")
		log.Info("Session load superseded")
		return report, ErrSuperseded
	}

	c.index.SetSession(session.ID, session.Files)
	c.current = session.Clone()
	c.loadedAt = time.Now()
	c.state = types.SessionActive
	c.sub = c.attach(session.ID)

	c.metrics.SetSession(true, len(session.Files))
	if report.Partial() {
		c.metrics.RecordLoad("partial")
		log.Warn("Session loaded with failures",
			zap.Int("written", len(report.Written)),
			zap.Int("failed", len(report.Failed)),
			zap.Duration("duration", report.Duration),
		)
	} else {
		c.metrics.RecordLoad("success")
		log.Info("Session loaded",
			zap.Int("files", len(report.Written)),
			zap.Duration("duration", report.Duration),
		)
	}
	return report, nil
}

// prepare detaches the subscriber, evicts the root scope, forgets the previous
// session and registers the workspace folder, unless gen was superseded.
func (c *Controller) prepare(gen uint64, log *logging.Logger) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation || c.closed {
		log.Info("Session load superseded before eviction")
		return ErrSuperseded
	}

	c.detachLocked()
	c.evictLocked(log)

	// The previous session no longer exists in the store
	c.current = nil
	c.loadedAt = time.Time{}
	c.index.Clear()
	c.metrics.SetSession(false, 0)

	if !c.folderAdded {
		c.folderAdded = true
		c.workspace.AddFolder(c.cfg.FolderName, c.cfg.Root)
	}
	return nil
}

func (c *Controller) materializeAll(ctx context.Context, gen uint64, session *types.Session, report *types.LoadReport, log *logging.Logger) {
	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	if c.cfg.FetchConcurrency > 0 {
		g.SetLimit(c.cfg.FetchConcurrency)
	}

	for _, name := range session.Files {
		g.Go(func() error {
			if err := c.materialize(ctx, gen, session.ID, name); err != nil {
				c.metrics.RecordFile("failed")
				log.Warn("Failed to materialize file", zap.String("file", name), zap.Error(err))
				mu.Lock()
				report.Failed[name] = err.Error()
				mu.Unlock()
				return nil
			}
			c.metrics.RecordFile("written")
			return nil
		})
	}
	_ = g.Wait()

	for _, name := range session.Files {
		if _, failed := report.Failed[name]; !failed {
			report.Written = append(report.Written, name)
		}
	}
}

func (c *Controller) materialize(ctx context.Context, gen uint64, sessionID, name string) error {
	if !validFileName(name) {
		return fmt.Errorf("invalid file name %q", name)
	}

	content, err := c.remote.FetchFileContent(ctx, sessionID, name)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// A newer load has already evicted the root scope
	if gen != c.generation {
		return ErrSuperseded
	}
	return c.store.WriteFile(vfs.Join(c.cfg.Root, name), []byte(content), vfs.WriteOptions{Create: true, Overwrite: true})
}

// Unload detaches the subscriber, evicts the root scope and clears the index.
func (c *Controller) Unload(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	c.generation++
	c.detachLocked()
	c.evictLocked(c.logger)

	previous := c.current
	c.current = nil
	c.loadedAt = time.Time{}
	c.state = types.SessionIdle
	c.index.Clear()
	c.metrics.SetSession(false, 0)

	if previous != nil {
		c.logger.Info("Session unloaded", zap.String("session_id", previous.ID))
	}
	return nil
}

// State returns the lifecycle state.
func (c *Controller) State() types.SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Current returns a copy of the active session, or nil.
func (c *Controller) Current() *types.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current.Clone()
}

// Status returns the externally visible controller status.
func (c *Controller) Status() types.SessionStatus {
	c.mu.Lock()
	status := types.SessionStatus{
		State: c.state,
		Files: []string{},
	}
	if c.current != nil {
		status.SessionID = c.current.ID
		status.Files = append(status.Files, c.current.Files...)
		loadedAt := c.loadedAt
		status.LoadedAt = &loadedAt
	}
	c.mu.Unlock()

	status.Uploads = c.uploads.Load()
	status.UploadErrs = c.uploadErrs.Load()
	return status
}

// Close stops change synchronization and waits for in-flight uploads. The
// store content is left in place.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.generation++
	c.detachLocked()
	c.mu.Unlock()

	c.dispatch.Wait()
	return nil
}

// settledState is the state to return to when a load fails.
func (c *Controller) settledState() types.SessionState {
	if c.current != nil {
		return types.SessionActive
	}
	return types.SessionIdle
}

func (c *Controller) detachLocked() {
	if c.sub != nil {
		c.sub.stop()
		c.sub = nil
	}
}

func (c *Controller) evictLocked(log *logging.Logger) {
	err := c.store.Delete(c.cfg.Root, vfs.DeleteOptions{Recursive: true})
	if err == nil || errors.Is(err, vfs.ErrNotFound) {
		return
	}
	c.metrics.RecordEvictionFailure()
	log.Warn("Eviction failed, continuing",
		zap.String("root", c.cfg.Root),
		zap.Error(fmt.Errorf("%w: %w", ErrEvictionFailed, err)),
	)
}

func validFileName(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.ContainsAny(name, `/\`)
}
