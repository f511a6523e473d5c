package vfs

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/cespare/xxhash/v2"
	"github.com/charlievieth/fastwalk"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/sessionsync/internal/infrastructure/logging"
)

// DefaultIgnore skips editor swap, backup and hidden files.
var DefaultIgnore = []string{"**/.*", "**/*~", "**/*.swp", "**/*.tmp"}

// DirFS is a Store backed by a local directory. Store paths map onto the
// directory, so "/session/p1.pddl" lives at <dir>/session/p1.pddl.
//
// Mutations made through the Store publish their events synchronously.
// Mutations made by other programs are picked up by an fsnotify watcher.
// The watcher's late echoes of DirFS's own writes are recognized by content
// hash and dropped.
type DirFS struct {
	dir     string
	ignore  []string
	logger  *logging.Logger
	watcher *fsnotify.Watcher
	hub     *hub

	mu    sync.Mutex
	known map[string]uint64 // store path -> hash of last seen content

	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

// NewDirFS mirrors the store onto dir, creating it when missing, and starts
// watching it. Files already present are adopted without events.
func NewDirFS(dir string, logger *logging.Logger, ignore ...string) (*DirFS, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if logger == nil {
		logger = logging.NewNop()
	}
	if len(ignore) == 0 {
		ignore = DefaultIgnore
	}

	d := &DirFS{
		dir:     abs,
		ignore:  ignore,
		logger:  logger.Named("dirfs"),
		watcher: watcher,
		hub:     newHub(),
		known:   make(map[string]uint64),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}

	if err := d.watchTree(abs); err != nil {
		watcher.Close()
		return nil, err
	}

	go d.run()
	return d, nil
}

// Dir returns the mirrored directory.
func (d *DirFS) Dir() string {
	return d.dir
}

func (d *DirFS) ReadFile(name string) ([]byte, error) {
	p, err := Clean(name)
	if err != nil {
		return nil, err
	}

	disk := d.diskPath(p)
	info, err := os.Stat(disk)
	if err != nil {
		return nil, pathError("read", p, mapNotExist(err))
	}
	if info.IsDir() {
		return nil, pathError("read", p, ErrIsDirectory)
	}

	data, err := os.ReadFile(disk)
	if err != nil {
		return nil, pathError("read", p, mapNotExist(err))
	}
	return data, nil
}

func (d *DirFS) WriteFile(name string, data []byte, opts WriteOptions) error {
	p, err := Clean(name)
	if err != nil {
		return err
	}
	if p == "/" {
		return pathError("write", p, ErrIsDirectory)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	disk := d.diskPath(p)
	kind := Created
	info, err := os.Stat(disk)
	switch {
	case err == nil && info.IsDir():
		return pathError("write", p, ErrIsDirectory)
	case err == nil:
		if !opts.Overwrite {
			return pathError("write", p, ErrExists)
		}
		kind = Changed
	case errors.Is(err, fs.ErrNotExist):
		if !opts.Create {
			return pathError("write", p, ErrNotFound)
		}
	default:
		return pathError("write", p, err)
	}

	if err := os.MkdirAll(filepath.Dir(disk), 0o755); err != nil {
		return pathError("write", p, err)
	}
	if err := os.WriteFile(disk, data, 0o644); err != nil {
		return pathError("write", p, err)
	}

	d.known[p] = xxhash.Sum64(data)
	d.hub.publish([]FileChangeEvent{{URI: p, Kind: kind}})
	return nil
}

func (d *DirFS) Delete(name string, opts DeleteOptions) error {
	p, err := Clean(name)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	disk := d.diskPath(p)
	info, err := os.Lstat(disk)
	if err != nil {
		return pathError("delete", p, mapNotExist(err))
	}

	if !info.IsDir() {
		if err := os.Remove(disk); err != nil {
			return pathError("delete", p, mapNotExist(err))
		}
		delete(d.known, p)
		d.hub.publish([]FileChangeEvent{{URI: p, Kind: Deleted}})
		return nil
	}

	if !opts.Recursive || p == "/" {
		return pathError("delete", p, ErrIsDirectory)
	}

	files, err := d.list(disk)
	if err != nil {
		return pathError("delete", p, err)
	}
	if err := os.RemoveAll(disk); err != nil {
		return pathError("delete", p, err)
	}

	batch := make([]FileChangeEvent, 0, len(files))
	for _, f := range files {
		delete(d.known, f)
		batch = append(batch, FileChangeEvent{URI: f, Kind: Deleted})
	}
	for f := range d.known {
		if under(f, p) {
			delete(d.known, f)
		}
	}
	d.hub.publish(batch)
	return nil
}

func (d *DirFS) List(prefix string) ([]string, error) {
	p, err := Clean(prefix)
	if err != nil {
		return nil, err
	}

	disk := d.diskPath(p)
	info, err := os.Stat(disk)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{p}, nil
	}
	return d.list(disk)
}

func (d *DirFS) Subscribe() *Subscription {
	return d.hub.subscribe()
}

// Close stops the watcher and ends all subscriptions.
func (d *DirFS) Close() error {
	var err error
	d.once.Do(func() {
		close(d.done)
		<-d.stopped
		err = d.watcher.Close()
		d.hub.closeAll()
	})
	return err
}

func (d *DirFS) run() {
	defer close(d.stopped)

	for {
		select {
		case <-d.done:
			return

		case event, ok := <-d.watcher.Events:
			if !ok {
				return
			}
			d.handleEvent(event)

		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			d.logger.Warn("Watcher error", zap.Error(err))
		}
	}
}

func (d *DirFS) handleEvent(event fsnotify.Event) {
	p, ok := d.storePath(event.Name)
	if !ok || d.ignored(p) {
		return
	}

	switch {
	case event.Has(fsnotify.Create) || event.Has(fsnotify.Write):
		info, err := os.Stat(event.Name)
		if err != nil {
			return
		}
		if info.IsDir() {
			if err := d.watchTree(event.Name); err != nil {
				d.logger.Warn("Failed to watch directory", zap.String("path", p), zap.Error(err))
			}
			return
		}
		d.observe(p, event.Name)

	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		d.forget(p, event.Name)
	}
}

// observe publishes Created or Changed when the content differs from the
// last content DirFS wrote or saw at p.
func (d *DirFS) observe(p, disk string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	data, err := os.ReadFile(disk)
	if err != nil {
		return
	}

	sum := xxhash.Sum64(data)
	prev, seen := d.known[p]
	if seen && prev == sum {
		return
	}
	d.known[p] = sum

	kind := Changed
	if !seen {
		kind = Created
	}
	d.hub.publish([]FileChangeEvent{{URI: p, Kind: kind}})
}

// forget publishes Deleted for p, or for every known file below it, unless
// the path was recreated before the event arrived.
func (d *DirFS) forget(p, disk string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := os.Lstat(disk); err == nil {
		return
	}

	var gone []string
	for f := range d.known {
		if f == p || under(f, p) {
			gone = append(gone, f)
		}
	}
	if len(gone) == 0 {
		return
	}
	sort.Strings(gone)

	batch := make([]FileChangeEvent, 0, len(gone))
	for _, f := range gone {
		delete(d.known, f)
		batch = append(batch, FileChangeEvent{URI: f, Kind: Deleted})
	}
	d.hub.publish(batch)
}

// watchTree registers root and its subdirectories with the watcher and
// observes the files found there.
func (d *DirFS) watchTree(root string) error {
	conf := fastwalk.Config{Follow: false}
	return fastwalk.Walk(&conf, root, func(disk string, entry fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		p, ok := d.storePath(disk)
		if !ok {
			return nil
		}
		if entry.IsDir() {
			if p != "/" && d.ignored(p) {
				return fastwalk.SkipDir
			}
			if err := d.watcher.Add(disk); err != nil {
				d.logger.Warn("Failed to watch directory", zap.String("path", p), zap.Error(err))
			}
			return nil
		}
		if entry.Type().IsRegular() && !d.ignored(p) {
			d.observe(p, disk)
		}
		return nil
	})
}

func (d *DirFS) list(diskDir string) ([]string, error) {
	var (
		mu  sync.Mutex
		out = []string{}
	)

	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, diskDir, func(disk string, entry fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		p, ok := d.storePath(disk)
		if !ok || entry.IsDir() || !entry.Type().IsRegular() || d.ignored(p) {
			return nil
		}
		mu.Lock()
		out = append(out, p)
		mu.Unlock()
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}

	sort.Strings(out)
	return out, nil
}

func (d *DirFS) diskPath(p string) string {
	return filepath.Join(d.dir, filepath.FromSlash(p))
}

func (d *DirFS) storePath(disk string) (string, bool) {
	rel, err := filepath.Rel(d.dir, disk)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	if rel == "." {
		return "/", true
	}
	return "/" + filepath.ToSlash(rel), true
}

func (d *DirFS) ignored(p string) bool {
	rel := strings.TrimPrefix(p, "/")
	for _, pattern := range d.ignore {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

func mapNotExist(err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	return err
}
