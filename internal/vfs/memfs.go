package vfs

import (
	"sort"
	"sync"
)

// MemFS is an in-memory Store. The zero value is not usable; use NewMemFS.
type MemFS struct {
	mu    sync.RWMutex
	files map[string][]byte
	hub   *hub
}

// NewMemFS creates an empty in-memory store.
func NewMemFS() *MemFS {
	return &MemFS{
		files: make(map[string][]byte),
		hub:   newHub(),
	}
}

// ReadFile returns a copy of the file content.
func (m *MemFS) ReadFile(name string) ([]byte, error) {
	p, err := Clean(name)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.files[p]
	if !ok {
		if m.isDir(p) {
			return nil, pathError("read", p, ErrIsDirectory)
		}
		return nil, pathError("read", p, ErrNotFound)
	}
	return append([]byte(nil), data...), nil
}

// WriteFile stores data at name. Missing files need opts.Create and existing
// files need opts.Overwrite.
func (m *MemFS) WriteFile(name string, data []byte, opts WriteOptions) error {
	p, err := Clean(name)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if p == "/" || m.isDir(p) {
		return pathError("write", p, ErrIsDirectory)
	}

	kind := Changed
	if _, exists := m.files[p]; exists {
		if !opts.Overwrite {
			return pathError("write", p, ErrExists)
		}
	} else {
		if !opts.Create {
			return pathError("write", p, ErrNotFound)
		}
		kind = Created
	}

	m.files[p] = append([]byte(nil), data...)
	m.hub.publish([]FileChangeEvent{{URI: p, Kind: kind}})
	return nil
}

// Delete removes a file, or a directory tree when opts.Recursive is set.
// A recursive delete publishes one batch with an event per removed file.
func (m *MemFS) Delete(name string, opts DeleteOptions) error {
	p, err := Clean(name)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.files[p]; ok {
		delete(m.files, p)
		m.hub.publish([]FileChangeEvent{{URI: p, Kind: Deleted}})
		return nil
	}

	if !m.isDir(p) {
		return pathError("delete", p, ErrNotFound)
	}
	if !opts.Recursive {
		return pathError("delete", p, ErrIsDirectory)
	}

	var batch []FileChangeEvent
	for _, f := range m.sortedUnder(p) {
		delete(m.files, f)
		batch = append(batch, FileChangeEvent{URI: f, Kind: Deleted})
	}
	m.hub.publish(batch)
	return nil
}

// List returns every file below prefix, or prefix itself when it names a file.
func (m *MemFS) List(prefix string) ([]string, error) {
	p, err := Clean(prefix)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.files[p]; ok {
		return []string{p}, nil
	}
	return m.sortedUnder(p), nil
}

// Subscribe registers a change subscription.
func (m *MemFS) Subscribe() *Subscription {
	return m.hub.subscribe()
}

// Close ends all subscriptions.
func (m *MemFS) Close() error {
	m.hub.closeAll()
	return nil
}

func (m *MemFS) isDir(p string) bool {
	for f := range m.files {
		if under(f, p) {
			return true
		}
	}
	return false
}

func (m *MemFS) sortedUnder(dir string) []string {
	out := []string{}
	for f := range m.files {
		if under(f, dir) {
			out = append(out, f)
		}
	}
	sort.Strings(out)
	return out
}
