package index

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot is an immutable view of the index.
type Snapshot struct {
	SessionID string    `json:"session_id"`
	Files     []string  `json:"files"`
	UpdatedAt time.Time `json:"updated_at"`
	// Focus asks listeners to bring the session view forward
	Focus bool `json:"focus,omitempty"`
}

// Empty reports whether no session is indexed.
func (s Snapshot) Empty() bool {
	return s.SessionID == ""
}

// Observer is called after every index change with the new snapshot.
type Observer func(Snapshot)

// Index is the session file index.
type Index struct {
	current atomic.Pointer[Snapshot]

	mu        sync.RWMutex
	observers map[uint64]Observer
	nextID    uint64
}

// New creates an empty index.
func New() *Index {
	idx := &Index{observers: make(map[uint64]Observer)}
	idx.current.Store(&Snapshot{Files: []string{}})
	return idx
}

// SetSession replaces the indexed session and notifies observers.
func (i *Index) SetSession(sessionID string, files []string) {
	snap := &Snapshot{
		SessionID: sessionID,
		Files:     append([]string{}, files...),
		UpdatedAt: time.Now(),
	}
	i.current.Store(snap)
	i.notify(*snap)
}

// Clear empties the index and notifies observers.
func (i *Index) Clear() {
	snap := &Snapshot{Files: []string{}, UpdatedAt: time.Now()}
	i.current.Store(snap)
	i.notify(*snap)
}

// Focus re-announces the current snapshot with the focus flag set.
func (i *Index) Focus() {
	snap := i.Current()
	snap.Focus = true
	i.notify(snap)
}

// List returns the indexed file names in server order.
func (i *Index) List() []string {
	return i.Current().Files
}

// Current returns a copy of the current snapshot.
func (i *Index) Current() Snapshot {
	snap := *i.current.Load()
	snap.Files = append([]string{}, snap.Files...)
	return snap
}

// Subscribe registers an observer and returns its cancel function.
func (i *Index) Subscribe(fn Observer) func() {
	i.mu.Lock()
	id := i.nextID
	i.nextID++
	i.observers[id] = fn
	i.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			i.mu.Lock()
			delete(i.observers, id)
			i.mu.Unlock()
		})
	}
}

func (i *Index) notify(snap Snapshot) {
	i.mu.RLock()
	ids := make([]uint64, 0, len(i.observers))
	for id := range i.observers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(a, b int) bool { return ids[a] < ids[b] })
	observers := make([]Observer, 0, len(ids))
	for _, id := range ids {
		observers = append(observers, i.observers[id])
	}
	i.mu.RUnlock()

	for _, fn := range observers {
		copied := snap
		copied.Files = append([]string{}, snap.Files...)
		fn(copied)
	}
}
