// Package workspace tracks the folders a client should show as workspace
// roots.
package workspace

import (
	"sync"
	"time"
)

// Folder is one workspace root.
type Folder struct {
	Name    string    `json:"name"`
	URI     string    `json:"uri"`
	AddedAt time.Time `json:"added_at"`
}

// Workspace is an ordered folder registry, safe for concurrent use.
type Workspace struct {
	mu      sync.RWMutex
	folders []Folder
}

func New() *Workspace {
	return &Workspace{}
}

// AddFolder appends a folder unless one with the same URI exists.
func (w *Workspace) AddFolder(name, uri string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, f := range w.folders {
		if f.URI == uri {
			return false
		}
	}
	w.folders = append(w.folders, Folder{Name: name, URI: uri, AddedAt: time.Now()})
	return true
}

// RemoveFolder drops the folder with the given URI.
func (w *Workspace) RemoveFolder(uri string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	for i, f := range w.folders {
		if f.URI == uri {
			w.folders = append(w.folders[:i], w.folders[i+1:]...)
			return true
		}
	}
	return false
}

// Folders returns the folders in insertion order.
func (w *Workspace) Folders() []Folder {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]Folder{}, w.folders...)
}
