package vfs

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

var (
	ErrNotFound    = errors.New("file not found")
	ErrExists      = errors.New("file already exists")
	ErrIsDirectory = errors.New("path is a directory")
	ErrInvalidPath = errors.New("invalid path")
)

// ChangeKind is the kind of mutation a FileChangeEvent reports.
type ChangeKind int

const (
	Created ChangeKind = iota + 1
	Changed
	Deleted
)

func (k ChangeKind) String() string {
	switch k {
	case Created:
		return "created"
	case Changed:
		return "changed"
	case Deleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// MarshalText encodes the kind by name.
func (k ChangeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// FileChangeEvent reports one mutated path.
type FileChangeEvent struct {
	URI  string     `json:"uri"`
	Kind ChangeKind `json:"kind"`
}

// WriteOptions controls WriteFile on missing and existing paths.
type WriteOptions struct {
	Create    bool
	Overwrite bool
}

// DeleteOptions controls Delete on directories.
type DeleteOptions struct {
	Recursive bool
}

// Store is the virtual file store contract.
type Store interface {
	ReadFile(name string) ([]byte, error)
	WriteFile(name string, data []byte, opts WriteOptions) error
	Delete(name string, opts DeleteOptions) error
	// List returns the files under prefix, sorted
	List(prefix string) ([]string, error)
	Subscribe() *Subscription
}

// Clean validates a store path and returns its canonical form.
func Clean(name string) (string, error) {
	if !strings.HasPrefix(name, "/") {
		return "", fmt.Errorf("%w: %q is not absolute", ErrInvalidPath, name)
	}
	return path.Clean(name), nil
}

// Join builds a store path from a directory and a file name.
func Join(dir, name string) string {
	return path.Join(dir, name)
}

// under reports whether p lies strictly below dir.
func under(p, dir string) bool {
	if dir == "/" {
		return p != "/"
	}
	return strings.HasPrefix(p, dir+"/")
}

func pathError(op, name string, err error) error {
	return fmt.Errorf("%s %s: %w", op, name, err)
}
