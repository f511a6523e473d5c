package vfs

import (
	"fmt"
	"path"

	"github.com/bmatcuk/doublestar/v4"
)

// Match filters store paths by a doublestar pattern. Patterns without a
// leading slash are matched against paths relative to dir.
func Match(paths []string, dir, pattern string) ([]string, error) {
	if pattern == "" {
		return paths, nil
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, doublestar.ErrBadPattern)
	}

	absolute := path.IsAbs(pattern)
	out := []string{}
	for _, p := range paths {
		candidate := p
		if !absolute {
			candidate = relative(p, dir)
		}
		if ok, _ := doublestar.Match(pattern, candidate); ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func relative(p, dir string) string {
	if dir == "/" {
		return p[1:]
	}
	if under(p, dir) {
		return p[len(dir)+1:]
	}
	return p
}
