// Package archive exports session files from a store as a compressed tar.
package archive

import (
	"archive/tar"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/GriffinCanCode/sessionsync/internal/vfs"
)

// Format selects the archive compression.
type Format string

const (
	FormatGzip Format = "tar.gz"
	FormatZstd Format = "tar.zst"
	FormatTar  Format = "tar"
)

// ParseFormat accepts a format name or common alias. Empty means gzip.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "", "tar.gz", "tgz", "gzip", "gz":
		return FormatGzip, nil
	case "tar.zst", "zst", "zstd":
		return FormatZstd, nil
	case "tar", "none":
		return FormatTar, nil
	default:
		return "", fmt.Errorf("unsupported archive format %q", s)
	}
}

// ContentType returns the HTTP media type of the format.
func (f Format) ContentType() string {
	switch f {
	case FormatZstd:
		return "application/zstd"
	case FormatTar:
		return "application/x-tar"
	default:
		return "application/gzip"
	}
}

// Extension returns the file name suffix of the format.
func (f Format) Extension() string {
	return "." + string(f)
}

// Write archives every file under root into w. Entries are named
// prefix/<path relative to root>. It returns the number of files written.
func Write(w io.Writer, store vfs.Store, root, prefix string, format Format) (int, error) {
	files, err := store.List(root)
	if err != nil {
		return 0, fmt.Errorf("failed to list %s: %w", root, err)
	}

	var (
		tw      *tar.Writer
		closeFn func() error
	)
	switch format {
	case FormatGzip, "":
		gz := gzip.NewWriter(w)
		tw, closeFn = tar.NewWriter(gz), gz.Close
	case FormatZstd:
		zw, err := zstd.NewWriter(w)
		if err != nil {
			return 0, fmt.Errorf("zstd writer: %w", err)
		}
		tw, closeFn = tar.NewWriter(zw), zw.Close
	case FormatTar:
		tw, closeFn = tar.NewWriter(w), func() error { return nil }
	default:
		return 0, fmt.Errorf("unsupported archive format %q", format)
	}

	now := time.Now()
	count := 0
	for _, file := range files {
		data, err := store.ReadFile(file)
		if err != nil {
			// Removed between List and ReadFile
			continue
		}

		header := &tar.Header{
			Name:    entryName(file, root, prefix),
			Mode:    0o644,
			Size:    int64(len(data)),
			ModTime: now,
		}
		if err := tw.WriteHeader(header); err != nil {
			return count, fmt.Errorf("failed to write header for %s: %w", file, err)
		}
		if _, err := tw.Write(data); err != nil {
			return count, fmt.Errorf("failed to write %s: %w", file, err)
		}
		count++
	}

	if err := tw.Close(); err != nil {
		return count, err
	}
	return count, closeFn()
}

func entryName(file, root, prefix string) string {
	rel := strings.TrimPrefix(strings.TrimPrefix(file, path.Clean(root)), "/")
	if rel == "" {
		rel = path.Base(file)
	}
	if prefix == "" {
		return rel
	}
	return path.Join(prefix, rel)
}
