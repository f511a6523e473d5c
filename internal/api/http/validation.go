package http

import (
	"fmt"
	"strings"
	"unicode"
)

const (
	// MaxSessionIDLength bounds session ids accepted by the API
	MaxSessionIDLength = 128
	// MaxFileSize bounds the body of PUT /files
	MaxFileSize = 8 * 1024 * 1024
)

// ValidateSessionID checks a session id supplied by a client.
func ValidateSessionID(id string) error {
	if id == "" {
		return fmt.Errorf("session_id is required")
	}
	if len(id) > MaxSessionIDLength {
		return fmt.Errorf("session_id exceeds maximum length of %d", MaxSessionIDLength)
	}
	for _, r := range id {
		if unicode.IsSpace(r) || unicode.IsControl(r) || r == '/' || r == '\\' {
			return fmt.Errorf("session_id contains invalid character %q", r)
		}
	}
	return nil
}

// ValidateFileName checks a bare file name taken from the URL.
func ValidateFileName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("file name is required")
	case name == "." || name == "..":
		return fmt.Errorf("invalid file name %q", name)
	case strings.ContainsAny(name, "/\\"):
		return fmt.Errorf("file name must not contain path separators: %q", name)
	}
	return nil
}
