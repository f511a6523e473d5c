package types

import "time"

// Session is a remote bundle of files identified by an opaque id.
type Session struct {
	ID    string   `json:"sessionId"`
	Files []string `json:"files"`
}

// Clone returns a copy that shares no memory with s.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	files := make([]string, len(s.Files))
	copy(files, s.Files)
	return &Session{ID: s.ID, Files: files}
}

// LoadReport describes the per-file outcome of loading a session.
type LoadReport struct {
	Session  *Session          `json:"session"`
	Written  []string          `json:"written"`
	Failed   map[string]string `json:"failed,omitempty"`
	Duration time.Duration     `json:"duration"`
}

// Partial reports whether some files could not be materialized.
func (r *LoadReport) Partial() bool {
	return r != nil && len(r.Failed) > 0
}

// SessionState is the lifecycle state of the session controller.
type SessionState string

const (
	SessionIdle    SessionState = "idle"
	SessionLoading SessionState = "loading"
	SessionActive  SessionState = "active"
)

// SessionStatus is the controller's externally visible status.
type SessionStatus struct {
	State      SessionState `json:"state"`
	SessionID  string       `json:"session_id,omitempty"`
	Files      []string     `json:"files"`
	LoadedAt   *time.Time   `json:"loaded_at,omitempty"`
	Uploads    int64        `json:"uploads"`
	UploadErrs int64        `json:"upload_errors"`
}
