package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/sessionsync/internal/remote"
	"github.com/GriffinCanCode/sessionsync/internal/types"
	"github.com/GriffinCanCode/sessionsync/internal/vfs"
)

// remoteCall is one recorded remote operation.
type remoteCall struct {
	Op        string
	SessionID string
	File      string
	Content   string
}

// fakeRemote is an in-memory session store that records every call.
type fakeRemote struct {
	mu         sync.Mutex
	sessions   map[string]map[string]string
	order      map[string][]string
	fileErrs   map[string]error
	uploadErr  error
	holds      map[string]chan struct{}
	fileHolds  map[string]chan struct{}
	uploadGate chan struct{}
	calls      []remoteCall
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		sessions:  make(map[string]map[string]string),
		order:     make(map[string][]string),
		fileErrs:  make(map[string]error),
		holds:     make(map[string]chan struct{}),
		fileHolds: make(map[string]chan struct{}),
	}
}

// addSession registers a session; files alternate name, content.
func (r *fakeRemote) addSession(id string, files ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[id] = make(map[string]string)
	r.order[id] = nil
	for i := 0; i+1 < len(files); i += 2 {
		r.sessions[id][files[i]] = files[i+1]
		r.order[id] = append(r.order[id], files[i])
	}
}

// hold blocks FetchSession for id until the returned release is called.
func (r *fakeRemote) hold(id string) (release func()) {
	ch := make(chan struct{})
	r.mu.Lock()
	r.holds[id] = ch
	r.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

// holdFile blocks FetchFileContent for fileName until release is called.
func (r *fakeRemote) holdFile(fileName string) (release func()) {
	ch := make(chan struct{})
	r.mu.Lock()
	r.fileHolds[fileName] = ch
	r.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

// holdUploads blocks every upload after it is recorded until release is called.
func (r *fakeRemote) holdUploads() (release func()) {
	ch := make(chan struct{})
	r.mu.Lock()
	r.uploadGate = ch
	r.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

func (r *fakeRemote) record(c remoteCall) {
	r.mu.Lock()
	r.calls = append(r.calls, c)
	r.mu.Unlock()
}

func (r *fakeRemote) FetchSession(ctx context.Context, sessionID string) (*types.Session, error) {
	r.record(remoteCall{Op: remote.OpFetchSession, SessionID: sessionID})

	r.mu.Lock()
	hold := r.holds[sessionID]
	r.mu.Unlock()
	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[sessionID]; !ok {
		return nil, &remote.Error{Op: remote.OpFetchSession, SessionID: sessionID, StatusCode: 404, Kind: remote.ErrRemoteRejected}
	}
	return &types.Session{ID: sessionID, Files: append([]string{}, r.order[sessionID]...)}, nil
}

func (r *fakeRemote) FetchFileContent(ctx context.Context, sessionID, fileName string) (string, error) {
	r.record(remoteCall{Op: remote.OpFetchFile, SessionID: sessionID, File: fileName})

	r.mu.Lock()
	hold := r.fileHolds[fileName]
	r.mu.Unlock()
	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fileErrs[fileName]; err != nil {
		return "", err
	}
	content, ok := r.sessions[sessionID][fileName]
	if !ok {
		return "", &remote.Error{Op: remote.OpFetchFile, SessionID: sessionID, FileName: fileName, StatusCode: 404, Kind: remote.ErrRemoteRejected}
	}
	return content, nil
}

func (r *fakeRemote) CreateFile(_ context.Context, sessionID, fileName, content string) (string, error) {
	return r.write(remote.OpCreateFile, sessionID, fileName, content)
}

func (r *fakeRemote) UpdateFile(_ context.Context, sessionID, fileName, content string) (string, error) {
	return r.write(remote.OpUpdateFile, sessionID, fileName, content)
}

func (r *fakeRemote) DeleteFile(_ context.Context, sessionID, fileName string) (string, error) {
	return r.write(remote.OpDeleteFile, sessionID, fileName, "")
}

func (r *fakeRemote) write(op, sessionID, fileName, content string) (string, error) {
	r.record(remoteCall{Op: op, SessionID: sessionID, File: fileName, Content: content})

	r.mu.Lock()
	gate := r.uploadGate
	r.mu.Unlock()
	if gate != nil {
		<-gate
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.uploadErr != nil {
		return "", r.uploadErr
	}
	return "ok", nil
}

func (r *fakeRemote) callsFor(ops ...string) []remoteCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []remoteCall
	for _, c := range r.calls {
		for _, op := range ops {
			if c.Op == op {
				out = append(out, c)
			}
		}
	}
	return out
}

func (r *fakeRemote) uploads() []remoteCall {
	return r.callsFor(remote.OpCreateFile, remote.OpUpdateFile, remote.OpDeleteFile)
}

// waitForUploads waits until exactly n upload calls were recorded.
func (r *fakeRemote) waitForUploads(t *testing.T, n int) []remoteCall {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(r.uploads()) >= n
	}, 2*time.Second, 5*time.Millisecond, "expected %d uploads", n)
	calls := r.uploads()
	require.Len(t, calls, n)
	return calls
}

type writeCall struct {
	Path string
	Opts vfs.WriteOptions
}

// recordingStore records the options of every write.
type recordingStore struct {
	*vfs.MemFS
	mu     sync.Mutex
	writes []writeCall
}

func newRecordingStore() *recordingStore {
	return &recordingStore{MemFS: vfs.NewMemFS()}
}

func (s *recordingStore) WriteFile(name string, data []byte, opts vfs.WriteOptions) error {
	s.mu.Lock()
	s.writes = append(s.writes, writeCall{Path: name, Opts: opts})
	s.mu.Unlock()
	return s.MemFS.WriteFile(name, data, opts)
}

func (s *recordingStore) recorded() []writeCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]writeCall(nil), s.writes...)
}

// failingStore fails recursive deletes.
type failingStore struct {
	*vfs.MemFS
}

func (s *failingStore) Delete(name string, opts vfs.DeleteOptions) error {
	if opts.Recursive {
		return fmt.Errorf("disk on fire: %w", errors.ErrUnsupported)
	}
	return s.MemFS.Delete(name, opts)
}
