package session

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/GriffinCanCode/sessionsync/internal/domain/index"
	"github.com/GriffinCanCode/sessionsync/internal/domain/workspace"
	"github.com/GriffinCanCode/sessionsync/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/sessionsync/internal/remote"
	"github.com/GriffinCanCode/sessionsync/internal/types"
	"github.com/GriffinCanCode/sessionsync/internal/vfs"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var upsert = vfs.WriteOptions{Create: true, Overwrite: true}

type fixture struct {
	remote *fakeRemote
	store  *recordingStore
	index  *index.Index
	ws     *workspace.Workspace
	ctrl   *Controller
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	f := &fixture{
		remote: newFakeRemote(),
		store:  newRecordingStore(),
		index:  index.New(),
		ws:     workspace.New(),
	}
	f.ctrl = NewController(f.remote, f.store, f.index, f.ws, cfg).WithMetrics(monitoring.NewMetrics())
	t.Cleanup(func() {
		f.ctrl.Close()
		f.store.Close()
	})
	return f
}

func (f *fixture) files(t *testing.T) map[string]string {
	t.Helper()
	paths, err := f.store.List("/")
	require.NoError(t, err)
	out := make(map[string]string, len(paths))
	for _, p := range paths {
		data, err := f.store.ReadFile(p)
		require.NoError(t, err)
		out[p] = string(data)
	}
	return out
}

func TestLoadMaterializesSession(t *testing.T) {
	f := newFixture(t, Config{})
	f.remote.addSession("abc123", "domain.pddl", "(define (domain d))", "p1.pddl", "(define (problem p1))")

	report, err := f.ctrl.Load(context.Background(), "abc123")
	require.NoError(t, err)

	assert.Equal(t, []string{"domain.pddl", "p1.pddl"}, report.Written)
	assert.Empty(t, report.Failed)
	assert.False(t, report.Partial())

	assert.Len(t, f.remote.callsFor(remote.OpFetchSession), 1)
	assert.Len(t, f.remote.callsFor(remote.OpFetchFile), 2)

	writes := f.store.recorded()
	require.Len(t, writes, 2)
	for _, w := range writes {
		assert.Equal(t, vfs.WriteOptions{Create: true, Overwrite: true}, w.Opts)
	}

	assert.Equal(t, map[string]string{
		"/session/domain.pddl": "(define (domain d))",
		"/session/p1.pddl":     "(define (problem p1))",
	}, f.files(t))

	snap := f.index.Current()
	assert.Equal(t, "abc123", snap.SessionID)
	assert.Equal(t, []string{"domain.pddl", "p1.pddl"}, snap.Files)

	assert.Equal(t, types.SessionActive, f.ctrl.State())
	assert.Equal(t, &types.Session{ID: "abc123", Files: []string{"domain.pddl", "p1.pddl"}}, f.ctrl.Current())

	folders := f.ws.Folders()
	require.Len(t, folders, 1)
	assert.Equal(t, "Planning.domains Session", folders[0].Name)
	assert.Equal(t, "/session", folders[0].URI)
}

func TestLoadKeepsServerOrder(t *testing.T) {
	f := newFixture(t, Config{FetchConcurrency: 1})
	f.remote.addSession("s", "z.pddl", "z", "a.pddl", "a", "m.pddl", "m")

	report, err := f.ctrl.Load(context.Background(), "s")
	require.NoError(t, err)
	assert.Equal(t, []string{"z.pddl", "a.pddl", "m.pddl"}, report.Written)
	assert.Equal(t, []string{"z.pddl", "a.pddl", "m.pddl"}, f.index.List())
}

func TestPopulationIsNotUploaded(t *testing.T) {
	f := newFixture(t, Config{})
	f.remote.addSession("abc123", "domain.pddl", "d", "p1.pddl", "p")

	_, err := f.ctrl.Load(context.Background(), "abc123")
	require.NoError(t, err)

	assert.Never(t, func() bool { return len(f.remote.uploads()) > 0 }, 100*time.Millisecond, 10*time.Millisecond)
}

func TestLoadEvictsPreviousSession(t *testing.T) {
	f := newFixture(t, Config{})
	f.remote.addSession("s1", "domain.pddl", "d1", "p1.pddl", "p1", "p2.pddl", "p2")
	f.remote.addSession("s2", "domain.pddl", "d2", "q1.pddl", "q1")

	_, err := f.ctrl.Load(context.Background(), "s1")
	require.NoError(t, err)
	_, err = f.ctrl.Load(context.Background(), "s2")
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"/session/domain.pddl": "d2",
		"/session/q1.pddl":     "q1",
	}, f.files(t))
	assert.Equal(t, []string{"domain.pddl", "q1.pddl"}, f.index.List())
	assert.Len(t, f.ws.Folders(), 1, "workspace folder is added once")

	// Evicting s1 must not delete its files remotely
	assert.Never(t, func() bool { return len(f.remote.uploads()) > 0 }, 100*time.Millisecond, 10*time.Millisecond)
}

func TestChangeEventsSyncToRemote(t *testing.T) {
	for _, ordering := range []Ordering{OrderingUnordered, OrderingPerPath} {
		t.Run(string(ordering), func(t *testing.T) {
			f := newFixture(t, Config{Ordering: ordering})
			f.remote.addSession("abc123", "domain.pddl", "d", "p1.pddl", "p")

			_, err := f.ctrl.Load(context.Background(), "abc123")
			require.NoError(t, err)

			require.NoError(t, f.store.WriteFile("/session/p1.pddl", []byte("edited"), upsert))
			calls := f.remote.waitForUploads(t, 1)
			assert.Equal(t, remoteCall{Op: remote.OpUpdateFile, SessionID: "abc123", File: "p1.pddl", Content: "edited"}, calls[0])

			require.NoError(t, f.store.WriteFile("/session/p2.pddl", []byte("new"), upsert))
			calls = f.remote.waitForUploads(t, 2)
			assert.Equal(t, remoteCall{Op: remote.OpCreateFile, SessionID: "abc123", File: "p2.pddl", Content: "new"}, calls[1])

			require.NoError(t, f.store.Delete("/session/domain.pddl", vfs.DeleteOptions{}))
			calls = f.remote.waitForUploads(t, 3)
			assert.Equal(t, remoteCall{Op: remote.OpDeleteFile, SessionID: "abc123", File: "domain.pddl"}, calls[2])

			status := f.ctrl.Status()
			assert.Equal(t, int64(3), status.Uploads)
			assert.Zero(t, status.UploadErrs)
		})
	}
}

func TestUploadsUseCurrentSessionID(t *testing.T) {
	f := newFixture(t, Config{})
	f.remote.addSession("s1", "a.pddl", "a")
	f.remote.addSession("s2", "b.pddl", "b")

	_, err := f.ctrl.Load(context.Background(), "s1")
	require.NoError(t, err)
	_, err = f.ctrl.Load(context.Background(), "s2")
	require.NoError(t, err)

	require.NoError(t, f.store.WriteFile("/session/b.pddl", []byte("b2"), upsert))
	calls := f.remote.waitForUploads(t, 1)
	assert.Equal(t, "s2", calls[0].SessionID)
}

func TestDeleteDispatchedExactlyOnce(t *testing.T) {
	f := newFixture(t, Config{})
	f.remote.addSession("abc123", "domain.pddl", "d", "p1.pddl", "p")

	_, err := f.ctrl.Load(context.Background(), "abc123")
	require.NoError(t, err)

	for _, name := range []string{"n1.pddl", "n2.pddl", "n3.pddl", "n4.pddl"} {
		require.NoError(t, f.store.WriteFile("/session/"+name, []byte(name), upsert))
	}
	require.NoError(t, f.store.Delete("/session/p1.pddl", vfs.DeleteOptions{}))

	calls := f.remote.waitForUploads(t, 5)
	var deletes []remoteCall
	for _, c := range calls {
		if c.Op == remote.OpDeleteFile {
			deletes = append(deletes, c)
		}
	}
	assert.Equal(t, []remoteCall{{Op: remote.OpDeleteFile, SessionID: "abc123", File: "p1.pddl"}}, deletes)
}

func TestEventsOutsideRootAreIgnored(t *testing.T) {
	f := newFixture(t, Config{})
	f.remote.addSession("abc123", "p1.pddl", "p")

	_, err := f.ctrl.Load(context.Background(), "abc123")
	require.NoError(t, err)

	require.NoError(t, f.store.WriteFile("/elsewhere/x.pddl", []byte("x"), upsert))
	require.NoError(t, f.store.WriteFile("/session/nested/y.pddl", []byte("y"), upsert))
	require.NoError(t, f.store.WriteFile("/sessionx/z.pddl", []byte("z"), upsert))

	assert.Never(t, func() bool { return len(f.remote.uploads()) > 0 }, 100*time.Millisecond, 10*time.Millisecond)
}

func TestFailedFileFetchIsIsolated(t *testing.T) {
	f := newFixture(t, Config{})
	f.remote.addSession("abc123", "domain.pddl", "d", "p1.pddl", "p", "p2.pddl", "q")
	f.remote.fileErrs["p1.pddl"] = &remote.Error{Op: remote.OpFetchFile, Kind: remote.ErrRemoteUnavailable}

	report, err := f.ctrl.Load(context.Background(), "abc123")
	require.NoError(t, err)

	assert.True(t, report.Partial())
	assert.Equal(t, []string{"domain.pddl", "p2.pddl"}, report.Written)
	assert.Contains(t, report.Failed, "p1.pddl")
	assert.Equal(t, map[string]string{
		"/session/domain.pddl": "d",
		"/session/p2.pddl":     "q",
	}, f.files(t))

	// The index lists the session as the server reported it
	assert.Equal(t, []string{"domain.pddl", "p1.pddl", "p2.pddl"}, f.index.List())
	assert.Equal(t, types.SessionActive, f.ctrl.State())
}

func TestInvalidFileNamesAreRejected(t *testing.T) {
	f := newFixture(t, Config{})
	f.remote.addSession("abc123", "../escape", "x", "ok.pddl", "y")

	report, err := f.ctrl.Load(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Contains(t, report.Failed, "../escape")
	assert.Equal(t, []string{"ok.pddl"}, report.Written)
	assert.Len(t, f.remote.callsFor(remote.OpFetchFile), 1)
}

func TestFetchSessionFailureFromIdle(t *testing.T) {
	f := newFixture(t, Config{})

	report, err := f.ctrl.Load(context.Background(), "missing")
	require.Error(t, err)
	assert.Nil(t, report)
	assert.ErrorIs(t, err, remote.ErrRemoteRejected)

	assert.Equal(t, types.SessionIdle, f.ctrl.State())
	assert.Nil(t, f.ctrl.Current())
	assert.True(t, f.index.Current().Empty())
	assert.Empty(t, f.store.recorded())
	assert.Empty(t, f.ws.Folders())
}

func TestFetchSessionFailureKeepsActiveSession(t *testing.T) {
	f := newFixture(t, Config{})
	f.remote.addSession("abc123", "p1.pddl", "p")

	_, err := f.ctrl.Load(context.Background(), "abc123")
	require.NoError(t, err)

	_, err = f.ctrl.Load(context.Background(), "missing")
	require.Error(t, err)

	assert.Equal(t, types.SessionActive, f.ctrl.State())
	assert.Equal(t, "abc123", f.ctrl.Current().ID)
	assert.Equal(t, map[string]string{"/session/p1.pddl": "p"}, f.files(t))

	// Synchronization for the prior session continues
	require.NoError(t, f.store.WriteFile("/session/p1.pddl", []byte("p2"), upsert))
	calls := f.remote.waitForUploads(t, 1)
	assert.Equal(t, "abc123", calls[0].SessionID)
}

func TestEvictionFailureDoesNotAbortLoad(t *testing.T) {
	r := newFakeRemote()
	r.addSession("abc123", "p1.pddl", "p")
	store := &failingStore{MemFS: vfs.NewMemFS()}
	defer store.Close()

	ctrl := NewController(r, store, nil, nil, Config{})
	defer ctrl.Close()

	report, err := ctrl.Load(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, []string{"p1.pddl"}, report.Written)
	assert.Equal(t, types.SessionActive, ctrl.State())
}

func TestUploadFailureIsIsolated(t *testing.T) {
	f := newFixture(t, Config{})
	f.remote.addSession("abc123", "p1.pddl", "p")

	_, err := f.ctrl.Load(context.Background(), "abc123")
	require.NoError(t, err)

	f.remote.mu.Lock()
	f.remote.uploadErr = &remote.Error{Op: remote.OpUpdateFile, Kind: remote.ErrRemoteRejected, StatusCode: 500}
	f.remote.mu.Unlock()

	require.NoError(t, f.store.WriteFile("/session/p1.pddl", []byte("v2"), upsert))
	f.remote.waitForUploads(t, 1)
	require.Eventually(t, func() bool { return f.ctrl.Status().UploadErrs == 1 }, time.Second, 5*time.Millisecond)

	f.remote.mu.Lock()
	f.remote.uploadErr = nil
	f.remote.mu.Unlock()

	require.NoError(t, f.store.WriteFile("/session/p1.pddl", []byte("v3"), upsert))
	f.remote.waitForUploads(t, 2)
	require.Eventually(t, func() bool { return f.ctrl.Status().Uploads == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, types.SessionActive, f.ctrl.State())
}

func TestUnload(t *testing.T) {
	f := newFixture(t, Config{})
	f.remote.addSession("abc123", "p1.pddl", "p")

	_, err := f.ctrl.Load(context.Background(), "abc123")
	require.NoError(t, err)
	require.NoError(t, f.ctrl.Unload(context.Background()))

	assert.Equal(t, types.SessionIdle, f.ctrl.State())
	assert.Nil(t, f.ctrl.Current())
	assert.True(t, f.index.Current().Empty())
	assert.Empty(t, f.files(t))

	status := f.ctrl.Status()
	assert.Equal(t, types.SessionIdle, status.State)
	assert.Nil(t, status.LoadedAt)

	require.NoError(t, f.store.WriteFile("/session/p1.pddl", []byte("after"), upsert))
	assert.Never(t, func() bool { return len(f.remote.uploads()) > 0 }, 100*time.Millisecond, 10*time.Millisecond)
}

func TestNewestConcurrentLoadWins(t *testing.T) {
	f := newFixture(t, Config{})
	f.remote.addSession("s1", "a.pddl", "a")
	f.remote.addSession("s2", "b.pddl", "b")
	release := f.remote.hold("s1")
	defer release()

	errs := make(chan error, 1)
	go func() {
		_, err := f.ctrl.Load(context.Background(), "s1")
		errs <- err
	}()

	require.Eventually(t, func() bool {
		return len(f.remote.callsFor(remote.OpFetchSession)) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, types.SessionLoading, f.ctrl.State())

	_, err := f.ctrl.Load(context.Background(), "s2")
	require.NoError(t, err)

	release()
	assert.ErrorIs(t, <-errs, ErrSuperseded)

	assert.Equal(t, "s2", f.ctrl.Current().ID)
	assert.Equal(t, types.SessionActive, f.ctrl.State())
	assert.Equal(t, map[string]string{"/session/b.pddl": "b"}, f.files(t))
	assert.Equal(t, "s2", f.index.Current().SessionID)
}

func TestFailedLoadAfterEvictionSettlesIdle(t *testing.T) {
	f := newFixture(t, Config{})
	f.remote.addSession("s0", "a.pddl", "a")
	f.remote.addSession("s1", "b.pddl", "b")

	_, err := f.ctrl.Load(context.Background(), "s0")
	require.NoError(t, err)

	release := f.remote.holdFile("b.pddl")
	defer release()

	errs := make(chan error, 1)
	go func() {
		_, err := f.ctrl.Load(context.Background(), "s1")
		errs <- err
	}()

	// s1 has evicted s0 and is blocked fetching its file
	require.Eventually(t, func() bool {
		return len(f.remote.callsFor(remote.OpFetchFile)) == 2
	}, time.Second, 5*time.Millisecond)

	status := f.ctrl.Status()
	assert.Equal(t, types.SessionLoading, status.State)
	assert.Empty(t, status.SessionID)
	assert.Empty(t, status.Files)
	assert.Nil(t, f.ctrl.Current())
	assert.True(t, f.index.Current().Empty())

	_, err = f.ctrl.Load(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, remote.ErrRemoteRejected)

	release()
	assert.ErrorIs(t, <-errs, ErrSuperseded)

	assert.Equal(t, types.SessionIdle, f.ctrl.State())
	assert.Nil(t, f.ctrl.Current())
	assert.True(t, f.index.Current().Empty())
	assert.Empty(t, f.files(t))

	require.NoError(t, f.store.WriteFile("/session/a.pddl", []byte("edited"), upsert))
	assert.Never(t, func() bool { return len(f.remote.uploads()) > 0 }, 100*time.Millisecond, 10*time.Millisecond)
}

func TestQueuedUploadReadsContentWhenDispatched(t *testing.T) {
	f := newFixture(t, Config{Ordering: OrderingPerPath})
	f.remote.addSession("abc123", "p1.pddl", "p")

	_, err := f.ctrl.Load(context.Background(), "abc123")
	require.NoError(t, err)

	release := f.remote.holdUploads()
	defer release()

	require.NoError(t, f.store.WriteFile("/session/p1.pddl", []byte("v2"), upsert))
	calls := f.remote.waitForUploads(t, 1)
	assert.Equal(t, "v2", calls[0].Content)

	require.NoError(t, f.store.WriteFile("/session/p1.pddl", []byte("v3"), upsert))
	require.NoError(t, f.store.WriteFile("/session/p1.pddl", []byte("v4"), upsert))
	release()

	calls = f.remote.waitForUploads(t, 3)
	for _, c := range calls[1:] {
		assert.Equal(t, remoteCall{Op: remote.OpUpdateFile, SessionID: "abc123", File: "p1.pddl", Content: "v4"}, c)
	}
}

func TestQueuedUploadOfDeletedFileIsSkipped(t *testing.T) {
	f := newFixture(t, Config{Ordering: OrderingPerPath})
	f.remote.addSession("abc123", "p1.pddl", "p")

	_, err := f.ctrl.Load(context.Background(), "abc123")
	require.NoError(t, err)

	release := f.remote.holdUploads()
	defer release()

	require.NoError(t, f.store.WriteFile("/session/p1.pddl", []byte("v2"), upsert))
	f.remote.waitForUploads(t, 1)

	require.NoError(t, f.store.WriteFile("/session/p1.pddl", []byte("v3"), upsert))
	require.NoError(t, f.store.Delete("/session/p1.pddl", vfs.DeleteOptions{}))
	release()

	calls := f.remote.waitForUploads(t, 2)
	assert.Equal(t, remoteCall{Op: remote.OpDeleteFile, SessionID: "abc123", File: "p1.pddl"}, calls[1])
	assert.Never(t, func() bool { return len(f.remote.uploads()) > 2 }, 100*time.Millisecond, 10*time.Millisecond)
	require.Eventually(t, func() bool { return f.ctrl.Status().Uploads == 2 }, time.Second, 5*time.Millisecond)
}

func TestUnloadSupersedesPendingLoad(t *testing.T) {
	f := newFixture(t, Config{})
	f.remote.addSession("s1", "a.pddl", "a")
	release := f.remote.hold("s1")

	errs := make(chan error, 1)
	go func() {
		_, err := f.ctrl.Load(context.Background(), "s1")
		errs <- err
	}()
	require.Eventually(t, func() bool {
		return len(f.remote.callsFor(remote.OpFetchSession)) == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, f.ctrl.Unload(context.Background()))
	release()

	assert.ErrorIs(t, <-errs, ErrSuperseded)
	assert.Equal(t, types.SessionIdle, f.ctrl.State())
	assert.Empty(t, f.files(t))
}

func TestCloseWaitsAndRejectsLoads(t *testing.T) {
	f := newFixture(t, Config{Ordering: OrderingPerPath})
	f.remote.addSession("abc123", "p1.pddl", "p")

	_, err := f.ctrl.Load(context.Background(), "abc123")
	require.NoError(t, err)

	require.NoError(t, f.store.WriteFile("/session/p1.pddl", []byte("v2"), upsert))
	f.remote.waitForUploads(t, 1)

	require.NoError(t, f.ctrl.Close())
	require.NoError(t, f.ctrl.Close())

	_, err = f.ctrl.Load(context.Background(), "abc123")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, f.ctrl.Unload(context.Background()), ErrClosed)

	// Store content survives Close
	assert.Equal(t, map[string]string{"/session/p1.pddl": "v2"}, f.files(t))
}

func TestCanceledContext(t *testing.T) {
	f := newFixture(t, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.True(t, errors.Is(f.ctrl.Unload(ctx), context.Canceled))
}

func TestCustomRoot(t *testing.T) {
	f := newFixture(t, Config{Root: "/work/planning/", FolderName: "Planning"})
	f.remote.addSession("abc123", "p1.pddl", "p")

	_, err := f.ctrl.Load(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, "/work/planning", f.ctrl.Root())

	paths, err := f.store.List("/")
	require.NoError(t, err)
	sort.Strings(paths)
	assert.Equal(t, []string{"/work/planning/p1.pddl"}, paths)
	assert.Equal(t, "Planning", f.ws.Folders()[0].Name)
}
