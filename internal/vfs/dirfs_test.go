package vfs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDirFS(t *testing.T) *DirFS {
	t.Helper()
	d, err := NewDirFS(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d
}

// waitFor reads batches until want shows up. Editors and os.WriteFile may
// produce several events for one save.
func waitFor(t *testing.T, sub *Subscription, want FileChangeEvent) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case batch, ok := <-sub.Events():
			require.True(t, ok, "subscription closed")
			for _, ev := range batch {
				if ev == want {
					return
				}
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %v", want)
		}
	}
}

func TestDirFSWriteReadList(t *testing.T) {
	d := newTestDirFS(t)

	require.NoError(t, d.WriteFile("/session/p1.pddl", []byte("(p1)"), upsert))
	require.NoError(t, d.WriteFile("/session/domain.pddl", []byte("(d)"), upsert))

	onDisk, err := os.ReadFile(filepath.Join(d.Dir(), "session", "p1.pddl"))
	require.NoError(t, err)
	assert.Equal(t, "(p1)", string(onDisk))

	data, err := d.ReadFile("/session/domain.pddl")
	require.NoError(t, err)
	assert.Equal(t, "(d)", string(data))

	files, err := d.List("/session")
	require.NoError(t, err)
	assert.Equal(t, []string{"/session/domain.pddl", "/session/p1.pddl"}, files)

	files, err = d.List("/missing")
	require.NoError(t, err)
	assert.Empty(t, files)

	_, err = d.ReadFile("/session/missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDirFSWriteOptions(t *testing.T) {
	d := newTestDirFS(t)

	assert.ErrorIs(t, d.WriteFile("/a", nil, WriteOptions{Overwrite: true}), ErrNotFound)
	require.NoError(t, d.WriteFile("/a", nil, WriteOptions{Create: true}))
	assert.ErrorIs(t, d.WriteFile("/a", nil, WriteOptions{Create: true}), ErrExists)
}

func TestDirFSOwnWritesPublishOnce(t *testing.T) {
	d := newTestDirFS(t)
	sub := d.Subscribe()
	defer sub.Close()

	require.NoError(t, d.WriteFile("/session/p1.pddl", []byte("one"), upsert))
	require.NoError(t, d.WriteFile("/session/p1.pddl", []byte("two"), upsert))

	assert.Equal(t, []FileChangeEvent{{URI: "/session/p1.pddl", Kind: Created}}, nextBatch(t, sub))
	assert.Equal(t, []FileChangeEvent{{URI: "/session/p1.pddl", Kind: Changed}}, nextBatch(t, sub))
	assertQuiet(t, sub, 300*time.Millisecond)
}

func TestDirFSEvictAndRepopulateStaysQuiet(t *testing.T) {
	d := newTestDirFS(t)
	require.NoError(t, d.WriteFile("/session/domain.pddl", []byte("old"), upsert))
	require.NoError(t, d.WriteFile("/session/p1.pddl", []byte("old"), upsert))

	sub := d.Subscribe()
	defer sub.Close()

	require.NoError(t, d.Delete("/session", DeleteOptions{Recursive: true}))
	require.NoError(t, d.WriteFile("/session/domain.pddl", []byte("new"), upsert))

	assert.Equal(t, []FileChangeEvent{
		{URI: "/session/domain.pddl", Kind: Deleted},
		{URI: "/session/p1.pddl", Kind: Deleted},
	}, nextBatch(t, sub))
	assert.Equal(t, []FileChangeEvent{{URI: "/session/domain.pddl", Kind: Created}}, nextBatch(t, sub))

	// Late watcher echoes of the delete must not report the new file gone
	assertQuiet(t, sub, 300*time.Millisecond)
}

func TestDirFSExternalEdits(t *testing.T) {
	d := newTestDirFS(t)
	require.NoError(t, d.WriteFile("/session/p1.pddl", []byte("one"), upsert))

	sub := d.Subscribe()
	defer sub.Close()

	disk := filepath.Join(d.Dir(), "session", "p1.pddl")
	require.NoError(t, os.WriteFile(disk, []byte("edited"), 0o644))

	waitFor(t, sub, FileChangeEvent{URI: "/session/p1.pddl", Kind: Changed})

	data, err := d.ReadFile("/session/p1.pddl")
	require.NoError(t, err)
	assert.Equal(t, "edited", string(data))

	require.NoError(t, os.WriteFile(filepath.Join(d.Dir(), "session", "p2.pddl"), []byte("new"), 0o644))
	waitFor(t, sub, FileChangeEvent{URI: "/session/p2.pddl", Kind: Created})

	require.NoError(t, os.Remove(disk))
	waitFor(t, sub, FileChangeEvent{URI: "/session/p1.pddl", Kind: Deleted})
}

func TestDirFSIgnoresSwapFiles(t *testing.T) {
	d := newTestDirFS(t)
	require.NoError(t, d.WriteFile("/session/p1.pddl", nil, upsert))

	sub := d.Subscribe()
	defer sub.Close()

	require.NoError(t, os.WriteFile(filepath.Join(d.Dir(), "session", ".p1.pddl.swp"), []byte("x"), 0o644))
	assertQuiet(t, sub, 300*time.Millisecond)

	files, err := d.List("/session")
	require.NoError(t, err)
	assert.Equal(t, []string{"/session/p1.pddl"}, files)
}

func TestDirFSAdoptsExistingFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "session"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "session", "p1.pddl"), []byte("x"), 0o644))

	d, err := NewDirFS(dir, nil)
	require.NoError(t, err)
	defer d.Close()

	files, err := d.List("/")
	require.NoError(t, err)
	assert.Equal(t, []string{"/session/p1.pddl"}, files)
}
