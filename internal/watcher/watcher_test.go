package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/livemd/internal/logging"
)

func TestEventKindString(t *testing.T) {
	testCases := []struct {
		kind     EventKind
		expected string
	}{
		{KindCreated, "created"},
		{KindModified, "modified"},
		{KindRemoved, "removed"},
		{EventKind(99), "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.kind.String())
		})
	}
}

func TestCoalesce(t *testing.T) {
	testCases := []struct {
		name     string
		old      EventKind
		next     EventKind
		expected EventKind
	}{
		{"write after write", KindModified, KindModified, KindModified},
		{"write after create", KindCreated, KindModified, KindCreated},
		{"remove after create", KindCreated, KindRemoved, KindRemoved},
		{"remove after write", KindModified, KindRemoved, KindRemoved},
		{"create after remove", KindRemoved, KindCreated, KindCreated},
		{"write after remove", KindRemoved, KindModified, KindCreated},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, coalesce(tc.old, tc.next))
		})
	}
}

func startWatcher(t *testing.T, root string) *Watcher {
	t.Helper()

	w, err := New(root, 50*time.Millisecond, logging.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, w.Start(ctx))
	t.Cleanup(func() { _ = w.Stop() })

	return w
}

// collect drains events until the stream stays quiet for the given window.
func collect(t *testing.T, w *Watcher, quiet time.Duration) []Event {
	t.Helper()

	var events []Event
	for {
		select {
		case e, ok := <-w.Events():
			if !ok {
				return events
			}
			events = append(events, e)
		case <-time.After(quiet):
			return events
		}
	}
}

func waitEvent(t *testing.T, w *Watcher) Event {
	t.Helper()

	select {
	case e, ok := <-w.Events():
		require.True(t, ok, "event stream closed early")
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for event")
		return Event{}
	}
}

func TestFileCreation(t *testing.T) {
	root := t.TempDir()
	w := startWatcher(t, root)

	target := filepath.Join(root, "note.md")
	require.NoError(t, os.WriteFile(target, []byte("# hi"), 0o644))

	e := waitEvent(t, w)
	assert.Equal(t, target, e.Path)
	assert.Equal(t, KindCreated, e.Kind)
}

func TestRapidWritesCoalesce(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "note.md")
	require.NoError(t, os.WriteFile(target, []byte("initial"), 0o644))

	w := startWatcher(t, root)

	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(target, []byte("revision"), 0o644))
		time.Sleep(10 * time.Millisecond)
	}

	events := collect(t, w, 500*time.Millisecond)
	require.Len(t, events, 1)
	assert.Equal(t, target, events[0].Path)
	assert.Equal(t, KindModified, events[0].Kind)
}

func TestCreateThenRemoveFlushesAsRemoved(t *testing.T) {
	root := t.TempDir()
	w := startWatcher(t, root)

	target := filepath.Join(root, "ephemeral.md")
	require.NoError(t, os.WriteFile(target, []byte("blink"), 0o644))
	require.NoError(t, os.Remove(target))

	events := collect(t, w, 500*time.Millisecond)
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, target, last.Path)
	assert.Equal(t, KindRemoved, last.Kind)
}

func TestIgnoredFiles(t *testing.T) {
	root := t.TempDir()
	w := startWatcher(t, root)

	require.NoError(t, os.WriteFile(filepath.Join(root, ".hidden.md"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "backup.md~"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "note.swp"), []byte("x"), 0o644))

	events := collect(t, w, 300*time.Millisecond)
	assert.Empty(t, events)
}

func TestNewDirectoryIsWatched(t *testing.T) {
	root := t.TempDir()
	w := startWatcher(t, root)

	sub := filepath.Join(root, "chapter")
	require.NoError(t, os.Mkdir(sub, 0o755))

	// Give the watcher a moment to register the new directory.
	time.Sleep(200 * time.Millisecond)

	target := filepath.Join(sub, "page.md")
	require.NoError(t, os.WriteFile(target, []byte("# page"), 0o644))

	e := waitEvent(t, w)
	assert.Equal(t, target, e.Path)
}

func TestStopClosesStream(t *testing.T) {
	root := t.TempDir()
	w := startWatcher(t, root)

	require.NoError(t, w.Stop())

	select {
	case _, ok := <-w.Events():
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("event stream did not close after Stop")
	}
}

func TestStartFailsOnMissingRoot(t *testing.T) {
	w, err := New(filepath.Join(t.TempDir(), "does-not-exist"), 50*time.Millisecond, logging.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Stop() })

	err = w.Start(context.Background())
	assert.Error(t, err)
}
