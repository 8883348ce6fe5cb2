package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/livemd/internal/logging"
	"github.com/conneroisu/livemd/internal/pathmap"
	"github.com/conneroisu/livemd/internal/render"
	"github.com/conneroisu/livemd/internal/store"
	"github.com/conneroisu/livemd/internal/watcher"
)

// recordingPublisher captures published reload signals.
type recordingPublisher struct {
	mu      sync.Mutex
	signals []Reload
}

func (p *recordingPublisher) Publish(r Reload) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signals = append(p.signals, r)
}

func (p *recordingPublisher) all() []Reload {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Reload(nil), p.signals...)
}

type fixture struct {
	root      string
	store     *store.Store
	publisher *recordingPublisher
	coord     *Coordinator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	root := t.TempDir()
	mapper, err := pathmap.NewMapper(root)
	require.NoError(t, err)

	st := store.New()
	publisher := &recordingPublisher{}
	coord := New(mapper, render.NewRenderer(mapper), st, publisher, logging.NewNop())

	return &fixture{root: root, store: st, publisher: publisher, coord: coord}
}

func (f *fixture) write(t *testing.T, rel, content string) {
	t.Helper()
	target := filepath.Join(f.root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(target), 0o755))
	require.NoError(t, os.WriteFile(target, []byte(content), 0o644))
}

// settle waits for all queued work to drain.
func (f *fixture) settle(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool {
		f.coord.mu.Lock()
		defer f.coord.mu.Unlock()
		return len(f.coord.queues) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRenderAll(t *testing.T) {
	f := newFixture(t)
	f.write(t, "a.md", "# A\n\n[b](b.md)")
	f.write(t, "b.md", "# B")
	f.write(t, "img/logo.png", "not really a png")
	f.write(t, ".hidden/secret.md", "# nope")

	require.NoError(t, f.coord.RenderAll())

	a, ok := f.store.Get("a.html")
	require.True(t, ok)
	assert.Equal(t, store.KindHTML, a.Kind)
	assert.Contains(t, string(a.Bytes), `href="b.html"`)

	_, ok = f.store.Get("b.html")
	assert.True(t, ok)

	logo, ok := f.store.Get("img/logo.png")
	require.True(t, ok)
	assert.Equal(t, store.KindAsset, logo.Kind)
	assert.Equal(t, "not really a png", string(logo.Bytes))

	index, ok := f.store.Get("index.html")
	require.True(t, ok)
	assert.Contains(t, string(index.Bytes), `href="a.html"`)
	assert.Contains(t, string(index.Bytes), `href="b.html"`)
	assert.NotContains(t, string(index.Bytes), "logo.png")

	_, ok = f.store.Get(".hidden/secret.html")
	assert.False(t, ok)

	// Startup rendering publishes nothing.
	assert.Empty(t, f.publisher.all())
}

func TestModifiedPublishesAfterPut(t *testing.T) {
	f := newFixture(t)
	f.write(t, "a.md", "first draft")
	require.NoError(t, f.coord.RenderAll())

	f.write(t, "a.md", "second draft")
	f.coord.dispatch("a.md", watcher.KindModified)
	f.settle(t)

	signals := f.publisher.all()
	require.Len(t, signals, 1)
	assert.Equal(t, "a.html", signals[0].Path)

	a, ok := f.store.Get("a.html")
	require.True(t, ok)
	assert.Contains(t, string(a.Bytes), "second draft")
	assert.Equal(t, int64(2), a.Version)
}

// The reload signal must never be observable before the updated artifact:
// a publisher that reads the store at publish time always sees the new
// bytes.
func TestPublishNeverPrecedesPut(t *testing.T) {
	root := t.TempDir()
	mapper, err := pathmap.NewMapper(root)
	require.NoError(t, err)
	st := store.New()

	var violations int
	var revision int
	observer := PublisherFunc(func(r Reload) {
		artifact, ok := st.Get("a.html")
		if !ok || !strings.Contains(string(artifact.Bytes), fmt.Sprintf("rev %d", revision)) {
			violations++
		}
	})

	coord := New(mapper, render.NewRenderer(mapper), st, observer, logging.NewNop())

	for i := 1; i <= 20; i++ {
		revision = i
		require.NoError(t, os.WriteFile(filepath.Join(root, "a.md"), []byte(fmt.Sprintf("rev %d", i)), 0o644))
		coord.process("a.md", watcher.KindModified)
	}

	assert.Zero(t, violations)
}

func TestRemoved(t *testing.T) {
	f := newFixture(t)
	f.write(t, "a.md", "going away")
	f.write(t, "b.md", "staying")
	require.NoError(t, f.coord.RenderAll())

	require.NoError(t, os.Remove(filepath.Join(f.root, "a.md")))
	f.coord.dispatch("a.md", watcher.KindRemoved)
	f.settle(t)

	_, ok := f.store.Get("a.html")
	assert.False(t, ok)

	signals := f.publisher.all()
	require.Len(t, signals, 1)
	assert.Empty(t, signals[0].Path, "removal publishes a full reload")

	index, ok := f.store.Get("index.html")
	require.True(t, ok)
	assert.NotContains(t, string(index.Bytes), `href="a.html"`)
	assert.Contains(t, string(index.Bytes), `href="b.html"`)
}

func TestRenderFailureKeepsLastGoodArtifact(t *testing.T) {
	f := newFixture(t)
	f.write(t, "a.md", "good content")
	require.NoError(t, f.coord.RenderAll())

	require.NoError(t, os.Remove(filepath.Join(f.root, "a.md")))
	f.coord.dispatch("a.md", watcher.KindModified)
	f.settle(t)

	a, ok := f.store.Get("a.html")
	require.True(t, ok, "last good artifact stays servable")
	assert.Contains(t, string(a.Bytes), "good content")
	assert.Empty(t, f.publisher.all(), "failed render publishes nothing")
}

func TestCreateRegeneratesIndex(t *testing.T) {
	f := newFixture(t)
	f.write(t, "a.md", "# A")
	require.NoError(t, f.coord.RenderAll())

	f.write(t, "fresh.md", "# Fresh")
	f.coord.dispatch("fresh.md", watcher.KindCreated)
	f.settle(t)

	index, ok := f.store.Get("index.html")
	require.True(t, ok)
	assert.Contains(t, string(index.Bytes), `href="fresh.html"`)
	assert.Contains(t, string(index.Bytes), "Fresh")
}

func TestPerPathOrdering(t *testing.T) {
	f := newFixture(t)
	f.write(t, "a.md", "rev 0")
	require.NoError(t, f.coord.RenderAll())

	// A burst of modifications followed by a removal must leave the store
	// in the removed state, never resurrect an earlier revision.
	for i := 1; i <= 10; i++ {
		f.write(t, "a.md", fmt.Sprintf("rev %d", i))
		f.coord.dispatch("a.md", watcher.KindModified)
	}
	require.NoError(t, os.Remove(filepath.Join(f.root, "a.md")))
	f.coord.dispatch("a.md", watcher.KindRemoved)
	f.settle(t)

	_, ok := f.store.Get("a.html")
	assert.False(t, ok)
}

func TestEventsOutsideRootDropped(t *testing.T) {
	f := newFixture(t)

	f.coord.handle(watcher.Event{Path: filepath.Join(os.TempDir(), "elsewhere.md"), Kind: watcher.KindModified})
	f.settle(t)

	assert.Empty(t, f.publisher.all())
	assert.Zero(t, f.store.Len())
}
