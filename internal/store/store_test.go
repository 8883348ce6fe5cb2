package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutGet(t *testing.T) {
	s := New()

	version := s.Put("a.html", []byte("<p>one</p>"), KindHTML)
	assert.Equal(t, int64(1), version)

	artifact, ok := s.Get("a.html")
	require.True(t, ok)
	assert.Equal(t, "a.html", artifact.Path)
	assert.Equal(t, []byte("<p>one</p>"), artifact.Bytes)
	assert.Equal(t, int64(1), artifact.Version)
	assert.Equal(t, KindHTML, artifact.Kind)

	_, ok = s.Get("missing.html")
	assert.False(t, ok)
}

func TestVersionsStrictlyIncrease(t *testing.T) {
	s := New()

	var last int64
	for i := 0; i < 10; i++ {
		v := s.Put("a.html", []byte(fmt.Sprintf("rev %d", i)), KindHTML)
		assert.Greater(t, v, last)
		last = v
	}

	artifact, ok := s.Get("a.html")
	require.True(t, ok)
	assert.Equal(t, last, artifact.Version)
	assert.Equal(t, []byte("rev 9"), artifact.Bytes)
}

func TestVersionSurvivesRemove(t *testing.T) {
	s := New()

	v1 := s.Put("a.html", []byte("one"), KindHTML)
	require.True(t, s.Remove("a.html"))

	_, ok := s.Get("a.html")
	assert.False(t, ok)

	v2 := s.Put("a.html", []byte("two"), KindHTML)
	assert.Greater(t, v2, v1)
}

func TestRemoveMissing(t *testing.T) {
	s := New()
	assert.False(t, s.Remove("never-stored.html"))
}

func TestList(t *testing.T) {
	s := New()
	s.Put("b.html", nil, KindHTML)
	s.Put("a.html", nil, KindHTML)
	s.Put("sub/c.png", nil, KindAsset)

	assert.Equal(t, []string{"a.html", "b.html", "sub/c.png"}, s.List())
	assert.Equal(t, 3, s.Len())
}

// Readers racing a writer must always observe a complete artifact whose
// bytes match its version, never a mix of two writes.
func TestConcurrentReadersSeeCompleteArtifacts(t *testing.T) {
	s := New()
	s.Put("a.html", []byte("version 1"), KindHTML)

	const writes = 200
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 2; i <= writes; i++ {
			s.Put("a.html", []byte(fmt.Sprintf("version %d", i)), KindHTML)
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var lastSeen int64
			for i := 0; i < writes; i++ {
				artifact, ok := s.Get("a.html")
				if !ok {
					t.Error("artifact vanished mid-race")
					return
				}
				if artifact.Version < lastSeen {
					t.Errorf("version went backwards: %d after %d", artifact.Version, lastSeen)
					return
				}
				lastSeen = artifact.Version
				expected := fmt.Sprintf("version %d", artifact.Version)
				if string(artifact.Bytes) != expected {
					t.Errorf("torn read: version %d with bytes %q", artifact.Version, artifact.Bytes)
					return
				}
			}
		}()
	}

	wg.Wait()
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "html", KindHTML.String())
	assert.Equal(t, "asset", KindAsset.String())
	assert.Equal(t, "unknown", Kind(42).String())
}

func TestWriteTo(t *testing.T) {
	s := New()
	s.Put("index.html", []byte("<html>index</html>"), KindHTML)
	s.Put("sub/page.html", []byte("<html>page</html>"), KindHTML)
	s.Put("img/logo.png", []byte{0x89, 0x50}, KindAsset)

	dir := t.TempDir()
	require.NoError(t, s.WriteTo(dir))

	data, err := os.ReadFile(filepath.Join(dir, "index.html"))
	require.NoError(t, err)
	assert.Equal(t, "<html>index</html>", string(data))

	data, err = os.ReadFile(filepath.Join(dir, "sub", "page.html"))
	require.NoError(t, err)
	assert.Equal(t, "<html>page</html>", string(data))

	data, err = os.ReadFile(filepath.Join(dir, "img", "logo.png"))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x89, 0x50}, data)
}
