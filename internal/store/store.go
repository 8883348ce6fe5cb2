// Package store holds the most recently rendered artifacts.
//
// The store is the single source of truth the HTTP layer reads from.
// Writes swap complete artifacts under the store lock, so a reader sees
// either the previous complete version or the new one, never a mix.
// Versions are per-path and strictly increasing, which lets downstream
// consumers detect staleness without timestamps.
package store

import (
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// Kind classifies an artifact's content.
type Kind int

const (
	KindHTML Kind = iota
	KindAsset
)

// String returns the string representation of the Kind
func (k Kind) String() string {
	switch k {
	case KindHTML:
		return "html"
	case KindAsset:
		return "asset"
	default:
		return "unknown"
	}
}

// Artifact is one servable unit of rendered or copied content.
type Artifact struct {
	Path      string
	Bytes     []byte
	Version   int64
	Kind      Kind
	UpdatedAt time.Time
}

// Store is an in-memory map from output path to the latest Artifact.
type Store struct {
	mu        sync.RWMutex
	artifacts map[string]*Artifact
	versions  map[string]int64
}

// New creates an empty store.
func New() *Store {
	return &Store{
		artifacts: make(map[string]*Artifact),
		versions:  make(map[string]int64),
	}
}

// Get retrieves the current artifact for an output path.
func (s *Store) Get(outputPath string) (*Artifact, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	artifact, ok := s.artifacts[outputPath]
	return artifact, ok
}

// Put replaces the artifact at outputPath with a new complete version and
// returns the new version number. Version counters survive removal so a
// re-created path never regresses.
func (s *Store) Put(outputPath string, data []byte, kind Kind) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	version := s.versions[outputPath] + 1
	s.versions[outputPath] = version

	s.artifacts[outputPath] = &Artifact{
		Path:      outputPath,
		Bytes:     data,
		Version:   version,
		Kind:      kind,
		UpdatedAt: time.Now(),
	}

	return version
}

// Remove deletes the artifact at outputPath. Subsequent Gets report
// absence. Reports whether anything was removed.
func (s *Store) Remove(outputPath string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.artifacts[outputPath]; !ok {
		return false
	}
	delete(s.artifacts, outputPath)

	return true
}

// List returns every stored output path, sorted. Consumed by the index
// generator.
func (s *Store) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	paths := make([]string, 0, len(s.artifacts))
	for p := range s.artifacts {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	return paths
}

// Len returns the number of stored artifacts.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.artifacts)
}

// WriteTo persists every artifact under dir, preserving the output tree.
// This is the disk-backed mode used by one-shot builds.
func (s *Store) WriteTo(dir string) error {
	s.mu.RLock()
	artifacts := make([]*Artifact, 0, len(s.artifacts))
	for _, a := range s.artifacts {
		artifacts = append(artifacts, a)
	}
	s.mu.RUnlock()

	for _, a := range artifacts {
		target := filepath.Join(dir, filepath.FromSlash(a.Path))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(target, a.Bytes, 0o644); err != nil {
			return err
		}
	}

	return nil
}
