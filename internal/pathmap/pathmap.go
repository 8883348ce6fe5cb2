// Package pathmap maps source document paths under the content root to the
// output paths they are served from, and back.
//
// Markdown documents map to an HTML output path by replacing the extension;
// README.md maps to index.html in its directory. Every other file maps
// identity and is served as a passthrough asset. All paths handled here are
// slash-separated and relative to the content root; anything that escapes
// the root is rejected before it reaches the renderer or the filesystem.
package pathmap

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/conneroisu/livemd/internal/errors"
)

// Mapper maps between source and output paths for one content root.
type Mapper struct {
	root string
}

// NewMapper creates a mapper for the given content root. The root is
// resolved to an absolute path once so Rel can normalize watcher paths.
func NewMapper(root string) (*Mapper, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.NewInvalidPath(root, "resolving content root").WithCause(err)
	}

	return &Mapper{root: abs}, nil
}

// Root returns the absolute content root.
func (m *Mapper) Root() string {
	return m.root
}

// Rel converts an absolute filesystem path (as delivered by the watcher)
// into a clean slash-separated path relative to the content root.
func (m *Mapper) Rel(absPath string) (string, error) {
	rel, err := filepath.Rel(m.root, absPath)
	if err != nil {
		return "", errors.NewInvalidPath(absPath, "outside content root").WithCause(err)
	}

	rel = filepath.ToSlash(rel)
	if escapes(rel) {
		return "", errors.NewInvalidPath(absPath, "outside content root")
	}

	return rel, nil
}

// Abs converts a root-relative source path back to a filesystem path.
func (m *Mapper) Abs(sourcePath string) (string, error) {
	clean, err := m.validate(sourcePath)
	if err != nil {
		return "", err
	}

	return filepath.Join(m.root, filepath.FromSlash(clean)), nil
}

// ToOutput maps a source path to the output path it is served from.
// Markdown becomes HTML (README.md becomes index.html); everything else
// maps identity.
func (m *Mapper) ToOutput(sourcePath string) (string, error) {
	clean, err := m.validate(sourcePath)
	if err != nil {
		return "", err
	}

	if !IsMarkdown(clean) {
		return clean, nil
	}

	dir := path.Dir(clean)
	if path.Base(clean) == "README.md" {
		return join(dir, "index.html"), nil
	}

	stem := strings.TrimSuffix(path.Base(clean), path.Ext(clean))
	return join(dir, stem+".html"), nil
}

// ToSource is the best-effort inverse of ToOutput for markdown outputs.
// index.html names README.md, other .html files name the matching .md
// document, and asset paths map identity. Returns ok=false for paths that
// cannot name a source.
func (m *Mapper) ToSource(outputPath string) (string, bool) {
	clean, err := m.validate(outputPath)
	if err != nil {
		return "", false
	}

	if path.Ext(clean) != ".html" {
		return clean, true
	}

	dir := path.Dir(clean)
	if path.Base(clean) == "index.html" {
		return join(dir, "README.md"), true
	}

	stem := strings.TrimSuffix(path.Base(clean), ".html")
	if stem == "" {
		return "", false
	}

	return join(dir, stem+".md"), true
}

// IsMarkdown reports whether path names a markdown document.
func IsMarkdown(p string) bool {
	switch strings.ToLower(path.Ext(p)) {
	case ".md", ".markdown":
		return true
	}

	return false
}

// validate cleans a root-relative path and rejects traversal escapes.
func (m *Mapper) validate(p string) (string, error) {
	if p == "" {
		return "", errors.NewInvalidPath(p, "empty path")
	}

	clean := path.Clean(filepath.ToSlash(p))
	if path.IsAbs(clean) || escapes(clean) {
		return "", errors.NewInvalidPath(p, "escapes content root")
	}

	return clean, nil
}

func escapes(clean string) bool {
	return clean == ".." || strings.HasPrefix(clean, "../")
}

func join(dir, name string) string {
	if dir == "." {
		return name
	}

	return path.Join(dir, name)
}
