package server

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/conneroisu/livemd/internal/store"
	"github.com/conneroisu/livemd/internal/version"
)

// handleArtifact maps the request path to an output path and serves the
// current artifact bytes from the store.
func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	outputPath, ok := requestOutputPath(r.URL.Path)
	if !ok {
		http.Error(w, "Invalid path", http.StatusBadRequest)
		return
	}

	artifact, ok := s.store.Get(outputPath)
	if !ok {
		// A bare directory path names that directory's index.
		artifact, ok = s.store.Get(path.Join(outputPath, "index.html"))
	}
	if !ok {
		http.NotFound(w, r)
		return
	}

	etag := fmt.Sprintf(`"v%d"`, artifact.Version)
	if match := r.Header.Get("If-None-Match"); match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", contentType(artifact))
	w.Header().Set("ETag", etag)
	// Rendered pages must never be cached across reloads.
	w.Header().Set("Cache-Control", "no-cache")

	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}

	_, _ = w.Write(artifact.Bytes)
}

// requestOutputPath normalizes a URL path into a store key. Traversal
// segments are rejected rather than resolved.
func requestOutputPath(urlPath string) (string, bool) {
	trimmed := strings.TrimPrefix(urlPath, "/")
	if trimmed == "" {
		return "index.html", true
	}

	hadSlash := strings.HasSuffix(trimmed, "/")
	clean := path.Clean(trimmed)
	if clean == ".." || strings.HasPrefix(clean, "../") || path.IsAbs(clean) || clean == "." {
		return "", false
	}
	if clean != trimmed && !(hadSlash && clean == strings.TrimSuffix(trimmed, "/")) {
		// The request path needed rewriting to become safe; reject it
		// instead of guessing what the client meant.
		return "", false
	}

	if hadSlash {
		return path.Join(clean, "index.html"), true
	}

	return clean, true
}

func contentType(a *store.Artifact) string {
	if a.Kind == store.KindHTML {
		return "text/html; charset=utf-8"
	}

	if ct := mime.TypeByExtension(path.Ext(a.Path)); ct != "" {
		return ct
	}

	return http.DetectContentType(a.Bytes)
}

// handleHealth reports server liveness plus pipeline counters.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":    "healthy",
		"version":   version.GetShortVersion(),
		"artifacts": s.store.Len(),
		"clients":   s.ClientCount(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(health); err != nil {
		s.logger.Warn(r.Context(), err, "encoding health response")
	}
}
