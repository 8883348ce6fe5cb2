// Package server serves rendered artifacts over HTTP and pushes reload
// signals to connected browsers over WebSocket.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/conneroisu/livemd/internal/config"
	"github.com/conneroisu/livemd/internal/logging"
	"github.com/conneroisu/livemd/internal/pathmap"
	"github.com/conneroisu/livemd/internal/pipeline"
	"github.com/conneroisu/livemd/internal/render"
	"github.com/conneroisu/livemd/internal/store"
	"github.com/conneroisu/livemd/internal/watcher"
)

// client represents one connected browser tab.
type client struct {
	conn   *websocket.Conn
	send   chan []byte
	server *Server
}

// Server wires the pipeline to HTTP and owns the reload hub.
type Server struct {
	cfg    *config.Config
	logger logging.Logger

	mapper      *pathmap.Mapper
	store       *store.Store
	watcher     *watcher.Watcher
	coordinator *pipeline.Coordinator

	httpServer *http.Server
	serverMu   sync.RWMutex

	clients    map[*websocket.Conn]*client
	clientsMu  sync.RWMutex
	register   chan *client
	unregister chan *websocket.Conn
	broadcast  chan []byte

	shutdownOnce sync.Once
}

// UpdateMessage is the JSON payload pushed to the browser.
type UpdateMessage struct {
	Type      string    `json:"type"`
	Target    string    `json:"target,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// New creates a server with its full pipeline behind it.
func New(cfg *config.Config, logger logging.Logger) (*Server, error) {
	mapper, err := pathmap.NewMapper(cfg.ContentDir)
	if err != nil {
		return nil, fmt.Errorf("creating path mapper: %w", err)
	}

	fileWatcher, err := watcher.New(cfg.ContentDir, cfg.Watch.Debounce, logger)
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	s := &Server{
		cfg:        cfg,
		logger:     logger.WithComponent("server"),
		mapper:     mapper,
		store:      store.New(),
		watcher:    fileWatcher,
		clients:    make(map[*websocket.Conn]*client),
		register:   make(chan *client),
		unregister: make(chan *websocket.Conn),
		broadcast:  make(chan []byte, 16),
	}

	s.coordinator = pipeline.New(mapper, render.NewRenderer(mapper), s.store, s, logger)

	return s, nil
}

// Store exposes the artifact store, for the health endpoint and tests.
func (s *Server) Store() *store.Store {
	return s.store
}

// Publish implements pipeline.Publisher: it fans the reload signal out to
// every connected browser. The pipeline only calls this after the store
// update is visible.
func (s *Server) Publish(r pipeline.Reload) {
	msg := UpdateMessage{
		Type:      "reload",
		Target:    r.Path,
		Timestamp: time.Now(),
	}
	if r.Path == "" {
		msg.Type = "full_reload"
	}

	data, err := json.Marshal(msg)
	if err != nil {
		data = []byte(`{"type":"full_reload"}`)
	}

	s.broadcast <- data
}

// Start renders the initial artifact set, starts the watcher, pipeline,
// and reload hub, and serves HTTP until shutdown or a fatal watch error.
func (s *Server) Start(ctx context.Context) error {
	if err := s.coordinator.RenderAll(); err != nil {
		return fmt.Errorf("initial render: %w", err)
	}

	if err := s.watcher.Start(ctx); err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}

	go s.runHub(ctx)

	pipeErr := make(chan error, 1)
	go func() {
		pipeErr <- s.coordinator.Run(ctx, s.watcher)
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/", s.handleArtifact)

	s.serverMu.Lock()
	s.httpServer = &http.Server{
		Addr:    s.cfg.Addr(),
		Handler: s.withMiddleware(mux),
	}
	server := s.httpServer
	s.serverMu.Unlock()

	if s.cfg.Server.Open {
		go s.openBrowser(s.cfg.URL())
	}

	s.logger.Info(ctx, "serving", "addr", s.cfg.Addr(), "content", s.mapper.Root())

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	for {
		select {
		case err := <-pipeErr:
			pipeErr = nil
			if err != nil {
				// Fatal watch failure: stale output with no updates is
				// worse than a visible crash.
				_ = s.Shutdown(context.Background())
				return fmt.Errorf("pipeline failed: %w", err)
			}

		case err := <-serveErr:
			if err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		}
	}
}

// Shutdown tears everything down: watcher first so no new renders start,
// then client connections, then the HTTP listener.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.logger.Info(ctx, "shutting down")

		if err := s.watcher.Stop(); err != nil {
			s.logger.Warn(ctx, err, "stopping watcher")
		}

		s.clientsMu.Lock()
		for conn, c := range s.clients {
			close(c.send)
			_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		}
		s.clients = make(map[*websocket.Conn]*client)
		s.clientsMu.Unlock()

		s.serverMu.RLock()
		server := s.httpServer
		s.serverMu.RUnlock()

		if server != nil {
			shutdownErr = server.Shutdown(ctx)
		}
	})

	return shutdownErr
}

// ClientCount returns the number of connected browser tabs.
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	return len(s.clients)
}

// withMiddleware adds request logging and a method guard. The tool only
// ever serves reads.
func (s *Server) withMiddleware(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		start := time.Now()
		handler.ServeHTTP(w, r)
		s.logger.Debug(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start).String(),
		)
	})
}

func (s *Server) openBrowser(url string) {
	// Give the listener a moment to come up.
	time.Sleep(100 * time.Millisecond)

	if !strings.HasPrefix(url, "http://127.0.0.1") && !strings.HasPrefix(url, "http://localhost") {
		s.logger.Warn(context.Background(), nil, "refusing to open non-local url", "url", url)
		return
	}

	var err error
	switch runtime.GOOS {
	case "linux":
		err = exec.Command("xdg-open", url).Start()
	case "windows":
		err = exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	case "darwin":
		err = exec.Command("open", url).Start()
	default:
		err = fmt.Errorf("unsupported platform")
	}

	if err != nil {
		s.logger.Warn(context.Background(), err, "failed to open browser")
	}
}
