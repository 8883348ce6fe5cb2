package server

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/coder/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Send pings to the peer with this period.
	pingPeriod = 30 * time.Second

	// Maximum message size allowed from the peer. Clients never send
	// anything meaningful; this bounds abuse.
	maxMessageSize = 512
)

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !s.checkOrigin(r) {
		http.Error(w, "Origin not allowed", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: false,
	})
	if err != nil {
		s.logger.Warn(r.Context(), err, "websocket upgrade failed")
		return
	}

	c := &client{
		conn:   conn,
		send:   make(chan []byte, 16),
		server: s,
	}

	go c.writePump()
	go c.readPump()

	s.register <- c
}

// checkOrigin restricts reload subscriptions to pages served by this
// server. Browsers always send Origin on WebSocket upgrades; requests
// without one (curl, tests) are local tooling and allowed through.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if originURL.Scheme != "http" && originURL.Scheme != "https" {
		return false
	}

	allowed := []string{
		s.cfg.Addr(),
		fmt.Sprintf("localhost:%d", s.cfg.Server.Port),
		fmt.Sprintf("127.0.0.1:%d", s.cfg.Server.Port),
	}
	for _, host := range allowed {
		if originURL.Host == host {
			return true
		}
	}

	return false
}

// runHub owns the subscriber set. Register, unregister, and broadcast all
// flow through here so no two goroutines touch the set concurrently.
func (s *Server) runHub(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case c := <-s.register:
			s.clientsMu.Lock()
			s.clients[c.conn] = c
			total := len(s.clients)
			s.clientsMu.Unlock()
			s.logger.Debug(ctx, "client connected", "total", total)

		case conn := <-s.unregister:
			s.clientsMu.Lock()
			if c, ok := s.clients[conn]; ok {
				delete(s.clients, conn)
				close(c.send)
				_ = conn.Close(websocket.StatusNormalClosure, "")
			}
			total := len(s.clients)
			s.clientsMu.Unlock()
			s.logger.Debug(ctx, "client disconnected", "total", total)

		case message := <-s.broadcast:
			// A slow or dead client is dropped rather than holding up the
			// broadcast to everyone else.
			var failed []*websocket.Conn
			s.clientsMu.RLock()
			for conn, c := range s.clients {
				select {
				case c.send <- message:
				default:
					failed = append(failed, conn)
				}
			}
			s.clientsMu.RUnlock()

			if len(failed) > 0 {
				s.clientsMu.Lock()
				for _, conn := range failed {
					if c, ok := s.clients[conn]; ok {
						delete(s.clients, conn)
						close(c.send)
						_ = conn.Close(websocket.StatusNormalClosure, "")
					}
				}
				s.clientsMu.Unlock()
			}
		}
	}
}

// readPump discards inbound frames and unregisters the client when the
// connection drops.
func (c *client) readPump() {
	defer func() {
		c.server.unregister <- c.conn
	}()

	c.conn.SetReadLimit(maxMessageSize)

	ctx := context.Background()
	for {
		if _, _, err := c.conn.Read(ctx); err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure &&
				websocket.CloseStatus(err) != websocket.StatusGoingAway {
				c.server.logger.Debug(ctx, "websocket read ended", "error", err.Error())
			}
			return
		}
	}
}

// writePump delivers reload messages and keepalive pings.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	ctx := context.Background()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				return
			}

			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Write(writeCtx, websocket.MessageText, message)
			cancel()
			if err != nil {
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
