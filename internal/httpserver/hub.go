// apps/go-server/internal/httpserver/hub.go
//
// Live leaderboard feed over websockets.
// Responsibilities:
//   - GET /tables/{tableID}/leaderboard/ws upgrades and subscribes the client
//     to that table.
//   - The current top entries are sent on connect, then again whenever the
//     table's leaderboard improves (Hub implements leaderboard.Notifier).
//
// Notes:
//   - Delivery is best-effort: a subscriber whose buffer is full misses that
//     update rather than slowing down the publisher.
//   - Clients are not expected to send anything; reads only service
//     pongs and close frames.

package httpserver

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/robalobadob/darts/apps/go-server/internal/leaderboard"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 512
	sendBuffer     = 8
)

// feedMessage is what subscribers receive.
type feedMessage struct {
	Type    string              `json:"type"` // "leaderboard"
	TableID string              `json:"tableId"`
	Top     []leaderboard.Entry `json:"top"`
}

type subscriber struct {
	table string
	send  chan []byte
}

// Hub fans leaderboard updates out to websocket subscribers, per table.
type Hub struct {
	mu       sync.RWMutex
	tables   map[string]map[*subscriber]struct{}
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

// NewHub creates an empty hub. allowedOrigin restricts browser upgrades; an
// empty value accepts any origin.
func NewHub(allowedOrigin string, logger zerolog.Logger) *Hub {
	return &Hub{
		tables: make(map[string]map[*subscriber]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				o := r.Header.Get("Origin")
				return allowedOrigin == "" || o == "" || o == allowedOrigin
			},
		},
		log: logger.With().Str("component", "hub").Logger(),
	}
}

// LeaderboardChanged broadcasts top to every subscriber of tableID.
func (h *Hub) LeaderboardChanged(tableID string, top []leaderboard.Entry) {
	msg, ok := h.encode(tableID, top)
	if !ok {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.tables[tableID] {
		select {
		case sub.send <- msg:
		default:
			h.log.Debug().Str("table", tableID).Msg("subscriber buffer full, dropping update")
		}
	}
}

// encode builds a feed frame. Failures are logged and the frame skipped.
func (h *Hub) encode(tableID string, top []leaderboard.Entry) ([]byte, bool) {
	if top == nil {
		top = []leaderboard.Entry{}
	}
	msg, err := json.Marshal(feedMessage{Type: "leaderboard", TableID: tableID, Top: top})
	if err != nil {
		h.log.Error().Err(err).Str("table", tableID).Msg("encode leaderboard feed")
		return nil, false
	}
	return msg, true
}

// Subscribers reports how many clients are watching tableID.
func (h *Hub) Subscribers(tableID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.tables[tableID])
}

func (h *Hub) register(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.tables[sub.table]
	if !ok {
		set = make(map[*subscriber]struct{})
		h.tables[sub.table] = set
	}
	set[sub] = struct{}{}
}

func (h *Hub) unregister(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.tables[sub.table]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(h.tables, sub.table)
		}
	}
}

// handleLeaderboardWS upgrades the request and streams the table's leaderboard.
func (s *Server) handleLeaderboardWS(w http.ResponseWriter, r *http.Request) {
	tableID := chi.URLParam(r, "tableID")
	top, err := s.lb.Top(r.Context(), tableID, s.opts.LeaderboardSize)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		writeErr(w, http.StatusServiceUnavailable, "store_unavailable", "storage is temporarily unavailable")
		return
	}
	conn, err := s.hub.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error.
		s.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	sub := &subscriber{table: tableID, send: make(chan []byte, sendBuffer)}
	if first, ok := s.hub.encode(tableID, top); ok {
		sub.send <- first
	}
	s.hub.register(sub)

	done := make(chan struct{})
	go s.hub.writePump(conn, sub, done)
	s.hub.readPump(conn)

	s.hub.unregister(sub)
	close(done)
}

// readPump discards client frames until the connection closes.
func (h *Hub) readPump(conn *websocket.Conn) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug().Err(err).Msg("websocket read")
			}
			return
		}
	}
}

// writePump delivers queued updates and keeps the connection alive.
func (h *Hub) writePump(conn *websocket.Conn, sub *subscriber, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case msg := <-sub.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
