package api

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/banshee-data/motion.report/internal/events"
	"github.com/banshee-data/motion.report/internal/monitoring"
)

// videoSeekTopic is the outbound-only event telling the browser player
// to seek. It never crosses the internal bus.
const videoSeekTopic events.Topic = "video-seek"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Local analysis tool; the browser UI is served from the same host.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsHub fans internal events out to connected WebSocket clients.
type wsHub struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]bool
}

func newWSHub() *wsHub {
	return &wsHub{conns: make(map[*websocket.Conn]bool)}
}

func (h *wsHub) add(c *websocket.Conn) {
	h.mu.Lock()
	h.conns[c] = true
	h.mu.Unlock()
}

func (h *wsHub) remove(c *websocket.Conn) {
	h.mu.Lock()
	delete(h.conns, c)
	h.mu.Unlock()
	_ = c.Close()
}

// broadcast sends an event to every client, dropping clients whose
// writes fail.
func (h *wsHub) broadcast(ev events.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.conns {
		if err := c.WriteJSON(ev); err != nil {
			monitoring.Logf("[WS] dropping client: %v", err)
			delete(h.conns, c)
			_ = c.Close()
		}
	}
}

// SeekVideo implements timesync.VideoSeeker by telling connected
// browsers to move the video playhead.
func (h *wsHub) SeekVideo(seconds float64) {
	h.broadcast(events.Event{
		Topic: videoSeekTopic,
		Data:  map[string]interface{}{"video_time": seconds},
	})
}

// wsClientMessage is an inbound control message from the browser.
type wsClientMessage struct {
	Action string  `json:"action"`
	T      float64 `json:"t"`
}

// handleWS upgrades to a WebSocket, streams every internal event to the
// client, and accepts video_time / set_cursor control messages.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		monitoring.Logf("[WS] upgrade failed: %v", err)
		return
	}
	s.hub.add(conn)

	for {
		var msg wsClientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			s.hub.remove(conn)
			return
		}
		switch msg.Action {
		case "video_time":
			s.sync.OnVideoTimeUpdate(msg.T)
		case "set_cursor":
			s.sync.SetCursor(msg.T)
		default:
			monitoring.Logf("[WS] unknown action %q", msg.Action)
		}
	}
}
