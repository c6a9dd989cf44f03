package notify

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"battleship-rampage/internal/game"
)

const (
	EventShot = "shot"
	EventGame = "game"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 16
)

// Event tells subscribers that a game changed. Clients re-fetch their view;
// the payload is only a hint.
type Event struct {
	Type   string     `json:"type"`
	GameID string     `json:"gameId"`
	State  game.State `json:"state,omitempty"`
	Shot   *game.Shot `json:"shot,omitempty"`
	Turn   string     `json:"currentTurn,omitempty"`
	At     time.Time  `json:"at"`
}

type subscriber struct {
	conn *websocket.Conn
	send chan Event
}

// Hub fans game events out to websocket subscribers, grouped by game id.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[*subscriber]struct{}
	log  zerolog.Logger

	upgrader websocket.Upgrader
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		subs: make(map[string]map[*subscriber]struct{}),
		log:  log.With().Str("component", "notify").Logger(),
		upgrader: websocket.Upgrader{
			// the API is served with permissive CORS as well
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Publish delivers ev to every subscriber of ev.GameID without blocking.
// A subscriber whose buffer is full misses the event.
func (h *Hub) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs[ev.GameID] {
		select {
		case s.send <- ev:
		default:
			h.log.Warn().Str("game", ev.GameID).Msg("subscriber too slow, event dropped")
		}
	}
}

// Subscribers reports how many connections follow gameID.
func (h *Hub) Subscribers(gameID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[gameID])
}

// ServeWS upgrades the request and streams gameID's events until the client
// goes away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, gameID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug().Err(err).Msg("upgrade")
		return
	}
	s := &subscriber{conn: conn, send: make(chan Event, sendBuffer)}
	h.add(gameID, s)

	go h.writeLoop(s)
	h.readLoop(gameID, s)
}

func (h *Hub) add(gameID string, s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[gameID]
	if !ok {
		set = make(map[*subscriber]struct{})
		h.subs[gameID] = set
	}
	set[s] = struct{}{}
}

func (h *Hub) remove(gameID string, s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.subs[gameID]
	if _, ok := set[s]; !ok {
		return
	}
	delete(set, s)
	if len(set) == 0 {
		delete(h.subs, gameID)
	}
	close(s.send)
}

// readLoop discards client frames; it exists to notice close and to answer
// pings.
func (h *Hub) readLoop(gameID string, s *subscriber) {
	defer func() {
		h.remove(gameID, s)
		_ = s.conn.Close()
	}()
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug().Err(err).Str("game", gameID).Msg("read")
			}
			return
		}
	}
}

func (h *Hub) writeLoop(s *subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()
	for {
		select {
		case ev, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
