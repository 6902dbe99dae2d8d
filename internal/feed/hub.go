package feed

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Subscriber is one websocket connection. ReportID narrows the stream to a
// single report and its history rows.
type Subscriber struct {
	UserID   string
	ReportID string
	conn     *websocket.Conn
	send     chan Delta
	hub      *Hub
}

func (s *Subscriber) wants(d Delta) bool {
	if s.ReportID == "" {
		return true
	}
	if d.Table == "reports" {
		return d.ID == s.ReportID
	}
	return d.ReportID == s.ReportID
}

// Hub applies deltas to its reducer and fans the ones that changed state out
// to subscribers. A subscriber whose buffer is full is dropped.
type Hub struct {
	reducer *Reducer
	logger  logrus.FieldLogger

	mu          sync.RWMutex
	subscribers map[*Subscriber]struct{}
}

func NewHub(reducer *Reducer, logger logrus.FieldLogger) *Hub {
	return &Hub{
		reducer:     reducer,
		logger:      logger.WithField("component", "feed_hub"),
		subscribers: make(map[*Subscriber]struct{}),
	}
}

func (h *Hub) Reducer() *Reducer {
	return h.reducer
}

// Publish returns false when the delta was a duplicate or stale.
func (h *Hub) Publish(d Delta) bool {
	if !h.reducer.Apply(d) {
		return false
	}

	h.mu.RLock()
	var slow []*Subscriber
	for s := range h.subscribers {
		if !s.wants(d) {
			continue
		}
		select {
		case s.send <- d:
		default:
			slow = append(slow, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range slow {
		h.logger.WithField("user_id", s.UserID).Warn("dropping slow feed subscriber")
		h.unregister(s)
	}
	return true
}

func (h *Hub) register(s *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subscribers[s] = struct{}{}
}

func (h *Hub) unregister(s *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subscribers[s]; ok {
		delete(h.subscribers, s)
		close(s.send)
	}
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subscribers {
		delete(h.subscribers, s)
		close(s.send)
	}
}

// ServeWS upgrades the request and streams deltas until the client goes away
// or ctx ends.
func (h *Hub) ServeWS(ctx context.Context, w http.ResponseWriter, r *http.Request, userID, reportID string) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	s := &Subscriber{
		UserID:   userID,
		ReportID: reportID,
		conn:     conn,
		send:     make(chan Delta, sendBuffer),
		hub:      h,
	}
	h.register(s)

	go s.writePump(ctx)
	go s.readPump()
	return nil
}

// readPump only handles control frames; subscribers never send data.
func (s *Subscriber) readPump() {
	defer func() {
		s.hub.unregister(s)
		_ = s.conn.Close()
	}()

	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.hub.logger.WithError(err).Debug("feed subscriber read failed")
			}
			return
		}
	}
}

func (s *Subscriber) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case d, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteJSON(d); err != nil {
				return
			}

		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-ctx.Done():
			s.hub.unregister(s)
			_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return
		}
	}
}
