package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/obsidianstack/seedmonitor/server/internal/api"
	"github.com/obsidianstack/seedmonitor/server/internal/store"
)

const (
	writeWait = 10 * time.Second
	// readIdle is how long a connection may stay silent, pongs included.
	readIdle = 60 * time.Second
	// pingEvery must stay below readIdle.
	pingEvery = readIdle * 9 / 10
	// queueDepth is the number of reports buffered per subscriber before it
	// is considered too slow and dropped.
	queueDepth = 16
	// maxInbound caps frames read from clients; they have nothing to say.
	maxInbound = 512
)

// EventReport is the event name of every message sent to clients.
const EventReport = "report"

// Message is the JSON envelope sent to clients.
type Message struct {
	Event string               `json:"event"`
	Data  api.SnapshotResponse `json:"data"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Hub fans the latest report out to WebSocket subscribers, right after each
// report pass and again every interval.
//
// Every write to a subscriber queue and every close of one happens under mu,
// so a queue is never written after it was closed.
type Hub struct {
	reports  api.ReportSource
	store    *store.Store
	interval time.Duration

	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	closed bool
}

type subscriber struct {
	conn  *websocket.Conn
	queue chan []byte
}

// New creates a Hub that reads reports from src and rebroadcasts them every
// interval. st supplies per-node last-seen times and may be nil.
func New(src api.ReportSource, st *store.Store, interval time.Duration) *Hub {
	return &Hub{
		reports:  src,
		store:    st,
		interval: interval,
		subs:     make(map[*subscriber]struct{}),
	}
}

// Run rebroadcasts every interval until ctx is cancelled, then disconnects
// every subscriber and refuses new ones.
func (h *Hub) Run(ctx context.Context) {
	t := time.NewTicker(h.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case <-t.C:
			h.Publish()
		}
	}
}

// Publish sends the latest report to every subscriber without blocking.
// Subscribers whose queue is full are dropped.
func (h *Hub) Publish() {
	msg, err := h.encode()
	if err != nil {
		slog.Error("ws: encode report", "err", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		select {
		case s.queue <- msg:
		default:
			slog.Warn("ws: dropping slow subscriber", "remote", remoteAddr(s))
			h.removeLocked(s)
		}
	}
}

// Count returns the number of connected subscribers.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// ServeHTTP upgrades the request, queues the latest report for the new
// subscriber and serves it until the connection ends.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return // the upgrader already answered
	}

	s := &subscriber{conn: conn, queue: make(chan []byte, queueDepth)}
	if msg, err := h.encode(); err == nil {
		s.queue <- msg // not yet shared, the queue is empty
	}
	if !h.add(s) {
		conn.Close()
		return
	}
	defer h.remove(s)

	go s.writeLoop()
	s.readLoop()
}

func (h *Hub) add(s *subscriber) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.subs[s] = struct{}{}
	return true
}

func (h *Hub) remove(s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(s)
}

// removeLocked closes the queue of s once. Callers hold h.mu.
func (h *Hub) removeLocked(s *subscriber) {
	if _, ok := h.subs[s]; !ok {
		return
	}
	delete(h.subs, s)
	close(s.queue)
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for s := range h.subs {
		h.removeLocked(s)
	}
}

func (h *Hub) encode() ([]byte, error) {
	return json.Marshal(Message{
		Event: EventReport,
		Data:  api.BuildSnapshot(h.reports.Latest(), h.store),
	})
}

func remoteAddr(s *subscriber) string {
	if s.conn == nil {
		return ""
	}
	return s.conn.RemoteAddr().String()
}

// writeLoop drains the queue and keeps the connection alive with pings. A
// closed queue ends the connection with a close frame.
func (s *subscriber) writeLoop() {
	ping := time.NewTicker(pingEvery)
	defer func() {
		ping.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-s.queue:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, nil) //nolint:errcheck
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ping.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop discards inbound frames and returns once the peer is gone or
// stops answering pings.
func (s *subscriber) readLoop() {
	defer s.conn.Close()
	s.conn.SetReadLimit(maxInbound)
	s.conn.SetReadDeadline(time.Now().Add(readIdle)) //nolint:errcheck
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(readIdle))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}
