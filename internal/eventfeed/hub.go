// Package eventfeed broadcasts ledger events to WebSocket subscribers.
// Calling layers use it to detect operation completion without polling.
package eventfeed

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"token-forge/internal/domain"
	"token-forge/internal/observability"
)

const (
	writeTimeout  = 10 * time.Second
	sendQueueSize = 64
)

// Hub fans ledger events out to connected subscribers. Publish never
// blocks: a subscriber whose queue is full loses the frame.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *log.Logger

	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	closed bool
}

type subscriber struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
}

// NewHub creates an empty hub.
func NewHub(logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.Default()
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
		subs:   make(map[*subscriber]struct{}),
	}
}

// ServeHTTP upgrades the request and streams event frames until the
// client disconnects or the hub closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("feed upgrade: %v", err)
		return
	}

	sub := &subscriber{
		conn: conn,
		send: make(chan []byte, sendQueueSize),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.subs[sub] = struct{}{}
	count := len(h.subs)
	h.mu.Unlock()
	observability.SetFeedSubscribers(count)

	go h.readLoop(sub)
	h.writeLoop(sub)
}

// Publish marshals the event and fans it out to every subscriber.
func (h *Hub) Publish(ev domain.Event) {
	frame, err := json.Marshal(domain.NewEventRecord(ev))
	if err != nil {
		h.logger.Printf("feed marshal: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		select {
		case sub.send <- frame:
			observability.RecordFeedFrame(false)
		default:
			observability.RecordFeedFrame(true)
		}
	}
}

// Close disconnects every subscriber and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	subs := make([]*subscriber, 0, len(h.subs))
	for sub := range h.subs {
		subs = append(subs, sub)
	}
	h.subs = make(map[*subscriber]struct{})
	h.mu.Unlock()
	observability.SetFeedSubscribers(0)

	for _, sub := range subs {
		close(sub.done)
		sub.conn.Close()
	}
}

// readLoop drains client messages so close frames are processed.
func (h *Hub) readLoop(sub *subscriber) {
	defer h.drop(sub)
	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(sub *subscriber) {
	defer h.drop(sub)
	for {
		select {
		case <-sub.done:
			return
		case frame, ok := <-sub.send:
			if !ok {
				return
			}
			sub.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := sub.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		}
	}
}

// drop removes a subscriber; safe to call more than once.
func (h *Hub) drop(sub *subscriber) {
	h.mu.Lock()
	_, present := h.subs[sub]
	delete(h.subs, sub)
	count := len(h.subs)
	h.mu.Unlock()

	if present {
		observability.SetFeedSubscribers(count)
		sub.conn.Close()
	}
}
