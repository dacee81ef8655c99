package echoapi

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/smartcampus/campus/core"
	"github.com/smartcampus/campus/core/notification"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
	wsSendBuffer = 16
)

type subscriber struct {
	userID string
	conn   *websocket.Conn
	send   chan notification.Notification
}

// Hub pushes new notifications to the websockets of their recipients.
// A single goroutine (Run) owns the subscribers; a subscriber too slow to drain its buffer is dropped.
type Hub struct {
	logger  core.Logger
	metrics *Metrics

	subs       map[string]map[*subscriber]struct{} // userID -> subscribers
	register   chan *subscriber
	unregister chan *subscriber
	broadcast  chan notification.Notification
	done       chan struct{}
	count      int64
}

var _ notification.Publisher = (*Hub)(nil)

func NewHub(logger core.Logger, metrics *Metrics) *Hub {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Hub{
		logger:     logger,
		metrics:    metrics,
		subs:       make(map[string]map[*subscriber]struct{}),
		register:   make(chan *subscriber),
		unregister: make(chan *subscriber),
		broadcast:  make(chan notification.Notification, 256),
		done:       make(chan struct{}),
	}
}

// Run serves the hub until ctx is cancelled, then closes every websocket.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for _, set := range h.subs {
				for sub := range set {
					h.drop(sub)
				}
			}
			return
		case sub := <-h.register:
			set, ok := h.subs[sub.userID]
			if !ok {
				set = make(map[*subscriber]struct{})
				h.subs[sub.userID] = set
			}
			set[sub] = struct{}{}
			h.setCount(1)
		case sub := <-h.unregister:
			if _, ok := h.subs[sub.userID][sub]; ok {
				h.drop(sub)
			}
		case n := <-h.broadcast:
			for sub := range h.subs[n.User] {
				select {
				case sub.send <- n:
					h.metrics.notificationsPushed.Inc()
				default:
					h.logger.Warn("notification hub: dropping slow subscriber", map[string]interface{}{"user": sub.userID})
					h.drop(sub)
				}
			}
		}
	}
}

// Publish queues n for its recipient's websockets. It never blocks: when the queue is full n is only stored.
func (h *Hub) Publish(n notification.Notification) {
	select {
	case h.broadcast <- n:
	case <-h.done:
	default:
		h.logger.Warn("notification hub: queue full, notification not pushed", map[string]interface{}{"user": n.User})
	}
}

// Subscribers returns how many websockets are open.
func (h *Hub) Subscribers() int {
	return int(atomic.LoadInt64(&h.count))
}

func (h *Hub) drop(sub *subscriber) {
	delete(h.subs[sub.userID], sub)
	if len(h.subs[sub.userID]) == 0 {
		delete(h.subs, sub.userID)
	}
	close(sub.send)
	h.setCount(-1)
}

func (h *Hub) setCount(delta int64) {
	h.metrics.subscribers.Set(float64(atomic.AddInt64(&h.count, delta)))
}

// serve pumps the notifications of userID into conn until either side goes away.
func (h *Hub) serve(conn *websocket.Conn, userID string) {
	sub := &subscriber{
		userID: userID,
		conn:   conn,
		send:   make(chan notification.Notification, wsSendBuffer),
	}
	select {
	case h.register <- sub:
	case <-h.done:
		_ = conn.Close()
		return
	}

	go h.writePump(sub)
	h.readPump(sub)
}

// readPump only keeps the connection alive: clients have nothing to say.
func (h *Hub) readPump(sub *subscriber) {
	defer func() {
		select {
		case h.unregister <- sub:
		case <-h.done:
		}
		_ = sub.conn.Close()
	}()

	sub.conn.SetReadLimit(512)
	_ = sub.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	sub.conn.SetPongHandler(func(string) error {
		return sub.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(sub *subscriber) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		_ = sub.conn.Close()
	}()

	for {
		select {
		case n, ok := <-sub.send:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = sub.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := sub.conn.WriteJSON(n); err != nil {
				return
			}
		case <-ticker.C:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := sub.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
