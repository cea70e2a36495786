package stream

import (
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
)

// subscriber is one websocket connection and the codec it negotiated.
type subscriber struct {
	conn  *websocket.Conn
	codec Codec
}

// Broadcaster fans map editing events out to every connection subscribed to a
// map area. Write failures are logged and counted; the connection is cleaned
// up when the client disconnects.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[int64]map[*websocket.Conn]*subscriber // mapAreaID -> connections
	metrics     *Metrics
	logger      *slog.Logger
}

// NewBroadcaster creates a broadcaster. metrics may be nil.
func NewBroadcaster(metrics *Metrics, logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		subscribers: make(map[int64]map[*websocket.Conn]*subscriber),
		metrics:     metrics,
		logger:      logger,
	}
}

// Subscribe registers a connection for a map area's events.
func (b *Broadcaster) Subscribe(mapAreaID int64, conn *websocket.Conn, codec Codec) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subscribers[mapAreaID] == nil {
		b.subscribers[mapAreaID] = make(map[*websocket.Conn]*subscriber)
	}
	b.subscribers[mapAreaID][conn] = &subscriber{conn: conn, codec: codec}
	b.metrics.subscriberAdded()
}

// Unsubscribe removes a connection from every map area.
func (b *Broadcaster) Unsubscribe(conn *websocket.Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for areaID, subs := range b.subscribers {
		if _, ok := subs[conn]; ok {
			delete(subs, conn)
			b.metrics.subscriberRemoved()
		}
		if len(subs) == 0 {
			delete(b.subscribers, areaID)
		}
	}
}

// Broadcast delivers an event to every subscriber of its map area. The event
// is encoded once per codec in use, not once per connection.
func (b *Broadcaster) Broadcast(ev *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	subs := b.subscribers[ev.MapAreaID]
	if len(subs) == 0 {
		return
	}

	encoded := make(map[string][]byte, 2)
	for _, sub := range subs {
		data, ok := encoded[sub.codec.Name()]
		if !ok {
			var err error
			data, err = sub.codec.Encode(ev)
			if err != nil {
				b.logger.Error("failed to encode stream event",
					"type", ev.Type,
					"codec", sub.codec.Name(),
					"error", err)
				b.metrics.frameDropped(sub.codec.Name())
				continue
			}
			encoded[sub.codec.Name()] = data
		}
		if err := sub.conn.WriteMessage(sub.codec.MessageType(), data); err != nil {
			b.logger.Warn("failed to write stream event",
				"type", ev.Type,
				"map_area_id", ev.MapAreaID,
				"error", err)
			b.metrics.frameDropped(sub.codec.Name())
			continue
		}
		b.metrics.frameDelivered(sub.codec.Name())
	}
}

// SubscriberCount returns the number of connections watching a map area.
func (b *Broadcaster) SubscriberCount(mapAreaID int64) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[mapAreaID])
}

// Notifier adapts the broadcaster to the editor's notification sink for one
// map area: every confirmation and rejection becomes a notification event.
type Notifier struct {
	Broadcaster *Broadcaster
	MapAreaID   int64
	Fallback    *slog.Logger
}

func (n *Notifier) publish(severity, msg string) {
	if n.Fallback != nil {
		n.Fallback.Info("editor notification", "severity", severity, "message", msg)
	}
	n.Broadcaster.Broadcast(&Event{
		Type:      EventNotification,
		MapAreaID: n.MapAreaID,
		Payload:   Notification{Severity: severity, Message: msg},
	})
}

// Info publishes a confirmation.
func (n *Notifier) Info(msg string) { n.publish(SeverityInfo, msg) }

// Warn publishes a rejected-transition warning.
func (n *Notifier) Warn(msg string) { n.publish(SeverityWarn, msg) }

// Error publishes a failed-transition error.
func (n *Notifier) Error(msg string) { n.publish(SeverityError, msg) }
