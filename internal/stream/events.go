// Package stream provides WebSocket fan-out of map editing events to every
// client viewing the same map area.
package stream

// Event types published to subscribers.
const (
	EventAnnotationCreated = "annotation.created"
	EventAnnotationUpdated = "annotation.updated"
	EventAnnotationDeleted = "annotation.deleted"
	EventLayersChanged     = "layers.changed"
	EventBoundaryUpdated   = "boundary.updated"
	EventNotification      = "notification"
)

// Notification severities.
const (
	SeverityInfo  = "info"
	SeverityWarn  = "warning"
	SeverityError = "error"
)

// Event is one frame on the realtime wire. Payload carries the changed record
// or, for notifications, a Notification.
type Event struct {
	Type      string `json:"type" cbor:"type"`
	MapAreaID int64  `json:"map_area_id" cbor:"map_area_id"`
	Payload   any    `json:"payload,omitempty" cbor:"payload,omitempty"`
}

// Notification is a user-facing message mirrored to every subscriber of the
// map area it happened in.
type Notification struct {
	Severity string `json:"severity" cbor:"severity"`
	Message  string `json:"message" cbor:"message"`
}
