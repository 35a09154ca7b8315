package realtime

import (
	"encoding/json"
	"fmt"
)

// Wire event names. Inbound events come from viewer clients; outbound events
// are pushed by the hub.
const (
	EventConnected   = "connected"
	EventJoinSession = "join-session"
	EventSlideChange = "instructor-slide-change"
	EventLaser       = "instructor-laser"
	EventSyncSlide   = "sync-slide"
	EventLaserPoint  = "laser-pointer"
	EventPDFProgress = "pdf-progress"
)

// Envelope frames every message on the websocket.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ConnectedPayload tells a client its connection id, which the upload form
// echoes back as socket_id for progress routing.
type ConnectedPayload struct {
	SocketID string `json:"socketId"`
}

// JoinSessionPayload subscribes a connection to a slide-sync room.
type JoinSessionPayload struct {
	MaterialID string `json:"materialId"`
	CourseID   string `json:"courseId"`
}

// SlideChangePayload is sent by the presenter when navigating pages.
type SlideChangePayload struct {
	MaterialID string `json:"materialId"`
	CourseID   string `json:"courseId"`
	Page       int    `json:"page"`
}

// LaserPayload is the presenter's pointer state. It is a high-frequency,
// loss-tolerant stream; each event supersedes the previous one.
type LaserPayload struct {
	MaterialID string  `json:"materialId"`
	CourseID   string  `json:"courseId"`
	Show       bool    `json:"show"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
}

// SyncSlidePayload is rebroadcast to room members on page changes.
type SyncSlidePayload struct {
	Page int `json:"page"`
}

// LaserPointPayload is rebroadcast to room members on pointer moves.
type LaserPointPayload struct {
	Show bool    `json:"show"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// ProgressPayload reports conversion progress to the uploading connection.
type ProgressPayload struct {
	Current int `json:"current"`
	Total   int `json:"total"`
	Percent int `json:"percent"`
}

// RoomKey builds the composite room identifier for a (material, course) pair.
func RoomKey(materialID, courseID string) string {
	return fmt.Sprintf("%s:%s", materialID, courseID)
}

func encode(event string, data interface{}) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}
