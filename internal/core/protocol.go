package core

import (
	"encoding/json"
	"time"

	"github.com/dkeye/meetsync/internal/domain"
)

// Outbound event names.
const (
	EventMeetingState = "meeting_state_update"
	EventParticipants = "participant_update"
	EventMediaState   = "media_state_update"
	EventRingGesture  = "ring_gesture"
	EventWatchNotify  = "watch_notification"
	EventError        = "error"
	EventPong         = "pong"
	EventSessionInfo  = "session_info"
)

// Message is the envelope for every frame in both directions.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Encode marshals an outbound event.
func Encode(typ string, payload any) (Frame, error) {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	return json.Marshal(Message{Type: typ, Payload: raw})
}

type MeetingStatePayload struct {
	SessionID domain.SessionID `json:"sessionId"`
	Meeting   *domain.Meeting  `json:"currentMeeting"`
	domain.CallState
	Devices []domain.Device `json:"devices"`
}

type ParticipantsPayload struct {
	MeetingID    domain.MeetingID     `json:"meetingId,omitempty"`
	Participants []domain.Participant `json:"participants"`
}

type MediaStatePayload struct {
	domain.CallState
	Origin domain.DeviceID `json:"originDeviceId,omitempty"`
}

type DeviceEventPayload struct {
	From domain.DeviceID   `json:"fromDeviceId"`
	Kind domain.DeviceKind `json:"fromDeviceKind"`
	Data json.RawMessage   `json:"data,omitempty"`
}

type ErrorPayload struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type SessionInfoPayload struct {
	SessionID domain.SessionID  `json:"sessionId"`
	DeviceID  domain.DeviceID   `json:"deviceId"`
	Kind      domain.DeviceKind `json:"deviceKind"`
	User      domain.Identity   `json:"user"`
}

// Inbound payloads.

type JoinMeetingPayload struct {
	MeetingID  domain.MeetingID `json:"meetingId"`
	MeetingURL string           `json:"meetingUrl,omitempty"`
	Title      string           `json:"title,omitempty"`
	StartTime  time.Time        `json:"startTime,omitzero"`
	EndTime    time.Time        `json:"endTime,omitzero"`
	Attendees  []string         `json:"attendees,omitempty"`
}

type LayoutPayload struct {
	Layout string `json:"layout"`
}

type BrightnessPayload struct {
	Value *float64 `json:"value"`
}

type GesturePayload struct {
	GestureData json.RawMessage `json:"gestureData"`
}

type NotificationPayload struct {
	NotificationData json.RawMessage `json:"notificationData"`
}
