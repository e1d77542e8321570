package domain

import "time"

type SessionID string

const (
	DefaultBrightness = 0.8
	DefaultLayout     = "default"
)

// CallState is shared by all devices of a session: one user, one call state.
type CallState struct {
	Muted      bool    `json:"isMuted"`
	VideoOff   bool    `json:"isVideoOff"`
	Brightness float64 `json:"brightness"`
	Layout     string  `json:"layout"`
}

func DefaultCallState() CallState {
	return CallState{Brightness: DefaultBrightness, Layout: DefaultLayout}
}

// CallStateDelta carries a partial call-state update; nil fields are untouched.
type CallStateDelta struct {
	Muted      *bool    `json:"isMuted,omitempty"`
	VideoOff   *bool    `json:"isVideoOff,omitempty"`
	Brightness *float64 `json:"brightness,omitempty"`
	Layout     *string  `json:"layout,omitempty"`
}

func (d CallStateDelta) Apply(cs CallState) CallState {
	if d.Muted != nil {
		cs.Muted = *d.Muted
	}
	if d.VideoOff != nil {
		cs.VideoOff = *d.VideoOff
	}
	if d.Brightness != nil {
		cs.Brightness = clampBrightness(*d.Brightness)
	}
	if d.Layout != nil && *d.Layout != "" {
		cs.Layout = *d.Layout
	}
	return cs
}

func clampBrightness(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// Session is one authenticated user's presence across devices.
// A session with no devices keeps its meeting until explicitly ended.
type Session struct {
	ID             SessionID
	User           Identity
	Credential     Credential
	Devices        map[DeviceID]Device
	Meeting        *Meeting
	CallState      CallState
	CreatedAt      time.Time
	LastActivityAt time.Time
}

func NewSession(id SessionID, user Identity, cred Credential) *Session {
	now := time.Now()
	return &Session{
		ID:             id,
		User:           user,
		Credential:     cred,
		Devices:        make(map[DeviceID]Device),
		CallState:      DefaultCallState(),
		CreatedAt:      now,
		LastActivityAt: now,
	}
}

func (s *Session) Touch() { s.LastActivityAt = time.Now() }

// Snapshot returns a deep copy safe to hand out of the store.
func (s *Session) Snapshot() Snapshot {
	devices := make([]Device, 0, len(s.Devices))
	for _, d := range s.Devices {
		devices = append(devices, d)
	}
	return Snapshot{
		ID:             s.ID,
		User:           s.User,
		Credential:     s.Credential,
		Devices:        devices,
		Meeting:        s.Meeting.Clone(),
		CallState:      s.CallState,
		CreatedAt:      s.CreatedAt,
		LastActivityAt: s.LastActivityAt,
	}
}

// Snapshot is a read-only copy of a session.
type Snapshot struct {
	ID             SessionID  `json:"sessionId"`
	User           Identity   `json:"user"`
	Credential     Credential `json:"-"`
	Devices        []Device   `json:"devices"`
	Meeting        *Meeting   `json:"currentMeeting"`
	CallState      CallState  `json:"callState"`
	CreatedAt      time.Time  `json:"createdAt"`
	LastActivityAt time.Time  `json:"lastActivityAt"`
}

// StateBlob is the full local state a device pushes with state_sync.
type StateBlob struct {
	Meeting    *MeetingUpdate `json:"currentMeeting,omitempty"`
	Muted      *bool          `json:"isMuted,omitempty"`
	VideoOff   *bool          `json:"isVideoOff,omitempty"`
	Brightness *float64       `json:"brightness,omitempty"`
	Layout     *string        `json:"layout,omitempty"`
}

func (b StateBlob) CallDelta() CallStateDelta {
	return CallStateDelta{Muted: b.Muted, VideoOff: b.VideoOff, Brightness: b.Brightness, Layout: b.Layout}
}
