// Package agent is the device side of the sync protocol: a local mirror of
// the session that applies user actions optimistically and lets every server
// broadcast overwrite it.
package agent

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dkeye/meetsync/internal/core"
	"github.com/dkeye/meetsync/internal/domain"
)

// State is the device's view of its session.
type State struct {
	SessionID domain.SessionID
	DeviceID  domain.DeviceID
	User      domain.Identity
	Meeting   *domain.Meeting
	Devices   []domain.Device
	domain.CallState
}

func (s State) clone() State {
	s.Meeting = s.Meeting.Clone()
	s.Devices = append([]domain.Device(nil), s.Devices...)
	return s
}

// Transport delivers intents to the server.
type Transport interface {
	Send(intent string, payload any) error
}

// Event is an inbound frame that does not change State: relayed device
// events, errors and pongs.
type Event = core.Message

type Agent struct {
	kind      domain.DeviceKind
	caps      core.Capabilities
	transport Transport

	mu       sync.Mutex
	state    State
	onChange func(State)
	onEvent  func(Event)
}

func New(kind domain.DeviceKind, t Transport) *Agent {
	return &Agent{
		kind:      kind,
		caps:      core.CapabilitiesFor(kind),
		transport: t,
		state:     State{CallState: domain.DefaultCallState()},
	}
}

func (a *Agent) Kind() domain.DeviceKind { return a.kind }

func (a *Agent) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.clone()
}

// OnChange registers fn to run after every local or server state change.
func (a *Agent) OnChange(fn func(State)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onChange = fn
}

func (a *Agent) OnEvent(fn func(Event)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onEvent = fn
}

// update mutates the state under the lock and notifies outside of it.
func (a *Agent) update(fn func(s *State)) {
	a.mu.Lock()
	fn(&a.state)
	snap, cb := a.state.clone(), a.onChange
	a.mu.Unlock()
	if cb != nil {
		cb(snap)
	}
}

// optimistic applies fn locally, sends the intent and rolls fn back with undo
// if the intent could not be sent.
func (a *Agent) optimistic(intent string, payload any, fn, undo func(s *State)) error {
	if !a.caps.Accepts(intent) {
		return fmt.Errorf("%w: %s on %s", domain.ErrUnsupportedIntent, intent, a.kind)
	}
	a.update(fn)
	if err := a.transport.Send(intent, payload); err != nil {
		a.update(undo)
		return err
	}
	return nil
}

func (a *Agent) send(intent string, payload any) error {
	if !a.caps.Accepts(intent) {
		return fmt.Errorf("%w: %s on %s", domain.ErrUnsupportedIntent, intent, a.kind)
	}
	return a.transport.Send(intent, payload)
}

func (a *Agent) ToggleMute() error {
	flip := func(s *State) { s.Muted = !s.Muted }
	return a.optimistic(core.IntentToggleMute, nil, flip, flip)
}

func (a *Agent) ToggleVideo() error {
	flip := func(s *State) { s.VideoOff = !s.VideoOff }
	return a.optimistic(core.IntentToggleVideo, nil, flip, flip)
}

func (a *Agent) SetLayout(layout string) error {
	prev := a.State().Layout
	return a.optimistic(core.IntentUpdateLayout, core.LayoutPayload{Layout: layout},
		func(s *State) { s.Layout = layout },
		func(s *State) { s.Layout = prev })
}

func (a *Agent) SetBrightness(v float64) error {
	prev := a.State().Brightness
	next := domain.CallStateDelta{Brightness: &v}.Apply(domain.CallState{}).Brightness
	return a.optimistic(core.IntentAdjustBrightness, core.BrightnessPayload{Value: &v},
		func(s *State) { s.Brightness = next },
		func(s *State) { s.Brightness = prev })
}

// Join asks the server to add this device to meeting id. The meeting shows
// up locally once the server confirms it.
func (a *Agent) Join(id domain.MeetingID, url, title string) error {
	if id == "" {
		return fmt.Errorf("%w: meeting id required", domain.ErrBadPayload)
	}
	return a.send(core.IntentJoinMeeting, core.JoinMeetingPayload{MeetingID: id, MeetingURL: url, Title: title})
}

// Create asks the server to provision a new meeting and join it.
func (a *Agent) Create(title string) error {
	return a.send(core.IntentJoinMeeting, core.JoinMeetingPayload{Title: title})
}

func (a *Agent) Leave() error {
	prev := a.State()
	return a.optimistic(core.IntentLeaveMeeting, nil,
		func(s *State) {
			s.Meeting = nil
			s.Muted = false
			s.VideoOff = false
		},
		func(s *State) {
			s.Meeting = prev.Meeting
			s.Muted = prev.Muted
			s.VideoOff = prev.VideoOff
		})
}

func (a *Agent) Gesture(data json.RawMessage) error {
	return a.send(core.IntentGesture, core.GesturePayload{GestureData: data})
}

func (a *Agent) Notify(data json.RawMessage) error {
	return a.send(core.IntentNotification, core.NotificationPayload{NotificationData: data})
}

// Sync pushes the local state for the server to merge. Settings the device
// kind cannot change are left out.
func (a *Agent) Sync() error {
	s := a.State()
	blob := domain.StateBlob{
		Muted:    &s.Muted,
		VideoOff: &s.VideoOff,
	}
	if a.caps.Accepts(core.IntentAdjustBrightness) {
		blob.Brightness = &s.Brightness
	}
	if a.caps.Accepts(core.IntentUpdateLayout) {
		blob.Layout = &s.Layout
	}
	if s.Meeting != nil {
		blob.Meeting = &domain.MeetingUpdate{
			ID:           s.Meeting.ID,
			URL:          s.Meeting.URL,
			Title:        s.Meeting.Title,
			StartTime:    s.Meeting.StartTime,
			EndTime:      s.Meeting.EndTime,
			Participants: s.Meeting.Participants,
		}
	}
	return a.send(core.IntentStateSync, blob)
}

func (a *Agent) WhoAmI() error { return a.send(core.IntentWhoAmI, nil) }

// Apply consumes one server frame. Server state always replaces local state.
func (a *Agent) Apply(frame []byte) error {
	var msg core.Message
	if err := json.Unmarshal(frame, &msg); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrBadPayload, err)
	}

	switch msg.Type {
	case core.EventMeetingState:
		var p core.MeetingStatePayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrBadPayload, err)
		}
		a.update(func(s *State) {
			s.SessionID = p.SessionID
			s.Meeting = p.Meeting
			s.CallState = p.CallState
			s.Devices = p.Devices
		})
	case core.EventParticipants:
		var p core.ParticipantsPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrBadPayload, err)
		}
		a.update(func(s *State) {
			if s.Meeting != nil && s.Meeting.ID == p.MeetingID {
				s.Meeting.Participants = p.Participants
			}
		})
	case core.EventMediaState:
		var p core.MediaStatePayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrBadPayload, err)
		}
		a.update(func(s *State) { s.CallState = p.CallState })
	case core.EventSessionInfo:
		var p core.SessionInfoPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrBadPayload, err)
		}
		a.update(func(s *State) {
			s.SessionID = p.SessionID
			s.DeviceID = p.DeviceID
			s.User = p.User
		})
	default:
		a.mu.Lock()
		cb := a.onEvent
		a.mu.Unlock()
		if cb != nil {
			cb(msg)
		}
	}
	return nil
}
