package app

import (
	"fmt"
	"slices"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/meetsync/internal/core"
	"github.com/dkeye/meetsync/internal/domain"
	"github.com/dkeye/meetsync/internal/metrics"
)

// PublishResult reports delivery stats of one fan-out.
type PublishResult struct {
	SentTo  int
	Dropped []core.DeviceSession
}

// Broadcaster fans session changes out to the devices of that session.
// It only reads state; it never mutates the store.
type Broadcaster struct {
	registry core.Registry
	policy   Policy
}

func NewBroadcaster(registry core.Registry, policy Policy) *Broadcaster {
	if policy == nil {
		policy = SimplePolicy{}
	}
	return &Broadcaster{registry: registry, policy: policy}
}

func (b *Broadcaster) OnChange(c Change) {
	switch c.Kind {
	case ChangeMeeting, ChangeEnded, ChangeStateSync:
		b.BroadcastMeetingState(c.Snapshot)
	case ChangeParticipants:
		b.BroadcastParticipants(c.Snapshot)
	case ChangeMedia:
		b.BroadcastMediaState(c.Snapshot, c.Origin)
	case ChangeLayout:
		// local echo only
		if ds, ok := b.registry.Get(c.Origin); ok {
			_ = b.SendTo(ds, core.EventMediaState, mediaPayload(c.Snapshot, c.Origin))
		}
	case ChangeBrightness:
	}
}

func meetingPayload(s domain.Snapshot) core.MeetingStatePayload {
	return core.MeetingStatePayload{
		SessionID: s.ID,
		Meeting:   s.Meeting,
		CallState: s.CallState,
		Devices:   s.Devices,
	}
}

func mediaPayload(s domain.Snapshot, origin domain.DeviceID) core.MediaStatePayload {
	return core.MediaStatePayload{CallState: s.CallState, Origin: origin}
}

// BroadcastMeetingState sends the full meeting snapshot and call state to every device.
func (b *Broadcaster) BroadcastMeetingState(s domain.Snapshot) PublishResult {
	return b.publish(s.ID, core.EventMeetingState, meetingPayload(s), nil)
}

// BroadcastParticipants sends only the participant list.
func (b *Broadcaster) BroadcastParticipants(s domain.Snapshot) PublishResult {
	p := core.ParticipantsPayload{Participants: []domain.Participant{}}
	if s.Meeting != nil {
		p.MeetingID = s.Meeting.ID
		p.Participants = s.Meeting.Participants
	}
	return b.publish(s.ID, core.EventParticipants, p, nil)
}

func (b *Broadcaster) BroadcastMediaState(s domain.Snapshot, origin domain.DeviceID) PublishResult {
	return b.publish(s.ID, core.EventMediaState, mediaPayload(s, origin), nil)
}

// BroadcastDeviceEvent relays an event to the devices whose kind is in
// targets, never back to the origin.
func (b *Broadcaster) BroadcastDeviceEvent(sid domain.SessionID, origin domain.DeviceID, event string, payload any, targets []domain.DeviceKind) PublishResult {
	return b.publish(sid, event, payload, func(ds core.DeviceSession) bool {
		return ds.Meta().ID != origin && slices.Contains(targets, ds.Meta().Kind)
	})
}

// SendMeetingState is the catch-up sync for a single device.
func (b *Broadcaster) SendMeetingState(ds core.DeviceSession, s domain.Snapshot) error {
	return b.SendTo(ds, core.EventMeetingState, meetingPayload(s))
}

func (b *Broadcaster) SendTo(ds core.DeviceSession, event string, payload any) error {
	frame, err := core.Encode(event, payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}
	if err := ds.Signal().TrySend(frame); err != nil {
		b.onDropped(ds, err)
		return fmt.Errorf("%w: %w", domain.ErrTransportFailure, err)
	}
	metrics.Broadcasts.WithLabelValues(event).Inc()
	return nil
}

func (b *Broadcaster) publish(sid domain.SessionID, event string, payload any, filter func(core.DeviceSession) bool) PublishResult {
	res := PublishResult{}
	frame, err := core.Encode(event, payload)
	if err != nil {
		log.Error().Err(err).Str("module", "app.broadcaster").Str("event", event).Msg("encode")
		return res
	}
	for _, ds := range b.registry.DevicesOf(sid) {
		if filter != nil && !filter(ds) {
			continue
		}
		if err := ds.Signal().TrySend(frame); err != nil {
			res.Dropped = append(res.Dropped, ds)
			b.onDropped(ds, err)
			continue
		}
		res.SentTo++
	}
	metrics.Broadcasts.WithLabelValues(event).Add(float64(res.SentTo))
	log.Debug().Str("module", "app.broadcaster").Str("sid", string(sid)).Str("event", event).Int("sent_to", res.SentTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}

func (b *Broadcaster) onDropped(ds core.DeviceSession, err error) {
	metrics.DroppedSends.Inc()
	id := ds.Meta().ID
	log.Warn().Err(err).Str("module", "app.broadcaster").Str("sid", string(ds.SessionID())).Str("device", string(id)).Msg("send failed")
	switch b.policy.OnBackPressure(ds, err) {
	case DisconnectDevice:
		b.registry.Detach(id)
		ds.Disconnect()
	case DropFrame, NoAction:
	}
}
