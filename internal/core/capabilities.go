package core

import "github.com/dkeye/meetsync/internal/domain"

// Intent names accepted from devices.
const (
	IntentJoinMeeting      = "join_meeting"
	IntentLeaveMeeting     = "leave_meeting"
	IntentToggleMute       = "toggle_mute"
	IntentToggleVideo      = "toggle_video"
	IntentUpdateLayout     = "update_layout"
	IntentAdjustBrightness = "adjust_brightness"
	IntentGesture          = "gesture"
	IntentNotification     = "notification"
	IntentStateSync        = "state_sync"
	IntentPing             = "ping"
	IntentWhoAmI           = "whoami"
)

// Relay describes where a device event is forwarded to.
type Relay struct {
	Event   string
	Targets []domain.DeviceKind
}

// Capabilities is the per-kind behaviour of a device, chosen once at attach time.
type Capabilities interface {
	Kind() domain.DeviceKind
	// Accepts reports whether the device may send the intent.
	Accepts(intent string) bool
	// RelayFor returns the cross-device relay for an intent, if any.
	RelayFor(intent string) (Relay, bool)
}

var commonIntents = map[string]bool{
	IntentJoinMeeting:  true,
	IntentLeaveMeeting: true,
	IntentToggleMute:   true,
	IntentToggleVideo:  true,
	IntentStateSync:    true,
	IntentPing:         true,
	IntentWhoAmI:       true,
}

type GlassesCapabilities struct{}

func (GlassesCapabilities) Kind() domain.DeviceKind { return domain.KindGlasses }

func (GlassesCapabilities) Accepts(intent string) bool {
	return commonIntents[intent] || intent == IntentUpdateLayout || intent == IntentAdjustBrightness
}

func (GlassesCapabilities) RelayFor(string) (Relay, bool) { return Relay{}, false }

type RingCapabilities struct{}

func (RingCapabilities) Kind() domain.DeviceKind { return domain.KindRing }

func (RingCapabilities) Accepts(intent string) bool {
	return commonIntents[intent] || intent == IntentGesture
}

func (RingCapabilities) RelayFor(intent string) (Relay, bool) {
	if intent != IntentGesture {
		return Relay{}, false
	}
	return Relay{Event: EventRingGesture, Targets: []domain.DeviceKind{domain.KindGlasses}}, true
}

type WatchCapabilities struct{}

func (WatchCapabilities) Kind() domain.DeviceKind { return domain.KindWrist }

func (WatchCapabilities) Accepts(intent string) bool {
	return commonIntents[intent] || intent == IntentNotification
}

func (WatchCapabilities) RelayFor(intent string) (Relay, bool) {
	if intent != IntentNotification {
		return Relay{}, false
	}
	return Relay{Event: EventWatchNotify, Targets: []domain.DeviceKind{domain.KindGlasses}}, true
}

func CapabilitiesFor(kind domain.DeviceKind) Capabilities {
	switch kind {
	case domain.KindGlasses:
		return GlassesCapabilities{}
	case domain.KindRing:
		return RingCapabilities{}
	case domain.KindWrist:
		return WatchCapabilities{}
	}
	return nil
}
