package orch

import (
	"encoding/json"
	"fmt"

	"github.com/dkeye/meetsync/internal/core"
	"github.com/dkeye/meetsync/internal/domain"
)

func (o *Orchestrator) ToggleMute(ds core.DeviceSession) (domain.Snapshot, error) {
	return o.Store.ToggleMute(ds.SessionID(), ds.Meta().ID)
}

func (o *Orchestrator) ToggleVideo(ds core.DeviceSession) (domain.Snapshot, error) {
	return o.Store.ToggleVideo(ds.SessionID(), ds.Meta().ID)
}

func (o *Orchestrator) UpdateLayout(ds core.DeviceSession, layout string) (domain.Snapshot, error) {
	if err := o.allow(ds, core.IntentUpdateLayout); err != nil {
		return domain.Snapshot{}, err
	}
	return o.Store.SetLayout(ds.SessionID(), ds.Meta().ID, layout)
}

func (o *Orchestrator) AdjustBrightness(ds core.DeviceSession, value float64) (domain.Snapshot, error) {
	if err := o.allow(ds, core.IntentAdjustBrightness); err != nil {
		return domain.Snapshot{}, err
	}
	return o.Store.SetBrightness(ds.SessionID(), ds.Meta().ID, value)
}

// RelayDeviceEvent forwards a device-specific event to the kinds its
// capabilities name. It goes out under the session lock so it is ordered
// with the session's state broadcasts. An active meeting is not required.
func (o *Orchestrator) RelayDeviceEvent(ds core.DeviceSession, intent string, data json.RawMessage) error {
	if err := o.allow(ds, intent); err != nil {
		return err
	}
	relay, ok := ds.Capabilities().RelayFor(intent)
	if !ok {
		return fmt.Errorf("%w: %s has no relay", domain.ErrUnsupportedIntent, intent)
	}
	me := ds.Meta()
	payload := core.DeviceEventPayload{From: me.ID, Kind: me.Kind, Data: data}
	return o.Store.Sync(ds.SessionID(), func(domain.Snapshot) {
		o.Broadcaster.BroadcastDeviceEvent(ds.SessionID(), me.ID, relay.Event, payload, relay.Targets)
	})
}

// WhoAmI describes the device and its session.
func (o *Orchestrator) WhoAmI(ds core.DeviceSession) (core.SessionInfoPayload, error) {
	snap, err := o.Store.Get(ds.SessionID())
	if err != nil {
		return core.SessionInfoPayload{}, err
	}
	me := ds.Meta()
	return core.SessionInfoPayload{SessionID: snap.ID, DeviceID: me.ID, Kind: me.Kind, User: snap.User}, nil
}

func (o *Orchestrator) allow(ds core.DeviceSession, intent string) error {
	caps := ds.Capabilities()
	if caps == nil || !caps.Accepts(intent) {
		return fmt.Errorf("%w: %s from %s", domain.ErrUnsupportedIntent, intent, ds.Meta().Kind)
	}
	return nil
}
