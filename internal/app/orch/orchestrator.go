package orch

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/meetsync/internal/app"
	"github.com/dkeye/meetsync/internal/core"
	"github.com/dkeye/meetsync/internal/domain"
)

// Orchestrator routes device intents between the registry, the session store
// and the broadcaster. Transports call into it; it never touches a socket.
type Orchestrator struct {
	Registry    core.Registry
	Store       *app.Store
	Broadcaster *app.Broadcaster
	Provisioner core.MeetingProvisioner
	// ProvisionTimeout bounds a single provisioning call. Zero means no bound
	// beyond the caller's context.
	ProvisionTimeout time.Duration
}

func New(registry core.Registry, policy app.Policy, provisioner core.MeetingProvisioner) *Orchestrator {
	b := app.NewBroadcaster(registry, policy)
	return &Orchestrator{
		Registry:    registry,
		Store:       app.NewStore(b),
		Broadcaster: b,
		Provisioner: provisioner,
	}
}

// Attach binds a new transport to the session, creating the session on first
// sight. The device receives the current meeting state before any later
// broadcast of the session.
func (o *Orchestrator) Attach(sid domain.SessionID, user domain.Identity, cred domain.Credential, kind domain.DeviceKind, conn core.SignalConnection, cancel context.CancelFunc) (core.DeviceSession, error) {
	var ds core.DeviceSession
	register := func() domain.Device {
		ds = o.Registry.Attach(sid, kind, conn, cancel)
		return ds.Meta()
	}
	catchUp := func(s domain.Snapshot) {
		if err := o.Broadcaster.SendMeetingState(ds, s); err != nil {
			log.Warn().Err(err).Str("module", "orch").Str("sid", string(sid)).Str("device", string(ds.Meta().ID)).Msg("catch-up sync failed")
		}
	}

	// one retry covers a sweep racing between create and attach
	var err error
	for range 2 {
		o.Store.GetOrCreate(sid, user, cred)
		if err = o.Store.AttachDevice(sid, register, catchUp); !errors.Is(err, domain.ErrSessionNotFound) {
			break
		}
	}
	if err != nil {
		return nil, err
	}
	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("device", string(ds.Meta().ID)).Str("kind", string(kind)).Msg("device attached")
	return ds, nil
}

// Detach unbinds the device. Its participant entry, the meeting and the
// session stay as they are and nobody is notified.
func (o *Orchestrator) Detach(ds core.DeviceSession) {
	id := ds.Meta().ID
	o.Registry.Detach(id)
	if err := o.Store.RemoveDevice(ds.SessionID(), id); err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
		log.Error().Err(err).Str("module", "orch").Str("sid", string(ds.SessionID())).Str("device", string(id)).Msg("remove device")
		return
	}
	log.Info().Str("module", "orch").Str("sid", string(ds.SessionID())).Str("device", string(id)).Msg("device detached")
}

// Teardown removes the session and force-disconnects its devices.
func (o *Orchestrator) Teardown(sid domain.SessionID) bool {
	_, ok := o.Store.Teardown(sid)
	o.disconnectAll(sid)
	return ok
}

// Sweep removes idle sessions without devices and returns their ids.
func (o *Orchestrator) Sweep(idle time.Duration) []domain.SessionID {
	removed := o.Store.Sweep(idle)
	for _, sid := range removed {
		o.disconnectAll(sid)
	}
	if len(removed) > 0 {
		log.Info().Str("module", "orch").Int("count", len(removed)).Msg("idle sessions swept")
	}
	return removed
}

func (o *Orchestrator) disconnectAll(sid domain.SessionID) {
	for _, ds := range o.Registry.DevicesOf(sid) {
		o.Registry.Detach(ds.Meta().ID)
		ds.Disconnect()
	}
}
