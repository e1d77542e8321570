package core

import (
	"context"

	"github.com/dkeye/meetsync/internal/domain"
)

// DeviceSession binds a domain.Device to its session and transport endpoint.
// This is what the registry stores and the broadcaster fans out to.
type DeviceSession interface {
	Meta() domain.Device
	SessionID() domain.SessionID
	Signal() SignalConnection
	Capabilities() Capabilities
	// Disconnect cancels the connection context; pumps exit and close the transport.
	Disconnect()
}

type deviceSession struct {
	meta   domain.Device
	sid    domain.SessionID
	conn   SignalConnection
	caps   Capabilities
	cancel context.CancelFunc
}

func NewDeviceSession(sid domain.SessionID, meta domain.Device, conn SignalConnection, cancel context.CancelFunc) DeviceSession {
	return &deviceSession{
		meta:   meta,
		sid:    sid,
		conn:   conn,
		caps:   CapabilitiesFor(meta.Kind),
		cancel: cancel,
	}
}

func (d *deviceSession) Meta() domain.Device         { return d.meta }
func (d *deviceSession) SessionID() domain.SessionID { return d.sid }
func (d *deviceSession) Signal() SignalConnection    { return d.conn }
func (d *deviceSession) Capabilities() Capabilities  { return d.caps }

func (d *deviceSession) Disconnect() {
	if d.cancel != nil {
		d.cancel()
	}
}
