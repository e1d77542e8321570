package core

import (
	"context"

	"github.com/dkeye/meetsync/internal/domain"
)

// Registry maps live device transports to the session they belong to.
// It never touches session state; the caller must create the session first.
type Registry interface {
	Attach(sid domain.SessionID, kind domain.DeviceKind, conn SignalConnection, cancel context.CancelFunc) DeviceSession
	// Detach is idempotent; it reports the removed entry when there was one.
	Detach(id domain.DeviceID) (DeviceSession, bool)
	Get(id domain.DeviceID) (DeviceSession, bool)
	// DevicesOf returns a snapshot, never a live view.
	DevicesOf(sid domain.SessionID) []DeviceSession
	Count() int
}
