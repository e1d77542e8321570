package core

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/meetsync/internal/domain"
	"github.com/dkeye/meetsync/internal/metrics"
)

// registryImpl is a threadsafe in-memory device registry.
// It never closes adapter-owned resources.
type registryImpl struct {
	mu        sync.RWMutex
	byDevice  map[domain.DeviceID]DeviceSession
	bySession map[domain.SessionID]map[domain.DeviceID]DeviceSession
}

func NewRegistry() Registry {
	return &registryImpl{
		byDevice:  make(map[domain.DeviceID]DeviceSession),
		bySession: make(map[domain.SessionID]map[domain.DeviceID]DeviceSession),
	}
}

func (r *registryImpl) Attach(sid domain.SessionID, kind domain.DeviceKind, conn SignalConnection, cancel context.CancelFunc) DeviceSession {
	id := domain.DeviceID(uuid.NewString())
	ds := NewDeviceSession(sid, domain.NewDevice(id, kind), conn, cancel)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.byDevice[id] = ds
	devs, ok := r.bySession[sid]
	if !ok {
		devs = make(map[domain.DeviceID]DeviceSession)
		r.bySession[sid] = devs
	}
	devs[id] = ds
	metrics.AttachedDevices.WithLabelValues(string(kind)).Inc()
	log.Info().Str("module", "core.registry").Str("sid", string(sid)).Str("device", string(id)).Str("kind", string(kind)).Msg("device attached")
	return ds
}

func (r *registryImpl) Detach(id domain.DeviceID) (DeviceSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ds, ok := r.byDevice[id]
	if !ok {
		return nil, false
	}
	delete(r.byDevice, id)
	metrics.AttachedDevices.WithLabelValues(string(ds.Meta().Kind)).Dec()
	sid := ds.SessionID()
	if devs, ok := r.bySession[sid]; ok {
		delete(devs, id)
		if len(devs) == 0 {
			delete(r.bySession, sid)
		}
	}
	log.Info().Str("module", "core.registry").Str("sid", string(sid)).Str("device", string(id)).Msg("device detached")
	return ds, true
}

func (r *registryImpl) Get(id domain.DeviceID) (DeviceSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ds, ok := r.byDevice[id]
	return ds, ok
}

func (r *registryImpl) DevicesOf(sid domain.SessionID) []DeviceSession {
	r.mu.RLock()
	defer r.mu.RUnlock()
	devs := r.bySession[sid]
	out := make([]DeviceSession, 0, len(devs))
	for _, ds := range devs {
		out = append(out, ds)
	}
	return out
}

func (r *registryImpl) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byDevice)
}
