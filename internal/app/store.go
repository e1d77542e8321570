package app

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/meetsync/internal/domain"
	"github.com/dkeye/meetsync/internal/metrics"
)

type ChangeKind int

const (
	// ChangeMeeting means meeting metadata changed; devices need the full state.
	ChangeMeeting ChangeKind = iota
	// ChangeParticipants means only the participant list changed.
	ChangeParticipants
	ChangeMedia
	ChangeLayout
	ChangeBrightness
	ChangeEnded
	ChangeStateSync
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeMeeting:
		return "meeting"
	case ChangeParticipants:
		return "participants"
	case ChangeMedia:
		return "media"
	case ChangeLayout:
		return "layout"
	case ChangeBrightness:
		return "brightness"
	case ChangeEnded:
		return "ended"
	case ChangeStateSync:
		return "state_sync"
	}
	return "unknown"
}

// Change is emitted after every state mutation of a session.
type Change struct {
	Kind     ChangeKind
	Snapshot domain.Snapshot
	Origin   domain.DeviceID
}

// Observer receives the changes of every session. OnChange runs while the
// session is locked, so changes of one session arrive in mutation order and
// the observer must not call back into the Store.
type Observer interface {
	OnChange(Change)
}

type sessionEntry struct {
	mu   sync.Mutex
	s    *domain.Session
	gone bool
}

// Store is the single owner of session and meeting state.
// Mutations of one session are serialized; sessions never share state.
type Store struct {
	mu       sync.RWMutex
	sessions map[domain.SessionID]*sessionEntry
	observer Observer
}

func NewStore(observer Observer) *Store {
	return &Store{
		sessions: make(map[domain.SessionID]*sessionEntry),
		observer: observer,
	}
}

func notFound(sid domain.SessionID) error {
	return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, sid)
}

func (st *Store) entry(sid domain.SessionID) (*sessionEntry, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	e, ok := st.sessions[sid]
	return e, ok
}

// GetOrCreate returns the session, creating it on first sight. A non-zero
// credential replaces the stored one.
func (st *Store) GetOrCreate(sid domain.SessionID, user domain.Identity, cred domain.Credential) domain.Snapshot {
	st.mu.Lock()
	e, ok := st.sessions[sid]
	if !ok {
		e = &sessionEntry{s: domain.NewSession(sid, user, cred)}
		st.sessions[sid] = e
		metrics.Sessions.Inc()
		log.Info().Str("module", "app.store").Str("sid", string(sid)).Str("user", string(user.ID)).Msg("session created")
	}
	st.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if ok {
		if !cred.IsZero() {
			e.s.Credential = cred
		}
		if e.s.User.ID == "" {
			e.s.User = user
		}
	}
	return e.s.Snapshot()
}

func (st *Store) Get(sid domain.SessionID) (domain.Snapshot, error) {
	var out domain.Snapshot
	err := st.Sync(sid, func(s domain.Snapshot) { out = s })
	return out, err
}

// Sync runs fn with the current snapshot while the session is locked, so
// nothing else of this session is processed until fn returns.
func (st *Store) Sync(sid domain.SessionID, fn func(domain.Snapshot)) error {
	e, ok := st.entry(sid)
	if !ok {
		return notFound(sid)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gone {
		return notFound(sid)
	}
	fn(e.s.Snapshot())
	return nil
}

// mutate applies fn under the session lock, stamps activity and notifies the
// observer before releasing the lock.
func (st *Store) mutate(sid domain.SessionID, origin domain.DeviceID, fn func(s *domain.Session) (ChangeKind, bool, error)) (domain.Snapshot, error) {
	e, ok := st.entry(sid)
	if !ok {
		return domain.Snapshot{}, notFound(sid)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gone {
		return domain.Snapshot{}, notFound(sid)
	}

	kind, notify, err := fn(e.s)
	if err != nil {
		return domain.Snapshot{}, err
	}
	e.s.Touch()
	snap := e.s.Snapshot()
	if notify && st.observer != nil {
		st.observer.OnChange(Change{Kind: kind, Snapshot: snap, Origin: origin})
	}
	return snap, nil
}

// AttachDevice registers the device returned by register and hands the
// resulting snapshot to onAttached, all under the session lock. No change of
// the session can be published to the device before onAttached returns.
func (st *Store) AttachDevice(sid domain.SessionID, register func() domain.Device, onAttached func(domain.Snapshot)) error {
	e, ok := st.entry(sid)
	if !ok {
		return notFound(sid)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gone {
		return notFound(sid)
	}
	dev := register()
	e.s.Devices[dev.ID] = dev
	e.s.Touch()
	if onAttached != nil {
		onAttached(e.s.Snapshot())
	}
	return nil
}

func (st *Store) AddDevice(sid domain.SessionID, dev domain.Device) error {
	_, err := st.mutate(sid, dev.ID, func(s *domain.Session) (ChangeKind, bool, error) {
		s.Devices[dev.ID] = dev
		return 0, false, nil
	})
	return err
}

// RemoveDevice drops the device from the session. The session and its
// meeting, participants included, stay untouched.
func (st *Store) RemoveDevice(sid domain.SessionID, id domain.DeviceID) error {
	_, err := st.mutate(sid, id, func(s *domain.Session) (ChangeKind, bool, error) {
		delete(s.Devices, id)
		return 0, false, nil
	})
	return err
}

// UpdateMeetingState merges u into the current meeting.
func (st *Store) UpdateMeetingState(sid domain.SessionID, origin domain.DeviceID, u domain.MeetingUpdate) (domain.Snapshot, error) {
	if u.ID == "" {
		return domain.Snapshot{}, domain.ErrMeetingIDEmpty
	}
	return st.mutate(sid, origin, func(s *domain.Session) (ChangeKind, bool, error) {
		next, metadataChanged := u.Merge(s.Meeting)
		s.Meeting = next
		if metadataChanged {
			return ChangeMeeting, true, nil
		}
		return ChangeParticipants, true, nil
	})
}

// EndMeeting clears the meeting and resets mute and video flags.
func (st *Store) EndMeeting(sid domain.SessionID, origin domain.DeviceID) (domain.Snapshot, error) {
	return st.mutate(sid, origin, func(s *domain.Session) (ChangeKind, bool, error) {
		s.Meeting = nil
		s.CallState.Muted = false
		s.CallState.VideoOff = false
		return ChangeEnded, true, nil
	})
}

func (st *Store) UpdateCallState(sid domain.SessionID, origin domain.DeviceID, d domain.CallStateDelta) (domain.Snapshot, error) {
	return st.mutate(sid, origin, func(s *domain.Session) (ChangeKind, bool, error) {
		s.CallState = d.Apply(s.CallState)
		return ChangeMedia, true, nil
	})
}

func (st *Store) ToggleMute(sid domain.SessionID, origin domain.DeviceID) (domain.Snapshot, error) {
	return st.mutate(sid, origin, func(s *domain.Session) (ChangeKind, bool, error) {
		s.CallState.Muted = !s.CallState.Muted
		return ChangeMedia, true, nil
	})
}

func (st *Store) ToggleVideo(sid domain.SessionID, origin domain.DeviceID) (domain.Snapshot, error) {
	return st.mutate(sid, origin, func(s *domain.Session) (ChangeKind, bool, error) {
		s.CallState.VideoOff = !s.CallState.VideoOff
		return ChangeMedia, true, nil
	})
}

func (st *Store) SetLayout(sid domain.SessionID, origin domain.DeviceID, layout string) (domain.Snapshot, error) {
	if layout == "" {
		return domain.Snapshot{}, fmt.Errorf("%w: empty layout", domain.ErrBadPayload)
	}
	return st.mutate(sid, origin, func(s *domain.Session) (ChangeKind, bool, error) {
		s.CallState.Layout = layout
		return ChangeLayout, true, nil
	})
}

func (st *Store) SetBrightness(sid domain.SessionID, origin domain.DeviceID, value float64) (domain.Snapshot, error) {
	return st.mutate(sid, origin, func(s *domain.Session) (ChangeKind, bool, error) {
		s.CallState = domain.CallStateDelta{Brightness: &value}.Apply(s.CallState)
		return ChangeBrightness, true, nil
	})
}

// MergeState is the bulk path used by state_sync. The meeting part follows the
// same merge rule as UpdateMeetingState; present call-state fields overwrite.
func (st *Store) MergeState(sid domain.SessionID, origin domain.DeviceID, b domain.StateBlob) (domain.Snapshot, error) {
	return st.mutate(sid, origin, func(s *domain.Session) (ChangeKind, bool, error) {
		if b.Meeting != nil && b.Meeting.ID != "" {
			s.Meeting, _ = b.Meeting.Merge(s.Meeting)
		}
		s.CallState = b.CallDelta().Apply(s.CallState)
		return ChangeStateSync, true, nil
	})
}

func (st *Store) SetCredential(sid domain.SessionID, cred domain.Credential) error {
	_, err := st.mutate(sid, "", func(s *domain.Session) (ChangeKind, bool, error) {
		s.Credential = cred
		return 0, false, nil
	})
	return err
}

// Teardown removes the session. Disconnecting its devices is up to the caller.
func (st *Store) Teardown(sid domain.SessionID) (domain.Snapshot, bool) {
	st.mu.Lock()
	e, ok := st.sessions[sid]
	if ok {
		delete(st.sessions, sid)
	}
	st.mu.Unlock()
	if !ok {
		return domain.Snapshot{}, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.gone = true
	metrics.Sessions.Dec()
	log.Info().Str("module", "app.store").Str("sid", string(sid)).Msg("session torn down")
	return e.s.Snapshot(), true
}

func (st *Store) List() []domain.Snapshot {
	st.mu.RLock()
	entries := make([]*sessionEntry, 0, len(st.sessions))
	for _, e := range st.sessions {
		entries = append(entries, e)
	}
	st.mu.RUnlock()

	out := make([]domain.Snapshot, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if !e.gone {
			out = append(out, e.s.Snapshot())
		}
		e.mu.Unlock()
	}
	return out
}

// Sweep tears down sessions without devices whose last activity is older
// than idle. It returns the removed ids.
func (st *Store) Sweep(idle time.Duration) []domain.SessionID {
	cutoff := time.Now().Add(-idle)
	var stale []domain.SessionID
	for _, s := range st.List() {
		if len(s.Devices) == 0 && s.LastActivityAt.Before(cutoff) {
			stale = append(stale, s.ID)
		}
	}

	removed := stale[:0]
	for _, sid := range stale {
		e, ok := st.entry(sid)
		if !ok {
			continue
		}
		e.mu.Lock()
		still := !e.gone && len(e.s.Devices) == 0 && e.s.LastActivityAt.Before(cutoff)
		e.mu.Unlock()
		if !still {
			continue
		}
		if _, ok := st.Teardown(sid); ok {
			removed = append(removed, sid)
		}
	}
	return removed
}
