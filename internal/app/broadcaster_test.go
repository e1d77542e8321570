package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/meetsync/internal/core"
	"github.com/dkeye/meetsync/internal/core/coretest"
	"github.com/dkeye/meetsync/internal/domain"
)

type attached struct {
	ds   core.DeviceSession
	conn *coretest.FakeConn
}

func attach(reg core.Registry, sid domain.SessionID, kind domain.DeviceKind) attached {
	conn := coretest.NewFakeConn()
	return attached{ds: reg.Attach(sid, kind, conn, func() {}), conn: conn}
}

func TestBroadcaster_MeetingStateReachesAllDevices(t *testing.T) {
	reg := core.NewRegistry()
	b := NewBroadcaster(reg, nil)
	st := NewStore(b)
	st.GetOrCreate("s1", domain.Identity{ID: "u1"}, domain.Credential{})

	g := attach(reg, "s1", domain.KindGlasses)
	w := attach(reg, "s1", domain.KindWrist)
	other := attach(reg, "s2", domain.KindGlasses)

	_, err := st.UpdateMeetingState("s1", g.ds.Meta().ID, domain.MeetingUpdate{ID: "m1", Title: "demo"})
	require.NoError(t, err)

	for _, a := range []attached{g, w} {
		msgs := a.conn.OfType(core.EventMeetingState)
		require.Len(t, msgs, 1)
		var p core.MeetingStatePayload
		msgs[0].Decode(&p)
		require.NotNil(t, p.Meeting)
		assert.Equal(t, domain.MeetingID("m1"), p.Meeting.ID)
		assert.Equal(t, "demo", p.Meeting.Title)
	}
	assert.Empty(t, other.conn.Messages(), "other sessions are not touched")
}

func TestBroadcaster_ParticipantsOnlyChange(t *testing.T) {
	reg := core.NewRegistry()
	b := NewBroadcaster(reg, nil)
	st := NewStore(b)
	st.GetOrCreate("s1", domain.Identity{ID: "u1"}, domain.Credential{})
	r := attach(reg, "s1", domain.KindRing)

	_, err := st.UpdateMeetingState("s1", "a", domain.MeetingUpdate{ID: "m1"})
	require.NoError(t, err)
	_, err = st.UpdateMeetingState("s1", "b", domain.MeetingUpdate{
		ID:           "m1",
		Participants: []domain.Participant{{Kind: domain.KindRing, DeviceID: "b"}},
	})
	require.NoError(t, err)

	msgs := r.conn.OfType(core.EventParticipants)
	require.Len(t, msgs, 1)
	var p core.ParticipantsPayload
	msgs[0].Decode(&p)
	assert.Equal(t, domain.MeetingID("m1"), p.MeetingID)
	assert.Len(t, p.Participants, 1)
}

func TestBroadcaster_DeviceEventTargetsKinds(t *testing.T) {
	reg := core.NewRegistry()
	b := NewBroadcaster(reg, nil)

	ring := attach(reg, "s1", domain.KindRing)
	g1 := attach(reg, "s1", domain.KindGlasses)
	g2 := attach(reg, "s1", domain.KindGlasses)
	w := attach(reg, "s1", domain.KindWrist)
	ring2 := attach(reg, "s1", domain.KindRing)

	res := b.BroadcastDeviceEvent("s1", ring.ds.Meta().ID, core.EventRingGesture,
		core.DeviceEventPayload{From: ring.ds.Meta().ID}, []domain.DeviceKind{domain.KindGlasses})

	assert.Equal(t, 2, res.SentTo)
	assert.Len(t, g1.conn.OfType(core.EventRingGesture), 1)
	assert.Len(t, g2.conn.OfType(core.EventRingGesture), 1)
	assert.Empty(t, w.conn.Messages())
	assert.Empty(t, ring.conn.Messages())
	assert.Empty(t, ring2.conn.Messages())
}

func TestBroadcaster_FailedSendDoesNotAbortFanOut(t *testing.T) {
	reg := core.NewRegistry()
	b := NewBroadcaster(reg, SimplePolicy{})
	st := NewStore(b)
	st.GetOrCreate("s1", domain.Identity{ID: "u1"}, domain.Credential{})

	bad := attach(reg, "s1", domain.KindGlasses)
	bad.conn.Fail = true
	good1 := attach(reg, "s1", domain.KindWrist)
	good2 := attach(reg, "s1", domain.KindRing)

	snap, err := st.ToggleMute("s1", good1.ds.Meta().ID)
	require.NoError(t, err)
	res := b.BroadcastMediaState(snap, "")

	assert.Equal(t, 2, res.SentTo)
	assert.Len(t, good1.conn.OfType(core.EventMediaState), 2)
	assert.Len(t, good2.conn.OfType(core.EventMediaState), 2)
	_, ok := reg.Get(bad.ds.Meta().ID)
	assert.False(t, ok, "failed device is detached")
}

func TestBroadcaster_TolerantPolicyKeepsSlowDevice(t *testing.T) {
	reg := core.NewRegistry()
	b := NewBroadcaster(reg, PolicyByName("drop"))
	slow := attach(reg, "s1", domain.KindGlasses)
	slow.conn.Fail = true

	res := b.BroadcastMediaState(domain.Snapshot{ID: "s1"}, "")
	assert.Len(t, res.Dropped, 1)
	_, ok := reg.Get(slow.ds.Meta().ID)
	assert.True(t, ok)
}

func TestBroadcaster_LayoutEchoesToOriginOnly(t *testing.T) {
	reg := core.NewRegistry()
	b := NewBroadcaster(reg, nil)
	st := NewStore(b)
	st.GetOrCreate("s1", domain.Identity{ID: "u1"}, domain.Credential{})
	g := attach(reg, "s1", domain.KindGlasses)
	w := attach(reg, "s1", domain.KindWrist)

	_, err := st.SetLayout("s1", g.ds.Meta().ID, "grid")
	require.NoError(t, err)
	_, err = st.SetBrightness("s1", g.ds.Meta().ID, 0.3)
	require.NoError(t, err)

	msgs := g.conn.OfType(core.EventMediaState)
	require.Len(t, msgs, 1)
	var p core.MediaStatePayload
	msgs[0].Decode(&p)
	assert.Equal(t, "grid", p.Layout)
	assert.Empty(t, w.conn.Messages())
}
