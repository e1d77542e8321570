package core_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/meetsync/internal/core"
	"github.com/dkeye/meetsync/internal/core/coretest"
	"github.com/dkeye/meetsync/internal/domain"
)

func TestRegistry_AttachAssignsUniqueIDs(t *testing.T) {
	r := core.NewRegistry()

	a := r.Attach("s1", domain.KindGlasses, coretest.NewFakeConn(), nil)
	b := r.Attach("s1", domain.KindRing, coretest.NewFakeConn(), nil)

	require.NotEqual(t, a.Meta().ID, b.Meta().ID)
	assert.Equal(t, domain.SessionID("s1"), a.SessionID())
	assert.Equal(t, domain.KindRing, b.Capabilities().Kind())
	assert.Len(t, r.DevicesOf("s1"), 2)
	assert.Equal(t, 2, r.Count())
}

func TestRegistry_DetachIsIdempotent(t *testing.T) {
	r := core.NewRegistry()
	d := r.Attach("s1", domain.KindWrist, coretest.NewFakeConn(), nil)

	_, ok := r.Detach(d.Meta().ID)
	assert.True(t, ok)
	_, ok = r.Detach(d.Meta().ID)
	assert.False(t, ok)
	_, ok = r.Detach("unknown")
	assert.False(t, ok)
	assert.Empty(t, r.DevicesOf("s1"))
}

func TestRegistry_DevicesOfIsSnapshot(t *testing.T) {
	r := core.NewRegistry()
	a := r.Attach("s1", domain.KindGlasses, coretest.NewFakeConn(), nil)
	r.Attach("s2", domain.KindGlasses, coretest.NewFakeConn(), nil)

	devs := r.DevicesOf("s1")
	r.Detach(a.Meta().ID)

	assert.Len(t, devs, 1, "snapshot survives concurrent detach")
	assert.Empty(t, r.DevicesOf("s1"))
	assert.Len(t, r.DevicesOf("s2"), 1)
}

func TestDeviceSession_DisconnectCancelsContext(t *testing.T) {
	r := core.NewRegistry()
	ctx, cancel := context.WithCancel(context.Background())
	d := r.Attach("s1", domain.KindGlasses, coretest.NewFakeConn(), cancel)

	d.Disconnect()
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}

func TestCapabilities(t *testing.T) {
	glasses := core.CapabilitiesFor(domain.KindGlasses)
	ring := core.CapabilitiesFor(domain.KindRing)
	watch := core.CapabilitiesFor(domain.KindWrist)

	assert.True(t, glasses.Accepts(core.IntentUpdateLayout))
	assert.True(t, glasses.Accepts(core.IntentAdjustBrightness))
	assert.False(t, glasses.Accepts(core.IntentGesture))
	assert.False(t, ring.Accepts(core.IntentUpdateLayout))
	assert.True(t, ring.Accepts(core.IntentGesture))
	assert.True(t, watch.Accepts(core.IntentNotification))
	assert.False(t, watch.Accepts(core.IntentGesture))

	for _, c := range []core.Capabilities{glasses, ring, watch} {
		assert.True(t, c.Accepts(core.IntentToggleMute))
		assert.True(t, c.Accepts(core.IntentStateSync))
	}

	relay, ok := ring.RelayFor(core.IntentGesture)
	require.True(t, ok)
	assert.Equal(t, "ring_gesture", relay.Event)
	assert.Equal(t, []domain.DeviceKind{domain.KindGlasses}, relay.Targets)

	relay, ok = watch.RelayFor(core.IntentNotification)
	require.True(t, ok)
	assert.Equal(t, "watch_notification", relay.Event)

	_, ok = glasses.RelayFor(core.IntentUpdateLayout)
	assert.False(t, ok)
	assert.Nil(t, core.CapabilitiesFor("phone"))
}
