package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/meetsync/internal/adapters/signal"
	"github.com/dkeye/meetsync/internal/app/orch"
	"github.com/dkeye/meetsync/internal/core"
	"github.com/dkeye/meetsync/internal/domain"
)

func newSignalServer(t *testing.T) string {
	t.Helper()
	gin.SetMode(gin.TestMode)
	o := orch.New(core.NewRegistry(), nil, nil)
	resolver := signal.ResolverFunc(func(c *gin.Context) (signal.SessionContext, error) {
		return signal.SessionContext{ID: domain.SessionID(c.GetHeader("X-Session")), User: domain.Identity{ID: "alice"}}, nil
	})
	ctl := signal.NewSignalWSController(o, resolver, nil, signal.Options{})

	ctx, cancel := context.WithCancel(context.Background())
	r := gin.New()
	r.GET("/api/ws/signal", func(c *gin.Context) { ctl.HandleSignal(ctx, c) })
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws/signal"
}

func connect(t *testing.T, url string, kind domain.DeviceKind) *Agent {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	conn, err := Dial(ctx, url, kind, http.Header{"X-Session": {"s1"}})
	require.NoError(t, err)
	a := New(kind, conn)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = conn.Run(ctx, a)
	}()
	t.Cleanup(func() {
		_ = conn.Close()
		cancel()
		wg.Wait()
	})
	return a
}

func TestConn_DevicesConverge(t *testing.T) {
	url := newSignalServer(t)
	glasses := connect(t, url, domain.KindGlasses)
	ring := connect(t, url, domain.KindRing)

	gestures := make(chan Event, 1)
	glasses.OnEvent(func(e Event) {
		if e.Type == core.EventRingGesture {
			gestures <- e
		}
	})

	require.Eventually(t, func() bool { return len(glasses.State().Devices) == 2 || len(ring.State().Devices) == 2 },
		2*time.Second, 10*time.Millisecond)

	require.NoError(t, glasses.Join("m1", "https://meet.example/m1", "standup"))
	require.Eventually(t, func() bool {
		m := ring.State().Meeting
		return m != nil && m.ID == "m1"
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, ring.ToggleMute())
	assert.Eventually(t, func() bool { return glasses.State().Muted }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, ring.Gesture(json.RawMessage(`{"tap":1}`)))
	select {
	case e := <-gestures:
		var p core.DeviceEventPayload
		require.NoError(t, json.Unmarshal(e.Payload, &p))
		assert.Equal(t, domain.KindRing, p.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("gesture not relayed")
	}

	require.NoError(t, ring.WhoAmI())
	assert.Eventually(t, func() bool { return ring.State().DeviceID != "" }, 2*time.Second, 10*time.Millisecond)
}
