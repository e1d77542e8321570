package signal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/meetsync/internal/app/orch"
	"github.com/dkeye/meetsync/internal/core"
	"github.com/dkeye/meetsync/internal/domain"
)

// Options tune the per-connection pumps.
type Options struct {
	ReadLimit    int64
	PingPeriod   time.Duration
	WriteTimeout time.Duration
	SendBuffer   int
	// IdleAfter moves a connection to Idle when no frame arrived for that long.
	IdleAfter time.Duration
}

func (o Options) withDefaults() Options {
	if o.PingPeriod <= 0 {
		o.PingPeriod = 54 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 5 * time.Second
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 32
	}
	return o
}

// pongWait must exceed PingPeriod so a healthy peer always answers in time.
func (o Options) pongWait() time.Duration { return o.PingPeriod * 10 / 9 }

type SignalWSController struct {
	Orch     *orch.Orchestrator
	Resolver SessionResolver
	// Limiter throttles meeting provisioning per session; nil disables it.
	Limiter *RateLimiter
	opts    Options
}

func NewSignalWSController(o *orch.Orchestrator, resolver SessionResolver, limiter *RateLimiter, opts Options) *SignalWSController {
	return &SignalWSController{
		Orch:     o,
		Resolver: resolver,
		Limiter:  limiter,
		opts:     opts.withDefaults(),
	}
}

// WsSignalConn is the core.SignalConnection over a websocket. Frames are
// queued on a bounded channel drained by the write pump.
type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func newWsSignalConn(ws *websocket.Conn, buffer int) *WsSignalConn {
	return &WsSignalConn{conn: ws, send: make(chan core.Frame, buffer)}
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return core.ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
}

// client is one attached device connection.
type client struct {
	conn  *WsSignalConn
	ds    core.DeviceSession
	state *connState
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal upgrades the request and runs the device connection until it
// closes or ctx is done.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	st := newConnState()
	sc, err := ctl.resolve(c)
	var kind domain.DeviceKind
	if err == nil {
		kind, err = domain.ParseDeviceKind(c.Query("deviceKind"))
	}

	ws, upErr := upgrader.Upgrade(c.Writer, c.Request, nil)
	if upErr != nil {
		log.Error().Err(upErr).Str("module", "signal").Msg("ws upgrade")
		return
	}
	if err != nil {
		ctl.reject(ws, err)
		st.set(StateDetached)
		return
	}

	conn := newWsSignalConn(ws, ctl.opts.SendBuffer)
	connCtx, cancel := context.WithCancel(ctx)
	ds, err := ctl.Orch.Attach(sc.ID, sc.User, sc.Credential, kind, conn, cancel)
	if err != nil {
		cancel()
		ctl.reject(ws, err)
		st.set(StateDetached)
		return
	}
	st.bind(ds)
	st.set(StateAttached)

	cl := &client{conn: conn, ds: ds, state: st}
	go ctl.writePump(connCtx, cl)
	go ctl.readPump(connCtx, cl, cancel)
}

func (ctl *SignalWSController) resolve(c *gin.Context) (SessionContext, error) {
	if ctl.Resolver == nil {
		return SessionContext{}, fmt.Errorf("%w: no session resolver", domain.ErrAuthenticationFailure)
	}
	sc, err := ctl.Resolver.Resolve(c)
	if err == nil && sc.ID == "" {
		err = errors.New("empty session id")
	}
	if err != nil && domain.ErrorKind(err) == domain.KindInternal {
		err = fmt.Errorf("%w: %w", domain.ErrAuthenticationFailure, err)
	}
	return sc, err
}

// reject tells the peer why and closes the socket without attaching.
func (ctl *SignalWSController) reject(ws *websocket.Conn, err error) {
	defer ws.Close()
	kind := domain.ErrorKind(err)
	log.Warn().Err(err).Str("module", "signal").Str("kind", kind).Msg("connection rejected")

	frame, encErr := core.Encode(core.EventError, core.ErrorPayload{Kind: kind, Message: err.Error()})
	if encErr != nil {
		return
	}
	deadline := time.Now().Add(ctl.opts.WriteTimeout)
	_ = ws.SetWriteDeadline(deadline)
	if err := ws.WriteMessage(websocket.TextMessage, frame); err != nil {
		return
	}
	_ = ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, kind), deadline)
}
