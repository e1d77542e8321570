package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/meetsync/internal/core"
	"github.com/dkeye/meetsync/internal/domain"
	"github.com/dkeye/meetsync/internal/metrics"
)

func (ctl *SignalWSController) writePump(ctx context.Context, cl *client) {
	ws := cl.conn.conn
	ticker := time.NewTicker(ctl.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		cl.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Str("device", string(cl.ds.Meta().ID)).Msg("writePump ctx done")
			_ = ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(ctl.opts.WriteTimeout))
			return
		case data, ok := <-cl.conn.send:
			if !ok {
				return
			}
			if err := ws.SetWriteDeadline(time.Now().Add(ctl.opts.WriteTimeout)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Warn().Err(err).Str("module", "signal").Str("device", string(cl.ds.Meta().ID)).Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(ctl.opts.WriteTimeout)); err != nil {
				log.Warn().Err(err).Str("module", "signal").Str("device", string(cl.ds.Meta().ID)).Msg("ping failed")
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(ctx context.Context, cl *client, cancel context.CancelFunc) {
	sid := cl.ds.SessionID()
	defer func() {
		cancel()
		cl.conn.Close()
		ctl.Orch.Detach(cl.ds)
		cl.state.set(StateDetached)
		log.Info().Str("module", "signal").Str("sid", string(sid)).Str("device", string(cl.ds.Meta().ID)).Msg("readPump closing")
	}()

	ws := cl.conn.conn
	if ctl.opts.ReadLimit > 0 {
		ws.SetReadLimit(ctl.opts.ReadLimit)
	}
	pongWait := ctl.opts.pongWait()
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	var idle *time.Timer
	if ctl.opts.IdleAfter > 0 {
		idle = time.AfterFunc(ctl.opts.IdleAfter, func() { cl.state.set(StateIdle) })
		defer idle.Stop()
	}

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && ctx.Err() == nil {
				log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("readPump read error")
			}
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))
		cl.state.set(StateActive)
		if idle != nil {
			idle.Reset(ctl.opts.IdleAfter)
		}
		ctl.handleSignal(ctx, cl, data)
	}
}

var knownIntents = map[string]bool{
	core.IntentJoinMeeting:      true,
	core.IntentLeaveMeeting:     true,
	core.IntentToggleMute:       true,
	core.IntentToggleVideo:      true,
	core.IntentUpdateLayout:     true,
	core.IntentAdjustBrightness: true,
	core.IntentGesture:          true,
	core.IntentNotification:     true,
	core.IntentStateSync:        true,
	core.IntentPing:             true,
	core.IntentWhoAmI:           true,
}

func (ctl *SignalWSController) handleSignal(ctx context.Context, cl *client, data []byte) {
	var msg core.Message
	if err := json.Unmarshal(data, &msg); err != nil || msg.Type == "" {
		metrics.Intents.WithLabelValues("invalid", domain.KindBadPayload).Inc()
		ctl.fail(cl, "", fmt.Errorf("%w: malformed envelope", domain.ErrBadPayload))
		return
	}

	label := msg.Type
	var err error
	switch {
	case !knownIntents[msg.Type]:
		label = "unknown"
		err = fmt.Errorf("%w: unknown intent %q", domain.ErrUnsupportedIntent, msg.Type)
	case !cl.ds.Capabilities().Accepts(msg.Type):
		err = fmt.Errorf("%w: %s from %s", domain.ErrUnsupportedIntent, msg.Type, cl.ds.Meta().Kind)
	default:
		err = ctl.dispatch(ctx, cl, msg)
	}

	outcome := "ok"
	if err != nil {
		outcome = domain.ErrorKind(err)
		ctl.fail(cl, msg.Type, err)
	}
	metrics.Intents.WithLabelValues(label, outcome).Inc()
}

func (ctl *SignalWSController) dispatch(ctx context.Context, cl *client, msg core.Message) error {
	switch msg.Type {
	case core.IntentJoinMeeting:
		return ctl.handleJoin(ctx, cl, msg.Payload)
	case core.IntentLeaveMeeting:
		return ctl.handleLeave(cl)
	case core.IntentStateSync:
		return ctl.handleStateSync(cl, msg.Payload)
	case core.IntentToggleMute:
		_, err := ctl.Orch.ToggleMute(cl.ds)
		return err
	case core.IntentToggleVideo:
		_, err := ctl.Orch.ToggleVideo(cl.ds)
		return err
	case core.IntentUpdateLayout:
		return ctl.handleLayout(cl, msg.Payload)
	case core.IntentAdjustBrightness:
		return ctl.handleBrightness(cl, msg.Payload)
	case core.IntentGesture:
		return ctl.handleGesture(cl, msg.Payload)
	case core.IntentNotification:
		return ctl.handleNotification(cl, msg.Payload)
	case core.IntentPing:
		return ctl.handlePing(cl)
	case core.IntentWhoAmI:
		return ctl.handleWhoAmI(cl)
	}
	return fmt.Errorf("%w: %s", domain.ErrUnsupportedIntent, msg.Type)
}

// decode unmarshals a required payload.
func decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return fmt.Errorf("%w: missing payload", domain.ErrBadPayload)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrBadPayload, err)
	}
	return nil
}

// fail reports err to the originating device as an error event.
func (ctl *SignalWSController) fail(cl *client, intent string, err error) {
	kind := domain.ErrorKind(err)
	log.Warn().Err(err).Str("module", "signal").Str("sid", string(cl.ds.SessionID())).
		Str("device", string(cl.ds.Meta().ID)).Str("intent", intent).Str("kind", kind).Msg("intent failed")
	ctl.sendJSON(cl, core.EventError, core.ErrorPayload{Kind: kind, Message: err.Error()})
}

func (ctl *SignalWSController) sendJSON(cl *client, event string, v any) {
	if err := ctl.Orch.Broadcaster.SendTo(cl.ds, event, v); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("event", event).Msg("sendJSON")
	}
}
