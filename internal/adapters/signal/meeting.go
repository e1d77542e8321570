package signal

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/meetsync/internal/core"
	"github.com/dkeye/meetsync/internal/domain"
)

// handleJoin joins the meeting named in the payload, or provisions a new one
// when no meeting id is given.
func (ctl *SignalWSController) handleJoin(ctx context.Context, cl *client, raw json.RawMessage) error {
	var p core.JoinMeetingPayload
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &p); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrBadPayload, err)
		}
	}
	if p.MeetingID == "" && !ctl.Limiter.Allow(cl.ds.SessionID()) {
		return fmt.Errorf("%w: meeting creation", domain.ErrRateLimited)
	}

	snap, err := ctl.Orch.JoinMeeting(ctx, cl.ds, p)
	if err != nil {
		return err
	}
	log.Info().Str("module", "signal").Str("sid", string(snap.ID)).Str("device", string(cl.ds.Meta().ID)).
		Str("meeting", string(snap.Meeting.ID)).Msg("join")
	return nil
}

func (ctl *SignalWSController) handleLeave(cl *client) error {
	_, err := ctl.Orch.LeaveMeeting(cl.ds)
	if err == nil {
		log.Info().Str("module", "signal").Str("sid", string(cl.ds.SessionID())).Str("device", string(cl.ds.Meta().ID)).Msg("leave")
	}
	return err
}

func (ctl *SignalWSController) handleStateSync(cl *client, raw json.RawMessage) error {
	var blob domain.StateBlob
	if err := decode(raw, &blob); err != nil {
		return err
	}
	_, err := ctl.Orch.StateSync(cl.ds, blob)
	return err
}
