package orch

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/meetsync/internal/core"
	"github.com/dkeye/meetsync/internal/domain"
	"github.com/dkeye/meetsync/internal/metrics"
)

// JoinMeeting records the device as a participant of the meeting in p. With
// no meeting id a meeting is provisioned first; the session is checked again
// once provisioning returns since it may have been torn down meanwhile.
func (o *Orchestrator) JoinMeeting(ctx context.Context, ds core.DeviceSession, p core.JoinMeetingPayload) (domain.Snapshot, error) {
	sid := ds.SessionID()
	u := domain.MeetingUpdate{
		ID:        p.MeetingID,
		URL:       p.MeetingURL,
		Title:     p.Title,
		StartTime: p.StartTime,
		EndTime:   p.EndTime,
	}

	if u.ID == "" {
		snap, err := o.Store.Get(sid)
		if err != nil {
			return domain.Snapshot{}, err
		}
		req := domain.MeetingRequest{
			Title:     p.Title,
			StartTime: p.StartTime,
			EndTime:   p.EndTime,
			Attendees: p.Attendees,
		}
		if len(req.Attendees) == 0 && snap.User.Email != "" {
			req.Attendees = []string{snap.User.Email}
		}
		m, err := o.Provision(ctx, snap.Credential, req)
		if err != nil {
			return domain.Snapshot{}, err
		}
		u = domain.MeetingUpdate{
			ID:        m.ID,
			URL:       m.URL,
			Title:     m.Title,
			StartTime: m.StartTime,
			EndTime:   m.EndTime,
		}
	}

	me := ds.Meta()
	u.Participants = []domain.Participant{{Kind: me.Kind, DeviceID: me.ID}}
	snap, err := o.Store.UpdateMeetingState(sid, me.ID, u)
	if err != nil {
		return domain.Snapshot{}, err
	}
	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("device", string(me.ID)).Str("meeting", string(u.ID)).Msg("joined meeting")
	return snap, nil
}

// Provision asks the provisioning service for a new meeting. Errors always
// carry one of the provisioning kinds.
func (o *Orchestrator) Provision(ctx context.Context, cred domain.Credential, req domain.MeetingRequest) (domain.Meeting, error) {
	if o.Provisioner == nil {
		return domain.Meeting{}, fmt.Errorf("%w: no provisioner configured", domain.ErrProvisioningFailed)
	}
	if cred.IsZero() {
		return domain.Meeting{}, fmt.Errorf("%w: no credential on session", domain.ErrAuthExpired)
	}
	if o.ProvisionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.ProvisionTimeout)
		defer cancel()
	}

	start := time.Now()
	m, err := o.Provisioner.CreateMeeting(ctx, cred, req)
	if err != nil && domain.ErrorKind(err) == domain.KindInternal {
		err = fmt.Errorf("%w: %w", domain.ErrProvisioningFailed, err)
	}
	if err == nil && m.ID == "" {
		err = fmt.Errorf("%w: provider returned no meeting id", domain.ErrProvisioningFailed)
	}
	outcome := "ok"
	if err != nil {
		outcome = domain.ErrorKind(err)
	}
	metrics.Provisioning.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	if err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("outcome", outcome).Msg("provisioning failed")
		return domain.Meeting{}, err
	}
	return m, nil
}

// LeaveMeeting ends the meeting for the whole session.
func (o *Orchestrator) LeaveMeeting(ds core.DeviceSession) (domain.Snapshot, error) {
	return o.Store.EndMeeting(ds.SessionID(), ds.Meta().ID)
}

func (o *Orchestrator) StateSync(ds core.DeviceSession, blob domain.StateBlob) (domain.Snapshot, error) {
	// fields the device cannot set on its own are never taken from its mirror
	if o.allow(ds, core.IntentAdjustBrightness) != nil {
		blob.Brightness = nil
	}
	if o.allow(ds, core.IntentUpdateLayout) != nil {
		blob.Layout = nil
	}
	return o.Store.MergeState(ds.SessionID(), ds.Meta().ID, blob)
}
