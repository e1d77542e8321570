package signal

import (
	"encoding/json"
	"fmt"

	"github.com/dkeye/meetsync/internal/core"
	"github.com/dkeye/meetsync/internal/domain"
)

func (ctl *SignalWSController) handleLayout(cl *client, raw json.RawMessage) error {
	var p core.LayoutPayload
	if err := decode(raw, &p); err != nil {
		return err
	}
	_, err := ctl.Orch.UpdateLayout(cl.ds, p.Layout)
	return err
}

func (ctl *SignalWSController) handleBrightness(cl *client, raw json.RawMessage) error {
	var p core.BrightnessPayload
	if err := decode(raw, &p); err != nil {
		return err
	}
	if p.Value == nil {
		return fmt.Errorf("%w: brightness value missing", domain.ErrBadPayload)
	}
	_, err := ctl.Orch.AdjustBrightness(cl.ds, *p.Value)
	return err
}

func (ctl *SignalWSController) handleGesture(cl *client, raw json.RawMessage) error {
	var p core.GesturePayload
	if err := decode(raw, &p); err != nil {
		return err
	}
	return ctl.Orch.RelayDeviceEvent(cl.ds, core.IntentGesture, p.GestureData)
}

func (ctl *SignalWSController) handleNotification(cl *client, raw json.RawMessage) error {
	var p core.NotificationPayload
	if err := decode(raw, &p); err != nil {
		return err
	}
	return ctl.Orch.RelayDeviceEvent(cl.ds, core.IntentNotification, p.NotificationData)
}
