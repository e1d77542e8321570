package signal

import "github.com/dkeye/meetsync/internal/core"

func (ctl *SignalWSController) handlePing(cl *client) error {
	ctl.sendJSON(cl, core.EventPong, nil)
	return nil
}

func (ctl *SignalWSController) handleWhoAmI(cl *client) error {
	info, err := ctl.Orch.WhoAmI(cl.ds)
	if err != nil {
		return err
	}
	ctl.sendJSON(cl, core.EventSessionInfo, info)
	return nil
}
