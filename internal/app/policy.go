package app

import (
	"errors"

	"github.com/dkeye/meetsync/internal/core"
)

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	DropFrame
	DisconnectDevice
)

// Policy decides what happens to a device whose send failed during a fan-out.
type Policy interface {
	OnBackPressure(device core.DeviceSession, err error) BackpressureAction
}

// SimplePolicy disconnects every device that cannot take a frame.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(core.DeviceSession, error) BackpressureAction {
	return DisconnectDevice
}

// TolerantPolicy drops frames for slow devices and only disconnects closed ones.
// A device that lost a frame is not resynced; it catches up with the next
// full meeting state or on reconnect.
type TolerantPolicy struct{}

func (TolerantPolicy) OnBackPressure(_ core.DeviceSession, err error) BackpressureAction {
	if errors.Is(err, core.ErrBackpressure) {
		return DropFrame
	}
	return DisconnectDevice
}

// PolicyByName maps the configured backpressure policy name.
func PolicyByName(name string) Policy {
	if name == "drop" {
		return TolerantPolicy{}
	}
	return SimplePolicy{}
}
