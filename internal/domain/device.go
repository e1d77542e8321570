package domain

import (
	"strings"
	"time"
)

type (
	DeviceID   string
	DeviceKind string
)

const (
	KindGlasses DeviceKind = "glasses"
	KindWrist   DeviceKind = "wrist"
	KindRing    DeviceKind = "ring"
)

// ParseDeviceKind accepts "watch" as an older name for the wrist device.
func ParseDeviceKind(s string) (DeviceKind, error) {
	switch DeviceKind(strings.ToLower(strings.TrimSpace(s))) {
	case KindGlasses:
		return KindGlasses, nil
	case KindWrist, "watch":
		return KindWrist, nil
	case KindRing:
		return KindRing, nil
	}
	return "", ErrUnknownDeviceKind
}

// Device is one connected physical client. It is owned by the session it is
// attached to and disappears with its transport connection.
type Device struct {
	ID          DeviceID   `json:"deviceId"`
	Kind        DeviceKind `json:"deviceKind"`
	ConnectedAt time.Time  `json:"connectedAt"`
}

func NewDevice(id DeviceID, kind DeviceKind) Device {
	return Device{ID: id, Kind: kind, ConnectedAt: time.Now()}
}
