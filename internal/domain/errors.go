package domain

import "errors"

var (
	ErrSessionNotFound       = errors.New("session not found")
	ErrAuthenticationFailure = errors.New("authentication failure")
	ErrProvisioningFailed    = errors.New("meeting provisioning failed")
	ErrAuthExpired           = errors.New("authentication expired")
	ErrPermissionDenied      = errors.New("permission denied")
	ErrTransportFailure      = errors.New("transport failure")

	ErrUnsupportedIntent = errors.New("intent not supported by device kind")
	ErrRateLimited       = errors.New("too many requests")
	ErrBadPayload        = errors.New("bad payload")
	ErrUnknownDeviceKind = errors.New("unknown device kind")
	ErrMeetingIDEmpty    = errors.New("meeting id empty")
	ErrIdentityEmpty     = errors.New("identity empty")
	ErrIdentityTooLong   = errors.New("identity too long")
)

// Wire names of the error kinds carried by the "error" event.
const (
	KindSessionNotFound       = "SessionNotFound"
	KindAuthenticationFailure = "AuthenticationFailure"
	KindProvisioningFailed    = "ProvisioningFailed"
	KindAuthExpired           = "AuthExpired"
	KindPermissionDenied      = "PermissionDenied"
	KindTransportFailure      = "TransportFailure"
	KindUnsupported           = "Unsupported"
	KindRateLimited           = "RateLimited"
	KindBadPayload            = "BadPayload"
	KindInternal              = "Internal"
)

var errorKinds = []struct {
	err  error
	kind string
}{
	{ErrSessionNotFound, KindSessionNotFound},
	{ErrAuthenticationFailure, KindAuthenticationFailure},
	{ErrUnknownDeviceKind, KindAuthenticationFailure},
	{ErrAuthExpired, KindAuthExpired},
	{ErrPermissionDenied, KindPermissionDenied},
	{ErrProvisioningFailed, KindProvisioningFailed},
	{ErrTransportFailure, KindTransportFailure},
	{ErrUnsupportedIntent, KindUnsupported},
	{ErrRateLimited, KindRateLimited},
	{ErrBadPayload, KindBadPayload},
	{ErrMeetingIDEmpty, KindBadPayload},
}

// ErrorKind maps an error chain to its wire kind.
func ErrorKind(err error) string {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}
