package core

import (
	"context"

	"github.com/dkeye/meetsync/internal/domain"
)

// IdentityProvider exchanges OAuth codes for a user identity and credential.
type IdentityProvider interface {
	AuthURL(state string) string
	ExchangeCode(ctx context.Context, code string) (domain.Identity, domain.Credential, error)
	Refresh(ctx context.Context, cred domain.Credential) (domain.Credential, error)
}

// MeetingProvisioner creates a meeting on behalf of the credential owner.
// Errors wrap domain.ErrAuthExpired, domain.ErrPermissionDenied or
// domain.ErrProvisioningFailed.
type MeetingProvisioner interface {
	CreateMeeting(ctx context.Context, cred domain.Credential, req domain.MeetingRequest) (domain.Meeting, error)
}
