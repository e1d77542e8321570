package google

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	"github.com/dkeye/meetsync/internal/domain"
)

// IdentityProvider signs users in with Google and reads their profile.
type IdentityProvider struct {
	conf *oauth2.Config
	opts []option.ClientOption
}

// NewIdentityProvider builds the provider; opts are passed to the userinfo client.
func NewIdentityProvider(cfg Config, opts ...option.ClientOption) *IdentityProvider {
	return &IdentityProvider{conf: oauthConfig(cfg), opts: opts}
}

// AuthURL asks for offline access and forces the consent screen so a refresh
// token is issued on every login.
func (p *IdentityProvider) AuthURL(state string) string {
	return p.conf.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

func (p *IdentityProvider) ExchangeCode(ctx context.Context, code string) (domain.Identity, domain.Credential, error) {
	tok, err := p.conf.Exchange(ctx, code)
	if err != nil {
		return domain.Identity{}, domain.Credential{}, classify(err, domain.ErrAuthenticationFailure)
	}

	opts := append([]option.ClientOption{option.WithTokenSource(p.conf.TokenSource(ctx, tok))}, p.opts...)
	svc, err := oauth2api.NewService(ctx, opts...)
	if err != nil {
		return domain.Identity{}, domain.Credential{}, fmt.Errorf("userinfo client: %w", err)
	}
	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return domain.Identity{}, domain.Credential{}, classify(err, domain.ErrAuthenticationFailure)
	}

	id, err := domain.NewIdentity(info.Id, info.Email, info.Name)
	if err != nil {
		return domain.Identity{}, domain.Credential{}, fmt.Errorf("%w: %w", domain.ErrAuthenticationFailure, err)
	}
	id.Picture = info.Picture
	return id, fromToken(tok), nil
}

// Refresh trades the refresh token for a new access token. A refresh token
// the server no longer honours yields domain.ErrAuthExpired.
func (p *IdentityProvider) Refresh(ctx context.Context, cred domain.Credential) (domain.Credential, error) {
	if cred.RefreshToken == "" {
		return domain.Credential{}, fmt.Errorf("%w: no refresh token", domain.ErrAuthExpired)
	}
	stale := toToken(cred)
	stale.Expiry = time.Now().Add(-time.Minute)

	tok, err := p.conf.TokenSource(ctx, stale).Token()
	if err != nil {
		return domain.Credential{}, classify(err, domain.ErrAuthExpired)
	}
	out := fromToken(tok)
	if out.RefreshToken == "" {
		out.RefreshToken = cred.RefreshToken
	}
	return out, nil
}
