// Package google implements the identity provider and the meeting
// provisioner on top of Google OAuth and Calendar.
package google

import (
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	oauth2api "google.golang.org/api/oauth2/v2"

	"github.com/dkeye/meetsync/internal/domain"
)

type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	CalendarID   string
}

// Scopes requested at login: profile for the identity, calendar for provisioning.
var Scopes = []string{
	oauth2api.UserinfoProfileScope,
	oauth2api.UserinfoEmailScope,
	calendar.CalendarScope,
	calendar.CalendarEventsScope,
}

func oauthConfig(cfg Config) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Endpoint:     googleoauth.Endpoint,
		Scopes:       Scopes,
	}
}

func toToken(c domain.Credential) *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		TokenType:    c.TokenType,
		Expiry:       c.Expiry,
	}
}

func fromToken(t *oauth2.Token) domain.Credential {
	return domain.Credential{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
		Expiry:       t.Expiry,
	}
}

// classify maps Google and OAuth failures onto the domain taxonomy, falling
// back to fallback.
func classify(err error, fallback error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusUnauthorized:
			return fmt.Errorf("%w: %w", domain.ErrAuthExpired, err)
		case http.StatusForbidden:
			return fmt.Errorf("%w: %w", domain.ErrPermissionDenied, err)
		}
	}
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		if rerr.ErrorCode == "invalid_grant" || (rerr.Response != nil && rerr.Response.StatusCode == http.StatusUnauthorized) {
			return fmt.Errorf("%w: %w", domain.ErrAuthExpired, err)
		}
	}
	return fmt.Errorf("%w: %w", fallback, err)
}
