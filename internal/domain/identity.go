// Package domain contains entities and their merge rules, no transport or lifecycle logic.
package domain

import (
	"time"
)

const MaxUserIDLen = 128

type UserID string

// Identity is the opaque authenticated-user handle handed out by the identity provider.
type Identity struct {
	ID      UserID `json:"id"`
	Email   string `json:"email,omitempty"`
	Name    string `json:"name,omitempty"`
	Picture string `json:"picture,omitempty"`
}

func NewIdentity(id, email, name string) (Identity, error) {
	if len(id) == 0 {
		return Identity{}, ErrIdentityEmpty
	}
	if len(id) > MaxUserIDLen {
		return Identity{}, ErrIdentityTooLong
	}
	return Identity{ID: UserID(id), Email: email, Name: name}, nil
}

// Credential is the calendar-scoped credential. The core only passes it through.
type Credential struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	Expiry       time.Time `json:"expiry,omitzero"`
}

func (c Credential) IsZero() bool {
	return c.AccessToken == "" && c.RefreshToken == ""
}
