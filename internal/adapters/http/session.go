package http

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/dkeye/meetsync/internal/adapters/signal"
	"github.com/dkeye/meetsync/internal/domain"
)

// Keys of the cookie session.
const (
	keySessionID = "sid"
	keyUser      = "user"
	keyState     = "oauth_state"
)

// CookieResolver resolves the device's session from the cookie set by the
// OAuth callback. The cookie never carries the credential; the store keeps
// the one saved at sign-in.
type CookieResolver struct{}

func (CookieResolver) Resolve(c *gin.Context) (signal.SessionContext, error) {
	s := sessions.Default(c)
	sid, _ := s.Get(keySessionID).(string)
	if sid == "" {
		return signal.SessionContext{}, fmt.Errorf("%w: no session", domain.ErrAuthenticationFailure)
	}
	user, err := loadJSON[domain.Identity](s, keyUser)
	if err != nil || user.ID == "" {
		return signal.SessionContext{}, fmt.Errorf("%w: no identity on session", domain.ErrAuthenticationFailure)
	}
	return signal.SessionContext{ID: domain.SessionID(sid), User: user}, nil
}

// AnonymousSessionMiddleware gives every cookie-less client a throwaway
// identity so devices can connect without signing in.
func AnonymousSessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		s := sessions.Default(c)
		if sid, _ := s.Get(keySessionID).(string); sid == "" {
			sid = uuid.NewString()
			user := domain.Identity{ID: domain.UserID("anon-" + sid[:8]), Name: "anonymous"}
			s.Set(keySessionID, sid)
			if err := storeJSON(s, keyUser, user); err == nil {
				_ = s.Save()
			}
		}
		c.Next()
	}
}

// AdminAuth guards the admin API with a static bearer token.
func AdminAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

func storeJSON(s sessions.Session, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.Set(key, string(b))
	return nil
}

var errMissing = errors.New("missing session value")

func loadJSON[T any](s sessions.Session, key string) (T, error) {
	var out T
	raw, _ := s.Get(key).(string)
	if raw == "" {
		return out, errMissing
	}
	err := json.Unmarshal([]byte(raw), &out)
	return out, err
}
