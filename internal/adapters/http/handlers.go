package http

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/meetsync/internal/app/orch"
	"github.com/dkeye/meetsync/internal/config"
	"github.com/dkeye/meetsync/internal/core"
	"github.com/dkeye/meetsync/internal/domain"
)

type handlers struct {
	cfg  *config.Config
	orch *orch.Orchestrator
	idp  core.IdentityProvider
}

func (h *handlers) login(c *gin.Context) {
	state := uuid.NewString()
	s := sessions.Default(c)
	s.Set(keyState, state)
	if err := s.Save(); err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("save oauth state")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session unavailable"})
		return
	}
	c.Redirect(http.StatusFound, h.idp.AuthURL(state))
}

func (h *handlers) callback(c *gin.Context) {
	s := sessions.Default(c)
	want, _ := s.Get(keyState).(string)
	s.Delete(keyState)
	if want == "" || c.Query("state") != want {
		h.loginFailed(c, errors.New("invalid oauth state"))
		return
	}
	if e := c.Query("error"); e != "" {
		h.loginFailed(c, errors.New(e))
		return
	}

	user, cred, err := h.idp.ExchangeCode(c.Request.Context(), c.Query("code"))
	if err != nil {
		h.loginFailed(c, err)
		return
	}

	sid, _ := s.Get(keySessionID).(string)
	if sid == "" {
		sid = uuid.NewString()
	}
	s.Set(keySessionID, sid)
	// the credential stays server side; the cookie only names the session
	if err := errors.Join(storeJSON(s, keyUser, user), s.Save()); err != nil {
		h.loginFailed(c, err)
		return
	}
	h.orch.Store.GetOrCreate(domain.SessionID(sid), user, cred)
	log.Info().Str("module", "adapters.http").Str("sid", sid).Str("user", string(user.ID)).Msg("signed in")
	c.Redirect(http.StatusFound, h.cfg.FrontendURL+"/#/dashboard")
}

func (h *handlers) loginFailed(c *gin.Context, err error) {
	log.Warn().Err(err).Str("module", "adapters.http").Msg("sign-in failed")
	_ = sessions.Default(c).Save()
	c.Redirect(http.StatusFound, h.cfg.FrontendURL+"/#/login?error="+url.QueryEscape(err.Error()))
}

func (h *handlers) user(c *gin.Context) {
	user, err := loadJSON[domain.Identity](sessions.Default(c), keyUser)
	if err != nil || user.ID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}
	c.JSON(http.StatusOK, user)
}

// logout tears the server session down, disconnecting every device of it.
func (h *handlers) logout(c *gin.Context) {
	s := sessions.Default(c)
	if sid, _ := s.Get(keySessionID).(string); sid != "" {
		h.orch.Teardown(domain.SessionID(sid))
	}
	s.Clear()
	s.Options(sessions.Options{Path: "/", MaxAge: -1})
	if err := s.Save(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to logout"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// session returns the server session named by the cookie.
func (h *handlers) session(c *gin.Context) (domain.Snapshot, bool) {
	sid, _ := sessions.Default(c).Get(keySessionID).(string)
	if sid == "" {
		return domain.Snapshot{}, false
	}
	snap, err := h.orch.Store.Get(domain.SessionID(sid))
	return snap, err == nil
}

func (h *handlers) refresh(c *gin.Context) {
	snap, ok := h.session(c)
	if !ok || snap.Credential.RefreshToken == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "No refresh token available"})
		return
	}
	next, err := h.idp.Refresh(c.Request.Context(), snap.Credential)
	if err != nil {
		log.Warn().Err(err).Str("module", "adapters.http").Msg("token refresh")
		c.JSON(statusFor(err), gin.H{"error": "Failed to refresh token"})
		return
	}
	if err := h.orch.Store.SetCredential(snap.ID, next); err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Str("sid", string(snap.ID)).Msg("store refreshed credential")
		c.JSON(statusFor(err), gin.H{"error": "Failed to refresh token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type createMeetingRequest struct {
	Title     string    `json:"title"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
}

type meetingDetails struct {
	MeetingID  domain.MeetingID `json:"meetingId"`
	MeetingURL string           `json:"meetingUrl"`
	Title      string           `json:"title"`
	StartTime  time.Time        `json:"startTime,omitzero"`
	EndTime    time.Time        `json:"endTime,omitzero"`
	CreatedAt  time.Time        `json:"createdAt"`
}

// createMeeting provisions a meeting without joining it.
func (h *handlers) createMeeting(c *gin.Context) {
	snap, ok := h.session(c)
	if !ok || snap.Credential.IsZero() {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}
	if snap.User.Email == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User email not found"})
		return
	}

	var body createMeetingRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "message": err.Error()})
			return
		}
	}

	m, err := h.orch.Provision(c.Request.Context(), snap.Credential, domain.MeetingRequest{
		Title:     body.Title,
		StartTime: body.StartTime,
		EndTime:   body.EndTime,
		Attendees: []string{snap.User.Email},
	})
	if err != nil {
		writeProvisioningError(c, err)
		return
	}
	c.JSON(http.StatusOK, meetingDetails{
		MeetingID:  m.ID,
		MeetingURL: m.URL,
		Title:      m.Title,
		StartTime:  m.StartTime,
		EndTime:    m.EndTime,
		CreatedAt:  time.Now().UTC(),
	})
}

func writeProvisioningError(c *gin.Context, err error) {
	switch domain.ErrorKind(err) {
	case domain.KindAuthExpired:
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication expired", "message": "Please sign in again"})
	case domain.KindPermissionDenied:
		c.JSON(http.StatusForbidden, gin.H{"error": "Permission denied", "message": "Missing required Google Calendar permissions"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create meeting", "message": err.Error()})
	}
}

func statusFor(err error) int {
	switch domain.ErrorKind(err) {
	case domain.KindAuthExpired, domain.KindAuthenticationFailure:
		return http.StatusUnauthorized
	case domain.KindPermissionDenied:
		return http.StatusForbidden
	case domain.KindSessionNotFound:
		return http.StatusNotFound
	case domain.KindBadPayload:
		return http.StatusBadRequest
	case domain.KindRateLimited:
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}

func (h *handlers) listSessions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sessions": h.orch.Store.List()})
}

func (h *handlers) getSession(c *gin.Context) {
	snap, err := h.orch.Store.Get(domain.SessionID(c.Param("id")))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *handlers) deleteSession(c *gin.Context) {
	sid := domain.SessionID(c.Param("id"))
	if !h.orch.Teardown(sid) {
		c.JSON(http.StatusNotFound, gin.H{"error": domain.ErrSessionNotFound.Error()})
		return
	}
	log.Info().Str("module", "adapters.http").Str("sid", string(sid)).Msg("session deleted by admin")
	c.Status(http.StatusNoContent)
}
