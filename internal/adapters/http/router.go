package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/meetsync/internal/adapters/signal"
	"github.com/dkeye/meetsync/internal/app/orch"
	"github.com/dkeye/meetsync/internal/config"
	"github.com/dkeye/meetsync/internal/core"
)

const sessionCookie = "MeetSyncSession"

// SetupRouter wires every HTTP route. idp may be nil, in which case the
// Google sign-in routes are not registered.
func SetupRouter(ctx context.Context, cfg *config.Config, o *orch.Orchestrator, idp core.IdentityProvider) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   int((7 * 24 * time.Hour).Seconds()),
		HttpOnly: true,
		Secure:   cfg.Mode == "release",
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(sessionCookie, store))
	if cfg.AllowAnonymous {
		r.Use(AnonymousSessionMiddleware())
	}

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
	if cfg.Metrics.Enabled {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	h := &handlers{cfg: cfg, orch: o, idp: idp}
	if idp != nil {
		auth := r.Group("/auth")
		auth.GET("/google/login", h.login)
		auth.GET("/google/callback", h.callback)
		auth.POST("/refresh", h.refresh)
	}
	r.GET("/auth/user", h.user)
	r.POST("/auth/logout", h.logout)
	r.POST("/calendar/create-meeting", h.createMeeting)

	api := r.Group("/api")

	ctrl := signal.NewSignalWSController(o, CookieResolver{},
		signal.NewRateLimiter(cfg.ProvisionRateLimit, cfg.ProvisionRateInterval),
		signal.Options{
			ReadLimit:    cfg.ReadLimit,
			PingPeriod:   cfg.PingPeriod,
			WriteTimeout: cfg.WriteTimeout,
			SendBuffer:   cfg.SendBuffer,
			IdleAfter:    cfg.IdleAfter,
		})
	api.GET("/ws/signal", func(c *gin.Context) {
		log.Debug().Str("module", "adapters.http").Str("kind", c.Query("deviceKind")).Msg("ws signal endpoint hit")
		ctrl.HandleSignal(ctx, c)
	})

	if cfg.AdminToken != "" {
		admin := api.Group("/sessions", AdminAuth(cfg.AdminToken))
		admin.GET("", h.listSessions)
		admin.GET("/:id", h.getSession)
		admin.DELETE("/:id", h.deleteSession)
	}

	return r
}
