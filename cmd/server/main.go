package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/meetsync/internal/adapters/google"
	router "github.com/dkeye/meetsync/internal/adapters/http"
	"github.com/dkeye/meetsync/internal/app"
	"github.com/dkeye/meetsync/internal/app/orch"
	"github.com/dkeye/meetsync/internal/config"
	"github.com/dkeye/meetsync/internal/core"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Logger first so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil && cfg.LogLevel != "" {
		zerolog.SetGlobalLevel(lvl)
	}

	var (
		idp         core.IdentityProvider
		provisioner core.MeetingProvisioner
	)
	if cfg.Google.Enabled() {
		gcfg := google.Config{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			RedirectURL:  cfg.Google.RedirectURL,
			CalendarID:   cfg.Google.CalendarID,
		}
		idp = google.NewIdentityProvider(gcfg)
		provisioner = google.NewMeetingProvisioner(gcfg)
	} else {
		log.Warn().Msg("google client not configured, sign-in and provisioning disabled")
	}

	o := orch.New(core.NewRegistry(), app.PolicyByName(cfg.Backpressure), provisioner)
	o.ProvisionTimeout = cfg.ProvisionTimeout

	janitor := app.Janitor{Interval: cfg.SweepInterval, TTL: cfg.SessionIdleTTL, Sweep: o.Sweep}
	go janitor.Run(ctx)

	r := router.SetupRouter(ctx, cfg, o, idp)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Str("mode", cfg.Mode).Msg("meetsync server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
