// Command monitor is the secondary-host fallback monitor daemon: it runs
// the heartbeat record store, the HTTP ingress, the encoder supervisor,
// the decision engine, the broadcast recovery probe, and the
// ensure-broadcast self-check scheduled via cron, all inside a single
// process.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ausocean-mirror/streamguard/internal/broadcast"
	"github.com/ausocean-mirror/streamguard/internal/config"
	"github.com/ausocean-mirror/streamguard/internal/decision"
	"github.com/ausocean-mirror/streamguard/internal/httpapi"
	"github.com/ausocean-mirror/streamguard/internal/logging"
	"github.com/ausocean-mirror/streamguard/internal/platform"
	"github.com/ausocean-mirror/streamguard/internal/store"
	"github.com/ausocean-mirror/streamguard/internal/supervisor"
)

const shutdownDrain = 5 * time.Second

func main() {
	configPath := flag.String("config", "", "directory containing config.yaml")
	flag.Parse()

	cfg, err := config.LoadMonitor(*configPath)
	if err != nil {
		panic(err)
	}
	log := logging.New("monitor", cfg.LogFilePath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	recordStore := store.New(cfg.HistoryWindow(), cfg.MaxRecords, cfg.StateFilePath, log)
	recordStore.Load()

	svc := supervisor.New(cfg.SecondaryUnit, log)

	var hinter decision.RecoveryHinter
	if cfg.OAuthTokenFile != "" && cfg.StreamID != "" {
		creds, err := platform.LoadCredentials(cfg.OAuthTokenFile)
		if err != nil {
			log.Error().Err(err).Msg("platform credentials unavailable; recovery hints disabled")
		} else {
			client := platform.NewClient(creds)
			hinter = broadcast.NewRecoveryProbe(client, cfg.StreamID, log)
		}
	}

	engine := decision.New(decision.Config{
		MissedThreshold:      cfg.MissedThreshold(),
		RecoveryReports:      cfg.RecoveryReports,
		CheckInterval:        cfg.CheckInterval(),
		Cooldown:             cfg.Cooldown(),
		RecoveryHintCooldown: cfg.RecoveryHintCooldown(),
	}, recordStore, svc, hinter, log)

	server := httpapi.New(httpapi.Config{
		Bind:         cfg.Bind,
		Port:         cfg.Port,
		Token:        cfg.Token,
		RequireToken: cfg.RequireToken,
	}, recordStore, recordStore, engine, log)

	var c *cron.Cron
	if cfg.EnsureBroadcastCron != "" && cfg.OAuthTokenFile != "" && cfg.StreamID != "" {
		creds, err := platform.LoadCredentials(cfg.OAuthTokenFile)
		if err != nil {
			log.Error().Err(err).Msg("platform credentials unavailable; ensure-broadcast cron disabled")
		} else {
			client := platform.NewClient(creds)
			probe := broadcast.NewEnsureBroadcast(client, cfg.StreamID, log)
			c = cron.New()
			_, err := c.AddFunc(cfg.EnsureBroadcastCron, func() {
				checkCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				if category, err := probe.Check(checkCtx); err != nil {
					log.Warn().Str("category", string(category)).Err(err).Msg("scheduled ensure-broadcast check failed")
				}
			})
			if err != nil {
				log.Error().Err(err).Msg("invalid ensureBroadcastCron expression; scheduled check disabled")
				c = nil
			} else {
				c.Start()
			}
		}
	}

	go engine.Run(ctx)

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server stopped unexpectedly")
		}
	}()

	log.Info().Msg("monitor started")
	<-ctx.Done()
	log.Info().Msg("shutdown signal received, draining")

	if err := server.Shutdown(shutdownDrain); err != nil {
		log.Error().Err(err).Msg("error during http server shutdown")
	}
	if c != nil {
		cronCtx := c.Stop()
		<-cronCtx.Done()
	}
	log.Info().Msg("monitor stopped")
}
