// Command hbreporter runs on the primary host alongside the streaming
// worker process and posts periodic heartbeats to the fallback monitor.
package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"github.com/ausocean-mirror/streamguard/internal/config"
	"github.com/ausocean-mirror/streamguard/internal/logging"
	"github.com/ausocean-mirror/streamguard/internal/reporter"
)

func main() {
	configPath := flag.String("config", "", "directory containing config.yaml")
	flag.Parse()

	cfg, err := config.LoadReporter(*configPath)
	if err != nil {
		panic(err)
	}
	log := logging.New("hbreporter", cfg.LogFilePath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	source := reporter.NewLocalStatus(cfg.WorkerStatusFile, log)
	r := reporter.New(*cfg, source, log)

	log.Info().Msg("heartbeat reporter started")
	r.Run(ctx)
	log.Info().Msg("heartbeat reporter stopped")
}
