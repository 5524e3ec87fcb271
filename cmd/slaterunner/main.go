// Command slaterunner is the long-lived encoder supervisor for the
// backup channel: it launches and rotates the slate encoder child while
// the fallback path is active.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/ausocean-mirror/streamguard/internal/config"
	streamguarderrors "github.com/ausocean-mirror/streamguard/internal/errors"
	"github.com/ausocean-mirror/streamguard/internal/logging"
	"github.com/ausocean-mirror/streamguard/internal/slate"
)

func main() {
	configPath := flag.String("config", "", "directory containing config.yaml")
	flag.Parse()

	cfg, err := config.LoadSlateRunner(*configPath)
	if err != nil {
		panic(err)
	}
	log := logging.New("slaterunner", cfg.LogFilePath)

	profile, err := slate.LoadProfile(cfg.ProfilePath, *cfg)
	if err != nil {
		log.Fatal().Err(streamguarderrors.New(streamguarderrors.ConfigurationInvalid, err)).
			Str("kind", string(streamguarderrors.ConfigurationInvalid)).
			Msg("encoder profile invalid at startup")
	}

	mode := slate.NewModeWatcher(cfg.FallbackModeFile, cfg.DefaultMode, log)
	ctx := context.Background()
	go mode.Watch(ctx)

	runner := slate.New(*cfg, profile, mode, log)

	log.Info().Str("mode", string(mode.Current())).Msg("slate runner started")
	code := runner.Run(ctx)
	log.Info().Int("code", code).Msg("slate runner stopped")
	os.Exit(code)
}
