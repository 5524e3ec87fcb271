// Command ensurebroadcast is the one-shot self-check: it verifies
// the video platform has an active or upcoming broadcast bound to the
// configured stream, and exits non-zero with a category-specific code
// when it does not, so operators catch mis-configurations before air
// time. It is also invoked on a schedule from inside the monitor binary;
// this is the manual CLI entry point to the same check.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ausocean-mirror/streamguard/internal/broadcast"
	"github.com/ausocean-mirror/streamguard/internal/config"
	"github.com/ausocean-mirror/streamguard/internal/logging"
	"github.com/ausocean-mirror/streamguard/internal/platform"
)

func exitCode(cat broadcast.ExitCategory) int {
	switch cat {
	case broadcast.CategoryNone:
		return 0
	case broadcast.CategoryNoBroadcast:
		return 2
	case broadcast.CategoryWrongBinding:
		return 3
	case broadcast.CategoryAPIError:
		return 4
	default:
		return 1
	}
}

func main() {
	configPath := flag.String("config", "", "directory containing config.yaml")
	flag.Parse()

	cfg, err := config.LoadEnsureBroadcast(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "loading configuration:", err)
		os.Exit(1)
	}
	log := logging.New("ensurebroadcast", cfg.LogFilePath)

	creds, err := platform.LoadCredentials(cfg.OAuthTokenFile)
	if err != nil {
		log.Error().Err(err).Msg("loading platform credentials")
		os.Exit(1)
	}
	client := platform.NewClient(creds)
	probe := broadcast.NewEnsureBroadcast(client, cfg.StreamID, log)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	category, err := probe.Check(ctx)
	if err != nil {
		log.Error().Str("category", string(category)).Err(err).Msg("ensure-broadcast check failed")
	}
	os.Exit(exitCode(category))
}
