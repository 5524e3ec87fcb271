package slate

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ausocean-mirror/streamguard/internal/config"
)

// Profile is the parsed shell-style KEY=VALUE encoder profile file,
// resolved against the runner's configured output-parameter defaults.
type Profile struct {
	Values map[string]string

	// Key and URL are derived: Key is the sanitized YT_KEY, URL is the
	// backup-ingest URL built from it and the configured backup base.
	Key string
	URL string

	// Output parameters for the encoder invocation. Each is taken from the
	// profile file's KEY=VALUE overrides when present, otherwise from the
	// runner's configured defaults.
	Width                   int
	Height                  int
	FPS                     int
	VideoBitrate            string
	AudioBitrate            string
	KeyframeIntervalSeconds int
	Preset                  string
	OverlayText             string
	DelaySeconds            int
}

// LoadProfile reads a shell-style KEY=VALUE file (blank lines and lines
// starting with "#" are ignored), requires a non-empty YT_KEY, sanitizes
// it, and derives YT_URL against cfg.BackupBaseURL. Output parameters
// (WIDTH, HEIGHT, FPS, VIDEO_BITRATE, AUDIO_BITRATE,
// KEYFRAME_INTERVAL_SECONDS, PRESET, OVERLAY_TEXT, DELAY_SECONDS) may be
// overridden per-profile; any left unset fall back to cfg.
func LoadProfile(path string, cfg config.SlateRunner) (*Profile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening encoder profile: %w", err)
	}
	defer f.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		values[strings.TrimSpace(k)] = strings.Trim(strings.TrimSpace(v), `"'`)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading encoder profile: %w", err)
	}

	rawKey, ok := values["YT_KEY"]
	if !ok || strings.TrimSpace(rawKey) == "" {
		return nil, fmt.Errorf("encoder profile missing required YT_KEY")
	}

	key, err := SanitizeKey(rawKey)
	if err != nil {
		return nil, fmt.Errorf("sanitizing YT_KEY: %w", err)
	}

	url, err := NormalizeURL(cfg.BackupBaseURL, key)
	if err != nil {
		return nil, fmt.Errorf("normalizing YT_URL: %w", err)
	}
	values["YT_URL"] = url

	return &Profile{
		Values:                  values,
		Key:                     key,
		URL:                     url,
		Width:                   intOverride(values, "WIDTH", cfg.Width),
		Height:                  intOverride(values, "HEIGHT", cfg.Height),
		FPS:                     intOverride(values, "FPS", cfg.FPS),
		VideoBitrate:            stringOverride(values, "VIDEO_BITRATE", cfg.VideoBitrate),
		AudioBitrate:            stringOverride(values, "AUDIO_BITRATE", cfg.AudioBitrate),
		KeyframeIntervalSeconds: intOverride(values, "KEYFRAME_INTERVAL_SECONDS", cfg.KeyframeIntervalSeconds),
		Preset:                  stringOverride(values, "PRESET", cfg.Preset),
		OverlayText:             stringOverride(values, "OVERLAY_TEXT", cfg.OverlayText),
		DelaySeconds:            intOverride(values, "DELAY_SECONDS", cfg.DelaySeconds),
	}, nil
}

// intOverride returns the parsed integer for key in values, or fallback if
// the key is absent or not a valid integer.
func intOverride(values map[string]string, key string, fallback int) int {
	raw, ok := values[key]
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}
	return n
}

// stringOverride returns values[key], or fallback if the key is absent or
// blank.
func stringOverride(values map[string]string, key, fallback string) string {
	raw, ok := values[key]
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback
	}
	return raw
}
