// Package config loads the settings for each of the four streamguard
// binaries through viper using a layered-override pattern: defaults set
// in code, overridden by a YAML file, overridden by environment variables
// under a per-binary prefix.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Monitor holds the secondary-host fallback monitor daemon's settings.
type Monitor struct {
	Bind string `mapstructure:"bind"`
	Port string `mapstructure:"port"`

	HistoryWindowSeconds int `mapstructure:"historyWindowSeconds"`
	MaxRecords           int `mapstructure:"maxRecords"`

	MissedThresholdSeconds      int `mapstructure:"missedThresholdSeconds"`
	RecoveryReports             int `mapstructure:"recoveryReports"`
	CheckIntervalSeconds        int `mapstructure:"checkIntervalSeconds"`
	CooldownSeconds             int `mapstructure:"cooldownSeconds"`
	RecoveryHintCooldownSeconds int `mapstructure:"recoveryHintCooldownSeconds"`

	StateFilePath string `mapstructure:"stateFilePath"`
	LogFilePath   string `mapstructure:"logFilePath"`
	SecondaryUnit string `mapstructure:"secondaryUnit"`

	Token         string `mapstructure:"token"`
	RequireToken  bool   `mapstructure:"requireToken"`

	StreamID            string `mapstructure:"streamID"`
	OAuthTokenFile      string `mapstructure:"oauthTokenFile"`
	EnsureBroadcastCron string `mapstructure:"ensureBroadcastCron"`
}

// MissedThreshold returns MissedThresholdSeconds as a time.Duration.
func (m Monitor) MissedThreshold() time.Duration {
	return time.Duration(m.MissedThresholdSeconds) * time.Second
}

// CheckInterval returns CheckIntervalSeconds as a time.Duration.
func (m Monitor) CheckInterval() time.Duration {
	return time.Duration(m.CheckIntervalSeconds) * time.Second
}

// Cooldown returns CooldownSeconds as a time.Duration.
func (m Monitor) Cooldown() time.Duration {
	return time.Duration(m.CooldownSeconds) * time.Second
}

// RecoveryHintCooldown returns RecoveryHintCooldownSeconds as a time.Duration.
func (m Monitor) RecoveryHintCooldown() time.Duration {
	return time.Duration(m.RecoveryHintCooldownSeconds) * time.Second
}

// HistoryWindow returns HistoryWindowSeconds as a time.Duration.
func (m Monitor) HistoryWindow() time.Duration {
	return time.Duration(m.HistoryWindowSeconds) * time.Second
}

// Reporter holds the primary-host heartbeat reporter's settings.
type Reporter struct {
	MonitorBaseURL     string `mapstructure:"monitorBaseURL"`
	Token              string `mapstructure:"token"`
	ReportIntervalSec  int    `mapstructure:"reportIntervalSeconds"`
	MaxBackoffSeconds  int    `mapstructure:"maxBackoffSeconds"`
	CameraPingEnabled  bool   `mapstructure:"cameraPingEnabled"`
	CameraPingHost     string `mapstructure:"cameraPingHost"`
	WorkerStatusFile   string `mapstructure:"workerStatusFile"`
	LogFilePath        string `mapstructure:"logFilePath"`
}

// ReportInterval returns ReportIntervalSec as a time.Duration.
func (r Reporter) ReportInterval() time.Duration {
	return time.Duration(r.ReportIntervalSec) * time.Second
}

// MaxBackoff returns MaxBackoffSeconds as a time.Duration.
func (r Reporter) MaxBackoff() time.Duration {
	return time.Duration(r.MaxBackoffSeconds) * time.Second
}

// SlateRunner holds the slate encoder runner's settings.
type SlateRunner struct {
	ProfilePath       string `mapstructure:"profilePath"`
	FallbackModeFile  string `mapstructure:"fallbackModeFile"`
	ProgressFilePath  string `mapstructure:"progressFilePath"`
	ProgressIntervalS int    `mapstructure:"progressIntervalSeconds"`
	RetryDelaySeconds int    `mapstructure:"retryDelaySeconds"`
	DefaultMode       string `mapstructure:"defaultMode"`
	FFmpegPath        string `mapstructure:"ffmpegPath"`
	BackupBaseURL     string `mapstructure:"backupBaseURL"`
	LogFilePath       string `mapstructure:"logFilePath"`

	// DurationPerSceneSeconds bounds how long each scene in the rotation
	// runs before the runner cycles to the next one.
	DurationPerSceneSeconds int `mapstructure:"durationPerSceneSeconds"`

	// Output parameters for the encoder invocation; overridable per-profile
	// via the encoder profile file.
	Width                   int    `mapstructure:"width"`
	Height                  int    `mapstructure:"height"`
	FPS                     int    `mapstructure:"fps"`
	VideoBitrate            string `mapstructure:"videoBitrate"`
	AudioBitrate            string `mapstructure:"audioBitrate"`
	KeyframeIntervalSeconds int    `mapstructure:"keyframeIntervalSeconds"`
	Preset                  string `mapstructure:"preset"`
	OverlayText             string `mapstructure:"overlayText"`
	DelaySeconds            int    `mapstructure:"delaySeconds"`
}

// ProgressInterval returns ProgressIntervalS as a time.Duration.
func (s SlateRunner) ProgressInterval() time.Duration {
	return time.Duration(s.ProgressIntervalS) * time.Second
}

// RetryDelay returns RetryDelaySeconds as a time.Duration.
func (s SlateRunner) RetryDelay() time.Duration {
	return time.Duration(s.RetryDelaySeconds) * time.Second
}

// DurationPerScene returns DurationPerSceneSeconds as a time.Duration.
func (s SlateRunner) DurationPerScene() time.Duration {
	return time.Duration(s.DurationPerSceneSeconds) * time.Second
}

// EnsureBroadcast holds the one-shot ensure-broadcast probe's settings.
type EnsureBroadcast struct {
	StreamID       string `mapstructure:"streamID"`
	OAuthTokenFile string `mapstructure:"oauthTokenFile"`
	LogFilePath    string `mapstructure:"logFilePath"`
}

// loader centralizes the viper plumbing shared by every binary: defaults,
// an optional YAML file, then environment variables under prefix, in
// priority order (env vars > file > defaults).
func loader(configPath, prefix string, defaults map[string]any) (*viper.Viper, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(prefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv alone does not make Unmarshal see keys that have neither
	// a default nor a file value, so every prefixed variable is bound.
	for _, kv := range os.Environ() {
		name, _, _ := strings.Cut(kv, "=")
		if key, ok := strings.CutPrefix(name, prefix+"_"); ok && key != "" {
			if err := v.BindEnv(strings.ToLower(key)); err != nil {
				return nil, fmt.Errorf("binding environment variable %s: %w", name, err)
			}
		}
	}

	return v, nil
}

// LoadMonitor loads the monitor daemon's configuration.
func LoadMonitor(configPath string) (*Monitor, error) {
	v, err := loader(configPath, "FALLBACKMON", map[string]any{
		"bind":                         "0.0.0.0",
		"port":                         "8090",
		"historyWindowSeconds":         300,
		"maxRecords":                   512,
		"missedThresholdSeconds":       40,
		"recoveryReports":              2,
		"checkIntervalSeconds":         5,
		"cooldownSeconds":              30,
		"recoveryHintCooldownSeconds":  300,
		"stateFilePath":                "/var/lib/streamguard/heartbeats.json",
		"logFilePath":                  "",
		"secondaryUnit":                "slate-encoder.service",
		"requireToken":                 true,
		"ensureBroadcastCron":          "@every 10m",
	})
	if err != nil {
		return nil, err
	}

	var cfg Monitor
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode monitor config: %w", err)
	}
	if cfg.RequireToken && cfg.Token == "" {
		return nil, fmt.Errorf("configuration 'token' is required when requireToken is true")
	}
	return &cfg, nil
}

// LoadReporter loads the primary-host reporter's configuration.
func LoadReporter(configPath string) (*Reporter, error) {
	v, err := loader(configPath, "HBREPORTER", map[string]any{
		"reportIntervalSeconds": 20,
		"maxBackoffSeconds":     120,
		"cameraPingEnabled":     false,
		"workerStatusFile":      "/var/run/streamguard/worker-status.json",
		"logFilePath":           "",
	})
	if err != nil {
		return nil, err
	}

	var cfg Reporter
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode reporter config: %w", err)
	}
	if cfg.MonitorBaseURL == "" {
		return nil, fmt.Errorf("configuration 'monitorBaseURL' is required")
	}
	return &cfg, nil
}

// LoadSlateRunner loads the slate encoder runner's configuration.
func LoadSlateRunner(configPath string) (*SlateRunner, error) {
	v, err := loader(configPath, "SLATERUNNER", map[string]any{
		"progressIntervalSeconds": 30,
		"retryDelaySeconds":       10,
		"defaultMode":             "smpte",
		"ffmpegPath":              "ffmpeg",
		"fallbackModeFile":        "/etc/streamguard/mode",
		"progressFilePath":        "/var/run/streamguard/progress",
		"durationPerSceneSeconds": 300,
		"width":                   1280,
		"height":                  720,
		"fps":                     30,
		"videoBitrate":            "2500k",
		"audioBitrate":            "128k",
		"keyframeIntervalSeconds": 2,
		"preset":                  "veryfast",
		"overlayText":             "BACKUP FEED - STANDBY",
		"delaySeconds":            0,
	})
	if err != nil {
		return nil, err
	}

	var cfg SlateRunner
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode slate runner config: %w", err)
	}
	if cfg.ProfilePath == "" {
		return nil, fmt.Errorf("configuration 'profilePath' is required")
	}
	if cfg.BackupBaseURL == "" {
		return nil, fmt.Errorf("configuration 'backupBaseURL' is required")
	}
	return &cfg, nil
}

// LoadEnsureBroadcast loads the one-shot ensure-broadcast probe's configuration.
func LoadEnsureBroadcast(configPath string) (*EnsureBroadcast, error) {
	v, err := loader(configPath, "ENSUREBCAST", map[string]any{
		"logFilePath": "",
	})
	if err != nil {
		return nil, err
	}

	var cfg EnsureBroadcast
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode ensure-broadcast config: %w", err)
	}
	if cfg.StreamID == "" {
		return nil, fmt.Errorf("configuration 'streamID' is required")
	}
	return &cfg, nil
}
