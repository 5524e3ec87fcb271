package slate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ausocean-mirror/streamguard/internal/config"
)

func writeProfile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profile.env")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func testSlateRunnerConfig(backupBaseURL string) config.SlateRunner {
	return config.SlateRunner{
		BackupBaseURL:           backupBaseURL,
		Width:                   1280,
		Height:                  720,
		FPS:                     30,
		VideoBitrate:            "2500k",
		AudioBitrate:            "128k",
		KeyframeIntervalSeconds: 2,
		Preset:                  "veryfast",
		OverlayText:             "BACKUP FEED - STANDBY",
	}
}

func TestLoadProfileDerivesKeyAndURL(t *testing.T) {
	path := writeProfile(t, "# comment\nYT_KEY=backup=1/abcd-1234\nOTHER=value\n")

	profile, err := LoadProfile(path, testSlateRunnerConfig("rtmps://backup.example.com/live2"))
	require.NoError(t, err)

	assert.Equal(t, "abcd-1234", profile.Key)
	assert.Equal(t, "rtmps://backup.example.com/live2?backup=1/abcd-1234", profile.URL)
	assert.Equal(t, "value", profile.Values["OTHER"])
	assert.Equal(t, 1280, profile.Width)
	assert.Equal(t, "2500k", profile.VideoBitrate)
}

func TestLoadProfileAppliesOutputParameterOverrides(t *testing.T) {
	path := writeProfile(t, "YT_KEY=abcd-1234\nWIDTH=1920\nHEIGHT=1080\nOVERLAY_TEXT=OFF AIR\n")

	profile, err := LoadProfile(path, testSlateRunnerConfig("rtmps://backup.example.com/live2"))
	require.NoError(t, err)

	assert.Equal(t, 1920, profile.Width)
	assert.Equal(t, 1080, profile.Height)
	assert.Equal(t, "OFF AIR", profile.OverlayText)
	assert.Equal(t, 30, profile.FPS)
}

func TestLoadProfileMissingKeyFails(t *testing.T) {
	path := writeProfile(t, "OTHER=value\n")
	_, err := LoadProfile(path, testSlateRunnerConfig("rtmps://backup.example.com/live2"))
	assert.Error(t, err)
}

func TestLoadProfileMissingFileFails(t *testing.T) {
	_, err := LoadProfile(filepath.Join(t.TempDir(), "nope.env"), testSlateRunnerConfig("rtmps://backup.example.com/live2"))
	assert.Error(t, err)
}
