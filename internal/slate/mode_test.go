package slate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseModeRecognizesKnownValues(t *testing.T) {
	assert.Equal(t, ModeLife, ParseMode("life", "smpte"))
	assert.Equal(t, ModeSMPTE, ParseMode("smpte", "life"))
}

func TestParseModeFallsBackToDefaultOnUnknown(t *testing.T) {
	assert.Equal(t, Mode("smpte"), ParseMode("garbage", "smpte"))
}

func TestReadModeMissingFileReturnsDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mode")
	assert.Equal(t, ModeSMPTE, ReadMode(path, "smpte"))
}

func TestModeWatcherSeedsFromInitialRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mode")
	require.NoError(t, os.WriteFile(path, []byte("life\n"), 0o644))

	w := NewModeWatcher(path, "smpte", zerolog.Nop())
	assert.Equal(t, ModeLife, w.Current())
}
