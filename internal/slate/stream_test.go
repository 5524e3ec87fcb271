package slate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeKeyStripsWhitespaceAndBackupMarker(t *testing.T) {
	key, err := SanitizeKey("  backup=1/abcd-1234  ")
	require.NoError(t, err)
	assert.Equal(t, "abcd-1234", key)
}

func TestSanitizeKeyIsIdempotent(t *testing.T) {
	once, err := SanitizeKey("backup=1/abcd-1234")
	require.NoError(t, err)
	twice, err := SanitizeKey(once)
	require.NoError(t, err)
	assert.Equal(t, once, twice)
}

func TestSanitizeKeyRejectsEmpty(t *testing.T) {
	_, err := SanitizeKey("   ")
	assert.Error(t, err)
}

func TestSanitizeKeyRejectsQueryCharacters(t *testing.T) {
	_, err := SanitizeKey("abcd?evil=1")
	assert.Error(t, err)
}

func TestNormalizeURLRejectsNonRTMPS(t *testing.T) {
	_, err := NormalizeURL("https://example.com/live", "abcd")
	assert.Error(t, err)
}

func TestNormalizeURLBuildsBackupURL(t *testing.T) {
	url, err := NormalizeURL("rtmps://a.example.com/live2", "abcd-1234")
	require.NoError(t, err)
	assert.Equal(t, "rtmps://a.example.com/live2?backup=1/abcd-1234", url)
}

func TestNormalizeURLIsIdempotent(t *testing.T) {
	key, err := SanitizeKey("abcd-1234")
	require.NoError(t, err)

	once, err := NormalizeURL("rtmps://a.example.com/live2", key)
	require.NoError(t, err)

	twice, err := NormalizeURL(once, key)
	require.NoError(t, err)

	assert.Equal(t, once, twice)
}
