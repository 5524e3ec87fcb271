package platform

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCredentialsParsesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"client_id":"id","client_secret":"secret","refresh_token":"tok"}`), 0o644))

	creds, err := LoadCredentials(path)
	require.NoError(t, err)
	assert.Equal(t, "id", creds.ClientID)
	assert.Equal(t, "tok", creds.RefreshToken)
}

func TestLoadCredentialsRequiresRefreshToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"client_id":"id"}`), 0o644))

	_, err := LoadCredentials(path)
	assert.Error(t, err)
}

func TestLoadCredentialsMissingFile(t *testing.T) {
	_, err := LoadCredentials(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestLifeCycleToStatus(t *testing.T) {
	assert.Equal(t, "active", lifeCycleToStatus("live"))
	assert.Equal(t, "ready", lifeCycleToStatus("ready"))
	assert.Equal(t, "ready", lifeCycleToStatus("testing"))
	assert.Equal(t, "complete", lifeCycleToStatus("complete"))
}
