package reporter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ausocean-mirror/streamguard/internal/config"
	"github.com/ausocean-mirror/streamguard/pkg/models"
)

type fakeSource struct {
	fields StatusFields
}

func (f *fakeSource) CurrentStatus() StatusFields { return f.fields }

func TestSendOncePostsHeartbeat(t *testing.T) {
	var received models.StatusPostRequest
	var gotAuth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := config.Reporter{
		MonitorBaseURL:    srv.URL,
		Token:             "secret",
		ReportIntervalSec: 1,
		MaxBackoffSeconds: 1,
	}
	source := &fakeSource{fields: StatusFields{StreamingActive: true, LastError: "none"}}
	r := New(cfg, source, zerolog.Nop())

	r.sendOnce(context.Background())

	assert.Equal(t, "Bearer secret", gotAuth)
	assert.True(t, received.StreamingActive)
	assert.Equal(t, "none", received.LastError)
}

func TestSendOnceLogsAndContinuesOnFailure(t *testing.T) {
	cfg := config.Reporter{
		MonitorBaseURL:    "http://127.0.0.1:1", // nothing listening
		ReportIntervalSec: 1,
		MaxBackoffSeconds: 1,
	}
	source := &fakeSource{}
	r := New(cfg, source, zerolog.Nop())

	assert.NotPanics(t, func() { r.sendOnce(context.Background()) })
}

func TestLocalStatusReadsWorkerStatusFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worker-status.json")
	payload := `{"streamingActive":true,"ffmpegRunning":true,"dayWindowActive":false,"lastError":""}`
	require.NoError(t, os.WriteFile(path, []byte(payload), 0o644))

	ls := NewLocalStatus(path, zerolog.Nop())
	fields := ls.CurrentStatus()

	assert.True(t, fields.StreamingActive)
	assert.True(t, fields.FFmpegRunning)
	assert.False(t, fields.DayWindowActive)
}

func TestLocalStatusMissingFileReportsError(t *testing.T) {
	ls := NewLocalStatus(filepath.Join(t.TempDir(), "nope.json"), zerolog.Nop())
	fields := ls.CurrentStatus()
	assert.NotEmpty(t, fields.LastError)
}

