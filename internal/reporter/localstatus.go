package reporter

import (
	"encoding/json"
	"os"

	"github.com/rs/zerolog"
)

// workerStatusFile is the on-disk shape the co-located streaming worker
// writes so the reporter can fold its state into a heartbeat without the
// two processes sharing memory.
type workerStatusFile struct {
	StreamingActive bool           `json:"streamingActive"`
	FFmpegRunning   bool           `json:"ffmpegRunning"`
	DayWindowActive bool           `json:"dayWindowActive"`
	LastError       string         `json:"lastError"`
	Config          map[string]any `json:"config"`
}

// LocalStatus implements StatusSource by re-reading the worker's status
// file on every call. A missing or corrupt file reads as "streaming
// inactive" with a populated LastError, rather than failing the heartbeat.
type LocalStatus struct {
	path string
	log  zerolog.Logger
}

// NewLocalStatus builds a LocalStatus reading from path.
func NewLocalStatus(path string, log zerolog.Logger) *LocalStatus {
	return &LocalStatus{path: path, log: log}
}

// CurrentStatus implements StatusSource.
func (l *LocalStatus) CurrentStatus() StatusFields {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return StatusFields{LastError: "worker status file unavailable: " + err.Error()}
	}

	var s workerStatusFile
	if err := json.Unmarshal(data, &s); err != nil {
		l.log.Warn().Err(err).Str("path", l.path).Msg("corrupt worker status file")
		return StatusFields{LastError: "worker status file corrupt"}
	}

	return StatusFields{
		StreamingActive: s.StreamingActive,
		FFmpegRunning:   s.FFmpegRunning,
		DayWindowActive: s.DayWindowActive,
		LastError:       s.LastError,
		Config:          s.Config,
	}
}
