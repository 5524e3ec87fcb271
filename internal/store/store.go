// Package store implements the heartbeat record store: an in-memory,
// time-ordered ring buffer of recent HeartbeatReports mirrored to a single
// JSON file. It is the only piece of shared mutable state in the monitor;
// every other component only ever sees an immutable snapshot.
package store

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"

	streamguarderrors "github.com/ausocean-mirror/streamguard/internal/errors"
	"github.com/ausocean-mirror/streamguard/pkg/models"
)

// Store holds recent heartbeat reports and mirrors them to disk.
type Store struct {
	mu      sync.Mutex
	records []models.HeartbeatReport

	historyWindow time.Duration
	maxRecords    int
	stateFile     string

	log zerolog.Logger
}

// New creates an empty Store. Call Load to populate it from stateFile.
func New(historyWindow time.Duration, maxRecords int, stateFile string, log zerolog.Logger) *Store {
	return &Store{
		historyWindow: historyWindow,
		maxRecords:    maxRecords,
		stateFile:     stateFile,
		log:           log,
	}
}

// Load reads the persisted JSON file at startup. A missing or corrupt file
// is treated as "empty" without error, per the persistence invariant.
func (s *Store) Load() {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.stateFile)
	if err != nil {
		s.log.Info().Str("path", s.stateFile).Msg("no prior state file, starting empty")
		return
	}

	var records []models.HeartbeatReport
	if err := json.Unmarshal(data, &records); err != nil {
		s.log.Warn().Err(err).Str("path", s.stateFile).Msg("corrupt state file, starting empty")
		return
	}

	s.records = records
	s.evictLocked(time.Now())
}

// Append inserts a report in arrival order, evicts by age and count, and
// flushes the new window to disk. Persistence failures are logged but never
// returned: in-memory state remains authoritative regardless of disk state.
func (s *Store) Append(report models.HeartbeatReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, report)
	s.evictLocked(time.Now())

	// The flush stays under the lock so concurrent appends reach the file
	// in the same order they reached memory.
	if err := s.flush(s.cloneLocked()); err != nil {
		s.log.Error().Err(streamguarderrors.New(streamguarderrors.PersistenceFailure, err)).
			Str("kind", string(streamguarderrors.PersistenceFailure)).
			Msg("failed to persist heartbeat state")
	}
}

// evictLocked drops records older than historyWindow and trims to
// maxRecords, oldest first. Callers must hold s.mu.
func (s *Store) evictLocked(now time.Time) {
	cutoff := now.Add(-s.historyWindow)
	kept := s.records[:0:0]
	for _, r := range s.records {
		if r.ReceivedAt.After(cutoff) || r.ReceivedAt.Equal(cutoff) {
			kept = append(kept, r)
		}
	}
	if s.maxRecords > 0 && len(kept) > s.maxRecords {
		kept = kept[len(kept)-s.maxRecords:]
	}
	s.records = kept
}

// cloneLocked returns a defensive copy of the current window. Callers must
// hold s.mu.
func (s *Store) cloneLocked() []models.HeartbeatReport {
	out := make([]models.HeartbeatReport, len(s.records))
	copy(out, s.records)
	return out
}

// Snapshot returns an immutable copy of the current window, first evicting
// anything that has aged out since the last mutation.
func (s *Store) Snapshot() []models.HeartbeatReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictLocked(time.Now())
	return s.cloneLocked()
}

// Latest returns the most recent report, or false if the store is empty.
func (s *Store) Latest() (models.HeartbeatReport, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.records) == 0 {
		return models.HeartbeatReport{}, false
	}
	return s.records[len(s.records)-1], true
}

// LastN returns up to n of the most recent reports, oldest first. If fewer
// than n exist, all are returned.
func (s *Store) LastN(n int) []models.HeartbeatReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictLocked(time.Now())
	if n <= 0 || len(s.records) == 0 {
		return nil
	}
	if n > len(s.records) {
		n = len(s.records)
	}
	out := make([]models.HeartbeatReport, n)
	copy(out, s.records[len(s.records)-n:])
	return out
}

// flush writes the given snapshot to the state file atomically, via
// write-to-temp-then-rename, as required by the persistence model.
func (s *Store) flush(records []models.HeartbeatReport) error {
	if s.stateFile == "" {
		return nil
	}
	data, err := json.Marshal(records)
	if err != nil {
		return err
	}
	return renameio.WriteFile(s.stateFile, data, 0o644)
}
