// Package decision implements the decision engine: the periodic evaluator
// that applies hysteresis over the heartbeat record store and drives the
// encoder supervisor and broadcast recovery probe.
package decision

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ausocean-mirror/streamguard/internal/supervisor"
	"github.com/ausocean-mirror/streamguard/pkg/models"
)

// PrimaryState is the engine's two-state machine.
type PrimaryState int

const (
	PrimaryUp PrimaryState = iota
	PrimaryDown
)

func (p PrimaryState) String() string {
	if p == PrimaryDown {
		return "PrimaryDown"
	}
	return "PrimaryUp"
}

// Config carries the engine's hysteresis thresholds.
type Config struct {
	MissedThreshold      time.Duration
	RecoveryReports      int
	CheckInterval        time.Duration
	Cooldown             time.Duration
	RecoveryHintCooldown time.Duration
}

// RecordSource is the read side of the heartbeat record store that
// the engine needs: the most recent reports, oldest first.
type RecordSource interface {
	LastN(n int) []models.HeartbeatReport
}

// ServiceController is the subset of the encoder supervisor the engine
// drives.
type ServiceController interface {
	Start(ctx context.Context) supervisor.Result
	Stop(ctx context.Context) supervisor.Result
}

// RecoveryHinter is the broadcast recovery probe, invoked at most once
// per PrimaryUp transition.
type RecoveryHinter interface {
	Hint(ctx context.Context)
}

// State is the engine's externally observable derived state, exposed
// through GET /status.
type State struct {
	FallbackActive            bool
	ConsecutiveHealthyReports int
	LastTransitionAt          time.Time
	CooldownUntil             time.Time
	LastDecision              string
	DecidedAt                 time.Time
}

// Engine runs the periodic tick and owns ControllerState.
type Engine struct {
	cfg     Config
	records RecordSource
	svc     ServiceController
	hint    RecoveryHinter
	log     zerolog.Logger

	mu    sync.RWMutex
	state State
	phase PrimaryState

	lastHintAt time.Time
}

// New builds an Engine. The record store is consulted once, synchronously,
// to decide the starting phase (the store-empty and fresh-report tie-breaks),
// before the ticking loop begins.
func New(cfg Config, records RecordSource, svc ServiceController, hint RecoveryHinter, log zerolog.Logger) *Engine {
	e := &Engine{
		cfg:     cfg,
		records: records,
		svc:     svc,
		hint:    hint,
		log:     log,
	}
	e.seedInitialPhase()
	return e
}

// seedInitialPhase applies the startup tie-breaks: an empty store means the
// primary is presumed absent; a store with a fresh report means the engine
// starts in PrimaryUp with zeroed recovery counting.
func (e *Engine) seedInitialPhase() {
	latest := e.records.LastN(1)
	now := time.Now()
	if len(latest) == 0 {
		e.phase = PrimaryDown
		e.state.LastDecision = "startup: empty store, presuming primary absent"
		e.state.DecidedAt = now
		return
	}
	if now.Sub(latest[0].ReceivedAt) <= e.cfg.MissedThreshold {
		e.phase = PrimaryUp
		e.state.LastDecision = "startup: fresh report on file, presuming primary up"
		e.state.DecidedAt = now
		return
	}
	e.phase = PrimaryDown
	e.state.LastDecision = "startup: stale report on file, presuming primary absent"
	e.state.DecidedAt = now
}

// Run blocks, ticking every cfg.CheckInterval until ctx is cancelled. It
// always evaluates the current tick to completion before honoring
// cancellation, matching the "decision loop exits after the current tick"
// shutdown requirement.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.tick(ctx)
		}
	}
}

// tick evaluates one decision cycle. It is exported indirectly via Run but
// kept callable directly in tests so hysteresis can be exercised without a
// real ticker.
func (e *Engine) tick(ctx context.Context) {
	tickID := uuid.New()
	now := time.Now()

	recent := e.records.LastN(maxInt(e.cfg.RecoveryReports, 1))
	var latest *models.HeartbeatReport
	if len(recent) > 0 {
		latest = &recent[len(recent)-1]
	}

	e.mu.Lock()
	phase := e.phase
	cooldownUntil := e.state.CooldownUntil
	consecutive := e.state.ConsecutiveHealthyReports
	fallbackActive := e.state.FallbackActive
	e.mu.Unlock()

	var decision string
	var nextPhase = phase
	var transition bool

	switch phase {
	case PrimaryUp:
		switch {
		case latest == nil || now.Sub(latest.ReceivedAt) > e.cfg.MissedThreshold:
			decision = "primary missed threshold, fallback should start"
			nextPhase = PrimaryDown
			transition = true
		case isHardUnhealthy(*latest):
			decision = "primary reports hard camera failure, fallback should start"
			nextPhase = PrimaryDown
			transition = true
		default:
			decision = "primary healthy"
		}
	case PrimaryDown:
		switch {
		case recoveryConfirmed(recent, e.cfg.RecoveryReports, e.cfg.MissedThreshold, now):
			decision = "primary recovered"
			nextPhase = PrimaryUp
			transition = true
		case !fallbackActive:
			// Seeded as PrimaryDown at startup: the fallback has not been
			// started yet.
			decision = "primary absent, fallback should start"
			transition = true
		default:
			consecutive = countTrailingHealthy(recent)
			decision = "fallback remains active"
		}
	}

	if transition && now.Before(cooldownUntil) {
		decision += " (suppressed by cooldown)"
		transition = false
		e.log.Debug().Str("tick", tickID.String()).Str("phase", phase.String()).Msg(decision)
	}

	if transition {
		e.applyTransition(ctx, nextPhase, now, tickID)
		consecutive = 0
	}

	e.mu.Lock()
	e.state.ConsecutiveHealthyReports = consecutive
	e.state.LastDecision = decision
	e.state.DecidedAt = now
	e.mu.Unlock()

	e.log.Debug().Str("tick", tickID.String()).Str("phase", e.currentPhase().String()).Msg(decision)
}

func (e *Engine) applyTransition(ctx context.Context, next PrimaryState, now time.Time, tickID uuid.UUID) {
	var result supervisor.Result
	switch next {
	case PrimaryDown:
		result = e.svc.Start(ctx)
	case PrimaryUp:
		result = e.svc.Stop(ctx)
	}

	// ServiceControlFailure (anything but Ok/AlreadyInDesiredState) means no
	// state change: the engine retries on the next tick rather than
	// committing to a phase the supervisor could not actually reach.
	if result != supervisor.Ok && result != supervisor.AlreadyInDesiredState {
		e.log.Warn().Str("tick", tickID.String()).Str("result", result.String()).
			Str("target_phase", next.String()).
			Msg("service control did not reach desired state; retrying next tick")
		return
	}

	e.mu.Lock()
	e.phase = next
	e.state.FallbackActive = next == PrimaryDown
	e.state.LastTransitionAt = now
	e.state.CooldownUntil = now.Add(e.cfg.Cooldown)
	shouldHint := next == PrimaryUp && now.Sub(e.lastHintAt) >= e.cfg.RecoveryHintCooldown
	if shouldHint {
		e.lastHintAt = now
	}
	e.mu.Unlock()

	e.log.Info().Str("tick", tickID.String()).Str("phase", next.String()).
		Str("result", result.String()).Msg("transitioned")

	if shouldHint && e.hint != nil {
		go e.hint.Hint(context.WithoutCancel(ctx))
	}
}

func (e *Engine) currentPhase() PrimaryState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.phase
}

// Snapshot returns the engine's current externally observable state.
func (e *Engine) Snapshot() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// FallbackActive reports whether the engine currently believes the
// fallback encoder should be running. Satisfies httpapi.EngineView.
func (e *Engine) FallbackActive() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.FallbackActive
}

// LastDecision returns the most recent decision label and when it was
// made. Satisfies httpapi.EngineView.
func (e *Engine) LastDecision() (string, time.Time) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.LastDecision, e.state.DecidedAt
}

// isHealthy reports whether r counts as a healthy report: streaming must
// be active, and each camera indicator must be either true or unknown
// (nil). A single indicator explicitly false already fails the predicate,
// even if the other is unknown.
func isHealthy(r models.HeartbeatReport) bool {
	return r.StreamingActive &&
		!(r.CameraSignalAvailable != nil && !*r.CameraSignalAvailable) &&
		!(r.CameraNetworkReachable != nil && !*r.CameraNetworkReachable)
}

// isHardUnhealthy reports the explicit hard-failure case: both camera
// indicators present and false, regardless of StreamingActive.
func isHardUnhealthy(r models.HeartbeatReport) bool {
	return r.CameraSignalAvailable != nil && !*r.CameraSignalAvailable &&
		r.CameraNetworkReachable != nil && !*r.CameraNetworkReachable
}

// recoveryConfirmed reports whether the last `required` reports (in arrival
// order) all satisfy isHealthy and the most recent arrived within
// missedThreshold of now.
func recoveryConfirmed(recent []models.HeartbeatReport, required int, missedThreshold time.Duration, now time.Time) bool {
	if len(recent) < required {
		return false
	}
	tail := recent[len(recent)-required:]
	if now.Sub(tail[len(tail)-1].ReceivedAt) > missedThreshold {
		return false
	}
	for _, r := range tail {
		if !isHealthy(r) {
			return false
		}
	}
	return true
}

// countTrailingHealthy counts the number of most-recent consecutive
// healthy reports, used to surface progress toward recovery in State.
func countTrailingHealthy(recent []models.HeartbeatReport) int {
	count := 0
	for i := len(recent) - 1; i >= 0; i-- {
		if !isHealthy(recent[i]) {
			break
		}
		count++
	}
	return count
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
