// Package supervisor implements the encoder supervisor: a thin, idempotent
// adapter over the OS service manager that starts, stops, and queries the
// slate encoder unit, invoked as a subprocess via os/exec.
package supervisor

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	streamguarderrors "github.com/ausocean-mirror/streamguard/internal/errors"
)

// Result is the outcome of a supervisor operation. The decision engine
// branches on this value and never has to inspect a raw error for the
// common, expected outcomes.
type Result int

const (
	Ok Result = iota
	AlreadyInDesiredState
	PermissionDenied
	Timeout
	Other
)

func (r Result) String() string {
	switch r {
	case Ok:
		return "Ok"
	case AlreadyInDesiredState:
		return "AlreadyInDesiredState"
	case PermissionDenied:
		return "PermissionDenied"
	case Timeout:
		return "Timeout"
	default:
		return "Other"
	}
}

const invokeTimeout = 10 * time.Second

// Supervisor drives systemctl for a single unit.
type Supervisor struct {
	unit string
	log  zerolog.Logger

	mu                   sync.Mutex
	loggedPermissionFail bool
}

// New creates a Supervisor for the given systemd unit name.
func New(unit string, log zerolog.Logger) *Supervisor {
	return &Supervisor{unit: unit, log: log}
}

// Start is idempotent: if the unit is already active, it is a no-op that
// returns AlreadyInDesiredState.
func (s *Supervisor) Start(ctx context.Context) Result {
	active, result := s.isActiveResult(ctx)
	if result != Ok && result != Other {
		return result
	}
	if active {
		return AlreadyInDesiredState
	}
	return s.run(ctx, "start")
}

// Stop is idempotent: if the unit is already inactive, it is a no-op that
// returns AlreadyInDesiredState.
func (s *Supervisor) Stop(ctx context.Context) Result {
	active, result := s.isActiveResult(ctx)
	if result != Ok && result != Other {
		return result
	}
	if !active {
		return AlreadyInDesiredState
	}
	return s.run(ctx, "stop")
}

// IsActive queries the unit's current state.
func (s *Supervisor) IsActive() (bool, Result) {
	ctx, cancel := context.WithTimeout(context.Background(), invokeTimeout)
	defer cancel()
	return s.isActiveResult(ctx)
}

func (s *Supervisor) isActiveResult(ctx context.Context) (bool, Result) {
	ctx, cancel := context.WithTimeout(ctx, invokeTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, "systemctl", "is-active", s.unit).CombinedOutput()
	status := strings.TrimSpace(string(out))

	if ctx.Err() == context.DeadlineExceeded {
		return false, Timeout
	}
	// systemctl is-active exits non-zero for "inactive"/"failed", which is
	// a legitimate answer, not a supervisor failure.
	if err != nil && status != "inactive" && status != "failed" && status != "unknown" {
		s.logPermissionIssue(err)
		return false, classifyErr(err)
	}
	return status == "active", Ok
}

// run invokes `systemctl <verb> <unit>` directly, falling back to a
// non-interactive sudo wrapper if direct invocation is blocked because
// process elevation is disabled for this process.
func (s *Supervisor) run(ctx context.Context, verb string) Result {
	ctx, cancel := context.WithTimeout(ctx, invokeTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, "systemctl", verb, s.unit).CombinedOutput()
	if err == nil {
		s.resetPermissionLog()
		return Ok
	}
	if ctx.Err() == context.DeadlineExceeded {
		return Timeout
	}

	// CombinedOutput leaves ExitError.Stderr empty, so the captured output
	// is checked for the permission message as well.
	if isPermissionErr(err) || strings.Contains(strings.ToLower(string(out)), "permission") {
		_, fallbackErr := exec.CommandContext(ctx, "sudo", "-n", "systemctl", verb, s.unit).CombinedOutput()
		if fallbackErr == nil {
			s.resetPermissionLog()
			return Ok
		}
		s.logPermissionIssue(fallbackErr)
		return PermissionDenied
	}

	s.log.Error().Err(streamguarderrors.New(streamguarderrors.ServiceControlFailure, err)).
		Str("kind", string(streamguarderrors.ServiceControlFailure)).
		Str("unit", s.unit).Str("verb", verb).
		Msg("service control invocation failed")
	return Other
}

func classifyErr(err error) Result {
	if isPermissionErr(err) {
		return PermissionDenied
	}
	return Other
}

func isPermissionErr(err error) bool {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return strings.Contains(strings.ToLower(string(exitErr.Stderr)), "permission") ||
			strings.Contains(strings.ToLower(err.Error()), "permission")
	}
	return strings.Contains(strings.ToLower(err.Error()), "permission")
}

// logPermissionIssue logs a remediation hint once per occurrence, then
// suppresses repeats until the supervisor succeeds again.
func (s *Supervisor) logPermissionIssue(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loggedPermissionFail {
		return
	}
	s.loggedPermissionFail = true
	s.log.Error().Err(streamguarderrors.New(streamguarderrors.ServiceControlFailure, err)).
		Str("kind", string(streamguarderrors.ServiceControlFailure)).
		Str("unit", s.unit).
		Msg("service control permission denied; grant the monitor user passwordless sudo for systemctl on this unit, or run it under a systemd unit with the right capabilities")
}

func (s *Supervisor) resetPermissionLog() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loggedPermissionFail = false
}
