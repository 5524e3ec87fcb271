// Package broadcast implements the broadcast recovery probe and the
// ensure-broadcast probe. Both share the same two-request
// list-active-then-upcoming lookup against the video platform API; they
// differ only in what they do with the result (the recovery probe logs
// and returns, the ensure-broadcast probe maps the result onto a process
// exit code).
package broadcast

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	streamguarderrors "github.com/ausocean-mirror/streamguard/internal/errors"
	"github.com/ausocean-mirror/streamguard/pkg/models"
)

// Lister is the subset of the platform client both probes need.
type Lister interface {
	ListBroadcasts(ctx context.Context, status string) ([]models.BroadcastBinding, error)
}

// Outcome classifies the result of resolving whether the configured
// stream has an eligible bound broadcast.
type Outcome int

const (
	OutcomeBound Outcome = iota
	OutcomeNoBroadcast
	OutcomeWrongBinding
	OutcomeAPIError
)

// resolve lists active broadcasts, then upcoming ones (two separate
// requests, since the platform API rejects a combined status filter), and
// checks whether any binds the given stream ID and is active or ready.
func resolve(ctx context.Context, lister Lister, streamID string) (Outcome, error) {
	var all []models.BroadcastBinding

	for _, status := range []string{"active", "upcoming"} {
		bindings, err := lister.ListBroadcasts(ctx, status)
		if err != nil {
			return OutcomeAPIError, err
		}
		all = append(all, bindings...)
	}

	if len(all) == 0 {
		return OutcomeNoBroadcast, nil
	}

	for _, b := range all {
		if b.BoundTo(streamID) && b.Eligible() {
			return OutcomeBound, nil
		}
	}
	return OutcomeWrongBinding, nil
}

// RecoveryProbe is invoked once per PrimaryUp transition to confirm or
// refresh the active broadcast binding.
type RecoveryProbe struct {
	lister   Lister
	streamID string
	log      zerolog.Logger
}

// NewRecoveryProbe builds a RecoveryProbe for the given stream ID.
func NewRecoveryProbe(lister Lister, streamID string, log zerolog.Logger) *RecoveryProbe {
	return &RecoveryProbe{lister: lister, streamID: streamID, log: log}
}

// Hint queries the platform API and logs the outcome. It never returns an
// error: all failures are logged and absorbed here, so a single recovery
// hint can never abort the monitor process.
func (p *RecoveryProbe) Hint(ctx context.Context) {
	outcome, err := resolve(ctx, p.lister, p.streamID)
	if err != nil {
		p.log.Error().Err(streamguarderrors.New(streamguarderrors.ApiError, err)).
			Str("kind", string(streamguarderrors.ApiError)).
			Msg("recovery hint: platform API call failed")
		return
	}

	switch outcome {
	case OutcomeBound:
		p.log.Info().Str("streamID", p.streamID).Msg("recovery hint: broadcast binding confirmed")
	case OutcomeNoBroadcast, OutcomeWrongBinding:
		p.log.Warn().Str("streamID", p.streamID).Str("outcome", outcomeName(outcome)).
			Msg("recovery hint: NoEligibleBroadcast")
	}
}

// EnsureBroadcast is a one-shot check, run on a timer or ad hoc, verifying
// the platform has an active/upcoming broadcast bound to the configured
// stream. It never touches the encoder supervisor.
type EnsureBroadcast struct {
	lister   Lister
	streamID string
	log      zerolog.Logger
}

// NewEnsureBroadcast builds an EnsureBroadcast probe for the given stream ID.
func NewEnsureBroadcast(lister Lister, streamID string, log zerolog.Logger) *EnsureBroadcast {
	return &EnsureBroadcast{lister: lister, streamID: streamID, log: log}
}

// ExitCategory is the category returned alongside a non-zero exit code.
type ExitCategory string

const (
	CategoryNone          ExitCategory = ""
	CategoryNoBroadcast   ExitCategory = "NoBroadcast"
	CategoryWrongBinding  ExitCategory = "WrongBinding"
	CategoryAPIError      ExitCategory = "ApiError"
)

// Check runs the probe once and returns the exit category (CategoryNone on
// success) alongside an error for logging.
func (e *EnsureBroadcast) Check(ctx context.Context) (ExitCategory, error) {
	outcome, err := resolve(ctx, e.lister, e.streamID)
	if err != nil {
		e.log.Error().Err(err).Msg("ensure-broadcast: platform API call failed")
		return CategoryAPIError, err
	}

	switch outcome {
	case OutcomeBound:
		e.log.Info().Str("streamID", e.streamID).Msg("ensure-broadcast: OK")
		return CategoryNone, nil
	case OutcomeNoBroadcast:
		return CategoryNoBroadcast, fmt.Errorf("no active or upcoming broadcast found")
	case OutcomeWrongBinding:
		return CategoryWrongBinding, fmt.Errorf("broadcast(s) found but none bound to stream %s", e.streamID)
	default:
		return CategoryAPIError, fmt.Errorf("unexpected outcome")
	}
}

func outcomeName(o Outcome) string {
	switch o {
	case OutcomeBound:
		return "Bound"
	case OutcomeNoBroadcast:
		return "NoBroadcast"
	case OutcomeWrongBinding:
		return "WrongBinding"
	default:
		return "ApiError"
	}
}
