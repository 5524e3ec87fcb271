package decision

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ausocean-mirror/streamguard/internal/supervisor"
	"github.com/ausocean-mirror/streamguard/pkg/models"
)

type fakeRecords struct {
	mu      sync.Mutex
	reports []models.HeartbeatReport
}

func (f *fakeRecords) set(reports []models.HeartbeatReport) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = reports
}

func (f *fakeRecords) LastN(n int) []models.HeartbeatReport {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n > len(f.reports) {
		n = len(f.reports)
	}
	return append([]models.HeartbeatReport(nil), f.reports[len(f.reports)-n:]...)
}

type fakeSupervisor struct {
	startCalls int
	stopCalls  int
	result     supervisor.Result
}

func (f *fakeSupervisor) Start(ctx context.Context) supervisor.Result {
	f.startCalls++
	return f.result
}

func (f *fakeSupervisor) Stop(ctx context.Context) supervisor.Result {
	f.stopCalls++
	return f.result
}

type fakeHinter struct {
	calls int
}

func (f *fakeHinter) Hint(ctx context.Context) {
	f.calls++
}

func boolPtr(b bool) *bool { return &b }

func baseConfig() Config {
	return Config{
		MissedThreshold:      5 * time.Second,
		RecoveryReports:      2,
		CheckInterval:        time.Second,
		Cooldown:             0,
		RecoveryHintCooldown: 0,
	}
}

func TestSeedInitialPhaseEmptyStoreStartsDown(t *testing.T) {
	records := &fakeRecords{}
	svc := &fakeSupervisor{result: supervisor.Ok}
	e := New(baseConfig(), records, svc, nil, zerolog.Nop())
	assert.Equal(t, PrimaryDown, e.currentPhase())
}

func TestSeedInitialPhaseFreshReportStartsUp(t *testing.T) {
	records := &fakeRecords{}
	records.set([]models.HeartbeatReport{{ReceivedAt: time.Now(), StreamingActive: true}})
	svc := &fakeSupervisor{result: supervisor.Ok}
	e := New(baseConfig(), records, svc, nil, zerolog.Nop())
	assert.Equal(t, PrimaryUp, e.currentPhase())
}

func TestTickTransitionsDownOnMissedThreshold(t *testing.T) {
	records := &fakeRecords{}
	records.set([]models.HeartbeatReport{{ReceivedAt: time.Now(), StreamingActive: true}})
	svc := &fakeSupervisor{result: supervisor.Ok}
	e := New(baseConfig(), records, svc, nil, zerolog.Nop())
	require.Equal(t, PrimaryUp, e.currentPhase())

	// Age the only report past the missed threshold.
	records.set([]models.HeartbeatReport{{ReceivedAt: time.Now().Add(-time.Hour), StreamingActive: true}})

	e.tick(context.Background())

	assert.Equal(t, PrimaryDown, e.currentPhase())
	assert.Equal(t, 1, svc.startCalls)
	assert.True(t, e.Snapshot().FallbackActive)
}

func TestTickTransitionsDownOnHardUnhealthy(t *testing.T) {
	records := &fakeRecords{}
	records.set([]models.HeartbeatReport{{ReceivedAt: time.Now(), StreamingActive: true}})
	svc := &fakeSupervisor{result: supervisor.Ok}
	e := New(baseConfig(), records, svc, nil, zerolog.Nop())
	require.Equal(t, PrimaryUp, e.currentPhase())

	records.set([]models.HeartbeatReport{{
		ReceivedAt:             time.Now(),
		StreamingActive:        true,
		CameraSignalAvailable:  boolPtr(false),
		CameraNetworkReachable: boolPtr(false),
	}})

	e.tick(context.Background())

	assert.Equal(t, PrimaryDown, e.currentPhase())
}

func TestTickRecoversAfterConsecutiveHealthyReports(t *testing.T) {
	records := &fakeRecords{}
	svc := &fakeSupervisor{result: supervisor.Ok}
	hinter := &fakeHinter{}
	e := New(baseConfig(), records, svc, hinter, zerolog.Nop())
	require.Equal(t, PrimaryDown, e.currentPhase())

	now := time.Now()
	records.set([]models.HeartbeatReport{
		{ReceivedAt: now.Add(-2 * time.Second), StreamingActive: true},
		{ReceivedAt: now, StreamingActive: true},
	})

	e.tick(context.Background())

	assert.Equal(t, PrimaryUp, e.currentPhase())
	assert.Equal(t, 1, svc.stopCalls)
}

func TestTickCooldownSuppressesTransition(t *testing.T) {
	records := &fakeRecords{}
	records.set([]models.HeartbeatReport{{ReceivedAt: time.Now(), StreamingActive: true}})
	svc := &fakeSupervisor{result: supervisor.Ok}
	cfg := baseConfig()
	cfg.Cooldown = time.Hour
	e := New(cfg, records, svc, nil, zerolog.Nop())
	require.Equal(t, PrimaryUp, e.currentPhase())

	// Force a transition, which sets CooldownUntil far in the future.
	records.set([]models.HeartbeatReport{{ReceivedAt: time.Now().Add(-time.Hour), StreamingActive: true}})
	e.tick(context.Background())
	require.Equal(t, PrimaryDown, e.currentPhase())
	require.Equal(t, 1, svc.startCalls)

	// A recovery-confirming tick should now be suppressed by cooldown.
	now := time.Now()
	records.set([]models.HeartbeatReport{
		{ReceivedAt: now.Add(-2 * time.Second), StreamingActive: true},
		{ReceivedAt: now, StreamingActive: true},
	})
	e.tick(context.Background())

	assert.Equal(t, PrimaryDown, e.currentPhase())
	assert.Equal(t, 0, svc.stopCalls)
}

func TestApplyTransitionDoesNotCommitOnServiceControlFailure(t *testing.T) {
	records := &fakeRecords{}
	records.set([]models.HeartbeatReport{{ReceivedAt: time.Now(), StreamingActive: true}})
	svc := &fakeSupervisor{result: supervisor.Other}
	e := New(baseConfig(), records, svc, nil, zerolog.Nop())
	require.Equal(t, PrimaryUp, e.currentPhase())

	records.set([]models.HeartbeatReport{{ReceivedAt: time.Now().Add(-time.Hour), StreamingActive: true}})
	e.tick(context.Background())

	assert.Equal(t, PrimaryUp, e.currentPhase())
	assert.False(t, e.Snapshot().FallbackActive)
}

func TestIsHealthyUnknownCameraIndicatorsAreHealthy(t *testing.T) {
	assert.True(t, isHealthy(models.HeartbeatReport{StreamingActive: true}))
}

func TestIsHealthySingleFalseIndicatorIsUnhealthyEvenIfOtherUnknown(t *testing.T) {
	assert.False(t, isHealthy(models.HeartbeatReport{
		StreamingActive:       true,
		CameraSignalAvailable: boolPtr(false),
	}))
	assert.False(t, isHealthy(models.HeartbeatReport{
		StreamingActive:        true,
		CameraNetworkReachable: boolPtr(false),
	}))
}

func TestIsHealthyStreamingInactiveIsUnhealthy(t *testing.T) {
	assert.False(t, isHealthy(models.HeartbeatReport{StreamingActive: false}))
}
