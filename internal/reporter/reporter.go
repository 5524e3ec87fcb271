// Package reporter implements the primary-side heartbeat reporter: a
// non-blocking loop that posts status snapshots to the fallback monitor
// over a backoff-capable HTTP client.
package reporter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"

	"github.com/ausocean-mirror/streamguard/internal/config"
	streamguarderrors "github.com/ausocean-mirror/streamguard/internal/errors"
	"github.com/ausocean-mirror/streamguard/internal/hostmetrics"
	"github.com/ausocean-mirror/streamguard/pkg/models"
)

// StatusSource supplies the local status fields the reporter folds into
// each heartbeat. It is implemented by whatever component on the primary
// actually knows streaming/ffmpeg/day-window state; this package only
// transports it.
type StatusSource interface {
	CurrentStatus() StatusFields
}

// StatusFields is the primary-local knowledge a heartbeat carries.
type StatusFields struct {
	StreamingActive bool
	FFmpegRunning   bool
	DayWindowActive bool
	LastError       string
	Config          map[string]any
}

// Reporter posts periodic heartbeats to the monitor.
type Reporter struct {
	cfg    config.Reporter
	source StatusSource
	http   *http.Client
	log    zerolog.Logger
}

// New builds a Reporter with a retryablehttp client configured from cfg.
func New(cfg config.Reporter, source StatusSource, log zerolog.Logger) *Reporter {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 4
	retryClient.RetryWaitMin = 1 * time.Second
	retryClient.RetryWaitMax = cfg.MaxBackoff()
	retryClient.Logger = nil

	return &Reporter{
		cfg:    cfg,
		source: source,
		http:   retryClient.StandardClient(),
		log:    log,
	}
}

// Run blocks, posting a heartbeat every ReportInterval until ctx is
// cancelled. Each send runs on its own bounded timeout so a slow or
// unreachable monitor never stalls the next tick.
func (r *Reporter) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.ReportInterval())
	defer ticker.Stop()

	r.sendOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sendOnce(ctx)
		}
	}
}

func (r *Reporter) sendOnce(ctx context.Context) {
	// Each send is bounded by the report interval, and never by more than
	// 10 s.
	timeout := r.cfg.ReportInterval()
	if timeout > 10*time.Second {
		timeout = 10 * time.Second
	}
	sendCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	fields := r.source.CurrentStatus()

	req := models.StatusPostRequest{
		ReportedAt:      time.Now(),
		StreamingActive: fields.StreamingActive,
		FFmpegRunning:   fields.FFmpegRunning,
		DayWindowActive: fields.DayWindowActive,
		LastError:       fields.LastError,
		Config:          fields.Config,
	}

	if r.cfg.CameraPingEnabled {
		available, reachable := r.pingCamera(sendCtx)
		req.CameraSignalAvailable = &available
		req.CameraNetworkReachable = &reachable
	}

	if load, err := hostmetrics.Snapshot(sendCtx); err == nil {
		req.HostLoad = load
	} else {
		r.log.Debug().Err(err).Msg("host metrics snapshot unavailable")
	}

	if err := r.post(sendCtx, req); err != nil {
		r.log.Error().Err(streamguarderrors.New(streamguarderrors.ApiError, err)).
			Str("kind", string(streamguarderrors.ApiError)).
			Msg("heartbeat post failed")
		return
	}
	r.log.Debug().Msg("heartbeat posted")
}

func (r *Reporter) post(ctx context.Context, payload models.StatusPostRequest) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling heartbeat: %w", err)
	}

	url := r.cfg.MonitorBaseURL + "/status"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if r.cfg.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+r.cfg.Token)
	}

	resp, err := r.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("posting heartbeat: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("monitor returned status %d", resp.StatusCode)
	}
	return nil
}

// pingCamera attempts a TCP dial to the configured camera host as a cheap
// network-reachability probe; it never distinguishes signal-availability
// beyond reachability, since that is as much as a network probe can tell.
func (r *Reporter) pingCamera(ctx context.Context) (available, reachable bool) {
	if r.cfg.CameraPingHost == "" {
		return false, false
	}
	d := net.Dialer{Timeout: 3 * time.Second}
	conn, err := d.DialContext(ctx, "tcp", r.cfg.CameraPingHost)
	if err != nil {
		return false, false
	}
	conn.Close()
	return true, true
}
