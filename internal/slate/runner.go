package slate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"github.com/ausocean-mirror/streamguard/internal/config"
	streamguarderrors "github.com/ausocean-mirror/streamguard/internal/errors"
)

// Scene is one entry in the rotation. Source is either a local file path
// (streamed in a loop) or a synthetic filter-graph specification,
// distinguished at build time by checking whether it resolves to an
// existing local path. OverlayText, when set, replaces the profile's
// default overlay text for this scene only.
type Scene struct {
	Name        string
	Source      string
	OverlayText string
}

// scenesForMode returns the built-in rotation for a mode. life rotates
// between the animated source and a caption card; smpte is a single
// color-bars scene, since there is nothing to rotate for a static test
// pattern.
func scenesForMode(m Mode) []Scene {
	switch m {
	case ModeLife:
		return []Scene{
			{Name: "life-main", Source: "life"},
			{Name: "life-caption", Source: "life-caption", OverlayText: "STANDBY"},
		}
	default:
		return []Scene{{Name: "smpte-bars", Source: "smpte"}}
	}
}

// isLocalSource reports whether a scene source resolves to an existing
// local file, as opposed to a synthetic filter-graph specification.
func isLocalSource(source string) bool {
	info, err := os.Stat(source)
	return err == nil && !info.IsDir()
}

// Progress is one sample of encoder child progress, mirrored to disk.
type Progress struct {
	Frame    int64
	FPS      float64
	Bitrate  string
	Dropped  int64
	BytesOut int64
	OutTime  string
}

// Runner owns the encoder child process across its entire lifetime: scene
// rotation, signal forwarding, and progress publication. Ownership is
// exclusive — nothing else in the process signals the child directly.
type Runner struct {
	cfg     config.SlateRunner
	profile *Profile
	mode    *ModeWatcher
	log     zerolog.Logger

	mu       sync.Mutex
	progress Progress
}

// New builds a Runner from a loaded profile and mode watcher.
func New(cfg config.SlateRunner, profile *Profile, mode *ModeWatcher, log zerolog.Logger) *Runner {
	return &Runner{cfg: cfg, profile: profile, mode: mode, log: log}
}

// Run drives the scene rotation until ctx is cancelled or a forwarded
// termination signal causes it to exit. The returned exit code mirrors
// the child's own exit status (or the signal that killed it), so the
// caller's main can os.Exit with the value the service manager expects.
func (r *Runner) Run(ctx context.Context) int {
	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go r.writeProgressLoop(sigCtx)

	sceneIdx := 0
	for {
		if sigCtx.Err() != nil {
			return 0
		}

		scenes := scenesForMode(r.mode.Current())
		scene := scenes[sceneIdx%len(scenes)]
		sceneIdx++

		code, signaled, err := r.runScene(sigCtx, scene)
		if signaled {
			r.log.Info().Str("scene", scene.Name).Int("code", code).Msg("forwarded signal terminated encoder child")
			return code
		}
		if err != nil {
			r.log.Error().Err(streamguarderrors.New(streamguarderrors.EncoderChildFailure, err)).
				Str("kind", string(streamguarderrors.EncoderChildFailure)).
				Str("scene", scene.Name).Msg("encoder child failed")
		}

		select {
		case <-sigCtx.Done():
			return 0
		case <-time.After(r.cfg.RetryDelay()):
		}
	}
}

// runScene launches the encoder child for one scene and waits for it to
// exit, the child's own duration limit, or a forwarded signal — whichever
// comes first. It returns (exitCode, signaled, err).
func (r *Runner) runScene(ctx context.Context, scene Scene) (int, bool, error) {
	// The child's context is detached from ctx so that a forwarded signal
	// does not kill it outright; the select below signals it and bounds the
	// wait instead.
	sceneCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()

	cmd := r.buildCommand(sceneCtx, scene)
	if err := cmd.Start(); err != nil {
		return 1, false, fmt.Errorf("starting encoder child: %w", err)
	}
	r.log.Info().Str("scene", scene.Name).Int("pid", cmd.Process.Pid).Msg("encoder child started")

	waitErr := make(chan error, 1)
	go func() { waitErr <- cmd.Wait() }()

	select {
	case <-ctx.Done():
		// Forwarded signal: the child is sent SIGTERM, whichever of SIGINT
		// or SIGTERM this process received, and given a bounded window to
		// exit on its own before this process' exit code is decided.
		sig := syscall.SIGTERM
		_ = cmd.Process.Signal(sig)
		select {
		case err := <-waitErr:
			return mapExit(err, sig)
		case <-time.After(5 * time.Second):
			_ = cmd.Process.Kill()
			<-waitErr
			return mapExit(nil, syscall.SIGKILL)
		}
	case err := <-waitErr:
		code, _, _ := mapExit(err, 0)
		return code, false, err
	}
}

// mapExit translates a child's wait error into an exit code, reporting
// whether termination was due to the given forwarded signal (via
// golang.org/x/sys/unix's WaitStatus helpers) so the caller can propagate
// the correct cause to the service manager.
func mapExit(err error, forwarded syscall.Signal) (int, bool, error) {
	if err == nil {
		return 0, forwarded != 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			status := unix.WaitStatus(ws)
			if status.Signaled() {
				return 128 + int(status.Signal()), true, err
			}
			return status.ExitStatus(), forwarded != 0, err
		}
	}
	return 1, forwarded != 0, err
}

// buildCommand constructs the ffmpeg invocation for a scene: synthetic
// sources use lavfi filter sources, local sources loop the file, both are
// scaled/overlaid per the profile's output parameters and pushed to the
// profile's derived YT_URL. The scene terminates after durationPerScene.
func (r *Runner) buildCommand(ctx context.Context, scene Scene) *exec.Cmd {
	p := r.profile
	overlayText := scene.OverlayText
	if overlayText == "" {
		overlayText = p.OverlayText
	}

	var args []string
	if p.DelaySeconds > 0 {
		args = append(args, "-itsoffset", strconv.Itoa(p.DelaySeconds))
	}

	if isLocalSource(scene.Source) {
		args = append(args, "-stream_loop", "-1", "-re", "-i", scene.Source)
		args = append(args, "-vf", scaleFilter(p.Width, p.Height, p.FPS, overlayText))
	} else {
		args = append(args, lavfiArgs(scene.Source, p.Width, p.Height, p.FPS, overlayText)...)
	}

	gop := p.FPS * p.KeyframeIntervalSeconds
	args = append(args,
		"-t", strconv.Itoa(int(r.cfg.DurationPerScene().Seconds())),
		"-c:v", "libx264", "-preset", p.Preset,
		"-b:v", p.VideoBitrate, "-maxrate", p.VideoBitrate, "-bufsize", doubledBitrate(p.VideoBitrate),
		"-g", strconv.Itoa(gop),
		"-c:a", "aac", "-b:a", p.AudioBitrate,
		"-f", "flv",
		"-progress", r.cfg.ProgressFilePath,
		p.URL,
	)

	cmd := exec.CommandContext(ctx, r.cfg.FFmpegPath, args...)
	cmd.Stdout = nil
	cmd.Stderr = nil
	return cmd
}

// scaleFilter builds the video filter chain applied to a local-file
// source: scale and frame rate per the profile, plus an overlay drawtext
// when the scene (or profile default) carries one.
func scaleFilter(width, height, fps int, overlayText string) string {
	chain := fmt.Sprintf("scale=%d:%d,fps=%d", width, height, fps)
	if overlayText != "" {
		chain += fmt.Sprintf(",drawtext=text='%s'", escapeDrawtext(overlayText))
	}
	return chain
}

// lavfiArgs builds the synthetic-source filter-graph arguments for a
// named scene spec, sized per the profile's output parameters.
func lavfiArgs(spec string, width, height, fps int, overlayText string) []string {
	var source string
	switch spec {
	case "life", "life-caption":
		source = fmt.Sprintf("life=size=%dx%d:mold=10", width, height)
	default:
		source = fmt.Sprintf("smptebars=size=%dx%d:rate=%d", width, height, fps)
	}
	if overlayText != "" {
		source += fmt.Sprintf(",drawtext=text='%s'", escapeDrawtext(overlayText))
	}
	return []string{"-f", "lavfi", "-i", source}
}

// escapeDrawtext escapes the characters ffmpeg's drawtext filter treats as
// special within a filtergraph option value.
func escapeDrawtext(text string) string {
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`, `:`, `\:`)
	return r.Replace(text)
}

// doubledBitrate doubles the numeric portion of a bitrate string like
// "2500k" or "6M", preserving its unit suffix, for use as an encoder
// buffer size. Falls back to the input unchanged if it cannot be parsed.
func doubledBitrate(bitrate string) string {
	i := len(bitrate)
	for i > 0 && (bitrate[i-1] < '0' || bitrate[i-1] > '9') {
		i--
	}
	numPart, unit := bitrate[:i], bitrate[i:]
	n, err := strconv.Atoi(numPart)
	if err != nil {
		return bitrate
	}
	return strconv.Itoa(n*2) + unit
}

// writeProgressLoop mirrors the current progress sample to disk on a
// ticker, atomically, regardless of which scene is currently running.
func (r *Runner) writeProgressLoop(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.ProgressInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.refreshProgress()
			r.flushProgress()
		}
	}
}

// refreshProgress reads ffmpeg's own -progress key=value output for the
// currently running child, if any, and updates the in-memory sample.
// A missing or partially-written file (the child may be mid-scene-swap)
// just means the next tick republishes the previous sample.
func (r *Runner) refreshProgress() {
	data, err := os.ReadFile(r.cfg.ProgressFilePath)
	if err != nil {
		return
	}

	var p Progress
	for _, line := range strings.Split(string(data), "\n") {
		k, v, ok := strings.Cut(strings.TrimSpace(line), "=")
		if !ok {
			continue
		}
		switch k {
		case "frame":
			p.Frame, _ = strconv.ParseInt(v, 10, 64)
		case "fps":
			p.FPS, _ = strconv.ParseFloat(v, 64)
		case "bitrate":
			p.Bitrate = v
		case "drop_frames":
			p.Dropped, _ = strconv.ParseInt(v, 10, 64)
		case "total_size":
			p.BytesOut, _ = strconv.ParseInt(v, 10, 64)
		case "out_time":
			p.OutTime = v
		}
	}

	r.mu.Lock()
	r.progress = p
	r.mu.Unlock()
}

func (r *Runner) flushProgress() {
	p := r.readLatestProgress()

	var b strings.Builder
	fmt.Fprintf(&b, "frame=%d\n", p.Frame)
	fmt.Fprintf(&b, "fps=%.2f\n", p.FPS)
	fmt.Fprintf(&b, "bitrate=%s\n", p.Bitrate)
	fmt.Fprintf(&b, "dropped=%d\n", p.Dropped)
	fmt.Fprintf(&b, "bytesOut=%d\n", p.BytesOut)
	fmt.Fprintf(&b, "outTime=%s\n", p.OutTime)

	if err := renameio.WriteFile(r.publishedProgressPath(), []byte(b.String()), 0o644); err != nil {
		r.log.Error().Err(streamguarderrors.New(streamguarderrors.PersistenceFailure, err)).
			Str("kind", string(streamguarderrors.PersistenceFailure)).
			Msg("failed to publish progress file")
	}
}

// publishedProgressPath is the atomically-published mirror of the raw
// progress file ffmpeg writes to via -progress; the two are kept separate
// so a reader never observes a partial ffmpeg write.
func (r *Runner) publishedProgressPath() string {
	return filepath.Clean(r.cfg.ProgressFilePath) + ".published"
}

func (r *Runner) readLatestProgress() Progress {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.progress
}
