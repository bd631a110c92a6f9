package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"overdub/internal/config"
	"overdub/internal/fileutil"
	"overdub/internal/logging"
	"overdub/internal/services"
	"overdub/internal/timing"
)

// videoExtensions lists the container extensions a recording run may produce.
var videoExtensions = []string{"webm", "mp4", "mkv"}

// tailLimit bounds how much harness output is retained for diagnostics.
const tailLimit = 100

// RunSpec describes one recording run.
type RunSpec struct {
	// ScriptPath is the instrumented script to execute. The generated
	// Playwright config is written next to it.
	ScriptPath string
	// VideoDir receives the recorded video. It is emptied before the run so
	// exactly one run's artifacts can be found afterwards.
	VideoDir string
	// Durations maps stepId to expected narration length, copied onto the
	// collected timings.
	Durations map[int]int
}

// Result carries what a recording run produced. Timings collected before a
// crash are preserved even when the run fails.
type Result struct {
	RawVideoPath string
	Timings      []timing.StepTiming
	Logs         []string
}

// Option configures the runner.
type Option func(*Runner)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(r *Runner) {
		if exec != nil {
			r.exec = exec
		}
	}
}

// Runner executes instrumented scripts under the Playwright recording
// harness, collecting step timings from the combined output stream.
type Runner struct {
	binary     string
	browser    string
	width      int
	height     int
	fps        int
	runTimeout time.Duration
	exec       Executor
	logger     *slog.Logger
}

// NewRunner constructs a Runner from application config.
func NewRunner(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Runner, error) {
	if cfg == nil {
		return nil, errors.New("config required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	runner := &Runner{
		binary:     cfg.RunnerBinary(),
		browser:    cfg.Harness.Browser,
		width:      cfg.Harness.VideoWidth,
		height:     cfg.Harness.VideoHeight,
		fps:        cfg.Harness.VideoFPS,
		runTimeout: time.Duration(cfg.Harness.RunTimeout) * time.Second,
		exec:       commandExecutor{},
		logger:     logger.With(slog.String(logging.FieldComponent, "harness")),
	}
	for _, opt := range opts {
		opt(runner)
	}
	return runner, nil
}

// Run executes the instrumented script and returns the raw video path plus
// the step timings reconstructed from the output stream. Partial timings and
// a bounded output tail are returned alongside any error.
func (r *Runner) Run(ctx context.Context, spec RunSpec) (Result, error) {
	result := Result{}
	if strings.TrimSpace(spec.ScriptPath) == "" {
		return result, services.Wrap(services.ErrValidation, "record", "run", "script path required", nil)
	}
	if err := fileutil.EnsureCleanDir(spec.VideoDir); err != nil {
		return result, services.Wrap(services.ErrTransient, "record", "prepare video dir", "", err)
	}

	scriptDir := filepath.Dir(spec.ScriptPath)
	configPath, err := writePlaywrightConfig(scriptDir, spec.VideoDir, r.browser, r.width, r.height, r.fps, int(r.runTimeout.Seconds()))
	if err != nil {
		return result, services.Wrap(services.ErrTransient, "record", "write harness config", "", err)
	}

	runCtx := ctx
	if r.runTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.runTimeout)
		defer cancel()
	}

	// The executor scans stdout and stderr from separate goroutines, so the
	// collected state behind onLine needs a lock.
	var mu sync.Mutex
	var events []timing.Event
	tail := make([]string, 0, tailLimit)
	onLine := func(line string) {
		mu.Lock()
		defer mu.Unlock()
		tail = appendTail(tail, line)
		event, claimed, perr := timing.ParseEventLine(line)
		if !claimed {
			return
		}
		if perr != nil {
			r.logger.Warn("unusable timing event", slog.String("line", line), slog.String("error", perr.Error()))
			result.Logs = append(result.Logs, "unusable timing event: "+line)
			return
		}
		events = append(events, event)
		r.logger.Debug("step start observed",
			slog.Int("step_id", event.StepID),
			slog.Int64("offset_ms", event.Timestamp))
	}

	args := []string{"playwright", "test", filepath.Base(spec.ScriptPath), "--config", filepath.Base(configPath)}
	runErr := r.exec.Run(runCtx, r.binary, args, scriptDir, onLine)

	// Timings observed before a failure still make it into the result.
	result.Timings = timing.BuildTimings(events, spec.Durations)
	if err := timing.ValidateMonotonic(result.Timings); err != nil {
		r.logger.Warn("timing sequence not monotonic", slog.String("error", err.Error()))
		result.Logs = append(result.Logs, "timing sequence not monotonic: "+err.Error())
	}

	if runErr != nil {
		result.Logs = append(result.Logs, lastLines(tail, 20)...)
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return result, services.Wrap(services.ErrTimeout, "record", "run harness",
				fmt.Sprintf("run exceeded %s", r.runTimeout), runErr)
		}
		return result, services.Wrap(services.ErrExternalTool, "record", "run harness", "", runErr)
	}

	video, err := fileutil.NewestByExtensions(spec.VideoDir, videoExtensions...)
	if err != nil {
		return result, services.Wrap(services.ErrTransient, "record", "locate video", "", err)
	}
	if video == "" {
		result.Logs = append(result.Logs, lastLines(tail, 20)...)
		return result, services.Wrap(services.ErrExternalTool, "record", "locate video",
			"harness exited cleanly but produced no video file", nil)
	}

	result.RawVideoPath = video
	result.Logs = append(result.Logs, fmt.Sprintf("recorded %d step timings, video %s", len(result.Timings), filepath.Base(video)))
	return result, nil
}

func appendTail(tail []string, line string) []string {
	if len(tail) == tailLimit {
		copy(tail, tail[1:])
		tail = tail[:tailLimit-1]
	}
	return append(tail, line)
}

func lastLines(tail []string, n int) []string {
	if len(tail) <= n {
		out := make([]string, len(tail))
		copy(out, tail)
		return out
	}
	out := make([]string, n)
	copy(out, tail[len(tail)-n:])
	return out
}
