package driver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"overdub/internal/compositor"
	"overdub/internal/config"
	"overdub/internal/fileutil"
	"overdub/internal/harness"
	"overdub/internal/job"
	"overdub/internal/logging"
	"overdub/internal/notifications"
	"overdub/internal/runlog"
	"overdub/internal/services"
	"overdub/internal/stage"
	"overdub/internal/steps"
	"overdub/internal/storage"
	"overdub/internal/timing"
)

// Result is the final job outcome, delivered to the caller and POSTed to the
// manifest's callback URL.
type Result struct {
	Success       bool                `json:"success"`
	RunID         string              `json:"runId"`
	Job           string              `json:"job"`
	VideoLocation string              `json:"videoLocation,omitempty"`
	Degraded      bool                `json:"degraded,omitempty"`
	DurationMs    int64               `json:"durationMs"`
	ErrorMessage  string              `json:"errorMessage,omitempty"`
	StepTimings   []timing.StepTiming `json:"stepTimings,omitempty"`
	Logs          []string            `json:"logs,omitempty"`
}

// runnerService and compositorService let tests drive the pipeline without
// spawning real subprocesses.
type runnerService interface {
	Run(ctx context.Context, spec harness.RunSpec) (harness.Result, error)
}

type compositorService interface {
	Composite(ctx context.Context, req compositor.Request) (compositor.Result, error)
}

// Driver orchestrates one job end to end: annotate, instrument, record,
// composite, upload.
type Driver struct {
	cfg      *config.Config
	logger   *slog.Logger
	notifier notifications.Service
	webhook  *notifications.Webhook
	history  *runlog.Store

	runner     runnerService
	compositor compositorService
	uploader   storage.Uploader

	newRunID func() string
}

// Option configures optional driver collaborators, primarily for tests.
type Option func(*Driver)

// WithNotifier injects a custom notification service.
func WithNotifier(n notifications.Service) Option {
	return func(d *Driver) {
		if n != nil {
			d.notifier = n
		}
	}
}

// WithRunner injects a custom recording runner.
func WithRunner(r runnerService) Option {
	return func(d *Driver) {
		if r != nil {
			d.runner = r
		}
	}
}

// WithCompositor injects a custom compositor.
func WithCompositor(c compositorService) Option {
	return func(d *Driver) {
		if c != nil {
			d.compositor = c
		}
	}
}

// WithUploader injects a custom upload target.
func WithUploader(u storage.Uploader) Option {
	return func(d *Driver) {
		if u != nil {
			d.uploader = u
		}
	}
}

// WithHistory injects the run-history store. Without one, runs are not
// persisted.
func WithHistory(store *runlog.Store) Option {
	return func(d *Driver) {
		d.history = store
	}
}

// WithRunIDSource overrides run-id generation.
func WithRunIDSource(src func() string) Option {
	return func(d *Driver) {
		if src != nil {
			d.newRunID = src
		}
	}
}

// New constructs a driver from application config.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Driver, error) {
	if cfg == nil {
		return nil, errors.New("config required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	runner, err := harness.NewRunner(cfg, logger)
	if err != nil {
		return nil, err
	}

	d := &Driver{
		cfg:        cfg,
		logger:     logger.With(slog.String(logging.FieldComponent, "driver")),
		notifier:   notifications.NewService(cfg),
		webhook:    notifications.NewWebhook(cfg),
		runner:     runner,
		compositor: compositor.New(cfg, logger),
		uploader:   storage.NewLibrary(cfg, logger),
		newRunID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Run executes the manifest's job and returns its result. The returned
// Result is complete even when err is non-nil; err carries the stage failure
// for callers that want to branch on it.
func (d *Driver) Run(ctx context.Context, manifest *job.Manifest) (Result, error) {
	start := time.Now()
	runID := d.newRunID()
	result := Result{RunID: runID, Job: manifest.Label()}

	ctx = services.WithJobID(ctx, runID)
	logger := d.logger.With(slog.String(logging.FieldJobID, runID))
	logger.Info("job started",
		slog.String("job", manifest.Label()),
		slog.String("steps", steps.Summarize(manifest.Steps)))

	item, unlock, err := d.prepare(manifest, runID)
	if err != nil {
		return d.finish(ctx, logger, result, manifest, nil, start, err)
	}
	defer unlock()

	if d.history != nil {
		if _, err := d.history.Begin(ctx, runID, manifest.Tenant, manifest.Project); err != nil {
			logger.Warn("run history insert failed", slog.String("error", err.Error()))
		}
	}
	if err := d.notifier.NotifyJobStarted(ctx, manifest.Label(), len(item.Steps)); err != nil {
		logger.Warn("start notification failed", slog.String("error", err.Error()))
	}

	err = d.executeStages(ctx, logger, item)
	return d.finish(ctx, logger, result, manifest, item, start, err)
}

// prepare resolves steps, allocates the per-run working directories, and
// takes the workdir lock.
func (d *Driver) prepare(manifest *job.Manifest, runID string) (*stage.Item, func(), error) {
	resolved, orphans := manifest.ResolvedSteps()

	workRoot := d.cfg.Paths.WorkDir
	if err := os.MkdirAll(workRoot, 0o755); err != nil {
		return nil, nil, fmt.Errorf("ensure work dir: %w", err)
	}

	lock := flock.New(filepath.Join(workRoot, "overdub.lock"))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, nil, fmt.Errorf("acquire work dir lock: %w", err)
	}
	if !ok {
		return nil, nil, errors.New("another overdub run is already in progress")
	}
	unlock := func() { _ = lock.Unlock() }

	workDir := filepath.Join(workRoot, runID)
	item := &stage.Item{
		RunID:    runID,
		Manifest: manifest,
		Steps:    resolved,
		WorkDir:  workDir,
		AudioDir: filepath.Join(workDir, "audio"),
		VideoDir: filepath.Join(workDir, "video"),
	}
	for _, dir := range []string{item.WorkDir, item.AudioDir, item.VideoDir} {
		if err := fileutil.EnsureCleanDir(dir); err != nil {
			unlock()
			return nil, nil, fmt.Errorf("prepare %s: %w", dir, err)
		}
	}
	item.AppendLog("job: " + steps.Summarize(resolved))
	if len(orphans) > 0 {
		item.AppendLog(fmt.Sprintf("duration table entries for unknown steps: %v", orphans))
	}
	return item, unlock, nil
}

func (d *Driver) executeStages(ctx context.Context, logger *slog.Logger, item *stage.Item) error {
	handlers := []stage.Handler{
		&annotateStage{cfg: d.cfg, logger: newComponentLogger(logger, "annotate")},
		&stageAudioStage{logger: newComponentLogger(logger, "stage-audio")},
		&recordStage{cfg: d.cfg, runner: d.runner, logger: newComponentLogger(logger, "record")},
		&compositeStage{cfg: d.cfg, compositor: d.compositor, logger: newComponentLogger(logger, "composite")},
		&uploadStage{uploader: d.uploader, logger: newComponentLogger(logger, "upload")},
	}

	for _, handler := range handlers {
		stageCtx := services.WithStage(ctx, handler.Name())
		logger.Debug("stage starting", slog.String("stage", handler.Name()))
		err := handler.Execute(stageCtx, item)
		if err == nil {
			if handler.Name() == "record" {
				if nerr := d.notifier.NotifyRecordingCompleted(ctx, item.Manifest.Label(), len(item.Timings)); nerr != nil {
					logger.Warn("recording notification failed", slog.String("error", nerr.Error()))
				}
			}
			continue
		}
		if handler.Name() == "composite" {
			// Narration is an enhancement; the raw recording is still a
			// deliverable.
			logger.Warn("compositing failed, delivering raw recording", slog.String("error", err.Error()))
			item.Degraded = true
			item.FinalVideoPath = ""
			item.AppendLog("composite failed: " + err.Error())
			continue
		}
		logger.Error("stage failed",
			slog.String("stage", handler.Name()),
			slog.String("error", err.Error()))
		return err
	}
	return nil
}

// finish assembles the result, persists history, and fires notifications and
// the callback webhook.
func (d *Driver) finish(ctx context.Context, logger *slog.Logger, result Result, manifest *job.Manifest, item *stage.Item, start time.Time, runErr error) (Result, error) {
	result.DurationMs = time.Since(start).Milliseconds()
	if item != nil {
		result.VideoLocation = item.FinalVideoPath
		result.Degraded = item.Degraded
		result.StepTimings = item.Timings
		result.Logs = item.Logs
	}
	result.Success = runErr == nil
	if runErr != nil {
		result.ErrorMessage = runErr.Error()
	}

	label := result.Job
	if runErr == nil {
		logger.Info("job completed",
			slog.String("video", result.VideoLocation),
			slog.Bool("degraded", result.Degraded),
			slog.Int64("duration_ms", result.DurationMs))
		if err := d.notifier.NotifyJobCompleted(ctx, label, result.VideoLocation, result.Degraded); err != nil {
			logger.Warn("completion notification failed", slog.String("error", err.Error()))
		}
	} else {
		logger.Error("job failed", slog.String("error", runErr.Error()))
		if err := d.notifier.NotifyJobFailed(ctx, label, runErr); err != nil {
			logger.Warn("failure notification failed", slog.String("error", err.Error()))
		}
	}

	if d.history != nil {
		outcome := runlog.Outcome{
			Status:       runlog.StatusSucceeded,
			Degraded:     result.Degraded,
			VideoPath:    result.VideoLocation,
			ErrorMessage: result.ErrorMessage,
			Timings:      result.StepTimings,
			LogTail:      result.Logs,
		}
		if runErr != nil {
			outcome.Status = runlog.StatusFailed
		} else if result.Degraded {
			outcome.ErrorMessage = "compositing failed, delivered raw recording"
		}
		if err := d.history.Finish(ctx, result.RunID, outcome); err != nil {
			logger.Warn("run history update failed", slog.String("error", err.Error()))
		}
	}

	if err := d.webhook.PostResult(ctx, manifest.CallbackURL, result); err != nil {
		logger.Warn("result callback failed", slog.String("error", err.Error()))
	}
	return result, runErr
}

// HealthCheck reports per-stage readiness without running a job.
func (d *Driver) HealthCheck(ctx context.Context) []stage.Health {
	handlers := []stage.Handler{
		&annotateStage{cfg: d.cfg, logger: d.logger},
		&stageAudioStage{logger: d.logger},
		&recordStage{cfg: d.cfg, logger: d.logger},
		&compositeStage{cfg: d.cfg, logger: d.logger},
		&uploadStage{uploader: d.uploader, logger: d.logger},
	}
	checks := make([]stage.Health, 0, len(handlers))
	for _, handler := range handlers {
		checks = append(checks, handler.HealthCheck(ctx))
	}
	return checks
}
