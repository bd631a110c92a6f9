package driver

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"overdub/internal/annotate"
	"overdub/internal/compositor"
	"overdub/internal/config"
	"overdub/internal/fileutil"
	"overdub/internal/harness"
	"overdub/internal/instrument"
	"overdub/internal/logging"
	"overdub/internal/services"
	"overdub/internal/stage"
	"overdub/internal/storage"
	"overdub/internal/textutil"
)

// annotateStage binds step specs to executable statements and rewrites the
// markers into sync calls, writing the instrumented script into the workdir.
type annotateStage struct {
	cfg    *config.Config
	logger *slog.Logger
}

func (s *annotateStage) Name() string { return "annotate" }

func (s *annotateStage) Execute(ctx context.Context, item *stage.Item) error {
	script, err := os.ReadFile(item.Manifest.ScriptPath)
	if err != nil {
		return services.Wrap(services.ErrNotFound, s.Name(), "read script", "", err)
	}

	annotated, stats, err := annotate.Annotate(string(script), item.Steps)
	if err != nil {
		return services.Wrap(services.ErrValidation, s.Name(), "annotate script", "", err)
	}
	if stats.UnusedSteps > 0 {
		s.logger.Warn("steps without matching statements",
			slog.Int("count", stats.UnusedSteps))
		item.AppendLog(fmt.Sprintf("annotate: %d steps had no matching statement", stats.UnusedSteps))
	}

	instrumented, injectStats, err := instrument.Inject(annotated, instrument.Options{
		StabilizationDelayMs: s.cfg.Harness.StabilizationDelayMs,
	}, s.logger)
	if err != nil {
		return services.Wrap(services.ErrValidation, s.Name(), "instrument script", "", err)
	}
	if injectStats.Malformed > 0 {
		item.AppendLog(fmt.Sprintf("annotate: %d markers were malformed and left unsynchronized", injectStats.Malformed))
	}

	scriptName := textutil.SanitizeFileName(filepath.Base(item.Manifest.ScriptPath))
	target := filepath.Join(item.WorkDir, "script", scriptName)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return services.Wrap(services.ErrTransient, s.Name(), "prepare script dir", "", err)
	}
	if err := os.WriteFile(target, []byte(instrumented), 0o644); err != nil {
		return services.Wrap(services.ErrTransient, s.Name(), "write instrumented script", "", err)
	}

	item.InstrumentedScriptPath = target
	item.AppendLog(fmt.Sprintf("annotate: %d markers bound to %d statements", stats.Markers, stats.Statements))
	s.logger.Info("script instrumented",
		slog.Int("markers", stats.Markers),
		slog.Int("sync_calls", injectStats.Calls),
		slog.String("script", target))
	return nil
}

func (s *annotateStage) HealthCheck(ctx context.Context) stage.Health {
	return stage.Healthy(s.Name())
}

// stageAudioStage copies the manifest's narration clips into the workdir so a
// run's inputs live next to its outputs.
type stageAudioStage struct {
	logger *slog.Logger
}

func (s *stageAudioStage) Name() string { return "stage-audio" }

func (s *stageAudioStage) Execute(ctx context.Context, item *stage.Item) error {
	entries, err := os.ReadDir(item.Manifest.AudioDir)
	if err != nil {
		return services.Wrap(services.ErrNotFound, s.Name(), "read audio dir", "", err)
	}
	copied := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), "step_") {
			continue
		}
		src := filepath.Join(item.Manifest.AudioDir, entry.Name())
		dst := filepath.Join(item.AudioDir, entry.Name())
		if err := fileutil.CopyFile(src, dst); err != nil {
			return services.Wrap(services.ErrTransient, s.Name(), "copy clip", entry.Name(), err)
		}
		copied++
	}
	item.AppendLog(fmt.Sprintf("staged %d narration clips", copied))
	s.logger.Debug("narration clips staged", slog.Int("count", copied))
	return nil
}

func (s *stageAudioStage) HealthCheck(ctx context.Context) stage.Health {
	return stage.Healthy(s.Name())
}

// recordStage runs the instrumented script under the recording harness.
type recordStage struct {
	cfg    *config.Config
	runner runnerService
	logger *slog.Logger
}

func (s *recordStage) Name() string { return "record" }

func (s *recordStage) Execute(ctx context.Context, item *stage.Item) error {
	durations := make(map[int]int, len(item.Steps))
	for _, step := range item.Steps {
		durations[step.StepID] = step.AudioDurationMs
	}

	result, err := s.runner.Run(ctx, harness.RunSpec{
		ScriptPath: item.InstrumentedScriptPath,
		VideoDir:   item.VideoDir,
		Durations:  durations,
	})
	item.Timings = result.Timings
	item.AppendLog(result.Logs...)
	if err != nil {
		return err
	}
	item.RawVideoPath = result.RawVideoPath
	return nil
}

func (s *recordStage) HealthCheck(ctx context.Context) stage.Health {
	binary := s.cfg.RunnerBinary()
	if _, err := exec.LookPath(binary); err != nil {
		return stage.Unhealthy(s.Name(), fmt.Sprintf("binary %q not found", binary))
	}
	return stage.Healthy(s.Name())
}

// compositeStage mixes the staged narration clips into the recording. Its
// failures are degrading, not fatal: the driver delivers the raw video when
// compositing cannot.
type compositeStage struct {
	cfg        *config.Config
	compositor compositorService
	logger     *slog.Logger
}

func (s *compositeStage) Name() string { return "composite" }

func (s *compositeStage) Execute(ctx context.Context, item *stage.Item) error {
	ext := filepath.Ext(item.RawVideoPath)
	outputPath := filepath.Join(item.WorkDir, "final"+ext)

	result, err := s.compositor.Composite(ctx, compositor.Request{
		VideoPath:  item.RawVideoPath,
		AudioDir:   item.AudioDir,
		Timings:    item.Timings,
		OutputPath: outputPath,
	})
	if err != nil {
		return err
	}
	item.FinalVideoPath = result.OutputPath
	if len(result.SkippedSteps) > 0 {
		item.AppendLog(fmt.Sprintf("composite: steps %v had no clips and stay silent", result.SkippedSteps))
	}
	if result.Silent {
		item.AppendLog("composite: no clips found, output carries a silent track")
	} else {
		item.AppendLog(fmt.Sprintf("composite: mixed %d clips", result.MixedClips))
	}
	return nil
}

func (s *compositeStage) HealthCheck(ctx context.Context) stage.Health {
	binary := s.cfg.FFmpegBinary()
	if _, err := exec.LookPath(binary); err != nil {
		return stage.Unhealthy(s.Name(), fmt.Sprintf("binary %q not found", binary))
	}
	return stage.Healthy(s.Name())
}

// uploadStage hands the final video to the library.
type uploadStage struct {
	uploader storage.Uploader
	logger   *slog.Logger
}

func (s *uploadStage) Name() string { return "upload" }

func (s *uploadStage) Execute(ctx context.Context, item *stage.Item) error {
	source := item.FinalVideoPath
	if source == "" {
		// Compositing degraded; the raw recording is the deliverable.
		source = item.RawVideoPath
	}
	if source == "" {
		// Last resort: the harness may have produced a video the earlier
		// stages lost track of.
		discovered, err := fileutil.NewestByExtensions(item.VideoDir, "webm", "mp4", "mkv")
		if err == nil && discovered != "" {
			s.logger.Warn("recovered video by workdir discovery", slog.String("path", discovered))
			item.AppendLog("upload: recovered video by workdir discovery")
			source = discovered
		}
	}
	if source == "" {
		return services.Wrap(services.ErrNotFound, s.Name(), "resolve deliverable", "no video to upload", nil)
	}

	target, err := s.uploader.Upload(ctx, source, storage.Destination{
		Tenant:  item.Manifest.Tenant,
		Project: item.Manifest.Project,
	})
	if err != nil {
		return err
	}
	item.FinalVideoPath = target
	item.AppendLog("upload: stored at " + target)
	return nil
}

func (s *uploadStage) HealthCheck(ctx context.Context) stage.Health {
	return stage.Healthy(s.Name())
}

// newComponentLogger mirrors the logging fields used across stages.
func newComponentLogger(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = logging.NewNop()
	}
	return logger.With(slog.String(logging.FieldComponent, component))
}
