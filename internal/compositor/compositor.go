package compositor

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"overdub/internal/config"
	"overdub/internal/logging"
	"overdub/internal/services"
	"overdub/internal/steps"
	"overdub/internal/timing"
)

// audioExtensions lists the clip formats probed for each step, in preference
// order.
var audioExtensions = []string{"mp3", "wav", "m4a", "ogg", "opus", "aac", "flac"}

type commandRunner func(ctx context.Context, name string, args ...string) error

// Request describes one compositing operation.
type Request struct {
	// VideoPath is the silent recording produced by the harness.
	VideoPath string
	// AudioDir holds per-step narration clips named by stepId.
	AudioDir string
	// Timings carry the offset at which each step's clip starts. Offsets are
	// used as-is, never re-derived.
	Timings []timing.StepTiming
	// OutputPath is the final video. Its extension must match VideoPath so
	// the container stays identical.
	OutputPath string
}

// Result reports what the composite produced.
type Result struct {
	OutputPath   string
	MixedClips   int
	SkippedSteps []int
	// Silent is true when no clips were found and the output carries an
	// empty audio track instead.
	Silent bool
}

// Compositor mixes narration clips into a recorded video at their captured
// offsets using ffmpeg.
type Compositor struct {
	binary     string
	bitrate    string
	muxTimeout time.Duration
	logger     *slog.Logger
	run        commandRunner
}

// New constructs a compositor from application config.
func New(cfg *config.Config, logger *slog.Logger) *Compositor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Compositor{
		binary:     cfg.FFmpegBinary(),
		bitrate:    cfg.FFmpeg.AudioBitrate,
		muxTimeout: time.Duration(cfg.FFmpeg.MuxTimeout) * time.Second,
		logger:     logger.With(slog.String(logging.FieldComponent, "compositor")),
		run:        defaultCommandRunner,
	}
}

// WithCommandRunner injects a custom command runner for tests.
func (c *Compositor) WithCommandRunner(r commandRunner) {
	if c != nil && r != nil {
		c.run = r
	}
}

// Composite mixes the available narration clips into the video. Steps whose
// clip is missing are skipped and reported; a run with no clips at all still
// yields a valid output with a silent audio track. The video stream is mapped
// through untouched.
func (c *Compositor) Composite(ctx context.Context, req Request) (Result, error) {
	result := Result{}
	if strings.TrimSpace(req.VideoPath) == "" {
		return result, services.Wrap(services.ErrValidation, "composite", "validate", "video path required", nil)
	}
	if strings.TrimSpace(req.OutputPath) == "" {
		return result, services.Wrap(services.ErrValidation, "composite", "validate", "output path required", nil)
	}
	if _, err := os.Stat(req.VideoPath); err != nil {
		return result, services.Wrap(services.ErrNotFound, "composite", "validate", "recorded video missing", err)
	}
	if inExt, outExt := filepath.Ext(req.VideoPath), filepath.Ext(req.OutputPath); inExt != outExt {
		return result, services.Wrap(services.ErrValidation, "composite", "validate",
			fmt.Sprintf("output container %q must match input %q", outExt, inExt), nil)
	}

	var clips []clip
	for _, t := range req.Timings {
		path, err := findClip(req.AudioDir, t.StepID)
		if err != nil {
			return result, services.Wrap(services.ErrTransient, "composite", "scan audio dir", "", err)
		}
		if path == "" {
			c.logger.Warn("narration clip missing, step will be silent",
				slog.Int("step_id", t.StepID),
				slog.String("audio_dir", req.AudioDir))
			result.SkippedSteps = append(result.SkippedSteps, t.StepID)
			continue
		}
		clips = append(clips, clip{path: path, offsetMs: t.StartTimestampMs})
	}

	runCtx := ctx
	if c.muxTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.muxTimeout)
		defer cancel()
	}

	codec := audioCodecFor(req.OutputPath)

	// Temp file keeps the container extension so ffmpeg can infer the muxer;
	// rename on success so a failed run never leaves a truncated output.
	tmpPath := filepath.Join(filepath.Dir(req.OutputPath), ".mux-"+filepath.Base(req.OutputPath))
	defer os.Remove(tmpPath)

	var args []string
	if len(clips) == 0 {
		c.logger.Warn("no narration clips found, producing silent output",
			slog.String("audio_dir", req.AudioDir))
		result.Silent = true
		args = c.silentArgs(req.VideoPath, codec, tmpPath)
	} else {
		args = c.mixArgs(req.VideoPath, clips, codec, tmpPath)
	}

	c.logger.Debug("executing ffmpeg",
		slog.Int("clips", len(clips)),
		slog.String("codec", codec),
		slog.String("output", req.OutputPath))

	if err := c.run(runCtx, c.binary, args...); err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return result, services.Wrap(services.ErrTimeout, "composite", "mux",
				fmt.Sprintf("mux exceeded %s", c.muxTimeout), err)
		}
		return result, services.Wrap(services.ErrExternalTool, "composite", "mux", "", err)
	}
	if _, err := os.Stat(tmpPath); err != nil {
		return result, services.Wrap(services.ErrExternalTool, "composite", "mux",
			"ffmpeg exited cleanly but produced no output", err)
	}
	if err := os.Rename(tmpPath, req.OutputPath); err != nil {
		return result, services.Wrap(services.ErrTransient, "composite", "finalize output", "", err)
	}

	result.OutputPath = req.OutputPath
	result.MixedClips = len(clips)
	c.logger.Info("narration composited",
		slog.Int("mixed", result.MixedClips),
		slog.Int("skipped", len(result.SkippedSteps)),
		slog.Bool("silent", result.Silent),
		slog.String("output", req.OutputPath))
	return result, nil
}

type clip struct {
	path     string
	offsetMs int64
}

// mixArgs builds the ffmpeg invocation delaying each clip to its captured
// offset and summing them into one track. The sum is deliberately not
// normalized so volume stays constant regardless of clip count.
func (c *Compositor) mixArgs(videoPath string, clips []clip, codec, outPath string) []string {
	args := []string{"-y", "-i", videoPath}
	for _, cl := range clips {
		args = append(args, "-i", cl.path)
	}

	var filters []string
	var mixInputs []string
	for i, cl := range clips {
		label := fmt.Sprintf("a%d", i+1)
		filters = append(filters,
			fmt.Sprintf("[%d:a]adelay=%d|%d[%s]", i+1, cl.offsetMs, cl.offsetMs, label))
		mixInputs = append(mixInputs, "["+label+"]")
	}
	filterComplex := strings.Join(filters, ";") + ";" + strings.Join(mixInputs, "") +
		fmt.Sprintf("amix=inputs=%d:duration=longest:dropout_transition=0:normalize=0[aout]", len(clips))

	args = append(args,
		"-filter_complex", filterComplex,
		"-map", "0:v:0",
		"-map", "[aout]",
		"-c:v", "copy",
		"-c:a", codec,
	)
	if c.bitrate != "" {
		args = append(args, "-b:a", c.bitrate)
	}
	return append(args, outPath)
}

// silentArgs builds the fallback invocation attaching an empty audio track,
// trimmed to the video's length.
func (c *Compositor) silentArgs(videoPath, codec, outPath string) []string {
	args := []string{
		"-y",
		"-i", videoPath,
		"-f", "lavfi",
		"-i", "anullsrc=r=48000:cl=stereo",
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c:v", "copy",
		"-c:a", codec,
		"-shortest",
	}
	if c.bitrate != "" {
		args = append(args, "-b:a", c.bitrate)
	}
	return append(args, outPath)
}

// audioCodecFor picks an audio codec the output container accepts.
func audioCodecFor(outputPath string) string {
	switch strings.ToLower(filepath.Ext(outputPath)) {
	case ".webm":
		return "libopus"
	case ".mkv":
		return "libopus"
	default:
		return "aac"
	}
}

// findClip probes the audio directory for a step's narration clip. Returns
// empty when no candidate exists.
func findClip(audioDir string, stepID int) (string, error) {
	for _, ext := range audioExtensions {
		candidate := filepath.Join(audioDir, steps.ClipFileName(stepID, ext))
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
	}
	return "", nil
}

func defaultCommandRunner(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}
