package compositor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"overdub/internal/config"
	"overdub/internal/services"
	"overdub/internal/timing"
)

type capturedCommand struct {
	name string
	args []string
}

// fakeRunner records the invocation and creates the output file ffmpeg would
// have written (the final positional argument).
func fakeRunner(captured *capturedCommand, fail bool) commandRunner {
	return func(ctx context.Context, name string, args ...string) error {
		captured.name = name
		captured.args = args
		if fail {
			return errors.New("exit status 1: Invalid filterchain")
		}
		return os.WriteFile(args[len(args)-1], []byte("muxed"), 0o644)
	}
}

func newFixture(t *testing.T, clipSteps ...int) (Request, string) {
	t.Helper()
	dir := t.TempDir()
	videoPath := filepath.Join(dir, "recording.webm")
	if err := os.WriteFile(videoPath, []byte("video"), 0o644); err != nil {
		t.Fatal(err)
	}
	audioDir := filepath.Join(dir, "audio")
	if err := os.MkdirAll(audioDir, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, id := range clipSteps {
		name := filepath.Join(audioDir, "step_"+strconv.Itoa(id)+".mp3")
		if err := os.WriteFile(name, []byte("clip"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return Request{
		VideoPath:  videoPath,
		AudioDir:   audioDir,
		OutputPath: filepath.Join(dir, "final.webm"),
		Timings: []timing.StepTiming{
			{StepID: 1, StartTimestampMs: 0, AudioDurationMs: 2000},
			{StepID: 2, StartTimestampMs: 2005, AudioDurationMs: 1500},
			{StepID: 3, StartTimestampMs: 3502, AudioDurationMs: 1000},
		},
	}, dir
}

func newCompositor(runner commandRunner) *Compositor {
	cfg := config.Default()
	c := New(&cfg, nil)
	c.WithCommandRunner(runner)
	return c
}

func TestCompositeMixesClipsAtOffsets(t *testing.T) {
	req, _ := newFixture(t, 1, 2, 3)
	var captured capturedCommand
	c := newCompositor(fakeRunner(&captured, false))

	result, err := c.Composite(context.Background(), req)
	if err != nil {
		t.Fatalf("Composite: %v", err)
	}
	if result.MixedClips != 3 || result.Silent || len(result.SkippedSteps) != 0 {
		t.Fatalf("result = %+v", result)
	}
	if result.OutputPath != req.OutputPath {
		t.Fatalf("output = %q", result.OutputPath)
	}
	if _, err := os.Stat(req.OutputPath); err != nil {
		t.Fatalf("final output missing: %v", err)
	}

	joined := strings.Join(captured.args, " ")
	for _, fragment := range []string{
		"[1:a]adelay=0|0[a1]",
		"[2:a]adelay=2005|2005[a2]",
		"[3:a]adelay=3502|3502[a3]",
		"amix=inputs=3:duration=longest:dropout_transition=0:normalize=0[aout]",
		"-c:v copy",
		"-c:a libopus",
		"-map 0:v:0",
		"-map [aout]",
	} {
		if !strings.Contains(joined, fragment) {
			t.Fatalf("args missing %q:\n%s", fragment, joined)
		}
	}
}

func TestCompositeSkipsMissingClips(t *testing.T) {
	req, _ := newFixture(t, 1, 3)
	var captured capturedCommand
	c := newCompositor(fakeRunner(&captured, false))

	result, err := c.Composite(context.Background(), req)
	if err != nil {
		t.Fatalf("Composite: %v", err)
	}
	if result.MixedClips != 2 {
		t.Fatalf("mixed = %d", result.MixedClips)
	}
	if len(result.SkippedSteps) != 1 || result.SkippedSteps[0] != 2 {
		t.Fatalf("skipped = %v", result.SkippedSteps)
	}
	joined := strings.Join(captured.args, " ")
	if !strings.Contains(joined, "amix=inputs=2:") {
		t.Fatalf("mix should only count present clips:\n%s", joined)
	}
	// The second present clip keeps step 3's captured offset.
	if !strings.Contains(joined, "[2:a]adelay=3502|3502[a2]") {
		t.Fatalf("offset lost for surviving clip:\n%s", joined)
	}
}

func TestCompositeNoClipsProducesSilentOutput(t *testing.T) {
	req, _ := newFixture(t)
	var captured capturedCommand
	c := newCompositor(fakeRunner(&captured, false))

	result, err := c.Composite(context.Background(), req)
	if err != nil {
		t.Fatalf("Composite: %v", err)
	}
	if !result.Silent || result.MixedClips != 0 {
		t.Fatalf("result = %+v", result)
	}
	joined := strings.Join(captured.args, " ")
	if !strings.Contains(joined, "anullsrc") || !strings.Contains(joined, "-shortest") {
		t.Fatalf("silent fallback args wrong:\n%s", joined)
	}
}

func TestCompositeFailureWrapped(t *testing.T) {
	req, _ := newFixture(t, 1, 2, 3)
	var captured capturedCommand
	c := newCompositor(fakeRunner(&captured, true))

	_, err := c.Composite(context.Background(), req)
	if err == nil {
		t.Fatal("expected failure")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("error class = %v", err)
	}
	if _, statErr := os.Stat(req.OutputPath); statErr == nil {
		t.Fatal("failed run must not leave an output file")
	}
}

func TestCompositeContainerMismatchRejected(t *testing.T) {
	req, dir := newFixture(t, 1)
	req.OutputPath = filepath.Join(dir, "final.mp4")
	c := newCompositor(fakeRunner(&capturedCommand{}, false))

	_, err := c.Composite(context.Background(), req)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAudioCodecFor(t *testing.T) {
	cases := map[string]string{
		"final.webm": "libopus",
		"final.mkv":  "libopus",
		"final.mp4":  "aac",
		"final.mov":  "aac",
	}
	for path, want := range cases {
		if got := audioCodecFor(path); got != want {
			t.Errorf("audioCodecFor(%q) = %q, want %q", path, got, want)
		}
	}
}
