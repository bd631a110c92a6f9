package main

import (
	"context"
	"testing"

	"overdub/internal/runlog"
	"overdub/internal/timing"
)

func seedRun(t *testing.T, env *cliTestEnv, id string, outcome runlog.Outcome) {
	t.Helper()
	store, err := runlog.Open(env.cfg.RunLog.Path)
	if err != nil {
		t.Fatalf("open run log: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if _, err := store.Begin(ctx, id, "acme", "signup"); err != nil {
		t.Fatalf("begin run: %v", err)
	}
	if err := store.Finish(ctx, id, outcome); err != nil {
		t.Fatalf("finish run: %v", err)
	}
}

func TestTimingsListsRecentRuns(t *testing.T) {
	env := setupCLITestEnv(t)
	seedRun(t, env, "run-1", runlog.Outcome{
		Status:    runlog.StatusSucceeded,
		VideoPath: "/library/videos/acme/signup/recording.webm",
		Timings: []timing.StepTiming{
			{StepID: 1, StartTimestampMs: 0, AudioDurationMs: 2000},
			{StepID: 2, StartTimestampMs: 4200, AudioDurationMs: 1000},
		},
	})

	out, _, err := runCLI(t, []string{"timings"}, env.configPath)
	if err != nil {
		t.Fatalf("timings: %v", err)
	}
	requireContains(t, out, "run-1")
	requireContains(t, out, "acme/signup")
	requireContains(t, out, "succeeded")
}

func TestTimingsShowsStepOffsetsForRun(t *testing.T) {
	env := setupCLITestEnv(t)
	seedRun(t, env, "run-2", runlog.Outcome{
		Status:   runlog.StatusSucceeded,
		Degraded: true,
		Timings: []timing.StepTiming{
			{StepID: 1, StartTimestampMs: 1500, AudioDurationMs: 2000},
		},
	})

	out, _, err := runCLI(t, []string{"timings", "run-2"}, env.configPath)
	if err != nil {
		t.Fatalf("timings run-2: %v", err)
	}
	requireContains(t, out, "succeeded (no narration)")
	requireContains(t, out, "1.5s")
}

func TestTimingsUnknownRun(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"timings", "missing"}, env.configPath)
	if err == nil {
		t.Fatal("expected error for unknown run id")
	}
}
