package main

import (
	"os"
	"path/filepath"
	"testing"
)

const annotateScript = `import { test } from '@playwright/test';

test('signup', async ({ page }) => {
  await page.goto('https://app.example.com');
  await page.click('#submit');
});
`

const annotateManifest = `{
  "tenant": "acme",
  "project": "signup",
  "scriptPath": "signup.spec.js",
  "audioDir": "audio",
  "steps": [
    {"stepId": 1, "codeAction": "page.goto('https://app.example.com')", "narration": "Open the app.", "audioDurationMs": 2000},
    {"stepId": 2, "codeAction": "page.click('#submit')", "narration": "Submit.", "audioDurationMs": 1000}
  ]
}`

func writeAnnotateFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "signup.spec.js"), []byte(annotateScript), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "audio"), 0o755); err != nil {
		t.Fatal(err)
	}
	manifestPath := filepath.Join(dir, "job.json")
	if err := os.WriteFile(manifestPath, []byte(annotateManifest), 0o644); err != nil {
		t.Fatal(err)
	}
	return manifestPath
}

func TestAnnotateCommandPrintsMarkedScript(t *testing.T) {
	env := setupCLITestEnv(t)
	manifestPath := writeAnnotateFixture(t)

	out, stderr, err := runCLI(t, []string{"annotate", manifestPath}, env.configPath)
	if err != nil {
		t.Fatalf("annotate: %v", err)
	}
	requireContains(t, out, "OVERDUB_MARK {stepId: 1, audioDuration: 2000}")
	requireContains(t, out, "OVERDUB_MARK {stepId: 2, audioDuration: 1000}")
	requireContains(t, stderr, "2 markers")
}

func TestAnnotateCommandInstrumentedOutputFile(t *testing.T) {
	env := setupCLITestEnv(t)
	manifestPath := writeAnnotateFixture(t)
	target := filepath.Join(t.TempDir(), "instrumented.spec.js")

	_, _, err := runCLI(t, []string{"annotate", manifestPath, "--instrument", "--output", target}, env.configPath)
	if err != nil {
		t.Fatalf("annotate --instrument: %v", err)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	requireContains(t, string(data), "__overdubSync")
}
