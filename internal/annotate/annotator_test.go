package annotate_test

import (
	"strings"
	"testing"

	"overdub/internal/annotate"
	"overdub/internal/steps"
)

const threeStepScript = `import { test, expect } from '@playwright/test';

test('checkout walkthrough', async ({ page }) => {
  await page.setViewportSize({ width: 1920, height: 1080 });
  await page.goto('https://shop.example.com');
  await page.waitForLoadState('networkidle');
  await page.fill('#search', 'mechanical keyboard');
  await page.click('#submit');
  await page.screenshot({ path: 'done.png' });
});
`

func specList(durations ...int) []steps.Spec {
	specs := make([]steps.Spec, 0, len(durations))
	for i, ms := range durations {
		specs = append(specs, steps.Spec{StepID: i + 1, AudioDurationMs: ms})
	}
	return specs
}

func markerLines(script string) []string {
	var markers []string
	for _, line := range strings.Split(script, "\n") {
		if annotate.IsMarkerLine(line) {
			markers = append(markers, line)
		}
	}
	return markers
}

func TestAnnotateBindsByPosition(t *testing.T) {
	annotated, stats, err := annotate.Annotate(threeStepScript, specList(2000, 1500, 1000))
	if err != nil {
		t.Fatalf("Annotate: %v", err)
	}
	if stats.Markers != 3 || stats.Statements != 3 || stats.UnusedSteps != 0 {
		t.Fatalf("stats = %+v", stats)
	}

	markers := markerLines(annotated)
	if len(markers) != 3 {
		t.Fatalf("marker count = %d", len(markers))
	}
	for i, line := range markers {
		marker, err := annotate.ParseMarker(line)
		if err != nil {
			t.Fatalf("marker %d unparseable: %v", i, err)
		}
		if marker.StepID != i+1 {
			t.Fatalf("marker %d has stepId %d; markers must ascend", i, marker.StepID)
		}
	}

	// Setup calls stay unannotated.
	for _, fragment := range []string{"setViewportSize", "waitForLoadState", "screenshot"} {
		idx := strings.Index(annotated, fragment)
		if idx < 0 {
			t.Fatalf("fragment %q lost", fragment)
		}
		before := annotated[:idx]
		lines := strings.Split(before, "\n")
		prev := lines[len(lines)-2]
		if annotate.IsMarkerLine(prev) {
			t.Fatalf("setup call %q gained a marker", fragment)
		}
	}
}

func TestAnnotateIgnoresCodeActionText(t *testing.T) {
	// Specs whose codeAction text does not match the script literal must bind
	// anyway: position is the only binding strategy.
	specs := specList(100, 100, 100)
	for i := range specs {
		specs[i].CodeAction = "page.press('#totally-different')"
	}
	_, stats, err := annotate.Annotate(threeStepScript, specs)
	if err != nil {
		t.Fatalf("Annotate: %v", err)
	}
	if stats.Markers != 3 {
		t.Fatalf("markers = %d, want 3", stats.Markers)
	}
}

func TestAnnotateMoreSpecsThanStatements(t *testing.T) {
	annotated, stats, err := annotate.Annotate(threeStepScript, specList(1, 2, 3, 4, 5))
	if err != nil {
		t.Fatalf("Annotate: %v", err)
	}
	if stats.Markers != 3 {
		t.Fatalf("markers = %d, want 3", stats.Markers)
	}
	if stats.UnusedSteps != 2 {
		t.Fatalf("unused = %d, want 2", stats.UnusedSteps)
	}
	if got := markerLines(annotated); len(got) != 3 {
		t.Fatalf("marker lines = %d", len(got))
	}
}

func TestAnnotateMoreStatementsThanSpecs(t *testing.T) {
	annotated, stats, err := annotate.Annotate(threeStepScript, specList(500))
	if err != nil {
		t.Fatalf("Annotate: %v", err)
	}
	if stats.Markers != 1 || stats.UnusedSteps != 0 {
		t.Fatalf("stats = %+v", stats)
	}
	if !strings.Contains(annotated, "await page.click('#submit');") {
		t.Fatal("trailing statement lost")
	}
}

func TestAnnotateDeterministic(t *testing.T) {
	first, _, err := annotate.Annotate(threeStepScript, specList(2000, 1500, 1000))
	if err != nil {
		t.Fatal(err)
	}
	second, _, err := annotate.Annotate(threeStepScript, specList(2000, 1500, 1000))
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Fatal("annotation is not byte-identical across runs")
	}
}

func TestAnnotateSkipsAlreadyMarkedStatements(t *testing.T) {
	annotated, _, err := annotate.Annotate(threeStepScript, specList(2000, 1500, 1000))
	if err != nil {
		t.Fatal(err)
	}
	again, stats, err := annotate.Annotate(annotated, specList(2000, 1500, 1000))
	if err != nil {
		t.Fatal(err)
	}
	if stats.Markers != 0 {
		t.Fatalf("second pass inserted %d markers", stats.Markers)
	}
	if again != annotated {
		t.Fatal("re-annotation modified an already annotated script")
	}
}

func TestAnnotateRejectsOutOfOrderSpecs(t *testing.T) {
	specs := specList(100, 100)
	specs[0].StepID = 2
	specs[1].StepID = 1
	if _, _, err := annotate.Annotate(threeStepScript, specs); err == nil {
		t.Fatal("expected ordering error")
	}
}

func TestIsExecutableStatementClassification(t *testing.T) {
	executable := []string{
		"await page.goto('https://example.com');",
		"await page.locator('#buy').click();",
		"await page.getByLabel('Quantity').selectOption('2');",
		"await page.getByRole('checkbox').check();",
		"await expect(page.locator('.cart')).toHaveText('1 item');",
		"await page.keyboard.press('Enter');",
	}
	for _, line := range executable {
		if !annotate.IsExecutableStatement(line) {
			t.Errorf("%q should be executable", line)
		}
	}

	setup := []string{
		"await page.setViewportSize({ width: 1280, height: 720 });",
		"await page.waitForTimeout(500);",
		"await page.waitForSelector('#app');",
		"await page.screenshot({ path: 'x.png' });",
		"console.log('starting');",
		"// await page.click('#commented-out');",
		"",
	}
	for _, line := range setup {
		if annotate.IsExecutableStatement(line) {
			t.Errorf("%q should not be executable", line)
		}
	}
}
