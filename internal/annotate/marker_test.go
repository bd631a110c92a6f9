package annotate_test

import (
	"strings"
	"testing"

	"overdub/internal/annotate"
)

func TestFormatMarkerRoundTrip(t *testing.T) {
	line := annotate.FormatMarker(annotate.Marker{StepID: 7, AudioDuration: 1500})
	marker, err := annotate.ParseMarker(line)
	if err != nil {
		t.Fatalf("ParseMarker(%q): %v", line, err)
	}
	if marker.StepID != 7 || marker.AudioDuration != 1500 {
		t.Fatalf("round trip = %+v", marker)
	}
}

func TestParseMarkerStrictJSON(t *testing.T) {
	marker, err := annotate.ParseMarker(`  // OVERDUB_MARK {"stepId": 2, "audioDuration": 800}`)
	if err != nil {
		t.Fatalf("ParseMarker: %v", err)
	}
	if marker.StepID != 2 || marker.AudioDuration != 800 {
		t.Fatalf("marker = %+v", marker)
	}
}

func TestParseMarkerRelaxedKeys(t *testing.T) {
	marker, err := annotate.ParseMarker(`// OVERDUB_MARK {stepId:3,audioDuration:0}`)
	if err != nil {
		t.Fatalf("ParseMarker: %v", err)
	}
	if marker.StepID != 3 || marker.AudioDuration != 0 {
		t.Fatalf("marker = %+v", marker)
	}
}

func TestParseMarkerRejectsMalformed(t *testing.T) {
	cases := []string{
		`// OVERDUB_MARK`,
		`// OVERDUB_MARK {stepId: }`,
		`// OVERDUB_MARK {stepId: 0, audioDuration: 100}`,
		`// OVERDUB_MARK {stepId: 1, audioDuration: -5}`,
		`await page.click('#x') // no marker here`,
	}
	for _, line := range cases {
		if _, err := annotate.ParseMarker(line); err == nil {
			t.Errorf("ParseMarker(%q) accepted malformed input", line)
		}
	}
}

func TestIsMarkerLine(t *testing.T) {
	if !annotate.IsMarkerLine("  // OVERDUB_MARK {stepId: 1, audioDuration: 2}") {
		t.Fatal("marker line not recognized")
	}
	if annotate.IsMarkerLine("await page.goto('https://example.com')") {
		t.Fatal("statement misclassified as marker")
	}
	if !strings.Contains(annotate.FormatMarker(annotate.Marker{StepID: 1}), annotate.Sentinel) {
		t.Fatal("formatted marker missing sentinel")
	}
}
