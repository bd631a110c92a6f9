package steps

import (
	"fmt"
	"sort"
	"strings"
)

// Importance grades how prominent a step's narration is.
type Importance string

const (
	ImportanceLow    Importance = "low"
	ImportanceMedium Importance = "medium"
	ImportanceHigh   Importance = "high"
)

// Valid reports whether the importance is one of the known grades.
func (i Importance) Valid() bool {
	switch i {
	case ImportanceLow, ImportanceMedium, ImportanceHigh:
		return true
	}
	return false
}

// Spec describes a single narrated action. Specs are produced upstream by the
// script-generation service and augmented with the synthesized narration
// length before annotation.
type Spec struct {
	StepID          int        `json:"stepId" yaml:"stepId"`
	CodeAction      string     `json:"codeAction" yaml:"codeAction"`
	Narration       string     `json:"narration" yaml:"narration"`
	Importance      Importance `json:"importance" yaml:"importance"`
	AudioDurationMs int        `json:"audioDurationMs" yaml:"audioDurationMs"`
}

// ValidateSequence enforces the ordering contract on a spec list: IDs are
// 1-based, strictly sequential, and unique.
func ValidateSequence(specs []Spec) error {
	for i, spec := range specs {
		want := i + 1
		if spec.StepID != want {
			return fmt.Errorf("step %d: stepId %d out of sequence (want %d)", i, spec.StepID, want)
		}
		if spec.AudioDurationMs < 0 {
			return fmt.Errorf("step %d: negative audio duration %d", spec.StepID, spec.AudioDurationMs)
		}
		if spec.Importance != "" && !spec.Importance.Valid() {
			return fmt.Errorf("step %d: unknown importance %q", spec.StepID, spec.Importance)
		}
	}
	return nil
}

// ApplyDurations copies per-step audio durations from the manifest's duration
// table onto the specs. A step without a table entry keeps its existing
// duration. Returns the stepIds present in the table that matched no spec, in
// ascending order, so the caller can log them.
func ApplyDurations(specs []Spec, durations map[int]int) []int {
	matched := make(map[int]struct{}, len(specs))
	for i := range specs {
		if ms, ok := durations[specs[i].StepID]; ok {
			specs[i].AudioDurationMs = ms
			matched[specs[i].StepID] = struct{}{}
		}
	}
	var orphans []int
	for id := range durations {
		if _, ok := matched[id]; !ok {
			orphans = append(orphans, id)
		}
	}
	sort.Ints(orphans)
	return orphans
}

// Summarize renders a short human-readable description of a spec list for
// logs.
func Summarize(specs []Spec) string {
	if len(specs) == 0 {
		return "no steps"
	}
	var total int
	for _, spec := range specs {
		total += spec.AudioDurationMs
	}
	return fmt.Sprintf("%d steps, %.1fs narration", len(specs), float64(total)/1000)
}

// ClipFileName returns the deterministic narration clip name for a step.
func ClipFileName(stepID int, ext string) string {
	ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
	return fmt.Sprintf("step_%d.%s", stepID, ext)
}
