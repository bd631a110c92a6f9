package annotate

import (
	"fmt"
	"strings"

	"overdub/internal/services"
	"overdub/internal/steps"
)

// Stats reports what an annotation pass did.
type Stats struct {
	Markers     int // markers inserted
	Statements  int // executable statements seen
	UnusedSteps int // trailing specs with no statement to bind
}

// Annotate inserts one marker comment before each executable statement, bound
// to specs strictly by position: the Nth executable statement receives the Nth
// spec. Textual matching against CodeAction is deliberately never used; it
// does not survive upstream script rewrites.
//
// Statements beyond the spec list stay unannotated, and trailing specs beyond
// the statement count go unused. Neither is an error. A statement already
// preceded by a marker comment is left untouched and consumes no spec.
func Annotate(script string, specs []steps.Spec) (string, Stats, error) {
	if err := steps.ValidateSequence(specs); err != nil {
		return "", Stats{}, services.Wrap(services.ErrValidation, "annotate", "validate steps", "", err)
	}

	lines := strings.Split(script, "\n")
	out := make([]string, 0, len(lines)+len(specs))
	var stats Stats
	next := 0 // index of next unbound spec
	lastStepID := 0

	for i, line := range lines {
		if IsExecutableStatement(line) {
			stats.Statements++
			if alreadyMarked(lines, i) {
				out = append(out, line)
				continue
			}
			if next < len(specs) {
				spec := specs[next]
				if spec.StepID <= lastStepID {
					return "", Stats{}, services.Wrap(services.ErrValidation, "annotate", "order invariant",
						fmt.Sprintf("stepId %d would follow %d", spec.StepID, lastStepID), nil)
				}
				marker := FormatMarker(Marker{StepID: spec.StepID, AudioDuration: spec.AudioDurationMs})
				out = append(out, indentOf(line)+marker)
				lastStepID = spec.StepID
				stats.Markers++
				next++
			}
		}
		out = append(out, line)
	}

	stats.UnusedSteps = len(specs) - next
	return strings.Join(out, "\n"), stats, nil
}

// alreadyMarked reports whether the nearest non-blank line above index i is a
// marker comment.
func alreadyMarked(lines []string, i int) bool {
	for j := i - 1; j >= 0; j-- {
		if strings.TrimSpace(lines[j]) == "" {
			continue
		}
		return IsMarkerLine(lines[j])
	}
	return false
}

func indentOf(line string) string {
	for i, r := range line {
		if r != ' ' && r != '\t' {
			return line[:i]
		}
	}
	return line
}
