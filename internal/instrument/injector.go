package instrument

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"overdub/internal/annotate"
	"overdub/internal/logging"
)

// Options tunes the generated instrumentation.
type Options struct {
	// StabilizationDelayMs is how long the first sync call waits before
	// pinning the reference instant, letting video capture settle.
	StabilizationDelayMs int
}

// Stats reports what an instrumentation pass did.
type Stats struct {
	Calls     int // markers rewritten into sync calls
	Malformed int // markers left as plain comments
}

var requirePattern = regexp.MustCompile(`^(const|let|var)\s+.+=\s*require\s*\(`)

// Inject rewrites an annotated script into its executable, instrumented form.
// The preamble lands after the last top-level import so the script's own
// module structure is untouched. Each parseable marker becomes a sync call;
// a marker whose payload cannot be parsed stays behind as a plain comment and
// is logged, never failing the run.
func Inject(annotated string, opts Options, logger *slog.Logger) (string, Stats, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	if opts.StabilizationDelayMs < 0 {
		opts.StabilizationDelayMs = 0
	}
	if strings.Contains(annotated, preambleBegin) {
		return "", Stats{}, fmt.Errorf("script is already instrumented")
	}

	lines := strings.Split(annotated, "\n")
	insertAt := preambleInsertIndex(lines)

	out := make([]string, 0, len(lines)+32)
	var stats Stats
	var pending []string // sync calls awaiting placement around the next statement

	for i, line := range lines {
		if i == insertAt {
			out = append(out, preambleFor(opts.StabilizationDelayMs))
		}

		if annotate.IsMarkerLine(line) {
			marker, err := annotate.ParseMarker(line)
			if err != nil {
				logger.Warn("leaving malformed marker as comment",
					slog.String("line", strings.TrimSpace(line)),
					slog.String("error", err.Error()))
				stats.Malformed++
				out = append(out, line)
				continue
			}
			// Consecutive markers all bind to the same statement: each call
			// still waits out the previous step's narration, so none is lost.
			pending = append(pending, fmt.Sprintf("await __overdubSync(__overdubCtx, %d, %d);", marker.StepID, marker.AudioDuration))
			continue
		}

		if len(pending) > 0 && strings.TrimSpace(line) != "" {
			indent := indentOf(line)
			if opensBlock(line) {
				// The action body starts on the next line; the sync calls go
				// first inside the block, after any parameter destructuring on
				// the opening line itself.
				out = append(out, line)
				for _, call := range pending {
					out = append(out, indent+"  "+call)
				}
			} else {
				for _, call := range pending {
					out = append(out, indent+call)
				}
				out = append(out, line)
			}
			stats.Calls += len(pending)
			pending = nil
			continue
		}

		out = append(out, line)
	}

	if len(pending) > 0 {
		// Markers at end of file with no statement after them; emit the calls
		// so the steps still register.
		out = append(out, pending...)
		stats.Calls += len(pending)
	}
	if insertAt >= len(lines) {
		out = append(out, preambleFor(opts.StabilizationDelayMs))
	}

	return strings.Join(out, "\n"), stats, nil
}

// preambleInsertIndex returns the line index the preamble should be inserted
// before: immediately after the last top-level import (or require) statement,
// or 0 when the script declares none.
func preambleInsertIndex(lines []string) int {
	last := -1
	for i, line := range lines {
		if strings.HasPrefix(line, "import ") || requirePattern.MatchString(line) {
			last = i
		}
	}
	return last + 1
}

// opensBlock reports whether a statement line opens a scope whose body starts
// on the following line.
func opensBlock(line string) bool {
	return strings.HasSuffix(strings.TrimSpace(line), "{")
}

func indentOf(line string) string {
	for i, r := range line {
		if r != ' ' && r != '\t' {
			return line[:i]
		}
	}
	return line
}
