package annotate

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Sentinel is the token that tags a marker comment. The upstream
// script-generation service emits the same token, so the format must stay
// stable: a single-line `//` comment, the sentinel, then a compact
// {stepId, audioDuration} payload in strict or relaxed (unquoted-key) object
// notation.
const Sentinel = "OVERDUB_MARK"

// Marker is the payload carried by one marker comment.
type Marker struct {
	StepID        int `json:"stepId"`
	AudioDuration int `json:"audioDuration"`
}

// unquotedKeyPattern rewrites bare object keys into quoted JSON keys.
var unquotedKeyPattern = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_]*)\s*:`)

// FormatMarker renders the canonical marker comment for a step.
func FormatMarker(m Marker) string {
	return fmt.Sprintf("// %s {stepId: %d, audioDuration: %d}", Sentinel, m.StepID, m.AudioDuration)
}

// IsMarkerLine reports whether the line is a marker comment, parseable or not.
func IsMarkerLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "//") {
		return false
	}
	return strings.Contains(trimmed, Sentinel)
}

// ParseMarker extracts the payload from a marker comment line. Both strict
// JSON and relaxed unquoted-key notation are accepted.
func ParseMarker(line string) (Marker, error) {
	trimmed := strings.TrimSpace(line)
	idx := strings.Index(trimmed, Sentinel)
	if idx < 0 || !strings.HasPrefix(trimmed, "//") {
		return Marker{}, fmt.Errorf("not a %s comment: %q", Sentinel, line)
	}

	payload := strings.TrimSpace(trimmed[idx+len(Sentinel):])
	if payload == "" {
		return Marker{}, fmt.Errorf("marker payload missing: %q", line)
	}

	normalized := unquotedKeyPattern.ReplaceAllString(payload, `$1"$2":`)
	var marker Marker
	if err := json.Unmarshal([]byte(normalized), &marker); err != nil {
		return Marker{}, fmt.Errorf("parse marker payload %q: %w", payload, err)
	}
	if marker.StepID <= 0 {
		return Marker{}, fmt.Errorf("marker stepId must be positive: %q", payload)
	}
	if marker.AudioDuration < 0 {
		return Marker{}, fmt.Errorf("marker audioDuration must not be negative: %q", payload)
	}
	return marker, nil
}
