package annotate

import (
	"regexp"
	"strings"
)

// actionCallPattern matches user-facing Playwright interactions invoked on a
// page or locator: clicks, text entry, checkbox and select interactions.
var actionCallPattern = regexp.MustCompile(`\.(click|dblclick|tap|fill|type|pressSequentially|press|check|uncheck|setChecked|selectOption)\s*\(`)

// navigationPattern matches page navigation calls.
var navigationPattern = regexp.MustCompile(`\bgoto\s*\(`)

// assertionPattern matches verification calls.
var assertionPattern = regexp.MustCompile(`\bexpect(?:\.soft)?\s*\(`)

// setupCallFragments disqualify a line even when an action pattern matches:
// viewport sizing, fixed delays, load/selector waits, screenshots, and
// logging are setup noise, not narrated user actions.
var setupCallFragments = []string{
	"setViewportSize(",
	"waitForTimeout(",
	"waitForSelector(",
	"waitForLoadState(",
	"waitForURL(",
	"waitForEvent(",
	"screenshot(",
	"console.",
}

// IsExecutableStatement reports whether a script line is a narration-worthy
// executable statement: a user-facing browser action or an assertion.
// Classification looks at one line at a time; multi-line statements are
// classified by their opening line.
func IsExecutableStatement(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}
	if strings.HasPrefix(trimmed, "//") || strings.HasPrefix(trimmed, "/*") || strings.HasPrefix(trimmed, "*") {
		return false
	}
	for _, fragment := range setupCallFragments {
		if strings.Contains(trimmed, fragment) {
			return false
		}
	}
	if navigationPattern.MatchString(trimmed) {
		return true
	}
	if assertionPattern.MatchString(trimmed) {
		return true
	}
	return actionCallPattern.MatchString(trimmed)
}
