package main

import (
	"encoding/json"
	"fmt"
	"io"
)

func printJSON(out io.Writer, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	fmt.Fprintln(out, string(data))
	return nil
}

// formatMs renders a millisecond count as a short human duration.
func formatMs(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	seconds := float64(ms) / 1000.0
	if seconds < 60 {
		return fmt.Sprintf("%.1fs", seconds)
	}
	minutes := int64(seconds) / 60
	rem := seconds - float64(minutes*60)
	return fmt.Sprintf("%dm%02.0fs", minutes, rem)
}
