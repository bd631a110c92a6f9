package timing

import (
	"encoding/json"
	"fmt"
	"strings"
)

// EventPrefix tags timing events on the harness output stream. One event per
// line, JSON after the prefix, matched textually rather than via structured
// IPC so any process that can print can emit them.
const EventPrefix = "OVERDUB_EVENT "

// EventTypeStart marks the moment a step's action began executing.
const EventTypeStart = "start"

// Event is the wire form of one step-start observation.
type Event struct {
	StepID    int    `json:"stepId"`
	Timestamp int64  `json:"timestamp"`
	Type      string `json:"type"`
}

// StepTiming records when a step started relative to the run's reference
// instant, together with the narration length expected for it.
type StepTiming struct {
	StepID           int
	StartTimestampMs int64
	AudioDurationMs  int
}

// FormatEvent renders the single-line wire form of an event.
func FormatEvent(e Event) string {
	payload, _ := json.Marshal(e)
	return EventPrefix + string(payload)
}

// ParseEventLine extracts an event from one output line. The second return is
// false when the line does not carry the event prefix at all; an error means
// the line claimed to be an event but its payload was unusable.
func ParseEventLine(line string) (Event, bool, error) {
	trimmed := strings.TrimSpace(line)
	idx := strings.Index(trimmed, EventPrefix)
	if idx < 0 {
		return Event{}, false, nil
	}
	payload := strings.TrimSpace(trimmed[idx+len(EventPrefix):])
	var event Event
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return Event{}, true, fmt.Errorf("parse timing event %q: %w", payload, err)
	}
	if event.Type != EventTypeStart {
		return Event{}, true, fmt.Errorf("unknown timing event type %q", event.Type)
	}
	if event.StepID <= 0 {
		return Event{}, true, fmt.Errorf("timing event stepId must be positive: %q", payload)
	}
	if event.Timestamp < 0 {
		return Event{}, true, fmt.Errorf("timing event timestamp must not be negative: %q", payload)
	}
	return event, true, nil
}

// BuildTimings converts events (in arrival order) into StepTiming records,
// attaching the expected narration duration for each step from the duration
// table.
func BuildTimings(events []Event, durations map[int]int) []StepTiming {
	timings := make([]StepTiming, 0, len(events))
	for _, event := range events {
		timings = append(timings, StepTiming{
			StepID:           event.StepID,
			StartTimestampMs: event.Timestamp,
			AudioDurationMs:  durations[event.StepID],
		})
	}
	return timings
}

// ValidateMonotonic enforces the run invariant that step starts never move
// backwards relative to the reference instant.
func ValidateMonotonic(timings []StepTiming) error {
	var last int64
	for i, t := range timings {
		if t.StartTimestampMs < 0 {
			return fmt.Errorf("timing %d (step %d): negative offset %d", i, t.StepID, t.StartTimestampMs)
		}
		if t.StartTimestampMs < last {
			return fmt.Errorf("timing %d (step %d): offset %d precedes %d", i, t.StepID, t.StartTimestampMs, last)
		}
		last = t.StartTimestampMs
	}
	return nil
}
