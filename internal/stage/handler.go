package stage

import (
	"context"

	"overdub/internal/job"
	"overdub/internal/steps"
	"overdub/internal/timing"
)

// Item carries one job's mutable state through the pipeline. Stages read the
// outputs of earlier stages and record their own.
type Item struct {
	RunID    string
	Manifest *job.Manifest

	// Steps is the manifest's step list with the duration table applied.
	Steps []steps.Spec

	// Working directories allocated by the driver before the first stage.
	WorkDir  string
	AudioDir string
	VideoDir string

	// Stage outputs.
	InstrumentedScriptPath string
	RawVideoPath           string
	FinalVideoPath         string
	Timings                []timing.StepTiming

	// Degraded marks a deliverable produced without narration because
	// compositing failed.
	Degraded bool

	Logs []string
}

// AppendLog records a line in the item's log tail.
func (i *Item) AppendLog(lines ...string) {
	i.Logs = append(i.Logs, lines...)
}

// Handler describes the contract the driver needs from each pipeline stage.
type Handler interface {
	Name() string
	Execute(ctx context.Context, item *Item) error
	HealthCheck(ctx context.Context) Health
}
