// Package driver orchestrates a whole job: it annotates and instruments the
// script, records it under the harness, composites the narration, and uploads
// the final video. Stage failures short-circuit the run, with one exception:
// a compositing failure degrades the deliverable to the raw recording instead
// of failing the job.
package driver
