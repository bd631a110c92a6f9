// Package steps holds the narration step definitions shared by the
// annotator, the recording harness, and the compositor.
package steps
