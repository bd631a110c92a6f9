// Package harness runs instrumented scripts under Playwright with video
// recording enabled, streaming step-start events out of the combined process
// output as they appear.
//
// The harness is always a separate OS process; the only channels back are its
// output stream (timing events, diagnostics) and its exit code. A wall-clock
// timeout kills the whole process group, since the runner fans out into node
// and browser children.
package harness
