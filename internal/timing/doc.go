// Package timing defines the event line format the instrumented script
// emits on stdout and turns collected events into per-step offsets.
package timing
