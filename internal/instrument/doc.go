// Package instrument rewrites an annotated script into its executable form:
// a generated preamble provides the timing runtime, and each marker comment
// becomes a sync call that paces execution against narration lengths and
// emits step-start events on stdout.
package instrument
