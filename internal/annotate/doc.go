// Package annotate binds narration steps to the executable statements of a
// Playwright script by inserting sentinel marker comments.
//
// Binding is positional: the Nth narrated step attaches to the Nth statement
// classified as a user-facing action or assertion. The marker format is shared
// with the instrumentation stage and with upstream generators, and tolerates
// both strict JSON and relaxed unquoted-key payloads.
package annotate
