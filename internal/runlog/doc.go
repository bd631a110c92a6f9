// Package runlog persists run history in a local SQLite database: one row
// per job with its outcome, final video location, captured step timings, and
// a bounded log tail. The history backs the timings command and post-mortem
// debugging of failed runs.
package runlog
