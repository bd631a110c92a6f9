// Package stage defines the pipeline contract: the mutable per-job Item that
// flows annotate -> instrument -> record -> composite -> upload, and the
// Handler interface each stage implements for the driver.
package stage
