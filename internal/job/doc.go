// Package job defines the manifest format that describes one overdub run:
// the tenant and project it belongs to, the script to drive, the narration
// clips to mix in, and the steps binding the two together. Manifests are
// accepted as JSON or YAML and validated before any stage runs.
package job
