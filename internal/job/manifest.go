package job

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"overdub/internal/services"
	"overdub/internal/steps"
)

// Manifest describes one overdub job: whose recording it is, which script to
// drive, and where the narration clips live. Produced by the upstream
// generation service as JSON or YAML.
type Manifest struct {
	Tenant      string `json:"tenant" yaml:"tenant"`
	Project     string `json:"project" yaml:"project"`
	ScriptPath  string `json:"scriptPath" yaml:"scriptPath"`
	AudioDir    string `json:"audioDir" yaml:"audioDir"`
	CallbackURL string `json:"callbackUrl,omitempty" yaml:"callbackUrl,omitempty"`

	Steps []steps.Spec `json:"steps" yaml:"steps"`

	// Durations optionally overrides per-step narration lengths when the
	// speech-synthesis step ran after the steps were written.
	Durations map[int]int `json:"durations,omitempty" yaml:"durations,omitempty"`
}

// Load reads and validates a manifest file. The format is chosen by
// extension: .yaml/.yml decode as YAML, everything else as JSON. Relative
// script and audio paths are resolved against the manifest's directory.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, services.Wrap(services.ErrNotFound, "manifest", "read", "", err)
	}

	manifest, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, err
	}

	base := filepath.Dir(path)
	if manifest.ScriptPath != "" && !filepath.IsAbs(manifest.ScriptPath) {
		manifest.ScriptPath = filepath.Join(base, manifest.ScriptPath)
	}
	if manifest.AudioDir != "" && !filepath.IsAbs(manifest.AudioDir) {
		manifest.AudioDir = filepath.Join(base, manifest.AudioDir)
	}

	if err := manifest.Validate(); err != nil {
		return nil, services.Wrap(services.ErrValidation, "manifest", "validate", "", err)
	}
	if _, err := os.Stat(manifest.ScriptPath); err != nil {
		return nil, services.Wrap(services.ErrNotFound, "manifest", "validate", "script not found", err)
	}
	return manifest, nil
}

// Parse decodes manifest bytes. format is a file extension hint; ".yaml" and
// ".yml" select YAML, anything else JSON.
func Parse(data []byte, format string) (*Manifest, error) {
	manifest := &Manifest{}
	switch strings.ToLower(format) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, manifest); err != nil {
			return nil, services.Wrap(services.ErrValidation, "manifest", "parse", "invalid YAML", err)
		}
	default:
		if err := json.Unmarshal(data, manifest); err != nil {
			return nil, services.Wrap(services.ErrValidation, "manifest", "parse", "invalid JSON", err)
		}
	}
	return manifest, nil
}

// Validate fails fast on anything a run could not proceed without.
func (m *Manifest) Validate() error {
	var errs []error
	if strings.TrimSpace(m.Tenant) == "" {
		errs = append(errs, errors.New("tenant is required"))
	}
	if strings.TrimSpace(m.Project) == "" {
		errs = append(errs, errors.New("project is required"))
	}
	if strings.TrimSpace(m.ScriptPath) == "" {
		errs = append(errs, errors.New("scriptPath is required"))
	}
	if strings.TrimSpace(m.AudioDir) == "" {
		errs = append(errs, errors.New("audioDir is required"))
	}
	if len(m.Steps) == 0 {
		errs = append(errs, errors.New("at least one step is required"))
	} else if err := steps.ValidateSequence(m.Steps); err != nil {
		errs = append(errs, err)
	}
	for id, duration := range m.Durations {
		if duration < 0 {
			errs = append(errs, fmt.Errorf("duration for step %d is negative", id))
		}
		if id < 1 || id > len(m.Steps) {
			errs = append(errs, fmt.Errorf("duration table references unknown step %d", id))
		}
	}
	if m.CallbackURL != "" {
		parsed, err := url.Parse(m.CallbackURL)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			errs = append(errs, fmt.Errorf("callbackUrl %q is not a valid http(s) URL", m.CallbackURL))
		}
	}
	return errors.Join(errs...)
}

// ResolvedSteps returns the step list with the duration table applied, along
// with any table entries that matched no step.
func (m *Manifest) ResolvedSteps() ([]steps.Spec, []int) {
	resolved := make([]steps.Spec, len(m.Steps))
	copy(resolved, m.Steps)
	orphans := steps.ApplyDurations(resolved, m.Durations)
	return resolved, orphans
}

// Label identifies the job in logs and notifications.
func (m *Manifest) Label() string {
	return m.Tenant + "/" + m.Project
}
