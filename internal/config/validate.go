package config

import (
	"errors"
	"fmt"
)

var knownBrowsers = map[string]struct{}{
	"chromium": {},
	"firefox":  {},
	"webkit":   {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateHarness(); err != nil {
		return err
	}
	if err := c.validateFFmpeg(); err != nil {
		return err
	}
	if err := c.validateLibrary(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.WorkDir == "" {
		return errors.New("paths.work_dir must be set")
	}
	if c.Paths.LibraryDir == "" {
		return errors.New("paths.library_dir must be set")
	}
	if c.Paths.WorkDir == c.Paths.LibraryDir {
		return errors.New("paths.work_dir and paths.library_dir must differ; the work dir is cleared between runs")
	}
	return nil
}

func (c *Config) validateHarness() error {
	if _, ok := knownBrowsers[c.Harness.Browser]; !ok {
		return fmt.Errorf("harness.browser must be one of chromium, firefox, webkit (got %q)", c.Harness.Browser)
	}
	if err := ensurePositiveMap(map[string]int{
		"harness.video_width":  c.Harness.VideoWidth,
		"harness.video_height": c.Harness.VideoHeight,
		"harness.video_fps":    c.Harness.VideoFPS,
		"harness.run_timeout":  c.Harness.RunTimeout,
	}); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateFFmpeg() error {
	return ensurePositiveMap(map[string]int{
		"ffmpeg.mux_timeout": c.FFmpeg.MuxTimeout,
	})
}

func (c *Config) validateLibrary() error {
	if c.Library.VideosDir == "" {
		return errors.New("library.videos_dir must be set")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
		return nil
	default:
		return fmt.Errorf("logging.format must be console or json (got %q)", c.Logging.Format)
	}
}

func ensurePositiveMap(values map[string]int) error {
	for name, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	return nil
}
