package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeHarness()
	c.normalizeFFmpeg()
	c.normalizeLibrary()
	c.normalizeNotifications()
	if err := c.normalizeRunLog(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if c.Paths.LibraryDir, err = expandPath(c.Paths.LibraryDir); err != nil {
		return fmt.Errorf("paths.library_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeHarness() {
	c.Harness.Runner = strings.TrimSpace(c.Harness.Runner)
	c.Harness.Browser = strings.ToLower(strings.TrimSpace(c.Harness.Browser))
	if c.Harness.Browser == "" {
		c.Harness.Browser = defaultHarnessBrowser
	}
	if c.Harness.VideoWidth <= 0 {
		c.Harness.VideoWidth = defaultVideoWidth
	}
	if c.Harness.VideoHeight <= 0 {
		c.Harness.VideoHeight = defaultVideoHeight
	}
	if c.Harness.VideoFPS <= 0 {
		c.Harness.VideoFPS = defaultVideoFPS
	}
	if c.Harness.RunTimeout <= 0 {
		c.Harness.RunTimeout = defaultRunTimeout
	}
	if c.Harness.StabilizationDelayMs < 0 {
		c.Harness.StabilizationDelayMs = defaultStabilizationDelayMs
	}
}

func (c *Config) normalizeFFmpeg() {
	c.FFmpeg.Binary = strings.TrimSpace(c.FFmpeg.Binary)
	c.FFmpeg.AudioBitrate = strings.TrimSpace(c.FFmpeg.AudioBitrate)
	if c.FFmpeg.AudioBitrate == "" {
		c.FFmpeg.AudioBitrate = defaultAudioBitrate
	}
	if c.FFmpeg.MuxTimeout <= 0 {
		c.FFmpeg.MuxTimeout = defaultMuxTimeout
	}
}

func (c *Config) normalizeLibrary() {
	c.Library.VideosDir = strings.Trim(strings.TrimSpace(c.Library.VideosDir), "/")
	if c.Library.VideosDir == "" {
		c.Library.VideosDir = defaultVideosDir
	}
	if c.Library.UploadRetries < 0 {
		c.Library.UploadRetries = 0
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("OVERDUB_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeRunLog() error {
	if strings.TrimSpace(c.RunLog.Path) == "" {
		c.RunLog.Path = defaultRunLogPath
	}
	path, err := expandPath(c.RunLog.Path)
	if err != nil {
		return fmt.Errorf("run_log.path: %w", err)
	}
	c.RunLog.Path = path
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
