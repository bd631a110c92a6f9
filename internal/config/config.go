package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	WorkDir    string `toml:"work_dir"`
	LibraryDir string `toml:"library_dir"`
	LogDir     string `toml:"log_dir"`
}

// Harness contains configuration for the browser-automation recording run.
type Harness struct {
	Runner               string `toml:"runner"`
	Browser              string `toml:"browser"`
	VideoWidth           int    `toml:"video_width"`
	VideoHeight          int    `toml:"video_height"`
	VideoFPS             int    `toml:"video_fps"`
	RunTimeout           int    `toml:"run_timeout"`
	StabilizationDelayMs int    `toml:"stabilization_delay_ms"`
}

// FFmpeg contains configuration for audio compositing.
type FFmpeg struct {
	Binary       string `toml:"binary"`
	MuxTimeout   int    `toml:"mux_timeout"`
	AudioBitrate string `toml:"audio_bitrate"`
}

// Library contains configuration for the upload target layout.
type Library struct {
	VideosDir         string `toml:"videos_dir"`
	OverwriteExisting bool   `toml:"overwrite_existing"`
	UploadRetries     int    `toml:"upload_retries"`
}

// Notifications contains configuration for push notifications and the result
// callback.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	JobLifecycle   bool   `toml:"job_lifecycle"`
	Errors         bool   `toml:"errors"`
}

// RunLog contains configuration for the local run-history database.
type RunLog struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for overdub.
//
// Configuration sections by subsystem:
//   - Paths: working, library, and log directories
//   - Harness: Playwright runner, recording geometry, timeouts
//   - FFmpeg: compositing binary and mux settings
//   - Library: deterministic upload layout
//   - Notifications: ntfy topic and callback behaviour
//   - RunLog: local run-history database
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Harness       Harness       `toml:"harness"`
	FFmpeg        FFmpeg        `toml:"ffmpeg"`
	Library       Library       `toml:"library"`
	Notifications Notifications `toml:"notifications"`
	RunLog        RunLog        `toml:"run_log"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration
// file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/overdub/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("overdub.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for job execution. LibraryDir
// is created on a best-effort basis so a job can still run when the upload
// target is temporarily unavailable.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.LibraryDir) != "" {
		// Best-effort to avoid failing config load when storage is offline.
		_ = os.MkdirAll(c.Paths.LibraryDir, 0o755)
	}
	return nil
}

// RunnerBinary returns the executable used to launch the Playwright harness.
func (c *Config) RunnerBinary() string {
	if bin := strings.TrimSpace(c.Harness.Runner); bin != "" {
		return bin
	}
	return "npx"
}

// FFmpegBinary returns the ffmpeg executable used for compositing.
func (c *Config) FFmpegBinary() string {
	if bin := strings.TrimSpace(c.FFmpeg.Binary); bin != "" {
		return bin
	}
	return "ffmpeg"
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
