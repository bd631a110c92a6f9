package config

const (
	defaultWorkDir              = "~/.local/share/overdub/work"
	defaultLibraryDir           = "~/.local/share/overdub/library"
	defaultLogDir               = "~/.local/share/overdub/logs"
	defaultRunLogPath           = "~/.local/share/overdub/runs.db"
	defaultVideosDir            = "videos"
	defaultHarnessRunner        = "npx"
	defaultHarnessBrowser       = "chromium"
	defaultVideoWidth           = 1920
	defaultVideoHeight          = 1080
	defaultVideoFPS             = 30
	defaultRunTimeout           = 300
	defaultStabilizationDelayMs = 2000
	defaultFFmpegBinary         = "ffmpeg"
	defaultMuxTimeout           = 120
	defaultAudioBitrate         = "192k"
	defaultUploadRetries        = 1
	defaultNotifyRequestTimeout = 10
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir:    defaultWorkDir,
			LibraryDir: defaultLibraryDir,
			LogDir:     defaultLogDir,
		},
		Harness: Harness{
			Runner:               defaultHarnessRunner,
			Browser:              defaultHarnessBrowser,
			VideoWidth:           defaultVideoWidth,
			VideoHeight:          defaultVideoHeight,
			VideoFPS:             defaultVideoFPS,
			RunTimeout:           defaultRunTimeout,
			StabilizationDelayMs: defaultStabilizationDelayMs,
		},
		FFmpeg: FFmpeg{
			Binary:       defaultFFmpegBinary,
			MuxTimeout:   defaultMuxTimeout,
			AudioBitrate: defaultAudioBitrate,
		},
		Library: Library{
			VideosDir:         defaultVideosDir,
			OverwriteExisting: true,
			UploadRetries:     defaultUploadRetries,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			JobLifecycle:   true,
			Errors:         true,
		},
		RunLog: RunLog{
			Enabled: true,
			Path:    defaultRunLogPath,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
