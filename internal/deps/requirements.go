package deps

import "overdub/internal/config"

// Requirements lists the binaries a full pipeline run shells out to.
func Requirements(cfg *config.Config) []Requirement {
	return []Requirement{
		{
			Name:        "Playwright runner",
			Command:     cfg.RunnerBinary(),
			Description: "Executes instrumented scripts and records the screen",
		},
		{
			Name:        "FFmpeg",
			Command:     cfg.FFmpegBinary(),
			Description: "Mixes narration clips into the recording",
		},
	}
}
