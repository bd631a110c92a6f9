package harness

import (
	"fmt"
	"os"
	"path/filepath"
)

const configFileName = "playwright.config.js"

// writePlaywrightConfig generates the recording configuration next to the
// instrumented script. Recording is always on at a fixed geometry so the raw
// capture matches what the compositor expects.
func writePlaywrightConfig(scriptDir, videoDir, browser string, width, height, fps, timeoutSeconds int) (string, error) {
	content := fmt.Sprintf(`// generated by overdub; regenerated before every run
module.exports = {
  testDir: '.',
  timeout: %d,
  retries: 0,
  workers: 1,
  reporter: [['line']],
  outputDir: %q,
  metadata: { videoFps: %d },
  use: {
    browserName: %q,
    viewport: { width: %d, height: %d },
    video: { mode: 'on', size: { width: %d, height: %d } },
  },
};
`, timeoutSeconds*1000, videoDir, fps, browser, width, height, width, height)

	path := filepath.Join(scriptDir, configFileName)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write playwright config: %w", err)
	}
	return path, nil
}
