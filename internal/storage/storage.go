package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"overdub/internal/config"
	"overdub/internal/fileutil"
	"overdub/internal/logging"
	"overdub/internal/services"
	"overdub/internal/textutil"
)

// Destination identifies where in the library a final video belongs.
type Destination struct {
	Tenant  string
	Project string
}

// Uploader delivers a finished video to its library location and returns the
// path (or address) it ended up at.
type Uploader interface {
	Upload(ctx context.Context, sourcePath string, dest Destination) (string, error)
}

// Library stores finals on the local filesystem under
// {library_dir}/{videos_dir}/{tenant}/{project}/recording{ext}.
type Library struct {
	root      string
	videosDir string
	overwrite bool
	retries   int
	logger    *slog.Logger
}

// NewLibrary constructs the local-filesystem uploader from application config.
func NewLibrary(cfg *config.Config, logger *slog.Logger) *Library {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Library{
		root:      cfg.Paths.LibraryDir,
		videosDir: cfg.Library.VideosDir,
		overwrite: cfg.Library.OverwriteExisting,
		retries:   cfg.Library.UploadRetries,
		logger:    logger.With(slog.String(logging.FieldComponent, "storage")),
	}
}

// Upload copies the final video into the library. The copy is verified by
// size and retried on transient failure. When overwriting is disabled and the
// target already exists, a numbered sibling is allocated instead.
func (l *Library) Upload(ctx context.Context, sourcePath string, dest Destination) (string, error) {
	if strings.TrimSpace(sourcePath) == "" {
		return "", services.Wrap(services.ErrValidation, "upload", "validate", "source path required", nil)
	}
	if _, err := os.Stat(sourcePath); err != nil {
		return "", services.Wrap(services.ErrNotFound, "upload", "validate", "final video missing", err)
	}

	targetDir := filepath.Join(l.root, l.videosDir,
		textutil.SanitizeToken(dest.Tenant),
		textutil.SanitizeToken(dest.Project))
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return "", services.Wrap(services.ErrConfiguration, "upload", "ensure library dir", "", err)
	}

	ext := filepath.Ext(sourcePath)
	target := filepath.Join(targetDir, "recording"+ext)
	if !l.overwrite {
		allocated, err := nextFreePath(targetDir, "recording", ext)
		if err != nil {
			return "", services.Wrap(services.ErrTransient, "upload", "allocate target", "", err)
		}
		target = allocated
	}

	attempts := l.retries + 1
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", services.Wrap(services.ErrTransient, "upload", "copy to library", "cancelled", err)
		}
		lastErr = fileutil.CopyFileVerified(sourcePath, target)
		if lastErr == nil {
			l.logger.Info("final video stored",
				slog.String("target", target),
				slog.Int("attempt", attempt))
			return target, nil
		}
		l.logger.Warn("library copy failed",
			slog.Int("attempt", attempt),
			slog.String("error", lastErr.Error()))
		if attempt < attempts {
			time.Sleep(time.Duration(attempt) * 500 * time.Millisecond)
		}
	}
	return "", services.Wrap(services.ErrTransient, "upload", "copy to library", "", lastErr)
}

// nextFreePath returns base+ext if unused, otherwise the first numbered
// variant (base_2, base_3, ...) that does not exist yet.
func nextFreePath(dir, base, ext string) (string, error) {
	const maxAttempts = 10000
	for i := 1; i <= maxAttempts; i++ {
		name := base + ext
		if i > 1 {
			name = fmt.Sprintf("%s_%d%s", base, i, ext)
		}
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err != nil {
			if os.IsNotExist(err) {
				return candidate, nil
			}
			return "", err
		}
	}
	return "", fmt.Errorf("no free name for %s in %s", base, dir)
}
