package fileutil_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"overdub/internal/fileutil"
)

func TestCopyFileVerified(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	dst := filepath.Join(dir, "dst.bin")
	if err := os.WriteFile(src, []byte("narration payload"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := fileutil.CopyFileVerified(src, dst); err != nil {
		t.Fatalf("CopyFileVerified: %v", err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "narration payload" {
		t.Fatalf("copied content mismatch: %q", got)
	}
}

func TestEnsureCleanDirRemovesStaleArtifacts(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "videos")
	if err := os.MkdirAll(filepath.Join(dir, "nested"), 0o755); err != nil {
		t.Fatal(err)
	}
	stale := filepath.Join(dir, "nested", "old.webm")
	if err := os.WriteFile(stale, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := fileutil.EnsureCleanDir(dir); err != nil {
		t.Fatalf("EnsureCleanDir: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty directory, found %d entries", len(entries))
	}
}

func TestEnsureCleanDirRejectsEmptyPath(t *testing.T) {
	if err := fileutil.EnsureCleanDir("  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestFindByExtensionsRecurses(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "results", "chromium")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	video := filepath.Join(nested, "video.webm")
	for _, path := range []string{video, filepath.Join(root, "trace.zip")} {
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	matches, err := fileutil.FindByExtensions(root, "webm", "mp4")
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 || matches[0] != video {
		t.Fatalf("matches = %v, want [%s]", matches, video)
	}
}

func TestNewestByExtensions(t *testing.T) {
	root := t.TempDir()
	older := filepath.Join(root, "a.mp4")
	newer := filepath.Join(root, "b.mp4")
	if err := os.WriteFile(older, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(newer, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(older, past, past); err != nil {
		t.Fatal(err)
	}

	got, err := fileutil.NewestByExtensions(root, "mp4")
	if err != nil {
		t.Fatal(err)
	}
	if got != newer {
		t.Fatalf("newest = %s, want %s", got, newer)
	}
}
