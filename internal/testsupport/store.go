package testsupport

import (
	"testing"

	"overdub/internal/config"
	"overdub/internal/runlog"
)

// MustOpenStore opens a runlog.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *runlog.Store {
	t.Helper()

	store, err := runlog.Open(cfg.RunLog.Path)
	if err != nil {
		t.Fatalf("open run log store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close run log store: %v", err)
		}
	})
	return store
}
