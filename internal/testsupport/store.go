package testsupport

import (
	"context"
	"testing"

	"pxsubmit/internal/config"
	"pxsubmit/internal/ledger"
)

// MustOpenLedger opens a ledger.Store for tests and registers cleanup.
func MustOpenLedger(t testing.TB, cfg *config.Config) *ledger.Store {
	t.Helper()

	store, err := ledger.Open(cfg)
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// BeginRun starts a ledger run for tests.
func BeginRun(t testing.TB, store *ledger.Store, runID, studyID string) *ledger.Run {
	t.Helper()

	run, err := store.BeginRun(context.Background(), runID, studyID, "/tmp/"+studyID)
	if err != nil {
		t.Fatalf("store.BeginRun: %v", err)
	}
	return run
}
