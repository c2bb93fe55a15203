package main

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"pxsubmit/internal/ledger"
	"pxsubmit/internal/services"
	"pxsubmit/internal/testsupport"
)

func seedLedger(t *testing.T, env *cliTestEnv) {
	t.Helper()
	ctx := context.Background()
	store := testsupport.MustOpenLedger(t, env.cfg)

	testsupport.BeginRun(t, store, "run-ok", "STUDY1")
	if err := store.RecordFiles(ctx, "run-ok", []ledger.File{
		{FileID: 1, Type: "RESULT", Path: "/data/p1.mzid", SourceURL: "fasp://h/p1.mzid"},
		{FileID: 2, Type: "PEAK", Path: "/data/p1.mgf"},
		{FileID: 3, Type: "RAW", Path: "/data/p1.raw", LinkedResultID: 1},
	}); err != nil {
		t.Fatalf("RecordFiles: %v", err)
	}
	if err := store.FinishRun(ctx, "run-ok", ledger.Outcome{
		Status:         ledger.StatusSucceeded,
		Units:          1,
		Files:          3,
		Fetched:        3,
		TransferStatus: ledger.TransferSkipped,
	}); err != nil {
		t.Fatalf("FinishRun ok: %v", err)
	}

	testsupport.BeginRun(t, store, "run-bad", "STUDY2")
	if err := store.FinishRun(ctx, "run-bad", ledger.Outcome{
		Status: ledger.StatusFailed,
		Err:    services.Wrap(services.ErrValidation, "collect", "validate", "proteome P1", errors.New("status FAILED")),
	}); err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}
}

func TestHistoryListsRuns(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"history"}, env.configPath)
	if err != nil {
		t.Fatalf("history on empty ledger: %v", err)
	}
	requireContains(t, out, "No runs recorded")

	seedLedger(t, env)

	out, _, err = runCLI(t, []string{"history"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "run-ok")
	requireContains(t, out, "run-bad")
	requireContains(t, out, "STUDY1")

	out, _, err = runCLI(t, []string{"history", "--output", "json"}, env.configPath)
	if err != nil {
		t.Fatalf("history json: %v", err)
	}
	var runs []ledger.Run
	if err := json.Unmarshal([]byte(out), &runs); err != nil {
		t.Fatalf("decode history json: %v\n%s", err, out)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
}

func TestShowRunDetail(t *testing.T) {
	env := setupCLITestEnv(t)
	seedLedger(t, env)

	out, _, err := runCLI(t, []string{"show", "run-ok"}, env.configPath)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	requireContains(t, out, "/data/p1.mzid")
	requireContains(t, out, "RAW")
	requireContains(t, out, "succeeded")

	out, _, err = runCLI(t, []string{"show", "run-bad", "-o", "yaml"}, env.configPath)
	if err != nil {
		t.Fatalf("show yaml: %v", err)
	}
	requireContains(t, out, "status: failed")
	requireContains(t, out, "error_kind: validation_failure")

	_, _, err = runCLI(t, []string{"show", "missing"}, env.configPath)
	requireErrorContains(t, err, "run missing not found")
}
