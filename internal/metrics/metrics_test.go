package metrics_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pxsubmit/internal/metrics"
)

func TestWriteTextfile(t *testing.T) {
	rec := metrics.New()
	rec.UnitProcessed()
	rec.FileRecorded("result")
	rec.FileRecorded("raw")
	rec.FileRecorded("raw")
	rec.Fetch("fasp", true, 2*time.Second)
	rec.Fetch("fasp", false, 0)
	rec.Validation(true, time.Second)
	rec.Transfer("skipped")
	rec.RunFinished("study-1", true, time.Minute)

	path := filepath.Join(t.TempDir(), "textfile", "pxsubmit.prom")
	if err := rec.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	text := string(data)
	for _, want := range []string{
		"pxsubmit_units_total 1",
		`pxsubmit_manifest_files_total{type="raw"} 2`,
		`pxsubmit_fetches_total{outcome="reused",scheme="fasp"} 1`,
		`pxsubmit_fetches_total{outcome="downloaded",scheme="fasp"} 1`,
		`pxsubmit_validations_total{outcome="ok"} 1`,
		`pxsubmit_last_run_success{study="study-1"} 1`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("textfile missing %q", want)
		}
	}
}

func TestNilRecorderIsSafe(t *testing.T) {
	var rec *metrics.Recorder
	rec.UnitProcessed()
	rec.Fetch("http", true, time.Second)
	if err := rec.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
}

func TestEmptyPathSkipsWrite(t *testing.T) {
	if err := metrics.New().WriteTextfile(""); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
}
