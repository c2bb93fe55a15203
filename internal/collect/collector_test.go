package collect_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pxsubmit/internal/collect"
	"pxsubmit/internal/logging"
	"pxsubmit/internal/services"
	"pxsubmit/internal/study"
	"pxsubmit/internal/submission"
	"pxsubmit/internal/validator"
)

func unitOf(proteomes ...study.Proteome) study.Unit {
	db := singleStudy(proteomes...)
	return study.Unit{StudyID: "s1", Prep: db.preps["sample1/host"][0], Proteomes: proteomes}
}

func TestProcessRecordsRowsInOrder(t *testing.T) {
	dir := t.TempDir()
	transport := &countingTransport{}
	c := collect.NewCollector(dir, newRouter(transport), newValidator(t, nil), nil, logging.NewNop())
	acc := submission.NewAccumulator()

	stats, err := c.Process(context.Background(), unitOf(proteome("p1"), proteome("p2")), acc)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if stats.Proteomes != 2 || stats.Fetched != 8 || stats.Reused != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	files := acc.Files()
	wantTypes := []submission.FileType{"result", "peak", "raw", "raw", "result", "peak", "raw", "raw"}
	for i, row := range files {
		if row.FileID != i+1 || row.Type != wantTypes[i] {
			t.Fatalf("row %d = %+v", i, row)
		}
	}
	if files[2].LinkedResultID != 1 || files[3].LinkedResultID != 1 || files[6].LinkedResultID != 5 {
		t.Fatalf("raw rows not linked to their result: %+v", files)
	}
	if files[3].Path != filepath.Join(dir, "p1_quant.txt") {
		t.Fatalf("other file path = %q", files[3].Path)
	}
	samples := acc.Samples()
	if len(samples) != 2 || samples[0].FileID != 1 || samples[1].FileID != 5 {
		t.Fatalf("unexpected samples %+v", samples)
	}
	if samples[0].Species != "Homo sapiens" || samples[0].Instrument != "Orbitrap Fusion" || samples[0].ExperimentalFactor != "time point p1" {
		t.Fatalf("unexpected sample row %+v", samples[0])
	}
}

func TestProcessReusesExistingFiles(t *testing.T) {
	dir := t.TempDir()
	transport := &countingTransport{}
	c := collect.NewCollector(dir, newRouter(transport), newValidator(t, nil), nil, logging.NewNop())
	unit := unitOf(proteome("p1"))

	first := submission.NewAccumulator()
	if _, err := c.Process(context.Background(), unit, first); err != nil {
		t.Fatalf("first Process: %v", err)
	}
	calls := transport.count()

	second := submission.NewAccumulator()
	stats, err := c.Process(context.Background(), unit, second)
	if err != nil {
		t.Fatalf("second Process: %v", err)
	}
	if transport.count() != calls || stats.Fetched != 0 || stats.Reused != 4 {
		t.Fatalf("expected no new fetches, stats %+v", stats)
	}
	a, b := first.Files(), second.Files()
	if len(a) != len(b) {
		t.Fatalf("row count changed: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("row %d changed: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestProcessPeakExtension(t *testing.T) {
	tests := []struct {
		name    string
		peak    string
		wantErr error
	}{
		{name: "upper case", peak: "peak.MGF"},
		{name: "mixed case", peak: "peak.Mgf"},
		{name: "text", peak: "peak.txt", wantErr: services.ErrInvalidFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := proteome("p1")
			p.PeakURLs = []string{"fasp://aspera.example.org/data/" + tt.peak}
			c := collect.NewCollector(t.TempDir(), newRouter(&countingTransport{}), newValidator(t, nil), nil, logging.NewNop())
			_, err := c.Process(context.Background(), unitOf(p), submission.NewAccumulator())
			if tt.wantErr == nil && err != nil {
				t.Fatalf("Process: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestProcessRequiresResultAndPeak(t *testing.T) {
	noResult := proteome("p1")
	noResult.ResultURLs = nil
	noPeak := proteome("p1")
	noPeak.PeakURLs = []string{"  "}

	for name, p := range map[string]study.Proteome{"result": noResult, "peak": noPeak} {
		t.Run(name, func(t *testing.T) {
			c := collect.NewCollector(t.TempDir(), newRouter(&countingTransport{}), newValidator(t, nil), nil, logging.NewNop())
			_, err := c.Process(context.Background(), unitOf(p), submission.NewAccumulator())
			if !errors.Is(err, services.ErrDownload) {
				t.Fatalf("expected ErrDownload, got %v", err)
			}
		})
	}
}

func TestProcessUsesFirstResultURL(t *testing.T) {
	p := proteome("p1")
	p.ResultURLs = append(p.ResultURLs, "fasp://aspera.example.org/data/second.mzid")
	transport := &countingTransport{}
	c := collect.NewCollector(t.TempDir(), newRouter(transport), newValidator(t, nil), nil, logging.NewNop())
	acc := submission.NewAccumulator()
	if _, err := c.Process(context.Background(), unitOf(p), acc); err != nil {
		t.Fatalf("Process: %v", err)
	}
	for _, call := range transport.calls {
		if filepath.Base(call) == "second.mzid" {
			t.Fatal("second result url should not be fetched")
		}
	}
}

func TestProcessValidationFailure(t *testing.T) {
	v := newValidator(t, map[string]string{"p2": "Total proteins: 3\nStatus: FAILED\n"})
	c := collect.NewCollector(t.TempDir(), newRouter(&countingTransport{}), v, nil, logging.NewNop())

	_, err := c.Process(context.Background(), unitOf(proteome("p1"), proteome("p2")), submission.NewAccumulator())
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	for _, want := range []string{"s1", "p2", "p2.mzid"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q should mention %q", err, want)
		}
	}
}

func TestProcessValidatorTimeoutKeepsTimeoutKind(t *testing.T) {
	v, err := validator.New("java", "pg-converter.jar", time.Minute,
		validator.WithExecutor(&converterStub{errs: map[string]error{"p1": context.DeadlineExceeded}}))
	if err != nil {
		t.Fatalf("validator.New: %v", err)
	}
	c := collect.NewCollector(t.TempDir(), newRouter(&countingTransport{}), v, nil, logging.NewNop())

	_, err = c.Process(context.Background(), unitOf(proteome("p1")), submission.NewAccumulator())
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if kind := services.FailureKind(err); kind != "timeout" {
		t.Fatalf("failure kind = %q, want timeout", kind)
	}
}

func TestProcessZeroCountIsNotFatal(t *testing.T) {
	v := newValidator(t, map[string]string{"p1": "Total proteins: 0\nTotal peptides: 4\nStatus: OK\n"})
	c := collect.NewCollector(t.TempDir(), newRouter(&countingTransport{}), v, nil, logging.NewNop())
	if _, err := c.Process(context.Background(), unitOf(proteome("p1")), submission.NewAccumulator()); err != nil {
		t.Fatalf("Process: %v", err)
	}
}
