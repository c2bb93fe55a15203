package submission_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pxsubmit/internal/logging"
	"pxsubmit/internal/services"
	"pxsubmit/internal/study"
	"pxsubmit/internal/submission"
)

func composedFixture(t *testing.T) (submission.ProjectMetadata, *submission.Accumulator) {
	t.Helper()
	p := protocol(50)
	agg := submission.NewAggregator(submission.Identity{
		SubmitterName:        "Ada",
		SubmitterEmail:       "ada@example.org",
		SubmitterAffiliation: "Institute",
		LabHeadName:          "Grace",
		LabHeadEmail:         "grace@example.org",
		LabHeadAffiliation:   "Institute",
		SubmitterPrideLogin:  "ada@example.org",
		ProjectTitle:         "Title",
		ProjectDescription:   "Description",
	})
	u := unit("prep", "Homo sapiens", "stool", "Shotgun", p,
		study.Proteome{ID: "p1", InstrumentName: "Orbitrap", ExpDescription: "baseline", DataProcessingProtocol: p})
	u.Proteomes = append(u.Proteomes, study.Proteome{ID: "p2", InstrumentName: "Q Exactive", ExpDescription: "week\t2", DataProcessingProtocol: p})
	if err := agg.Fold(u); err != nil {
		t.Fatalf("Fold: %v", err)
	}

	acc := submission.NewAccumulator()
	r1 := acc.AddResult("/sub/a.mzid", "")
	mustSample(t, acc, submission.SampleMetadataRow{FileID: r1, Species: "Homo sapiens", Tissue: "stool", Instrument: "Orbitrap", ExperimentalFactor: "baseline"})
	acc.AddPeak("/sub/a.mgf", "")
	mustRaw(t, acc, "/sub/a1.raw", r1)
	mustRaw(t, acc, "/sub/a2.raw", r1)
	r2 := acc.AddResult("/sub/b.mzid", "")
	mustSample(t, acc, submission.SampleMetadataRow{FileID: r2, Species: "Homo sapiens", Tissue: "stool", Instrument: "Q Exactive", ExperimentalFactor: "week\t2"})
	acc.AddPeak("/sub/b.mgf", "")
	return agg.Metadata(), acc
}

func mustSample(t *testing.T, acc *submission.Accumulator, row submission.SampleMetadataRow) {
	t.Helper()
	if err := acc.AddSample(row); err != nil {
		t.Fatalf("AddSample: %v", err)
	}
}

func mustRaw(t *testing.T, acc *submission.Accumulator, path string, result int) {
	t.Helper()
	if _, err := acc.AddRaw(path, "", result); err != nil {
		t.Fatalf("AddRaw: %v", err)
	}
}

func TestComposeFormat(t *testing.T) {
	meta, acc := composedFixture(t)
	var buf bytes.Buffer
	if err := submission.Compose(&buf, meta, acc); err != nil {
		t.Fatalf("Compose: %v", err)
	}

	p := protocol(50)
	want := strings.Join([]string{
		"MTD\tsubmitter_name\tAda",
		"MTD\tsubmitter_email\tada@example.org",
		"MTD\tsubmitter_affiliation\tInstitute",
		"MTD\tlab_head_name\tGrace",
		"MTD\tlab_head_email\tgrace@example.org",
		"MTD\tlab_head_affiliation\tInstitute",
		"MTD\tsubmitter_pride_login\tada@example.org",
		"MTD\tproject_title\tTitle",
		"MTD\tproject_description\tDescription",
		"MTD\tsample_processing_protocol\t" + p,
		"MTD\tdata_processing_protocol\t" + p,
		"MTD\tkeywords\tHomo sapiens",
		"MTD\tsubmission_type\tCOMPLETE",
		"MTD\texperiment_type\t[Shotgun]",
		"MTD\tspecies\t[Homo sapiens]",
		"MTD\ttissue\t[stool]",
		"MTD\tinstrument\t[OrbitrapQ Exactive]",
		"",
		"FMH\tfile_id\tfile_type\tfile_path\tfile_mapping\t",
		"FME\t1\tresult\t/sub/a.mzid\t3,4,",
		"FME\t2\tpeak\t/sub/a.mgf\t",
		"FME\t3\traw\t/sub/a1.raw\t",
		"FME\t4\traw\t/sub/a2.raw\t",
		"FME\t5\tresult\t/sub/b.mzid\t",
		"FME\t6\tpeak\t/sub/b.mgf\t",
		"",
		"SMH\tfile_id\tspecies\ttissue\tinstrument\texperimental_factor\t",
		"SME\t1\t[Homo sapiens]\t[stool]\t[Orbitrap]\tbaseline",
		"SME\t5\t[Homo sapiens]\t[stool]\t[Q Exactive]\tweek 2",
		"",
	}, "\n")
	if got := buf.String(); got != want {
		t.Fatalf("unexpected manifest:\n%s\nwant:\n%s", got, want)
	}
}

func TestComposeIsDeterministic(t *testing.T) {
	meta, acc := composedFixture(t)
	var first, second bytes.Buffer
	if err := submission.Compose(&first, meta, acc); err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if err := submission.Compose(&second, meta, acc); err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if !bytes.Equal(first.Bytes(), second.Bytes()) {
		t.Fatal("compose output differs between calls")
	}
}

func TestComposeRejectsIncompleteMetadata(t *testing.T) {
	agg := submission.NewAggregator(submission.Identity{})
	var buf bytes.Buffer
	err := submission.Compose(&buf, agg.Metadata(), submission.NewAccumulator())
	if !errors.Is(err, services.ErrMetadataValidation) {
		t.Fatalf("expected metadata validation failure, got %v", err)
	}
	if buf.Len() != 0 {
		t.Fatal("nothing should be written for incomplete metadata")
	}
}

func TestWriteFileReplacesExistingManifest(t *testing.T) {
	meta, acc := composedFixture(t)
	dir := t.TempDir()
	stale := filepath.Join(dir, submission.ManifestName)
	if err := os.WriteFile(stale, []byte("stale"), 0o644); err != nil {
		t.Fatalf("write stale manifest: %v", err)
	}

	path, err := submission.WriteFile(dir, meta, acc, logging.NewNop())
	if err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if path != stale {
		t.Fatalf("path = %q", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	if strings.Contains(string(data), "stale") {
		t.Fatal("stale manifest content survived")
	}
	if got := strings.Count(string(data), "\nFME\t"); got != 6 {
		t.Fatalf("expected 6 FME lines, got %d", got)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly one file, got %d", len(entries))
	}
}
