package submission_test

import (
	"slices"
	"testing"

	"pxsubmit/internal/submission"
)

func TestAccumulatorAllocatesSequentialIDs(t *testing.T) {
	acc := submission.NewAccumulator()
	if !acc.Empty() {
		t.Fatal("expected empty accumulator")
	}

	var got []int
	for range 2 {
		result := acc.AddResult("/s/r.mzid", "fasp://h/r.mzid")
		got = append(got, result)
		got = append(got, acc.AddPeak("/s/p.mgf", "fasp://h/p.mgf"))
		for range 2 {
			id, err := acc.AddRaw("/s/x.raw", "fasp://h/x.raw", result)
			if err != nil {
				t.Fatalf("AddRaw: %v", err)
			}
			got = append(got, id)
		}
	}

	want := []int{1, 2, 3, 4, 5, 6, 7, 8}
	if !slices.Equal(got, want) {
		t.Fatalf("ids = %v, want %v", got, want)
	}
	for i, row := range acc.Files() {
		if row.FileID != i+1 {
			t.Fatalf("row %d has id %d", i, row.FileID)
		}
	}
	if linked := acc.LinkedRaw(5); !slices.Equal(linked, []int{7, 8}) {
		t.Fatalf("LinkedRaw(5) = %v", linked)
	}
	if linked := acc.LinkedRaw(2); linked != nil {
		t.Fatalf("peak rows have no links, got %v", linked)
	}
}

func TestAccumulatorRawRequiresResultRow(t *testing.T) {
	acc := submission.NewAccumulator()
	peak := acc.AddPeak("/s/p.mgf", "")
	if _, err := acc.AddRaw("/s/x.raw", "", peak); err == nil {
		t.Fatal("expected error linking raw file to a peak row")
	}
	if _, err := acc.AddRaw("/s/x.raw", "", 0); err == nil {
		t.Fatal("expected error for missing result id")
	}
	if acc.Len() != 1 {
		t.Fatalf("rejected rows must not allocate ids, len=%d", acc.Len())
	}
}

func TestAccumulatorSampleRows(t *testing.T) {
	acc := submission.NewAccumulator()
	result := acc.AddResult("/s/r.mzid", "")
	peak := acc.AddPeak("/s/p.mgf", "")

	if err := acc.AddSample(submission.SampleMetadataRow{FileID: peak}); err == nil {
		t.Fatal("expected error for sample keyed by peak row")
	}
	if err := acc.AddSample(submission.SampleMetadataRow{FileID: result, Species: "Homo sapiens"}); err != nil {
		t.Fatalf("AddSample: %v", err)
	}
	if err := acc.AddSample(submission.SampleMetadataRow{FileID: result}); err == nil {
		t.Fatal("expected error for duplicate sample row")
	}
	samples := acc.Samples()
	if len(samples) != 1 || samples[0].Species != "Homo sapiens" {
		t.Fatalf("unexpected samples: %+v", samples)
	}

	samples[0].Species = "mutated"
	if acc.Samples()[0].Species != "Homo sapiens" {
		t.Fatal("Samples must return a copy")
	}
}
