package collect_test

import (
	"context"
	"errors"
	"slices"
	"testing"

	"pxsubmit/internal/collect"
	"pxsubmit/internal/services"
	"pxsubmit/internal/study"
)

func collectUnits(t *testing.T, db collect.Database, studyID string) ([]study.Unit, error) {
	t.Helper()
	var units []study.Unit
	for unit, err := range collect.NewWalker(db).Units(context.Background(), studyID) {
		if err != nil {
			return units, err
		}
		units = append(units, unit)
	}
	return units, nil
}

func TestWalkerOrdersHostBeforeMicrobiome(t *testing.T) {
	db := singleStudy(proteome("p1"))
	db.samples["visit1"] = []string{"sample1", "sample2"}
	db.preps["sample1/microbiome"] = []study.Preparation{{ID: "mprep1", Kind: study.PrepMicrobiome}}
	db.proteomes["mprep1"] = []study.Proteome{proteome("p2")}
	db.preps["sample2/host"] = []study.Preparation{{ID: "prep2", Kind: study.PrepHost}, {ID: "empty", Kind: study.PrepHost}}
	db.proteomes["prep2"] = []study.Proteome{proteome("p3"), proteome("p4")}

	units, err := collectUnits(t, db, "s1")
	if err != nil {
		t.Fatalf("walk: %v", err)
	}
	var got []string
	for _, u := range units {
		got = append(got, u.Prep.ID)
		if u.StudyID != "s1" {
			t.Fatalf("unit carries study %q", u.StudyID)
		}
	}
	if want := []string{"prep1", "mprep1", "prep2"}; !slices.Equal(got, want) {
		t.Fatalf("prep order = %v, want %v", got, want)
	}
	if len(units[2].Proteomes) != 2 || units[2].Proteomes[0].ID != "p3" {
		t.Fatalf("unexpected proteomes %+v", units[2].Proteomes)
	}
}

func TestWalkerUnknownStudy(t *testing.T) {
	units, err := collectUnits(t, newFakeDB(), "missing")
	if !errors.Is(err, services.ErrLookup) {
		t.Fatalf("expected ErrLookup, got %v", err)
	}
	if len(units) != 0 {
		t.Fatalf("expected no units, got %d", len(units))
	}
}

func TestWalkerEmptyStudy(t *testing.T) {
	db := newFakeDB()
	db.studies = []string{"s1"}
	units, err := collectUnits(t, db, "s1")
	if err != nil || len(units) != 0 {
		t.Fatalf("expected no units and no error, got %d, %v", len(units), err)
	}
}

func TestWalkerPropagatesDatabaseErrors(t *testing.T) {
	db := singleStudy(proteome("p1"))
	db.err["visit1"] = errors.New("connection reset")

	_, err := collectUnits(t, db, "s1")
	if err == nil || !errors.Is(err, services.ErrLookup) {
		t.Fatalf("expected wrapped lookup error, got %v", err)
	}
}

func TestWalkerStopsWhenConsumerBreaks(t *testing.T) {
	db := singleStudy(proteome("p1"))
	db.samples["visit1"] = []string{"sample1", "sample2"}
	db.preps["sample2/host"] = []study.Preparation{{ID: "prep2"}}
	db.proteomes["prep2"] = []study.Proteome{proteome("p2")}

	seen := 0
	for _, err := range collect.NewWalker(db).Units(context.Background(), "s1") {
		if err != nil {
			t.Fatalf("walk: %v", err)
		}
		seen++
		break
	}
	if seen != 1 {
		t.Fatalf("expected to stop after one unit, saw %d", seen)
	}
}
