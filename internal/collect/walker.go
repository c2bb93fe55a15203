package collect

import (
	"context"
	"iter"

	"pxsubmit/internal/services"
	"pxsubmit/internal/study"
)

// Database is the read-only view of the study hierarchy the walker needs.
type Database interface {
	ResolveStudy(ctx context.Context, studyID string) error
	Subjects(ctx context.Context, studyID string) ([]string, error)
	Visits(ctx context.Context, subjectID string) ([]string, error)
	Samples(ctx context.Context, visitID string) ([]string, error)
	Preparations(ctx context.Context, sampleID string, kind study.PrepKind) ([]study.Preparation, error)
	Proteomes(ctx context.Context, prepID string) ([]study.Proteome, error)
}

// prepKinds is the order preparations of a sample are visited in.
var prepKinds = []study.PrepKind{study.PrepHost, study.PrepMicrobiome}

// Walker enumerates the units of a study.
type Walker struct {
	db Database
}

func NewWalker(db Database) *Walker {
	return &Walker{db: db}
}

// Units yields every preparation of the study that has at least one
// proteome, ordered subjects, visits, samples, then host before microbiome
// preparations. The first error is yielded once and ends the sequence.
func (w *Walker) Units(ctx context.Context, studyID string) iter.Seq2[study.Unit, error] {
	return func(yield func(study.Unit, error) bool) {
		if err := w.db.ResolveStudy(ctx, studyID); err != nil {
			yield(study.Unit{}, err)
			return
		}
		subjects, err := w.db.Subjects(ctx, studyID)
		if err != nil {
			yield(study.Unit{}, expandErr("study", studyID, err))
			return
		}
		for _, subjectID := range subjects {
			visits, err := w.db.Visits(ctx, subjectID)
			if err != nil {
				yield(study.Unit{}, expandErr("subject", subjectID, err))
				return
			}
			for _, visitID := range visits {
				samples, err := w.db.Samples(ctx, visitID)
				if err != nil {
					yield(study.Unit{}, expandErr("visit", visitID, err))
					return
				}
				for _, sampleID := range samples {
					if !w.sampleUnits(ctx, studyID, sampleID, yield) {
						return
					}
				}
			}
		}
	}
}

func (w *Walker) sampleUnits(ctx context.Context, studyID, sampleID string, yield func(study.Unit, error) bool) bool {
	for _, kind := range prepKinds {
		preps, err := w.db.Preparations(ctx, sampleID, kind)
		if err != nil {
			yield(study.Unit{}, expandErr("sample", sampleID, err))
			return false
		}
		for _, prep := range preps {
			if err := ctx.Err(); err != nil {
				yield(study.Unit{}, err)
				return false
			}
			proteomes, err := w.db.Proteomes(ctx, prep.ID)
			if err != nil {
				yield(study.Unit{}, expandErr(string(kind)+" preparation", prep.ID, err))
				return false
			}
			if len(proteomes) == 0 {
				continue
			}
			if !yield(study.Unit{StudyID: studyID, Prep: prep, Proteomes: proteomes}, nil) {
				return false
			}
		}
	}
	return true
}

func expandErr(kind, id string, err error) error {
	return services.Wrap(services.ErrLookup, "walk", "expand "+kind, id, err)
}
