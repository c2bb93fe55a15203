package submission

import (
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"pxsubmit/internal/services"
	"pxsubmit/internal/study"
)

// Protocol text bounds, in characters.
const (
	MinProtocolLength = 50
	MaxProtocolLength = 500
)

// SubmissionTypeComplete is the only submission type produced.
const SubmissionTypeComplete = "COMPLETE"

// OrderedSet keeps the first occurrence of each value in insertion order.
type OrderedSet struct {
	items []string
	seen  map[string]struct{}
}

// Add inserts value unless it is blank or already present and reports whether it was added.
func (s *OrderedSet) Add(value string) bool {
	value = strings.TrimSpace(value)
	if value == "" {
		return false
	}
	if s.seen == nil {
		s.seen = make(map[string]struct{})
	}
	if _, ok := s.seen[value]; ok {
		return false
	}
	s.seen[value] = struct{}{}
	s.items = append(s.items, value)
	return true
}

// Items returns a copy of the values in insertion order.
func (s OrderedSet) Items() []string {
	return slices.Clone(s.items)
}

func (s OrderedSet) Len() int {
	return len(s.items)
}

// Identity is the submitter-supplied part of the project metadata.
type Identity struct {
	SubmitterName        string
	SubmitterEmail       string
	SubmitterAffiliation string
	LabHeadName          string
	LabHeadEmail         string
	LabHeadAffiliation   string
	SubmitterPrideLogin  string
	ProjectTitle         string
	ProjectDescription   string
	Keywords             string
}

// ProjectMetadata is the project-level record written to the MTD section.
type ProjectMetadata struct {
	Identity
	SampleProcessingProtocol string
	DataProcessingProtocol   string
	SubmissionType           string
	ExperimentTypes          OrderedSet
	Species                  OrderedSet
	Tissues                  OrderedSet
	Instruments              OrderedSet
}

// Clone returns a deep copy.
func (m ProjectMetadata) Clone() ProjectMetadata {
	out := m
	out.ExperimentTypes = cloneSet(m.ExperimentTypes)
	out.Species = cloneSet(m.Species)
	out.Tissues = cloneSet(m.Tissues)
	out.Instruments = cloneSet(m.Instruments)
	return out
}

func cloneSet(s OrderedSet) OrderedSet {
	var out OrderedSet
	for _, item := range s.items {
		out.Add(item)
	}
	return out
}

// Aggregator folds study units into one ProjectMetadata record.
type Aggregator struct {
	meta     ProjectMetadata
	keywords OrderedSet
}

// NewAggregator seeds the record with the submitter identity.
func NewAggregator(identity Identity) *Aggregator {
	identity.Keywords = strings.TrimSpace(identity.Keywords)
	a := &Aggregator{meta: ProjectMetadata{
		Identity:       identity,
		SubmissionType: SubmissionTypeComplete,
	}}
	for keyword := range strings.SplitSeq(identity.Keywords, ",") {
		a.keywords.Add(keyword)
	}
	return a
}

// Fold merges one unit. The sample processing protocol comes from the first
// preparation with non-empty protocol steps and the data processing protocol
// from the first such proteome. Length violations are reported before the
// record is touched.
func (a *Aggregator) Fold(unit study.Unit) error {
	prep := unit.Prep

	sampleProtocol := a.meta.SampleProcessingProtocol
	if sampleProtocol == "" && strings.TrimSpace(prep.ProtocolSteps) != "" {
		if err := checkProtocol("sample processing protocol", prep.ProtocolSteps,
			fmt.Sprintf("update protocol_steps of assay prep %s", prep.ID)); err != nil {
			return err
		}
		sampleProtocol = prep.ProtocolSteps
	}

	dataProtocol := a.meta.DataProcessingProtocol
	for _, proteome := range unit.Proteomes {
		if dataProtocol != "" || strings.TrimSpace(proteome.DataProcessingProtocol) == "" {
			continue
		}
		if err := checkProtocol("data processing protocol", proteome.DataProcessingProtocol,
			fmt.Sprintf("update data_processing_protocol of proteome %s", proteome.ID)); err != nil {
			return err
		}
		dataProtocol = proteome.DataProcessingProtocol
	}

	a.meta.SampleProcessingProtocol = sampleProtocol
	a.meta.DataProcessingProtocol = dataProtocol
	a.meta.ExperimentTypes.Add(prep.ExperimentType)
	a.addKeyword(prep.Species)
	a.meta.Species.Add(prep.Species)
	a.meta.Tissues.Add(prep.Tissue)
	for _, proteome := range unit.Proteomes {
		a.meta.Instruments.Add(proteome.InstrumentName)
	}
	return nil
}

// addKeyword appends species to the keywords unless it is already one of them.
func (a *Aggregator) addKeyword(species string) {
	species = strings.TrimSpace(species)
	if !a.keywords.Add(species) {
		return
	}
	if a.meta.Keywords == "" {
		a.meta.Keywords = species
		return
	}
	a.meta.Keywords += ", " + species
}

// Metadata returns a copy of the accumulated record.
func (a *Aggregator) Metadata() ProjectMetadata {
	return a.meta.Clone()
}

// Complete reports whether the record can be composed.
func (a *Aggregator) Complete() error {
	return a.meta.Complete()
}

// Complete reports a missing protocol as a metadata validation failure.
func (m ProjectMetadata) Complete() error {
	if m.SampleProcessingProtocol == "" {
		return services.Wrap(services.ErrMetadataValidation, "metadata", "complete",
			"no assay prep supplied a sample processing protocol", nil)
	}
	if m.DataProcessingProtocol == "" {
		return services.Wrap(services.ErrMetadataValidation, "metadata", "complete",
			"no proteome supplied a data processing protocol", nil)
	}
	return nil
}

func checkProtocol(field, value, hint string) error {
	n := utf8.RuneCountInString(value)
	if n < MinProtocolLength || n > MaxProtocolLength {
		return services.Wrap(services.ErrMetadataValidation, "metadata", "fold",
			fmt.Sprintf("%s must be between %d and %d characters, got %d (%s)",
				field, MinProtocolLength, MaxProtocolLength, n, hint), nil)
	}
	return nil
}
