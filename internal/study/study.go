// Package study holds the typed records read from the study database: the
// assay preparations and proteome results a submission is built from.
package study

// PrepKind distinguishes host-derived from microbiome-derived preparations.
type PrepKind string

const (
	PrepHost       PrepKind = "host"
	PrepMicrobiome PrepKind = "microbiome"
)

// Preparation is one assay preparation applied to a sample.
type Preparation struct {
	ID             string
	Kind           PrepKind
	SampleID       string
	ProtocolSteps  string
	ExperimentType string
	Species        string
	Tissue         string
}

// Proteome is one mass-spectrometry result tied to a preparation.
type Proteome struct {
	ID                     string
	ResultURLs             []string
	PeakURLs               []string
	RawURLs                []string
	OtherURLs              []string
	InstrumentName         string
	ExpDescription         string
	DataProcessingProtocol string
}

// Unit pairs a preparation with its proteomes. Walkers only produce units
// with at least one proteome.
type Unit struct {
	StudyID   string
	Prep      Preparation
	Proteomes []Proteome
}
