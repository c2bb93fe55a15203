package osdf

import (
	"context"
	"errors"
	"fmt"

	"pxsubmit/internal/services"
	"pxsubmit/internal/study"
)

// Repository exposes the study hierarchy as typed records.
type Repository struct {
	client *Client
}

// NewRepository wraps a client.
func NewRepository(client *Client) *Repository {
	return &Repository{client: client}
}

// ResolveStudy confirms studyID names a study node.
func (r *Repository) ResolveStudy(ctx context.Context, studyID string) error {
	node, err := r.client.Node(ctx, studyID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return services.Wrap(services.ErrLookup, "walk", "resolve study",
				fmt.Sprintf("no study found with id %s", studyID), nil)
		}
		return err
	}
	if node.NodeType != TypeStudy {
		return services.Wrap(services.ErrLookup, "walk", "resolve study",
			fmt.Sprintf("node %s is a %s, not a study", studyID, node.NodeType), nil)
	}
	return nil
}

// Subjects lists the subject ids participating in a study.
func (r *Repository) Subjects(ctx context.Context, studyID string) ([]string, error) {
	return r.ids(ctx, TypeSubject, LinkParticipatesIn, studyID)
}

// Visits lists the visit ids of a subject.
func (r *Repository) Visits(ctx context.Context, subjectID string) ([]string, error) {
	return r.ids(ctx, TypeVisit, LinkBy, subjectID)
}

// Samples lists the sample ids collected during a visit.
func (r *Repository) Samples(ctx context.Context, visitID string) ([]string, error) {
	return r.ids(ctx, TypeSample, LinkCollectedDuring, visitID)
}

// Preparations returns the assay preparations of one kind made from a sample.
func (r *Repository) Preparations(ctx context.Context, sampleID string, kind study.PrepKind) ([]study.Preparation, error) {
	nodeType := TypeHostAssayPrep
	if kind == study.PrepMicrobiome {
		nodeType = TypeMicrobAssayPrep
	}
	nodes, err := r.client.Linked(ctx, nodeType, LinkPreparedFrom, sampleID)
	if err != nil {
		return nil, err
	}
	preps := make([]study.Preparation, 0, len(nodes))
	for _, n := range nodes {
		preps = append(preps, study.Preparation{
			ID:             n.ID,
			Kind:           kind,
			SampleID:       sampleID,
			ProtocolSteps:  n.MetaString("protocol_steps"),
			ExperimentType: n.MetaString("experiment_type"),
			Species:        n.MetaString("species"),
			Tissue:         n.MetaString("tissue"),
		})
	}
	return preps, nil
}

// Proteomes returns the proteomes derived from a preparation.
func (r *Repository) Proteomes(ctx context.Context, prepID string) ([]study.Proteome, error) {
	nodes, err := r.client.Linked(ctx, TypeProteome, LinkDerivedFrom, prepID)
	if err != nil {
		return nil, err
	}
	proteomes := make([]study.Proteome, 0, len(nodes))
	for _, n := range nodes {
		proteomes = append(proteomes, study.Proteome{
			ID:                     n.ID,
			ResultURLs:             n.MetaStrings("result_url"),
			PeakURLs:               n.MetaStrings("peak_url"),
			RawURLs:                n.MetaStrings("raw_url"),
			OtherURLs:              n.MetaStrings("other_url"),
			InstrumentName:         n.MetaString("instrument_name"),
			ExpDescription:         n.MetaString("exp_description"),
			DataProcessingProtocol: n.MetaString("data_processing_protocol"),
		})
	}
	return proteomes, nil
}

func (r *Repository) ids(ctx context.Context, nodeType, linkage, parent string) ([]string, error) {
	nodes, err := r.client.Linked(ctx, nodeType, linkage, parent)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(nodes))
	for _, n := range nodes {
		ids = append(ids, n.ID)
	}
	return ids, nil
}
