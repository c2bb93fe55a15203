package osdf

import (
	"fmt"
	"strings"
)

// Node types and linkage names of the study hierarchy.
const (
	TypeStudy           = "study"
	TypeSubject         = "subject"
	TypeVisit           = "visit"
	TypeSample          = "sample"
	TypeHostAssayPrep   = "host_assay_prep"
	TypeMicrobAssayPrep = "microb_assay_prep"
	TypeProteome        = "proteome"

	LinkParticipatesIn  = "participates_in"
	LinkBy              = "by"
	LinkCollectedDuring = "collected_during"
	LinkPreparedFrom    = "prepared_from"
	LinkDerivedFrom     = "derived_from"
)

// Node is a raw OSDF document.
type Node struct {
	ID       string              `json:"id"`
	NodeType string              `json:"node_type"`
	Version  int                 `json:"ver"`
	Linkage  map[string][]string `json:"linkage"`
	Meta     map[string]any      `json:"meta"`
}

// MetaString returns a metadata field as a string. Lists are joined with ", ".
func (n Node) MetaString(key string) string {
	switch v := n.Meta[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case []any:
		return strings.Join(n.MetaStrings(key), ", ")
	default:
		return fmt.Sprint(v)
	}
}

// MetaStrings returns a metadata field as a list. A scalar string becomes a
// single-element list and blank entries are dropped.
func (n Node) MetaStrings(key string) []string {
	switch v := n.Meta[key].(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return nil
		}
		return []string{v}
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				s = fmt.Sprint(item)
			}
			if strings.TrimSpace(s) != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
