package submission

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"pxsubmit/internal/logging"
)

// ManifestName is the file name of the submission manifest.
const ManifestName = "submission.px"

// Column headers of the FMH and SMH lines.
var (
	FileMappingColumns    = []string{"file_id", "file_type", "file_path", "file_mapping"}
	SampleMetadataColumns = []string{"file_id", "species", "tissue", "instrument", "experimental_factor"}
)

type mtdField struct {
	name   string
	scalar string
	list   []string
	isList bool
}

func (m ProjectMetadata) mtdFields() []mtdField {
	scalar := func(name, value string) mtdField { return mtdField{name: name, scalar: value} }
	list := func(name string, set OrderedSet) mtdField { return mtdField{name: name, list: set.Items(), isList: true} }
	return []mtdField{
		scalar("submitter_name", m.SubmitterName),
		scalar("submitter_email", m.SubmitterEmail),
		scalar("submitter_affiliation", m.SubmitterAffiliation),
		scalar("lab_head_name", m.LabHeadName),
		scalar("lab_head_email", m.LabHeadEmail),
		scalar("lab_head_affiliation", m.LabHeadAffiliation),
		scalar("submitter_pride_login", m.SubmitterPrideLogin),
		scalar("project_title", m.ProjectTitle),
		scalar("project_description", m.ProjectDescription),
		scalar("sample_processing_protocol", m.SampleProcessingProtocol),
		scalar("data_processing_protocol", m.DataProcessingProtocol),
		scalar("keywords", m.Keywords),
		scalar("submission_type", m.SubmissionType),
		list("experiment_type", m.ExperimentTypes),
		list("species", m.Species),
		list("tissue", m.Tissues),
		list("instrument", m.Instruments),
	}
}

// Compose writes the manifest document for meta and acc to w. Output depends
// only on its inputs.
func Compose(w io.Writer, meta ProjectMetadata, acc *Accumulator) error {
	if acc == nil {
		return errors.New("compose manifest: nil accumulator")
	}
	if err := meta.Complete(); err != nil {
		return err
	}

	bw := bufio.NewWriter(w)
	for _, field := range meta.mtdFields() {
		value := field.scalar
		if field.isList {
			value = bracket(strings.Join(field.list, ""))
		}
		fmt.Fprintf(bw, "MTD\t%s\t%s\n", field.name, singleLine(value))
	}

	bw.WriteString("\nFMH\t")
	for _, col := range FileMappingColumns {
		bw.WriteString(col + "\t")
	}
	bw.WriteString("\n")
	for _, row := range acc.Files() {
		fmt.Fprintf(bw, "FME\t%d\t%s\t%s\t", row.FileID, row.Type, row.Path)
		if row.Type == FileTypeResult {
			for _, id := range acc.LinkedRaw(row.FileID) {
				bw.WriteString(strconv.Itoa(id) + ",")
			}
		}
		bw.WriteString("\n")
	}

	bw.WriteString("\nSMH\t")
	for _, col := range SampleMetadataColumns {
		bw.WriteString(col + "\t")
	}
	bw.WriteString("\n")
	for _, row := range acc.Samples() {
		fmt.Fprintf(bw, "SME\t%d\t%s\t%s\t%s\t%s\n",
			row.FileID,
			bracket(row.Species),
			bracket(row.Tissue),
			bracket(row.Instrument),
			singleLine(row.ExperimentalFactor),
		)
	}
	return bw.Flush()
}

func bracket(value string) string {
	return "[" + singleLine(value) + "]"
}

// singleLine keeps free text from breaking the line-oriented format.
func singleLine(value string) string {
	return strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ", "\t", " ").Replace(value)
}

// WriteFile composes the manifest into dir/submission.px, replacing any
// existing manifest, and returns the written path.
func WriteFile(dir string, meta ProjectMetadata, acc *Accumulator, logger *slog.Logger) (string, error) {
	logger = logging.NewComponentLogger(logger, "composer")

	var buf bytes.Buffer
	if err := Compose(&buf, meta, acc); err != nil {
		return "", err
	}

	path := filepath.Join(dir, ManifestName)
	if err := os.Remove(path); err == nil {
		logger.Info("removed previous submission manifest", logging.String("path", path))
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("remove previous manifest: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write manifest: %w", err)
	}
	logger.Info("submission manifest written",
		logging.String("path", path),
		logging.Int("files", acc.Len()),
		logging.Int("samples", len(acc.Samples())),
	)
	return path, nil
}
