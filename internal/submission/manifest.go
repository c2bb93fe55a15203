package submission

import (
	"fmt"
	"slices"
)

// FileType is the PRIDE file category of a manifest row.
type FileType string

const (
	FileTypeResult FileType = "result"
	FileTypePeak   FileType = "peak"
	FileTypeRaw    FileType = "raw"
)

// FileMappingRow is one FME entry.
type FileMappingRow struct {
	FileID int
	Type   FileType
	// Path is the absolute local path of the downloaded file.
	Path string
	// LinkedResultID is the result row a raw file backs; 0 for result and peak rows.
	LinkedResultID int
	SourceURL      string
}

// SampleMetadataRow is one SME entry, keyed by a result row's file id.
type SampleMetadataRow struct {
	FileID             int
	Species            string
	Tissue             string
	Instrument         string
	ExperimentalFactor string
}

// Accumulator collects manifest rows for a single run. It is not safe for
// concurrent use.
type Accumulator struct {
	files   []FileMappingRow
	samples []SampleMetadataRow
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

func (a *Accumulator) next() int {
	return len(a.files) + 1
}

// AddResult records a result file and returns its id, which becomes the
// result id of the proteome.
func (a *Accumulator) AddResult(path, sourceURL string) int {
	id := a.next()
	a.files = append(a.files, FileMappingRow{FileID: id, Type: FileTypeResult, Path: path, SourceURL: sourceURL})
	return id
}

// AddPeak records a peak file and returns its id.
func (a *Accumulator) AddPeak(path, sourceURL string) int {
	id := a.next()
	a.files = append(a.files, FileMappingRow{FileID: id, Type: FileTypePeak, Path: path, SourceURL: sourceURL})
	return id
}

// AddRaw records a raw file linked to an existing result row.
func (a *Accumulator) AddRaw(path, sourceURL string, resultID int) (int, error) {
	if !a.isResult(resultID) {
		return 0, fmt.Errorf("raw file %s: result id %d is not a result row", path, resultID)
	}
	id := a.next()
	a.files = append(a.files, FileMappingRow{
		FileID:         id,
		Type:           FileTypeRaw,
		Path:           path,
		LinkedResultID: resultID,
		SourceURL:      sourceURL,
	})
	return id, nil
}

// AddSample records the sample metadata of a result row. Each result row
// takes exactly one sample row.
func (a *Accumulator) AddSample(row SampleMetadataRow) error {
	if !a.isResult(row.FileID) {
		return fmt.Errorf("sample metadata: file id %d is not a result row", row.FileID)
	}
	for _, existing := range a.samples {
		if existing.FileID == row.FileID {
			return fmt.Errorf("sample metadata: file id %d already recorded", row.FileID)
		}
	}
	a.samples = append(a.samples, row)
	return nil
}

func (a *Accumulator) isResult(id int) bool {
	return id >= 1 && id <= len(a.files) && a.files[id-1].Type == FileTypeResult
}

// Files returns the file-mapping rows in file id order.
func (a *Accumulator) Files() []FileMappingRow {
	return slices.Clone(a.files)
}

// Samples returns the sample-metadata rows in insertion order.
func (a *Accumulator) Samples() []SampleMetadataRow {
	return slices.Clone(a.samples)
}

// LinkedRaw returns the ids of raw rows linked to resultID, ascending.
func (a *Accumulator) LinkedRaw(resultID int) []int {
	var ids []int
	for _, row := range a.files {
		if row.Type == FileTypeRaw && row.LinkedResultID == resultID {
			ids = append(ids, row.FileID)
		}
	}
	return ids
}

// Len reports the number of file-mapping rows.
func (a *Accumulator) Len() int {
	return len(a.files)
}

// Empty reports whether nothing has been recorded.
func (a *Accumulator) Empty() bool {
	return len(a.files) == 0
}
