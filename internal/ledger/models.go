package ledger

import "time"

// Status tracks the lifecycle of a run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// TransferStatus records what happened to the upload of a run.
type TransferStatus string

const (
	TransferSkipped    TransferStatus = "skipped"
	TransferSucceeded  TransferStatus = "succeeded"
	TransferFailed     TransferStatus = "failed"
	TransferAuthFailed TransferStatus = "auth_failed"
)

// Run is one collection run for a study.
type Run struct {
	ID             string         `json:"id" yaml:"id"`
	StudyID        string         `json:"study_id" yaml:"study_id"`
	Status         Status         `json:"status" yaml:"status"`
	SubmissionDir  string         `json:"submission_dir" yaml:"submission_dir"`
	Units          int            `json:"units" yaml:"units"`
	Files          int            `json:"files" yaml:"files"`
	Fetched        int            `json:"fetched" yaml:"fetched"`
	TransferStatus TransferStatus `json:"transfer_status,omitempty" yaml:"transfer_status,omitempty"`
	ErrorKind      string         `json:"error_kind,omitempty" yaml:"error_kind,omitempty"`
	ErrorMessage   string         `json:"error_message,omitempty" yaml:"error_message,omitempty"`
	StartedAt      time.Time      `json:"started_at" yaml:"started_at"`
	FinishedAt     *time.Time     `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
}

// Duration returns the elapsed time of a finished run, or zero.
func (r Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Outcome is the final state written by FinishRun.
type Outcome struct {
	Status         Status
	Units          int
	Files          int
	Fetched        int
	TransferStatus TransferStatus
	Err            error
}

// File is one manifest row stored for a run.
type File struct {
	FileID         int    `json:"file_id" yaml:"file_id"`
	Type           string `json:"file_type" yaml:"file_type"`
	Path           string `json:"path" yaml:"path"`
	LinkedResultID int    `json:"linked_result_id,omitempty" yaml:"linked_result_id,omitempty"`
	SourceURL      string `json:"source_url,omitempty" yaml:"source_url,omitempty"`
}
