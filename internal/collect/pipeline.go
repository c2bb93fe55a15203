package collect

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"pxsubmit/internal/config"
	"pxsubmit/internal/ledger"
	"pxsubmit/internal/logging"
	"pxsubmit/internal/metrics"
	"pxsubmit/internal/notifications"
	"pxsubmit/internal/services"
	"pxsubmit/internal/submission"
	"pxsubmit/internal/transfer"
)

// ErrLocked reports that another run holds the study directory.
var ErrLocked = errors.New("submission directory locked by another run")

// Dispatcher uploads a finished submission directory.
type Dispatcher interface {
	Dispatch(ctx context.Context, dir string) (transfer.Outcome, error)
}

// Summary reports what a run produced.
type Summary struct {
	RunID          string            `json:"run_id" yaml:"run_id"`
	StudyID        string            `json:"study_id" yaml:"study_id"`
	Dir            string            `json:"submission_dir" yaml:"submission_dir"`
	Manifest       string            `json:"manifest,omitempty" yaml:"manifest,omitempty"`
	Units          int               `json:"units" yaml:"units"`
	Proteomes      int               `json:"proteomes" yaml:"proteomes"`
	Files          int               `json:"files" yaml:"files"`
	Samples        int               `json:"samples" yaml:"samples"`
	Fetched        int               `json:"fetched" yaml:"fetched"`
	Reused         int               `json:"reused" yaml:"reused"`
	TransferStatus string            `json:"transfer_status" yaml:"transfer_status"`
	Transfer       *transfer.Outcome `json:"transfer,omitempty" yaml:"transfer,omitempty"`
	Duration       time.Duration     `json:"duration" yaml:"duration"`
}

// Pipeline runs collection for one study at a time.
type Pipeline struct {
	cfg          *config.Config
	walker       *Walker
	fetcher      Fetcher
	validator    Validator
	dispatcher   Dispatcher
	ledger       *ledger.Store
	notifier     notifications.Service
	logger       *slog.Logger
	skipTransfer bool
	clean        bool
	newRunID     func() string
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLedger records runs in store.
func WithLedger(store *ledger.Store) Option {
	return func(p *Pipeline) { p.ledger = store }
}

// WithSkipTransfer stops after the manifest is written.
func WithSkipTransfer(skip bool) Option {
	return func(p *Pipeline) { p.skipTransfer = skip }
}

// WithClean removes the study directory before collecting. It defaults to collect.clean.
func WithClean(clean bool) Option {
	return func(p *Pipeline) { p.clean = clean }
}

// WithNotifier announces finished and failed runs.
func WithNotifier(n notifications.Service) Option {
	return func(p *Pipeline) {
		if n != nil {
			p.notifier = n
		}
	}
}

// WithLogger sets the pipeline logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithRunIDs overrides run id generation.
func WithRunIDs(fn func() string) Option {
	return func(p *Pipeline) {
		if fn != nil {
			p.newRunID = fn
		}
	}
}

// NewPipeline assembles a pipeline from its parts. dispatcher may be nil when
// transfers are skipped.
func NewPipeline(cfg *config.Config, db Database, fetcher Fetcher, v Validator, dispatcher Dispatcher, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:        cfg,
		walker:     NewWalker(db),
		fetcher:    fetcher,
		validator:  v,
		dispatcher: dispatcher,
		notifier:   notifications.NewService(nil),
		logger:     logging.NewNop(),
		clean:      cfg.Collect.Clean,
		newRunID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run collects studyID into its submission directory, writes the manifest and
// uploads it unless transfers are skipped. Any error aborts the run before
// the manifest is written.
func (p *Pipeline) Run(ctx context.Context, studyID string) (Summary, error) {
	studyID = strings.TrimSpace(studyID)
	if studyID == "" {
		return Summary{}, services.Wrap(services.ErrConfiguration, "pipeline", "start", "study id required", nil)
	}
	started := time.Now()
	summary := Summary{
		RunID:          p.newRunID(),
		StudyID:        studyID,
		Dir:            p.cfg.StudyDir(studyID),
		TransferStatus: string(ledger.TransferSkipped),
	}
	ctx = services.WithRunID(ctx, summary.RunID)
	ctx = services.WithStudyID(ctx, studyID)
	logger := logging.WithContext(ctx, logging.NewComponentLogger(p.logger, "pipeline"))

	if err := os.MkdirAll(p.cfg.Paths.SubmissionDir, 0o755); err != nil {
		return summary, fmt.Errorf("create submission root: %w", err)
	}
	lock := flock.New(summary.Dir + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return summary, fmt.Errorf("acquire study lock: %w", err)
	}
	if !locked {
		return summary, fmt.Errorf("%w: %s", ErrLocked, summary.Dir)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn("failed to release study lock", logging.Error(err))
		}
	}()

	if p.clean {
		if err := os.RemoveAll(summary.Dir); err != nil {
			return summary, fmt.Errorf("clean submission directory: %w", err)
		}
		logger.Info("removed previous submission directory", logging.String("dir", summary.Dir))
	}
	if err := os.MkdirAll(summary.Dir, 0o755); err != nil {
		return summary, fmt.Errorf("create submission directory: %w", err)
	}
	// A manifest from an earlier run must not outlive a run that aborts.
	stale := filepath.Join(summary.Dir, submission.ManifestName)
	if err := os.Remove(stale); err == nil {
		logger.Info("removed previous manifest", logging.String("path", stale))
	} else if !errors.Is(err, fs.ErrNotExist) {
		return summary, fmt.Errorf("remove previous manifest: %w", err)
	}

	if p.ledger != nil {
		if _, err := p.ledger.BeginRun(ctx, summary.RunID, studyID, summary.Dir); err != nil {
			return summary, fmt.Errorf("record run start: %w", err)
		}
	}
	rec := metrics.New()
	logger.Info("run started", logging.String("dir", summary.Dir), logging.Bool("skip_transfer", p.skipTransfer))

	acc := submission.NewAccumulator()
	runErr := p.run(ctx, logger, rec, acc, &summary)
	summary.Duration = time.Since(started)
	p.finish(ctx, logger, rec, acc, summary, runErr)
	return summary, runErr
}

func (p *Pipeline) run(ctx context.Context, logger *slog.Logger, rec *metrics.Recorder, acc *submission.Accumulator, summary *Summary) error {
	ctx = services.WithStage(ctx, "collect")
	agg := submission.NewAggregator(identity(p.cfg.Project))
	collector := NewCollector(summary.Dir, p.fetcher, p.validator, rec, p.logger)

	var stats Stats
	for unit, err := range p.walker.Units(ctx, summary.StudyID) {
		if err != nil {
			return err
		}
		if err := agg.Fold(unit); err != nil {
			return fmt.Errorf("study %s: %w", summary.StudyID, err)
		}
		unitStats, err := collector.Process(ctx, unit, acc)
		stats.add(unitStats)
		summary.Proteomes, summary.Fetched, summary.Reused = stats.Proteomes, stats.Fetched, stats.Reused
		if err != nil {
			return err
		}
		summary.Units++
		rec.UnitProcessed()
		logger.Info("preparation collected",
			logging.String("prep_id", unit.Prep.ID),
			logging.String("prep_kind", string(unit.Prep.Kind)),
			logging.Int("proteomes", len(unit.Proteomes)),
		)
	}
	summary.Files = acc.Len()
	summary.Samples = len(acc.Samples())

	if summary.Units == 0 {
		logging.WarnWithContext(logger, "study has no preparations with proteomes", "empty_study",
			logging.String(logging.FieldImpact, "no manifest written and nothing uploaded"),
			logging.String(logging.FieldErrorHint, "verify the study id and its proteome records"),
		)
		return nil
	}

	manifest, err := submission.WriteFile(summary.Dir, agg.Metadata(), acc, p.logger)
	if err != nil {
		return fmt.Errorf("study %s: %w", summary.StudyID, err)
	}
	summary.Manifest = manifest

	if p.skipTransfer || p.dispatcher == nil {
		logger.Info("transfer skipped", logging.String("dir", summary.Dir))
		return nil
	}
	outcome, err := p.dispatcher.Dispatch(services.WithStage(ctx, "transfer"), summary.Dir)
	summary.Transfer = &outcome
	summary.TransferStatus = string(outcome.Status)
	rec.Transfer(string(outcome.Status))
	if err != nil {
		return fmt.Errorf("study %s: %w", summary.StudyID, err)
	}
	return nil
}

func (p *Pipeline) finish(ctx context.Context, logger *slog.Logger, rec *metrics.Recorder, acc *submission.Accumulator, summary Summary, runErr error) {
	status := ledger.StatusSucceeded
	if runErr != nil {
		status = ledger.StatusFailed
		logging.ErrorWithContext(logger, "run failed", "run_failed", logging.Error(runErr))
	} else {
		logger.Info("run finished",
			logging.Int("units", summary.Units),
			logging.Int("files", summary.Files),
			logging.Int("fetched", summary.Fetched),
			logging.String("transfer", summary.TransferStatus),
			logging.Duration("duration", summary.Duration),
		)
	}

	if p.ledger != nil {
		// Recorded even when ctx was cancelled.
		ledgerCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := p.ledger.RecordFiles(ledgerCtx, summary.RunID, ledgerFiles(acc)); err != nil {
			logger.Warn("failed to record run files", logging.Error(err))
		}
		if err := p.ledger.FinishRun(ledgerCtx, summary.RunID, ledger.Outcome{
			Status:         status,
			Units:          summary.Units,
			Files:          summary.Files,
			Fetched:        summary.Fetched,
			TransferStatus: ledger.TransferStatus(summary.TransferStatus),
			Err:            runErr,
		}); err != nil {
			logger.Warn("failed to record run outcome", logging.Error(err))
		}
	}

	rec.RunFinished(summary.StudyID, runErr == nil, summary.Duration)
	if path := p.cfg.Metrics.Textfile; path != "" {
		if err := rec.WriteTextfile(path); err != nil {
			logger.Warn("failed to write metrics textfile", logging.String("path", filepath.Clean(path)), logging.Error(err))
		}
	}

	p.notify(ctx, logger, summary, runErr)
}

func (p *Pipeline) notify(ctx context.Context, logger *slog.Logger, summary Summary, runErr error) {
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()

	report := notifications.RunReport{
		StudyID:        summary.StudyID,
		RunID:          summary.RunID,
		Files:          summary.Files,
		Samples:        summary.Samples,
		TransferStatus: summary.TransferStatus,
		Duration:       summary.Duration,
	}
	var err error
	switch {
	case runErr != nil:
		err = p.notifier.NotifyRunFailed(notifyCtx, report, runErr)
	case summary.Transfer != nil && summary.Transfer.Status != transfer.StatusSucceeded:
		err = p.notifier.NotifyTransferFailed(notifyCtx, report, summary.Transfer.Stderr)
	default:
		err = p.notifier.NotifyRunCompleted(notifyCtx, report)
	}
	if err != nil {
		logger.Warn("notification failed", logging.Error(err))
	}
}

func ledgerFiles(acc *submission.Accumulator) []ledger.File {
	rows := acc.Files()
	files := make([]ledger.File, 0, len(rows))
	for _, row := range rows {
		files = append(files, ledger.File{
			FileID:         row.FileID,
			Type:           string(row.Type),
			Path:           row.Path,
			LinkedResultID: row.LinkedResultID,
			SourceURL:      row.SourceURL,
		})
	}
	return files
}

func identity(p config.Project) submission.Identity {
	return submission.Identity{
		SubmitterName:        p.SubmitterName,
		SubmitterEmail:       p.SubmitterEmail,
		SubmitterAffiliation: p.SubmitterAffiliation,
		LabHeadName:          p.LabHeadName,
		LabHeadEmail:         p.LabHeadEmail,
		LabHeadAffiliation:   p.LabHeadAffiliation,
		SubmitterPrideLogin:  p.SubmitterPrideLogin,
		ProjectTitle:         p.Title,
		ProjectDescription:   p.Description,
		Keywords:             p.Keywords,
	}
}
