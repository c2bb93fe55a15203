package collect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"pxsubmit/internal/fetch"
	"pxsubmit/internal/logging"
	"pxsubmit/internal/metrics"
	"pxsubmit/internal/services"
	"pxsubmit/internal/study"
	"pxsubmit/internal/submission"
	"pxsubmit/internal/validator"
)

// PeakExtension is the only peak list format the converter accepts.
const PeakExtension = ".mgf"

// Fetcher resolves a URL to a local file in dir.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL, dir string) (fetch.Result, error)
}

// Validator checks a result/peak pair.
type Validator interface {
	Validate(ctx context.Context, req validator.Request) (validator.Report, error)
}

// Stats counts the files a Process call resolved.
type Stats struct {
	Proteomes int
	Fetched   int
	Reused    int
}

func (s *Stats) add(o Stats) {
	s.Proteomes += o.Proteomes
	s.Fetched += o.Fetched
	s.Reused += o.Reused
}

// Collector downloads and validates the proteomes of a unit into one directory.
type Collector struct {
	dir       string
	fetcher   Fetcher
	validator Validator
	metrics   *metrics.Recorder
	logger    *slog.Logger
	fold      cases.Caser
}

// NewCollector writes into dir. rec may be nil.
func NewCollector(dir string, fetcher Fetcher, v Validator, rec *metrics.Recorder, logger *slog.Logger) *Collector {
	return &Collector{
		dir:       dir,
		fetcher:   fetcher,
		validator: v,
		metrics:   rec,
		logger:    logging.NewComponentLogger(logger, "collector"),
		fold:      cases.Fold(),
	}
}

// Process handles every proteome of unit in order, appending manifest rows to acc.
func (c *Collector) Process(ctx context.Context, unit study.Unit, acc *submission.Accumulator) (Stats, error) {
	var total Stats
	for _, proteome := range unit.Proteomes {
		stats, err := c.proteome(ctx, unit, proteome, acc)
		total.add(stats)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (c *Collector) proteome(ctx context.Context, unit study.Unit, p study.Proteome, acc *submission.Accumulator) (Stats, error) {
	stats := Stats{Proteomes: 1}
	ctx = services.WithProteomeID(ctx, p.ID)
	logger := logging.WithContext(services.WithStudyID(ctx, unit.StudyID), c.logger)
	fail := func(marker error, op, file string, err error) error {
		msg := fmt.Sprintf("study %s: proteome %s", unit.StudyID, p.ID)
		if file != "" {
			msg += ": " + file
		}
		return services.Wrap(marker, "collect", op, msg, err)
	}

	resultURL := firstUsable(p.ResultURLs)
	if resultURL == "" {
		return stats, fail(services.ErrDownload, "result file", "", fmt.Errorf("no result url"))
	}
	peakURL := firstUsable(p.PeakURLs)
	if peakURL == "" {
		return stats, fail(services.ErrDownload, "peak file", "", fmt.Errorf("no peak url"))
	}

	get := func(rawURL string) (string, error) {
		start := time.Now()
		res, err := c.fetcher.Fetch(ctx, rawURL, c.dir)
		if err != nil {
			name, _ := fetch.LocalName(rawURL)
			return "", fail(services.ErrDownload, "download", name, err)
		}
		c.metrics.Fetch(scheme(rawURL), res.Fetched, time.Since(start))
		if res.Fetched {
			stats.Fetched++
		} else {
			stats.Reused++
		}
		return res.Path, nil
	}

	resultPath, err := get(resultURL)
	if err != nil {
		return stats, err
	}
	resultID := acc.AddResult(resultPath, resultURL)
	c.metrics.FileRecorded(string(submission.FileTypeResult))
	if err := acc.AddSample(submission.SampleMetadataRow{
		FileID:             resultID,
		Species:            unit.Prep.Species,
		Tissue:             unit.Prep.Tissue,
		Instrument:         p.InstrumentName,
		ExperimentalFactor: p.ExpDescription,
	}); err != nil {
		return stats, fail(services.ErrMetadataValidation, "sample row", filepath.Base(resultPath), err)
	}

	peakPath, err := get(peakURL)
	if err != nil {
		return stats, err
	}
	peakName := filepath.Base(peakPath)
	if !strings.HasSuffix(c.fold.String(peakName), PeakExtension) {
		return stats, fail(services.ErrInvalidFormat, "peak file", peakName,
			fmt.Errorf("peak file must be in %s format", PeakExtension))
	}
	acc.AddPeak(peakPath, peakURL)
	c.metrics.FileRecorded(string(submission.FileTypePeak))

	for _, group := range [][]string{p.RawURLs, p.OtherURLs} {
		for _, rawURL := range group {
			if strings.TrimSpace(rawURL) == "" {
				continue
			}
			path, err := get(rawURL)
			if err != nil {
				return stats, err
			}
			if _, err := acc.AddRaw(path, rawURL, resultID); err != nil {
				return stats, fail(services.ErrDownload, "raw file", filepath.Base(path), err)
			}
			c.metrics.FileRecorded(string(submission.FileTypeRaw))
		}
	}
	logger.Info("proteome files collected",
		logging.Int("result_id", resultID),
		logging.Int("fetched", stats.Fetched),
		logging.Int("reused", stats.Reused),
	)

	start := time.Now()
	_, err = c.validator.Validate(ctx, validator.Request{
		ProteomeID: p.ID,
		ResultPath: resultPath,
		PeakPath:   peakPath,
		ReportDir:  c.dir,
	})
	c.metrics.Validation(err == nil, time.Since(start))
	if err != nil {
		marker := services.ErrValidation
		if errors.Is(err, services.ErrTimeout) {
			marker = services.ErrTimeout
		}
		return stats, fail(marker, "validate", filepath.Base(resultPath), err)
	}
	return stats, nil
}

// firstUsable returns the first URL that names a file.
func firstUsable(urls []string) string {
	for _, u := range urls {
		if _, err := fetch.LocalName(u); err == nil && strings.TrimSpace(u) != "" {
			return strings.TrimSpace(u)
		}
	}
	return ""
}

func scheme(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Scheme == "" {
		return "unknown"
	}
	return strings.ToLower(u.Scheme)
}
