// Package validator runs the PRIDE converter in validation mode over a
// result/peak file pair and interprets its report.
package validator

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"pxsubmit/internal/command"
	"pxsubmit/internal/logging"
	"pxsubmit/internal/services"
)

// Report keys written by the converter.
const (
	KeyTotalProteins = "Total proteins"
	KeyTotalPeptides = "Total peptides"
	KeyTotalSpectra  = "Total spectra"
	KeyStatus        = "Status"

	StatusOK = "OK"
)

var countKeys = []string{KeyTotalProteins, KeyTotalPeptides, KeyTotalSpectra}

// Report is the parsed converter report.
type Report struct {
	Counts map[string]int
	Status string
}

// Empty returns the count keys present in the report with a value below one.
func (r Report) Empty() []string {
	var out []string
	for _, key := range countKeys {
		if n, ok := r.Counts[key]; ok && n < 1 {
			out = append(out, key)
		}
	}
	return out
}

// OK reports whether the converter accepted the pair.
func (r Report) OK() bool {
	return r.Status == StatusOK
}

// ParseReport reads colon-delimited "key: value" lines. Lines without a colon
// and keys other than the counts and status are ignored.
func ParseReport(r io.Reader) (Report, error) {
	report := Report{Counts: make(map[string]int, len(countKeys))}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		switch key {
		case KeyStatus:
			report.Status = value
		case KeyTotalProteins, KeyTotalPeptides, KeyTotalSpectra:
			n, err := strconv.Atoi(value)
			if err != nil {
				return Report{}, fmt.Errorf("parse %q: %w", key, err)
			}
			report.Counts[key] = n
		}
	}
	if err := scanner.Err(); err != nil {
		return Report{}, fmt.Errorf("read report: %w", err)
	}
	return report, nil
}

// Request names the pair to validate.
type Request struct {
	ProteomeID string
	ResultPath string
	PeakPath   string
	// ReportDir receives validation_result_<proteome>.txt.
	ReportDir string
}

// Client runs the converter jar.
type Client struct {
	java    string
	jar     string
	timeout time.Duration
	exec    command.Executor
	logger  *slog.Logger
}

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec command.Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logging.NewComponentLogger(logger, "validator")
	}
}

// New constructs a validator client.
func New(java, jar string, timeout time.Duration, opts ...Option) (*Client, error) {
	java = strings.TrimSpace(java)
	jar = strings.TrimSpace(jar)
	if java == "" {
		return nil, errors.New("java binary required")
	}
	if jar == "" {
		return nil, errors.New("converter jar required")
	}
	c := &Client{
		java:    java,
		jar:     jar,
		timeout: timeout,
		exec:    command.Local{},
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ReportPath returns where the report for proteomeID is written.
func ReportPath(dir, proteomeID string) string {
	return filepath.Join(dir, "validation_result_"+proteomeID+".txt")
}

// Args returns the converter arguments for req.
func (c *Client) Args(req Request) []string {
	return []string{
		"-jar", c.jar,
		"-v",
		"-mzid", req.ResultPath,
		"-peak", req.PeakPath,
		"-skipserialization",
		"-reportfile", ReportPath(req.ReportDir, req.ProteomeID),
	}
}

// Validate runs the converter and checks its report. Zero counts are logged
// as warnings. A status other than OK, or no status at all, fails with
// ErrValidation and the report is left in place for inspection; otherwise
// the report is removed.
func (c *Client) Validate(ctx context.Context, req Request) (Report, error) {
	logger := c.logger.With(logging.String(logging.FieldProteomeID, req.ProteomeID))
	reportPath := ReportPath(req.ReportDir, req.ProteomeID)
	resultName := filepath.Base(req.ResultPath)

	runCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	logger.Info("validating proteome", logging.String("result", resultName), logging.String("peak", filepath.Base(req.PeakPath)))
	res, err := c.exec.Run(runCtx, command.Spec{
		Binary: c.java,
		Args:   c.Args(req),
		OnLine: func(line string) {
			logger.Debug("converter output", logging.String("line", line))
		},
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Report{}, services.Wrap(services.ErrTimeout, "validator", "java",
				fmt.Sprintf("proteome %s: exceeded %s", req.ProteomeID, c.timeout), err)
		}
		return Report{}, services.Wrap(services.ErrExternalTool, "validator", "java",
			fmt.Sprintf("proteome %s", req.ProteomeID), err)
	}
	if res.ExitCode != 0 {
		return Report{}, services.Wrap(services.ErrValidation, "validator", "java",
			fmt.Sprintf("proteome %s: %s: converter exited with status %d: %s",
				req.ProteomeID, resultName, res.ExitCode, strings.TrimSpace(res.Stderr)), nil)
	}

	file, err := os.Open(reportPath)
	if err != nil {
		return Report{}, services.Wrap(services.ErrValidation, "validator", "read report",
			fmt.Sprintf("proteome %s: %s", req.ProteomeID, resultName), err)
	}
	report, err := ParseReport(file)
	_ = file.Close()
	if err != nil {
		return Report{}, services.Wrap(services.ErrValidation, "validator", "parse report",
			fmt.Sprintf("proteome %s: %s", req.ProteomeID, reportPath), err)
	}

	for _, key := range report.Empty() {
		logging.WarnWithContext(logger, "validation count is zero", "validation_empty_count",
			logging.String("count", key),
			logging.String(logging.FieldErrorHint, "check "+reportPath),
			logging.String(logging.FieldImpact, "submission may be rejected by the repository"),
		)
	}

	if report.Status == "" {
		return report, services.Wrap(services.ErrValidation, "validator", "status",
			fmt.Sprintf("proteome %s: %s: report has no status line, see %s", req.ProteomeID, resultName, reportPath), nil)
	}
	if !report.OK() {
		return report, services.Wrap(services.ErrValidation, "validator", "status",
			fmt.Sprintf("proteome %s: %s: status %s, see %s", req.ProteomeID, resultName, report.Status, reportPath), nil)
	}

	if err := os.Remove(reportPath); err != nil {
		logger.Warn("failed to remove validation report", logging.String("path", reportPath), logging.Error(err))
	}
	logger.Info("proteome validated")
	return report, nil
}
