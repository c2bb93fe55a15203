// Package transfer pushes a finished submission directory to the PRIDE
// upload area in a single ascp invocation.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"pxsubmit/internal/aspera"
	"pxsubmit/internal/command"
	"pxsubmit/internal/logging"
	"pxsubmit/internal/ratelimit"
	"pxsubmit/internal/services"
)

// Status classifies a transfer attempt.
type Status string

const (
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
	StatusAuthFailed Status = "auth_failed"
)

// Uploader is the part of the ascp client used for uploads.
type Uploader interface {
	Upload(ctx context.Context, req aspera.UploadRequest) (command.Result, error)
}

// Target is the repository upload destination.
type Target struct {
	User      string
	Password  string
	Server    string
	Directory string
}

// Outcome describes the final attempt.
type Outcome struct {
	Status   Status `json:"status" yaml:"status"`
	ExitCode int    `json:"exit_code" yaml:"exit_code"`
	Stdout   string `json:"-" yaml:"-"`
	Stderr   string `json:"stderr,omitempty" yaml:"stderr,omitempty"`
	Attempts int    `json:"attempts" yaml:"attempts"`
}

// Dispatcher uploads submission directories.
type Dispatcher struct {
	uploader       Uploader
	target         Target
	requireSuccess bool
	maxRetries     int
	limiter        ratelimit.Limiter
	logger         *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithRequireSuccess makes a failed upload an error. When false the failure
// is only logged and reported in the Outcome.
func WithRequireSuccess(v bool) Option {
	return func(d *Dispatcher) { d.requireSuccess = v }
}

// WithRetries retries failed uploads that were not rejected for credentials.
func WithRetries(n int, limiter ratelimit.Limiter) Option {
	return func(d *Dispatcher) {
		d.maxRetries = max(n, 0)
		if limiter != nil {
			d.limiter = limiter
		}
	}
}

// WithLogger sets the dispatcher logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logging.NewComponentLogger(logger, "transfer")
	}
}

// NewDispatcher builds a dispatcher for target.
func NewDispatcher(uploader Uploader, target Target, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		uploader:       uploader,
		target:         target,
		requireSuccess: true,
		logger:         logging.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.limiter == nil {
		d.limiter = ratelimit.New(ratelimit.Config{MaxRetries: d.maxRetries})
	}
	return d
}

// Dispatch uploads dir. A zero exit status is success; stderr reporting an
// authentication failure is classified separately from other failures.
func (d *Dispatcher) Dispatch(ctx context.Context, dir string) (Outcome, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return Outcome{Status: StatusFailed}, services.Wrap(services.ErrTransfer, "transfer", "prepare",
			fmt.Sprintf("submission directory %s is not available", dir), err)
	}

	req := aspera.UploadRequest{
		LocalDir:  dir,
		User:      d.target.User,
		Password:  d.target.Password,
		Server:    d.target.Server,
		RemoteDir: d.target.Directory,
	}
	logger := d.logger.With(logging.String("dir", dir), logging.String("server", d.target.Server))
	logger.Info("starting submission transfer", logging.String("remote_dir", d.target.Directory))

	var out Outcome
	attemptErr := ratelimit.Retry(ctx, d.limiter, d.maxRetries, func(err error) bool {
		return !errors.Is(err, services.ErrAuthentication) && ctx.Err() == nil
	}, func(attempt int) error {
		out.Attempts = attempt + 1
		res, err := d.uploader.Upload(ctx, req)
		out.ExitCode = res.ExitCode
		out.Stdout = res.Stdout
		out.Stderr = strings.TrimSpace(res.Stderr)
		switch {
		case err != nil:
			out.Status = StatusFailed
			return err
		case res.ExitCode == 0:
			out.Status = StatusSucceeded
			return nil
		case aspera.IsAuthFailure(res.Stderr):
			out.Status = StatusAuthFailed
			return services.ErrAuthentication
		default:
			out.Status = StatusFailed
			logger.Warn("transfer attempt failed", logging.Int("attempt", out.Attempts), logging.Int("exit_code", res.ExitCode))
			return fmt.Errorf("ascp exit status %d", res.ExitCode)
		}
	})

	if attemptErr == nil {
		logger.Info("submission transferred", logging.Int("attempts", out.Attempts))
		return out, nil
	}

	marker := services.ErrTransfer
	hint := "check network access to the upload server and retry with pxsubmit submit"
	if out.Status == StatusAuthFailed {
		hint = "check pride.username and pride.password"
	}
	logging.ErrorWithContext(logger, "submission transfer failed", "transfer_failed",
		logging.String("status", string(out.Status)),
		logging.Int("exit_code", out.ExitCode),
		logging.String("stderr", out.Stderr),
		logging.String(logging.FieldErrorHint, hint),
		logging.Error(attemptErr),
	)
	if !d.requireSuccess {
		logging.WarnWithContext(logger, "continuing without a successful transfer", "transfer_not_required",
			logging.String(logging.FieldImpact, "files were not delivered to the repository"),
			logging.String(logging.FieldErrorHint, hint),
		)
		return out, nil
	}
	return out, services.Wrap(marker, "transfer", "ascp upload",
		fmt.Sprintf("%s to %s (%s)", dir, d.target.Server, out.Status), attemptErr)
}
