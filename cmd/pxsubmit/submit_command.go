package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"pxsubmit/internal/collect"
	"pxsubmit/internal/config"
	"pxsubmit/internal/ledger"
	"pxsubmit/internal/submission"
	"pxsubmit/internal/transfer"
)

type submitResult struct {
	Dir     string           `json:"submission_dir" yaml:"submission_dir"`
	Outcome transfer.Outcome `json:"transfer" yaml:"transfer"`
}

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "submit <dir|study-id>",
		Short: "Upload an existing submission directory",
		Long: "Upload a submission directory containing submission.px. A study id\n" +
			"resolves to the directory of its latest successful run.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := cfg.ValidateSubmit(); err != nil {
				return err
			}
			dir, err := resolveSubmissionDir(cmd, ctx, cfg, args[0])
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger, err := ctx.logger(runLogName(filepath.Base(dir)+"-submit", time.Now()))
			if err != nil {
				return err
			}
			client, err := collect.NewAsperaClient(cfg, logger)
			if err != nil {
				return fmt.Errorf("aspera client: %w", err)
			}
			outcome, dispatchErr := collect.NewDispatcher(cfg, client, logger).Dispatch(runCtx, dir)
			result := submitResult{Dir: dir, Outcome: outcome}
			if err := writeOutput(cmd, ctx.outputFormat(), result, func() string { return renderSubmit(result) }); err != nil {
				return err
			}
			return dispatchErr
		},
	}
}

// resolveSubmissionDir accepts a directory path or a study id with a
// successful run in the ledger. A directory whose latest recorded run did
// not succeed is refused.
func resolveSubmissionDir(cmd *cobra.Command, ctx *commandContext, cfg *config.Config, arg string) (string, error) {
	arg = strings.TrimSpace(arg)
	dir := ""
	if info, err := os.Stat(arg); err == nil && info.IsDir() {
		abs, err := filepath.Abs(arg)
		if err != nil {
			return "", fmt.Errorf("resolve %s: %w", arg, err)
		}
		dir = abs
	}
	err := ctx.withLedger(func(store *ledger.Store) error {
		if dir == "" {
			run, err := store.LatestSucceeded(cmd.Context(), arg)
			if err != nil {
				return err
			}
			if run == nil {
				return fmt.Errorf("%s is not a directory and has no successful run in %s", arg, cfg.LedgerPath())
			}
			dir = run.SubmissionDir
		}
		latest, err := store.LatestForDir(cmd.Context(), dir)
		if err != nil {
			return err
		}
		if latest != nil && latest.Status != ledger.StatusSucceeded {
			return fmt.Errorf("latest run %s for %s is %s; rerun pxsubmit collect", latest.ID, dir, latest.Status)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(filepath.Join(dir, submission.ManifestName)); err != nil {
		return "", fmt.Errorf("%s has no %s; run pxsubmit collect first", dir, submission.ManifestName)
	}
	return dir, nil
}

func renderSubmit(r submitResult) string {
	return renderPairs([][2]string{
		{"Directory", r.Dir},
		{"Status", string(r.Outcome.Status)},
		{"Exit code", strconv.Itoa(r.Outcome.ExitCode)},
		{"Attempts", strconv.Itoa(r.Outcome.Attempts)},
		{"Stderr", fallback(r.Outcome.Stderr, "-")},
	})
}
