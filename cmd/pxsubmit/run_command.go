package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"pxsubmit/internal/collect"
	"pxsubmit/internal/ledger"
	"pxsubmit/internal/preflight"
)

type runFlags struct {
	noSubmit   bool
	clean      bool
	skipChecks bool
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var flags runFlags
	cmd := &cobra.Command{
		Use:   "run [study-id]",
		Short: "Collect a study, write submission.px and upload it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, ctx, args, flags)
		},
	}
	cmd.Flags().BoolVar(&flags.noSubmit, "no-submit", false, "Stop after writing submission.px")
	cmd.Flags().BoolVar(&flags.clean, "clean", false, "Remove an existing submission directory first")
	cmd.Flags().BoolVar(&flags.skipChecks, "skip-checks", false, "Skip preflight checks")
	return cmd
}

func newCollectCommand(ctx *commandContext) *cobra.Command {
	var flags runFlags
	cmd := &cobra.Command{
		Use:   "collect [study-id]",
		Short: "Collect a study and write submission.px without uploading",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags.noSubmit = true
			return runPipeline(cmd, ctx, args, flags)
		},
	}
	cmd.Flags().BoolVar(&flags.clean, "clean", false, "Remove an existing submission directory first")
	cmd.Flags().BoolVar(&flags.skipChecks, "skip-checks", false, "Skip preflight checks")
	return cmd
}

func runPipeline(cmd *cobra.Command, ctx *commandContext, args []string, flags runFlags) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateCollect(); err != nil {
		return err
	}
	if !flags.noSubmit {
		if err := cfg.ValidateSubmit(); err != nil {
			return err
		}
	}

	studyID, err := resolveStudyID(cmd, args)
	if err != nil {
		return err
	}

	runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := ctx.logger(runLogName(studyID, time.Now()))
	if err != nil {
		return err
	}

	if !flags.skipChecks {
		results := preflight.RunAll(runCtx, cfg, preflight.Options{
			Database: collect.NewStudyClient(cfg, logger),
			Transfer: !flags.noSubmit,
		})
		if failed := preflight.Failed(results); len(failed) > 0 {
			fmt.Fprintln(cmd.ErrOrStderr(), renderPreflight(results))
			return fmt.Errorf("preflight: %d check(s) failed", len(failed))
		}
	}

	store, err := ledger.Open(cfg)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer store.Close()

	pipeline, err := collect.Build(runCtx, cfg, logger,
		collect.WithLedger(store),
		collect.WithSkipTransfer(flags.noSubmit),
		collect.WithClean(flags.clean || cfg.Collect.Clean),
	)
	if err != nil {
		return err
	}

	summary, runErr := pipeline.Run(runCtx, studyID)
	if runErr != nil && summary.RunID == "" {
		return runErr
	}
	if err := writeOutput(cmd, ctx.outputFormat(), summary, func() string { return renderSummary(summary) }); err != nil {
		return err
	}
	return runErr
}

// resolveStudyID takes the study id from args, prompting for it when stdin
// is a terminal.
func resolveStudyID(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 {
		if id := strings.TrimSpace(args[0]); id != "" {
			return id, nil
		}
	}
	if !stdinIsTerminal() {
		return "", errors.New("study id required")
	}
	fmt.Fprint(cmd.OutOrStdout(), "Study id: ")
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read study id: %w", err)
	}
	id := strings.TrimSpace(line)
	if id == "" {
		return "", errors.New("study id required")
	}
	return id, nil
}

func stdinIsTerminal() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func runLogName(studyID string, now time.Time) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, studyID)
	return fmt.Sprintf("pxsubmit-%s-%s.log", safe, now.UTC().Format("20060102T150405Z"))
}

func renderSummary(s collect.Summary) string {
	pairs := [][2]string{
		{"Run", s.RunID},
		{"Study", s.StudyID},
		{"Directory", s.Dir},
		{"Manifest", fallback(s.Manifest, "-")},
		{"Units", strconv.Itoa(s.Units)},
		{"Proteomes", strconv.Itoa(s.Proteomes)},
		{"Files", strconv.Itoa(s.Files)},
		{"Samples", strconv.Itoa(s.Samples)},
		{"Fetched", strconv.Itoa(s.Fetched)},
		{"Reused", strconv.Itoa(s.Reused)},
		{"Transfer", fallback(s.TransferStatus, "-")},
		{"Duration", s.Duration.Round(time.Millisecond).String()},
	}
	if s.Transfer != nil {
		pairs = append(pairs, [2]string{"Transfer attempts", strconv.Itoa(s.Transfer.Attempts)})
	}
	return renderPairs(pairs)
}

func fallback(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return value
}
