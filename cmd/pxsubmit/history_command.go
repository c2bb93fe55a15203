package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"pxsubmit/internal/ledger"
)

type runDetail struct {
	Run   *ledger.Run   `json:"run" yaml:"run"`
	Files []ledger.File `json:"files" yaml:"files"`
}

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLedger(func(store *ledger.Store) error {
				runs, err := store.Runs(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if len(runs) == 0 && ctx.outputFormat() == outputTable {
					fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded")
					return nil
				}
				return writeOutput(cmd, ctx.outputFormat(), runs, func() string { return renderRuns(runs) })
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to list")
	return cmd
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run and its manifest files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLedger(func(store *ledger.Store) error {
				id := strings.TrimSpace(args[0])
				run, err := store.Run(cmd.Context(), id)
				if errors.Is(err, ledger.ErrNotFound) {
					return fmt.Errorf("run %s not found", id)
				}
				if err != nil {
					return err
				}
				files, err := store.Files(cmd.Context(), id)
				if err != nil {
					return err
				}
				detail := runDetail{Run: run, Files: files}
				return writeOutput(cmd, ctx.outputFormat(), detail, func() string { return renderRunDetail(detail) })
			})
		},
	}
}

func renderRuns(runs []*ledger.Run) string {
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			r.ID,
			r.StudyID,
			string(r.Status),
			strconv.Itoa(r.Units),
			strconv.Itoa(r.Files),
			fallback(string(r.TransferStatus), "-"),
			r.StartedAt.Local().Format(time.DateTime),
			formatDuration(r.Duration()),
		})
	}
	return renderTable(
		[]string{"Run", "Study", "Status", "Units", "Files", "Transfer", "Started", "Duration"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft, alignRight},
	)
}

func renderRunDetail(d runDetail) string {
	r := d.Run
	pairs := [][2]string{
		{"Run", r.ID},
		{"Study", r.StudyID},
		{"Status", string(r.Status)},
		{"Directory", r.SubmissionDir},
		{"Units", strconv.Itoa(r.Units)},
		{"Files", strconv.Itoa(r.Files)},
		{"Fetched", strconv.Itoa(r.Fetched)},
		{"Transfer", fallback(string(r.TransferStatus), "-")},
		{"Started", r.StartedAt.Local().Format(time.DateTime)},
		{"Duration", formatDuration(r.Duration())},
	}
	if r.ErrorMessage != "" {
		pairs = append(pairs, [2]string{"Error", fmt.Sprintf("%s: %s", r.ErrorKind, r.ErrorMessage)})
	}
	out := renderPairs(pairs)
	if len(d.Files) == 0 {
		return out
	}

	rows := make([][]string, 0, len(d.Files))
	for _, f := range d.Files {
		linked := "-"
		if f.LinkedResultID > 0 {
			linked = strconv.Itoa(f.LinkedResultID)
		}
		rows = append(rows, []string{strconv.Itoa(f.FileID), f.Type, f.Path, linked})
	}
	return out + "\n" + renderTable(
		[]string{"ID", "Type", "Path", "Result"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight},
	)
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return d.Round(time.Second).String()
}
