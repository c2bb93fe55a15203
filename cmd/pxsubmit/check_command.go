package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"pxsubmit/internal/collect"
	"pxsubmit/internal/config"
	"pxsubmit/internal/notifications"
	"pxsubmit/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var offline bool
	var testNotify bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify dependencies, directories and credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger("")
			if err != nil {
				return err
			}
			opts := preflight.Options{Transfer: true}
			if !offline {
				opts.Database = collect.NewStudyClient(cfg, logger)
			}
			results := preflight.RunAll(cmd.Context(), cfg, opts)
			if testNotify {
				results = append(results, checkNotifications(cmd.Context(), cfg))
			}
			if err := writeOutput(cmd, ctx.outputFormat(), results, func() string { return renderPreflight(results) }); err != nil {
				return err
			}
			if failed := preflight.Failed(results); len(failed) > 0 {
				return fmt.Errorf("%d check(s) failed", len(failed))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "Skip the study database check")
	cmd.Flags().BoolVar(&testNotify, "notify", false, "Send a test notification")
	return cmd
}

func checkNotifications(ctx context.Context, cfg *config.Config) preflight.Result {
	const name = "Notifications"
	if cfg.Notifications.NtfyTopic == "" {
		return preflight.Result{Name: name, Passed: true, Detail: "Disabled (notifications.ntfy_topic is empty)"}
	}
	if err := notifications.NewService(cfg).TestNotification(ctx); err != nil {
		return preflight.Result{Name: name, Detail: err.Error()}
	}
	return preflight.Result{Name: name, Passed: true, Detail: "Test notification sent"}
}

func renderPreflight(results []preflight.Result) string {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{r.Name, yesNo(r.Passed), r.Detail})
	}
	return renderTable([]string{"Check", "Passed", "Detail"}, rows, nil)
}
