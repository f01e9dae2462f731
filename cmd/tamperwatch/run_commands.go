package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"tamperwatch/internal/daemonrun"
	"tamperwatch/internal/workflow"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var development bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the polling daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:    ctx.logLevel(),
				Development: development,
			})
		},
	}
	cmd.Flags().BoolVar(&development, "dev", false, "Include source locations in log output")
	return cmd
}

func newOnceCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "once",
		Short: "Inspect every camera once and exit",
		Long: "Inspect the newest image of every camera once, then exit. Cameras that were\n" +
			"skipped (missing reference, unreadable folder) do not change the exit status;\n" +
			"they are retried on the next invocation.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			summary, err := daemonrun.RunOnce(cmd.Context(), cfg, daemonrun.Options{LogLevel: ctx.logLevel()})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(summary)
			}
			writePassSummary(out, summary, shouldColorize(out))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the pass summary as JSON")
	return cmd
}

func writePassSummary(out io.Writer, summary workflow.PassSummary, colorize bool) {
	rows := make([][]string, 0, len(summary.Cameras))
	for _, result := range summary.Cameras {
		rows = append(rows, []string{
			result.CameraID,
			outcomeLabel(result.Outcome, colorize),
			formatDistance(result.Decision.Distance, result.Decision.Inferred),
			thresholdCell(result),
			yesNo(result.Notified),
			passDetail(result),
		})
	}
	fmt.Fprintln(out, renderTable(tableSpec{
		Title:   "Pass " + summary.PassID,
		Headers: []string{"Camera", "Outcome", "Distance", "Threshold", "Notified", "Detail"},
		Aligns:  []columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft},
		Rows:    rows,
	}))
	fmt.Fprintf(out, "%d evaluated, %d tampered, %d skipped in %s\n",
		summary.Evaluated(),
		summary.Count(workflow.OutcomeTampered),
		summary.Count(workflow.OutcomeSkipped),
		summary.Duration().Round(time.Millisecond),
	)
	if summary.Interrupted {
		fmt.Fprintln(out, "pass interrupted before every camera was inspected")
	}
}

func outcomeLabel(outcome workflow.Outcome, colorize bool) string {
	switch outcome {
	case workflow.OutcomeTampered:
		return paint(string(outcome), ansiRed, colorize)
	case workflow.OutcomeClear:
		return paint(string(outcome), ansiGreen, colorize)
	case workflow.OutcomeSkipped, workflow.OutcomeFailed:
		return paint(string(outcome), ansiYellow, colorize)
	default:
		return string(outcome)
	}
}

func thresholdCell(result workflow.CameraResult) string {
	if result.Outcome == workflow.OutcomeIdle || result.Outcome == workflow.OutcomeSkipped {
		return "-"
	}
	return formatThreshold(result.Decision.Threshold)
}

func passDetail(result workflow.CameraResult) string {
	switch {
	case result.Error != "":
		return result.Error
	case result.EvidencePath != "":
		return "evidence: " + result.EvidencePath
	case result.Image != "":
		return result.Image
	default:
		return "-"
	}
}
