package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"tamperwatch/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var (
		cameraFlag   string
		limitFlag    int
		tamperedOnly bool
		sinceFlag    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded evaluations, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openHistory()
			if err != nil {
				return err
			}
			defer store.Close()

			filter := history.Filter{
				CameraID:     strings.TrimSpace(cameraFlag),
				TamperedOnly: tamperedOnly,
				Limit:        limitFlag,
			}
			if sinceFlag > 0 {
				filter.Since = time.Now().Add(-sinceFlag)
			}
			evaluations, err := store.List(cmd.Context(), filter)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(evaluations) == 0 {
				fmt.Fprintln(out, "No evaluations recorded")
				return nil
			}
			writeEvaluations(out, evaluations, shouldColorize(out))
			return nil
		},
	}
	cmd.Flags().StringVar(&cameraFlag, "camera", "", "Only show this camera")
	cmd.Flags().IntVarP(&limitFlag, "limit", "n", history.DefaultListLimit, "Maximum rows to show")
	cmd.Flags().BoolVar(&tamperedOnly, "tampered", false, "Only show tampered verdicts")
	cmd.Flags().DurationVar(&sinceFlag, "since", 0, "Only show evaluations newer than this (e.g. 24h)")

	cmd.AddCommand(newHistoryStatsCommand(ctx))
	return cmd
}

func newHistoryStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize evaluations per camera",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openHistory()
			if err != nil {
				return err
			}
			defer store.Close()

			stats, err := store.CameraStats(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(stats) == 0 {
				fmt.Fprintln(out, "No evaluations recorded")
				return nil
			}
			rows := make([][]string, 0, len(stats))
			for _, stat := range stats {
				rows = append(rows, []string{
					stat.CameraID,
					strconv.Itoa(stat.Evaluations),
					strconv.Itoa(stat.Tampered),
					strconv.Itoa(stat.Failed),
					stat.LastSeen.Local().Format(time.DateTime),
				})
			}
			fmt.Fprintln(out, renderTable(tableSpec{
				Headers: []string{"Camera", "Evaluations", "Tampered", "Failed", "Last seen"},
				Aligns:  []columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignLeft},
				Rows:    rows,
			}))
			return nil
		},
	}
}

func (c *commandContext) openHistory() (*history.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if !cfg.History.Enabled {
		return nil, fmt.Errorf("history is disabled (set history.enabled = true)")
	}
	store, err := history.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	return store, nil
}

func writeEvaluations(out io.Writer, evaluations []history.Evaluation, colorize bool) {
	rows := make([][]string, 0, len(evaluations))
	for _, ev := range evaluations {
		detail := ev.ImagePath
		if ev.Failed() {
			detail = ev.Error
		} else if ev.EvidencePath != "" {
			detail = "evidence: " + ev.EvidencePath
		}
		rows = append(rows, []string{
			strconv.FormatInt(ev.ID, 10),
			ev.CreatedAt.Local().Format(time.DateTime),
			ev.CameraID,
			verdictLabel(ev.Tampered, ev.Inferred, ev.Error, colorize),
			formatDistance(ev.Distance, ev.Inferred),
			formatThreshold(ev.Threshold),
			yesNo(ev.Notified),
			dashIfEmpty(detail),
		})
	}
	fmt.Fprintln(out, renderTable(tableSpec{
		Headers: []string{"ID", "Time", "Camera", "Verdict", "Distance", "Threshold", "Notified", "Detail"},
		Aligns:  []columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft},
		Rows:    rows,
	}))
}
