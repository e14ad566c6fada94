package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"edfanon/internal/config"
	"edfanon/internal/journal"
)

func newStatusCommand(configFlag *string) *cobra.Command {
	var limit int
	var showRuns bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show recent recordings and run outcomes from the journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, _, err := config.Load(*configFlag)
			if err != nil {
				return err
			}

			store, err := journal.Open(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			out := cmd.OutOrStdout()
			if showRuns {
				runs, err := store.RecentRuns(cmd.Context(), limit)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, renderRuns(runs))
				return nil
			}

			recordings, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, renderRecordings(recordings))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of rows to show")
	cmd.Flags().BoolVar(&showRuns, "runs", false, "Show run outcomes instead of individual recordings")
	return cmd
}

func renderRecordings(recordings []journal.Recording) string {
	if len(recordings) == 0 {
		return "No recordings journaled yet"
	}
	rows := make([][]string, 0, len(recordings))
	for _, rec := range recordings {
		detail := rec.ErrorMessage
		if rec.Status == journal.StatusCompleted {
			detail = shortDigest(rec.SubjectID)
		}
		rows = append(rows, []string{
			strconv.FormatInt(rec.ID, 10),
			rec.Filename,
			string(rec.Status),
			rec.UpdatedAt.Local().Format("2006-01-02 15:04:05"),
			detail,
		})
	}
	return renderTable(
		[]string{"ID", "Recording", "Status", "Updated", "Detail"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
	)
}

func renderRuns(runs []journal.Run) string {
	if len(runs) == 0 {
		return "No runs journaled yet"
	}
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		duration := ""
		if run.FinishedAt != nil {
			duration = run.FinishedAt.Sub(run.StartedAt).Round(time.Second).String()
		}
		rows = append(rows, []string{
			run.ID,
			run.Mode,
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			duration,
			strconv.Itoa(run.Discovered),
			strconv.Itoa(run.Processed),
			strconv.Itoa(run.Failed),
			strconv.Itoa(run.Skipped),
		})
	}
	return renderTable(
		[]string{"Run", "Mode", "Started", "Duration", "Discovered", "Processed", "Failed", "Skipped"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight},
	)
}

func shortDigest(digest string) string {
	if len(digest) > 12 {
		return digest[:12]
	}
	return digest
}
