package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"updown-core/internal/models"
	"updown-core/internal/settlement"
	"updown-core/internal/store"
	"updown-core/pkg/utils"
)

func newRetryCmd(app *App) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "retry",
		Short: "Resubmit archived settlements whose latest attempt failed",
		RunE: func(cmd *cobra.Command, args []string) error {
			archive, err := store.NewSQLiteStore(app.Config.Store.Path)
			if err != nil {
				return fmt.Errorf("opening settlement archive: %w", err)
			}
			defer archive.Close()

			records, err := archive.RecentRecords(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("reading settlement archive: %w", err)
			}

			failed := latestFailures(records)
			if len(failed) == 0 {
				fmt.Println("no failed settlements to retry")
				return nil
			}

			recorder := settlement.NewRecorder(app.Ledger, app.Logger,
				settlement.WithArchive(archive))

			confirmed := 0
			for _, rec := range failed {
				if recorder.RecordSettlement(cmd.Context(), rec.PositionID, rec.Result) {
					fmt.Printf("position %d: confirmed (payout %s)\n",
						rec.PositionID, utils.FormatUSD(rec.Result.Payout))
					confirmed++
				} else {
					fmt.Printf("position %d: still failing\n", rec.PositionID)
				}
			}

			fmt.Printf("%d of %d settlements confirmed\n", confirmed, len(failed))
			if confirmed < len(failed) {
				return fmt.Errorf("%d settlements remain unconfirmed", len(failed)-confirmed)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 500, "maximum archived records to scan")
	return cmd
}

// latestFailures returns, oldest first, one record per position whose most
// recent submission attempt failed. Records arrive newest first, so the
// first record seen for a position is its latest attempt.
func latestFailures(records []models.SettlementRecord) []models.SettlementRecord {
	seen := make(map[int64]bool)
	var failed []models.SettlementRecord

	for _, rec := range records {
		if seen[rec.PositionID] {
			continue
		}
		seen[rec.PositionID] = true
		if !rec.Success {
			failed = append(failed, rec)
		}
	}

	// Reverse to retry in first-failure order.
	for i, j := 0, len(failed)-1; i < j; i, j = i+1, j-1 {
		failed[i], failed[j] = failed[j], failed[i]
	}
	return failed
}

func newMetricsCmd(app *App) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Summarize archived settlement submission attempts",
		RunE: func(cmd *cobra.Command, args []string) error {
			archive, err := store.NewSQLiteStore(app.Config.Store.Path)
			if err != nil {
				return fmt.Errorf("opening settlement archive: %w", err)
			}
			defer archive.Close()

			records, err := archive.RecentRecords(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("reading settlement archive: %w", err)
			}

			if len(records) == 0 {
				fmt.Println("no settlement records")
				return nil
			}

			var successes, failures int
			var paidOut float64
			for _, rec := range records {
				if rec.Success {
					successes++
					paidOut += rec.Result.Payout
				} else {
					failures++
				}
			}

			attempts := successes + failures
			fmt.Printf("attempts:      %d\n", attempts)
			fmt.Printf("successes:     %d\n", successes)
			fmt.Printf("failures:      %d\n", failures)
			fmt.Printf("success rate:  %.1f%%\n", float64(successes)/float64(attempts)*100)
			fmt.Printf("paid out:      %s\n", utils.FormatUSD(paidOut))
			fmt.Printf("last attempt:  %s\n", records[0].SubmittedAt.Format("2006-01-02 15:04:05"))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 500, "maximum archived records to scan")
	return cmd
}
