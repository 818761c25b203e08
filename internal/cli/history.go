package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"updown-core/internal/models"
	"updown-core/internal/store"
	"updown-core/pkg/utils"
)

func newHistoryCmd(app *App) *cobra.Command {
	var (
		positionID int64
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show archived settlement submission attempts",
		RunE: func(cmd *cobra.Command, args []string) error {
			archive, err := store.NewSQLiteStore(app.Config.Store.Path)
			if err != nil {
				return fmt.Errorf("opening settlement archive: %w", err)
			}
			defer archive.Close()

			records, err := fetchRecords(cmd, archive, positionID, limit)
			if err != nil {
				return err
			}

			if len(records) == 0 {
				fmt.Println("no settlement records")
				return nil
			}

			for _, rec := range records {
				status := "FAILED"
				if rec.Success {
					status = "ok"
				}
				fmt.Printf("%s  position %-8d %-5s payout %-10s %s",
					rec.SubmittedAt.Format("2006-01-02 15:04:05"),
					rec.PositionID,
					rec.Result.Outcome,
					utils.FormatUSD(rec.Result.Payout),
					status,
				)
				if rec.Error != "" {
					fmt.Printf("  %s", rec.Error)
				}
				fmt.Println()
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&positionID, "position-id", 0, "filter by position id")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum records to show")
	return cmd
}

func fetchRecords(cmd *cobra.Command, archive store.RecordStore, positionID int64, limit int) ([]models.SettlementRecord, error) {
	if positionID > 0 {
		return archive.RecordsForPosition(cmd.Context(), positionID)
	}
	return archive.RecentRecords(cmd.Context(), limit)
}
