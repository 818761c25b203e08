package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"updown-core/internal/models"
	"updown-core/internal/settlement"
	"updown-core/internal/store"
	"updown-core/pkg/utils"
)

func newSettleCmd(app *App) *cobra.Command {
	var (
		positionID int64
		optionType string
		offset     float64
		bucket     string
		entryPrice float64
		strike     float64
		finalPrice float64
		contracts  int
		retries    int
		dryRun     bool
	)

	cmd := &cobra.Command{
		Use:   "settle",
		Short: "Settle one expired position and record the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			pos := models.OpenPosition{
				PositionID:    positionID,
				OptionType:    models.OptionType(optionType),
				StrikeOffset:  offset,
				EntryPrice:    entryPrice,
				StrikePrice:   strike,
				ExpiryBucket:  models.ExpiryBucket(bucket),
				ContractCount: contracts,
			}

			result := settlement.SettlePosition(pos, finalPrice)

			fmt.Printf("position %d: %s  payout %s  profit %s  final %s\n",
				positionID,
				result.Outcome,
				utils.FormatUSD(result.Payout),
				utils.FormatUSD(result.Profit),
				utils.FormatUSD(result.FinalPrice),
			)
			if contracts > 0 {
				premium := float64(contracts)
				fmt.Printf("return on premium: %s\n",
					utils.FormatPercent(result.Profit/premium*100))
			}

			if dryRun {
				return nil
			}

			opts := []settlement.RecorderOption{}
			if app.Config.Settlement.ArchiveEnabled {
				archive, err := store.NewSQLiteStore(app.Config.Store.Path)
				if err != nil {
					return fmt.Errorf("opening settlement archive: %w", err)
				}
				defer archive.Close()
				opts = append(opts, settlement.WithArchive(archive))
			}

			recorder := settlement.NewRecorder(app.Ledger, app.Logger, opts...)

			if recorder.RecordSettlement(cmd.Context(), positionID, result) {
				fmt.Println("settlement confirmed")
				return nil
			}

			for attempt := 0; attempt < retries; attempt++ {
				if recorder.RetryFailedSettlements(cmd.Context()) > 0 {
					fmt.Println("settlement confirmed after retry")
					return nil
				}
			}

			return fmt.Errorf("settlement for position %d not confirmed", positionID)
		},
	}

	cmd.Flags().Int64Var(&positionID, "position-id", 0, "ledger position id")
	cmd.Flags().StringVar(&optionType, "type", "call", "option type: call or put")
	cmd.Flags().Float64Var(&offset, "offset", 0, "strike offset in dollars")
	cmd.Flags().StringVar(&bucket, "bucket", "10s", "expiry bucket: 5s, 10s, or 15s")
	cmd.Flags().Float64Var(&entryPrice, "entry", 0, "entry price at trade open")
	cmd.Flags().Float64Var(&strike, "strike", 0, "frozen strike price (derived from entry when omitted)")
	cmd.Flags().Float64Var(&finalPrice, "final", 0, "final price at expiry")
	cmd.Flags().IntVar(&contracts, "contracts", 1, "contract count")
	cmd.Flags().IntVar(&retries, "retries", 2, "retry passes after a failed submission")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "compute the outcome without submitting")

	cmd.MarkFlagRequired("position-id")
	cmd.MarkFlagRequired("offset")
	cmd.MarkFlagRequired("entry")
	cmd.MarkFlagRequired("final")

	return cmd
}

func newOffsetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "offsets",
		Short: "Print the payout table",
		Run: func(cmd *cobra.Command, args []string) {
			buckets := []models.ExpiryBucket{models.Expiry5s, models.Expiry10s, models.Expiry15s}

			fmt.Printf("%-8s", "expiry")
			for _, offset := range settlement.Offsets() {
				fmt.Printf("%10.2f", offset)
			}
			fmt.Println()

			for _, bucket := range buckets {
				fmt.Printf("%-8s", bucket)
				for _, offset := range settlement.Offsets() {
					fmt.Printf("%10.2f", settlement.PayoutPerContract(bucket, offset))
				}
				fmt.Println()
			}
		},
	}
}
