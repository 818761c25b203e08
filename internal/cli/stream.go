package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"updown-core/internal/feed"
	"updown-core/internal/logging"
	"updown-core/internal/models"
	"updown-core/pkg/utils"
)

func newStreamCmd(app *App) *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "stream",
		Short: "Connect to the price feed and print live ticks",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			logger := logging.FromContext(ctx)
			connector := feed.NewConnector(feed.Config{
				URL:         app.Config.Feed.URL,
				ProductID:   app.Config.Feed.ProductID,
				MaxRetries:  app.Config.Feed.MaxRetries,
				BaseDelay:   app.Config.Feed.BaseDelay,
				StaleAfter:  app.Config.Feed.StaleAfter,
				HistorySize: app.Config.Feed.HistorySize,
			}, logger)

			connector.Subscribe(func(tick models.PriceTick) {
				logging.LogTick(logger, tick.Source, tick.Price, tick.Timestamp)
				if quiet {
					return
				}
				fmt.Printf("%s  %s  %s  vol %.6f\n",
					tick.Timestamp.Format("15:04:05.000"),
					tick.Source,
					utils.FormatUSD(tick.Price),
					tick.Volume,
				)
			})

			if err := connector.Connect(ctx); err != nil {
				return fmt.Errorf("connecting to feed: %w", err)
			}
			defer connector.Close()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

			select {
			case <-sigCh:
			case <-ctx.Done():
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&quiet, "quiet", false, "suppress tick output, log only")
	return cmd
}
