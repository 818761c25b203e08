// Package ledger defines the external ledger of record and its HTTP client.
// The engine never touches ledger storage; it calls the settlement-recording
// operation and the read-only balance and open-position queries.
package ledger

import (
	"context"

	"updown-core/internal/models"
)

// Ledger is the external collaborator that owns balances and positions.
// Currency amounts cross this boundary in integer minor units (cents);
// the profit field is a non-negative magnitude, with sign carried by
// the outcome.
type Ledger interface {
	// RecordSettlement durably records a settlement for a position.
	// A non-nil error may be transient; the caller owns retry policy.
	RecordSettlement(ctx context.Context, positionID int64, outcome models.Outcome,
		payoutMinor, profitMinor, finalPriceMinor int64) error

	// Balance returns the user's current balance in the quote asset.
	Balance(ctx context.Context) (float64, error)

	// OpenPositions returns positions that have not yet been settled.
	OpenPositions(ctx context.Context) ([]models.OpenPosition, error)
}
