// Package pricing provides strike derivation, premium calculation, and
// trade validation over live quotes.
package pricing

import (
	"fmt"

	apperrors "updown-core/internal/errors"
	"updown-core/internal/models"
	"updown-core/internal/settlement"
)

// PremiumPerContract is the flat cost to open one contract.
const PremiumPerContract = 1.0

// Strike offset bounds accepted at trade open.
const (
	MinStrikeOffset = 0.01
	MaxStrikeOffset = 1000.0
)

// Contract count bounds accepted at trade open.
const (
	MinContracts = 1
	MaxContracts = 1000
)

// DeriveStrikePrice returns the strike frozen at open time:
// entry + offset for a call, entry - offset for a put.
func DeriveStrikePrice(entryPrice, offset float64, optionType models.OptionType) float64 {
	return settlement.StrikePrice(entryPrice, offset, optionType)
}

// Premium returns the total premium for a contract count.
func Premium(contractCount int) float64 {
	return PremiumPerContract * float64(contractCount)
}

// ValidateTrade checks a trade request against the user's balance and the
// current quote. On success it returns the trade cost in the quote asset.
//
// A zero quote price means the feed is not ready; that is a precondition
// failure, not a validation error, and callers may retry it once the feed
// recovers. Validation errors are terminal for the request.
func ValidateTrade(req models.TradeRequest, userBalance, quotePrice float64) (float64, error) {
	if quotePrice == 0 {
		return 0, apperrors.ErrFeedNotReady
	}

	if !req.OptionType.Valid() {
		return 0, apperrors.NewValidationError("optionType",
			fmt.Sprintf("unknown option type %q", req.OptionType), apperrors.ErrInvalidTrade)
	}
	if !req.ExpiryBucket.Valid() {
		return 0, apperrors.NewValidationError("expiryBucket",
			fmt.Sprintf("unknown expiry bucket %q", req.ExpiryBucket), apperrors.ErrInvalidTrade)
	}
	if req.ContractCount < MinContracts || req.ContractCount > MaxContracts {
		return 0, apperrors.NewValidationError("contractCount",
			fmt.Sprintf("must be between %d and %d, got %d", MinContracts, MaxContracts, req.ContractCount),
			apperrors.ErrInvalidTrade)
	}
	if req.StrikeOffset < MinStrikeOffset || req.StrikeOffset > MaxStrikeOffset {
		return 0, apperrors.NewValidationError("strikeOffset",
			fmt.Sprintf("must be between %.2f and %.2f, got %.2f", MinStrikeOffset, MaxStrikeOffset, req.StrikeOffset),
			apperrors.ErrInvalidTrade)
	}

	// An offset with no payout table entry would silently settle as a
	// loss; it is rejected here, before a position can be opened.
	if !settlement.KnownOffset(req.StrikeOffset) {
		return 0, apperrors.NewValidationError("strikeOffset",
			fmt.Sprintf("offset %.2f has no payout entry", req.StrikeOffset),
			apperrors.ErrUnknownOffset)
	}

	cost := Premium(req.ContractCount)
	if cost > userBalance {
		return 0, apperrors.NewValidationError("balance",
			fmt.Sprintf("trade cost %.2f exceeds balance %.2f", cost, userBalance),
			apperrors.ErrInsufficientFunds)
	}

	return cost, nil
}
