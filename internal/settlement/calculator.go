// Package settlement computes trade outcomes at expiry and records them
// against the external ledger exactly once per position.
package settlement

import (
	"math"
	"sort"

	"updown-core/internal/models"
)

// TieTolerance is the half-cent band around the strike treated as a push.
const TieTolerance = 0.005

// offsetKey converts a dollar offset to integer cents for table lookup,
// so float noise in request parsing cannot miss an entry.
func offsetKey(offset float64) int64 {
	return int64(math.Round(offset * 100))
}

// payoutTable maps (expiry bucket, strike offset in cents) to the
// per-contract payout on a win. These are business terms, not derived
// values; changing them changes the product, not the engine.
var payoutTable = map[models.ExpiryBucket]map[int64]float64{
	models.Expiry5s: {
		250:  3.33,
		500:  4.00,
		1000: 10.00,
		1500: 20.00,
	},
	models.Expiry10s: {
		250:  2.86,
		500:  3.33,
		1000: 6.67,
		1500: 13.33,
	},
	models.Expiry15s: {
		250:  2.50,
		500:  2.86,
		1000: 5.00,
		1500: 10.00,
	},
}

// StrikePrice returns the strike for a position opened at entryPrice:
// entry + offset for a call, entry - offset for a put.
func StrikePrice(entryPrice, offset float64, optionType models.OptionType) float64 {
	if optionType == models.OptionPut {
		return entryPrice - offset
	}
	return entryPrice + offset
}

// PayoutPerContract returns the table payout for a winning contract,
// or 0 when the (bucket, offset) pair has no entry.
func PayoutPerContract(bucket models.ExpiryBucket, offset float64) float64 {
	return payoutTable[bucket][offsetKey(offset)]
}

// KnownOffset reports whether the offset has a payout entry. Offsets are
// keyed identically across buckets, so any bucket answers for all.
func KnownOffset(offset float64) bool {
	_, ok := payoutTable[models.Expiry5s][offsetKey(offset)]
	return ok
}

// Offsets returns the strike offsets offered by the payout table,
// ascending.
func Offsets() []float64 {
	out := make([]float64, 0, len(payoutTable[models.Expiry5s]))
	for key := range payoutTable[models.Expiry5s] {
		out = append(out, float64(key)/100)
	}
	sort.Float64s(out)
	return out
}

// Settle computes the outcome and payout of an expired position from its
// trade parameters. The strike is recomputed from the entry price; callers
// that persisted the frozen strike should use SettlePosition instead.
//
// Settle is pure and deterministic for identical inputs.
func Settle(optionType models.OptionType, strikeOffset float64, bucket models.ExpiryBucket,
	entryPrice, finalPrice float64, contractCount int) models.SettlementResult {

	strike := StrikePrice(entryPrice, strikeOffset, optionType)
	return settleAtStrike(optionType, strikeOffset, bucket, strike, finalPrice, contractCount)
}

// SettlePosition settles using the strike frozen at open time. A zero
// stored strike falls back to recomputation from the entry price.
func SettlePosition(pos models.OpenPosition, finalPrice float64) models.SettlementResult {
	strike := pos.StrikePrice
	if strike == 0 {
		strike = StrikePrice(pos.EntryPrice, pos.StrikeOffset, pos.OptionType)
	}
	return settleAtStrike(pos.OptionType, pos.StrikeOffset, pos.ExpiryBucket, strike, finalPrice, pos.ContractCount)
}

func settleAtStrike(optionType models.OptionType, strikeOffset float64, bucket models.ExpiryBucket,
	strike, finalPrice float64, contractCount int) models.SettlementResult {

	contracts := float64(contractCount)
	premium := 1.0 * contracts
	delta := finalPrice - strike

	// Push: within the half-cent band the premium is refunded.
	if math.Abs(delta) < TieTolerance {
		return models.SettlementResult{
			Outcome:    models.OutcomeTie,
			Payout:     premium,
			Profit:     0,
			FinalPrice: finalPrice,
		}
	}

	won := delta > 0
	if optionType == models.OptionPut {
		won = delta < 0
	}

	if !won {
		return models.SettlementResult{
			Outcome:    models.OutcomeLoss,
			Payout:     0,
			Profit:     -premium,
			FinalPrice: finalPrice,
		}
	}

	payout := PayoutPerContract(bucket, strikeOffset) * contracts
	return models.SettlementResult{
		Outcome:    models.OutcomeWin,
		Payout:     payout,
		Profit:     payout - premium,
		FinalPrice: finalPrice,
	}
}
