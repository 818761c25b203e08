// Package models provides domain models for the binary options engine.
package models

import (
	"time"
)

// OptionType represents the direction of a binary option.
type OptionType string

const (
	OptionCall OptionType = "call"
	OptionPut  OptionType = "put"
)

// Valid reports whether the option type is one of the known directions.
func (o OptionType) Valid() bool {
	return o == OptionCall || o == OptionPut
}

// ExpiryBucket represents one of the fixed trade durations.
type ExpiryBucket string

const (
	Expiry5s  ExpiryBucket = "5s"
	Expiry10s ExpiryBucket = "10s"
	Expiry15s ExpiryBucket = "15s"
)

// Valid reports whether the bucket is one of the offered durations.
func (b ExpiryBucket) Valid() bool {
	switch b {
	case Expiry5s, Expiry10s, Expiry15s:
		return true
	}
	return false
}

// Duration returns the wall-clock lifetime of a position in this bucket.
func (b ExpiryBucket) Duration() time.Duration {
	switch b {
	case Expiry5s:
		return 5 * time.Second
	case Expiry10s:
		return 10 * time.Second
	case Expiry15s:
		return 15 * time.Second
	}
	return 0
}

// Outcome represents the result of a settled position.
type Outcome string

const (
	OutcomeWin  Outcome = "win"
	OutcomeLoss Outcome = "loss"
	OutcomeTie  Outcome = "tie"
)

// Valid reports whether the outcome is one of the known results.
func (o Outcome) Valid() bool {
	switch o {
	case OutcomeWin, OutcomeLoss, OutcomeTie:
		return true
	}
	return false
}

// SettlementState represents the submission state of a position's settlement.
type SettlementState string

const (
	SettlementPending   SettlementState = "pending"
	SettlementSubmitted SettlementState = "submitted"
	SettlementConfirmed SettlementState = "confirmed"
	SettlementFailed    SettlementState = "failed"
)

// PriceTick represents a single normalized quote from the price feed.
type PriceTick struct {
	Price     float64
	Volume    float64
	High24h   float64
	Low24h    float64
	Source    string
	Timestamp time.Time
}

// TradeRequest represents the parameters of a trade before a position is opened.
type TradeRequest struct {
	OptionType    OptionType
	StrikeOffset  float64
	ExpiryBucket  ExpiryBucket
	ContractCount int
}

// OpenPosition references a position held by the external ledger.
// The strike is frozen at open time and must never be recomputed
// from a later price.
type OpenPosition struct {
	PositionID    int64
	OptionType    OptionType
	StrikeOffset  float64
	EntryPrice    float64
	StrikePrice   float64
	ExpiryBucket  ExpiryBucket
	ContractCount int
	OpenedAt      time.Time
	ExpiresAt     time.Time
}

// SettlementResult represents the computed outcome of an expired position.
type SettlementResult struct {
	Outcome    Outcome
	Payout     float64
	Profit     float64
	FinalPrice float64
}

// SettlementRecord represents one submission attempt against the ledger.
// Records are append-only; one successful record per position is the
// idempotency invariant enforced by the recorder.
type SettlementRecord struct {
	PositionID  int64
	Result      SettlementResult
	SubmittedAt time.Time
	Success     bool
	Error       string
}
