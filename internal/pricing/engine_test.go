package pricing

import (
	"errors"
	"math"
	"testing"

	apperrors "updown-core/internal/errors"
	"updown-core/internal/models"
)

func validRequest() models.TradeRequest {
	return models.TradeRequest{
		OptionType:    models.OptionCall,
		StrikeOffset:  10.00,
		ExpiryBucket:  models.Expiry10s,
		ContractCount: 5,
	}
}

func TestDeriveStrikePrice(t *testing.T) {
	tests := []struct {
		name       string
		entry      float64
		offset     float64
		optionType models.OptionType
		want       float64
	}{
		{"call", 100000.00, 10.00, models.OptionCall, 100010.00},
		{"put", 100000.00, 10.00, models.OptionPut, 99990.00},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeriveStrikePrice(tt.entry, tt.offset, tt.optionType)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("DeriveStrikePrice() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPremium(t *testing.T) {
	if got := Premium(1); got != 1.0 {
		t.Errorf("Premium(1) = %v, want 1.0", got)
	}
	if got := Premium(250); got != 250.0 {
		t.Errorf("Premium(250) = %v, want 250.0", got)
	}
}

func TestValidateTradeOK(t *testing.T) {
	cost, err := ValidateTrade(validRequest(), 100.0, 60000.0)
	if err != nil {
		t.Fatalf("ValidateTrade() error = %v", err)
	}
	if cost != 5.0 {
		t.Errorf("cost = %v, want 5.0", cost)
	}
}

func TestValidateTradeFeedNotReady(t *testing.T) {
	_, err := ValidateTrade(validRequest(), 100.0, 0)
	if !errors.Is(err, apperrors.ErrFeedNotReady) {
		t.Errorf("error = %v, want ErrFeedNotReady", err)
	}
	// Feed readiness is a precondition, not a validation failure.
	if apperrors.IsValidation(err) {
		t.Error("feed-not-ready should not be a validation error")
	}
}

func TestValidateTradeRejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*models.TradeRequest)
		balance float64
		wantErr error
	}{
		{
			name:    "unknown option type",
			mutate:  func(r *models.TradeRequest) { r.OptionType = "straddle" },
			balance: 100,
			wantErr: apperrors.ErrInvalidTrade,
		},
		{
			name:    "unknown expiry bucket",
			mutate:  func(r *models.TradeRequest) { r.ExpiryBucket = "30s" },
			balance: 100,
			wantErr: apperrors.ErrInvalidTrade,
		},
		{
			name:    "zero contracts",
			mutate:  func(r *models.TradeRequest) { r.ContractCount = 0 },
			balance: 100,
			wantErr: apperrors.ErrInvalidTrade,
		},
		{
			name:    "too many contracts",
			mutate:  func(r *models.TradeRequest) { r.ContractCount = 1001 },
			balance: 10000,
			wantErr: apperrors.ErrInvalidTrade,
		},
		{
			name:    "offset below minimum",
			mutate:  func(r *models.TradeRequest) { r.StrikeOffset = 0.005 },
			balance: 100,
			wantErr: apperrors.ErrInvalidTrade,
		},
		{
			name:    "offset above maximum",
			mutate:  func(r *models.TradeRequest) { r.StrikeOffset = 1500 },
			balance: 100,
			wantErr: apperrors.ErrInvalidTrade,
		},
		{
			name:    "offset not in payout table",
			mutate:  func(r *models.TradeRequest) { r.StrikeOffset = 7.77 },
			balance: 100,
			wantErr: apperrors.ErrUnknownOffset,
		},
		{
			name:    "cost exceeds balance",
			mutate:  func(r *models.TradeRequest) { r.ContractCount = 50 },
			balance: 10,
			wantErr: apperrors.ErrInsufficientFunds,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)

			_, err := ValidateTrade(req, tt.balance, 60000.0)
			if err == nil {
				t.Fatal("ValidateTrade() error = nil, want rejection")
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			if !apperrors.IsValidation(err) {
				t.Errorf("error %v should be a ValidationError", err)
			}
		})
	}
}

func TestValidateTradeBoundaries(t *testing.T) {
	// The extremes of the contract range are valid.
	for _, contracts := range []int{1, 1000} {
		req := validRequest()
		req.ContractCount = contracts

		cost, err := ValidateTrade(req, 2000.0, 60000.0)
		if err != nil {
			t.Errorf("contracts=%d: unexpected error %v", contracts, err)
		}
		if cost != float64(contracts) {
			t.Errorf("contracts=%d: cost = %v, want %v", contracts, cost, float64(contracts))
		}
	}
}
