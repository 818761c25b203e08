package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	apperrors "updown-core/internal/errors"
	"updown-core/internal/logging"
	"updown-core/internal/models"
	"updown-core/pkg/utils"
)

// HTTPConfig holds configuration for the HTTP ledger client.
type HTTPConfig struct {
	BaseURL   string
	AuthToken string
	Timeout   time.Duration
}

// HTTPLedger implements Ledger over the ledger service's JSON API.
type HTTPLedger struct {
	cfg    HTTPConfig
	client *http.Client
	logger zerolog.Logger
}

// NewHTTPLedger creates a new HTTP ledger client.
func NewHTTPLedger(cfg HTTPConfig, logger zerolog.Logger) *HTTPLedger {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &HTTPLedger{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		logger: logging.WithComponent(logger, "ledger"),
	}
}

type settlementRequest struct {
	PositionID      int64  `json:"position_id"`
	Outcome         string `json:"outcome"`
	PayoutMinor     int64  `json:"payout_minor_units"`
	ProfitMinor     int64  `json:"profit_minor_units"`
	FinalPriceMinor int64  `json:"final_price_minor_units"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// The ledger reports money in minor units, like the settlement API.
type balanceResponse struct {
	BalanceMinor int64 `json:"balance_minor_units"`
}

type positionResponse struct {
	PositionID    int64   `json:"position_id"`
	OptionType    string  `json:"option_type"`
	StrikeOffset  float64 `json:"strike_offset"`
	EntryPrice    float64 `json:"entry_price"`
	StrikePrice   float64 `json:"strike_price"`
	ExpiryBucket  string  `json:"expiry_bucket"`
	ContractCount int     `json:"contract_count"`
	OpenedAt      int64   `json:"opened_at"`
	ExpiresAt     int64   `json:"expires_at"`
}

// RecordSettlement submits a settlement result. It is called exactly once
// per attempt; retry policy belongs to the settlement recorder, so no
// internal retries happen here.
func (l *HTTPLedger) RecordSettlement(ctx context.Context, positionID int64, outcome models.Outcome,
	payoutMinor, profitMinor, finalPriceMinor int64) error {

	body := settlementRequest{
		PositionID:      positionID,
		Outcome:         string(outcome),
		PayoutMinor:     payoutMinor,
		ProfitMinor:     profitMinor,
		FinalPriceMinor: finalPriceMinor,
	}

	start := time.Now()
	err := l.post(ctx, "/v1/settlements", body)
	logging.LogLedgerCall(l.logger, "record_settlement", time.Since(start), err)
	return err
}

// Balance returns the user's current balance. Transport errors are retried
// because the query is read-only.
func (l *HTTPLedger) Balance(ctx context.Context) (float64, error) {
	return utils.RetryWithResult(ctx, utils.DefaultRetryConfig(), func() (float64, error) {
		var resp balanceResponse
		if err := l.get(ctx, "/v1/balance", &resp); err != nil {
			return 0, err
		}
		return utils.FromMinorUnits(resp.BalanceMinor), nil
	})
}

// OpenPositions returns unsettled positions. Read-only, retried like Balance.
func (l *HTTPLedger) OpenPositions(ctx context.Context) ([]models.OpenPosition, error) {
	return utils.RetryWithResult(ctx, utils.DefaultRetryConfig(), func() ([]models.OpenPosition, error) {
		var resp []positionResponse
		if err := l.get(ctx, "/v1/positions/open", &resp); err != nil {
			return nil, err
		}

		positions := make([]models.OpenPosition, 0, len(resp))
		for _, p := range resp {
			positions = append(positions, models.OpenPosition{
				PositionID:    p.PositionID,
				OptionType:    models.OptionType(p.OptionType),
				StrikeOffset:  p.StrikeOffset,
				EntryPrice:    p.EntryPrice,
				StrikePrice:   p.StrikePrice,
				ExpiryBucket:  models.ExpiryBucket(p.ExpiryBucket),
				ContractCount: p.ContractCount,
				OpenedAt:      time.Unix(p.OpenedAt, 0),
				ExpiresAt:     time.Unix(p.ExpiresAt, 0),
			})
		}
		return positions, nil
	})
}

func (l *HTTPLedger) post(ctx context.Context, path string, body interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.cfg.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	l.setHeaders(req)

	resp, err := l.client.Do(req)
	if err != nil {
		return apperrors.NewLedgerError(path, "transport", "request failed", err)
	}
	defer resp.Body.Close()

	return l.checkResponse(path, resp)
}

func (l *HTTPLedger) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.cfg.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	l.setHeaders(req)

	resp, err := l.client.Do(req)
	if err != nil {
		return apperrors.NewLedgerError(path, "transport", "request failed", err)
	}
	defer resp.Body.Close()

	if err := l.checkResponse(path, resp); err != nil {
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.NewLedgerError(path, "decode", "invalid response body", err)
	}
	return nil
}

func (l *HTTPLedger) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if l.cfg.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+l.cfg.AuthToken)
	}
}

func (l *HTTPLedger) checkResponse(path string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var errResp errorResponse
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err := json.Unmarshal(data, &errResp); err != nil || errResp.Message == "" {
		errResp.Code = fmt.Sprintf("http_%d", resp.StatusCode)
		errResp.Message = string(data)
	}

	if resp.StatusCode == http.StatusNotFound {
		return apperrors.NewLedgerError(path, errResp.Code, errResp.Message, apperrors.ErrDataNotFound)
	}
	return apperrors.NewLedgerError(path, errResp.Code, errResp.Message, apperrors.ErrLedgerUnavailable)
}
