package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	apperrors "updown-core/internal/errors"
	"updown-core/internal/models"
)

func newTestLedger(t *testing.T, handler http.Handler) (*HTTPLedger, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	l := NewHTTPLedger(HTTPConfig{
		BaseURL:   server.URL,
		AuthToken: "test-token",
	}, zerolog.Nop())
	return l, server
}

func TestRecordSettlementSendsMinorUnits(t *testing.T) {
	var got settlementRequest
	var auth string

	l, _ := newTestLedger(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/settlements" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		auth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))

	err := l.RecordSettlement(context.Background(), 42, models.OutcomeWin, 667, 567, 10001500)
	if err != nil {
		t.Fatalf("RecordSettlement() error = %v", err)
	}

	if auth != "Bearer test-token" {
		t.Errorf("authorization = %q, want bearer token", auth)
	}
	if got.PositionID != 42 || got.Outcome != "win" {
		t.Errorf("request = %+v", got)
	}
	if got.PayoutMinor != 667 || got.ProfitMinor != 567 || got.FinalPriceMinor != 10001500 {
		t.Errorf("minor units = %+v", got)
	}
}

func TestRecordSettlementApplicationError(t *testing.T) {
	l, _ := newTestLedger(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{
			"code":    "already_settled",
			"message": "position already settled",
		})
	}))

	err := l.RecordSettlement(context.Background(), 42, models.OutcomeWin, 667, 567, 10001500)
	if err == nil {
		t.Fatal("RecordSettlement() error = nil, want ledger error")
	}
	if !apperrors.IsLedger(err) {
		t.Errorf("error %v is not a LedgerError", err)
	}
}

func TestRecordSettlementTransportError(t *testing.T) {
	l := NewHTTPLedger(HTTPConfig{BaseURL: "http://127.0.0.1:1"}, zerolog.Nop())

	err := l.RecordSettlement(context.Background(), 42, models.OutcomeLoss, 0, 0, 5000000)
	if err == nil {
		t.Fatal("RecordSettlement() error = nil, want transport error")
	}
	if !apperrors.IsLedger(err) {
		t.Errorf("error %v is not a LedgerError", err)
	}
}

func TestBalance(t *testing.T) {
	l, _ := newTestLedger(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/balance" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(balanceResponse{BalanceMinor: 12345})
	}))

	balance, err := l.Balance(context.Background())
	if err != nil {
		t.Fatalf("Balance() error = %v", err)
	}
	if balance != 123.45 {
		t.Errorf("balance = %v, want 123.45", balance)
	}
}

func TestRecordSettlementUnknownPosition(t *testing.T) {
	l, _ := newTestLedger(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{
			"code":    "position_not_found",
			"message": "no such position",
		})
	}))

	err := l.RecordSettlement(context.Background(), 99, models.OutcomeWin, 667, 567, 10001500)
	if !errors.Is(err, apperrors.ErrDataNotFound) {
		t.Errorf("error = %v, want ErrDataNotFound", err)
	}
	if !apperrors.IsLedger(err) {
		t.Errorf("error %v is not a LedgerError", err)
	}
}

func TestOpenPositions(t *testing.T) {
	l, _ := newTestLedger(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/positions/open" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode([]positionResponse{
			{
				PositionID:    7,
				OptionType:    "call",
				StrikeOffset:  10.00,
				EntryPrice:    100000.00,
				StrikePrice:   100010.00,
				ExpiryBucket:  "10s",
				ContractCount: 3,
				OpenedAt:      1717243200,
				ExpiresAt:     1717243210,
			},
		})
	}))

	positions, err := l.OpenPositions(context.Background())
	if err != nil {
		t.Fatalf("OpenPositions() error = %v", err)
	}
	if len(positions) != 1 {
		t.Fatalf("positions = %d, want 1", len(positions))
	}

	pos := positions[0]
	if pos.PositionID != 7 || pos.OptionType != models.OptionCall {
		t.Errorf("position = %+v", pos)
	}
	if pos.StrikePrice != 100010.00 || pos.ExpiryBucket != models.Expiry10s {
		t.Errorf("position = %+v", pos)
	}
	if !pos.ExpiresAt.After(pos.OpenedAt) {
		t.Errorf("expiry %v not after open %v", pos.ExpiresAt, pos.OpenedAt)
	}
}
