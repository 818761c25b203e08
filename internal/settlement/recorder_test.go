package settlement

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"updown-core/internal/models"
)

// fakeLedger records settlement calls and fails on demand.
type fakeLedger struct {
	mu       sync.Mutex
	calls    []ledgerCall
	failNext int // fail this many calls before succeeding
	err      error
}

type ledgerCall struct {
	positionID      int64
	outcome         models.Outcome
	payoutMinor     int64
	profitMinor     int64
	finalPriceMinor int64
}

func (f *fakeLedger) RecordSettlement(_ context.Context, positionID int64, outcome models.Outcome,
	payoutMinor, profitMinor, finalPriceMinor int64) error {

	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, ledgerCall{positionID, outcome, payoutMinor, profitMinor, finalPriceMinor})
	if f.failNext > 0 {
		f.failNext--
		if f.err != nil {
			return f.err
		}
		return errors.New("ledger unavailable")
	}
	return nil
}

func (f *fakeLedger) Balance(context.Context) (float64, error) {
	return 0, nil
}

func (f *fakeLedger) OpenPositions(context.Context) ([]models.OpenPosition, error) {
	return nil, nil
}

func (f *fakeLedger) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeLedger) lastCall() ledgerCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

func winResult() models.SettlementResult {
	return models.SettlementResult{
		Outcome:    models.OutcomeWin,
		Payout:     6.67,
		Profit:     5.67,
		FinalPrice: 100015.00,
	}
}

func newTestRecorder(l *fakeLedger, opts ...RecorderOption) *Recorder {
	return NewRecorder(l, zerolog.Nop(), opts...)
}

func TestRecordSettlementSuccess(t *testing.T) {
	fake := &fakeLedger{}
	rec := newTestRecorder(fake)

	if !rec.RecordSettlement(context.Background(), 1, winResult()) {
		t.Fatal("RecordSettlement returned false, want true")
	}

	if got := rec.State(1); got != models.SettlementConfirmed {
		t.Errorf("state = %s, want confirmed", got)
	}

	call := fake.lastCall()
	if call.payoutMinor != 667 {
		t.Errorf("payoutMinor = %d, want 667", call.payoutMinor)
	}
	if call.profitMinor != 567 {
		t.Errorf("profitMinor = %d, want 567", call.profitMinor)
	}
	if call.finalPriceMinor != 10001500 {
		t.Errorf("finalPriceMinor = %d, want 10001500", call.finalPriceMinor)
	}

	records := rec.Records()
	if len(records) != 1 || !records[0].Success {
		t.Fatalf("records = %+v, want one successful record", records)
	}
}

func TestRecordSettlementClampsNegativeProfit(t *testing.T) {
	fake := &fakeLedger{}
	rec := newTestRecorder(fake)

	loss := models.SettlementResult{
		Outcome:    models.OutcomeLoss,
		Payout:     0,
		Profit:     -3.00,
		FinalPrice: 50010.00,
	}

	if !rec.RecordSettlement(context.Background(), 2, loss) {
		t.Fatal("RecordSettlement returned false, want true")
	}

	call := fake.lastCall()
	if call.profitMinor != 0 {
		t.Errorf("profitMinor = %d, want 0 (clamped magnitude)", call.profitMinor)
	}
	if call.outcome != models.OutcomeLoss {
		t.Errorf("outcome = %s, want loss (sign carried separately)", call.outcome)
	}
}

func TestRecordSettlementIdempotent(t *testing.T) {
	fake := &fakeLedger{}
	rec := newTestRecorder(fake)

	if !rec.RecordSettlement(context.Background(), 3, winResult()) {
		t.Fatal("first submission failed")
	}
	if rec.RecordSettlement(context.Background(), 3, winResult()) {
		t.Fatal("second submission succeeded, want rejection")
	}

	if fake.callCount() != 1 {
		t.Errorf("ledger calls = %d, want 1", fake.callCount())
	}

	successes := 0
	for _, r := range rec.Records() {
		if r.Success {
			successes++
		}
	}
	if successes != 1 {
		t.Errorf("successful records = %d, want exactly 1", successes)
	}
}

func TestRecordSettlementValidation(t *testing.T) {
	tests := []struct {
		name       string
		positionID int64
		result     models.SettlementResult
	}{
		{"zero position id", 0, winResult()},
		{"negative position id", -5, winResult()},
		{"bad outcome", 10, models.SettlementResult{Outcome: "push", Payout: 1, Profit: 0, FinalPrice: 100}},
		{"negative payout", 11, models.SettlementResult{Outcome: models.OutcomeWin, Payout: -1, Profit: 0, FinalPrice: 100}},
		{"NaN profit", 12, models.SettlementResult{Outcome: models.OutcomeWin, Payout: 1, Profit: math.NaN(), FinalPrice: 100}},
		{"infinite profit", 13, models.SettlementResult{Outcome: models.OutcomeWin, Payout: 1, Profit: math.Inf(1), FinalPrice: 100}},
		{"zero final price", 14, models.SettlementResult{Outcome: models.OutcomeWin, Payout: 1, Profit: 0, FinalPrice: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeLedger{}
			rec := newTestRecorder(fake)

			if rec.RecordSettlement(context.Background(), tt.positionID, tt.result) {
				t.Error("RecordSettlement returned true, want false")
			}
			// Validation failures never reach the ledger.
			if fake.callCount() != 0 {
				t.Errorf("ledger calls = %d, want 0", fake.callCount())
			}
			if len(rec.Records()) != 0 {
				t.Errorf("records = %d, want 0 (no submission attempted)", len(rec.Records()))
			}
		})
	}
}

func TestRetryFailedSettlements(t *testing.T) {
	fake := &fakeLedger{failNext: 1}
	rec := newTestRecorder(fake)

	if rec.RecordSettlement(context.Background(), 20, winResult()) {
		t.Fatal("submission succeeded, want ledger failure")
	}
	if got := rec.State(20); got != models.SettlementFailed {
		t.Fatalf("state = %s, want failed", got)
	}

	// The failed attempt stays visible in the log until a retry confirms it.
	records := rec.RecordsFor(20)
	if len(records) != 1 || records[0].Success || records[0].Error == "" {
		t.Fatalf("records = %+v, want one failed record with error", records)
	}

	if got := rec.RetryFailedSettlements(context.Background()); got != 1 {
		t.Fatalf("RetryFailedSettlements = %d, want 1", got)
	}
	if got := rec.State(20); got != models.SettlementConfirmed {
		t.Errorf("state = %s, want confirmed after retry", got)
	}

	// A second retry pass has nothing left to do.
	if got := rec.RetryFailedSettlements(context.Background()); got != 0 {
		t.Errorf("second retry pass = %d, want 0", got)
	}
	if fake.callCount() != 2 {
		t.Errorf("ledger calls = %d, want 2", fake.callCount())
	}
}

func TestRetryPreservesFirstFailureOrder(t *testing.T) {
	fake := &fakeLedger{failNext: 3}
	rec := newTestRecorder(fake)

	for _, id := range []int64{31, 32, 33} {
		rec.RecordSettlement(context.Background(), id, winResult())
	}

	if got := rec.RetryFailedSettlements(context.Background()); got != 3 {
		t.Fatalf("RetryFailedSettlements = %d, want 3", got)
	}

	fake.mu.Lock()
	retried := fake.calls[3:]
	fake.mu.Unlock()

	want := []int64{31, 32, 33}
	for i, call := range retried {
		if call.positionID != want[i] {
			t.Errorf("retry order[%d] = %d, want %d", i, call.positionID, want[i])
		}
	}
}

func TestConcurrentSubmissionsSingleFlight(t *testing.T) {
	fake := &fakeLedger{}
	rec := newTestRecorder(fake)

	const goroutines = 32
	var wg sync.WaitGroup
	var successCount int64
	var successMu sync.Mutex

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if rec.RecordSettlement(context.Background(), 40, winResult()) {
				successMu.Lock()
				successCount++
				successMu.Unlock()
			}
		}()
	}
	wg.Wait()

	if successCount != 1 {
		t.Errorf("successful submissions = %d, want exactly 1", successCount)
	}
	if fake.callCount() != 1 {
		t.Errorf("ledger calls = %d, want exactly 1", fake.callCount())
	}

	confirmed := 0
	for _, r := range rec.Records() {
		if r.Success {
			confirmed++
		}
	}
	if confirmed != 1 {
		t.Errorf("confirmed records = %d, want exactly 1", confirmed)
	}
}

func TestMetricsDerivedFromLog(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	step := 0
	clock := func() time.Time {
		step++
		return base.Add(time.Duration(step) * time.Second)
	}

	fake := &fakeLedger{failNext: 1}
	rec := newTestRecorder(fake, WithClock(clock))

	rec.RecordSettlement(context.Background(), 50, winResult()) // fails
	rec.RecordSettlement(context.Background(), 51, winResult()) // succeeds
	rec.RetryFailedSettlements(context.Background())            // 50 succeeds

	m := rec.Metrics()
	if m.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", m.Attempts)
	}
	if m.Successes != 2 {
		t.Errorf("successes = %d, want 2", m.Successes)
	}
	if m.Failures != 1 {
		t.Errorf("failures = %d, want 1", m.Failures)
	}
	if math.Abs(m.SuccessRate-2.0/3.0) > 1e-9 {
		t.Errorf("successRate = %v, want 2/3", m.SuccessRate)
	}
	if !m.LastAttempt.Equal(base.Add(3 * time.Second)) {
		t.Errorf("lastAttempt = %v, want %v", m.LastAttempt, base.Add(3*time.Second))
	}
}

func TestListenersNotifiedPerAttempt(t *testing.T) {
	fake := &fakeLedger{failNext: 1}
	rec := newTestRecorder(fake)

	var mu sync.Mutex
	var seen []models.SettlementRecord
	rec.AddListener(func(r models.SettlementRecord) {
		mu.Lock()
		seen = append(seen, r)
		mu.Unlock()
	})

	rec.RecordSettlement(context.Background(), 60, winResult())
	rec.RetryFailedSettlements(context.Background())

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 {
		t.Fatalf("listener saw %d records, want 2", len(seen))
	}
	if seen[0].Success || !seen[1].Success {
		t.Errorf("listener order wrong: %+v", seen)
	}
}
