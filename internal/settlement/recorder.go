package settlement

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	apperrors "updown-core/internal/errors"
	"updown-core/internal/ledger"
	"updown-core/internal/logging"
	"updown-core/internal/models"
	"updown-core/internal/store"
	"updown-core/pkg/utils"
)

// RecordListener is notified after every submission attempt.
type RecordListener func(models.SettlementRecord)

// Recorder submits settlement results to the external ledger exactly once
// per position. Every attempt is appended to an in-memory record log; the
// log is the single source of truth for metrics and for retry ordering.
//
// Per-position state moves Pending -> Submitted -> Confirmed|Failed under
// one mutex, so two concurrent callers can never both submit a settlement
// for the same position.
type Recorder struct {
	ledger  ledger.Ledger
	logger  zerolog.Logger
	now     func() time.Time
	archive store.RecordStore

	mu          sync.Mutex
	states      map[int64]models.SettlementState
	pendingRes  map[int64]models.SettlementResult
	failedOrder []int64
	records     []models.SettlementRecord

	listenerMu sync.RWMutex
	listeners  []RecordListener
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithClock injects the time source used for record timestamps.
func WithClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) { r.now = now }
}

// WithArchive mirrors every record to a persistent archive. Archive
// failures are logged and do not affect settlement outcomes.
func WithArchive(archive store.RecordStore) RecorderOption {
	return func(r *Recorder) { r.archive = archive }
}

// NewRecorder creates a settlement recorder backed by the given ledger.
func NewRecorder(l ledger.Ledger, logger zerolog.Logger, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		ledger:     l,
		logger:     logging.WithComponent(logger, "settlement"),
		now:        time.Now,
		states:     make(map[int64]models.SettlementState),
		pendingRes: make(map[int64]models.SettlementResult),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AddListener registers a callback invoked after every submission attempt.
func (r *Recorder) AddListener(fn RecordListener) {
	r.listenerMu.Lock()
	defer r.listenerMu.Unlock()
	r.listeners = append(r.listeners, fn)
}

// State returns the settlement state for a position.
func (r *Recorder) State(positionID int64) models.SettlementState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok := r.states[positionID]; ok {
		return st
	}
	return models.SettlementPending
}

// RecordSettlement validates and submits a settlement result for a
// position. It returns true only when the ledger durably recorded the
// settlement. A position already Confirmed, or with a submission in
// flight, is rejected without a ledger call.
func (r *Recorder) RecordSettlement(ctx context.Context, positionID int64, result models.SettlementResult) bool {
	plog := logging.WithPosition(r.logger, positionID)

	if err := validateInputs(positionID, result); err != nil {
		plog.Warn().Err(err).Msg("Settlement rejected by validation")
		return false
	}

	// Atomic state gate: only Pending or Failed may enter Submitted.
	r.mu.Lock()
	switch r.states[positionID] {
	case models.SettlementConfirmed:
		r.mu.Unlock()
		plog.Warn().Err(apperrors.ErrAlreadyConfirmed).Msg("Duplicate settlement submission rejected")
		return false
	case models.SettlementSubmitted:
		r.mu.Unlock()
		plog.Warn().Err(apperrors.ErrSubmissionInFlight).Msg("Concurrent settlement submission rejected")
		return false
	}
	r.states[positionID] = models.SettlementSubmitted
	r.pendingRes[positionID] = result
	r.mu.Unlock()

	return r.submit(ctx, positionID, result)
}

// submit performs the ledger call for a position already gated into the
// Submitted state, then records the attempt.
func (r *Recorder) submit(ctx context.Context, positionID int64, result models.SettlementResult) bool {
	payoutMinor := utils.ToMinorUnits(result.Payout)
	finalPriceMinor := utils.ToMinorUnits(result.FinalPrice)

	// The ledger's profit field is a non-negative magnitude; the sign is
	// carried by the outcome.
	profit := result.Profit
	if profit < 0 {
		profit = 0
	}
	profitMinor := utils.ToMinorUnits(profit)

	err := r.ledger.RecordSettlement(ctx, positionID, result.Outcome, payoutMinor, profitMinor, finalPriceMinor)

	rec := models.SettlementRecord{
		PositionID:  positionID,
		Result:      result,
		SubmittedAt: r.now(),
		Success:     err == nil,
	}
	if err != nil {
		rec.Error = err.Error()
	}

	r.mu.Lock()
	r.records = append(r.records, rec)
	if err == nil {
		r.states[positionID] = models.SettlementConfirmed
		delete(r.pendingRes, positionID)
		r.removeFailedLocked(positionID)
	} else {
		r.states[positionID] = models.SettlementFailed
		r.addFailedLocked(positionID)
	}
	r.mu.Unlock()

	logging.LogSettlement(r.logger, positionID, string(result.Outcome), result.Payout, err == nil)
	r.archiveRecord(rec)
	r.notify(rec)

	return err == nil
}

// RetryFailedSettlements re-attempts every position currently in the
// Failed state, in first-failure order. Retries for a position stop the
// moment one attempt succeeds. Returns the number of positions confirmed
// by this pass.
func (r *Recorder) RetryFailedSettlements(ctx context.Context) int {
	r.mu.Lock()
	pending := make([]int64, len(r.failedOrder))
	copy(pending, r.failedOrder)
	r.mu.Unlock()

	confirmed := 0
	for _, positionID := range pending {
		r.mu.Lock()
		if r.states[positionID] != models.SettlementFailed {
			r.mu.Unlock()
			continue
		}
		result, ok := r.pendingRes[positionID]
		if !ok {
			r.mu.Unlock()
			continue
		}
		r.states[positionID] = models.SettlementSubmitted
		r.mu.Unlock()

		if r.submit(ctx, positionID, result) {
			confirmed++
		}
	}

	if confirmed > 0 {
		r.logger.Info().Int("confirmed", confirmed).Msg("Failed settlements retried")
	}
	return confirmed
}

// Records returns a copy of the full submission log, oldest first.
func (r *Recorder) Records() []models.SettlementRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.SettlementRecord, len(r.records))
	copy(out, r.records)
	return out
}

// RecordsFor returns the submission attempts for one position.
func (r *Recorder) RecordsFor(positionID int64) []models.SettlementRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.SettlementRecord
	for _, rec := range r.records {
		if rec.PositionID == positionID {
			out = append(out, rec)
		}
	}
	return out
}

// Metrics summarizes the recorder's submission history.
type Metrics struct {
	Attempts    int
	Successes   int
	Failures    int
	SuccessRate float64
	LastAttempt time.Time
}

// Metrics recomputes metrics from the record log on every call. There are
// no parallel counters to drift out of sync.
func (r *Recorder) Metrics() Metrics {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := Metrics{Attempts: len(r.records)}
	for _, rec := range r.records {
		if rec.Success {
			m.Successes++
		} else {
			m.Failures++
		}
		if rec.SubmittedAt.After(m.LastAttempt) {
			m.LastAttempt = rec.SubmittedAt
		}
	}
	if m.Attempts > 0 {
		m.SuccessRate = float64(m.Successes) / float64(m.Attempts)
	}
	return m
}

func (r *Recorder) addFailedLocked(positionID int64) {
	for _, id := range r.failedOrder {
		if id == positionID {
			return
		}
	}
	r.failedOrder = append(r.failedOrder, positionID)
}

func (r *Recorder) removeFailedLocked(positionID int64) {
	for i, id := range r.failedOrder {
		if id == positionID {
			r.failedOrder = append(r.failedOrder[:i], r.failedOrder[i+1:]...)
			return
		}
	}
}

func (r *Recorder) archiveRecord(rec models.SettlementRecord) {
	if r.archive == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.archive.AppendRecord(ctx, rec); err != nil {
		r.logger.Warn().Err(err).
			Int64("position_id", rec.PositionID).
			Msg("Settlement archive write failed")
	}
}

func (r *Recorder) notify(rec models.SettlementRecord) {
	r.listenerMu.RLock()
	listeners := make([]RecordListener, len(r.listeners))
	copy(listeners, r.listeners)
	r.listenerMu.RUnlock()

	for _, fn := range listeners {
		fn(rec)
	}
}

// validateInputs rejects malformed settlement inputs before any ledger
// call. Validation failures are terminal, never retried.
func validateInputs(positionID int64, result models.SettlementResult) error {
	if positionID <= 0 {
		return apperrors.NewValidationError("positionId", "must be a positive integer", apperrors.ErrInvalidSettlement)
	}
	if !result.Outcome.Valid() {
		return apperrors.NewValidationError("outcome", "must be win, loss, or tie", apperrors.ErrInvalidSettlement)
	}
	if result.Payout < 0 {
		return apperrors.NewValidationError("payout", "must be non-negative", apperrors.ErrInvalidSettlement)
	}
	if math.IsNaN(result.Profit) || math.IsInf(result.Profit, 0) {
		return apperrors.NewValidationError("profit", "must be finite", apperrors.ErrInvalidSettlement)
	}
	if result.FinalPrice <= 0 {
		return apperrors.NewValidationError("finalPrice", "must be positive", apperrors.ErrInvalidSettlement)
	}
	return nil
}
