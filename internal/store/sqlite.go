// Package store provides data persistence implementations.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"updown-core/internal/models"
)

// RecordStore archives settlement records for post-hoc inspection.
// The recorder's in-memory log remains the idempotency authority;
// this archive is diagnostics only.
type RecordStore interface {
	AppendRecord(ctx context.Context, rec models.SettlementRecord) error
	RecordsForPosition(ctx context.Context, positionID int64) ([]models.SettlementRecord, error)
	RecentRecords(ctx context.Context, limit int) ([]models.SettlementRecord, error)
	Close() error
}

// SQLiteStore implements RecordStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-based settlement archive.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Settlement submission attempts, append-only
	CREATE TABLE IF NOT EXISTS settlements (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		position_id INTEGER NOT NULL,
		outcome TEXT NOT NULL,
		payout REAL NOT NULL,
		profit REAL NOT NULL,
		final_price REAL NOT NULL,
		submitted_at DATETIME NOT NULL,
		success INTEGER NOT NULL,
		error TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_settlements_position ON settlements(position_id);
	CREATE INDEX IF NOT EXISTS idx_settlements_submitted ON settlements(submitted_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// AppendRecord appends one submission attempt to the archive.
func (s *SQLiteStore) AppendRecord(ctx context.Context, rec models.SettlementRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settlements (position_id, outcome, payout, profit, final_price, submitted_at, success, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.PositionID,
		string(rec.Result.Outcome),
		rec.Result.Payout,
		rec.Result.Profit,
		rec.Result.FinalPrice,
		rec.SubmittedAt.UTC(),
		boolToInt(rec.Success),
		rec.Error,
	)
	if err != nil {
		return fmt.Errorf("inserting settlement record: %w", err)
	}
	return nil
}

// RecordsForPosition returns all archived attempts for a position,
// oldest first.
func (s *SQLiteStore) RecordsForPosition(ctx context.Context, positionID int64) ([]models.SettlementRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT position_id, outcome, payout, profit, final_price, submitted_at, success, error
		FROM settlements
		WHERE position_id = ?
		ORDER BY id ASC`,
		positionID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying settlement records: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// RecentRecords returns the most recent archived attempts, newest first.
func (s *SQLiteStore) RecentRecords(ctx context.Context, limit int) ([]models.SettlementRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT position_id, outcome, payout, profit, final_price, submitted_at, success, error
		FROM settlements
		ORDER BY id DESC
		LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying settlement records: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func scanRecords(rows *sql.Rows) ([]models.SettlementRecord, error) {
	var records []models.SettlementRecord
	for rows.Next() {
		var rec models.SettlementRecord
		var outcome string
		var success int
		var errText sql.NullString

		if err := rows.Scan(
			&rec.PositionID,
			&outcome,
			&rec.Result.Payout,
			&rec.Result.Profit,
			&rec.Result.FinalPrice,
			&rec.SubmittedAt,
			&success,
			&errText,
		); err != nil {
			return nil, fmt.Errorf("scanning settlement record: %w", err)
		}

		rec.Result.Outcome = models.Outcome(outcome)
		rec.Success = success != 0
		rec.Error = errText.String
		records = append(records, rec)
	}
	return records, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ RecordStore = (*SQLiteStore)(nil)
