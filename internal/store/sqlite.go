package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"bybit-sentinel/internal/models"
)

// SQLiteStore implements SignalStore and CooldownStore on SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var (
	_ SignalStore   = (*SQLiteStore)(nil)
	_ CooldownStore = (*SQLiteStore)(nil)
)

// NewSQLiteStore opens (creating if needed) the database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool for concurrent access
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
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
	-- Emitted signals: flattened columns for listing plus the full
	-- payload for exact reconstruction
	CREATE TABLE IF NOT EXISTS signals (
		id TEXT PRIMARY KEY,
		stage TEXT NOT NULL,
		symbol TEXT NOT NULL,
		timeframe TEXT NOT NULL,
		side TEXT NOT NULL,
		score REAL NOT NULL,
		breakdown TEXT NOT NULL,
		entry REAL NOT NULL,
		stop_loss REAL NOT NULL,
		take_profit_1 REAL NOT NULL,
		take_profit_2 REAL,
		risk_reward REAL NOT NULL,
		zone_key TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_signals_symbol_tf ON signals(symbol, timeframe);
	CREATE INDEX IF NOT EXISTS idx_signals_created_at ON signals(created_at);

	-- Per-key signal cooldowns; key is symbol|tf|side|zoneKey
	CREATE TABLE IF NOT EXISTS cooldowns (
		key TEXT PRIMARY KEY,
		symbol TEXT NOT NULL,
		timeframe TEXT NOT NULL,
		side TEXT NOT NULL,
		zone_key TEXT NOT NULL,
		expires_at DATETIME NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_cooldowns_expires_at ON cooldowns(expires_at);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveSignal persists one signal. The full payload is stored as JSON
// next to the flattened columns.
func (s *SQLiteStore) SaveSignal(ctx context.Context, sig models.Signal) error {
	payload, err := json.Marshal(sig)
	if err != nil {
		return fmt.Errorf("failed to marshal signal payload: %w", err)
	}
	breakdown, err := json.Marshal(sig.Breakdown)
	if err != nil {
		return fmt.Errorf("failed to marshal score breakdown: %w", err)
	}

	var tp2 sql.NullFloat64
	if sig.Levels.TakeProfit2 != 0 {
		tp2 = sql.NullFloat64{Float64: sig.Levels.TakeProfit2, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO signals
		(id, stage, symbol, timeframe, side, score, breakdown, entry, stop_loss,
		 take_profit_1, take_profit_2, risk_reward, zone_key, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		sig.ID, string(sig.Stage), sig.Symbol, string(sig.Timeframe), string(sig.Side),
		sig.Score, string(breakdown), sig.Levels.Entry, sig.Levels.StopLoss,
		sig.Levels.TakeProfit1, tp2, sig.Levels.RiskReward1, sig.Setup.ZoneKey(),
		string(payload), sig.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert signal: %w", err)
	}
	return nil
}

// ListSignals returns signals matching the filter, newest first.
func (s *SQLiteStore) ListSignals(ctx context.Context, filter SignalFilter) ([]models.Signal, error) {
	query := `SELECT payload FROM signals`
	var conditions []string
	var args []interface{}

	if filter.Symbol != "" {
		conditions = append(conditions, "symbol = ?")
		args = append(args, filter.Symbol)
	}
	if filter.Timeframe != "" {
		conditions = append(conditions, "timeframe = ?")
		args = append(args, string(filter.Timeframe))
	}
	if filter.Side != "" {
		conditions = append(conditions, "side = ?")
		args = append(args, string(filter.Side))
	}
	if filter.Stage != "" {
		conditions = append(conditions, "stage = ?")
		args = append(args, string(filter.Stage))
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, filter.Since.UTC())
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query signals: %w", err)
	}
	defer rows.Close()

	var signals []models.Signal
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan signal: %w", err)
		}
		var sig models.Signal
		if err := json.Unmarshal([]byte(payload), &sig); err != nil {
			return nil, fmt.Errorf("failed to unmarshal signal payload: %w", err)
		}
		signals = append(signals, sig)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating signals: %w", err)
	}
	return signals, nil
}

// IsOnCooldown reports whether a live cooldown entry exists for the key.
func (s *SQLiteStore) IsOnCooldown(ctx context.Context, symbol string, tf models.Timeframe, side models.Side, zoneKey string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM cooldowns WHERE key = ? AND expires_at > ?
	`, CooldownKey(symbol, tf, side, zoneKey), time.Now().UTC()).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to query cooldown: %w", err)
	}
	return count > 0, nil
}

// AddCooldown arms (or refreshes) the cooldown for the key. The
// primary key keeps at most one live entry per key.
func (s *SQLiteStore) AddCooldown(ctx context.Context, symbol string, tf models.Timeframe, side models.Side, zoneKey string, minutes int) error {
	expires := time.Now().UTC().Add(time.Duration(minutes) * time.Minute)
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO cooldowns (key, symbol, timeframe, side, zone_key, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, CooldownKey(symbol, tf, side, zoneKey), symbol, string(tf), string(side), zoneKey, expires)
	if err != nil {
		return fmt.Errorf("failed to insert cooldown: %w", err)
	}
	return nil
}

// CleanupExpired removes dead cooldown entries and returns how many
// were deleted.
func (s *SQLiteStore) CleanupExpired(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM cooldowns WHERE expires_at <= ?
	`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired cooldowns: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted cooldowns: %w", err)
	}
	return int(n), nil
}
