package journal

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rustyeddy/sigrun/signal"
)

// Schema creates the signals table. Timestamps are stored as Unix
// milliseconds to match the wire format of persisted records.
const Schema = `
CREATE TABLE IF NOT EXISTS signals (
	signal_id          TEXT NOT NULL,
	symbol             TEXT NOT NULL,
	strategy           TEXT NOT NULL,
	exchange           TEXT NOT NULL,
	position           TEXT NOT NULL,
	kind               TEXT NOT NULL,
	close_reason       TEXT NOT NULL DEFAULT '',
	cancel_reason      TEXT NOT NULL DEFAULT '',
	price_open         REAL NOT NULL,
	price_close        REAL NOT NULL,
	pnl_percent        REAL NOT NULL,
	partial_closed_pct REAL NOT NULL,
	scheduled_at       INTEGER NOT NULL,
	pending_at         INTEGER NOT NULL,
	closed_at          INTEGER NOT NULL,
	note               TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_signals_symbol_strategy
	ON signals (symbol, strategy, closed_at);
`

const insertStmt = `
INSERT INTO signals (
	signal_id, symbol, strategy, exchange, position, kind,
	close_reason, cancel_reason, price_open, price_close,
	pnl_percent, partial_closed_pct, scheduled_at, pending_at,
	closed_at, note
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// SQLite journals into a local database file.
type SQLite struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("journal: open sqlite: %w", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: create schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (j *SQLite) Append(rec Record) error {
	_, err := j.db.Exec(insertStmt,
		rec.SignalID, rec.Symbol, rec.StrategyName, rec.ExchangeName,
		string(rec.Position), string(rec.Kind),
		string(rec.CloseReason), string(rec.CancelReason),
		rec.PriceOpen, rec.PriceClose, rec.PnLPercent, rec.PartialClosedPct,
		rec.ScheduledAt.UnixMilli(), rec.PendingAt.UnixMilli(),
		rec.ClosedAt.UnixMilli(), rec.Note,
	)
	if err != nil {
		return fmt.Errorf("journal: insert: %w", err)
	}
	return nil
}

// Recent returns the latest n records for a (symbol, strategy), newest
// first.
func (j *SQLite) Recent(symbol, strategyName string, n int) ([]Record, error) {
	rows, err := j.db.Query(`
		SELECT signal_id, symbol, strategy, exchange, position, kind,
		       close_reason, cancel_reason, price_open, price_close,
		       pnl_percent, partial_closed_pct, scheduled_at, pending_at,
		       closed_at, note
		FROM signals
		WHERE symbol = ? AND strategy = ?
		ORDER BY closed_at DESC
		LIMIT ?`, symbol, strategyName, n)
	if err != nil {
		return nil, fmt.Errorf("journal: query: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var position, kind, closeReason, cancelReason string
		var scheduledAt, pendingAt, closedAt int64
		if err := rows.Scan(
			&rec.SignalID, &rec.Symbol, &rec.StrategyName, &rec.ExchangeName,
			&position, &kind, &closeReason, &cancelReason,
			&rec.PriceOpen, &rec.PriceClose, &rec.PnLPercent, &rec.PartialClosedPct,
			&scheduledAt, &pendingAt, &closedAt, &rec.Note,
		); err != nil {
			return nil, fmt.Errorf("journal: scan: %w", err)
		}
		rec.Position = signal.Position(position)
		rec.Kind = signal.Kind(kind)
		rec.CloseReason = signal.CloseReason(closeReason)
		rec.CancelReason = signal.CancelReason(cancelReason)
		rec.ScheduledAt = time.UnixMilli(scheduledAt).UTC()
		rec.PendingAt = time.UnixMilli(pendingAt).UTC()
		rec.ClosedAt = time.UnixMilli(closedAt).UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (j *SQLite) Close() error { return j.db.Close() }
