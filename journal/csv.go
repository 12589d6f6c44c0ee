package journal

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"
)

var csvHeader = []string{
	"signal_id", "symbol", "strategy", "exchange", "position", "kind",
	"close_reason", "cancel_reason", "price_open", "price_close",
	"pnl_percent", "partial_closed_pct", "scheduled_at", "pending_at",
	"closed_at", "note",
}

// CSV appends records to a comma-separated file, writing the header when
// the file starts empty.
type CSV struct {
	mu   sync.Mutex
	file *os.File
	w    *csv.Writer
}

func OpenCSV(path string) (*CSV, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("journal: open csv: %w", err)
	}
	j := &CSV{file: f, w: csv.NewWriter(f)}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("journal: stat csv: %w", err)
	}
	if info.Size() == 0 {
		if err := j.w.Write(csvHeader); err != nil {
			f.Close()
			return nil, fmt.Errorf("journal: write csv header: %w", err)
		}
		j.w.Flush()
	}
	return j, nil
}

func (j *CSV) Append(rec Record) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	row := []string{
		rec.SignalID, rec.Symbol, rec.StrategyName, rec.ExchangeName,
		string(rec.Position), string(rec.Kind),
		string(rec.CloseReason), string(rec.CancelReason),
		formatFloat(rec.PriceOpen), formatFloat(rec.PriceClose),
		formatFloat(rec.PnLPercent), formatFloat(rec.PartialClosedPct),
		rec.ScheduledAt.UTC().Format(time.RFC3339Nano),
		rec.PendingAt.UTC().Format(time.RFC3339Nano),
		rec.ClosedAt.UTC().Format(time.RFC3339Nano),
		rec.Note,
	}
	if err := j.w.Write(row); err != nil {
		return fmt.Errorf("journal: write csv row: %w", err)
	}
	j.w.Flush()
	return j.w.Error()
}

func (j *CSV) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.w.Flush()
	if err := j.w.Error(); err != nil {
		j.file.Close()
		return err
	}
	return j.file.Close()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
