package ledger

import (
	"context"
	"sync"
)

// MemoryLedger is an in-memory Ledger used in tests and when no spreadsheet
// is configured. Insertion order is preserved the way a sheet preserves row
// order.
type MemoryLedger struct {
	mu   sync.Mutex
	keys []string
	rows map[string]*Row
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{rows: make(map[string]*Row)}
}

func (l *MemoryLedger) Find(_ context.Context, key string) (*Row, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	row, ok := l.rows[key]
	if !ok {
		return nil, nil
	}
	cp := *row
	return &cp, nil
}

func (l *MemoryLedger) Upsert(_ context.Context, key, status string, newRow Row) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if row, ok := l.rows[key]; ok {
		row.StatusLabel = status
		return nil
	}
	newRow.Key = key
	newRow.StatusLabel = status
	l.rows[key] = &newRow
	l.keys = append(l.keys, key)
	return nil
}

// Len reports the number of rows; rows are never deleted.
func (l *MemoryLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.keys)
}
