package ledger

import "context"

// Row is one ledger line for a correlation key. Rows are appended on first
// grant and only their status cell changes afterwards; cancellation is a
// status value, never a row removal.
type Row struct {
	Key         string
	DisplayName string
	Contact     string
	DateStarted string
	PlanLabel   string
	StatusLabel string
}

// Ledger is the key-indexed external tabular store the engine mirrors
// subscriber status into. It is a reporting mirror, not the source of truth
// for access: callers log Upsert failures and carry on.
type Ledger interface {
	// Find returns the row for key, or nil when absent.
	Find(ctx context.Context, key string) (*Row, error)
	// Upsert mutates only the status cell of an existing row, or appends
	// newRow in full when no row for key exists.
	Upsert(ctx context.Context, key, status string, newRow Row) error
}
