// internal/types/interfaces.go
package types

import "context"

// HistoryStore is an append-only per-thread turn log.
type HistoryStore interface {
	Append(ctx context.Context, turn *Turn) error
	Tail(ctx context.Context, thread ThreadID, limit int) ([]*Turn, error)
	Count(ctx context.Context, thread ThreadID) (int64, error)
}
