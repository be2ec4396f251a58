package ports

import (
	"context"

	"tradehook/internal/domain"
)

// PositionLedger is the durable store of currently open positions, keyed by
// symbol. The signal processor is its only writer.
type PositionLedger interface {
	// FindOpenBySymbol retrieves the open position for a symbol, if any.
	// Returns nil, nil when no position is recorded. Returns ErrCorruptRecord
	// when a record exists but cannot be parsed into its expected fields.
	FindOpenBySymbol(ctx context.Context, symbol string) (*domain.Position, error)

	// Insert durably persists a new position before returning.
	// Fails with ErrDuplicateSymbol if a record for the symbol already exists.
	Insert(ctx context.Context, pos *domain.Position) error

	// Remove durably deletes the record(s) for a symbol before returning.
	// Reports removed=false (and no error) when no record was present.
	Remove(ctx context.Context, symbol string) (removed bool, err error)

	// Close releases any resources held by the store.
	Close() error
}

// TradeLog is the append-only record of closed trades. Write-only from the
// executor's perspective; records are never updated or deleted.
type TradeLog interface {
	// Append durably records a closed trade.
	Append(ctx context.Context, trade *domain.ClosedTrade) error

	// Close releases any resources held by the log.
	Close() error
}
