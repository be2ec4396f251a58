package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ClosedTrade represents a completed round trip, recorded once when the
// position is closed. Records are append-only and never updated.
type ClosedTrade struct {
	ID        string          // Carried over from the Position this trade closed
	Symbol    string          // Trading pair
	Quantity  decimal.Decimal // Amount of base currency sold
	ExitPrice decimal.Decimal // Price at time of sale
	PNL       decimal.Decimal // Realized profit/loss, rounded to 2 places
	ClosedAt  time.Time       // Timestamp of the closing order
}
