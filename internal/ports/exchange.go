package ports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"tradehook/internal/domain"
)

// OrderConfirmation holds the essential details returned after a market
// order has been accepted by the exchange.
type OrderConfirmation struct {
	OrderID       int64           // Exchange's order ID
	ClientOrderID string          // ID we supplied with the order
	Symbol        string          // Trading pair the order was placed on
	Side          domain.OrderSide
	Quantity      decimal.Decimal // Quantity requested
	Timestamp     time.Time       // Time the confirmation was generated
}

// ExchangeClient defines the interface for interacting with a cryptocurrency
// exchange. The executor treats it as a remote service with its own latency
// and failure modes; it never retries on the client's behalf.
type ExchangeClient interface {
	// GetCurrentPrice retrieves the last traded price for a symbol.
	GetCurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error)

	// GetQuantityIncrement retrieves the minimum base-quantity increment the
	// exchange accepts for a symbol (e.g., "0.0001"), as reported by the
	// exchange. The raw string is returned so the caller controls parsing.
	GetQuantityIncrement(ctx context.Context, symbol string) (string, error)

	// GetAvailableBalance retrieves the free balance for a currency (e.g., "USD").
	GetAvailableBalance(ctx context.Context, currency string) (decimal.Decimal, error)

	// SubmitMarketOrder places a market order for the given base quantity.
	SubmitMarketOrder(ctx context.Context, symbol string, side domain.OrderSide, quantity decimal.Decimal) (*OrderConfirmation, error)
}
