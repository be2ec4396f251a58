package domain

import (
	"fmt"
	"strings"
)

// Signal is an inbound trading instruction parsed from an alert body.
type Signal struct {
	Action OrderSide // BUY or SELL
	Symbol string    // Trading pair in BASE-QUOTE form (e.g., "BTC-USD")
}

// ErrMalformedSignal and ErrUnknownAction are declared here rather than in
// ports because signal parsing is pure domain logic with no adapter involved.
var (
	ErrMalformedSignal = fmt.Errorf("malformed signal")
	ErrUnknownAction   = fmt.Errorf("unknown action")
)

// ParseSignal parses a raw alert body of the form "ACTION SYMBOL"
// (e.g., "BUY BTC-USD"). Input is trimmed and upper-cased first, matching
// what alerting services send. The symbol must be a single BASE-QUOTE pair.
func ParseSignal(raw string) (Signal, error) {
	fields := strings.Fields(strings.ToUpper(strings.TrimSpace(raw)))
	if len(fields) != 2 {
		return Signal{}, fmt.Errorf("%w: expected \"ACTION SYMBOL\", got %d fields", ErrMalformedSignal, len(fields))
	}

	action, symbol := fields[0], fields[1]

	base, quote, ok := strings.Cut(symbol, "-")
	if !ok || base == "" || quote == "" || strings.Contains(quote, "-") {
		return Signal{}, fmt.Errorf("%w: symbol %q is not in BASE-QUOTE form", ErrMalformedSignal, symbol)
	}

	switch OrderSide(action) {
	case Buy, Sell:
		return Signal{Action: OrderSide(action), Symbol: symbol}, nil
	default:
		return Signal{}, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
}

// BaseCurrency returns the base half of the signal's trading pair.
func (s Signal) BaseCurrency() string {
	base, _, _ := strings.Cut(s.Symbol, "-")
	return base
}

// QuoteCurrency returns the quote half of the signal's trading pair.
func (s Signal) QuoteCurrency() string {
	_, quote, _ := strings.Cut(s.Symbol, "-")
	return quote
}
