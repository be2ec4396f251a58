package risk

import (
	"fmt"

	"github.com/shopspring/decimal"

	"tradehook/internal/ports"
)

const (
	// DefaultPrecision is the fallback quantity precision used when the
	// exchange's increment for a symbol cannot be resolved.
	DefaultPrecision int32 = 8

	// currencyPrecision is the number of decimal places used when reporting
	// quote-currency amounts such as realized PnL.
	currencyPrecision int32 = 2
)

// Sizer computes risk-capped, precision-correct market order quantities and
// realized PnL. All arithmetic is exact decimal; binary floating point never
// touches a money value.
type Sizer struct {
	riskFraction decimal.Decimal
}

// NewSizer creates a Sizer spending at most riskFraction of the available
// quote balance per trade. The fraction must be strictly between 0 and 1.
func NewSizer(riskFraction decimal.Decimal) (*Sizer, error) {
	if riskFraction.Sign() <= 0 || riskFraction.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("%w: risk fraction %s must be in (0, 1)", ports.ErrConfigurationError, riskFraction)
	}
	return &Sizer{riskFraction: riskFraction}, nil
}

// OrderQuantity computes the base-currency quantity for a market BUY:
// budget = balance * riskFraction, quantity = budget / price truncated
// (never rounded up) to the given precision, so the notional value of the
// order can never exceed the budget. Fails with ErrZeroQuantity when the
// truncated quantity is not positive.
func (s *Sizer) OrderQuantity(balance, price decimal.Decimal, precision int32) (decimal.Decimal, error) {
	if price.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("invalid price %s for sizing", price)
	}

	budget := balance.Mul(s.riskFraction)
	// QuoRem truncates the quotient toward zero at the target precision with
	// no intermediate rounding, so a near-carry quotient can never round up
	// past the budget.
	qty, _ := budget.QuoRem(price, precision)
	if qty.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("%w: balance %s at price %s (precision %d)",
			ports.ErrZeroQuantity, balance, price, precision)
	}
	return qty, nil
}

// RealizedPNL computes (exit - entry) * quantity rounded to the currency
// precision. The rounded figure is what gets stored and reported.
func (s *Sizer) RealizedPNL(entryPrice, exitPrice, quantity decimal.Decimal) decimal.Decimal {
	return exitPrice.Sub(entryPrice).Mul(quantity).Round(currencyPrecision)
}

// PrecisionFromIncrement resolves the number of fractional decimal digits the
// exchange accepts for order quantities, given its reported minimum quantity
// increment (e.g. "0.0001" -> 4). Trailing zeros are insignificant: Binance
// reports step sizes like "0.00010000", whose economic increment is 0.0001.
func PrecisionFromIncrement(increment string) (int32, error) {
	d, err := decimal.NewFromString(increment)
	if err != nil {
		return 0, fmt.Errorf("unparseable quantity increment %q: %w", increment, err)
	}
	if d.Sign() <= 0 {
		return 0, fmt.Errorf("non-positive quantity increment %q", increment)
	}
	// Decimal.String trims trailing zeros, so counting fraction digits on the
	// normalized form yields the economic precision.
	s := d.String()
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			return int32(len(s) - i - 1), nil
		}
	}
	return 0, nil
}
