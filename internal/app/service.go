package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tradehook/internal/domain"
	"tradehook/internal/ports"
	"tradehook/internal/risk"
)

// Status classifies the outcome of a processed signal for the caller.
type Status string

const (
	StatusExecuted      Status = "executed"       // Order placed, state updated
	StatusAlreadyOpen   Status = "already_open"   // Benign duplicate BUY
	StatusNotOpen       Status = "not_open"       // Benign duplicate/stray SELL
	StatusBadFormat     Status = "bad_format"     // Unparseable or unknown signal
	StatusInternalError Status = "internal_error" // Everything else; logged with context
)

// Result is what the signal processor reports back to the inbound-signal
// collaborator (the webhook handler).
type Result struct {
	Status  Status
	Message string
}

// SignalProcessor is the state machine that turns parsed BUY/SELL signals
// into exchange orders and ledger/history mutations. It is the only writer
// to the position ledger and the trade history log.
//
// All transitions for a symbol are serialized by a per-symbol mutex, so two
// concurrent BUY signals for one symbol cannot both pass the no-open-position
// check, and a ledger remove cannot race a concurrent insert. Distinct
// symbols proceed independently.
type SignalProcessor struct {
	logger        ports.Logger
	exchange      ports.ExchangeClient
	ledger        ports.PositionLedger
	history       ports.TradeLog
	sizer         *risk.Sizer
	quoteCurrency string

	mu          sync.Mutex // guards symbolLocks
	symbolLocks map[string]*sync.Mutex
}

// Config holds the dependencies and parameters of the signal processor.
type Config struct {
	Logger        ports.Logger
	Exchange      ports.ExchangeClient
	Ledger        ports.PositionLedger
	History       ports.TradeLog
	RiskFraction  decimal.Decimal // Fraction of the quote balance spent per BUY
	QuoteCurrency string          // Balance currency (e.g., "USD")
}

// NewSignalProcessor creates the signal processor.
func NewSignalProcessor(cfg Config) (*SignalProcessor, error) {
	if cfg.Logger == nil || cfg.Exchange == nil || cfg.Ledger == nil || cfg.History == nil {
		return nil, fmt.Errorf("missing required dependencies for SignalProcessor")
	}
	if cfg.QuoteCurrency == "" {
		return nil, fmt.Errorf("%w: quote currency must be set", ports.ErrConfigurationError)
	}
	sizer, err := risk.NewSizer(cfg.RiskFraction)
	if err != nil {
		return nil, err
	}
	return &SignalProcessor{
		logger:        cfg.Logger,
		exchange:      cfg.Exchange,
		ledger:        cfg.Ledger,
		history:       cfg.History,
		sizer:         sizer,
		quoteCurrency: cfg.QuoteCurrency,
		symbolLocks:   make(map[string]*sync.Mutex),
	}, nil
}

// symbolLock returns the mutex serializing transitions for one symbol.
func (p *SignalProcessor) symbolLock(symbol string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.symbolLocks[symbol]
	if !ok {
		l = &sync.Mutex{}
		p.symbolLocks[symbol] = l
	}
	return l
}

// ProcessSignal runs one FLAT->OPEN or OPEN->FLAT transition. A transition
// is complete only after both the exchange order and the store mutation
// succeed; no intermediate state is persisted.
func (p *SignalProcessor) ProcessSignal(ctx context.Context, sig domain.Signal) Result {
	switch sig.Action {
	case domain.Buy, domain.Sell:
	default:
		// ParseSignal rejects these upstream; guard anyway so an unknown
		// action can never reach the exchange or the ledger.
		p.logger.Error(ctx, domain.ErrUnknownAction, "Unknown action received", map[string]interface{}{"action": string(sig.Action)})
		return Result{Status: StatusBadFormat, Message: "Unknown command"}
	}

	lock := p.symbolLock(sig.Symbol)
	lock.Lock()
	defer lock.Unlock()

	if sig.Action == domain.Buy {
		return p.openPosition(ctx, sig)
	}
	return p.closePosition(ctx, sig)
}

// openPosition handles FLAT --BUY--> OPEN.
func (p *SignalProcessor) openPosition(ctx context.Context, sig domain.Signal) Result {
	existing, err := p.ledger.FindOpenBySymbol(ctx, sig.Symbol)
	if err != nil {
		p.logger.Error(ctx, err, "Ledger lookup failed on BUY", map[string]interface{}{"symbol": sig.Symbol})
		return Result{Status: StatusInternalError, Message: "Ledger lookup failed"}
	}
	if existing != nil {
		// The caller's goal (having a position) is already satisfied.
		p.logger.Info(ctx, "Duplicate BUY ignored, position already open", map[string]interface{}{
			"symbol": sig.Symbol, "positionID": existing.ID,
		})
		return Result{Status: StatusAlreadyOpen, Message: "Position already open"}
	}

	price, err := p.exchange.GetCurrentPrice(ctx, sig.Symbol)
	if err != nil {
		p.logger.Error(ctx, err, "Price lookup failed on BUY", map[string]interface{}{"symbol": sig.Symbol})
		return Result{Status: StatusInternalError, Message: "Failed to fetch price"}
	}

	balance, err := p.exchange.GetAvailableBalance(ctx, p.quoteCurrency)
	if err != nil {
		p.logger.Error(ctx, err, "Balance lookup failed on BUY", map[string]interface{}{"currency": p.quoteCurrency})
		return Result{Status: StatusInternalError, Message: fmt.Sprintf("No %s balance found", p.quoteCurrency)}
	}

	precision := p.resolvePrecision(ctx, sig.Symbol)

	qty, err := p.sizer.OrderQuantity(balance, price, precision)
	if err != nil {
		p.logger.Error(ctx, err, "Order sizing failed on BUY", map[string]interface{}{
			"symbol": sig.Symbol, "balance": balance.String(), "price": price.String(), "precision": precision,
		})
		return Result{Status: StatusInternalError, Message: "Order sizing failed"}
	}
	p.logger.Debug(ctx, "Calculated BUY quantity", map[string]interface{}{"symbol": sig.Symbol, "quantity": qty.String()})

	conf, err := p.exchange.SubmitMarketOrder(ctx, sig.Symbol, domain.Buy, qty)
	if err != nil {
		// A failed submission must not mutate the ledger.
		p.logger.Error(ctx, err, "Market BUY failed", map[string]interface{}{"symbol": sig.Symbol, "quantity": qty.String()})
		return Result{Status: StatusInternalError, Message: "Order placement failed"}
	}

	pos := &domain.Position{
		ID:         newPositionID(),
		Symbol:     sig.Symbol,
		Quantity:   qty,
		EntryPrice: price,
		OpenedAt:   time.Now().UTC(),
	}
	if err := p.ledger.Insert(ctx, pos); err != nil {
		// The order exists on the exchange but not locally. Reconciliation is
		// out of scope; surface it loudly for the operator.
		p.logger.Error(ctx, err, "Order submitted but ledger write failed; exchange and local state diverge", map[string]interface{}{
			"symbol": sig.Symbol, "positionID": pos.ID, "orderID": conf.OrderID, "quantity": qty.String(), "entryPrice": price.String(),
		})
		return Result{Status: StatusInternalError, Message: "Ledger write failed after order submission"}
	}

	p.logger.Info(ctx, "BUY executed", map[string]interface{}{
		"symbol": sig.Symbol, "positionID": pos.ID, "quantity": qty.String(), "price": price.String(), "orderID": conf.OrderID,
	})
	return Result{Status: StatusExecuted, Message: fmt.Sprintf("BUY executed: %s - %s @ %s", sig.Symbol, qty, price)}
}

// closePosition handles OPEN --SELL--> FLAT.
func (p *SignalProcessor) closePosition(ctx context.Context, sig domain.Signal) Result {
	pos, err := p.ledger.FindOpenBySymbol(ctx, sig.Symbol)
	if err != nil {
		// Includes ErrCorruptRecord: without a trusted entry price and
		// quantity the close cannot proceed. The ledger stays untouched.
		p.logger.Error(ctx, err, "Ledger lookup failed on SELL", map[string]interface{}{"symbol": sig.Symbol})
		return Result{Status: StatusInternalError, Message: "Bad ledger record"}
	}
	if pos == nil {
		p.logger.Info(ctx, "Stray SELL ignored, no open position", map[string]interface{}{"symbol": sig.Symbol})
		return Result{Status: StatusNotOpen, Message: "No open position"}
	}

	price, err := p.exchange.GetCurrentPrice(ctx, sig.Symbol)
	if err != nil {
		p.logger.Error(ctx, err, "Price lookup failed on SELL", map[string]interface{}{"symbol": sig.Symbol})
		return Result{Status: StatusInternalError, Message: "Failed to fetch price"}
	}

	conf, err := p.exchange.SubmitMarketOrder(ctx, sig.Symbol, domain.Sell, pos.Quantity)
	if err != nil {
		p.logger.Error(ctx, err, "Market SELL failed", map[string]interface{}{"symbol": sig.Symbol, "quantity": pos.Quantity.String()})
		return Result{Status: StatusInternalError, Message: "Order placement failed"}
	}

	pnl := p.sizer.RealizedPNL(pos.EntryPrice, price, pos.Quantity)
	trade := &domain.ClosedTrade{
		ID:        pos.ID,
		Symbol:    pos.Symbol,
		Quantity:  pos.Quantity,
		ExitPrice: price,
		PNL:       pnl,
		ClosedAt:  time.Now().UTC(),
	}

	// History first, ledger second: a crash in between leaves a phantom
	// still-open ledger entry rather than a silently lost trade.
	if err := p.history.Append(ctx, trade); err != nil {
		p.logger.Error(ctx, err, "Order submitted but trade history write failed; exchange and local state diverge", map[string]interface{}{
			"symbol": sig.Symbol, "positionID": pos.ID, "orderID": conf.OrderID, "pnl": pnl.String(),
		})
		return Result{Status: StatusInternalError, Message: "History write failed after order submission"}
	}
	removed, err := p.ledger.Remove(ctx, sig.Symbol)
	if err != nil {
		p.logger.Error(ctx, err, "Trade recorded but ledger removal failed; position will appear open until removed", map[string]interface{}{
			"symbol": sig.Symbol, "positionID": pos.ID, "orderID": conf.OrderID,
		})
		return Result{Status: StatusInternalError, Message: "Ledger removal failed after order submission"}
	}
	if !removed {
		// Cannot happen while the per-symbol lock is held; worth a warning
		// if it ever does.
		p.logger.Warn(ctx, "Ledger removal found nothing to remove", map[string]interface{}{"symbol": sig.Symbol})
	}

	p.logger.Info(ctx, "SELL executed", map[string]interface{}{
		"symbol": sig.Symbol, "positionID": pos.ID, "quantity": pos.Quantity.String(),
		"price": price.String(), "pnl": pnl.String(), "orderID": conf.OrderID,
	})
	return Result{Status: StatusExecuted, Message: fmt.Sprintf("SELL executed: %s - %s @ %s (P/L: %s)", sig.Symbol, pos.Quantity, price, pnl)}
}

// resolvePrecision asks the exchange for the symbol's quantity increment and
// derives the fractional digit count. Lookup or parse failure falls back to
// risk.DefaultPrecision; it never aborts order placement.
func (p *SignalProcessor) resolvePrecision(ctx context.Context, symbol string) int32 {
	increment, err := p.exchange.GetQuantityIncrement(ctx, symbol)
	if err != nil {
		p.logger.Error(ctx, err, "Failed to fetch quantity increment, using fallback precision", map[string]interface{}{
			"symbol": symbol, "fallback": risk.DefaultPrecision,
		})
		return risk.DefaultPrecision
	}
	precision, err := risk.PrecisionFromIncrement(increment)
	if err != nil {
		p.logger.Error(ctx, err, "Failed to resolve precision from increment, using fallback", map[string]interface{}{
			"symbol": symbol, "increment": increment, "fallback": risk.DefaultPrecision,
		})
		return risk.DefaultPrecision
	}
	p.logger.Debug(ctx, "Resolved quantity precision", map[string]interface{}{"symbol": symbol, "precision": precision})
	return precision
}

// newPositionID returns a short opaque identifier, the 8-char prefix of a
// UUID. Short IDs keep the ledger lines auditable by eye.
func newPositionID() string {
	return uuid.NewString()[:8]
}
