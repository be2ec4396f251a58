package binanceclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tradehook/internal/domain"
	"tradehook/internal/ports"
)

const (
	baseURLProduction = "https://api.binance.com"
	baseURLTestnet    = "https://testnet.binance.vision"
)

// Client implements the ports.ExchangeClient interface using the go-binance
// spot API.
type Client struct {
	spotClient *binance.Client
	logger     ports.Logger
}

// Config holds configuration specific to the Binance client adapter.
type Config struct {
	APIKey     string
	SecretKey  string
	UseTestnet bool
	Logger     ports.Logger
}

// New creates a new Binance client adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Binance client")
	}
	if cfg.APIKey == "" || cfg.SecretKey == "" {
		cfg.Logger.Warn(context.Background(), "APIKey or SecretKey is empty. Client will only work for public endpoints.")
	}

	client := binance.NewClient(cfg.APIKey, cfg.SecretKey)
	if cfg.UseTestnet {
		client.BaseURL = baseURLTestnet
		cfg.Logger.Info(context.Background(), "Binance client configured for Testnet", map[string]interface{}{"baseURL": client.BaseURL})
	} else {
		client.BaseURL = baseURLProduction
		cfg.Logger.Info(context.Background(), "Binance client configured for Production", map[string]interface{}{"baseURL": client.BaseURL})
	}

	return &Client{spotClient: client, logger: cfg.Logger}, nil
}

// exchangeSymbol converts the executor's BASE-QUOTE pair form into the
// exchange's concatenated form (e.g. "BTC-USDT" -> "BTCUSDT").
func exchangeSymbol(symbol string) string {
	return strings.ReplaceAll(symbol, "-", "")
}

// handleError translates common Binance API errors into standardized ports errors.
func (c *Client) handleError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}

	fields := map[string]interface{}{"operation": operation, "originalError": err.Error()}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		fields["apiErrorCode"] = apiErr.Code
		fields["apiErrorMessage"] = apiErr.Message

		var mappedErr error
		switch apiErr.Code {
		case -1003: // Too many requests
			mappedErr = ports.ErrRateLimited
		case -1022, -2014, -2015: // Bad signature / API-key format / permissions
			mappedErr = ports.ErrAuthenticationFailed
		case -2010: // New order rejected
			mappedErr = ports.ErrOrderPlacementFailed
		case -2019, -3005: // Insufficient margin / balance
			mappedErr = ports.ErrInsufficientFunds
		default:
			mappedErr = ports.ErrExchangeUnavailable
		}
		c.logger.Error(ctx, mappedErr, "Binance API error", fields)
		return fmt.Errorf("%s: %s: %w", operation, apiErr.Message, mappedErr)
	}

	// Non-API errors are transport-level failures.
	c.logger.Error(ctx, err, "Binance request failed", fields)
	return fmt.Errorf("%s: %v: %w", operation, err, ports.ErrExchangeUnavailable)
}

// GetCurrentPrice retrieves the last traded price for a symbol.
func (c *Client) GetCurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	prices, err := c.spotClient.NewListPricesService().Symbol(exchangeSymbol(symbol)).Do(ctx)
	if err != nil {
		return decimal.Zero, c.handleError(ctx, err, "GetCurrentPrice")
	}
	if len(prices) == 0 {
		return decimal.Zero, fmt.Errorf("GetCurrentPrice: no price returned for %s: %w", symbol, ports.ErrNotFound)
	}

	price, err := decimal.NewFromString(prices[0].Price)
	if err != nil {
		return decimal.Zero, fmt.Errorf("GetCurrentPrice: unparseable price %q for %s: %w", prices[0].Price, symbol, err)
	}
	c.logger.Debug(ctx, "Fetched current price", map[string]interface{}{"symbol": symbol, "price": price.String()})
	return price, nil
}

// GetQuantityIncrement retrieves the LOT_SIZE step for a symbol, the minimum
// base-quantity increment the exchange accepts.
func (c *Client) GetQuantityIncrement(ctx context.Context, symbol string) (string, error) {
	info, err := c.spotClient.NewExchangeInfoService().Symbols(exchangeSymbol(symbol)).Do(ctx)
	if err != nil {
		return "", c.handleError(ctx, err, "GetQuantityIncrement")
	}
	for _, s := range info.Symbols {
		if s.Symbol != exchangeSymbol(symbol) {
			continue
		}
		if f := s.LotSizeFilter(); f != nil {
			return f.StepSize, nil
		}
	}
	return "", fmt.Errorf("GetQuantityIncrement: no LOT_SIZE filter for %s: %w", symbol, ports.ErrNotFound)
}

// GetAvailableBalance retrieves the free balance for a currency.
func (c *Client) GetAvailableBalance(ctx context.Context, currency string) (decimal.Decimal, error) {
	account, err := c.spotClient.NewGetAccountService().Do(ctx)
	if err != nil {
		return decimal.Zero, c.handleError(ctx, err, "GetAvailableBalance")
	}
	for _, b := range account.Balances {
		if !strings.EqualFold(b.Asset, currency) {
			continue
		}
		free, err := decimal.NewFromString(b.Free)
		if err != nil {
			return decimal.Zero, fmt.Errorf("GetAvailableBalance: unparseable balance %q for %s: %w", b.Free, currency, err)
		}
		c.logger.Debug(ctx, "Fetched available balance", map[string]interface{}{"currency": currency, "free": free.String()})
		return free, nil
	}
	return decimal.Zero, fmt.Errorf("GetAvailableBalance: no %s balance on account: %w", currency, ports.ErrNotFound)
}

// SubmitMarketOrder places a market order for the given base quantity.
// Each order carries a fresh client order ID so a resubmission is
// distinguishable on the exchange side.
func (c *Client) SubmitMarketOrder(ctx context.Context, symbol string, side domain.OrderSide, quantity decimal.Decimal) (*ports.OrderConfirmation, error) {
	clientOrderID := uuid.NewString()

	order, err := c.spotClient.NewCreateOrderService().
		Symbol(exchangeSymbol(symbol)).
		Side(binance.SideType(side)).
		Type(binance.OrderTypeMarket).
		Quantity(quantity.String()).
		NewClientOrderID(clientOrderID).
		Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, "SubmitMarketOrder")
	}

	conf := &ports.OrderConfirmation{
		OrderID:       order.OrderID,
		ClientOrderID: order.ClientOrderID,
		Symbol:        symbol,
		Side:          side,
		Quantity:      quantity,
		Timestamp:     time.UnixMilli(order.TransactTime),
	}
	c.logger.Info(ctx, "Market order submitted", map[string]interface{}{
		"symbol": symbol, "side": string(side), "quantity": quantity.String(), "orderID": order.OrderID,
	})
	return conf, nil
}
