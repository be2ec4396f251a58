package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSignal(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Signal
		wantErr error
	}{
		{name: "buy", raw: "BUY BTC-USD", want: Signal{Action: Buy, Symbol: "BTC-USD"}},
		{name: "sell", raw: "SELL ETH-USD", want: Signal{Action: Sell, Symbol: "ETH-USD"}},
		{name: "lowercase input", raw: "buy btc-usd", want: Signal{Action: Buy, Symbol: "BTC-USD"}},
		{name: "surrounding whitespace", raw: "  BUY BTC-USD \n", want: Signal{Action: Buy, Symbol: "BTC-USD"}},
		{name: "empty", raw: "", wantErr: ErrMalformedSignal},
		{name: "action only", raw: "BUY", wantErr: ErrMalformedSignal},
		{name: "too many fields", raw: "BUY BTC-USD NOW", wantErr: ErrMalformedSignal},
		{name: "symbol without dash", raw: "BUY BTCUSD", wantErr: ErrMalformedSignal},
		{name: "symbol with two dashes", raw: "BUY BTC-USD-X", wantErr: ErrMalformedSignal},
		{name: "symbol with empty base", raw: "BUY -USD", wantErr: ErrMalformedSignal},
		{name: "symbol with empty quote", raw: "BUY BTC-", wantErr: ErrMalformedSignal},
		{name: "unknown action", raw: "HOLD BTC-USD", wantErr: ErrUnknownAction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSignal(tt.raw)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "got error %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSignalCurrencies(t *testing.T) {
	sig, err := ParseSignal("BUY BTC-USD")
	require.NoError(t, err)
	assert.Equal(t, "BTC", sig.BaseCurrency())
	assert.Equal(t, "USD", sig.QuoteCurrency())
}
