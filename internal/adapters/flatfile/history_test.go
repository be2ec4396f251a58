package flatfile

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradehook/internal/domain"
)

func setupHistory(t *testing.T) (*History, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "CLOSE.log")
	history, err := NewHistory(HistoryConfig{Path: path, Logger: &mockLogger{}})
	require.NoError(t, err)
	t.Cleanup(func() { history.Close() })
	return history, path
}

func TestHistory_Append(t *testing.T) {
	history, path := setupHistory(t)
	ctx := context.Background()

	trade := &domain.ClosedTrade{
		ID:        "deadbeef",
		Symbol:    "BTC-USD",
		Quantity:  decimal.RequireFromString("0.0010"),
		ExitPrice: decimal.RequireFromString("51000.00"),
		PNL:       decimal.RequireFromString("1.00"),
		ClosedAt:  time.Date(2025, 6, 1, 13, 0, 0, 0, time.UTC),
	}
	require.NoError(t, history.Append(ctx, trade))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	line := strings.TrimSpace(string(data))
	assert.Equal(t, "CLOSE::deadbeef:20250601T130000.000Z:BTC-USD:0.001:51000:1", line)
}

func TestHistory_AppendOnly(t *testing.T) {
	history, path := setupHistory(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		trade := &domain.ClosedTrade{
			ID:        "trade000",
			Symbol:    "ETH-USD",
			Quantity:  decimal.RequireFromString("1"),
			ExitPrice: decimal.NewFromInt(int64(2000 + i)),
			PNL:       decimal.NewFromInt(int64(i)),
			ClosedAt:  time.Now().UTC(),
		}
		require.NoError(t, history.Append(ctx, trade))
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	for _, line := range lines {
		assert.True(t, strings.HasPrefix(line, "CLOSE::"), "line %q", line)
	}
}
