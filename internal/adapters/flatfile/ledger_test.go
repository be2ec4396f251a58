package flatfile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradehook/internal/domain"
	"tradehook/internal/ports"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

func setupLedger(t *testing.T) (*Ledger, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "OPEN.log")
	ledger, err := NewLedger(Config{Path: path, Logger: &mockLogger{}})
	require.NoError(t, err)
	return ledger, path
}

func testPosition(t *testing.T, symbol string) *domain.Position {
	t.Helper()
	return &domain.Position{
		ID:         "deadbeef",
		Symbol:     symbol,
		Quantity:   decimal.RequireFromString("0.0010"),
		EntryPrice: decimal.RequireFromString("50000.00"),
		OpenedAt:   time.Date(2025, 6, 1, 12, 30, 45, 123_000_000, time.UTC),
	}
}

func TestLedger_InsertAndFind(t *testing.T) {
	ledger, _ := setupLedger(t)
	ctx := context.Background()

	pos := testPosition(t, "BTC-USD")
	require.NoError(t, ledger.Insert(ctx, pos))

	got, err := ledger.FindOpenBySymbol(ctx, "BTC-USD")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, pos.ID, got.ID)
	assert.Equal(t, pos.Symbol, got.Symbol)
	assert.True(t, got.Quantity.Equal(pos.Quantity), "quantity %s", got.Quantity)
	assert.True(t, got.EntryPrice.Equal(pos.EntryPrice), "entry price %s", got.EntryPrice)
	assert.True(t, got.OpenedAt.Equal(pos.OpenedAt), "opened at %s", got.OpenedAt)
}

func TestLedger_FindAbsent(t *testing.T) {
	ledger, _ := setupLedger(t)

	got, err := ledger.FindOpenBySymbol(context.Background(), "BTC-USD")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestLedger_InsertDuplicate(t *testing.T) {
	ledger, _ := setupLedger(t)
	ctx := context.Background()

	require.NoError(t, ledger.Insert(ctx, testPosition(t, "BTC-USD")))

	err := ledger.Insert(ctx, testPosition(t, "BTC-USD"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ports.ErrDuplicateSymbol), "got error %v", err)
}

func TestLedger_Remove(t *testing.T) {
	ledger, _ := setupLedger(t)
	ctx := context.Background()

	require.NoError(t, ledger.Insert(ctx, testPosition(t, "BTC-USD")))
	require.NoError(t, ledger.Insert(ctx, testPosition(t, "ETH-USD")))

	removed, err := ledger.Remove(ctx, "BTC-USD")
	require.NoError(t, err)
	assert.True(t, removed)

	// Removed symbol is gone; the other record survived the rewrite.
	got, err := ledger.FindOpenBySymbol(ctx, "BTC-USD")
	require.NoError(t, err)
	assert.Nil(t, got)
	other, err := ledger.FindOpenBySymbol(ctx, "ETH-USD")
	require.NoError(t, err)
	require.NotNil(t, other)
	assert.Equal(t, "ETH-USD", other.Symbol)
}

func TestLedger_RemoveAbsentIsNoOp(t *testing.T) {
	ledger, _ := setupLedger(t)

	removed, err := ledger.Remove(context.Background(), "BTC-USD")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestLedger_PersistsAcrossReopen(t *testing.T) {
	ledger, path := setupLedger(t)
	ctx := context.Background()
	require.NoError(t, ledger.Insert(ctx, testPosition(t, "BTC-USD")))

	reopened, err := NewLedger(Config{Path: path, Logger: &mockLogger{}})
	require.NoError(t, err)

	got, err := reopened.FindOpenBySymbol(ctx, "BTC-USD")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "deadbeef", got.ID)
}

func TestLedger_CorruptRecord(t *testing.T) {
	ledger, path := setupLedger(t)
	ctx := context.Background()

	// Hand-write a record missing its entry price field.
	corrupt := "OPEN::deadbeef:20250601T123045.123Z:BTC-USD:0.0010\n"
	require.NoError(t, os.WriteFile(path, []byte(corrupt), 0o644))

	_, err := ledger.FindOpenBySymbol(ctx, "BTC-USD")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ports.ErrCorruptRecord), "got error %v", err)

	// The lookup must not have modified the store.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, corrupt, string(data))
}

func TestLedger_CorruptFieldValues(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{name: "bad marker", line: "NOPE::deadbeef:20250601T123045.123Z:BTC-USD:0.0010:50000"},
		{name: "extra field", line: "OPEN::deadbeef:20250601T123045.123Z:BTC-USD:0.0010:50000:extra"},
		{name: "bad timestamp", line: "OPEN::deadbeef:yesterday:BTC-USD:0.0010:50000"},
		{name: "bad quantity", line: "OPEN::deadbeef:20250601T123045.123Z:BTC-USD:lots:50000"},
		{name: "bad price", line: "OPEN::deadbeef:20250601T123045.123Z:BTC-USD:0.0010:cheap"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger, path := setupLedger(t)
			require.NoError(t, os.WriteFile(path, []byte(tt.line+"\n"), 0o644))

			_, err := ledger.FindOpenBySymbol(context.Background(), "BTC-USD")
			require.Error(t, err)
			assert.True(t, errors.Is(err, ports.ErrCorruptRecord), "got error %v", err)
		})
	}
}

func TestLedger_ToleratesTrailingDelimiter(t *testing.T) {
	// Records written by the previous generation of this store carried a
	// trailing colon.
	ledger, path := setupLedger(t)
	line := "OPEN::deadbeef:20250601T123045.123Z:BTC-USD:0.0010:50000:\n"
	require.NoError(t, os.WriteFile(path, []byte(line), 0o644))

	got, err := ledger.FindOpenBySymbol(context.Background(), "BTC-USD")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.EntryPrice.Equal(decimal.RequireFromString("50000")))
}
