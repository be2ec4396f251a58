package flatfile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"tradehook/internal/domain"
	"tradehook/internal/ports"
)

const closeMarker = "CLOSE"

// History implements ports.TradeLog as an append-only text file, one closed
// trade per line behind a literal "CLOSE::" marker. Records are never
// rewritten.
type History struct {
	path   string
	logger ports.Logger

	mu   sync.Mutex
	file *os.File
}

// HistoryConfig holds configuration for the flat-file trade history log.
type HistoryConfig struct {
	Path   string
	Logger ports.Logger
}

// NewHistory opens (creating if needed) the trade history log at cfg.Path.
func NewHistory(cfg HistoryConfig) (*History, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for flat-file trade history")
	}
	path := cfg.Path
	if path == "" {
		path = "./data/CLOSE.log"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		err = fmt.Errorf("failed to create data directory %q: %w", filepath.Dir(path), err)
		cfg.Logger.Error(context.Background(), err, "Trade history initialization failed")
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		err = fmt.Errorf("failed to open trade history %q: %w", path, err)
		cfg.Logger.Error(context.Background(), err, "Trade history initialization failed")
		return nil, err
	}
	return &History{path: path, logger: cfg.Logger, file: f}, nil
}

// Append durably records a closed trade:
// CLOSE::<id>:<closed-at>:<symbol>:<quantity>:<exit-price>:<pnl>
func (h *History) Append(ctx context.Context, trade *domain.ClosedTrade) error {
	line := fmt.Sprintf("%s::%s:%s:%s:%s:%s:%s\n",
		closeMarker,
		trade.ID,
		trade.ClosedAt.UTC().Format(timeLayout),
		trade.Symbol,
		trade.Quantity.String(),
		trade.ExitPrice.String(),
		trade.PNL.String(),
	)

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, err := h.file.WriteString(line); err != nil {
		return fmt.Errorf("failed to append closed trade for %s: %w", trade.Symbol, err)
	}
	if err := h.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync trade history for %s: %w", trade.Symbol, err)
	}
	h.logger.Debug(ctx, "Closed trade recorded", map[string]interface{}{
		"tradeID": trade.ID, "symbol": trade.Symbol, "pnl": trade.PNL.String(),
	})
	return nil
}

// Close closes the underlying log file.
func (h *History) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.file == nil {
		return nil
	}
	err := h.file.Close()
	h.file = nil
	return err
}
