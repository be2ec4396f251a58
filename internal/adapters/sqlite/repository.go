package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tradehook/internal/domain"
	"tradehook/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Repository implements the ports.PositionLedger and ports.TradeLog
// interfaces using SQLite. It is the structured-store alternative to the
// flat-file adapter, selected with STORE_DRIVER=sqlite.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/executor.db"
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		err = fmt.Errorf("failed to create data directory %q: %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000") // WAL mode for better concurrency
	if err != nil {
		err = fmt.Errorf("failed to open database at %q: %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at %q: %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// SQLite handles concurrency internally; the Go driver benefits from a
	// single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	repo := &Repository{db: db, logger: cfg.Logger}
	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "SQLite store ready", map[string]interface{}{"path": dbPath})

	return repo, nil
}

// initializeSchema creates tables if they don't exist. Quantities, prices and
// PnL are stored as TEXT to keep exact decimal values.
func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS open_positions (
		id TEXT PRIMARY KEY,
		symbol TEXT NOT NULL UNIQUE,
		quantity TEXT NOT NULL,
		entry_price TEXT NOT NULL,
		opened_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS closed_trades (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		quantity TEXT NOT NULL,
		exit_price TEXT NOT NULL,
		pnl TEXT NOT NULL,
		closed_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_closed_trades_symbol_closed_at ON closed_trades (symbol, closed_at);
	`
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// --- PositionLedger implementation ---

// FindOpenBySymbol retrieves the open position for a symbol, if any.
func (r *Repository) FindOpenBySymbol(ctx context.Context, symbol string) (*domain.Position, error) {
	const query = `
	SELECT id, symbol, quantity, entry_price, opened_at
	FROM open_positions
	WHERE symbol = ?`

	row := r.db.QueryRowContext(ctx, query, symbol)
	pos, err := scanPosition(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.logger.Debug(ctx, "No open position found for symbol", map[string]interface{}{"symbol": symbol})
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query open position for symbol %s: %w", symbol, err)
	}
	return pos, nil
}

// Insert persists a new open position. The UNIQUE constraint on symbol
// enforces the one-position-per-symbol invariant at the storage layer.
func (r *Repository) Insert(ctx context.Context, pos *domain.Position) error {
	const query = `
	INSERT INTO open_positions (id, symbol, quantity, entry_price, opened_at)
	VALUES (?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		pos.ID, pos.Symbol, pos.Quantity.String(), pos.EntryPrice.String(), pos.OpenedAt.UTC())
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("symbol %s: %w", pos.Symbol, ports.ErrDuplicateSymbol)
		}
		return fmt.Errorf("failed to insert position for symbol %s: %w", pos.Symbol, err)
	}
	r.logger.Debug(ctx, "Position recorded", map[string]interface{}{"positionID": pos.ID, "symbol": pos.Symbol})
	return nil
}

// Remove deletes the record(s) for a symbol. Reports removed=false when no
// row matched.
func (r *Repository) Remove(ctx context.Context, symbol string) (bool, error) {
	const query = `DELETE FROM open_positions WHERE symbol = ?`

	result, err := r.db.ExecContext(ctx, query, symbol)
	if err != nil {
		return false, fmt.Errorf("failed to delete position for symbol %s: %w", symbol, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected deleting %s: %w", symbol, err)
	}
	if rows == 0 {
		r.logger.Debug(ctx, "Remove is a no-op, symbol not recorded", map[string]interface{}{"symbol": symbol})
		return false, nil
	}
	r.logger.Debug(ctx, "Position removed", map[string]interface{}{"symbol": symbol, "records": rows})
	return true, nil
}

// --- TradeLog implementation ---

// Append records a closed trade. Rows are append-only; nothing updates or
// deletes them.
func (r *Repository) Append(ctx context.Context, trade *domain.ClosedTrade) error {
	const query = `
	INSERT INTO closed_trades (id, symbol, quantity, exit_price, pnl, closed_at)
	VALUES (?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		trade.ID, trade.Symbol, trade.Quantity.String(), trade.ExitPrice.String(),
		trade.PNL.String(), trade.ClosedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert closed trade for symbol %s: %w", trade.Symbol, err)
	}
	r.logger.Debug(ctx, "Closed trade recorded", map[string]interface{}{
		"tradeID": trade.ID, "symbol": trade.Symbol, "pnl": trade.PNL.String(),
	})
	return nil
}

// FindTradesBySymbol retrieves the most recent closed trades for a symbol,
// newest first, up to a limit. Used by operators for auditing; the signal
// processor never reads the history.
func (r *Repository) FindTradesBySymbol(ctx context.Context, symbol string, limit int) ([]*domain.ClosedTrade, error) {
	const query = `
	SELECT id, symbol, quantity, exit_price, pnl, closed_at
	FROM closed_trades
	WHERE symbol = ? ORDER BY closed_at DESC, seq DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query closed trades for symbol %s: %w", symbol, err)
	}
	defer rows.Close()

	trades := make([]*domain.ClosedTrade, 0)
	for rows.Next() {
		trade, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan closed trade: %w", err)
		}
		trades = append(trades, trade)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating closed trade rows: %w", err)
	}
	return trades, nil
}

// TotalProfit sums the realized PnL over all closed trades.
func (r *Repository) TotalProfit(ctx context.Context) (decimal.Decimal, error) {
	const query = `SELECT COALESCE(pnl, '0') FROM closed_trades`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to query closed trade pnl: %w", err)
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return decimal.Zero, fmt.Errorf("failed to scan pnl: %w", err)
		}
		pnl, err := decimal.NewFromString(raw)
		if err != nil {
			return decimal.Zero, fmt.Errorf("pnl %q: %w", raw, ports.ErrCorruptRecord)
		}
		total = total.Add(pnl)
	}
	if err = rows.Err(); err != nil {
		return decimal.Zero, fmt.Errorf("error iterating pnl rows: %w", err)
	}
	return total, nil
}

// --- Helper scan functions ---

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanPosition scans a row into a domain.Position, validating the stored
// decimal text at the storage boundary.
func scanPosition(s scanner) (*domain.Position, error) {
	p := &domain.Position{}
	var qty, entryPrice string
	if err := s.Scan(&p.ID, &p.Symbol, &qty, &entryPrice, &p.OpenedAt); err != nil {
		return nil, err // sql.ErrNoRows handled by the caller
	}

	var err error
	if p.Quantity, err = decimal.NewFromString(qty); err != nil {
		return nil, fmt.Errorf("quantity %q: %w", qty, ports.ErrCorruptRecord)
	}
	if p.EntryPrice, err = decimal.NewFromString(entryPrice); err != nil {
		return nil, fmt.Errorf("entry price %q: %w", entryPrice, ports.ErrCorruptRecord)
	}
	return p, nil
}

// scanTrade scans a row into a domain.ClosedTrade.
func scanTrade(s scanner) (*domain.ClosedTrade, error) {
	t := &domain.ClosedTrade{}
	var qty, exitPrice, pnl string
	if err := s.Scan(&t.ID, &t.Symbol, &qty, &exitPrice, &pnl, &t.ClosedAt); err != nil {
		return nil, err
	}

	var err error
	if t.Quantity, err = decimal.NewFromString(qty); err != nil {
		return nil, fmt.Errorf("quantity %q: %w", qty, ports.ErrCorruptRecord)
	}
	if t.ExitPrice, err = decimal.NewFromString(exitPrice); err != nil {
		return nil, fmt.Errorf("exit price %q: %w", exitPrice, ports.ErrCorruptRecord)
	}
	if t.PNL, err = decimal.NewFromString(pnl); err != nil {
		return nil, fmt.Errorf("pnl %q: %w", pnl, ports.ErrCorruptRecord)
	}
	return t, nil
}
