package flatfile

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"tradehook/internal/domain"
	"tradehook/internal/ports"
)

const (
	openMarker = "OPEN"

	// Timestamps are encoded without colons because the colon is the field
	// delimiter of the record format.
	timeLayout = "20060102T150405.000Z"

	openFieldCount = 5
)

// Ledger implements ports.PositionLedger as a line-oriented text file:
// one record per line, colon-delimited fields behind a literal "OPEN::"
// marker. Inserts append; removes rewrite the whole file through a temp
// file and rename so a reader never observes a partially written store.
type Ledger struct {
	path   string
	logger ports.Logger

	mu sync.Mutex // serializes all file access
}

// Config holds configuration for the flat-file ledger.
type Config struct {
	Path   string
	Logger ports.Logger
}

// NewLedger creates a flat-file position ledger at cfg.Path.
func NewLedger(cfg Config) (*Ledger, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for flat-file ledger")
	}
	path := cfg.Path
	if path == "" {
		path = "./data/OPEN.log"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		err = fmt.Errorf("failed to create data directory %q: %w", filepath.Dir(path), err)
		cfg.Logger.Error(context.Background(), err, "Flat-file ledger initialization failed")
		return nil, err
	}
	return &Ledger{path: path, logger: cfg.Logger}, nil
}

// Close implements ports.PositionLedger. The ledger holds no open handle
// between operations, so there is nothing to release.
func (l *Ledger) Close() error { return nil }

// FindOpenBySymbol retrieves the open position for a symbol, if any.
// Returns nil, nil when no record matches; ErrCorruptRecord when a matching
// line does not parse into exactly the expected fields.
func (l *Ledger) FindOpenBySymbol(ctx context.Context, symbol string) (*domain.Position, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	line, found, err := l.findLineLocked(symbol)
	if err != nil {
		return nil, err
	}
	if !found {
		l.logger.Debug(ctx, "No open position recorded for symbol", map[string]interface{}{"symbol": symbol})
		return nil, nil
	}

	pos, err := parseOpenRecord(line)
	if err != nil {
		return nil, fmt.Errorf("open record for symbol %s: %w", symbol, err)
	}
	return pos, nil
}

// Insert durably appends a new open-position record.
// Fails with ErrDuplicateSymbol if any record for the symbol already exists.
func (l *Ledger) Insert(ctx context.Context, pos *domain.Position) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, found, err := l.findLineLocked(pos.Symbol)
	if err != nil {
		return err
	}
	if found {
		return fmt.Errorf("symbol %s: %w", pos.Symbol, ports.ErrDuplicateSymbol)
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open ledger %q for append: %w", l.path, err)
	}
	defer f.Close()

	if _, err := f.WriteString(formatOpenRecord(pos) + "\n"); err != nil {
		return fmt.Errorf("failed to append open record for %s: %w", pos.Symbol, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("failed to sync ledger after insert for %s: %w", pos.Symbol, err)
	}
	l.logger.Debug(ctx, "Position recorded", map[string]interface{}{"positionID": pos.ID, "symbol": pos.Symbol})
	return nil
}

// Remove durably deletes every record for a symbol by rewriting the store
// without the matching lines. Reports removed=false when nothing matched.
func (l *Ledger) Remove(ctx context.Context, symbol string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	lines, err := l.readAllLocked()
	if err != nil {
		return false, err
	}

	kept := lines[:0]
	removed := 0
	for _, line := range lines {
		if matchesSymbol(line, symbol) {
			removed++
			continue
		}
		kept = append(kept, line)
	}
	if removed == 0 {
		l.logger.Debug(ctx, "Remove is a no-op, symbol not recorded", map[string]interface{}{"symbol": symbol})
		return false, nil
	}

	if err := l.rewriteLocked(kept); err != nil {
		return false, fmt.Errorf("failed to rewrite ledger removing %s: %w", symbol, err)
	}
	l.logger.Debug(ctx, "Position removed", map[string]interface{}{"symbol": symbol, "records": removed})
	return true, nil
}

// findLineLocked returns the first line matching the symbol. Matching is a
// quick ":SYMBOL:" substring check; callers parse the line when they need
// typed fields. Caller must hold l.mu.
func (l *Ledger) findLineLocked(symbol string) (string, bool, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to open ledger %q: %w", l.path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if matchesSymbol(line, symbol) {
			return line, true, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", false, fmt.Errorf("failed to scan ledger %q: %w", l.path, err)
	}
	return "", false, nil
}

// readAllLocked returns every non-empty line of the store. Caller must hold l.mu.
func (l *Ledger) readAllLocked() ([]string, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open ledger %q: %w", l.path, err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan ledger %q: %w", l.path, err)
	}
	return lines, nil
}

// rewriteLocked replaces the store contents atomically: write a temp file in
// the same directory, sync it, rename over the original. Caller must hold l.mu.
func (l *Ledger) rewriteLocked(lines []string) error {
	tmp, err := os.CreateTemp(filepath.Dir(l.path), filepath.Base(l.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp ledger file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	for _, line := range lines {
		if _, err := tmp.WriteString(line + "\n"); err != nil {
			tmp.Close()
			return fmt.Errorf("failed to write temp ledger file: %w", err)
		}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp ledger file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp ledger file: %w", err)
	}
	if err := os.Rename(tmpName, l.path); err != nil {
		return fmt.Errorf("failed to replace ledger file: %w", err)
	}
	return nil
}

func matchesSymbol(line, symbol string) bool {
	return strings.Contains(line, ":"+symbol+":")
}

// formatOpenRecord encodes a position as a single ledger line:
// OPEN::<id>:<opened-at>:<symbol>:<quantity>:<entry-price>
func formatOpenRecord(pos *domain.Position) string {
	return fmt.Sprintf("%s::%s:%s:%s:%s:%s",
		openMarker,
		pos.ID,
		pos.OpenedAt.UTC().Format(timeLayout),
		pos.Symbol,
		pos.Quantity.String(),
		pos.EntryPrice.String(),
	)
}

// parseOpenRecord decodes a ledger line back into a position, validating the
// marker and the exact field count at the storage boundary.
func parseOpenRecord(line string) (*domain.Position, error) {
	// Tolerate a single trailing delimiter left by older writers.
	line = strings.TrimSuffix(line, ":")

	marker, rest, ok := strings.Cut(line, "::")
	if !ok || marker != openMarker {
		return nil, fmt.Errorf("%w: missing %s marker", ports.ErrCorruptRecord, openMarker)
	}
	parts := strings.Split(rest, ":")
	if len(parts) != openFieldCount {
		return nil, fmt.Errorf("%w: expected %d fields, got %d", ports.ErrCorruptRecord, openFieldCount, len(parts))
	}

	openedAt, err := time.Parse(timeLayout, parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: bad timestamp %q", ports.ErrCorruptRecord, parts[1])
	}
	qty, err := decimal.NewFromString(parts[3])
	if err != nil {
		return nil, fmt.Errorf("%w: bad quantity %q", ports.ErrCorruptRecord, parts[3])
	}
	entryPrice, err := decimal.NewFromString(parts[4])
	if err != nil {
		return nil, fmt.Errorf("%w: bad entry price %q", ports.ErrCorruptRecord, parts[4])
	}

	return &domain.Position{
		ID:         parts[0],
		OpenedAt:   openedAt,
		Symbol:     parts[2],
		Quantity:   qty,
		EntryPrice: entryPrice,
	}, nil
}
