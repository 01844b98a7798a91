package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"analastock/internal/interval"
	"analastock/internal/model"
	"analastock/internal/quota"
)

// Budget names the store acquires from the governor before touching disk.
const (
	ReadBudget  = "store-read"
	WriteBudget = "store-write"
)

// SQLiteStore persists price history to a SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	gov *quota.Governor
	mu  sync.Mutex
	log zerolog.Logger
}

// NewSQLiteStore opens (or creates) the SQLite database and runs migrations.
// A nil governor disables store throttling.
func NewSQLiteStore(dbPath string, gov *quota.Governor, log zerolog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so analyser reads proceed while the refresh daemon writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db, gov: gov, log: log}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info().Str("path", dbPath).Msg("sqlite store opened")
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS bars (
			symbol    TEXT NOT NULL,
			date      INTEGER NOT NULL,
			open      REAL,
			high      REAL,
			low       REAL,
			close     REAL,
			adj_close REAL,
			volume    INTEGER,
			PRIMARY KEY (symbol, date)
		)`,

		`CREATE TABLE IF NOT EXISTS spans (
			symbol     TEXT NOT NULL,
			start_date INTEGER NOT NULL,
			end_date   INTEGER NOT NULL,
			PRIMARY KEY (symbol, start_date)
		)`,

		`CREATE TABLE IF NOT EXISTS companies (
			symbol   TEXT PRIMARY KEY,
			name     TEXT,
			exchange TEXT,
			industry TEXT,
			currency TEXT
		)`,
	}

	for _, st := range stmts {
		if _, err := s.db.Exec(st); err != nil {
			return fmt.Errorf("exec %q: %w", st[:40], err)
		}
	}
	return nil
}

func (s *SQLiteStore) acquire(ctx context.Context, budget string) error {
	if s.gov == nil {
		return nil
	}
	return s.gov.Acquire(ctx, budget, 1)
}

// ReadSpans returns the coalesced covered spans for the symbol, earliest first.
func (s *SQLiteStore) ReadSpans(ctx context.Context, symbol string) ([]model.Span, error) {
	if err := s.acquire(ctx, ReadBudget); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT start_date, end_date FROM spans WHERE symbol = ? ORDER BY start_date`, symbol)
	if err != nil {
		return nil, fmt.Errorf("read spans for %s: %w", symbol, err)
	}
	defer rows.Close()

	var spans []model.Span
	for rows.Next() {
		var start, end int64
		if err := rows.Scan(&start, &end); err != nil {
			return nil, fmt.Errorf("scan span: %w", err)
		}
		spans = append(spans, model.Span{
			Start: time.Unix(start, 0).UTC(),
			End:   time.Unix(end, 0).UTC(),
		})
	}
	return spans, rows.Err()
}

// ReadRecords returns the stored records falling inside the span, oldest first.
func (s *SQLiteStore) ReadRecords(ctx context.Context, symbol string, span model.Span) ([]model.Record, error) {
	if err := s.acquire(ctx, ReadBudget); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT date, open, high, low, close, adj_close, volume FROM bars
		 WHERE symbol = ? AND date >= ? AND date < ? ORDER BY date`,
		symbol, span.Start.Unix(), span.End.Unix())
	if err != nil {
		return nil, fmt.Errorf("read records for %s: %w", symbol, err)
	}
	defer rows.Close()

	var recs []model.Record
	for rows.Next() {
		var date int64
		var r model.Record
		if err := rows.Scan(&date, &r.Open, &r.High, &r.Low, &r.Close, &r.AdjClose, &r.Volume); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		r.Date = time.Unix(date, 0).UTC()
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

// WriteRecords upserts the records and extends the symbol's covered span set
// with span. The span update and the bar upserts commit atomically, so a
// crash mid-write never leaves a span claiming coverage its bars lack.
func (s *SQLiteStore) WriteRecords(ctx context.Context, symbol string, span model.Span, records []model.Record) error {
	if err := s.acquire(ctx, WriteBudget); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin write for %s: %w", symbol, err)
	}
	defer tx.Rollback()

	for _, r := range records {
		if _, err := tx.ExecContext(ctx, `INSERT INTO bars
			(symbol, date, open, high, low, close, adj_close, volume)
			VALUES (?,?,?,?,?,?,?,?)
			ON CONFLICT(symbol, date) DO UPDATE SET
				open=excluded.open, high=excluded.high, low=excluded.low,
				close=excluded.close, adj_close=excluded.adj_close, volume=excluded.volume`,
			symbol, model.DateOf(r.Date).Unix(), r.Open, r.High, r.Low, r.Close, r.AdjClose, r.Volume,
		); err != nil {
			return fmt.Errorf("upsert bar for %s: %w", symbol, err)
		}
	}

	existing, err := spansInTx(ctx, tx, symbol)
	if err != nil {
		return err
	}
	merged := interval.Coalesce(append(existing, span))

	// Replace the span set wholesale; it stays small (one row per hole).
	if _, err := tx.ExecContext(ctx, `DELETE FROM spans WHERE symbol = ?`, symbol); err != nil {
		return fmt.Errorf("clear spans for %s: %w", symbol, err)
	}
	for _, sp := range merged {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO spans (symbol, start_date, end_date) VALUES (?,?,?)`,
			symbol, sp.Start.Unix(), sp.End.Unix()); err != nil {
			return fmt.Errorf("insert span for %s: %w", symbol, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit write for %s: %w", symbol, err)
	}
	s.log.Debug().Str("symbol", symbol).Stringer("span", span).Int("records", len(records)).
		Msg("price history stored")
	return nil
}

func spansInTx(ctx context.Context, tx *sql.Tx, symbol string) ([]model.Span, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT start_date, end_date FROM spans WHERE symbol = ?`, symbol)
	if err != nil {
		return nil, fmt.Errorf("read spans for %s: %w", symbol, err)
	}
	defer rows.Close()

	var spans []model.Span
	for rows.Next() {
		var start, end int64
		if err := rows.Scan(&start, &end); err != nil {
			return nil, fmt.Errorf("scan span: %w", err)
		}
		spans = append(spans, model.Span{
			Start: time.Unix(start, 0).UTC(),
			End:   time.Unix(end, 0).UTC(),
		})
	}
	return spans, rows.Err()
}

// UpsertCompany caches company metadata for a symbol.
func (s *SQLiteStore) UpsertCompany(ctx context.Context, c model.Company) error {
	if err := s.acquire(ctx, WriteBudget); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `INSERT INTO companies
		(symbol, name, exchange, industry, currency)
		VALUES (?,?,?,?,?)
		ON CONFLICT(symbol) DO UPDATE SET
			name=excluded.name, exchange=excluded.exchange,
			industry=excluded.industry, currency=excluded.currency`,
		c.Symbol, c.Name, c.Exchange, c.Industry, c.Currency,
	)
	if err != nil {
		return fmt.Errorf("upsert company %s: %w", c.Symbol, err)
	}
	return nil
}

// Company returns cached company metadata; ok is false on a cache miss.
func (s *SQLiteStore) Company(ctx context.Context, symbol string) (model.Company, bool, error) {
	if err := s.acquire(ctx, ReadBudget); err != nil {
		return model.Company{}, false, err
	}

	var c model.Company
	err := s.db.QueryRowContext(ctx,
		`SELECT symbol, name, exchange, industry, currency FROM companies WHERE symbol = ?`,
		symbol).Scan(&c.Symbol, &c.Name, &c.Exchange, &c.Industry, &c.Currency)
	if err == sql.ErrNoRows {
		return model.Company{}, false, nil
	}
	if err != nil {
		return model.Company{}, false, fmt.Errorf("read company %s: %w", symbol, err)
	}
	return c, true, nil
}

// Symbols lists every symbol with cached price history, alphabetically.
func (s *SQLiteStore) Symbols(ctx context.Context) ([]string, error) {
	if err := s.acquire(ctx, ReadBudget); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT symbol FROM spans ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("list symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, fmt.Errorf("scan symbol: %w", err)
		}
		symbols = append(symbols, sym)
	}
	return symbols, rows.Err()
}

func (s *SQLiteStore) Close() error {
	s.log.Info().Msg("closing sqlite store")
	return s.db.Close()
}
