// Package store persists per-symbol tick and OHLCV data in an embedded
// DuckDB database file. Aggregate tables are keyed by bucket datetime and
// merged with insert-ignore-on-conflict, which is what makes repeated runs
// over overlapping date ranges idempotent.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/marcboeker/go-duckdb/v2"

	"github.com/quantlab/tickhist/internal/models"
)

// Store is the persisted store for one symbol. It is the exclusive writer
// for its database file during a run; no concurrent writers are assumed.
type Store struct {
	db     *sql.DB
	path   string
	symbol string
	logger *slog.Logger
}

// Open opens (creating if needed) the per-symbol database at
// <dir>/<symbol>.duckdb. Pass ":memory:" as dir for an in-memory store.
func Open(dir, symbol string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	path := dir
	if dir != ":memory:" {
		path = fmt.Sprintf("%s/%s.duckdb", dir, symbol)
	}

	db, err := sql.Open("duckdb", pathOrMemory(path))
	if err != nil {
		return nil, NewStorageError("open", "", fmt.Errorf("failed to open DuckDB database: %w", err))
	}

	// Single writer pattern as recommended for DuckDB.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	return &Store{db: db, path: path, symbol: symbol, logger: logger}, nil
}

func pathOrMemory(path string) string {
	if path == ":memory:" {
		return ""
	}
	return path
}

// Symbol returns the symbol this store belongs to.
func (s *Store) Symbol() string { return s.symbol }

// barTableName renders the aggregate table name for a timeframe. Timeframes
// come from the closed parsed set, so the identifier is safe to interpolate.
func barTableName(tf models.Timeframe) string {
	return "aggr_" + string(tf)
}

// EnsureTickTable creates the raw tick table if it does not exist. The tick
// table has no uniqueness key: tick rows carry no natural per-row key.
func (s *Store) EnsureTickTable(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS tick (
		datetime  TEXT NOT NULL,
		price     TEXT NOT NULL,
		size      TEXT NOT NULL,
		side      TEXT,
		direction TEXT
	)`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return NewStorageError("create", "tick", err)
	}
	return nil
}

// EnsureBarTable creates the aggregate table for the timeframe if it does
// not exist. Timeframes longer than 24 hours are rejected: daily source
// files merge one calendar day at a time, and a coarser bucket could be
// split across merge calls, leaving an incomplete bar if a run is
// interrupted mid-symbol.
func (s *Store) EnsureBarTable(ctx context.Context, tf models.Timeframe) error {
	if tf.IsTick() {
		return NewStorageError("create", "", fmt.Errorf("tick is not an aggregate timeframe"))
	}
	if !tf.FitsDailyMerge() {
		return NewStorageError("create", barTableName(tf),
			fmt.Errorf("timeframe %s exceeds the 24h limit for persisted-store merges", tf))
	}

	query := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		datetime TEXT PRIMARY KEY,
		open     TEXT,
		high     TEXT,
		low      TEXT,
		close    TEXT,
		volume   TEXT
	)`, barTableName(tf))
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return NewStorageError("create", barTableName(tf), err)
	}
	return nil
}

// MergeBars inserts the bar batch into the timeframe's aggregate table.
// Rows whose datetime key already exists are silently skipped, so merging
// the same batch twice leaves the table unchanged. All bars are validated
// before any row is written.
func (s *Store) MergeBars(ctx context.Context, tf models.Timeframe, bars []models.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	table := barTableName(tf)

	for i := range bars {
		if err := bars[i].Validate(); err != nil {
			return NewStorageError("merge", table, fmt.Errorf("invalid bar at index %d: %w", i, err))
		}
	}

	if err := s.EnsureBarTable(ctx, tf); err != nil {
		return err
	}

	start := time.Now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return NewStorageError("merge", table, fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (datetime, open, high, low, close, volume)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (datetime) DO NOTHING`, table))
	if err != nil {
		return NewStorageError("merge", table, fmt.Errorf("failed to prepare insert: %w", err))
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.ExecContext(ctx, b.Datetime, b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
			return NewStorageError("merge", table, fmt.Errorf("failed to insert bar %s: %w", b.Datetime, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return NewStorageError("merge", table, fmt.Errorf("failed to commit: %w", err))
	}

	s.logger.Debug("merged bars", "symbol", s.symbol, "table", table,
		"rows", len(bars), "duration", time.Since(start))
	return nil
}

// MergeTicks appends the tick batch to the raw tick table using the DuckDB
// Appender API for bulk insert throughput.
//
// Known gap, preserved deliberately: tick rows have no unique natural key,
// so no deduplication happens here. Merging the same day's file twice
// duplicates its rows; callers must not replay a day into the tick table.
func (s *Store) MergeTicks(ctx context.Context, ticks []models.Tick) error {
	if len(ticks) == 0 {
		return nil
	}

	if err := s.EnsureTickTable(ctx); err != nil {
		return err
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return NewStorageError("merge", "tick", fmt.Errorf("failed to get connection: %w", err))
	}
	defer conn.Close()

	var driverConn *duckdb.Conn
	err = conn.Raw(func(dc interface{}) error {
		var ok bool
		driverConn, ok = dc.(*duckdb.Conn)
		if !ok {
			return fmt.Errorf("underlying connection is not a DuckDB connection")
		}
		return nil
	})
	if err != nil {
		return NewStorageError("merge", "tick", err)
	}

	appender, err := duckdb.NewAppenderFromConn(driverConn, "", "tick")
	if err != nil {
		return NewStorageError("merge", "tick", fmt.Errorf("failed to create appender: %w", err))
	}
	defer appender.Close()

	start := time.Now()
	for _, t := range ticks {
		if err := appender.AppendRow(t.Datetime, t.Price, t.Size, t.Side, t.Direction); err != nil {
			return NewStorageError("merge", "tick", fmt.Errorf("failed to append tick %s: %w", t.Datetime, err))
		}
	}
	if err := appender.Flush(); err != nil {
		return NewStorageError("merge", "tick", fmt.Errorf("failed to flush appender: %w", err))
	}

	s.logger.Debug("merged ticks", "symbol", s.symbol, "rows", len(ticks), "duration", time.Since(start))
	return nil
}

// Tables lists the table names present in the store.
func (s *Store) Tables(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'main'
		ORDER BY table_name`)
	if err != nil {
		return nil, NewStorageError("tables", "", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, NewStorageError("tables", "", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, NewStorageError("tables", "", err)
	}
	return names, nil
}

// ReadBars returns the full aggregate table for the timeframe, ordered by
// bucket datetime. Used by the database-to-files exporter.
func (s *Store) ReadBars(ctx context.Context, tf models.Timeframe) ([]models.Bar, error) {
	table := barTableName(tf)
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT datetime, open, high, low, close, volume
		FROM %s ORDER BY datetime ASC`, table))
	if err != nil {
		return nil, NewStorageError("read", table, err)
	}
	defer rows.Close()

	var bars []models.Bar
	for rows.Next() {
		var b models.Bar
		if err := rows.Scan(&b.Datetime, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, NewStorageError("read", table, err)
		}
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, NewStorageError("read", table, err)
	}
	return bars, nil
}

// ReadTicks returns the full raw tick table ordered by datetime.
func (s *Store) ReadTicks(ctx context.Context) ([]models.Tick, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT datetime, price, size, side, direction
		FROM tick ORDER BY datetime ASC`)
	if err != nil {
		return nil, NewStorageError("read", "tick", err)
	}
	defer rows.Close()

	var ticks []models.Tick
	for rows.Next() {
		var t models.Tick
		if err := rows.Scan(&t.Datetime, &t.Price, &t.Size, &t.Side, &t.Direction); err != nil {
			return nil, NewStorageError("read", "tick", err)
		}
		ticks = append(ticks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, NewStorageError("read", "tick", err)
	}
	return ticks, nil
}

// CountBars returns the row count of the timeframe's aggregate table.
func (s *Store) CountBars(ctx context.Context, tf models.Timeframe) (int64, error) {
	table := barTableName(tf)
	var n int64
	if err := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&n); err != nil {
		return 0, NewStorageError("count", table, err)
	}
	return n, nil
}

// Close shuts down the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return NewStorageError("close", "", err)
	}
	s.db = nil
	return nil
}
