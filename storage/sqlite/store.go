// Package sqlite is the single-file run history, for deployments without Postgres
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sig-0/centavo/storage"
	"github.com/sig-0/centavo/storage/types"
)

//go:embed schema/*.sql
var schemaFS embed.FS

var errMissingPath = errors.New("storage path is required")

// Storage is the SQLite backed run history
type Storage struct {
	db *sql.DB
}

// Open opens (or creates) the database at path, and applies the schema
func Open(ctx context.Context, path string) (*Storage, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errMissingPath
	}

	dsn := filepath.Clean(path) +
		"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to open sqlite db: %w", err)
	}

	// Writers serialize on the file lock anyway
	db.SetMaxOpenConns(1)

	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("unable to ping sqlite db: %w", err)
	}

	if err = migrate(ctx, db); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("unable to apply schema: %w", err)
	}

	return &Storage{db: db}, nil
}

// Close releases the database handle
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) SaveRun(ctx context.Context, run *types.Run) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("unable to begin transaction: %w", err)
	}

	defer func() {
		_ = tx.Rollback() // no-op after commit
	}()

	_, err = tx.ExecContext(
		ctx,
		`INSERT INTO runs (id, generated_at, target_currency, anchor_currency, directory, row_limit, row_count, grand_total)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.GeneratedAt.UTC().UnixNano(),
		run.Target.String(),
		run.Anchor.String(),
		run.Directory,
		run.Limit,
		len(run.Rows),
		run.GrandTotal,
	)
	if err != nil {
		if isConstraintError(err) {
			return fmt.Errorf("%w: %s", storage.ErrDuplicateRun, run.ID)
		}

		return fmt.Errorf("unable to save run: %w", err)
	}

	stmt, err := tx.PrepareContext(
		ctx,
		`INSERT INTO run_rows (run_id, position, country_code, country_name, year, population, currency, fx_to_target, derived_value)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("unable to prepare row insert: %w", err)
	}
	defer stmt.Close()

	for i, row := range run.Rows {
		var currency sql.NullString
		if row.Currency != nil {
			currency = sql.NullString{String: row.Currency.String(), Valid: true}
		}

		if _, err = stmt.ExecContext(
			ctx,
			run.ID,
			i,
			row.CountryCode,
			row.CountryName,
			row.Year,
			row.Population,
			currency,
			nullFloat(row.FxToTarget),
			nullFloat(row.DerivedValue),
		); err != nil {
			return fmt.Errorf("unable to save run row %s: %w", row.CountryCode, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("unable to commit run: %w", err)
	}

	return nil
}

func (s *Storage) Run(ctx context.Context, id string) (*types.Run, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, generated_at, target_currency, anchor_currency, directory, row_limit, grand_total
		FROM runs
		WHERE id = ?`,
		id,
	)

	return s.loadRun(ctx, row, id)
}

func (s *Storage) LatestRun(ctx context.Context) (*types.Run, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, generated_at, target_currency, anchor_currency, directory, row_limit, grand_total
		FROM runs
		ORDER BY generated_at DESC, id DESC
		LIMIT 1`,
	)

	return s.loadRun(ctx, row, "latest")
}

func (s *Storage) ListRuns(
	ctx context.Context,
	query *types.RunQuery,
) (*types.Page[*types.RunSummary], error) {
	offset, limit := storage.PageBounds(query)

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&total); err != nil {
		return nil, fmt.Errorf("unable to count runs: %w", err)
	}

	if total == 0 || offset >= total {
		return &types.Page[*types.RunSummary]{
			Results: nil,
			Total:   total,
		}, nil
	}

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, generated_at, target_currency, directory, row_count, grand_total
		FROM runs
		ORDER BY generated_at DESC, id DESC
		LIMIT ? OFFSET ?`,
		limit,
		offset,
	)
	if err != nil {
		return nil, fmt.Errorf("unable to fetch runs: %w", err)
	}
	defer rows.Close()

	items := make([]*types.RunSummary, 0, limit)

	for rows.Next() {
		var (
			summary     types.RunSummary
			target      string
			generatedAt int64
		)

		if err = rows.Scan(
			&summary.ID,
			&generatedAt,
			&target,
			&summary.Directory,
			&summary.RowCount,
			&summary.GrandTotal,
		); err != nil {
			return nil, fmt.Errorf("unable to scan run: %w", err)
		}

		summary.GeneratedAt = time.Unix(0, generatedAt).UTC()
		summary.Target = types.Currency(target)

		items = append(items, &summary)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("unable to fetch runs: %w", err)
	}

	return &types.Page[*types.RunSummary]{
		Results: items,
		Total:   total,
	}, nil
}

func (s *Storage) loadRun(ctx context.Context, row *sql.Row, lookup string) (*types.Run, error) {
	var (
		run         types.Run
		target      string
		anchor      string
		generatedAt int64
	)

	err := row.Scan(
		&run.ID,
		&generatedAt,
		&target,
		&anchor,
		&run.Directory,
		&run.Limit,
		&run.GrandTotal,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", storage.ErrRunNotFound, lookup)
		}

		return nil, fmt.Errorf("unable to fetch run: %w", err)
	}

	run.GeneratedAt = time.Unix(0, generatedAt).UTC()
	run.Target = types.Currency(target)
	run.Anchor = types.Currency(anchor)

	run.Rows, err = s.runRows(ctx, run.ID)
	if err != nil {
		return nil, err
	}

	return &run, nil
}

func (s *Storage) runRows(ctx context.Context, id string) ([]*types.Row, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT country_code, country_name, year, population, currency, fx_to_target, derived_value
		FROM run_rows
		WHERE run_id = ?
		ORDER BY position`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("unable to fetch run rows: %w", err)
	}
	defer rows.Close()

	out := make([]*types.Row, 0)

	for rows.Next() {
		var (
			row          types.Row
			currency     sql.NullString
			fxToTarget   sql.NullFloat64
			derivedValue sql.NullFloat64
		)

		if err = rows.Scan(
			&row.CountryCode,
			&row.CountryName,
			&row.Year,
			&row.Population,
			&currency,
			&fxToTarget,
			&derivedValue,
		); err != nil {
			return nil, fmt.Errorf("unable to scan run row: %w", err)
		}

		if currency.Valid {
			c := types.Currency(currency.String)
			row.Currency = &c
		}

		row.FxToTarget = floatPtr(fxToTarget)
		row.DerivedValue = floatPtr(derivedValue)

		out = append(out, &row)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("unable to fetch run rows: %w", err)
	}

	return out, nil
}

// migrate applies every embedded schema file, in name order
func migrate(ctx context.Context, db *sql.DB) error {
	names, err := fs.Glob(schemaFS, "schema/*.sql")
	if err != nil {
		return err
	}

	sort.Strings(names)

	for _, name := range names {
		raw, err := schemaFS.ReadFile(name)
		if err != nil {
			return fmt.Errorf("unable to read %s: %w", name, err)
		}

		if _, err = db.ExecContext(ctx, string(raw)); err != nil {
			return fmt.Errorf("unable to apply %s: %w", name, err)
		}
	}

	return nil
}

func isConstraintError(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}

	return sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY ||
		sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}

	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}

	f := v.Float64

	return &f
}
