package sql

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/sig-0/centavo/storage"
	"github.com/sig-0/centavo/storage/types"
)

const (
	// amountScale is the number of decimals kept for derived values and totals
	amountScale = 4

	uniqueViolation = "23505"
)

var rowColumns = []string{
	"run_id",
	"position",
	"country_code",
	"country_name",
	"year",
	"population",
	"currency",
	"fx_to_target",
	"derived_value",
}

// DB is the subset of a pgx connection (or pool) the storage uses
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Storage struct {
	db DB
}

func NewStorage(db DB) *Storage {
	return &Storage{
		db: db,
	}
}

func (s *Storage) SaveRun(ctx context.Context, run *types.Run) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("unable to begin transaction: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx) // no-op after commit
	}()

	_, err = tx.Exec(
		ctx,
		`INSERT INTO runs (id, generated_at, target_currency, anchor_currency, directory, row_limit, row_count, grand_total)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		run.ID,
		timeToTimestampz(run.GeneratedAt),
		run.Target.String(),
		run.Anchor.String(),
		run.Directory,
		run.Limit,
		len(run.Rows),
		floatToNumeric(run.GrandTotal, amountScale),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("%w: %s", storage.ErrDuplicateRun, run.ID)
		}

		return fmt.Errorf("unable to save run: %w", err)
	}

	_, err = tx.CopyFrom(
		ctx,
		pgx.Identifier{"run_rows"},
		rowColumns,
		pgx.CopyFromSlice(len(run.Rows), func(i int) ([]any, error) {
			row := run.Rows[i]

			var currency pgtype.Text
			if row.Currency != nil {
				currency = pgtype.Text{String: row.Currency.String(), Valid: true}
			}

			return []any{
				run.ID,
				i,
				row.CountryCode,
				row.CountryName,
				row.Year,
				row.Population,
				currency,
				nullableFloat8(row.FxToTarget),
				nullableNumeric(row.DerivedValue, amountScale),
			}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("unable to save run rows: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("unable to commit run: %w", err)
	}

	return nil
}

func (s *Storage) Run(ctx context.Context, id string) (*types.Run, error) {
	row := s.db.QueryRow(
		ctx,
		`SELECT id, generated_at, target_currency, anchor_currency, directory, row_limit, grand_total
		FROM runs
		WHERE id = $1`,
		id,
	)

	return s.loadRun(ctx, row, id)
}

func (s *Storage) LatestRun(ctx context.Context) (*types.Run, error) {
	row := s.db.QueryRow(
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
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM runs`).Scan(&total); err != nil {
		return nil, fmt.Errorf("unable to count runs: %w", err)
	}

	if total == 0 || offset >= total {
		return &types.Page[*types.RunSummary]{
			Results: nil,
			Total:   total,
		}, nil // valid case
	}

	rows, err := s.db.Query(
		ctx,
		`SELECT id, generated_at, target_currency, directory, row_count, grand_total
		FROM runs
		ORDER BY generated_at DESC, id DESC
		LIMIT $1 OFFSET $2`,
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
			generatedAt pgtype.Timestamptz
			grandTotal  pgtype.Numeric
		)

		if err = rows.Scan(
			&summary.ID,
			&generatedAt,
			&target,
			&summary.Directory,
			&summary.RowCount,
			&grandTotal,
		); err != nil {
			return nil, fmt.Errorf("unable to scan run: %w", err)
		}

		summary.GeneratedAt = timestampzToTime(generatedAt)
		summary.Target = types.Currency(target)
		summary.GrandTotal = numericToFloat(grandTotal)

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

// loadRun scans the run header, and fetches its rows
func (s *Storage) loadRun(ctx context.Context, row pgx.Row, lookup string) (*types.Run, error) {
	var (
		run         types.Run
		target      string
		anchor      string
		generatedAt pgtype.Timestamptz
		grandTotal  pgtype.Numeric
	)

	err := row.Scan(
		&run.ID,
		&generatedAt,
		&target,
		&anchor,
		&run.Directory,
		&run.Limit,
		&grandTotal,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", storage.ErrRunNotFound, lookup)
		}

		return nil, fmt.Errorf("unable to fetch run: %w", err)
	}

	run.GeneratedAt = timestampzToTime(generatedAt)
	run.Target = types.Currency(target)
	run.Anchor = types.Currency(anchor)
	run.GrandTotal = numericToFloat(grandTotal)

	run.Rows, err = s.runRows(ctx, run.ID)
	if err != nil {
		return nil, err
	}

	return &run, nil
}

func (s *Storage) runRows(ctx context.Context, id string) ([]*types.Row, error) {
	rows, err := s.db.Query(
		ctx,
		`SELECT country_code, country_name, year, population, currency, fx_to_target, derived_value
		FROM run_rows
		WHERE run_id = $1
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
			currency     pgtype.Text
			fxToTarget   pgtype.Float8
			derivedValue pgtype.Numeric
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

		row.FxToTarget = float8ToNullable(fxToTarget)
		row.DerivedValue = numericToNullableFloat(derivedValue)

		out = append(out, &row)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("unable to fetch run rows: %w", err)
	}

	return out, nil
}

// floatToNumeric converts the float value to postgres numeric,
// rounded to the given number of decimals
func floatToNumeric(value float64, scale int32) pgtype.Numeric {
	scaled := new(big.Float).SetFloat64(math.Round(value * math.Pow10(int(scale))))
	i, _ := scaled.Int(nil)

	return pgtype.Numeric{
		Int:   i,
		Exp:   -scale,
		Valid: true,
	}
}

// nullableNumeric converts the optional float value to postgres numeric
func nullableNumeric(value *float64, scale int32) pgtype.Numeric {
	if value == nil {
		return pgtype.Numeric{}
	}

	return floatToNumeric(*value, scale)
}

// numericToFloat converts the postgres value to float
func numericToFloat(value pgtype.Numeric) float64 {
	if !value.Valid || value.Int == nil {
		return 0
	}

	f, _ := new(big.Rat).SetInt(value.Int).Float64()

	if value.Exp > 0 {
		f *= math.Pow10(int(value.Exp))
	} else if value.Exp < 0 {
		f /= math.Pow10(int(-value.Exp))
	}

	return f
}

// numericToNullableFloat converts the postgres value to an optional float
func numericToNullableFloat(value pgtype.Numeric) *float64 {
	if !value.Valid || value.Int == nil {
		return nil
	}

	f := numericToFloat(value)

	return &f
}

// nullableFloat8 converts the optional float value to postgres double precision.
// Rates keep every significant digit, whatever their magnitude
func nullableFloat8(value *float64) pgtype.Float8 {
	if value == nil {
		return pgtype.Float8{}
	}

	return pgtype.Float8{Float64: *value, Valid: true}
}

// float8ToNullable converts the postgres value to an optional float
func float8ToNullable(value pgtype.Float8) *float64 {
	if !value.Valid {
		return nil
	}

	f := value.Float64

	return &f
}

// timeToTimestampz converts the time value to postgres timestamp
func timeToTimestampz(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{
		Time:  t.UTC(),
		Valid: true,
	}
}

// timestampzToTime converts the postgres timestamp value to time
func timestampzToTime(ts pgtype.Timestamptz) time.Time {
	if !ts.Valid {
		return time.Time{}
	}

	return ts.Time.UTC()
}
