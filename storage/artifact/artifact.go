// Package artifact persists pipeline runs to disk.
//
// Every run gets its own directory under the output root, named by the
// generation timestamp, holding the rows as CSV and JSON plus a metadata
// record. Directories are staged under a hidden temporary name and renamed
// into place once every file is written, so readers never observe a
// partially written run.
package artifact

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/xid"

	"github.com/sig-0/centavo/storage/types"
)

const (
	// DirLayout is the time layout of run directory names
	DirLayout = "2006-01-02T15-04-05"

	CSVFile  = "population_fx.csv"
	JSONFile = "population_fx.json"
	MetaFile = "run_meta.json"

	dirPerm os.FileMode = 0o755
)

var errInvalidRun = errors.New("invalid run")

// Header is the column order of the CSV artifact
var Header = []string{
	"country_code",
	"country_name",
	"year",
	"population",
	"currency",
	"fx_to_target",
	"derived_value",
}

// Meta is the run metadata record
type Meta struct {
	GeneratedAt time.Time      `json:"generated_at"`
	ID          string         `json:"id"`
	Target      types.Currency `json:"target_currency"`
	RowCount    int            `json:"row_count"`
	GrandTotal  float64        `json:"grand_total"`
}

// Writer writes run artifacts
type Writer struct {
	logger *slog.Logger
}

// NewWriter creates a new artifact writer
func NewWriter(opts ...Option) *Writer {
	w := &Writer{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write writes the run artifacts into a fresh directory under root,
// and returns the directory path
func (w *Writer) Write(root string, run *types.Run) (string, error) {
	if run == nil {
		return "", errInvalidRun
	}

	if err := os.MkdirAll(root, dirPerm); err != nil {
		return "", fmt.Errorf("unable to create output root: %w", err)
	}

	name := run.GeneratedAt.UTC().Format(DirLayout)

	staging, err := os.MkdirTemp(root, "."+name+"-*")
	if err != nil {
		return "", fmt.Errorf("unable to create staging directory: %w", err)
	}

	committed := false

	defer func() {
		if !committed {
			_ = os.RemoveAll(staging)
		}
	}()

	if err = os.Chmod(staging, dirPerm); err != nil {
		return "", fmt.Errorf("unable to set staging directory permissions: %w", err)
	}

	if err = writeFile(filepath.Join(staging, CSVFile), func(f io.Writer) error {
		return EncodeCSV(f, run.Rows)
	}); err != nil {
		return "", err
	}

	if err = writeJSON(filepath.Join(staging, JSONFile), rowsOrEmpty(run.Rows)); err != nil {
		return "", err
	}

	meta := &Meta{
		GeneratedAt: run.GeneratedAt.UTC(),
		ID:          run.ID,
		Target:      run.Target,
		RowCount:    len(run.Rows),
		GrandTotal:  run.GrandTotal,
	}

	if err = writeJSON(filepath.Join(staging, MetaFile), meta); err != nil {
		return "", err
	}

	dir, err := w.commit(root, name, staging, run.ID)
	if err != nil {
		return "", err
	}

	committed = true

	w.logger.Info(
		"wrote run artifacts",
		"id", run.ID,
		"dir", dir,
		"rows", len(run.Rows),
	)

	return dir, nil
}

// commit renames the staging directory to its final name.
// A name taken by an earlier run in the same second gets the run ID as suffix
func (w *Writer) commit(root, name, staging, id string) (string, error) {
	dir := filepath.Join(root, name)

	if _, err := os.Stat(dir); err == nil {
		if id == "" {
			id = xid.New().String()
		}

		dir = filepath.Join(root, name+"-"+id)

		w.logger.Warn(
			"run directory already exists, using a suffixed name",
			"dir", dir,
		)
	}

	if _, err := os.Stat(dir); err == nil {
		return "", fmt.Errorf("run directory %s already exists", dir)
	}

	if err := os.Rename(staging, dir); err != nil {
		return "", fmt.Errorf("unable to move run directory into place: %w", err)
	}

	return dir, nil
}

// EncodeCSV writes the header and the rows as CSV. Gaps are empty cells
func EncodeCSV(out io.Writer, rows []*types.Row) error {
	cw := csv.NewWriter(out)

	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("unable to write csv header: %w", err)
	}

	for _, row := range rows {
		record := []string{
			row.CountryCode,
			row.CountryName,
			strconv.Itoa(row.Year),
			strconv.FormatInt(row.Population, 10),
			"",
			formatFloat(row.FxToTarget),
			formatFloat(row.DerivedValue),
		}

		if row.Currency != nil {
			record[4] = row.Currency.String()
		}

		if err := cw.Write(record); err != nil {
			return fmt.Errorf("unable to write csv row %s: %w", row.CountryCode, err)
		}
	}

	cw.Flush()

	return cw.Error()
}

// ReadMeta reads the metadata record of a run directory
func ReadMeta(dir string) (*Meta, error) {
	raw, err := os.ReadFile(filepath.Join(dir, MetaFile))
	if err != nil {
		return nil, fmt.Errorf("unable to read run metadata: %w", err)
	}

	var meta Meta
	if err = json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("unable to decode run metadata: %w", err)
	}

	return &meta, nil
}

func writeJSON(path string, v any) error {
	return writeFile(path, func(f io.Writer) error {
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")

		return enc.Encode(v)
	})
}

func writeFile(path string, encode func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("unable to create %s: %w", filepath.Base(path), err)
	}

	if err = encode(f); err != nil {
		_ = f.Close()

		return fmt.Errorf("unable to write %s: %w", filepath.Base(path), err)
	}

	if err = f.Close(); err != nil {
		return fmt.Errorf("unable to close %s: %w", filepath.Base(path), err)
	}

	return nil
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}

	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// rowsOrEmpty keeps an empty run serialized as [] rather than null
func rowsOrEmpty(rows []*types.Row) []*types.Row {
	if rows == nil {
		return []*types.Row{}
	}

	return rows
}
