package auxdata

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/osekit/auxquerier/core"
	"github.com/osekit/auxquerier/metrics"
)

// csvView is the DuckDB view bound to the open CSV file
const csvView = "aux_file"

// CSVBackend reads tabular auxiliary files through DuckDB.
// The open file is a view over read_csv_auto, so every query re-parses the file.
type CSVBackend struct {
	DB      *sql.DB
	path    string
	columns []string
}

// NewCSVBackend creates a backend with nothing open. The DuckDB connection is made on first use.
func NewCSVBackend() *CSVBackend {
	return &CSVBackend{}
}

// Path is the currently open CSV file
func (b *CSVBackend) Path() string {
	return b.path
}

// open binds the view to path, replacing whatever file was bound before
func (b *CSVBackend) open(ctx context.Context, path string) error {
	if b.DB == nil {
		db, err := sql.Open("duckdb", "")
		if err != nil {
			return fmt.Errorf("failed to initialize DuckDB: %w", err)
		}
		b.DB = db
	}
	if b.path == path {
		return nil
	}
	if b.path != "" {
		core.Debugf(ctx, "Switching CSV file %s -> %s", b.path, path)
		metrics.RecordEviction(Tabular.String())
	}

	query := fmt.Sprintf("CREATE OR REPLACE VIEW %s AS SELECT * FROM read_csv_auto(%s, header=true)",
		csvView, quoteLiteral(path))
	if _, err := b.DB.ExecContext(ctx, query); err != nil {
		b.path, b.columns = "", nil
		return fmt.Errorf("failed to open %s: %w", path, err)
	}

	rows, err := b.DB.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT 0", csvView))
	if err != nil {
		b.path, b.columns = "", nil
		return fmt.Errorf("failed to read header of %s: %w", path, err)
	}
	defer rows.Close()
	columns, err := rows.Columns()
	if err != nil {
		b.path, b.columns = "", nil
		return fmt.Errorf("failed to get columns of %s: %w", path, err)
	}

	b.path = path
	b.columns = columns
	metrics.RecordOpen(Tabular.String())
	return nil
}

// Columns lists every column of the open file, timestamp included
func (b *CSVBackend) Columns() []string {
	return b.columns
}

func (b *CSVBackend) Info(ctx context.Context, path, timestampColumn string) (core.FileInfo, error) {
	timestamps, err := b.ReadTimestamps(ctx, path, timestampColumn)
	if err != nil {
		return core.FileInfo{}, err
	}
	return summarize(ctx, path, timestamps, dataVariables(b.columns, timestampColumn)), nil
}

func (b *CSVBackend) ReadTimestamps(ctx context.Context, path, timestampColumn string) ([]time.Time, error) {
	if err := b.open(ctx, path); err != nil {
		return nil, err
	}
	if !contains(b.columns, timestampColumn) {
		return nil, fmt.Errorf("timestamp column %q not found in %s", timestampColumn, path)
	}

	rows, err := b.DB.QueryContext(ctx, fmt.Sprintf("SELECT %s FROM %s", quoteIdent(timestampColumn), csvView))
	if err != nil {
		return nil, fmt.Errorf("query execution failed: %w", err)
	}
	defer rows.Close()

	var timestamps []time.Time
	for rows.Next() {
		var v any
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("error scanning row: %w", err)
		}
		ts, err := toTime(v)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", path, len(timestamps), err)
		}
		timestamps = append(timestamps, ts)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return timestamps, nil
}

func (b *CSVBackend) Read(ctx context.Context, path, timestampColumn string, start, stop int, variables []string) (*core.Frames, error) {
	if err := b.open(ctx, path); err != nil {
		return nil, err
	}
	variables, err := selectVariables(path, dataVariables(b.columns, timestampColumn), variables)
	if err != nil {
		return nil, err
	}

	frames := core.NewFrames(max(stop-start, 0), variables)
	if frames.Rows == 0 || frames.Cols == 0 {
		return frames, nil
	}

	cols := make([]string, len(variables))
	for i, v := range variables {
		cols[i] = quoteIdent(v)
	}
	query := fmt.Sprintf("SELECT %s FROM %s LIMIT %d OFFSET %d",
		strings.Join(cols, ", "), csvView, frames.Rows, start)

	began := time.Now()
	rows, err := b.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query execution failed: %w", err)
	}
	defer rows.Close()

	values := make([]any, frames.Cols)
	valuePtrs := make([]any, frames.Cols)
	for i := range values {
		valuePtrs[i] = &values[i]
	}

	row := 0
	for rows.Next() && row < frames.Rows {
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("error scanning row: %w", err)
		}
		for col, v := range values {
			f, err := toFloat(v)
			if err != nil {
				return nil, fmt.Errorf("%s frame %d, column %q: %w", path, start+row, variables[col], err)
			}
			frames.Set(row, col, f)
		}
		row++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	frames.Rows = row
	frames.Data = frames.Data[:row*frames.Cols]

	core.Debugf(ctx, "Read %d frames of %s in: %v", row, path, time.Since(began))
	return frames, nil
}

// Close drops the view and the DuckDB connection
func (b *CSVBackend) Close() error {
	b.path, b.columns = "", nil
	if b.DB == nil {
		return nil
	}
	err := b.DB.Close()
	b.DB = nil
	return err
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
