package auxdata

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

func errNotExist(path string) error {
	return fmt.Errorf("open %s: %w", path, os.ErrNotExist)
}

// regularTable has n frames spaced period apart and one column per variable,
// sample (i, j) being i*10+j
func regularTable(n int, period time.Duration, variables ...string) *memTable {
	timestamps := make([]time.Time, n)
	for i := range timestamps {
		timestamps[i] = t0.Add(time.Duration(i) * period)
	}
	return tableAt(timestamps, variables...)
}

func tableAt(timestamps []time.Time, variables ...string) *memTable {
	rows := make([][]float64, len(timestamps))
	for i := range rows {
		rows[i] = make([]float64, len(variables))
		for j := range variables {
			rows[i][j] = float64(i*10 + j)
		}
	}
	return &memTable{timestamps: timestamps, variables: variables, rows: rows}
}

// writeCSV writes table as a CSV file with a "timestamp" column
func writeCSV(t *testing.T, dir, name string, table *memTable) string {
	t.Helper()
	var sb strings.Builder
	sb.WriteString(strings.Join(append([]string{"timestamp"}, table.variables...), ","))
	sb.WriteString("\n")
	for i, ts := range table.timestamps {
		sb.WriteString(ts.Format("2006-01-02T15:04:05"))
		for _, v := range table.rows[i] {
			sb.WriteString(fmt.Sprintf(",%g", v))
		}
		sb.WriteString("\n")
	}
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(sb.String()), 0o644))
	return path
}
