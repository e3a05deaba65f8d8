package auxdata

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"time"

	"github.com/osekit/auxquerier/core"
	"github.com/osekit/auxquerier/metrics"
)

// DefaultTimestampColumn names the timestamp column/variable when none is given
const DefaultTimestampColumn = "timestamps"

// Backend reads one family of auxiliary files. It keeps at most one file open:
// touching another path releases the previous one.
type Backend interface {
	// Info parses the timestamp sequence of path and reports its sampling and extent
	Info(ctx context.Context, path, timestampColumn string) (core.FileInfo, error)
	// Read returns frames [start, stop) of variables, all data variables when empty.
	// Bounds are not checked here.
	Read(ctx context.Context, path, timestampColumn string, start, stop int, variables []string) (*core.Frames, error)
	// ReadTimestamps returns the full timestamp sequence of path
	ReadTimestamps(ctx context.Context, path, timestampColumn string) ([]time.Time, error)
	// Path is the currently open file, empty when nothing is open
	Path() string
	// Close releases the open file. Safe to call when nothing is open.
	Close() error
}

// summarize builds the FileInfo of a file from its timestamp sequence
func summarize(ctx context.Context, path string, timestamps []time.Time, variables []string) core.FileInfo {
	info := core.FileInfo{
		SampleRate: samplingOf(timestamps),
		Frames:     len(timestamps),
		Variables:  variables,
	}
	if n := len(timestamps); n > 0 {
		info.Start = timestamps[0]
		if d := timestamps[n-1].Sub(timestamps[0]).Truncate(time.Second); d > 0 {
			info.Duration = d
		}
	}
	if !info.SampleRate.IsRegular() {
		metrics.RecordIrregularFile(FormatOf(path).String())
		core.Warnf(ctx, "%v in %s, falling back to timestamp search", ErrInconsistentSampleRate, path)
	}
	return info
}

// samplingOf is regular only when every delta between successive timestamps is the same
func samplingOf(timestamps []time.Time) core.SampleRate {
	if len(timestamps) < 2 {
		return core.Irregular()
	}
	period := timestamps[1].Sub(timestamps[0])
	for i := 2; i < len(timestamps); i++ {
		if timestamps[i].Sub(timestamps[i-1]) != period {
			return core.Irregular()
		}
	}
	return core.Regular(period)
}

// dataVariables drops the timestamp column from columns
func dataVariables(columns []string, timestampColumn string) []string {
	vars := make([]string, 0, len(columns))
	for _, c := range columns {
		if c != timestampColumn {
			vars = append(vars, c)
		}
	}
	return vars
}

// selectVariables checks variables against the known ones, defaulting to all of them
func selectVariables(path string, known, variables []string) ([]string, error) {
	if len(variables) == 0 {
		return known, nil
	}
	for _, v := range variables {
		if !contains(known, v) {
			return nil, &VariableError{Name: v, Path: path}
		}
	}
	return variables, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02",
}

// toTime converts a scanned cell to a timestamp
func toTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		for _, layout := range timestampLayouts {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed, nil
			}
		}
		return time.Time{}, fmt.Errorf("unrecognised timestamp %q", t)
	case []byte:
		return toTime(string(t))
	case nil:
		return time.Time{}, fmt.Errorf("missing timestamp")
	default:
		return time.Time{}, fmt.Errorf("unsupported timestamp value %v (%T)", v, v)
	}
}

// toFloat converts a scanned cell to a sample. NULL reads as NaN.
func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case nil:
		return math.NaN(), nil
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int16:
		return float64(n), nil
	case int8:
		return float64(n), nil
	case int:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case uint32:
		return float64(n), nil
	case uint16:
		return float64(n), nil
	case uint8:
		return float64(n), nil
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	case string:
		if n == "" {
			return math.NaN(), nil
		}
		return strconv.ParseFloat(n, 64)
	case []byte:
		return toFloat(string(n))
	case *big.Int:
		f, _ := new(big.Float).SetInt(n).Float64()
		return f, nil
	case interface{ Float64() float64 }:
		return n.Float64(), nil
	default:
		return 0, fmt.Errorf("unsupported sample value %v (%T)", v, v)
	}
}
