package auxdata

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"

	"github.com/osekit/auxquerier/core"
	"github.com/osekit/auxquerier/metrics"
)

// gridDataset is the part of an open NetCDF file the backend uses
type gridDataset interface {
	ListVariables() []string
	Variable(name string) (gridVariable, error)
	Close()
}

// gridVariable is one variable of a gridded dataset, sliced along its first dimension
type gridVariable interface {
	Len() int64
	Dimensions() []string
	GetSlice(begin, end int64) (interface{}, error)
	// Units is the CF "units" attribute, empty when absent
	Units() string
}

// NetCDFBackend reads gridded auxiliary files. The open dataset is kept until another path is requested.
type NetCDFBackend struct {
	openDataset func(path string) (gridDataset, error)
	path        string
	dataset     gridDataset
	// variables sharing the timestamp dimension, keyed by timestamp variable
	variables map[string][]string
}

// NewNetCDFBackend creates a backend reading files with go-native-netcdf
func NewNetCDFBackend() *NetCDFBackend {
	return newNetCDFBackend(openNetCDF)
}

func newNetCDFBackend(open func(path string) (gridDataset, error)) *NetCDFBackend {
	return &NetCDFBackend{openDataset: open}
}

func (b *NetCDFBackend) Path() string {
	return b.path
}

func (b *NetCDFBackend) open(ctx context.Context, path string) error {
	if b.dataset != nil && b.path == path {
		return nil
	}
	if b.dataset != nil {
		core.Debugf(ctx, "Switching NetCDF file %s -> %s", b.path, path)
		metrics.RecordEviction(Gridded.String())
		b.Close()
	}
	ds, err := b.openDataset(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	b.dataset = ds
	b.path = path
	b.variables = make(map[string][]string)
	metrics.RecordOpen(Gridded.String())
	return nil
}

// dataVariables lists the one-dimensional variables indexed like the timestamp variable
func (b *NetCDFBackend) dataVariables(timestampVariable string) ([]string, error) {
	if vars, ok := b.variables[timestampVariable]; ok {
		return vars, nil
	}
	tv, err := b.timestampVariable(timestampVariable)
	if err != nil {
		return nil, err
	}
	dims := tv.Dimensions()

	var vars []string
	for _, name := range b.dataset.ListVariables() {
		if name == timestampVariable {
			continue
		}
		v, err := b.dataset.Variable(name)
		if err != nil {
			return nil, fmt.Errorf("failed to get variable %q: %w", name, err)
		}
		if sameDimensions(v.Dimensions(), dims) {
			vars = append(vars, name)
		}
	}
	b.variables[timestampVariable] = vars
	return vars, nil
}

func (b *NetCDFBackend) timestampVariable(name string) (gridVariable, error) {
	v, err := b.dataset.Variable(name)
	if err != nil {
		return nil, fmt.Errorf("timestamp variable %q not found in %s: %w", name, b.path, err)
	}
	if len(v.Dimensions()) != 1 {
		return nil, fmt.Errorf("timestamp variable %q of %s is not one-dimensional", name, b.path)
	}
	return v, nil
}

func (b *NetCDFBackend) Info(ctx context.Context, path, timestampVariable string) (core.FileInfo, error) {
	timestamps, err := b.ReadTimestamps(ctx, path, timestampVariable)
	if err != nil {
		return core.FileInfo{}, err
	}
	vars, err := b.dataVariables(timestampVariable)
	if err != nil {
		return core.FileInfo{}, err
	}
	return summarize(ctx, path, timestamps, vars), nil
}

func (b *NetCDFBackend) ReadTimestamps(ctx context.Context, path, timestampVariable string) ([]time.Time, error) {
	if err := b.open(ctx, path); err != nil {
		return nil, err
	}
	tv, err := b.timestampVariable(timestampVariable)
	if err != nil {
		return nil, err
	}
	values, err := tv.GetSlice(0, tv.Len())
	if err != nil {
		return nil, fmt.Errorf("failed to read %q of %s: %w", timestampVariable, path, err)
	}
	if s, ok := values.([]string); ok {
		timestamps := make([]time.Time, len(s))
		for i, v := range s {
			if timestamps[i], err = toTime(v); err != nil {
				return nil, fmt.Errorf("%s frame %d: %w", path, i, err)
			}
		}
		return timestamps, nil
	}

	offsets, err := toFloats(values)
	if err != nil {
		return nil, fmt.Errorf("timestamp variable %q of %s: %w", timestampVariable, path, err)
	}
	unit, epoch, err := parseTimeUnits(tv.Units())
	if err != nil {
		return nil, fmt.Errorf("timestamp variable %q of %s: %w", timestampVariable, path, err)
	}
	timestamps := make([]time.Time, len(offsets))
	for i, o := range offsets {
		timestamps[i] = epoch.Add(time.Duration(math.Round(o * float64(unit))))
	}
	return timestamps, nil
}

func (b *NetCDFBackend) Read(ctx context.Context, path, timestampVariable string, start, stop int, variables []string) (*core.Frames, error) {
	if err := b.open(ctx, path); err != nil {
		return nil, err
	}
	known, err := b.dataVariables(timestampVariable)
	if err != nil {
		return nil, err
	}
	variables, err = selectVariables(path, known, variables)
	if err != nil {
		return nil, err
	}

	frames := core.NewFrames(max(stop-start, 0), variables)
	if frames.Rows == 0 {
		return frames, nil
	}
	for col, name := range variables {
		v, err := b.dataset.Variable(name)
		if err != nil {
			return nil, fmt.Errorf("failed to get variable %q: %w", name, err)
		}
		raw, err := v.GetSlice(int64(start), int64(stop))
		if err != nil {
			return nil, fmt.Errorf("failed to read %q of %s: %w", name, path, err)
		}
		samples, err := toFloats(raw)
		if err != nil {
			return nil, fmt.Errorf("variable %q of %s: %w", name, path, err)
		}
		if len(samples) != frames.Rows {
			return nil, fmt.Errorf("variable %q of %s: got %d frames, want %d", name, path, len(samples), frames.Rows)
		}
		for row, s := range samples {
			frames.Set(row, col, s)
		}
	}
	return frames, nil
}

// Close releases the open dataset
func (b *NetCDFBackend) Close() error {
	if b.dataset != nil {
		b.dataset.Close()
	}
	b.dataset = nil
	b.path = ""
	b.variables = nil
	return nil
}

func sameDimensions(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// toFloats widens a one-dimensional NetCDF slice to float64
func toFloats(values interface{}) ([]float64, error) {
	switch v := values.(type) {
	case []float64:
		return v, nil
	case []float32:
		return widen(v), nil
	case []int64:
		return widen(v), nil
	case []int32:
		return widen(v), nil
	case []int16:
		return widen(v), nil
	case []int8:
		return widen(v), nil
	case []uint64:
		return widen(v), nil
	case []uint32:
		return widen(v), nil
	case []uint16:
		return widen(v), nil
	case []uint8:
		return widen(v), nil
	default:
		return nil, fmt.Errorf("unsupported variable type %T, expected a one-dimensional numeric variable", values)
	}
}

func widen[T float32 | int64 | int32 | int16 | int8 | uint64 | uint32 | uint16 | uint8](in []T) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}

var timeUnits = map[string]time.Duration{
	"nanoseconds":  time.Nanosecond,
	"microseconds": time.Microsecond,
	"milliseconds": time.Millisecond,
	"seconds":      time.Second,
	"second":       time.Second,
	"secs":         time.Second,
	"s":            time.Second,
	"minutes":      time.Minute,
	"minute":       time.Minute,
	"hours":        time.Hour,
	"hour":         time.Hour,
	"days":         24 * time.Hour,
	"day":          24 * time.Hour,
}

var epochLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05 Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// parseTimeUnits reads CF units such as "seconds since 2023-01-01 00:00:00".
// Empty units mean seconds since the Unix epoch.
func parseTimeUnits(units string) (time.Duration, time.Time, error) {
	units = strings.TrimSpace(units)
	if units == "" {
		return time.Second, time.Unix(0, 0).UTC(), nil
	}
	unitName, reference, found := strings.Cut(units, " since ")
	unit, ok := timeUnits[strings.ToLower(strings.TrimSpace(unitName))]
	if !ok {
		return 0, time.Time{}, fmt.Errorf("unsupported time units %q", units)
	}
	if !found {
		return unit, time.Unix(0, 0).UTC(), nil
	}
	reference = strings.TrimSuffix(strings.TrimSpace(reference), " UTC")
	for _, layout := range epochLayouts {
		if epoch, err := time.Parse(layout, reference); err == nil {
			return unit, epoch, nil
		}
	}
	return 0, time.Time{}, fmt.Errorf("unsupported reference time in units %q", units)
}

type netcdfDataset struct {
	group api.Group
}

func openNetCDF(path string) (gridDataset, error) {
	g, err := netcdf.Open(path)
	if err != nil {
		return nil, err
	}
	return netcdfDataset{group: g}, nil
}

func (d netcdfDataset) ListVariables() []string {
	return d.group.ListVariables()
}

func (d netcdfDataset) Variable(name string) (gridVariable, error) {
	vg, err := d.group.GetVarGetter(name)
	if err != nil {
		return nil, err
	}
	return netcdfVariable{getter: vg}, nil
}

func (d netcdfDataset) Close() {
	d.group.Close()
}

type netcdfVariable struct {
	getter api.VarGetter
}

func (v netcdfVariable) Len() int64 {
	return v.getter.Len()
}

func (v netcdfVariable) Dimensions() []string {
	return v.getter.Dimensions()
}

func (v netcdfVariable) GetSlice(begin, end int64) (interface{}, error) {
	return v.getter.GetSlice(begin, end)
}

func (v netcdfVariable) Units() string {
	attrs := v.getter.Attributes()
	if attrs == nil {
		return ""
	}
	u, ok := attrs.Get("units")
	if !ok {
		return ""
	}
	s, _ := u.(string)
	return s
}
