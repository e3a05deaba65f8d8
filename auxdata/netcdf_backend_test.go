package auxdata

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeVariable struct {
	dims   []string
	units  string
	values interface{}
}

func (v *fakeVariable) Len() int64 {
	switch s := v.values.(type) {
	case []float64:
		return int64(len(s))
	case []int32:
		return int64(len(s))
	case []float32:
		return int64(len(s))
	case []string:
		return int64(len(s))
	}
	return 0
}

func (v *fakeVariable) Dimensions() []string {
	return v.dims
}

func (v *fakeVariable) GetSlice(begin, end int64) (interface{}, error) {
	switch s := v.values.(type) {
	case []float64:
		return s[begin:end], nil
	case []int32:
		return s[begin:end], nil
	case []float32:
		return s[begin:end], nil
	case []string:
		return s[begin:end], nil
	}
	return nil, errors.New("unsupported")
}

func (v *fakeVariable) Units() string {
	return v.units
}

type fakeDataset struct {
	order  []string
	vars   map[string]*fakeVariable
	closed bool
}

func (d *fakeDataset) ListVariables() []string {
	return d.order
}

func (d *fakeDataset) Variable(name string) (gridVariable, error) {
	v, ok := d.vars[name]
	if !ok {
		return nil, fmt.Errorf("variable %q not found", name)
	}
	return v, nil
}

func (d *fakeDataset) Close() {
	d.closed = true
}

// fakeGrid builds a dataset of n frames sampled every step seconds since t0
func fakeGrid(n int, step float64) *fakeDataset {
	ts := make([]float64, n)
	temp := make([]float32, n)
	depth := make([]int32, n)
	for i := range ts {
		ts[i] = float64(i) * step
		temp[i] = float32(i) + 0.5
		depth[i] = int32(100 + i)
	}
	return &fakeDataset{
		order: []string{"timestamps", "temperature", "depth", "grid"},
		vars: map[string]*fakeVariable{
			"timestamps":  {dims: []string{"time"}, units: "seconds since 2023-01-01 00:00:00", values: ts},
			"temperature": {dims: []string{"time"}, values: temp},
			"depth":       {dims: []string{"time"}, values: depth},
			"grid":        {dims: []string{"lat", "lon"}, values: []float64{1, 2}},
		},
	}
}

func TestNetCDFBackend(t *testing.T) {
	datasets := map[string]*fakeDataset{
		"a.nc": fakeGrid(10, 1),
		"b.nc": fakeGrid(4, 0.5),
	}
	b := newNetCDFBackend(func(path string) (gridDataset, error) {
		ds, ok := datasets[path]
		if !ok {
			return nil, fmt.Errorf("no such file %s", path)
		}
		ds.closed = false
		return ds, nil
	})
	ctx := context.Background()

	info, err := b.Info(ctx, "a.nc", "timestamps")
	require.NoError(t, err)
	assert.Equal(t, 10, info.Frames)
	assert.Equal(t, 1.0, info.SampleRate.Hz())
	assert.Equal(t, []string{"temperature", "depth"}, info.Variables)
	assert.Equal(t, 9*time.Second, info.Duration)
	assert.True(t, t0.Equal(info.Start))

	frames, err := b.Read(ctx, "a.nc", "timestamps", 2, 5, nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{2.5, 102}, frames.Row(0))
	assert.Equal(t, []float64{4.5, 104}, frames.Row(2))

	frames, err = b.Read(ctx, "a.nc", "timestamps", 0, 2, []string{"depth"})
	require.NoError(t, err)
	assert.Equal(t, []float64{100, 101}, frames.Column(0))

	_, err = b.Read(ctx, "a.nc", "timestamps", 0, 2, []string{"grid"})
	assert.ErrorIs(t, err, ErrUnknownVariable)

	info, err = b.Info(ctx, "b.nc", "timestamps")
	require.NoError(t, err)
	assert.True(t, datasets["a.nc"].closed)
	assert.Equal(t, "b.nc", b.Path())
	assert.Equal(t, 2.0, info.SampleRate.Hz())
	assert.Equal(t, time.Second, info.Duration)

	require.NoError(t, b.Close())
	assert.True(t, datasets["b.nc"].closed)
	assert.Equal(t, "", b.Path())
	require.NoError(t, b.Close())

	_, err = b.Info(ctx, "a.nc", "time")
	assert.Error(t, err)
}

func TestParseTimeUnits(t *testing.T) {
	tests := []struct {
		units     string
		wantUnit  time.Duration
		wantEpoch time.Time
		wantErr   bool
	}{
		{"", time.Second, time.Unix(0, 0).UTC(), false},
		{"seconds since 2023-01-01 00:00:00", time.Second, t0, false},
		{"days since 2023-01-01", 24 * time.Hour, t0, false},
		{"hours since 2023-01-01T00:00:00Z", time.Hour, t0, false},
		{"milliseconds since 2023-01-01 00:00:00 UTC", time.Millisecond, t0, false},
		{"fortnights since 2023-01-01", 0, time.Time{}, true},
		{"seconds since yesterday", 0, time.Time{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.units, func(t *testing.T) {
			unit, epoch, err := parseTimeUnits(tt.units)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantUnit, unit)
			assert.True(t, tt.wantEpoch.Equal(epoch), "epoch = %v", epoch)
		})
	}
}
