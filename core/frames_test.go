package core

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSampleRate(t *testing.T) {
	r := Regular(100 * time.Millisecond)
	assert.True(t, r.IsRegular())
	assert.InDelta(t, 10.0, r.Hz(), 1e-9)
	assert.Equal(t, "10Hz", r.String())

	for _, irr := range []SampleRate{Irregular(), Regular(0), Regular(-time.Second)} {
		assert.False(t, irr.IsRegular())
		assert.True(t, math.IsNaN(irr.Hz()))
		assert.Equal(t, time.Duration(0), irr.Period())
		assert.Equal(t, "irregular", irr.String())
	}
}

func TestFrames(t *testing.T) {
	f := NewFrames(3, []string{"a", "b"})
	rows, cols := f.Shape()
	assert.Equal(t, 3, rows)
	assert.Equal(t, 2, cols)

	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			f.Set(i, j, float64(i*10+j))
		}
	}
	assert.Equal(t, 21.0, f.At(2, 1))
	assert.Equal(t, []float64{10, 11}, f.Row(1))
	assert.Equal(t, []float64{1, 11, 21}, f.Column(1))

	empty := NewFrames(0, []string{"a"})
	assert.Empty(t, empty.Data)
	assert.Empty(t, empty.Column(0))
}

func TestFileInfoVariableCount(t *testing.T) {
	info := FileInfo{Variables: []string{"depth", "temperature"}}
	assert.Equal(t, 2, info.VariableCount())
}
