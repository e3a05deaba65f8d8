package core

import (
	"fmt"
	"math"
	"time"
)

// SampleRate describes how frames are spaced in time.
// A regular rate carries the constant spacing between frames, an irregular one carries nothing
// and forces index resolution to search the timestamp sequence.
type SampleRate struct {
	period time.Duration
}

// Regular returns the sample rate of frames spaced period apart.
// A non-positive period is irregular.
func Regular(period time.Duration) SampleRate {
	if period <= 0 {
		return SampleRate{}
	}
	return SampleRate{period: period}
}

// Irregular returns the sample rate of a file whose frame spacing varies
func Irregular() SampleRate {
	return SampleRate{}
}

func (s SampleRate) IsRegular() bool {
	return s.period > 0
}

// Period is the spacing between two frames, zero when irregular
func (s SampleRate) Period() time.Duration {
	return s.period
}

// Hz is the number of frames per second, NaN when irregular
func (s SampleRate) Hz() float64 {
	if !s.IsRegular() {
		return math.NaN()
	}
	return float64(time.Second) / float64(s.period)
}

func (s SampleRate) String() string {
	if !s.IsRegular() {
		return "irregular"
	}
	return fmt.Sprintf("%gHz", s.Hz())
}

// FileInfo is what a backend learns about a file when opening it
type FileInfo struct {
	SampleRate SampleRate
	Frames     int
	// Variables lists the data columns/variables, the timestamp one excluded
	Variables []string
	Duration  time.Duration
	// Start is the timestamp of the first frame, zero for an empty file
	Start time.Time
}

// VariableCount is the number of data variables, the timestamp one excluded
func (i FileInfo) VariableCount() int {
	return len(i.Variables)
}

// Frames is a row-major (frames x variables) array of samples
type Frames struct {
	Rows int
	Cols int
	// Variables names the columns, in order
	Variables []string
	Data      []float64
}

// NewFrames allocates a zeroed rows x cols array
func NewFrames(rows int, variables []string) *Frames {
	return &Frames{
		Rows:      rows,
		Cols:      len(variables),
		Variables: variables,
		Data:      make([]float64, rows*len(variables)),
	}
}

// Shape returns (frames, variables)
func (f *Frames) Shape() (int, int) {
	return f.Rows, f.Cols
}

func (f *Frames) At(row, col int) float64 {
	return f.Data[row*f.Cols+col]
}

func (f *Frames) Set(row, col int, v float64) {
	f.Data[row*f.Cols+col] = v
}

// Row returns a view of one frame
func (f *Frames) Row(row int) []float64 {
	return f.Data[row*f.Cols : (row+1)*f.Cols]
}

// Column copies out the samples of one variable
func (f *Frames) Column(col int) []float64 {
	out := make([]float64, f.Rows)
	for i := range out {
		out[i] = f.At(i, col)
	}
	return out
}
