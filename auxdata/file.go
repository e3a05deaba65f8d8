package auxdata

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/afero"

	"github.com/osekit/auxquerier/core"
)

// Options configures how a File establishes its begin timestamp
type Options struct {
	// TimestampColumn names the timestamp column or variable, DefaultTimestampColumn when empty
	TimestampColumn string
	// Begin overrules any timestamp found in the file name or the file itself
	Begin time.Time
	// StrptimeFormat locates the begin timestamp in the file name, e.g. "%y%m%d_%H%M%S"
	StrptimeFormat string
	// Timezone localizes zone-less timestamps and converts zoned ones
	Timezone *time.Location
	// Fs is the filesystem files are moved on, the OS one when nil
	Fs afero.Fs
}

// File is an auxiliary file whose frames are addressed by timestamp
type File struct {
	Path            string
	TimestampColumn string
	Begin           time.Time
	End             time.Time
	Info            core.FileInfo

	variables []string
	manager   *Manager
	fs        afero.Fs
}

// Open reads the metadata of the auxiliary file at path through m
func Open(ctx context.Context, m *Manager, path string, opts Options) (*File, error) {
	if opts.Begin.IsZero() && opts.StrptimeFormat == "" && opts.TimestampColumn == "" {
		return nil, ErrMissingBeginSource
	}
	column := opts.TimestampColumn
	if column == "" {
		column = DefaultTimestampColumn
	}
	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}

	info, err := m.Info(ctx, path, column)
	if err != nil {
		return nil, err
	}

	var begin time.Time
	switch {
	case !opts.Begin.IsZero():
		begin = opts.Begin
		if opts.Timezone != nil {
			begin = begin.In(opts.Timezone)
		}
	case opts.StrptimeFormat != "":
		begin, err = ParseBegin(filepath.Base(path), opts.StrptimeFormat, opts.Timezone)
		if err != nil {
			return nil, err
		}
	case !info.Start.IsZero():
		begin = localize(info.Start, opts.Timezone)
	default:
		return nil, fmt.Errorf("%w: %s has no timestamps", ErrMissingBeginSource, path)
	}

	core.Debugf(ctx, "Opened %s: begin=%s rate=%s frames=%d variables=%d",
		path, begin.Format(time.RFC3339Nano), info.SampleRate, info.Frames, info.VariableCount())

	return &File{
		Path:            path,
		TimestampColumn: column,
		Begin:           begin,
		End:             begin.Add(info.Duration),
		Info:            info,
		manager:         m,
		fs:              fs,
	}, nil
}

func (f *File) SampleRate() core.SampleRate {
	return f.Info.SampleRate
}

func (f *File) Duration() time.Duration {
	return f.End.Sub(f.Begin)
}

// Frames is the number of frames in the file
func (f *File) Frames() int {
	return f.Info.Frames
}

// Variables returns the selected variables, every data variable when none were selected
func (f *File) Variables() []string {
	if len(f.variables) == 0 {
		return f.Info.Variables
	}
	return f.variables
}

// SelectVariables restricts subsequent reads to names. No names selects every variable.
func (f *File) SelectVariables(names ...string) error {
	for _, name := range names {
		if !contains(f.Info.Variables, name) {
			return &VariableError{Name: name, Path: f.Path}
		}
	}
	f.variables = names
	return nil
}

// Read returns the frames between start and stop.
// The first frame is the first one that ends after start,
// the last frame is the last one that starts before stop.
func (f *File) Read(ctx context.Context, start, stop time.Time) (*core.Frames, error) {
	frames, _, _, err := f.ReadWindow(ctx, start, stop)
	return frames, err
}

// ReadWindow is Read, also returning the [start, stop) frame indexes the timestamps resolved to
func (f *File) ReadWindow(ctx context.Context, start, stop time.Time) (*core.Frames, int, int, error) {
	startFrame, stopFrame, err := f.FramesIndexes(ctx, start, stop)
	if err != nil {
		return nil, 0, 0, err
	}
	frames, err := f.manager.Read(ctx, f.Path, f.TimestampColumn, startFrame, stopFrame, f.variables)
	if err != nil {
		return nil, 0, 0, err
	}
	return frames, startFrame, stopFrame, nil
}

// FramesIndexes returns the [start, stop) frame indexes covering the start and stop timestamps.
// The result is not checked against the file extent.
func (f *File) FramesIndexes(ctx context.Context, start, stop time.Time) (int, int, error) {
	if rate := f.Info.SampleRate; rate.IsRegular() {
		period := int64(rate.Period())
		return int(floorDiv(int64(start.Sub(f.Begin)), period)),
			int(ceilDiv(int64(stop.Sub(f.Begin)), period)), nil
	}

	timestamps, err := f.manager.ReadTimestamps(ctx, f.Path, f.TimestampColumn)
	if err != nil {
		return 0, 0, err
	}
	if len(timestamps) == 0 {
		return 0, 0, nil
	}
	// Irregular files are searched on their own timestamps, Begin is not applied.
	startFrame := searchAfter(timestamps, start) - 1
	if startFrame < 0 {
		startFrame = 0
	}
	return startFrame, searchAfter(timestamps, stop), nil
}

// Move moves the file to folder. Open handles are released first.
func (f *File) Move(folder string) error {
	if err := f.manager.Close(); err != nil {
		return fmt.Errorf("failed to release %s: %w", f.Path, err)
	}
	if err := f.fs.MkdirAll(folder, 0o755); err != nil {
		return err
	}
	target := filepath.Join(folder, filepath.Base(f.Path))
	if err := f.fs.Rename(f.Path, target); err != nil {
		return fmt.Errorf("failed to move %s: %w", f.Path, err)
	}
	f.Path = target
	return nil
}

// searchAfter is the index of the first timestamp after t
func searchAfter(timestamps []time.Time, t time.Time) int {
	return sort.Search(len(timestamps), func(i int) bool {
		return timestamps[i].After(t)
	})
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func ceilDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) == (b < 0) {
		q++
	}
	return q
}
