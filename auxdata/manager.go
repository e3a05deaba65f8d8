package auxdata

import (
	"context"
	"errors"
	"time"

	"github.com/osekit/auxquerier/core"
	"github.com/osekit/auxquerier/metrics"
)

// Ensure Manager implements core.FrameReader interface
var _ core.FrameReader = (*Manager)(nil)

// Manager keeps one auxiliary file open per format family until a request for another file
// of the same family is made, so repeated reads of a file do not reopen it.
//
// A Manager is not safe for concurrent use.
type Manager struct {
	tabular    Backend
	gridded    Backend
	newGridded func() Backend
}

// NewManager creates a Manager reading CSV files with DuckDB and NetCDF files natively
func NewManager() *Manager {
	return newManager(NewCSVBackend(), func() Backend { return NewNetCDFBackend() })
}

func newManager(tabular Backend, gridded func() Backend) *Manager {
	return &Manager{
		tabular:    tabular,
		newGridded: gridded,
	}
}

// Backend returns the backend reading files of path's format.
// The gridded backend is created on first use.
func (m *Manager) Backend(path string) Backend {
	switch FormatOf(path) {
	case Gridded:
		if m.gridded == nil {
			m.gridded = m.newGridded()
		}
		return m.gridded
	case Tabular:
		return m.tabular
	}
	return m.tabular
}

// Info returns the sample rate, number of frames and variables, and duration of the file
func (m *Manager) Info(ctx context.Context, path, timestampColumn string) (core.FileInfo, error) {
	return m.Backend(path).Info(ctx, path, timestampColumn)
}

// ReadTimestamps returns the whole timestamp sequence of the file
func (m *Manager) ReadTimestamps(ctx context.Context, path, timestampColumn string) ([]time.Time, error) {
	return m.Backend(path).ReadTimestamps(ctx, path, timestampColumn)
}

// Read returns frames [start, stop) of the file.
// If the file is not the one currently open for its format, the open file is switched.
func (m *Manager) Read(ctx context.Context, path, timestampColumn string, start, stop int, variables []string) (*core.Frames, error) {
	info, err := m.Info(ctx, path, timestampColumn)
	if err != nil {
		return nil, err
	}
	return m.read(ctx, path, timestampColumn, start, stop, info.Frames, variables)
}

// ReadFrom returns every frame of the file from start on
func (m *Manager) ReadFrom(ctx context.Context, path, timestampColumn string, start int, variables []string) (*core.Frames, error) {
	info, err := m.Info(ctx, path, timestampColumn)
	if err != nil {
		return nil, err
	}
	return m.read(ctx, path, timestampColumn, start, info.Frames, info.Frames, variables)
}

func (m *Manager) read(ctx context.Context, path, timestampColumn string, start, stop, frames int, variables []string) (*core.Frames, error) {
	if err := checkRange(start, stop, frames); err != nil {
		var rangeErr *RangeError
		if errors.As(err, &rangeErr) {
			metrics.RecordRangeError(rangeErr.Bound)
		}
		return nil, err
	}

	data, err := m.Backend(path).Read(ctx, path, timestampColumn, start, stop, variables)
	if err != nil {
		return nil, err
	}
	metrics.RecordRead(FormatOf(path).String(), data.Rows)
	return data, nil
}

// OpenFiles reports the file currently held open for each format family
func (m *Manager) OpenFiles() map[Format]string {
	open := make(map[Format]string)
	if p := m.tabular.Path(); p != "" {
		open[Tabular] = p
	}
	if m.gridded != nil {
		if p := m.gridded.Path(); p != "" {
			open[Gridded] = p
		}
	}
	return open
}

// Close releases the open files. The Manager stays usable.
func (m *Manager) Close() error {
	err := m.tabular.Close()
	if m.gridded != nil {
		err = errors.Join(err, m.gridded.Close())
		m.gridded = nil
	}
	return err
}
