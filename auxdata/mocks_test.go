package auxdata

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/osekit/auxquerier/core"
)

// MockBackend mocks Backend
type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) Info(ctx context.Context, path, timestampColumn string) (core.FileInfo, error) {
	args := m.Called(path, timestampColumn)
	return args.Get(0).(core.FileInfo), args.Error(1)
}

func (m *MockBackend) Read(ctx context.Context, path, timestampColumn string, start, stop int, variables []string) (*core.Frames, error) {
	args := m.Called(path, timestampColumn, start, stop, variables)
	frames, _ := args.Get(0).(*core.Frames)
	return frames, args.Error(1)
}

func (m *MockBackend) ReadTimestamps(ctx context.Context, path, timestampColumn string) ([]time.Time, error) {
	args := m.Called(path, timestampColumn)
	timestamps, _ := args.Get(0).([]time.Time)
	return timestamps, args.Error(1)
}

func (m *MockBackend) Path() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockBackend) Close() error {
	args := m.Called()
	return args.Error(0)
}

// memTable is an in-memory auxiliary file
type memTable struct {
	timestamps []time.Time
	variables  []string
	rows       [][]float64
}

// memBackend serves memTables and keeps one of them open, like the real backends
type memBackend struct {
	tables map[string]*memTable
	open   string
	opens  int
}

func newMemBackend() *memBackend {
	return &memBackend{tables: make(map[string]*memTable)}
}

func (b *memBackend) table(path string) (*memTable, error) {
	t, ok := b.tables[path]
	if !ok {
		return nil, errNotExist(path)
	}
	if b.open != path {
		b.open = path
		b.opens++
	}
	return t, nil
}

func (b *memBackend) Info(ctx context.Context, path, timestampColumn string) (core.FileInfo, error) {
	t, err := b.table(path)
	if err != nil {
		return core.FileInfo{}, err
	}
	return summarize(ctx, path, t.timestamps, t.variables), nil
}

func (b *memBackend) Read(ctx context.Context, path, timestampColumn string, start, stop int, variables []string) (*core.Frames, error) {
	t, err := b.table(path)
	if err != nil {
		return nil, err
	}
	variables, err = selectVariables(path, t.variables, variables)
	if err != nil {
		return nil, err
	}
	frames := core.NewFrames(stop-start, variables)
	for row := start; row < stop; row++ {
		for col, name := range variables {
			for i, v := range t.variables {
				if v == name {
					frames.Set(row-start, col, t.rows[row][i])
				}
			}
		}
	}
	return frames, nil
}

func (b *memBackend) ReadTimestamps(ctx context.Context, path, timestampColumn string) ([]time.Time, error) {
	t, err := b.table(path)
	if err != nil {
		return nil, err
	}
	return t.timestamps, nil
}

func (b *memBackend) Path() string {
	return b.open
}

func (b *memBackend) Close() error {
	b.open = ""
	return nil
}
