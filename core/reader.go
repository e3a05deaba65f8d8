package core

import (
	"context"
)

// FrameReader defines the interface for reading frame ranges out of auxiliary files
type FrameReader interface {
	// Info reports the sampling and extent of the file at path
	Info(ctx context.Context, path, timestampColumn string) (FileInfo, error)

	// Read returns frames [start, stop) of the selected variables.
	// An empty variable list selects every data variable of the file.
	Read(ctx context.Context, path, timestampColumn string, start, stop int, variables []string) (*Frames, error)

	// Close releases every open file handle
	Close() error
}
