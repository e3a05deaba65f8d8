package auxdata

import (
	"path/filepath"
	"strings"
)

// Format is the family of an auxiliary file
type Format int

const (
	// Tabular files are CSV tables, one row per frame
	Tabular Format = iota
	// Gridded files are NetCDF datasets indexed along a timestamp variable
	Gridded
)

// SupportedExtensions lists the suffixes recognised by FormatOf
var SupportedExtensions = []string{".csv", ".nc"}

// FormatOf resolves the family of path from its extension.
// Anything that is not NetCDF is read as a table.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".nc", ".nc4", ".netcdf":
		return Gridded
	default:
		return Tabular
	}
}

func (f Format) String() string {
	switch f {
	case Gridded:
		return "netcdf"
	default:
		return "csv"
	}
}
