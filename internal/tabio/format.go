// Package tabio reads and writes the pipeline's record batches in the two
// supported on-disk tabular formats: delimited CSV and columnar Parquet.
// The format choice is a closed variant dispatched once here; business logic
// above this package never branches on format strings.
package tabio

import (
	"fmt"
	"strings"
)

// Format identifies one of the two supported tabular file formats.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
)

// Formats is the closed set of supported formats.
var Formats = []Format{FormatCSV, FormatParquet}

// UnsupportedFormatError is returned for any format name outside the
// supported set. It indicates a misconfigured adapter, not a data problem,
// and is treated as fatal for the invocation that produced it.
type UnsupportedFormatError struct {
	Name string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported format %q (supported: %s)", e.Name, FormatList())
}

// ParseFormat validates a format name against the supported set.
func ParseFormat(name string) (Format, error) {
	for _, f := range Formats {
		if Format(name) == f {
			return f, nil
		}
	}
	return "", &UnsupportedFormatError{Name: name}
}

// FormatList renders the supported format names for error messages and help
// text.
func FormatList() string {
	names := make([]string, len(Formats))
	for i, f := range Formats {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}

// Extension returns the file extension for the format, without the dot.
func (f Format) Extension() string { return string(f) }
