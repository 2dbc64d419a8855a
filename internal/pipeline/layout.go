package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/quantlab/tickhist/internal/models"
	"github.com/quantlab/tickhist/internal/tabio"
)

// datePattern matches the YYYY-MM-DD date embedded in file and directory
// names throughout the data layout.
var datePattern = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)

// listFilesByExt returns the files in dir carrying the given extension,
// sorted by name. Since per-day files embed their date in the name, name
// order is chronological order.
func listFilesByExt(dir string, f tabio.Format) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*."+f.Extension()))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

// matchingSubdirs returns the subdirectories of root whose name starts with
// prefix, sorted by name.
func matchingSubdirs(root, prefix string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), prefix) {
			dirs = append(dirs, filepath.Join(root, e.Name()))
		}
	}
	sort.Strings(dirs)
	return dirs, nil
}

// fileDate extracts the YYYY-MM-DD date from a per-day file name. Returns
// the empty string when no date is embedded.
func fileDate(path string) string {
	return datePattern.FindString(filepath.Base(path))
}

// spanDescriptor encodes the provenance of a joined artifact:
// <min_date>_<file_count>_<max_date> with the dashes stripped from the
// dates. The batch must be sorted ascending so its first and last ticks
// carry the span's bounds.
func spanDescriptor(ticks []models.Tick, fileCount int) string {
	minDate := strings.ReplaceAll(ticks[0].Datetime[:10], "-", "")
	maxDate := strings.ReplaceAll(ticks[len(ticks)-1].Datetime[:10], "-", "")
	return fmt.Sprintf("%s_%d_%s", minDate, fileCount, maxDate)
}

// ensureDir creates the directory (and parents) if missing.
func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

// fileExists reports whether path exists as a regular file.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// dirExists reports whether path exists and is a directory.
func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// DateRange restricts which daily input files participate in a run. Bounds
// are inclusive YYYY-MM-DD strings; an empty bound is open.
type DateRange struct {
	From string
	To   string
}

// Contains reports whether the date falls inside the range. Files without
// an embedded date are excluded by any non-empty range.
func (r DateRange) Contains(date string) bool {
	if r.From == "" && r.To == "" {
		return true
	}
	if date == "" {
		return false
	}
	if r.From != "" && date < r.From {
		return false
	}
	if r.To != "" && date > r.To {
		return false
	}
	return true
}

// IsZero reports whether the range is unbounded on both sides.
func (r DateRange) IsZero() bool { return r.From == "" && r.To == "" }

// filterByDateRange keeps the files whose embedded date falls in the range.
func filterByDateRange(paths []string, r DateRange) []string {
	if r.IsZero() {
		return paths
	}
	var out []string
	for _, p := range paths {
		if r.Contains(fileDate(p)) {
			out = append(out, p)
		}
	}
	return out
}
