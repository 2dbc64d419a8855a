// Package coverage detects missing days in a symbol's downloaded archive.
// Daily dump files embed their date in the name, so the set of present dates
// can be compared against the full calendar range they span; each missing
// run of days is reported as one gap.
package coverage

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/quantlab/tickhist/internal/models"
	"github.com/quantlab/tickhist/internal/tabio"
)

var datePattern = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)

// Gap is one contiguous run of missing days, bounds inclusive.
type Gap struct {
	From string
	To   string
}

// Days returns the number of missing days the gap spans.
func (g Gap) Days() int {
	from, errF := time.ParseInLocation(models.DateLayout, g.From, time.UTC)
	to, errT := time.ParseInLocation(models.DateLayout, g.To, time.UTC)
	if errF != nil || errT != nil {
		return 0
	}
	return int(to.Sub(from)/(24*time.Hour)) + 1
}

func (g Gap) String() string {
	if g.From == g.To {
		return g.From
	}
	return fmt.Sprintf("%s..%s", g.From, g.To)
}

// Report describes one symbol's day-file coverage.
type Report struct {
	Symbol      string
	FirstDate   string
	LastDate    string
	PresentDays int
	MissingDays int
	Gaps        []Gap
}

// Complete reports whether every day between FirstDate and LastDate is
// present.
func (r Report) Complete() bool { return len(r.Gaps) == 0 }

// Scan inspects <dir>/<symbol>/ for per-day files in the given format and
// reports the gaps between the earliest and latest date found. Files without
// an embedded date are ignored.
func Scan(dir, symbol string, f tabio.Format) (Report, error) {
	pattern := filepath.Join(dir, symbol, "*."+f.Extension())
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return Report{}, err
	}
	if len(matches) == 0 {
		if _, statErr := os.Stat(filepath.Join(dir, symbol)); statErr != nil {
			return Report{}, fmt.Errorf("no day files for %s: %w", symbol, statErr)
		}
		return Report{}, fmt.Errorf("no %s day files for %s in %s", f, symbol, dir)
	}

	present := make(map[string]bool)
	for _, path := range matches {
		if date := datePattern.FindString(filepath.Base(path)); date != "" {
			present[date] = true
		}
	}
	if len(present) == 0 {
		return Report{}, fmt.Errorf("no day files for %s carry a date in %s", symbol, dir)
	}

	dates := make([]string, 0, len(present))
	for d := range present {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	report := Report{
		Symbol:      symbol,
		FirstDate:   dates[0],
		LastDate:    dates[len(dates)-1],
		PresentDays: len(dates),
	}

	first, err := time.ParseInLocation(models.DateLayout, report.FirstDate, time.UTC)
	if err != nil {
		return Report{}, fmt.Errorf("unparseable date %q in %s files: %w", report.FirstDate, symbol, err)
	}
	last, err := time.ParseInLocation(models.DateLayout, report.LastDate, time.UTC)
	if err != nil {
		return Report{}, fmt.Errorf("unparseable date %q in %s files: %w", report.LastDate, symbol, err)
	}

	var open *Gap
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		date := day.Format(models.DateLayout)
		if present[date] {
			if open != nil {
				report.Gaps = append(report.Gaps, *open)
				open = nil
			}
			continue
		}
		report.MissingDays++
		if open == nil {
			open = &Gap{From: date, To: date}
		} else {
			open.To = date
		}
	}
	if open != nil {
		report.Gaps = append(report.Gaps, *open)
	}
	return report, nil
}

// Summarize renders a report as one human-readable line per symbol plus one
// line per gap, suitable for CLI output.
func Summarize(r Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d days present, %s..%s", r.Symbol, r.PresentDays, r.FirstDate, r.LastDate)
	if r.Complete() {
		b.WriteString(", complete")
		return b.String()
	}
	fmt.Fprintf(&b, ", %d missing", r.MissingDays)
	for _, g := range r.Gaps {
		fmt.Fprintf(&b, "\n  gap %s (%d days)", g, g.Days())
	}
	return b.String()
}
