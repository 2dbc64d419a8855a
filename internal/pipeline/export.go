package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/quantlab/tickhist/internal/models"
	"github.com/quantlab/tickhist/internal/store"
	"github.com/quantlab/tickhist/internal/tabio"
)

// ExportOptions configures a database-to-files export run.
type ExportOptions struct {
	Prefixes   []string // database file name prefixes to match
	Timeframes []models.Timeframe
	Exports    []tabio.Format
	InputDir   string
	OutputDir  string
}

// Export writes the tables of every matching per-symbol database back out
// as tabular files: <outdir>/<symbol>/<symbol>.<tf>.<ext>. A database
// missing one of the requested timeframe tables fails as a unit, not the
// whole run.
func (p *Pipeline) Export(ctx context.Context, opts ExportOptions) (Summary, error) {
	if len(opts.Timeframes) == 0 {
		opts.Timeframes = models.DatabaseTimeframes()
	}
	if len(opts.Exports) == 0 {
		return Summary{}, Preconditionf("at least one export format is required")
	}
	inDir := p.dbDir(opts.InputDir)
	if !dirExists(inDir) {
		return Summary{}, Preconditionf("input directory is missing: %s", inDir)
	}

	var paths []string
	for _, prefix := range opts.Prefixes {
		matches, err := filepath.Glob(filepath.Join(inDir, prefix+"*.duckdb"))
		if err != nil {
			return Summary{}, Preconditionf("bad database prefix %q: %v", prefix, err)
		}
		paths = append(paths, matches...)
	}
	if len(paths) == 0 {
		return Summary{}, Preconditionf("no database matched prefixes %v in %s", opts.Prefixes, inDir)
	}

	var sum Summary
	for i, path := range paths {
		p.logger.Info(fmt.Sprintf("[%d/%d] exporting", i+1, len(paths)), "database", path)

		if err := p.exportDatabase(ctx, path, opts); err != nil {
			p.unitFailed(&sum, path, err)
			continue
		}
		sum.Processed++
	}
	return sum, nil
}

func (p *Pipeline) exportDatabase(ctx context.Context, path string, opts ExportOptions) error {
	symbol := strings.TrimSuffix(filepath.Base(path), ".duckdb")

	db, err := store.Open(filepath.Dir(path), symbol, p.logger.With("component", "store"))
	if err != nil {
		return err
	}
	defer db.Close()

	tables, err := db.Tables(ctx)
	if err != nil {
		return err
	}
	present := make(map[string]bool, len(tables))
	for _, t := range tables {
		present[t] = true
	}
	for _, tf := range opts.Timeframes {
		want := "aggr_" + string(tf)
		if tf.IsTick() {
			want = "tick"
		}
		if !present[want] {
			return fmt.Errorf("table %s is missing from %s", want, path)
		}
	}

	for _, export := range opts.Exports {
		outDir := filepath.Join(p.aggrDir(export, opts.OutputDir), symbol)
		if err := ensureDir(outDir); err != nil {
			return err
		}

		for _, tf := range opts.Timeframes {
			outPath := filepath.Join(outDir, fmt.Sprintf("%s.%s.%s", symbol, tf, export.Extension()))

			if tf.IsTick() {
				ticks, err := db.ReadTicks(ctx)
				if err != nil {
					return err
				}
				if err := tabio.WriteTicks(ticks, outPath, export); err != nil {
					return err
				}
				p.logger.Info("file written", "timeframe", tf, "path", outPath, "rows", len(ticks))
				continue
			}

			bars, err := db.ReadBars(ctx, tf)
			if err != nil {
				return err
			}
			if err := tabio.WriteBars(bars, outPath, export); err != nil {
				return err
			}
			p.logger.Info("file written", "timeframe", tf, "path", outPath, "rows", len(bars))
		}
	}
	return nil
}
