package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/quantlab/tickhist/internal/models"
	"github.com/quantlab/tickhist/internal/normalize"
	"github.com/quantlab/tickhist/internal/store"
	"github.com/quantlab/tickhist/internal/tabio"
)

// MergeOptions configures a raw-to-database aggregation run.
type MergeOptions struct {
	SymbolList  []string
	Timeframes  []models.Timeframe
	InputFormat tabio.Format
	InputDir    string
	OutputDir   string
	Dates       DateRange // inclusive filter on daily input files
	MergeTicks  bool      // also append raw ticks to the tick table
}

// MergeRaw aggregates raw per-day files straight into the per-symbol
// embedded database, one day at a time. Aggregate tables are keyed by
// bucket datetime with insert-ignore-on-conflict, so re-running over an
// overlapping date range never duplicates a bar. Only timeframes with
// buckets of at most 24 hours are allowed here; a coarser bucket could span
// two merge calls and persist half-complete.
func (p *Pipeline) MergeRaw(ctx context.Context, opts MergeOptions) (Summary, error) {
	if len(opts.Timeframes) == 0 {
		opts.Timeframes = models.DatabaseTimeframes()
	}
	for _, tf := range opts.Timeframes {
		if !tf.FitsDailyMerge() {
			return Summary{}, Preconditionf("timeframe %s is not supported for database merges (buckets must be <= 24h)", tf)
		}
	}
	inDir := p.tickDir(opts.InputFormat, opts.InputDir)
	if !dirExists(inDir) {
		return Summary{}, Preconditionf("input directory is missing: %s", inDir)
	}
	outDir := p.dbDir(opts.OutputDir)
	if err := ensureDir(outDir); err != nil {
		return Summary{}, Preconditionf("cannot create output directory %s: %v", outDir, err)
	}

	var sum Summary
	total := len(opts.SymbolList)
	for i, symbol := range opts.SymbolList {
		p.logger.Info(fmt.Sprintf("[%d/%d] merging", i+1, total), "symbol", symbol)

		if err := p.mergeSymbol(ctx, symbol, inDir, outDir, opts, &sum); err != nil {
			p.unitFailed(&sum, symbol, err)
			continue
		}
	}
	return sum, nil
}

// mergeSymbol opens the symbol's store once and replays its daily files in
// chronological order.
func (p *Pipeline) mergeSymbol(ctx context.Context, symbol, inDir, outDir string, opts MergeOptions, sum *Summary) error {
	files, err := listFilesByExt(filepath.Join(inDir, symbol), opts.InputFormat)
	if err != nil {
		return err
	}
	files = filterByDateRange(files, opts.Dates)
	if len(files) == 0 {
		p.unitSkipped(sum, symbol, "no input files in range")
		return nil
	}

	db, err := store.Open(outDir, symbol, p.logger.With("component", "store"))
	if err != nil {
		return err
	}
	defer db.Close()

	for fi, path := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.mergeDay(ctx, db, symbol, path, opts); err != nil {
			return fmt.Errorf("failed to merge %s: %w", path, err)
		}
		p.logger.Info(fmt.Sprintf("merged %d/%d", fi+1, len(files)), "symbol", symbol, "file", filepath.Base(path))
	}

	sum.Processed++
	return nil
}

func (p *Pipeline) mergeDay(ctx context.Context, db *store.Store, symbol, path string, opts MergeOptions) error {
	ticks, err := p.norm.NormalizeFiles([]string{path}, opts.InputFormat, symbol)
	if errors.Is(err, normalize.ErrEmptyInput) {
		p.logger.Warn("day file has no rows for symbol", "symbol", symbol, "file", path)
		return nil
	}
	if err != nil {
		return err
	}

	if opts.MergeTicks {
		if err := db.MergeTicks(ctx, ticks); err != nil {
			return err
		}
	}

	for _, tf := range opts.Timeframes {
		if tf.IsTick() {
			continue
		}
		bars, err := p.aggr.Aggregate(ticks, tf)
		if err != nil {
			return err
		}
		if err := db.MergeBars(ctx, tf, bars); err != nil {
			return err
		}
	}
	return nil
}
