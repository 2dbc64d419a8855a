package pipeline

import (
	"fmt"
	"path/filepath"

	"github.com/quantlab/tickhist/internal/models"
	"github.com/quantlab/tickhist/internal/tabio"
)

// AggregateOptions configures a preprocessed-artifact aggregation run.
type AggregateOptions struct {
	SymbolList  []string
	Timeframes  []models.Timeframe
	InputFormat tabio.Format
	Exports     []tabio.Format
	InputDir    string
	OutputDir   string
}

// AggregateFiles turns preprocessed canonical-tick artifacts into OHLCV
// files, one output file per artifact, timeframe and export format:
// <outdir>/<artifact>/<artifact>.<tf>.<ext>. The tick sentinel passes the
// canonical ticks through unchanged.
func (p *Pipeline) AggregateFiles(opts AggregateOptions) (Summary, error) {
	if len(opts.Timeframes) == 0 {
		opts.Timeframes = models.SupportedTimeframes
	}
	if len(opts.Exports) == 0 {
		return Summary{}, Preconditionf("at least one export format is required")
	}
	inDir := p.prepDir(opts.InputFormat, opts.InputDir)
	if !dirExists(inDir) {
		return Summary{}, Preconditionf("input directory is missing: %s", inDir)
	}

	// Unit enumeration: symbols x matching artifact subdirectories.
	type unit struct {
		symbol string
		dir    string
	}
	var units []unit
	for _, symbol := range opts.SymbolList {
		dirs, err := matchingSubdirs(inDir, symbol)
		if err != nil {
			return Summary{}, Preconditionf("failed to scan %s: %v", inDir, err)
		}
		for _, dir := range dirs {
			units = append(units, unit{symbol: symbol, dir: dir})
		}
	}

	var sum Summary
	for i, u := range units {
		p.logger.Info(fmt.Sprintf("[%d/%d] aggregating", i+1, len(units)),
			"symbol", u.symbol, "input", u.dir)

		if err := p.aggregateArtifact(u.symbol, u.dir, opts, &sum); err != nil {
			p.unitFailed(&sum, u.dir, err)
			continue
		}
	}
	return sum, nil
}

func (p *Pipeline) aggregateArtifact(symbol, dir string, opts AggregateOptions, sum *Summary) error {
	files, err := listFilesByExt(dir, opts.InputFormat)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		p.unitSkipped(sum, dir, "no input file")
		return nil
	}

	ticks, err := tabio.ReadTicks(files[0], opts.InputFormat)
	if err != nil {
		return err
	}

	artifact := filepath.Base(dir)
	for _, tf := range opts.Timeframes {
		for _, export := range opts.Exports {
			outDir := filepath.Join(p.aggrDir(export, opts.OutputDir), artifact)
			if err := ensureDir(outDir); err != nil {
				return err
			}
			outPath := filepath.Join(outDir, fmt.Sprintf("%s.%s.%s", artifact, tf, export.Extension()))

			if tf.IsTick() {
				if err := tabio.WriteTicks(ticks, outPath, export); err != nil {
					return err
				}
				p.logger.Info("file written", "timeframe", tf, "path", outPath, "rows", len(ticks))
				continue
			}

			bars, err := p.aggr.Aggregate(ticks, tf)
			if err != nil {
				return err
			}
			if err := tabio.WriteBars(bars, outPath, export); err != nil {
				return err
			}
			p.logger.Info("file written", "timeframe", tf, "path", outPath, "rows", len(bars))
		}
	}

	sum.Processed++
	return nil
}
