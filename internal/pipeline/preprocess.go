package pipeline

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/quantlab/tickhist/internal/normalize"
	"github.com/quantlab/tickhist/internal/tabio"
)

// PreprocessOptions configures a raw-to-canonical preprocessing run.
type PreprocessOptions struct {
	SymbolList  []string
	InputFormat tabio.Format
	Exports     []tabio.Format
	InputDir    string // override; default is the conventional tick dir
	OutputDir   string // override; default is the conventional preprocessed dir per format
}

// Preprocess joins every raw per-day file of each symbol into one canonical
// tick artifact per symbol, written in each requested export format under
// <outdir>/<symbol>.<span>/<symbol>.<span>.<ext> where <span> encodes the
// covered dates and file count.
func (p *Pipeline) Preprocess(opts PreprocessOptions) (Summary, error) {
	inDir := p.tickDir(opts.InputFormat, opts.InputDir)
	if !dirExists(inDir) {
		return Summary{}, Preconditionf("input directory is missing: %s", inDir)
	}
	if len(opts.Exports) == 0 {
		return Summary{}, Preconditionf("at least one export format is required")
	}

	var sum Summary
	total := len(opts.SymbolList)
	for i, symbol := range opts.SymbolList {
		p.logger.Info(fmt.Sprintf("[%d/%d] preprocessing", i+1, total), "symbol", symbol)

		if err := p.preprocessSymbol(symbol, inDir, opts, &sum); err != nil {
			p.unitFailed(&sum, symbol, err)
			continue
		}
	}
	return sum, nil
}

func (p *Pipeline) preprocessSymbol(symbol, inDir string, opts PreprocessOptions, sum *Summary) error {
	files, err := listFilesByExt(filepath.Join(inDir, symbol), opts.InputFormat)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		p.unitSkipped(sum, symbol, "no input files")
		return nil
	}

	ticks, err := p.norm.NormalizeFiles(files, opts.InputFormat, symbol)
	if errors.Is(err, normalize.ErrEmptyInput) {
		p.unitSkipped(sum, symbol, "no rows matched the symbol")
		return nil
	}
	if err != nil {
		return err
	}

	span := spanDescriptor(ticks, len(files))
	artifact := fmt.Sprintf("%s.%s", symbol, span)

	for _, export := range opts.Exports {
		outDir := filepath.Join(p.prepDir(export, opts.OutputDir), artifact)
		if err := ensureDir(outDir); err != nil {
			return err
		}
		outPath := filepath.Join(outDir, artifact+"."+export.Extension())
		if err := tabio.WriteTicks(ticks, outPath, export); err != nil {
			return err
		}
		p.logger.Info("file written", "symbol", symbol, "path", outPath, "ticks", len(ticks))
	}

	sum.Processed++
	return nil
}

// ConvertOptions configures a raw-file format conversion run.
type ConvertOptions struct {
	SymbolList []string
	From       tabio.Format
	To         tabio.Format
	InputDir   string
	OutputDir  string
}

// Convert rewrites raw per-day files from one tabular format to the other,
// preserving the <symbol>/<symbol>.<date>.<ext> layout. Already-converted
// files are skipped, so the run is resumable.
func (p *Pipeline) Convert(opts ConvertOptions) (Summary, error) {
	if opts.From == opts.To {
		return Summary{}, Preconditionf("conversion source and destination formats are both %q", opts.From)
	}
	inDir := p.tickDir(opts.From, opts.InputDir)
	if !dirExists(inDir) {
		return Summary{}, Preconditionf("input directory is missing: %s", inDir)
	}
	outBase := p.tickDir(opts.To, opts.OutputDir)

	var sum Summary
	total := len(opts.SymbolList)
	for i, symbol := range opts.SymbolList {
		p.logger.Info(fmt.Sprintf("[%d/%d] converting", i+1, total), "symbol", symbol)

		files, err := listFilesByExt(filepath.Join(inDir, symbol), opts.From)
		if err != nil {
			p.unitFailed(&sum, symbol, err)
			continue
		}
		if len(files) == 0 {
			p.unitSkipped(&sum, symbol, "no input files")
			continue
		}

		if err := p.convertSymbol(symbol, files, outBase, opts); err != nil {
			p.unitFailed(&sum, symbol, err)
			continue
		}
		sum.Processed++
	}
	return sum, nil
}

func (p *Pipeline) convertSymbol(symbol string, files []string, outBase string, opts ConvertOptions) error {
	outDir := filepath.Join(outBase, symbol)
	if err := ensureDir(outDir); err != nil {
		return err
	}

	for _, path := range files {
		base := filepath.Base(path)
		name := base[:len(base)-len(filepath.Ext(base))] + "." + opts.To.Extension()
		outPath := filepath.Join(outDir, name)
		if fileExists(outPath) {
			continue
		}

		trades, err := tabio.ReadRawTrades(path, opts.From)
		if err != nil {
			return err
		}
		if err := tabio.WriteRawTrades(trades, outPath, opts.To); err != nil {
			return err
		}
		p.logger.Debug("file converted", "symbol", symbol, "path", outPath)
	}
	return nil
}
