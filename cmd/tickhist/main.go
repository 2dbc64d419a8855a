// Historical tick data pipeline CLI.
// This application downloads per-day trade dumps from the public archive,
// normalizes them into canonical ticks, aggregates OHLCV bars at multiple
// timeframes, and persists results as tabular files or per-symbol embedded
// databases.
//
// Usage:
//
//	tickhist download   --symbols BTCUSD,ETHUSD [--backfill]
//	tickhist preprocess --symbols BTCUSD --format csv --exports parquet
//	tickhist aggregate  --symbols BTCUSD --timeframes 1m,1h --exports parquet
//	tickhist merge      --symbols BTCUSD --timeframes 1m,1h --from 2023-11-01 --to 2023-11-30
//	tickhist export     --prefixes BTCUSD --timeframes 1m --exports csv
//	tickhist convert    --symbols BTCUSD --format csv --exports parquet
//	tickhist coverage   --symbols BTCUSD --format csv
//
// For detailed help on any command, use: tickhist <command> --help
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/quantlab/tickhist/internal/config"
	"github.com/quantlab/tickhist/internal/coverage"
	"github.com/quantlab/tickhist/internal/download"
	"github.com/quantlab/tickhist/internal/logger"
	"github.com/quantlab/tickhist/internal/models"
	"github.com/quantlab/tickhist/internal/pipeline"
	"github.com/quantlab/tickhist/internal/tabio"
)

const (
	appName = "tickhist"
	version = "1.0.0"
)

// Exit codes following standard conventions.
const (
	exitSuccess     = 0
	exitUsageError  = 1
	exitConfigError = 2
	exitDataError   = 4
	exitInterrupt   = 130
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return exitUsageError
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	command := args[0]
	switch command {
	case "download":
		return cmdDownload(ctx, args[1:])
	case "preprocess":
		return cmdPreprocess(ctx, args[1:])
	case "aggregate":
		return cmdAggregate(ctx, args[1:])
	case "merge":
		return cmdMerge(ctx, args[1:])
	case "export":
		return cmdExport(ctx, args[1:])
	case "convert":
		return cmdConvert(ctx, args[1:])
	case "coverage":
		return cmdCoverage(ctx, args[1:])
	case "version":
		fmt.Printf("%s %s\n", appName, version)
		return exitSuccess
	case "help", "-h", "--help":
		printUsage()
		return exitSuccess
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", command)
		printUsage()
		return exitUsageError
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `%s - historical tick data pipeline

Commands:
  download    Download per-day trade dumps from the archive
  preprocess  Join raw day files into canonical tick artifacts
  aggregate   Aggregate canonical tick artifacts into OHLCV files
  merge       Aggregate raw day files into per-symbol databases
  export      Export database tables back to tabular files
  convert     Convert raw day files between csv and parquet
  coverage    Report missing days in downloaded symbol archives
  version     Print the version

Use "%s <command> --help" for command flags.
`, appName, appName)
}

// commonFlags holds the flags shared by every subcommand.
type commonFlags struct {
	configPath string
}

func addCommonFlags(fs *flag.FlagSet) *commonFlags {
	cf := &commonFlags{}
	fs.StringVar(&cf.configPath, "config", "", "path to JSON config file")
	return cf
}

// setup loads configuration and builds the root logger. Configuration
// errors are fatal before any work begins.
func setup(cf *commonFlags) (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cf.configPath)
	if err != nil {
		return config.Config{}, nil, err
	}
	log := logger.New(cfg.Logging)
	slog.SetDefault(log)
	return cfg, log, nil
}

func configFailure(err error) int {
	fmt.Fprintln(os.Stderr, err)
	return exitConfigError
}

// splitList parses a comma-separated flag value.
func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseFormats validates a comma-separated format list, applying a default
// when empty.
func parseFormats(s string, def tabio.Format) ([]tabio.Format, error) {
	names := splitList(s)
	if len(names) == 0 {
		return []tabio.Format{def}, nil
	}
	formats := make([]tabio.Format, 0, len(names))
	for _, name := range names {
		f, err := tabio.ParseFormat(name)
		if err != nil {
			return nil, err
		}
		formats = append(formats, f)
	}
	return formats, nil
}

// parseTimeframes validates a comma-separated timeframe list. An empty list
// returns nil, which each run resolves to its own default set.
func parseTimeframes(s string) ([]models.Timeframe, error) {
	names := splitList(s)
	var tfs []models.Timeframe
	for _, name := range names {
		tf, err := models.ParseTimeframe(name)
		if err != nil {
			return nil, err
		}
		tfs = append(tfs, tf)
	}
	return tfs, nil
}

// finish maps a run summary to the process exit code: configuration
// preconditions already exited non-zero, so per-unit failures only flip the
// data-error code while preserving progress made for prior units.
func finish(log *slog.Logger, sum pipeline.Summary, err error) int {
	if err != nil {
		if pipeline.IsPrecondition(err) {
			fmt.Fprintln(os.Stderr, err)
			return exitConfigError
		}
		fmt.Fprintln(os.Stderr, err)
		return exitDataError
	}
	log.Info("run complete", "processed", sum.Processed, "skipped", sum.Skipped, "failed", sum.Failed)
	if sum.Failed > 0 {
		return exitDataError
	}
	return exitSuccess
}

func cmdDownload(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("download", flag.ExitOnError)
	cf := addCommonFlags(fs)
	symbols := fs.String("symbols", "", "comma-separated symbols (default: every listed symbol)")
	outDir := fs.String("output", "", "download directory (default: conventional tick csv dir)")
	backfill := fs.Bool("backfill", false, "probe dates older than the listing until repeated misses")
	skipByDir := fs.String("skip-by-dir", "", "skip dates already covered by files in this directory")
	fs.Parse(args)

	cfg, log, err := setup(cf)
	if err != nil {
		return configFailure(err)
	}

	dest := *outDir
	if dest == "" {
		dest = cfg.Dir(cfg.Data.TickCSVDir)
	}

	client := download.NewClient(cfg.Download, logger.ForComponent(log, "download"))
	listed, err := client.ListSymbols(ctx, splitList(*symbols))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitDataError
	}
	if len(listed) == 0 {
		log.Warn("no symbols to download")
		return exitSuccess
	}

	failed := 0
	for i, symbol := range listed {
		log.Info(fmt.Sprintf("[%d/%d] downloading", i+1, len(listed)), "symbol", symbol)
		err := client.DownloadSymbol(ctx, symbol, dest, download.Options{
			Backfill:  *backfill,
			SkipByDir: *skipByDir,
		})
		if err != nil {
			if ctx.Err() != nil {
				return exitInterrupt
			}
			log.Error("symbol download failed", "symbol", symbol, "error", err)
			failed++
		}
	}
	if failed > 0 {
		return exitDataError
	}
	return exitSuccess
}

func cmdPreprocess(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("preprocess", flag.ExitOnError)
	cf := addCommonFlags(fs)
	symbols := fs.String("symbols", "", "comma-separated symbols (required)")
	format := fs.String("format", "csv", "input format: "+tabio.FormatList())
	exports := fs.String("exports", "", "comma-separated output formats (default: parquet)")
	inDir := fs.String("input", "", "input directory override")
	outDir := fs.String("output", "", "output directory override")
	fs.Parse(args)

	cfg, log, err := setup(cf)
	if err != nil {
		return configFailure(err)
	}
	symbolList := splitList(*symbols)
	if len(symbolList) == 0 {
		fmt.Fprintln(os.Stderr, "at least one symbol is required")
		return exitUsageError
	}
	inFormat, err := tabio.ParseFormat(*format)
	if err != nil {
		return configFailure(err)
	}
	exportFormats, err := parseFormats(*exports, tabio.FormatParquet)
	if err != nil {
		return configFailure(err)
	}

	p := pipeline.New(cfg, log)
	sum, err := p.Preprocess(pipeline.PreprocessOptions{
		SymbolList:  symbolList,
		InputFormat: inFormat,
		Exports:     exportFormats,
		InputDir:    *inDir,
		OutputDir:   *outDir,
	})
	return finish(log, sum, err)
}

func cmdAggregate(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("aggregate", flag.ExitOnError)
	cf := addCommonFlags(fs)
	symbols := fs.String("symbols", "", "comma-separated symbols (required)")
	timeframes := fs.String("timeframes", "", "comma-separated timeframes (default: all supported)")
	format := fs.String("format", "parquet", "input format: "+tabio.FormatList())
	exports := fs.String("exports", "", "comma-separated output formats (default: parquet)")
	inDir := fs.String("input", "", "input directory override")
	outDir := fs.String("output", "", "output directory override")
	fs.Parse(args)

	cfg, log, err := setup(cf)
	if err != nil {
		return configFailure(err)
	}
	symbolList := splitList(*symbols)
	if len(symbolList) == 0 {
		fmt.Fprintln(os.Stderr, "at least one symbol is required")
		return exitUsageError
	}
	inFormat, err := tabio.ParseFormat(*format)
	if err != nil {
		return configFailure(err)
	}
	exportFormats, err := parseFormats(*exports, tabio.FormatParquet)
	if err != nil {
		return configFailure(err)
	}
	tfs, err := parseTimeframes(*timeframes)
	if err != nil {
		return configFailure(err)
	}

	p := pipeline.New(cfg, log)
	sum, err := p.AggregateFiles(pipeline.AggregateOptions{
		SymbolList:  symbolList,
		Timeframes:  tfs,
		InputFormat: inFormat,
		Exports:     exportFormats,
		InputDir:    *inDir,
		OutputDir:   *outDir,
	})
	return finish(log, sum, err)
}

func cmdMerge(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("merge", flag.ExitOnError)
	cf := addCommonFlags(fs)
	symbols := fs.String("symbols", "", "comma-separated symbols (required)")
	timeframes := fs.String("timeframes", "", "comma-separated timeframes <= 24h (default: all eligible)")
	format := fs.String("format", "csv", "input format: "+tabio.FormatList())
	inDir := fs.String("input", "", "input directory override")
	outDir := fs.String("output", "", "database directory override")
	from := fs.String("from", "", "inclusive start date YYYY-MM-DD")
	to := fs.String("to", "", "inclusive end date YYYY-MM-DD")
	withTicks := fs.Bool("ticks", false, "also append raw ticks to the tick table (no dedup on replay)")
	fs.Parse(args)

	cfg, log, err := setup(cf)
	if err != nil {
		return configFailure(err)
	}
	symbolList := splitList(*symbols)
	if len(symbolList) == 0 {
		fmt.Fprintln(os.Stderr, "at least one symbol is required")
		return exitUsageError
	}
	inFormat, err := tabio.ParseFormat(*format)
	if err != nil {
		return configFailure(err)
	}
	tfs, err := parseTimeframes(*timeframes)
	if err != nil {
		return configFailure(err)
	}

	p := pipeline.New(cfg, log)
	sum, err := p.MergeRaw(ctx, pipeline.MergeOptions{
		SymbolList:  symbolList,
		Timeframes:  tfs,
		InputFormat: inFormat,
		InputDir:    *inDir,
		OutputDir:   *outDir,
		Dates:       pipeline.DateRange{From: *from, To: *to},
		MergeTicks:  *withTicks,
	})
	if ctx.Err() != nil {
		return exitInterrupt
	}
	return finish(log, sum, err)
}

func cmdExport(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	cf := addCommonFlags(fs)
	prefixes := fs.String("prefixes", "", "comma-separated database name prefixes (required)")
	timeframes := fs.String("timeframes", "", "comma-separated timeframes (default: all eligible)")
	exports := fs.String("exports", "", "comma-separated output formats (default: parquet)")
	inDir := fs.String("input", "", "database directory override")
	outDir := fs.String("output", "", "output directory override")
	fs.Parse(args)

	cfg, log, err := setup(cf)
	if err != nil {
		return configFailure(err)
	}
	prefixList := splitList(*prefixes)
	if len(prefixList) == 0 {
		fmt.Fprintln(os.Stderr, "at least one database prefix is required")
		return exitUsageError
	}
	exportFormats, err := parseFormats(*exports, tabio.FormatParquet)
	if err != nil {
		return configFailure(err)
	}
	tfs, err := parseTimeframes(*timeframes)
	if err != nil {
		return configFailure(err)
	}

	p := pipeline.New(cfg, log)
	sum, err := p.Export(ctx, pipeline.ExportOptions{
		Prefixes:   prefixList,
		Timeframes: tfs,
		Exports:    exportFormats,
		InputDir:   *inDir,
		OutputDir:  *outDir,
	})
	return finish(log, sum, err)
}

func cmdCoverage(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("coverage", flag.ExitOnError)
	cf := addCommonFlags(fs)
	symbols := fs.String("symbols", "", "comma-separated symbols (required)")
	format := fs.String("format", "csv", "day file format: "+tabio.FormatList())
	inDir := fs.String("input", "", "input directory override")
	fs.Parse(args)

	cfg, log, err := setup(cf)
	if err != nil {
		return configFailure(err)
	}
	symbolList := splitList(*symbols)
	if len(symbolList) == 0 {
		fmt.Fprintln(os.Stderr, "at least one symbol is required")
		return exitUsageError
	}
	inFormat, err := tabio.ParseFormat(*format)
	if err != nil {
		return configFailure(err)
	}

	dir := *inDir
	if dir == "" {
		if inFormat == tabio.FormatParquet {
			dir = cfg.Dir(cfg.Data.TickParquetDir)
		} else {
			dir = cfg.Dir(cfg.Data.TickCSVDir)
		}
	}

	incomplete := 0
	for _, symbol := range symbolList {
		report, err := coverage.Scan(dir, symbol, inFormat)
		if err != nil {
			log.Error("coverage scan failed", "symbol", symbol, "error", err)
			incomplete++
			continue
		}
		fmt.Println(coverage.Summarize(report))
		if !report.Complete() {
			incomplete++
		}
	}
	if incomplete > 0 {
		return exitDataError
	}
	return exitSuccess
}

func cmdConvert(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("convert", flag.ExitOnError)
	cf := addCommonFlags(fs)
	symbols := fs.String("symbols", "", "comma-separated symbols (required)")
	format := fs.String("format", "csv", "input format: "+tabio.FormatList())
	exports := fs.String("exports", "parquet", "output format")
	inDir := fs.String("input", "", "input directory override")
	outDir := fs.String("output", "", "output directory override")
	fs.Parse(args)

	cfg, log, err := setup(cf)
	if err != nil {
		return configFailure(err)
	}
	symbolList := splitList(*symbols)
	if len(symbolList) == 0 {
		fmt.Fprintln(os.Stderr, "at least one symbol is required")
		return exitUsageError
	}
	fromFormat, err := tabio.ParseFormat(*format)
	if err != nil {
		return configFailure(err)
	}
	toFormat, err := tabio.ParseFormat(*exports)
	if err != nil {
		return configFailure(err)
	}

	p := pipeline.New(cfg, log)
	sum, err := p.Convert(pipeline.ConvertOptions{
		SymbolList: symbolList,
		From:       fromFormat,
		To:         toFormat,
		InputDir:   *inDir,
		OutputDir:  *outDir,
	})
	return finish(log, sum, err)
}
