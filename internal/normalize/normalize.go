// Package normalize turns raw per-day exchange trade dumps into canonical
// tick batches: symbol-filtered, column-pruned, chronologically sorted, with
// millisecond datetimes derived exactly from the fixed-point source
// timestamps and prices quantized to the configured precision.
package normalize

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/quantlab/tickhist/internal/config"
	"github.com/quantlab/tickhist/internal/models"
	"github.com/quantlab/tickhist/internal/tabio"
)

// ErrEmptyInput is returned when no rows survive for the requested symbol.
// The orchestrator treats it as a unit skip, not a run failure.
var ErrEmptyInput = errors.New("no input rows matched the requested symbol")

// Normalizer converts raw trade batches for one symbol into canonical ticks.
type Normalizer struct {
	precision config.PrecisionConfig
	logger    *slog.Logger
}

// New creates a Normalizer with the given precision configuration.
func New(precision config.PrecisionConfig, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{precision: precision, logger: logger}
}

// rawRow pairs a trade with its parsed timestamp and arrival position so the
// chronological sort is exact (decimal compare, no float) and stable.
type rawRow struct {
	trade models.RawTrade
	ts    decimal.Decimal
	pos   int
}

// NormalizeFiles reads the given source files and normalizes them as one
// batch. Files for the same symbol may span multiple days.
func (n *Normalizer) NormalizeFiles(paths []string, f tabio.Format, symbol string) ([]models.Tick, error) {
	batches := make([][]models.RawTrade, 0, len(paths))
	for _, path := range paths {
		trades, err := tabio.ReadRawTrades(path, f)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		batches = append(batches, trades)
	}
	return n.Normalize(batches, symbol)
}

// Normalize applies the canonicalization steps in order: filter to the
// symbol, reverse each file's rows (the source feed is newest-first per
// file), concatenate, sort ascending by the raw timestamp, then derive the
// millisecond datetime and quantize price and timestamp.
//
// File reversal alone does not give global order across multiple days, so
// the concatenated set is always re-sorted; the sort is stable so equal
// timestamps keep their within-file order.
func (n *Normalizer) Normalize(batches [][]models.RawTrade, symbol string) ([]models.Tick, error) {
	var rows []rawRow
	pos := 0
	for _, batch := range batches {
		for i := len(batch) - 1; i >= 0; i-- {
			trade := batch[i]
			if trade.Symbol != symbol {
				continue
			}
			ts, err := trade.TimestampDecimal()
			if err != nil {
				return nil, err
			}
			rows = append(rows, rawRow{trade: trade, ts: ts, pos: pos})
			pos++
		}
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyInput, symbol)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].ts.LessThan(rows[j].ts)
	})

	ticks := make([]models.Tick, 0, len(rows))
	for _, row := range rows {
		tick, err := n.canonicalize(row)
		if err != nil {
			return nil, err
		}
		ticks = append(ticks, tick)
	}

	n.logger.Debug("normalized batch", "symbol", symbol, "files", len(batches), "ticks", len(ticks))
	return ticks, nil
}

// canonicalize converts one raw trade row into a canonical tick.
func (n *Normalizer) canonicalize(row rawRow) (models.Tick, error) {
	instant, err := row.trade.Time()
	if err != nil {
		return models.Tick{}, err
	}

	price, err := models.QuantizeString(row.trade.Price, n.precision.PriceDecimals)
	if err != nil {
		return models.Tick{}, fmt.Errorf("invalid price %q: %w", row.trade.Price, err)
	}

	return models.Tick{
		// Go's fixed-width fractional format truncates nanoseconds, which
		// is exactly the millisecond truncation the datetime requires.
		Datetime:  instant.Format(models.TickDatetimeLayout),
		Timestamp: models.Quantize(row.ts, n.precision.TimestampDecimals),
		Price:     price,
		Side:      row.trade.Side,
		Size:      row.trade.Size,
		Direction: row.trade.TickDirection,
	}, nil
}
