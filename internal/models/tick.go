// Package models provides the data structures shared by the tick pipeline:
// raw exchange trade records, canonical ticks, OHLCV bars, timeframes, and
// the single decimal quantization routine every component must use.
package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Layout strings for the two datetime renderings used across the pipeline.
// Ticks carry millisecond resolution, bars are truncated to whole seconds.
const (
	TickDatetimeLayout = "2006-01-02 15:04:05.000"
	BarDatetimeLayout  = "2006-01-02 15:04:05"
	DateLayout         = "2006-01-02"
)

// Trade sides as they appear in the exchange dumps.
const (
	SideBuy  = "Buy"
	SideSell = "Sell"
)

// RawTrade is one trade print exactly as it appears in a daily exchange dump.
// All numeric fields stay decimal strings; nothing is parsed to float at this
// stage. The last four columns are dropped by the normalizer and exist here
// only so the file adapters can read the full source schema.
type RawTrade struct {
	Symbol        string `csv:"symbol" parquet:"symbol"`
	Timestamp     string `csv:"timestamp" parquet:"timestamp"`
	Price         string `csv:"price" parquet:"price"`
	Size          string `csv:"size" parquet:"size"`
	Side          string `csv:"side" parquet:"side"`
	TickDirection string `csv:"tickDirection" parquet:"tickDirection"`
	TrdMatchID    string `csv:"trdMatchID" parquet:"trdMatchID"`
	GrossValue    string `csv:"grossValue" parquet:"grossValue"`
	HomeNotional  string `csv:"homeNotional" parquet:"homeNotional"`
	ForeignNot    string `csv:"foreignNotional" parquet:"foreignNotional"`
}

// TimestampDecimal parses the raw fixed-point epoch-seconds timestamp.
func (r *RawTrade) TimestampDecimal() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(r.Timestamp)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid raw timestamp %q: %w", r.Timestamp, err)
	}
	return d, nil
}

// Time converts the raw timestamp to a UTC instant with nanosecond fidelity.
// The decimal-seconds value is scaled to integer nanoseconds exactly, so no
// floating point representation ever touches the timestamp.
func (r *RawTrade) Time() (time.Time, error) {
	d, err := r.TimestampDecimal()
	if err != nil {
		return time.Time{}, err
	}
	ns := d.Mul(decimal.New(1, 9))
	if !ns.IsInteger() {
		// Sub-nanosecond digits in the source are truncated.
		ns = ns.Truncate(0)
	}
	return time.Unix(0, ns.IntPart()).UTC(), nil
}

// Tick is a canonical trade record after symbol filtering, column pruning and
// precision normalization. Within one normalized batch ticks are sorted
// ascending by timestamp and Datetime is derived from Timestamp by truncating
// (never rounding) to the millisecond.
type Tick struct {
	Datetime  string `csv:"datetime" parquet:"datetime"`
	Timestamp string `csv:"timestamp" parquet:"timestamp"`
	Price     string `csv:"price" parquet:"price"`
	Side      string `csv:"side" parquet:"side"`
	Size      string `csv:"size" parquet:"size"`
	Direction string `csv:"direction" parquet:"direction"`
}

// Time parses the canonical millisecond datetime back into a UTC instant.
func (t *Tick) Time() (time.Time, error) {
	ts, err := time.ParseInLocation(TickDatetimeLayout, t.Datetime, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid tick datetime %q: %w", t.Datetime, err)
	}
	return ts, nil
}

// PriceDecimal returns the tick price for precise calculations.
func (t *Tick) PriceDecimal() (decimal.Decimal, error) {
	return decimal.NewFromString(t.Price)
}

// SizeDecimal returns the tick size for precise calculations.
func (t *Tick) SizeDecimal() (decimal.Decimal, error) {
	return decimal.NewFromString(t.Size)
}
