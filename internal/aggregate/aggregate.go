// Package aggregate buckets canonical ticks into fixed time intervals and
// computes open/high/low/close/volume per bucket with exact decimal
// arithmetic throughout. This is the core of the pipeline; no float ever
// participates in a price or volume computation.
package aggregate

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quantlab/tickhist/internal/config"
	"github.com/quantlab/tickhist/internal/models"
)

// Aggregator computes OHLCV bars from canonical tick batches.
type Aggregator struct {
	precision config.PrecisionConfig
}

// New creates an Aggregator with the given precision configuration.
func New(precision config.PrecisionConfig) *Aggregator {
	return &Aggregator{precision: precision}
}

// bucket accumulates one interval's OHLCV state. Open and close follow the
// chronological order of the ticks fed in; high, low and volume accumulate
// in decimal so no precision is lost before the final quantization.
type bucket struct {
	start  time.Time
	open   decimal.Decimal
	high   decimal.Decimal
	low    decimal.Decimal
	close  decimal.Decimal
	volume decimal.Decimal
}

// Aggregate buckets the tick batch into the given timeframe. The timeframe
// must not be the tick sentinel. Ticks are expected sorted ascending by
// datetime; if any out-of-order pair is found the batch is re-sorted before
// bucketing, since first/last tie-breaks must follow chronological order,
// never arrival order. An empty input yields an empty output.
//
// Bucket membership is determined by truncating each tick's datetime down to
// the start of its containing interval; a bar is emitted only for buckets
// that contain at least one tick.
func (a *Aggregator) Aggregate(ticks []models.Tick, tf models.Timeframe) ([]models.Bar, error) {
	if tf.IsTick() {
		return nil, fmt.Errorf("timeframe %q is the pass-through sentinel, nothing to aggregate", tf)
	}
	if len(ticks) == 0 {
		return nil, nil
	}

	rows, err := parseTicks(ticks)
	if err != nil {
		return nil, err
	}
	if !sort.SliceIsSorted(rows, rowsLess(rows)) {
		sort.SliceStable(rows, rowsLess(rows))
	}

	buckets := make(map[time.Time]*bucket)
	order := make([]time.Time, 0)
	for _, row := range rows {
		start := tf.Truncate(row.at)
		b, ok := buckets[start]
		if !ok {
			b = &bucket{
				start:  start,
				open:   row.price,
				high:   row.price,
				low:    row.price,
				volume: decimal.Zero,
			}
			buckets[start] = b
			order = append(order, start)
		}
		if row.price.GreaterThan(b.high) {
			b.high = row.price
		}
		if row.price.LessThan(b.low) {
			b.low = row.price
		}
		b.close = row.price
		b.volume = b.volume.Add(row.size)
	}

	sort.Slice(order, func(i, j int) bool { return order[i].Before(order[j]) })

	bars := make([]models.Bar, 0, len(order))
	for _, start := range order {
		b := buckets[start]
		bars = append(bars, models.Bar{
			Datetime: b.start.Format(models.BarDatetimeLayout),
			Open:     models.Quantize(b.open, a.precision.PriceDecimals),
			High:     models.Quantize(b.high, a.precision.PriceDecimals),
			Low:      models.Quantize(b.low, a.precision.PriceDecimals),
			Close:    models.Quantize(b.close, a.precision.PriceDecimals),
			Volume:   models.Quantize(b.volume, a.precision.VolumeDecimals),
		})
	}
	return bars, nil
}

// tickRow is a pre-parsed tick: instant plus decimal price and size.
type tickRow struct {
	at    time.Time
	price decimal.Decimal
	size  decimal.Decimal
}

func parseTicks(ticks []models.Tick) ([]tickRow, error) {
	rows := make([]tickRow, len(ticks))
	for i := range ticks {
		at, err := ticks[i].Time()
		if err != nil {
			return nil, err
		}
		price, err := ticks[i].PriceDecimal()
		if err != nil {
			return nil, fmt.Errorf("invalid tick price %q: %w", ticks[i].Price, err)
		}
		size, err := ticks[i].SizeDecimal()
		if err != nil {
			return nil, fmt.Errorf("invalid tick size %q: %w", ticks[i].Size, err)
		}
		rows[i] = tickRow{at: at, price: price, size: size}
	}
	return rows, nil
}

func rowsLess(rows []tickRow) func(i, j int) bool {
	return func(i, j int) bool { return rows[i].at.Before(rows[j].at) }
}
