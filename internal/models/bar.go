package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Bar represents OHLCV data for one fixed time bucket. Datetime is the bucket
// start rendered at second resolution; all prices share the configured price
// precision and volume the configured volume precision.
type Bar struct {
	Datetime string `csv:"datetime" parquet:"datetime"`
	Open     string `csv:"open" parquet:"open"`
	High     string `csv:"high" parquet:"high"`
	Low      string `csv:"low" parquet:"low"`
	Close    string `csv:"close" parquet:"close"`
	Volume   string `csv:"volume" parquet:"volume"`
}

// ValidationError reports which bar field failed validation and why.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field %s: %s", e.Field, e.Message)
}

// Validate checks the OHLCV invariants: parseable decimal fields, a parseable
// bucket datetime, low <= min(open, close), high >= max(open, close), and a
// non-negative volume.
func (b *Bar) Validate() error {
	if _, err := time.ParseInLocation(BarDatetimeLayout, b.Datetime, time.UTC); err != nil {
		return &ValidationError{Field: "datetime", Message: fmt.Sprintf("invalid bucket datetime: %v", err)}
	}

	open, err := decimal.NewFromString(b.Open)
	if err != nil {
		return &ValidationError{Field: "open", Message: fmt.Sprintf("invalid open price: %v", err)}
	}
	high, err := decimal.NewFromString(b.High)
	if err != nil {
		return &ValidationError{Field: "high", Message: fmt.Sprintf("invalid high price: %v", err)}
	}
	low, err := decimal.NewFromString(b.Low)
	if err != nil {
		return &ValidationError{Field: "low", Message: fmt.Sprintf("invalid low price: %v", err)}
	}
	cls, err := decimal.NewFromString(b.Close)
	if err != nil {
		return &ValidationError{Field: "close", Message: fmt.Sprintf("invalid close price: %v", err)}
	}
	volume, err := decimal.NewFromString(b.Volume)
	if err != nil {
		return &ValidationError{Field: "volume", Message: fmt.Sprintf("invalid volume: %v", err)}
	}

	if volume.IsNegative() {
		return &ValidationError{Field: "volume", Message: "volume must be greater than or equal to 0"}
	}

	maxOC := decimal.Max(open, cls)
	if high.LessThan(maxOC) {
		return &ValidationError{
			Field:   "high",
			Message: fmt.Sprintf("high (%s) must be >= max(open, close) (%s)", high, maxOC),
		}
	}
	minOC := decimal.Min(open, cls)
	if low.GreaterThan(minOC) {
		return &ValidationError{
			Field:   "low",
			Message: fmt.Sprintf("low (%s) must be <= min(open, close) (%s)", low, minOC),
		}
	}

	return nil
}

// Time parses the bucket-start datetime as a UTC instant.
func (b *Bar) Time() (time.Time, error) {
	ts, err := time.ParseInLocation(BarDatetimeLayout, b.Datetime, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid bar datetime %q: %w", b.Datetime, err)
	}
	return ts, nil
}

func (b *Bar) String() string {
	return fmt.Sprintf("Bar{Datetime: %s, O: %s, H: %s, L: %s, C: %s, V: %s}",
		b.Datetime, b.Open, b.High, b.Low, b.Close, b.Volume)
}
