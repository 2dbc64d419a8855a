package tabio

import (
	"github.com/parquet-go/parquet-go"

	"github.com/quantlab/tickhist/internal/models"
)

// All values in all three record shapes are stored as strings in both
// formats, so a write/read round trip reproduces decimal strings
// byte-for-byte; no float coercion happens at this boundary.

// ReadRawTrades reads one raw per-day exchange dump.
func ReadRawTrades(path string, f Format) ([]models.RawTrade, error) {
	switch f {
	case FormatCSV:
		return readRawTradesCSV(path)
	case FormatParquet:
		return parquet.ReadFile[models.RawTrade](path)
	}
	return nil, &UnsupportedFormatError{Name: string(f)}
}

// WriteRawTrades writes a raw trade batch, used by the format converter.
func WriteRawTrades(trades []models.RawTrade, path string, f Format) error {
	switch f {
	case FormatCSV:
		return writeRawTradesCSV(trades, path)
	case FormatParquet:
		return parquet.WriteFile(path, trades)
	}
	return &UnsupportedFormatError{Name: string(f)}
}

// ReadTicks reads a canonical tick batch.
func ReadTicks(path string, f Format) ([]models.Tick, error) {
	switch f {
	case FormatCSV:
		return readTicksCSV(path)
	case FormatParquet:
		return parquet.ReadFile[models.Tick](path)
	}
	return nil, &UnsupportedFormatError{Name: string(f)}
}

// WriteTicks writes a canonical tick batch.
func WriteTicks(ticks []models.Tick, path string, f Format) error {
	switch f {
	case FormatCSV:
		return writeTicksCSV(ticks, path)
	case FormatParquet:
		return parquet.WriteFile(path, ticks)
	}
	return &UnsupportedFormatError{Name: string(f)}
}

// ReadBars reads an OHLCV bar batch.
func ReadBars(path string, f Format) ([]models.Bar, error) {
	switch f {
	case FormatCSV:
		return readBarsCSV(path)
	case FormatParquet:
		return parquet.ReadFile[models.Bar](path)
	}
	return nil, &UnsupportedFormatError{Name: string(f)}
}

// WriteBars writes an OHLCV bar batch.
func WriteBars(bars []models.Bar, path string, f Format) error {
	switch f {
	case FormatCSV:
		return writeBarsCSV(bars, path)
	case FormatParquet:
		return parquet.WriteFile(path, bars)
	}
	return &UnsupportedFormatError{Name: string(f)}
}
