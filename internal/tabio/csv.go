package tabio

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/quantlab/tickhist/internal/models"
)

// Column orders for the three record shapes. Raw files come from the
// exchange with this exact header; tick and bar headers are what this
// pipeline itself emits.
var (
	rawHeader  = []string{"symbol", "timestamp", "price", "size", "side", "tickDirection", "trdMatchID", "grossValue", "homeNotional", "foreignNotional"}
	tickHeader = []string{"datetime", "timestamp", "price", "side", "size", "direction"}
	barHeader  = []string{"datetime", "open", "high", "low", "close", "volume"}
)

// columnIndex maps each wanted column name to its position in the header
// row. Missing columns are an error; extra columns are ignored.
func columnIndex(header, wanted []string, path string) (map[string]int, error) {
	pos := make(map[string]int, len(header))
	for i, name := range header {
		pos[name] = i
	}
	idx := make(map[string]int, len(wanted))
	for _, name := range wanted {
		i, ok := pos[name]
		if !ok {
			return nil, fmt.Errorf("%s: missing column %q", path, name)
		}
		idx[name] = i
	}
	return idx, nil
}

func readCSVRows(path string, wanted []string, row func(get func(string) string)) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.ReuseRecord = true

	header, err := r.Read()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read header of %s: %w", path, err)
	}
	idx, err := columnIndex(header, wanted, path)
	if err != nil {
		return err
	}

	for {
		rec, err := r.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read row of %s: %w", path, err)
		}
		row(func(name string) string { return rec[idx[name]] })
	}
}

func writeCSVRows(path string, header []string, n int, row func(i int) []string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write header of %s: %w", path, err)
	}
	for i := 0; i < n; i++ {
		if err := w.Write(row(i)); err != nil {
			return fmt.Errorf("failed to write row of %s: %w", path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}
	return nil
}

func readRawTradesCSV(path string) ([]models.RawTrade, error) {
	var out []models.RawTrade
	err := readCSVRows(path, rawHeader, func(get func(string) string) {
		out = append(out, models.RawTrade{
			Symbol:        get("symbol"),
			Timestamp:     get("timestamp"),
			Price:         get("price"),
			Size:          get("size"),
			Side:          get("side"),
			TickDirection: get("tickDirection"),
			TrdMatchID:    get("trdMatchID"),
			GrossValue:    get("grossValue"),
			HomeNotional:  get("homeNotional"),
			ForeignNot:    get("foreignNotional"),
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func writeRawTradesCSV(trades []models.RawTrade, path string) error {
	return writeCSVRows(path, rawHeader, len(trades), func(i int) []string {
		t := trades[i]
		return []string{t.Symbol, t.Timestamp, t.Price, t.Size, t.Side, t.TickDirection, t.TrdMatchID, t.GrossValue, t.HomeNotional, t.ForeignNot}
	})
}

func readTicksCSV(path string) ([]models.Tick, error) {
	var out []models.Tick
	err := readCSVRows(path, tickHeader, func(get func(string) string) {
		out = append(out, models.Tick{
			Datetime:  get("datetime"),
			Timestamp: get("timestamp"),
			Price:     get("price"),
			Side:      get("side"),
			Size:      get("size"),
			Direction: get("direction"),
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func writeTicksCSV(ticks []models.Tick, path string) error {
	return writeCSVRows(path, tickHeader, len(ticks), func(i int) []string {
		t := ticks[i]
		return []string{t.Datetime, t.Timestamp, t.Price, t.Side, t.Size, t.Direction}
	})
}

func readBarsCSV(path string) ([]models.Bar, error) {
	var out []models.Bar
	err := readCSVRows(path, barHeader, func(get func(string) string) {
		out = append(out, models.Bar{
			Datetime: get("datetime"),
			Open:     get("open"),
			High:     get("high"),
			Low:      get("low"),
			Close:    get("close"),
			Volume:   get("volume"),
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func writeBarsCSV(bars []models.Bar, path string) error {
	return writeCSVRows(path, barHeader, len(bars), func(i int) []string {
		b := bars[i]
		return []string{b.Datetime, b.Open, b.High, b.Low, b.Close, b.Volume}
	})
}
