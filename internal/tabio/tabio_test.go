package tabio

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantlab/tickhist/internal/models"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Format
		wantErr bool
	}{
		{name: "csv", input: "csv", want: FormatCSV},
		{name: "parquet", input: "parquet", want: FormatParquet},
		{name: "unknown", input: "feather", wantErr: true},
		{name: "empty", input: "", wantErr: true},
		{name: "case_sensitive", input: "CSV", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if tt.wantErr {
				var ufe *UnsupportedFormatError
				require.True(t, errors.As(err, &ufe))
				assert.Equal(t, tt.input, ufe.Name)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func sampleTicks() []models.Tick {
	return []models.Tick{
		{
			Datetime:  "2023-11-14 22:13:20.123",
			Timestamp: "1700000000.123457",
			Price:     "36500.12",
			Side:      models.SideBuy,
			Size:      "0.5",
			Direction: "PlusTick",
		},
		{
			Datetime:  "2023-11-14 22:13:21.000",
			Timestamp: "1700000001.000000",
			Price:     "36499.90",
			Side:      models.SideSell,
			Size:      "1.25",
			Direction: "MinusTick",
		},
	}
}

func sampleBars() []models.Bar {
	return []models.Bar{
		{Datetime: "2023-11-14 22:13:00", Open: "36500.12", High: "36500.12", Low: "36499.90", Close: "36499.90", Volume: "1.7500"},
		{Datetime: "2023-11-14 22:14:00", Open: "36499.90", High: "36510.00", Low: "36499.90", Close: "36510.00", Volume: "0.2000"},
	}
}

// Decimal strings must survive a write/read cycle byte-for-byte in both
// formats; any float coercion at the file boundary would break repeatable
// output.
func TestTicksRoundTrip(t *testing.T) {
	for _, f := range Formats {
		t.Run(string(f), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "ticks."+f.Extension())
			ticks := sampleTicks()
			require.NoError(t, WriteTicks(ticks, path, f))

			got, err := ReadTicks(path, f)
			require.NoError(t, err)
			assert.Equal(t, ticks, got)
		})
	}
}

func TestBarsRoundTrip(t *testing.T) {
	for _, f := range Formats {
		t.Run(string(f), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bars."+f.Extension())
			bars := sampleBars()
			require.NoError(t, WriteBars(bars, path, f))

			got, err := ReadBars(path, f)
			require.NoError(t, err)
			assert.Equal(t, bars, got)
		})
	}
}

func TestRawTradesCSVHeaderAndExtraColumns(t *testing.T) {
	dir := t.TempDir()

	// Exact source header, one row.
	good := filepath.Join(dir, "good.csv")
	content := "symbol,timestamp,price,size,side,tickDirection,trdMatchID,grossValue,homeNotional,foreignNotional\n" +
		"XBTUSD,1700000000.123456789,36500.5,100,Buy,PlusTick,abc-123,3650050000,0.00273,100\n"
	require.NoError(t, os.WriteFile(good, []byte(content), 0o644))

	trades, err := ReadRawTrades(good, FormatCSV)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, "XBTUSD", trades[0].Symbol)
	assert.Equal(t, "1700000000.123456789", trades[0].Timestamp)
	assert.Equal(t, "36500.5", trades[0].Price)
	assert.Equal(t, "PlusTick", trades[0].TickDirection)

	// A missing column is a hard error, not a silent blank.
	bad := filepath.Join(dir, "bad.csv")
	require.NoError(t, os.WriteFile(bad, []byte("symbol,timestamp,price\nXBTUSD,1,2\n"), 0o644))
	_, err = ReadRawTrades(bad, FormatCSV)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing column")
}

func TestReadTicksCSVEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	ticks, err := ReadTicks(path, FormatCSV)
	require.NoError(t, err)
	assert.Empty(t, ticks)
}

func TestWriteTicksCSVLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ticks.csv")
	require.NoError(t, WriteTicks(sampleTicks()[:1], path, FormatCSV))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	want := "datetime,timestamp,price,side,size,direction\n" +
		"2023-11-14 22:13:20.123,1700000000.123457,36500.12,Buy,0.5,PlusTick\n"
	assert.Equal(t, want, string(raw))
}

func TestUnsupportedFormatRejected(t *testing.T) {
	_, err := ReadBars("whatever", Format("json"))
	var ufe *UnsupportedFormatError
	assert.True(t, errors.As(err, &ufe))

	err = WriteBars(nil, filepath.Join(t.TempDir(), "out"), Format("json"))
	assert.True(t, errors.As(err, &ufe))
}
