package normalize

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantlab/tickhist/internal/config"
	"github.com/quantlab/tickhist/internal/models"
)

var testPrecision = config.PrecisionConfig{
	PriceDecimals:     2,
	VolumeDecimals:    4,
	TimestampDecimals: 6,
}

func trade(symbol, ts, price, size string) models.RawTrade {
	return models.RawTrade{
		Symbol:        symbol,
		Timestamp:     ts,
		Price:         price,
		Size:          size,
		Side:          models.SideBuy,
		TickDirection: "PlusTick",
		TrdMatchID:    "ignored",
		GrossValue:    "ignored",
		HomeNotional:  "ignored",
		ForeignNot:    "ignored",
	}
}

// The datetime must represent the exact same instant as the nanosecond
// source timestamp, truncated (never rounded) to the millisecond.
func TestNormalize_DatetimeTruncation(t *testing.T) {
	tests := []struct {
		name      string
		timestamp string
		want      string
	}{
		{
			name:      "nanosecond_precision_truncates",
			timestamp: "1700000000.123456789",
			want:      "2023-11-14 22:13:20.123",
		},
		{
			name:      "just_below_millisecond_boundary_stays",
			timestamp: "1700000000.123999999",
			want:      "2023-11-14 22:13:20.123",
		},
		{
			name:      "exact_millisecond",
			timestamp: "1700000000.124",
			want:      "2023-11-14 22:13:20.124",
		},
		{
			name:      "whole_second",
			timestamp: "1700000000",
			want:      "2023-11-14 22:13:20.000",
		},
		{
			name:      "microsecond_precision_source",
			timestamp: "1700000000.1239",
			want:      "2023-11-14 22:13:20.123",
		},
	}

	n := New(testPrecision, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ticks, err := n.Normalize([][]models.RawTrade{{
				trade("XBTUSD", tt.timestamp, "100", "1"),
			}}, "XBTUSD")
			require.NoError(t, err)
			require.Len(t, ticks, 1)
			assert.Equal(t, tt.want, ticks[0].Datetime)
		})
	}
}

func TestNormalize_QuantizesPriceAndTimestamp(t *testing.T) {
	n := New(testPrecision, nil)
	ticks, err := n.Normalize([][]models.RawTrade{{
		trade("XBTUSD", "1700000000.123456789", "36500.125", "0.5"),
	}}, "XBTUSD")
	require.NoError(t, err)
	require.Len(t, ticks, 1)

	// Half-even price quantization, six-digit timestamp echo.
	assert.Equal(t, "36500.12", ticks[0].Price)
	assert.Equal(t, "1700000000.123457", ticks[0].Timestamp)
	// Size passes through untouched.
	assert.Equal(t, "0.5", ticks[0].Size)
	assert.Equal(t, models.SideBuy, ticks[0].Side)
	assert.Equal(t, "PlusTick", ticks[0].Direction)
}

func TestNormalize_FiltersSymbol(t *testing.T) {
	n := New(testPrecision, nil)
	ticks, err := n.Normalize([][]models.RawTrade{{
		trade("ETHUSD", "1700000001", "2000", "1"),
		trade("XBTUSD", "1700000000", "36500", "1"),
	}}, "XBTUSD")
	require.NoError(t, err)
	require.Len(t, ticks, 1)
	assert.Equal(t, "36500.00", ticks[0].Price)
}

// Source files list trades newest-first; after normalization the batch must
// be globally ascending even when it spans multiple files.
func TestNormalize_SortsAcrossFiles(t *testing.T) {
	dayTwo := []models.RawTrade{
		trade("XBTUSD", "1700086402", "103", "1"),
		trade("XBTUSD", "1700086401", "102", "1"),
	}
	dayOne := []models.RawTrade{
		trade("XBTUSD", "1700000001", "101", "1"),
		trade("XBTUSD", "1700000000", "100", "1"),
	}

	n := New(testPrecision, nil)
	// Files deliberately out of order.
	ticks, err := n.Normalize([][]models.RawTrade{dayTwo, dayOne}, "XBTUSD")
	require.NoError(t, err)
	require.Len(t, ticks, 4)

	prices := []string{ticks[0].Price, ticks[1].Price, ticks[2].Price, ticks[3].Price}
	assert.Equal(t, []string{"100.00", "101.00", "102.00", "103.00"}, prices)

	for i := 1; i < len(ticks); i++ {
		assert.LessOrEqual(t, ticks[i-1].Timestamp, ticks[i].Timestamp)
	}
}

// Equal timestamps keep their within-file order after the reversal: the
// source lists newest-first, so the later row in the file traded earlier.
func TestNormalize_StableForEqualTimestamps(t *testing.T) {
	n := New(testPrecision, nil)
	ticks, err := n.Normalize([][]models.RawTrade{{
		trade("XBTUSD", "1700000000.5", "200", "1"), // newest in feed order
		trade("XBTUSD", "1700000000.5", "100", "1"), // traded first
	}}, "XBTUSD")
	require.NoError(t, err)
	require.Len(t, ticks, 2)
	assert.Equal(t, "100.00", ticks[0].Price)
	assert.Equal(t, "200.00", ticks[1].Price)
}

func TestNormalize_EmptyInput(t *testing.T) {
	n := New(testPrecision, nil)

	_, err := n.Normalize(nil, "XBTUSD")
	assert.True(t, errors.Is(err, ErrEmptyInput))

	_, err = n.Normalize([][]models.RawTrade{{
		trade("ETHUSD", "1700000000", "2000", "1"),
	}}, "XBTUSD")
	assert.True(t, errors.Is(err, ErrEmptyInput))
}

func TestNormalize_BadTimestampPropagates(t *testing.T) {
	n := New(testPrecision, nil)
	_, err := n.Normalize([][]models.RawTrade{{
		trade("XBTUSD", "not-a-timestamp", "100", "1"),
	}}, "XBTUSD")
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrEmptyInput))
}
