package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantlab/tickhist/internal/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:", "XBTUSD", nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testBars() []models.Bar {
	return []models.Bar{
		{Datetime: "2023-11-14 22:13:00", Open: "100.00", High: "101.50", Low: "99.75", Close: "99.75", Volume: "3.5000"},
		{Datetime: "2023-11-14 22:14:00", Open: "99.75", High: "100.25", Low: "99.50", Close: "100.25", Volume: "1.0000"},
	}
}

func TestMergeBarsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	tf := models.Timeframe("1m")

	require.NoError(t, s.MergeBars(ctx, tf, testBars()))
	n, err := s.CountBars(ctx, tf)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	// Replaying the same batch leaves the table unchanged.
	require.NoError(t, s.MergeBars(ctx, tf, testBars()))
	n, err = s.CountBars(ctx, tf)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	// An existing key keeps its first-written row even if the replay
	// carries different values.
	changed := testBars()
	changed[0].Close = "999.99"
	require.NoError(t, s.MergeBars(ctx, tf, changed))

	got, err := s.ReadBars(ctx, tf)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "99.75", got[0].Close)
}

func TestMergeBarsExtendsRange(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	tf := models.Timeframe("1m")

	require.NoError(t, s.MergeBars(ctx, tf, testBars()))
	require.NoError(t, s.MergeBars(ctx, tf, []models.Bar{
		{Datetime: "2023-11-14 22:15:00", Open: "100.25", High: "100.25", Low: "100.00", Close: "100.00", Volume: "0.5000"},
	}))

	got, err := s.ReadBars(ctx, tf)
	require.NoError(t, err)
	require.Len(t, got, 3)
	// Read order follows the datetime key regardless of insert order.
	assert.Equal(t, "2023-11-14 22:13:00", got[0].Datetime)
	assert.Equal(t, "2023-11-14 22:15:00", got[2].Datetime)
}

func TestMergeBarsRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	tf := models.Timeframe("1m")

	bad := testBars()
	bad[1].High = "0.01" // below open

	err := s.MergeBars(ctx, tf, bad)
	require.Error(t, err)

	// Validation happens before any row is written.
	tables, err := s.Tables(ctx)
	require.NoError(t, err)
	assert.NotContains(t, tables, "aggr_1m")
}

func TestEnsureBarTableRejectsOversizedTimeframe(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	err := s.EnsureBarTable(ctx, models.Timeframe("1w"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "24h")

	err = s.EnsureBarTable(ctx, models.TimeframeTick)
	require.Error(t, err)

	// The boundary case is allowed.
	require.NoError(t, s.EnsureBarTable(ctx, models.Timeframe("1d")))
}

func TestMergeTicksAppends(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	ticks := []models.Tick{
		{Datetime: "2023-11-14 22:13:20.123", Timestamp: "1700000000.123457", Price: "100.00", Side: models.SideBuy, Size: "1", Direction: "PlusTick"},
		{Datetime: "2023-11-14 22:13:21.000", Timestamp: "1700000001.000000", Price: "101.00", Side: models.SideSell, Size: "2", Direction: "MinusTick"},
	}
	require.NoError(t, s.MergeTicks(ctx, ticks))

	got, err := s.ReadTicks(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "100.00", got[0].Price)
	assert.Equal(t, models.SideSell, got[1].Side)

	// The tick table has no key, so a replay duplicates rows. Callers are
	// responsible for not feeding the same day twice.
	require.NoError(t, s.MergeTicks(ctx, ticks))
	got, err = s.ReadTicks(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 4)
}

func TestTablesListing(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	tables, err := s.Tables(ctx)
	require.NoError(t, err)
	assert.Empty(t, tables)

	require.NoError(t, s.EnsureTickTable(ctx))
	require.NoError(t, s.EnsureBarTable(ctx, models.Timeframe("1m")))
	require.NoError(t, s.EnsureBarTable(ctx, models.Timeframe("1h")))

	tables, err = s.Tables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"aggr_1h", "aggr_1m", "tick"}, tables)
}

func TestMergeBarsEmptyBatch(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.MergeBars(ctx, models.Timeframe("1m"), nil))
	require.NoError(t, s.MergeTicks(ctx, nil))

	tables, err := s.Tables(ctx)
	require.NoError(t, err)
	assert.Empty(t, tables)
}

func TestStorageErrorRendering(t *testing.T) {
	err := NewStorageError("merge", "aggr_1m", assert.AnError)
	assert.Contains(t, err.Error(), "merge")
	assert.Contains(t, err.Error(), "aggr_1m")
	assert.ErrorIs(t, err, assert.AnError)
}
