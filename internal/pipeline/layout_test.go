package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantlab/tickhist/internal/models"
	"github.com/quantlab/tickhist/internal/tabio"
)

func TestSpanDescriptor(t *testing.T) {
	ticks := []models.Tick{
		{Datetime: "2023-11-14 00:00:01.000"},
		{Datetime: "2023-11-15 12:30:00.500"},
		{Datetime: "2023-11-16 23:59:59.999"},
	}
	assert.Equal(t, "20231114_3_20231116", spanDescriptor(ticks, 3))

	single := ticks[:1]
	assert.Equal(t, "20231114_1_20231114", spanDescriptor(single, 1))
}

func TestFileDate(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{path: "data/tick_csv/XBTUSD/XBTUSD.2023-11-14.csv", want: "2023-11-14"},
		{path: "XBTUSD2023-01-02.parquet", want: "2023-01-02"},
		{path: "XBTUSD.csv", want: ""},
		// The date is taken from the file name, never the directory.
		{path: "2023-11-14/XBTUSD.csv", want: ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, fileDate(tt.path), tt.path)
	}
}

func TestDateRange(t *testing.T) {
	tests := []struct {
		name string
		r    DateRange
		date string
		want bool
	}{
		{name: "unbounded_matches_all", r: DateRange{}, date: "2023-11-14", want: true},
		{name: "unbounded_matches_dateless", r: DateRange{}, date: "", want: true},
		{name: "inside", r: DateRange{From: "2023-11-01", To: "2023-11-30"}, date: "2023-11-14", want: true},
		{name: "on_from_bound", r: DateRange{From: "2023-11-14"}, date: "2023-11-14", want: true},
		{name: "on_to_bound", r: DateRange{To: "2023-11-14"}, date: "2023-11-14", want: true},
		{name: "before_from", r: DateRange{From: "2023-11-15"}, date: "2023-11-14", want: false},
		{name: "after_to", r: DateRange{To: "2023-11-13"}, date: "2023-11-14", want: false},
		{name: "dateless_excluded_by_bound", r: DateRange{From: "2023-11-01"}, date: "", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.r.Contains(tt.date))
		})
	}
}

func TestFilterByDateRange(t *testing.T) {
	paths := []string{
		"XBTUSD.2023-11-13.csv",
		"XBTUSD.2023-11-14.csv",
		"XBTUSD.2023-11-15.csv",
	}
	got := filterByDateRange(paths, DateRange{From: "2023-11-14", To: "2023-11-14"})
	assert.Equal(t, []string{"XBTUSD.2023-11-14.csv"}, got)

	// A zero range passes the slice through untouched.
	assert.Equal(t, paths, filterByDateRange(paths, DateRange{}))
}

func TestListFilesByExt(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.2023-11-15.csv", "a.2023-11-14.csv", "c.parquet", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}

	files, err := listFilesByExt(dir, tabio.FormatCSV)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "a.2023-11-14.csv", filepath.Base(files[0]))
	assert.Equal(t, "b.2023-11-15.csv", filepath.Base(files[1]))

	files, err = listFilesByExt(filepath.Join(dir, "missing"), tabio.FormatCSV)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestMatchingSubdirs(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"XBTUSD.20231114_1_20231114", "XBTUSD.20231115_2_20231116", "ETHUSD.20231114_1_20231114"} {
		require.NoError(t, os.Mkdir(filepath.Join(root, name), 0o755))
	}
	// Plain files with a matching prefix are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(root, "XBTUSD.stray"), nil, 0o644))

	dirs, err := matchingSubdirs(root, "XBTUSD")
	require.NoError(t, err)
	require.Len(t, dirs, 2)
	assert.Equal(t, "XBTUSD.20231114_1_20231114", filepath.Base(dirs[0]))
	assert.Equal(t, "XBTUSD.20231115_2_20231116", filepath.Base(dirs[1]))
}
