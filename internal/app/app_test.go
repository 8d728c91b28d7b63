package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/chrissnell/stormtrack/internal/store/chunkstore"
	"github.com/chrissnell/stormtrack/internal/store/trackfile"
	"github.com/chrissnell/stormtrack/pkg/cftime"
	"github.com/chrissnell/stormtrack/pkg/config"
	"github.com/chrissnell/stormtrack/pkg/dataset"
	"github.com/chrissnell/stormtrack/pkg/trackstats"
	"go.uber.org/zap"
)

// writeDatasets stores two 360_day tracks and a 3-step mask where every
// cell of step s holds identifier s%2 + 1
func writeDatasets(t *testing.T) *config.ConfigData {
	t.Helper()
	dir := t.TempDir()

	coord := cftime.Coordinate{
		Units:    cftime.MustParseUnits("hours since 1990-01-01 00:00:00"),
		Calendar: cftime.Day360,
	}
	start := cftime.MustDate(cftime.Day360, 1990, 2, 30, 0, 0, 0)
	b := trackstats.NewBuilder("stats", 2, coord, "area")
	b.AddTrack([]cftime.TimePoint{start, start.Add(time.Hour)}, map[string][]float64{"area": {1, 2}})
	b.AddTrack([]cftime.TimePoint{start.Add(2 * time.Hour)}, map[string][]float64{"area": {3}})
	stats, err := b.Dataset()
	if err != nil {
		t.Fatalf("Dataset: %v", err)
	}

	times := []cftime.TimePoint{start, start.Add(time.Hour), start.Add(2 * time.Hour)}
	f := dataset.NewField(3, 2, 2)
	for i := range f.Values {
		f.Values[i] = float64((i/4)%2 + 1)
	}
	v, _ := dataset.FromField("mcs_mask", []string{"time", "y", "x"}, f)
	mask := dataset.New("mask", "time", times)
	if err := mask.AddVariable(v); err != nil {
		t.Fatalf("AddVariable: %v", err)
	}

	cfg := &config.ConfigData{
		Datasets: config.DatasetsData{
			Tracks: config.DatasetData{Path: filepath.Join(dir, "tracks.strk")},
			Mask:   config.DatasetData{Path: filepath.Join(dir, "mask")},
		},
	}
	cfg.ApplyDefaults()
	if err := trackfile.Write(cfg.Datasets.Tracks.Path, stats); err != nil {
		t.Fatalf("trackfile.Write: %v", err)
	}
	if err := chunkstore.Create(cfg.Datasets.Mask.Path, mask, coord); err != nil {
		t.Fatalf("chunkstore.Create: %v", err)
	}
	return cfg
}

func TestLinkAllTracks(t *testing.T) {
	a := New(writeDatasets(t), zap.NewNop().Sugar())

	results, err := a.Link(context.Background(), AllTracks, "")
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, expected 2", len(results))
	}

	// track 0 starts at mask step 0 (identifier 1 everywhere)
	if results[0].MaskStep != 0 || results[0].PixelCount() != 4 {
		t.Errorf("track 0: step %d pixels %d", results[0].MaskStep, results[0].PixelCount())
	}
	// track 1 starts at mask step 2 (identifier 1), so identifier 2 is absent
	if results[1].MaskStep != 2 || results[1].PixelCount() != 0 {
		t.Errorf("track 1: step %d pixels %d", results[1].MaskStep, results[1].PixelCount())
	}
}

func TestLinkAtTime(t *testing.T) {
	a := New(writeDatasets(t), zap.NewNop().Sugar())

	results, err := a.Link(context.Background(), 1, "1990-02-30T01:00")
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	if len(results) != 1 || results[0].MaskStep != 1 || results[0].PixelCount() != 4 {
		t.Errorf("results = %+v", results)
	}

	if _, err := a.Link(context.Background(), 0, "not a time"); err == nil {
		t.Error("expected an error for a malformed time")
	}
	if _, err := a.Link(context.Background(), 7, ""); !errors.Is(err, trackstats.ErrInvalidIdentifier) {
		t.Errorf("error = %v, expected invalid identifier", err)
	}
}
