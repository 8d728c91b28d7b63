// Package main writes a synthetic track statistics file and pixel mask store
// for exercising stormtrack without real model output.
package main

import (
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/chrissnell/stormtrack/internal/store/chunkstore"
	"github.com/chrissnell/stormtrack/internal/store/trackfile"
	"github.com/chrissnell/stormtrack/pkg/cftime"
	"github.com/chrissnell/stormtrack/pkg/config"
	"github.com/chrissnell/stormtrack/pkg/dataset"
	"github.com/chrissnell/stormtrack/pkg/trackstats"
	"gopkg.in/yaml.v2"
)

// options controls the shape of the generated datasets
type options struct {
	Tracks        int
	Steps         int
	MaxDuration   int
	Grid          int
	Radius        int
	Start         string
	StatsCalendar string
	MaskCalendar  string
	Seed          int64
}

type track struct {
	start    int
	duration int
	x, y     float64
	dx, dy   float64
}

func main() {
	var opts options
	out := flag.String("out", "simdata", "Output directory")
	flag.IntVar(&opts.Tracks, "tracks", 20, "Number of tracks")
	flag.IntVar(&opts.Steps, "steps", 48, "Number of hourly mask steps")
	flag.IntVar(&opts.MaxDuration, "max-duration", 12, "Longest track lifetime in steps")
	flag.IntVar(&opts.Grid, "grid", 64, "Mask grid size (grid x grid cells)")
	flag.IntVar(&opts.Radius, "radius", 3, "Storm radius in cells")
	flag.StringVar(&opts.Start, "start", "2020-02-27T00", "First mask timestamp")
	flag.StringVar(&opts.StatsCalendar, "stats-calendar", "noleap", "Calendar of the track statistics")
	flag.StringVar(&opts.MaskCalendar, "mask-calendar", "standard", "Calendar of the pixel mask")
	flag.Int64Var(&opts.Seed, "seed", 1, "Random seed")
	flag.Parse()

	stats, mask, err := simulate(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating data: %v\n", err)
		os.Exit(1)
	}

	cfg, err := write(*out, stats, mask, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error writing data: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Wrote %d tracks and %d mask steps to %s\n", opts.Tracks, opts.Steps, *out)
	fmt.Printf("Run: stormtrack -config %s\n", cfg)
}

// simulate moves storms across the grid with a random drift. Track i is
// painted into the mask with identifier i+1 at every step it is alive.
func simulate(opts options) (*dataset.Dataset, *dataset.Dataset, error) {
	if opts.Tracks <= 0 || opts.Steps <= 0 || opts.MaxDuration <= 0 || opts.Grid <= 0 {
		return nil, nil, fmt.Errorf("tracks, steps, max-duration and grid must be positive")
	}
	statsCal, err := cftime.ParseCalendar(opts.StatsCalendar)
	if err != nil {
		return nil, nil, err
	}
	maskCal, err := cftime.ParseCalendar(opts.MaskCalendar)
	if err != nil {
		return nil, nil, err
	}
	start, err := cftime.Parse(opts.Start, statsCal)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid start: %w", err)
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	g := float64(opts.Grid)
	tracks := make([]track, opts.Tracks)
	for i := range tracks {
		d := 1 + rng.Intn(opts.MaxDuration)
		if d > opts.Steps {
			d = opts.Steps
		}
		tracks[i] = track{
			start:    rng.Intn(opts.Steps - d + 1),
			duration: d,
			x:        rng.Float64() * g,
			y:        rng.Float64() * g,
			dx:       rng.Float64()*2 - 1,
			dy:       rng.Float64()*2 - 1,
		}
	}

	// Mask times carry the same fields in the mask calendar; steps the mask
	// calendar cannot represent are left invalid
	statsTimes := make([]cftime.TimePoint, opts.Steps)
	maskTimes := make([]cftime.TimePoint, opts.Steps)
	for s := range statsTimes {
		statsTimes[s] = start.Add(time.Duration(s) * time.Hour)
		if maskTimes[s], err = statsTimes[s].In(maskCal); err != nil {
			maskTimes[s] = cftime.Invalid()
		}
	}

	statsCoord, err := cftime.NewCoordinate("hours since 1970-01-01 00:00:00", statsCal.String())
	if err != nil {
		return nil, nil, err
	}
	b := trackstats.NewBuilder("simulated-tracks", opts.MaxDuration, statsCoord, "area", "meanlat", "meanlon")

	maskField := dataset.NewField(opts.Steps, opts.Grid, opts.Grid)
	for i, tr := range tracks {
		times := statsTimes[tr.start : tr.start+tr.duration]
		area := make([]float64, tr.duration)
		lat := make([]float64, tr.duration)
		lon := make([]float64, tr.duration)
		for k := 0; k < tr.duration; k++ {
			x := tr.x + tr.dx*float64(k)
			y := tr.y + tr.dy*float64(k)
			area[k] = float64(paint(maskField, tr.start+k, x, y, opts.Radius, opts.Grid, float64(i+1)))
			lat[k], lon[k] = y, x
		}
		if err := b.AddTrack(times, map[string][]float64{"area": area, "meanlat": lat, "meanlon": lon}); err != nil {
			return nil, nil, err
		}
	}

	stats, err := b.Dataset()
	if err != nil {
		return nil, nil, err
	}

	maskVar, err := dataset.FromField("mcs_mask", []string{"time", "lat", "lon"}, maskField)
	if err != nil {
		return nil, nil, err
	}
	maskVar.Attrs["long_name"] = "MCS track number mask"
	mask := dataset.New("simulated-mask", "time", maskTimes)
	mask.Attrs["source"] = "stormtrack-simulator"
	if err := mask.AddVariable(maskVar); err != nil {
		return nil, nil, err
	}
	return stats, mask, nil
}

// paint marks cells within radius of (x, y) at step with id, leaving cells
// already claimed by another storm untouched, and returns the number painted
func paint(f *dataset.Field, step int, x, y float64, radius, grid int, id float64) int {
	n := 0
	cx, cy := int(math.Round(x)), int(math.Round(y))
	for j := cy - radius; j <= cy+radius; j++ {
		for i := cx - radius; i <= cx+radius; i++ {
			if i < 0 || j < 0 || i >= grid || j >= grid {
				continue
			}
			if (i-cx)*(i-cx)+(j-cy)*(j-cy) > radius*radius {
				continue
			}
			off := (step*grid+j)*grid + i
			if f.Values[off] == 0 {
				f.Values[off] = id
				n++
			}
		}
	}
	return n
}

// write stores both datasets and a matching config.yaml under dir and
// returns the config path
func write(dir string, stats, mask *dataset.Dataset, opts options) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	tracksPath := filepath.Join(dir, "tracks.strk")
	maskPath := filepath.Join(dir, "mask")

	if err := trackfile.Write(tracksPath, stats); err != nil {
		return "", err
	}
	maskCoord, err := cftime.NewCoordinate("hours since 1970-01-01 00:00:00", opts.MaskCalendar)
	if err != nil {
		return "", err
	}
	if err := chunkstore.Create(maskPath, mask, maskCoord); err != nil {
		return "", err
	}

	cfg := map[string]any{
		"datasets": map[string]any{
			"tracks": map[string]string{"path": tracksPath, "format": config.FormatTrackFile},
			"mask":   map[string]string{"path": maskPath, "format": config.FormatChunkStore, "variable": "mcs_mask"},
		},
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}
	cfgPath := filepath.Join(dir, "config.yaml")
	return cfgPath, os.WriteFile(cfgPath, b, 0644)
}
