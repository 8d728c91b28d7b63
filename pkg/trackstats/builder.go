package trackstats

import (
	"fmt"
	"math"

	"github.com/chrissnell/stormtrack/pkg/cftime"
	"github.com/chrissnell/stormtrack/pkg/dataset"
)

// FillValue pads track rows past their duration
const FillValue = -999.0

// Builder assembles a statistics dataset track by track
type Builder struct {
	name        string
	maxDuration int
	coord       cftime.Coordinate
	varNames    []string
	times       [][]float64
	series      map[string][][]float64
	durations   []float64
}

// NewBuilder creates a builder for tracks of at most maxDuration steps with
// the named series variables
func NewBuilder(name string, maxDuration int, coord cftime.Coordinate, variables ...string) *Builder {
	b := &Builder{
		name:        name,
		maxDuration: maxDuration,
		coord:       coord.WithFill(FillValue),
		varNames:    variables,
		series:      map[string][][]float64{},
	}
	return b
}

// AddTrack appends a track. Every series must have one value per timestamp.
// A rejected track leaves the builder unchanged.
func (b *Builder) AddTrack(times []cftime.TimePoint, series map[string][]float64) error {
	if len(times) > b.maxDuration {
		return fmt.Errorf("track has %d steps, capacity is %d", len(times), b.maxDuration)
	}
	encoded, err := b.coord.EncodeAll(times)
	if err != nil {
		return err
	}

	rows := make(map[string][]float64, len(b.varNames))
	for _, name := range b.varNames {
		values, ok := series[name]
		if !ok {
			values = make([]float64, len(times))
			for i := range values {
				values[i] = math.NaN()
			}
		}
		if len(values) != len(times) {
			return fmt.Errorf("series %s has %d values for %d timestamps", name, len(values), len(times))
		}
		rows[name] = pad(values, b.maxDuration)
	}

	b.times = append(b.times, pad(encoded, b.maxDuration))
	for _, name := range b.varNames {
		b.series[name] = append(b.series[name], rows[name])
	}
	b.durations = append(b.durations, float64(len(times)))
	return nil
}

// Dataset returns the assembled, fully materialized dataset
func (b *Builder) Dataset() (*dataset.Dataset, error) {
	ds := dataset.New(b.name, "", nil)
	n := len(b.durations)

	timeVar, err := dataset.FromField(TimeVar, []string{TrackDim, TimeDim}, stack(b.times, n, b.maxDuration))
	if err != nil {
		return nil, err
	}
	timeVar.WithFill(FillValue)
	timeVar.Attrs["units"] = b.coord.Units.String()
	timeVar.Attrs["calendar"] = b.coord.Calendar.String()
	if err := ds.AddVariable(timeVar); err != nil {
		return nil, err
	}

	dur, err := dataset.FieldFrom(append([]float64(nil), b.durations...), n)
	if err != nil {
		return nil, err
	}
	durVar, err := dataset.FromField(DurationVar, []string{TrackDim}, dur)
	if err != nil {
		return nil, err
	}
	if err := ds.AddVariable(durVar); err != nil {
		return nil, err
	}

	for _, name := range b.varNames {
		v, err := dataset.FromField(name, []string{TrackDim, TimeDim}, stack(b.series[name], n, b.maxDuration))
		if err != nil {
			return nil, err
		}
		if err := ds.AddVariable(v.WithFill(FillValue)); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

func pad(values []float64, n int) []float64 {
	out := make([]float64, n)
	copy(out, values)
	for i := len(values); i < n; i++ {
		out[i] = FillValue
	}
	return out
}

func stack(rows [][]float64, n, width int) *dataset.Field {
	f := dataset.NewField(n, width)
	for i, r := range rows {
		copy(f.Values[i*width:], r)
	}
	return f
}
