// Package trackstats reads the track statistics schema: per-track series
// stored in a fixed (tracks x times) layout, padded with a fill value past
// each track's duration.
package trackstats

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/chrissnell/stormtrack/pkg/cftime"
	"github.com/chrissnell/stormtrack/pkg/dataset"
)

const (
	TrackDim    = "tracks"
	TimeDim     = "times"
	TimeVar     = "time"
	DurationVar = "track_duration"
)

// ErrInvalidIdentifier is returned for track indices outside the dataset
var ErrInvalidIdentifier = errors.New("invalid track identifier")

// TrackSet gives per-track access to a statistics dataset
type TrackSet struct {
	ds        *dataset.Dataset
	timeVar   *dataset.Variable
	coord     cftime.Coordinate
	durations []int
}

// New validates the statistics schema of ds
func New(ds *dataset.Dataset) (*TrackSet, error) {
	timeVar, err := ds.Var(TimeVar)
	if err != nil {
		return nil, err
	}
	if len(timeVar.Dims) != 2 || timeVar.Dims[0] != TrackDim || timeVar.Dims[1] != TimeDim {
		return nil, fmt.Errorf("%s has dims %v, expected [%s %s]", TimeVar, timeVar.Dims, TrackDim, TimeDim)
	}
	coord, err := cftime.NewCoordinate(timeVar.Attrs["units"], timeVar.Attrs["calendar"])
	if err != nil {
		return nil, fmt.Errorf("decoding %s attributes: %w", TimeVar, err)
	}
	if timeVar.HasFill {
		coord = coord.WithFill(timeVar.FillValue)
	}

	durVar, err := ds.Var(DurationVar)
	if err != nil {
		return nil, err
	}
	if len(durVar.Dims) != 1 || durVar.Dims[0] != TrackDim || durVar.Steps() != timeVar.Steps() {
		return nil, fmt.Errorf("%s must be a 1D %s variable of length %d", DurationVar, TrackDim, timeVar.Steps())
	}
	raw, err := durVar.Load()
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", DurationVar, err)
	}

	maxDuration := timeVar.Shape[1]
	durations := make([]int, len(raw.Values))
	for i, v := range raw.Values {
		if durVar.IsMissing(v) {
			continue
		}
		d := int(math.Round(v))
		if d < 0 || d > maxDuration {
			return nil, fmt.Errorf("track %d has duration %d outside [0, %d]", i, d, maxDuration)
		}
		durations[i] = d
	}

	return &TrackSet{ds: ds, timeVar: timeVar, coord: coord, durations: durations}, nil
}

// Dataset returns the underlying dataset
func (s *TrackSet) Dataset() *dataset.Dataset {
	return s.ds
}

// Coordinate returns the decoder of the time variable
func (s *TrackSet) Coordinate() cftime.Coordinate {
	return s.coord
}

// NumTracks returns the number of tracks
func (s *TrackSet) NumTracks() int {
	return len(s.durations)
}

// MaxDuration returns the fixed time capacity shared by all tracks
func (s *TrackSet) MaxDuration() int {
	return s.timeVar.Shape[1]
}

// Validate rejects indices outside [0, NumTracks)
func (s *TrackSet) Validate(track int) error {
	if track < 0 || track >= len(s.durations) {
		return fmt.Errorf("%w: track %d outside [0, %d)", ErrInvalidIdentifier, track, len(s.durations))
	}
	return nil
}

// Duration returns the number of valid steps of a track
func (s *TrackSet) Duration(track int) (int, error) {
	if err := s.Validate(track); err != nil {
		return 0, err
	}
	return s.durations[track], nil
}

// Times decodes the valid prefix of a track's time row. Fill entries inside
// the prefix decode to invalid TimePoints.
func (s *TrackSet) Times(track int) ([]cftime.TimePoint, error) {
	row, err := s.row(s.timeVar, track)
	if err != nil {
		return nil, err
	}
	return s.coord.DecodeAll(row), nil
}

// Series returns the valid prefix of a (tracks x times) variable for a track
func (s *TrackSet) Series(name string, track int) ([]float64, error) {
	v, err := s.seriesVar(name)
	if err != nil {
		return nil, err
	}
	return s.row(v, track)
}

func (s *TrackSet) seriesVar(name string) (*dataset.Variable, error) {
	v, err := s.ds.Var(name)
	if err != nil {
		return nil, err
	}
	if len(v.Dims) != 2 || v.Dims[0] != TrackDim || v.Dims[1] != TimeDim {
		return nil, fmt.Errorf("variable %s has dims %v, expected [%s %s]", name, v.Dims, TrackDim, TimeDim)
	}
	return v, nil
}

func (s *TrackSet) row(v *dataset.Variable, track int) ([]float64, error) {
	if err := s.Validate(track); err != nil {
		return nil, err
	}
	f, err := v.Step(track)
	if err != nil {
		return nil, err
	}
	return f.Values[:s.durations[track]], nil
}

// Track builds a one-track dataset indexed by the track's own timestamps.
// Each (tracks x times) variable becomes a 1D variable over the valid
// prefix; rows are read the first time they are needed.
func (s *TrackSet) Track(track int) (*dataset.Dataset, error) {
	times, err := s.Times(track)
	if err != nil {
		return nil, err
	}
	ds := dataset.New(fmt.Sprintf("%s/track-%d", s.ds.Name, track), TimeDim, times)
	for k, v := range s.ds.Attrs {
		ds.Attrs[k] = v
	}

	for _, name := range s.ds.Variables() {
		if name == TimeVar {
			continue
		}
		src, err := s.seriesVar(name)
		if err != nil {
			continue
		}
		v, err := dataset.NewVariable(name, []string{TimeDim}, []int{len(times)}, s.rowLoader(src, track))
		if err != nil {
			return nil, err
		}
		v.Attrs = src.Attrs
		v.FillValue, v.HasFill = src.FillValue, src.HasFill
		if err := ds.AddVariable(v); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

func (s *TrackSet) rowLoader(v *dataset.Variable, track int) dataset.StepLoader {
	var (
		once sync.Once
		row  []float64
		err  error
	)
	return func(step int) ([]float64, error) {
		once.Do(func() { row, err = s.row(v, track) })
		if err != nil {
			return nil, err
		}
		return row[step : step+1], nil
	}
}
