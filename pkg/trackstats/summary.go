package trackstats

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary describes the valid values of one variable over a track's lifetime
type Summary struct {
	Variable string  `json:"variable"`
	Track    int     `json:"track"`
	Count    int     `json:"count"`
	Mean     float64 `json:"mean"`
	StdDev   float64 `json:"stddev"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
}

// Summarize computes descriptive statistics of a track's series, skipping
// fill and NaN entries. A track with no valid values has Count == 0 and
// zero statistics.
func (s *TrackSet) Summarize(name string, track int) (Summary, error) {
	v, err := s.seriesVar(name)
	if err != nil {
		return Summary{}, err
	}
	row, err := s.row(v, track)
	if err != nil {
		return Summary{}, err
	}

	values := make([]float64, 0, len(row))
	for _, x := range row {
		if !v.IsMissing(x) {
			values = append(values, x)
		}
	}

	sum := Summary{Variable: name, Track: track, Count: len(values)}
	if len(values) == 0 {
		return sum, nil
	}
	sum.Mean = stat.Mean(values, nil)
	if len(values) > 1 {
		sum.StdDev = stat.StdDev(values, nil)
	}
	sum.Min = floats.Min(values)
	sum.Max = floats.Max(values)
	return sum, nil
}
