// Package dataset models labeled multi-dimensional datasets with a named time
// dimension and lazily loaded variables.
package dataset

import (
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/chrissnell/stormtrack/pkg/cftime"
)

var (
	// ErrMissingTimestep is returned when no timestep can be selected
	ErrMissingTimestep = errors.New("no matching timestep")
	// ErrUnknownVariable is returned when a variable is not in the dataset
	ErrUnknownVariable = errors.New("unknown variable")
)

// Dataset is a set of variables sharing dimensions. When TimeDim is set,
// Times labels the steps of every variable whose leading dimension is TimeDim.
type Dataset struct {
	Name    string
	TimeDim string
	Times   []cftime.TimePoint
	Attrs   map[string]string

	vars   map[string]*Variable
	order  []string
	closer io.Closer
}

// New creates an empty dataset
func New(name, timeDim string, times []cftime.TimePoint) *Dataset {
	return &Dataset{
		Name:    name,
		TimeDim: timeDim,
		Times:   times,
		Attrs:   map[string]string{},
		vars:    map[string]*Variable{},
	}
}

// SetCloser registers the resource released by Close
func (d *Dataset) SetCloser(c io.Closer) {
	d.closer = c
}

// Close releases any files backing the dataset
func (d *Dataset) Close() error {
	if d.closer == nil {
		return nil
	}
	return d.closer.Close()
}

// Len returns the number of timesteps
func (d *Dataset) Len() int {
	return len(d.Times)
}

// AddVariable adds v, checking that a time-leading variable has one step per
// timestamp.
func (d *Dataset) AddVariable(v *Variable) error {
	if _, exists := d.vars[v.Name]; exists {
		return fmt.Errorf("dataset %s already has a variable named %s", d.Name, v.Name)
	}
	if d.TimeDim != "" && v.Dims[0] == d.TimeDim && v.Steps() != len(d.Times) {
		return fmt.Errorf("variable %s has %d %s steps, dataset %s has %d timestamps",
			v.Name, v.Steps(), d.TimeDim, d.Name, len(d.Times))
	}
	d.vars[v.Name] = v
	d.order = append(d.order, v.Name)
	return nil
}

// Var looks up a variable by name
func (d *Dataset) Var(name string) (*Variable, error) {
	v, ok := d.vars[name]
	if !ok {
		return nil, fmt.Errorf("%w %q in dataset %s", ErrUnknownVariable, name, d.Name)
	}
	return v, nil
}

// Variables returns variable names in insertion order
func (d *Dataset) Variables() []string {
	return append([]string(nil), d.order...)
}

// Isel restricts the dataset to the given time positions, in the given
// order. Variables are subset lazily.
func (d *Dataset) Isel(indices []int) (*Dataset, error) {
	if d.TimeDim == "" {
		return nil, fmt.Errorf("dataset %s has no time dimension", d.Name)
	}
	times := make([]cftime.TimePoint, len(indices))
	for i, idx := range indices {
		if idx < 0 || idx >= len(d.Times) {
			return nil, fmt.Errorf("time index %d out of range [0, %d)", idx, len(d.Times))
		}
		times[i] = d.Times[idx]
	}

	out := d.shallow(times)
	for _, name := range d.order {
		v := d.vars[name]
		if v.Dims[0] == d.TimeDim {
			v = v.subset(indices)
		}
		out.vars[name] = v
	}
	return out, nil
}

// WithTimes returns a copy of the dataset whose time labels are replaced by
// times. The number of labels must equal the number of timesteps.
func (d *Dataset) WithTimes(times []cftime.TimePoint) (*Dataset, error) {
	if len(times) != len(d.Times) {
		return nil, fmt.Errorf("dataset %s has %d timesteps, got %d labels", d.Name, len(d.Times), len(times))
	}
	out := d.shallow(append([]cftime.TimePoint(nil), times...))
	for name, v := range d.vars {
		out.vars[name] = v
	}
	return out, nil
}

func (d *Dataset) shallow(times []cftime.TimePoint) *Dataset {
	attrs := make(map[string]string, len(d.Attrs))
	for k, v := range d.Attrs {
		attrs[k] = v
	}
	return &Dataset{
		Name:    d.Name,
		TimeDim: d.TimeDim,
		Times:   times,
		Attrs:   attrs,
		vars:    make(map[string]*Variable, len(d.vars)),
		order:   append([]string(nil), d.order...),
		closer:  d.closer,
	}
}

// Nearest returns the position of the timestamp closest to tp. Ties go to the
// earlier position. A positive tolerance rejects matches further away than
// tolerance. Invalid timestamps in the dataset are never selected.
func (d *Dataset) Nearest(tp cftime.TimePoint, tolerance time.Duration) (int, error) {
	if !tp.IsValid() {
		return -1, fmt.Errorf("%w: requested timestamp is invalid", ErrMissingTimestep)
	}

	// gaps are float seconds so that spans of centuries compare correctly
	best, bestGap := -1, 0.0
	for i, t := range d.Times {
		if !t.IsValid() {
			continue
		}
		target := tp
		if target.Calendar != t.Calendar {
			var err error
			if target, err = tp.In(t.Calendar); err != nil {
				return -1, fmt.Errorf("%w: %s cannot be expressed in the %s calendar of %s",
					ErrMissingTimestep, tp, t.Calendar, d.Name)
			}
		}
		gap, err := t.SubSeconds(target)
		if err != nil {
			continue
		}
		gap = math.Abs(gap)
		if best < 0 || gap < bestGap {
			best, bestGap = i, gap
		}
	}

	if best < 0 {
		return -1, fmt.Errorf("%w: dataset %s has no valid timestamps", ErrMissingTimestep, d.Name)
	}
	if tolerance > 0 && bestGap > tolerance.Seconds() {
		return -1, fmt.Errorf("%w: closest timestamp to %s in %s is %gs away (tolerance %s)",
			ErrMissingTimestep, tp, d.Name, bestGap, tolerance)
	}
	return best, nil
}

// SelectNearest returns the slice of variable name at the timestep closest
// to tp, together with the selected timestamp.
func (d *Dataset) SelectNearest(name string, tp cftime.TimePoint, tolerance time.Duration) (*Field, cftime.TimePoint, error) {
	v, err := d.Var(name)
	if err != nil {
		return nil, cftime.Invalid(), err
	}
	if v.Dims[0] != d.TimeDim {
		return nil, cftime.Invalid(), fmt.Errorf("variable %s is not indexed by %s", name, d.TimeDim)
	}
	i, err := d.Nearest(tp, tolerance)
	if err != nil {
		return nil, cftime.Invalid(), err
	}
	f, err := v.Step(i)
	if err != nil {
		return nil, cftime.Invalid(), err
	}
	return f, d.Times[i], nil
}
