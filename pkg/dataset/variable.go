package dataset

import (
	"fmt"
	"math"
	"sync"
)

// StepLoader reads the i-th slice of a variable along its leading dimension
type StepLoader func(step int) ([]float64, error)

// Variable is a named array whose data is read on demand
type Variable struct {
	Name      string
	Dims      []string
	Shape     []int
	Attrs     map[string]string
	FillValue float64
	HasFill   bool

	load StepLoader

	mu    sync.Mutex
	cache *Field
}

// NewVariable creates a lazily loaded variable. shape[0] is the number of
// steps loader can serve.
func NewVariable(name string, dims []string, shape []int, loader StepLoader) (*Variable, error) {
	if len(dims) != len(shape) || len(shape) == 0 {
		return nil, fmt.Errorf("variable %s: dims %v do not match shape %v", name, dims, shape)
	}
	return &Variable{
		Name:  name,
		Dims:  append([]string(nil), dims...),
		Shape: append([]int(nil), shape...),
		Attrs: map[string]string{},
		load:  loader,
	}, nil
}

// FromField creates a variable backed by data already in memory
func FromField(name string, dims []string, f *Field) (*Variable, error) {
	v, err := NewVariable(name, dims, f.Shape, func(step int) ([]float64, error) {
		s, err := f.Step(step)
		if err != nil {
			return nil, err
		}
		return s.Values, nil
	})
	if err != nil {
		return nil, err
	}
	v.cache = f
	return v, nil
}

// WithFill marks fill as the variable's missing-value sentinel
func (v *Variable) WithFill(fill float64) *Variable {
	v.FillValue = fill
	v.HasFill = true
	return v
}

// Steps returns the length of the leading dimension
func (v *Variable) Steps() int {
	return v.Shape[0]
}

// StepShape returns the shape of one slice along the leading dimension
func (v *Variable) StepShape() []int {
	return append([]int(nil), v.Shape[1:]...)
}

// Loaded reports whether the variable has been materialized
func (v *Variable) Loaded() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.cache != nil
}

// IsMissing reports whether x is the fill value or NaN
func (v *Variable) IsMissing(x float64) bool {
	if math.IsNaN(x) {
		return true
	}
	return v.HasFill && x == v.FillValue
}

// Step returns the i-th slice along the leading dimension. Only that slice
// is read unless the variable is already loaded.
func (v *Variable) Step(i int) (*Field, error) {
	if i < 0 || i >= v.Steps() {
		return nil, fmt.Errorf("variable %s: step %d out of range [0, %d)", v.Name, i, v.Steps())
	}
	v.mu.Lock()
	cache := v.cache
	v.mu.Unlock()
	if cache != nil {
		return cache.Step(i)
	}

	values, err := v.load(i)
	if err != nil {
		return nil, fmt.Errorf("variable %s: reading step %d: %w", v.Name, i, err)
	}
	shape := v.StepShape()
	if len(values) != product(shape) {
		return nil, fmt.Errorf("variable %s: step %d has %d values, expected %d", v.Name, i, len(values), product(shape))
	}
	return &Field{Shape: shape, Values: values}, nil
}

// Load reads every step into memory and keeps it
func (v *Variable) Load() (*Field, error) {
	v.mu.Lock()
	if v.cache != nil {
		defer v.mu.Unlock()
		return v.cache, nil
	}
	v.mu.Unlock()

	full := NewField(v.Shape...)
	n := product(v.StepShape())
	for i := 0; i < v.Steps(); i++ {
		s, err := v.Step(i)
		if err != nil {
			return nil, err
		}
		copy(full.Values[i*n:], s.Values)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.cache = full
	return full, nil
}

// subset returns a variable restricted to the given leading-dimension steps
func (v *Variable) subset(indices []int) *Variable {
	shape := v.StepShape()
	idx := append([]int(nil), indices...)
	sub := &Variable{
		Name:      v.Name,
		Dims:      append([]string(nil), v.Dims...),
		Shape:     append([]int{len(idx)}, shape...),
		Attrs:     v.Attrs,
		FillValue: v.FillValue,
		HasFill:   v.HasFill,
		load: func(step int) ([]float64, error) {
			s, err := v.Step(idx[step])
			if err != nil {
				return nil, err
			}
			return s.Values, nil
		},
	}
	return sub
}
