package dataset

import "fmt"

// Field is a dense row-major array
type Field struct {
	Shape  []int
	Values []float64
}

// NewField allocates a zeroed field
func NewField(shape ...int) *Field {
	return &Field{Shape: append([]int(nil), shape...), Values: make([]float64, product(shape))}
}

// FieldFrom wraps values, which must hold exactly product(shape) elements
func FieldFrom(values []float64, shape ...int) (*Field, error) {
	if len(values) != product(shape) {
		return nil, fmt.Errorf("field of shape %v needs %d values, got %d", shape, product(shape), len(values))
	}
	return &Field{Shape: append([]int(nil), shape...), Values: values}, nil
}

// Len returns the number of elements
func (f *Field) Len() int {
	return len(f.Values)
}

// Offset converts an index tuple to a flat offset
func (f *Field) Offset(idx ...int) (int, error) {
	if len(idx) != len(f.Shape) {
		return 0, fmt.Errorf("index %v has %d dimensions, field has %d", idx, len(idx), len(f.Shape))
	}
	off := 0
	for i, n := range f.Shape {
		if idx[i] < 0 || idx[i] >= n {
			return 0, fmt.Errorf("index %v out of range for shape %v", idx, f.Shape)
		}
		off = off*n + idx[i]
	}
	return off, nil
}

// At returns the element at idx
func (f *Field) At(idx ...int) (float64, error) {
	off, err := f.Offset(idx...)
	if err != nil {
		return 0, err
	}
	return f.Values[off], nil
}

// Set stores v at idx
func (f *Field) Set(v float64, idx ...int) error {
	off, err := f.Offset(idx...)
	if err != nil {
		return err
	}
	f.Values[off] = v
	return nil
}

// Step returns a view of the i-th slice along the leading dimension
func (f *Field) Step(i int) (*Field, error) {
	if len(f.Shape) == 0 || i < 0 || i >= f.Shape[0] {
		return nil, fmt.Errorf("step %d out of range for shape %v", i, f.Shape)
	}
	inner := f.Shape[1:]
	n := product(inner)
	return &Field{Shape: append([]int(nil), inner...), Values: f.Values[i*n : (i+1)*n]}, nil
}

func product(shape []int) int {
	n := 1
	for _, s := range shape {
		n *= s
	}
	return n
}
