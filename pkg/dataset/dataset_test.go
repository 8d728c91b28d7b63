package dataset

import (
	"errors"
	"testing"
	"time"

	"github.com/chrissnell/stormtrack/pkg/cftime"
)

func hourly(start cftime.TimePoint, n int) []cftime.TimePoint {
	times := make([]cftime.TimePoint, n)
	for i := range times {
		times[i] = start.Add(time.Duration(i) * time.Hour)
	}
	return times
}

// countingVariable records which steps were actually read
func countingVariable(t *testing.T, steps, cells int, reads map[int]int) *Variable {
	t.Helper()
	v, err := NewVariable("mask", []string{"time", "cell"}, []int{steps, cells}, func(step int) ([]float64, error) {
		reads[step]++
		vals := make([]float64, cells)
		for i := range vals {
			vals[i] = float64(step)
		}
		return vals, nil
	})
	if err != nil {
		t.Fatalf("NewVariable: %v", err)
	}
	return v
}

func TestVariableLazyStep(t *testing.T) {
	reads := map[int]int{}
	v := countingVariable(t, 5, 3, reads)

	f, err := v.Step(3)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if f.Values[0] != 3 || len(f.Shape) != 1 || f.Shape[0] != 3 {
		t.Errorf("Step(3) = %+v", f)
	}
	if len(reads) != 1 || reads[3] != 1 {
		t.Errorf("expected only step 3 to be read, got %v", reads)
	}
	if v.Loaded() {
		t.Error("variable should not be loaded after a single step read")
	}

	full, err := v.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if full.Len() != 15 || full.Values[14] != 4 {
		t.Errorf("Load() = %+v", full)
	}
	if _, err := v.Step(1); err != nil {
		t.Fatalf("Step after Load: %v", err)
	}
	if reads[1] != 1 {
		t.Errorf("step 1 read %d times, expected cached read", reads[1])
	}
	if _, err := v.Step(5); err == nil {
		t.Error("expected out of range error")
	}
}

func TestFieldAccess(t *testing.T) {
	f := NewField(2, 3)
	if err := f.Set(7, 1, 2); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, err := f.At(1, 2)
	if err != nil || v != 7 {
		t.Errorf("At(1,2) = %v, %v", v, err)
	}
	if f.Values[5] != 7 {
		t.Errorf("row-major layout broken: %v", f.Values)
	}
	if _, err := f.At(2, 0); err == nil {
		t.Error("expected out of range error")
	}
	if _, err := FieldFrom([]float64{1, 2, 3}, 2, 2); err == nil {
		t.Error("expected size mismatch error")
	}
}

func TestIselAndWithTimes(t *testing.T) {
	start := cftime.MustDate(cftime.NoLeap, 2020, 2, 1, 0, 0, 0)
	ds := New("mask", "time", hourly(start, 5))
	reads := map[int]int{}
	if err := ds.AddVariable(countingVariable(t, 5, 2, reads)); err != nil {
		t.Fatalf("AddVariable: %v", err)
	}

	sub, err := ds.Isel([]int{4, 1})
	if err != nil {
		t.Fatalf("Isel: %v", err)
	}
	if sub.Len() != 2 || sub.Times[0].Hour != 4 || sub.Times[1].Hour != 1 {
		t.Errorf("Isel times = %v", sub.Times)
	}
	v, _ := sub.Var("mask")
	f, err := v.Step(0)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if f.Values[0] != 4 {
		t.Errorf("subset step 0 = %v, expected values from step 4", f.Values)
	}
	if len(reads) != 1 {
		t.Errorf("Isel should stay lazy, reads = %v", reads)
	}

	if _, err := ds.Isel([]int{5}); err == nil {
		t.Error("expected out of range error")
	}

	relabel := hourly(cftime.MustDate(cftime.Standard, 2021, 1, 1, 0, 0, 0), 2)
	renamed, err := sub.WithTimes(relabel)
	if err != nil {
		t.Fatalf("WithTimes: %v", err)
	}
	if renamed.Times[0].Year != 2021 || sub.Times[0].Year != 2020 {
		t.Error("WithTimes should copy, not mutate")
	}
	if _, err := sub.WithTimes(relabel[:1]); err == nil {
		t.Error("expected length mismatch error")
	}
}

func TestAddVariableChecksSteps(t *testing.T) {
	start := cftime.MustDate(cftime.Standard, 2020, 1, 1, 0, 0, 0)
	ds := New("mask", "time", hourly(start, 3))
	if err := ds.AddVariable(countingVariable(t, 4, 1, map[int]int{})); err == nil {
		t.Error("expected step count mismatch error")
	}
}

func TestNearest(t *testing.T) {
	start := cftime.MustDate(cftime.NoLeap, 2020, 2, 1, 0, 0, 0)
	times := hourly(start, 4)
	times[2] = cftime.Invalid()
	ds := New("mask", "time", times)

	tests := []struct {
		name      string
		tp        cftime.TimePoint
		tolerance time.Duration
		expected  int
		missing   bool
	}{
		{"exact", cftime.MustDate(cftime.NoLeap, 2020, 2, 1, 1, 0, 0), 0, 1, false},
		{"rounds to closer", cftime.MustDate(cftime.NoLeap, 2020, 2, 1, 0, 40, 0), 0, 1, false},
		{"skips invalid step", cftime.MustDate(cftime.NoLeap, 2020, 2, 1, 2, 10, 0), 0, 3, false},
		{"other calendar", cftime.MustDate(cftime.ProlepticGregorian, 2020, 2, 1, 3, 0, 0), 0, 3, false},
		{"beyond tolerance", cftime.MustDate(cftime.NoLeap, 2020, 2, 3, 0, 0, 0), time.Hour, 0, true},
		{"not in calendar", cftime.MustDate(cftime.ProlepticGregorian, 2020, 2, 29, 0, 0, 0), 0, 0, true},
		{"invalid request", cftime.Invalid(), 0, 0, true},
		{"centuries before", cftime.MustDate(cftime.NoLeap, 1500, 1, 1, 0, 0, 0), time.Hour, 0, true},
		{"centuries after", cftime.MustDate(cftime.NoLeap, 2600, 1, 1, 0, 0, 0), time.Hour, 0, true},
		{"centuries before unlimited", cftime.MustDate(cftime.NoLeap, 1500, 1, 1, 0, 0, 0), 0, 0, false},
		{"centuries after unlimited", cftime.MustDate(cftime.NoLeap, 2600, 1, 1, 0, 0, 0), 0, 3, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			i, err := ds.Nearest(tt.tp, tt.tolerance)
			if tt.missing {
				if !errors.Is(err, ErrMissingTimestep) {
					t.Fatalf("expected ErrMissingTimestep, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Nearest: %v", err)
			}
			if i != tt.expected {
				t.Errorf("Nearest = %d, expected %d", i, tt.expected)
			}
		})
	}

	empty := New("empty", "time", nil)
	if _, err := empty.Nearest(start, 0); !errors.Is(err, ErrMissingTimestep) {
		t.Errorf("empty dataset: expected ErrMissingTimestep, got %v", err)
	}
}

func TestSelectNearest(t *testing.T) {
	start := cftime.MustDate(cftime.NoLeap, 2020, 2, 1, 0, 0, 0)
	ds := New("mask", "time", hourly(start, 3))
	if err := ds.AddVariable(countingVariable(t, 3, 2, map[int]int{})); err != nil {
		t.Fatalf("AddVariable: %v", err)
	}
	f, when, err := ds.SelectNearest("mask", start.Add(110*time.Minute), 0)
	if err != nil {
		t.Fatalf("SelectNearest: %v", err)
	}
	if f.Values[0] != 2 || when.Hour != 2 {
		t.Errorf("SelectNearest = %v at %s", f.Values, when)
	}
	if _, _, err := ds.SelectNearest("nope", start, 0); !errors.Is(err, ErrUnknownVariable) {
		t.Errorf("expected ErrUnknownVariable, got %v", err)
	}
}
