// Package linker joins a track statistics dataset to a pixel mask dataset:
// it aligns their time axes across calendar systems and maps track indices
// to mask identifiers.
package linker

import (
	"errors"
	"fmt"

	"github.com/chrissnell/stormtrack/pkg/cftime"
	"github.com/chrissnell/stormtrack/pkg/dataset"
	"github.com/chrissnell/stormtrack/pkg/trackstats"
)

// MaskIdentifierOffset converts a 0-based track index in the statistics
// dataset to the identifier stored in mask cells.
const MaskIdentifierOffset = 1

// ErrShapeMismatch matches any *ShapeMismatchError
var ErrShapeMismatch = errors.New("shape mismatch")

// ShapeMismatchError reports an aligned subset whose length disagrees with
// the series it is being relabelled to
type ShapeMismatchError struct {
	Subset int
	Target int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("shape mismatch: aligned subset has %d timesteps, target time axis has %d", e.Subset, e.Target)
}

// Is lets errors.Is match ErrShapeMismatch
func (e *ShapeMismatchError) Is(target error) bool {
	return target == ErrShapeMismatch
}

// Normalize reduces a timestamp to its (year, month, day, hour) key, dropping
// the calendar and anything below the hour. Missing timestamps return
// ok == false.
func Normalize(tp cftime.TimePoint) (cftime.Key, bool) {
	return tp.Key()
}

// Align returns the positions in a whose normalized timestamp also occurs
// in b, in ascending order. Invalid timestamps on either side never match.
// No overlap yields an empty, non-nil slice.
func Align(a, b []cftime.TimePoint) []int {
	keys := make(map[cftime.Key]struct{}, len(b))
	for _, tp := range b {
		if k, ok := Normalize(tp); ok {
			keys[k] = struct{}{}
		}
	}

	positions := []int{}
	for i, tp := range a {
		k, ok := Normalize(tp)
		if !ok {
			continue
		}
		if _, found := keys[k]; found {
			positions = append(positions, i)
		}
	}
	return positions
}

// RestrictToOverlap returns the positions of target that fall in the window
// shared with source. It is Align with the roles swapped, named for the step
// that restricts the relabelling target before RelabelTime.
func RestrictToOverlap(target, source []cftime.TimePoint) []int {
	return Align(target, source)
}

// RelabelTime replaces the time labels of an aligned subset with target,
// preserving the subset's order. A length disagreement is a
// *ShapeMismatchError; the subset is never truncated or padded.
func RelabelTime(subset *dataset.Dataset, target []cftime.TimePoint) (*dataset.Dataset, error) {
	if subset.Len() != len(target) {
		return nil, &ShapeMismatchError{Subset: subset.Len(), Target: len(target)}
	}
	return subset.WithTimes(target)
}

// MaskIdentifier returns the mask cell value that marks a track
func MaskIdentifier(trackIndex int) int {
	return trackIndex + MaskIdentifierOffset
}

// Membership marks the mask cells that belong to one track
type Membership struct {
	Shape      []int
	Cells      []bool
	Identifier int
}

// Count returns the number of member cells
func (m *Membership) Count() int {
	n := 0
	for _, c := range m.Cells {
		if c {
			n++
		}
	}
	return n
}

// Indices returns the flat offsets of member cells
func (m *Membership) Indices() []int {
	idx := []int{}
	for i, c := range m.Cells {
		if c {
			idx = append(idx, i)
		}
	}
	return idx
}

// TrackMaskMembership tests every cell of one mask timestep for equality with
// the track's mask identifier. Range checks against the statistics dataset
// happen before this call; only negative indices are rejected here.
func TrackMaskMembership(maskStep *dataset.Field, trackIndex int) (*Membership, error) {
	if trackIndex < 0 {
		return nil, fmt.Errorf("%w: negative track index %d", trackstats.ErrInvalidIdentifier, trackIndex)
	}
	id := float64(MaskIdentifier(trackIndex))
	m := &Membership{
		Shape:      append([]int(nil), maskStep.Shape...),
		Cells:      make([]bool, len(maskStep.Values)),
		Identifier: MaskIdentifier(trackIndex),
	}
	for i, v := range maskStep.Values {
		m.Cells[i] = v == id
	}
	return m, nil
}
