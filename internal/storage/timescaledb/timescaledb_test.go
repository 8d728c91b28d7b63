package timescaledb

import (
	"testing"

	"github.com/chrissnell/stormtrack/internal/analysis"
	"github.com/chrissnell/stormtrack/internal/linker"
	"github.com/chrissnell/stormtrack/pkg/cftime"
	"github.com/google/uuid"
)

func TestFromResult(t *testing.T) {
	runID := uuid.New()
	res := &analysis.LinkResult{
		Track:      6,
		Identifier: 7,
		Alignment:  &analysis.Alignment{Track: 6, TrackSteps: []int{0, 1}, MaskSteps: []int{3, 4}},
		Selected:   cftime.MustDate(cftime.Julian, 2000, 1, 1, 0, 0, 0),
		MaskStep:   3,
		Membership: &linker.Membership{Shape: []int{2, 2}, Cells: []bool{true, false, true, true}, Identifier: 7},
	}

	row := FromResult(runID, res)
	if row.RunID != runID || row.Track != 6 || row.Identifier != 7 {
		t.Errorf("row = %+v", row)
	}
	if row.Overlap != 2 || row.PixelCount != 3 || row.MaskStep != 3 {
		t.Errorf("overlap %d pixels %d step %d", row.Overlap, row.PixelCount, row.MaskStep)
	}
	if row.Calendar != "julian" || row.SelectedTime != "2000-01-01T00:00:00" {
		t.Errorf("selected = %s (%s)", row.SelectedTime, row.Calendar)
	}
	if row.SelectedUTC == nil || row.SelectedUTC.Day() != 14 {
		t.Errorf("SelectedUTC = %v, expected 2000-01-14", row.SelectedUTC)
	}
}

func TestFromResultWithoutSelection(t *testing.T) {
	res := &analysis.LinkResult{
		Track:      2,
		Identifier: 3,
		Alignment:  &analysis.Alignment{Track: 2, TrackSteps: []int{}, MaskSteps: []int{}},
		Selected:   cftime.Invalid(),
		MaskStep:   -1,
	}

	row := FromResult(uuid.New(), res)
	if row.SelectedTime != "" || row.SelectedUTC != nil || row.PixelCount != 0 || row.Overlap != 0 {
		t.Errorf("row = %+v", row)
	}
	if (TrackLink{}).TableName() != "track_links" {
		t.Error("unexpected table name")
	}
}
