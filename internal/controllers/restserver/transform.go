package restserver

import (
	"github.com/chrissnell/stormtrack/internal/analysis"
	"github.com/chrissnell/stormtrack/pkg/cftime"
)

func formatTimes(times []cftime.TimePoint) []string {
	out := make([]string, len(times))
	for i, t := range times {
		out[i] = t.String()
	}
	return out
}

func transformAlignment(a *analysis.Alignment) AlignmentResponse {
	return AlignmentResponse{
		Track:      a.Track,
		Overlap:    a.Overlap(),
		TrackSteps: a.TrackSteps,
		MaskSteps:  a.MaskSteps,
		Times:      formatTimes(a.Subset.Times),
	}
}

func transformLink(res *analysis.LinkResult, withCells bool) MaskResponse {
	mr := MaskResponse{
		Track:      res.Track,
		Identifier: res.Identifier,
		Overlap:    res.Alignment.Overlap(),
		MaskStep:   res.MaskStep,
		PixelCount: res.PixelCount(),
	}
	if res.Selected.IsValid() {
		mr.Selected = res.Selected.String()
	}
	if res.Membership != nil {
		mr.Shape = res.Membership.Shape
		if withCells {
			mr.Cells = res.Membership.Indices()
		}
	}
	return mr
}

func transformOverlap(report []analysis.TrackOverlap) OverlapResponse {
	or := OverlapResponse{Tracks: report}
	for _, t := range report {
		if t.Overlap == 0 {
			or.NoOverlap++
		}
	}
	return or
}
