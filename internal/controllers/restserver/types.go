package restserver

import (
	"github.com/chrissnell/stormtrack/internal/analysis"
	"github.com/chrissnell/stormtrack/pkg/trackstats"
)

// TracksResponse describes the track statistics dataset
type TracksResponse struct {
	Count       int    `json:"count"`
	MaxDuration int    `json:"max_duration"`
	Calendar    string `json:"calendar"`
	Units       string `json:"units"`
}

// TrackResponse describes one track
type TrackResponse struct {
	Track      int                 `json:"track"`
	Identifier int                 `json:"identifier"`
	Duration   int                 `json:"duration"`
	Times      []string            `json:"times"`
	Summary    *trackstats.Summary `json:"summary,omitempty"`
}

// AlignmentResponse lists the matched steps of a track and the mask
type AlignmentResponse struct {
	Track      int      `json:"track"`
	Overlap    int      `json:"overlap"`
	TrackSteps []int    `json:"track_steps"`
	MaskSteps  []int    `json:"mask_steps"`
	Times      []string `json:"times"`
}

// MaskResponse is the membership of a track at one mask timestep
type MaskResponse struct {
	Track      int    `json:"track"`
	Identifier int    `json:"identifier"`
	Overlap    int    `json:"overlap"`
	Selected   string `json:"selected,omitempty"`
	MaskStep   int    `json:"mask_step"`
	PixelCount int    `json:"pixel_count"`
	Shape      []int  `json:"shape,omitempty"`
	Cells      []int  `json:"cells,omitempty"`
}

// OverlapResponse reports overlap for every track
type OverlapResponse struct {
	Tracks []analysis.TrackOverlap `json:"tracks"`
	// NoOverlap counts tracks without any aligned step
	NoOverlap int `json:"no_overlap"`
}
