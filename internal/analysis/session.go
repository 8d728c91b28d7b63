// Package analysis joins a track statistics dataset with a pixel mask dataset.
package analysis

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/chrissnell/stormtrack/internal/linker"
	"github.com/chrissnell/stormtrack/internal/log"
	"github.com/chrissnell/stormtrack/internal/store/chunkstore"
	"github.com/chrissnell/stormtrack/internal/store/trackfile"
	"github.com/chrissnell/stormtrack/pkg/cftime"
	"github.com/chrissnell/stormtrack/pkg/config"
	"github.com/chrissnell/stormtrack/pkg/dataset"
	"github.com/chrissnell/stormtrack/pkg/trackstats"
	"golang.org/x/sync/errgroup"
)

// Session holds an open pair of track statistics and mask datasets
type Session struct {
	stats     *trackstats.TrackSet
	mask      *dataset.Dataset
	maskVar   string
	tolerance time.Duration
}

// Alignment pairs the steps of one track with the mask steps at the same hour
type Alignment struct {
	Track int
	// TrackSteps are positions in the track's own time series
	TrackSteps []int
	// MaskSteps are positions in the mask dataset
	MaskSteps []int
	// Subset is the aligned part of the track, relabeled with mask times
	Subset *dataset.Dataset
}

// Overlap returns the number of aligned steps
func (a *Alignment) Overlap() int {
	return len(a.TrackSteps)
}

// LinkResult is the outcome of linking one track to one mask timestep
type LinkResult struct {
	Track      int
	Identifier int
	Alignment  *Alignment
	// Selected is the mask timestamp membership was computed at. It is
	// invalid when the track has no overlap and no time was requested.
	Selected   cftime.TimePoint
	MaskStep   int
	Membership *linker.Membership
}

// PixelCount returns the number of mask cells assigned to the track
func (r *LinkResult) PixelCount() int {
	if r.Membership == nil {
		return 0
	}
	return r.Membership.Count()
}

// TrackOverlap reports how many steps of a track have a mask counterpart
type TrackOverlap struct {
	Track      int `json:"track"`
	Identifier int `json:"identifier"`
	Duration   int `json:"duration"`
	Overlap    int `json:"overlap"`
}

// Open reads both datasets named by the configuration
func Open(cfg *config.ConfigData) (*Session, error) {
	tolerance, err := cfg.Matching.Tolerance()
	if err != nil {
		return nil, err
	}

	statsDS, err := OpenDataset(cfg.Datasets.Tracks)
	if err != nil {
		return nil, fmt.Errorf("failed to open track dataset: %w", err)
	}
	maskDS, err := OpenDataset(cfg.Datasets.Mask)
	if err != nil {
		statsDS.Close()
		return nil, fmt.Errorf("failed to open mask dataset: %w", err)
	}

	s, err := NewSession(statsDS, maskDS, cfg.Datasets.Mask.Variable, tolerance)
	if err != nil {
		statsDS.Close()
		maskDS.Close()
		return nil, err
	}
	return s, nil
}

// OpenDataset opens a dataset with the reader for its format
func OpenDataset(d config.DatasetData) (*dataset.Dataset, error) {
	log.Infow("opening dataset", "path", d.Path, "format", d.Format)
	switch d.Format {
	case config.FormatTrackFile:
		return trackfile.Read(d.Path)
	case config.FormatChunkStore:
		return chunkstore.Open(d.Path)
	default:
		return nil, fmt.Errorf("unknown dataset format %q", d.Format)
	}
}

// NewSession builds a session over already opened datasets. The session
// takes ownership of both and closes them in Close.
func NewSession(stats, mask *dataset.Dataset, maskVar string, tolerance time.Duration) (*Session, error) {
	set, err := trackstats.New(stats)
	if err != nil {
		return nil, err
	}
	v, err := mask.Var(maskVar)
	if err != nil {
		return nil, err
	}
	if len(v.Dims) == 0 || v.Dims[0] != mask.TimeDim {
		return nil, fmt.Errorf("mask variable %s is not indexed by %s", maskVar, mask.TimeDim)
	}

	log.Infow("session ready",
		"tracks", set.NumTracks(),
		"max_duration", set.MaxDuration(),
		"mask_steps", mask.Len(),
		"mask_variable", maskVar)

	return &Session{
		stats:     set,
		mask:      mask,
		maskVar:   maskVar,
		tolerance: tolerance,
	}, nil
}

// Tracks exposes the track statistics
func (s *Session) Tracks() *trackstats.TrackSet {
	return s.stats
}

// Mask exposes the mask dataset
func (s *Session) Mask() *dataset.Dataset {
	return s.mask
}

// MaskCalendar returns the calendar of the first valid mask timestamp
func (s *Session) MaskCalendar() cftime.Calendar {
	for _, t := range s.mask.Times {
		if t.IsValid() {
			return t.Calendar
		}
	}
	return cftime.Standard
}

// ParseTime reads a timestamp in the mask's calendar
func (s *Session) ParseTime(v string) (cftime.TimePoint, error) {
	return cftime.Parse(v, s.MaskCalendar())
}

// Align matches a track's steps to mask steps by hour and relabels the
// matched part of the track with the mask's timestamps
func (s *Session) Align(ctx context.Context, track int) (*Alignment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.stats.Validate(track); err != nil {
		return nil, err
	}

	trackDS, err := s.stats.Track(track)
	if err != nil {
		return nil, err
	}
	trackSteps := linker.Align(trackDS.Times, s.mask.Times)
	maskSteps := linker.RestrictToOverlap(s.mask.Times, trackDS.Times)

	subset, err := trackDS.Isel(trackSteps)
	if err != nil {
		return nil, err
	}
	target := make([]cftime.TimePoint, len(maskSteps))
	for i, p := range maskSteps {
		target[i] = s.mask.Times[p]
	}
	relabeled, err := linker.RelabelTime(subset, target)
	if err != nil {
		return nil, fmt.Errorf("track %d: %w", track, err)
	}

	return &Alignment{
		Track:      track,
		TrackSteps: trackSteps,
		MaskSteps:  maskSteps,
		Subset:     relabeled,
	}, nil
}

// Link aligns a track and computes its mask membership at the mask step
// nearest to when. An invalid when selects the first aligned timestamp.
func (s *Session) Link(ctx context.Context, track int, when cftime.TimePoint) (*LinkResult, error) {
	a, err := s.Align(ctx, track)
	if err != nil {
		return nil, err
	}

	res := &LinkResult{
		Track:      track,
		Identifier: linker.MaskIdentifier(track),
		Alignment:  a,
		Selected:   cftime.Invalid(),
		MaskStep:   -1,
	}

	if !when.IsValid() {
		if a.Overlap() == 0 {
			log.Debugw("track has no overlap with mask", "track", track)
			return res, nil
		}
		when = a.Subset.Times[0]
	}

	res.MaskStep, err = s.mask.Nearest(when, s.tolerance)
	if err != nil {
		return nil, err
	}
	res.Selected = s.mask.Times[res.MaskStep]

	v, err := s.mask.Var(s.maskVar)
	if err != nil {
		return nil, err
	}
	step, err := v.Step(res.MaskStep)
	if err != nil {
		return nil, fmt.Errorf("failed to read mask step %d: %w", res.MaskStep, err)
	}
	res.Membership, err = linker.TrackMaskMembership(step, track)
	if err != nil {
		return nil, err
	}

	log.Debugw("linked track",
		"track", track,
		"identifier", res.Identifier,
		"overlap", a.Overlap(),
		"selected", res.Selected.String(),
		"pixels", res.PixelCount())
	return res, nil
}

// Overlap reports the overlap of every track with the mask. Tracks without
// overlap are reported with a zero count.
func (s *Session) Overlap(ctx context.Context) ([]TrackOverlap, error) {
	report := make([]TrackOverlap, s.stats.NumTracks())

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(runtime.GOMAXPROCS(0))
	for i := range report {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			times, err := s.stats.Times(i)
			if err != nil {
				return err
			}
			report[i] = TrackOverlap{
				Track:      i,
				Identifier: linker.MaskIdentifier(i),
				Duration:   len(times),
				Overlap:    len(linker.Align(times, s.mask.Times)),
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return report, nil
}

// Close releases both datasets
func (s *Session) Close() error {
	err := s.stats.Dataset().Close()
	if merr := s.mask.Close(); err == nil {
		err = merr
	}
	return err
}
