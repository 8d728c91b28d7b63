package restserver

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/chrissnell/stormtrack/internal/linker"
	"github.com/chrissnell/stormtrack/pkg/cftime"
	"github.com/chrissnell/stormtrack/pkg/dataset"
	"github.com/chrissnell/stormtrack/pkg/responseformat"
	"github.com/chrissnell/stormtrack/pkg/trackstats"
	"github.com/gorilla/mux"
)

// Handlers contains all HTTP handlers for the REST server
type Handlers struct {
	controller *Controller
	formatter  *responseformat.Formatter
}

// errBadRequest marks malformed client input
var errBadRequest = errors.New("bad request")

// NewHandlers creates a new handlers instance
func NewHandlers(ctrl *Controller) *Handlers {
	return &Handlers{
		controller: ctrl,
		formatter:  responseformat.NewFormatter(),
	}
}

// statusFor maps an error to the HTTP status returned to the client
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, trackstats.ErrInvalidIdentifier),
		errors.Is(err, dataset.ErrMissingTimestep),
		errors.Is(err, dataset.ErrUnknownVariable):
		return http.StatusNotFound
	case errors.Is(err, linker.ErrShapeMismatch):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, req *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.controller.logger.Errorw("request failed", "path", req.URL.Path, "error", err)
	}
	h.formatter.WriteError(w, req, status, err)
}

func (h *Handlers) write(w http.ResponseWriter, req *http.Request, data any) {
	if err := h.formatter.WriteResponse(w, req, data); err != nil {
		h.controller.logger.Errorw("error encoding response", "path", req.URL.Path, "error", err)
	}
}

func trackIndex(req *http.Request) (int, error) {
	raw := mux.Vars(req)["index"]
	i, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: track index %q is not an integer", errBadRequest, raw)
	}
	return i, nil
}

// GetTracks describes the track statistics dataset
func (h *Handlers) GetTracks(w http.ResponseWriter, req *http.Request) {
	tracks := h.controller.session.Tracks()
	coord := tracks.Coordinate()
	h.write(w, req, TracksResponse{
		Count:       tracks.NumTracks(),
		MaxDuration: tracks.MaxDuration(),
		Calendar:    coord.Calendar.String(),
		Units:       coord.Units.String(),
	})
}

// GetTrack returns a track's timestamps and, with ?var=, a summary of one
// of its series
func (h *Handlers) GetTrack(w http.ResponseWriter, req *http.Request) {
	i, err := trackIndex(req)
	if err != nil {
		h.writeError(w, req, err)
		return
	}
	tracks := h.controller.session.Tracks()
	times, err := tracks.Times(i)
	if err != nil {
		h.writeError(w, req, err)
		return
	}

	resp := TrackResponse{
		Track:      i,
		Identifier: linker.MaskIdentifier(i),
		Duration:   len(times),
		Times:      formatTimes(times),
	}
	if name := req.URL.Query().Get("var"); name != "" {
		summary, err := tracks.Summarize(name, i)
		if err != nil {
			h.writeError(w, req, err)
			return
		}
		resp.Summary = &summary
	}
	h.write(w, req, resp)
}

// GetAlignment returns the matched track and mask steps
func (h *Handlers) GetAlignment(w http.ResponseWriter, req *http.Request) {
	i, err := trackIndex(req)
	if err != nil {
		h.writeError(w, req, err)
		return
	}
	a, err := h.controller.session.Align(req.Context(), i)
	if err != nil {
		h.writeError(w, req, err)
		return
	}
	h.write(w, req, transformAlignment(a))
}

// GetMask links a track to the mask step nearest ?time= (default: the first
// aligned step). ?cells=true includes the flat offsets of member cells.
func (h *Handlers) GetMask(w http.ResponseWriter, req *http.Request) {
	i, err := trackIndex(req)
	if err != nil {
		h.writeError(w, req, err)
		return
	}

	when := cftime.Invalid()
	if raw := req.URL.Query().Get("time"); raw != "" {
		when, err = h.controller.session.ParseTime(raw)
		if err != nil {
			h.writeError(w, req, fmt.Errorf("%w: %v", errBadRequest, err))
			return
		}
	}
	withCells, _ := strconv.ParseBool(req.URL.Query().Get("cells"))

	res, err := h.controller.session.Link(req.Context(), i, when)
	if err != nil {
		h.writeError(w, req, err)
		return
	}
	h.write(w, req, transformLink(res, withCells))
}

// GetOverlap reports the overlap of every track with the mask
func (h *Handlers) GetOverlap(w http.ResponseWriter, req *http.Request) {
	report, err := h.controller.session.Overlap(req.Context())
	if err != nil {
		h.writeError(w, req, err)
		return
	}
	h.write(w, req, transformOverlap(report))
}
