package cftime

import (
	"fmt"
	"math"
	"strings"
)

// Units describes an encoded time axis such as "hours since 1979-01-01"
type Units struct {
	// Seconds is the length of one step of the unit
	Seconds float64
	Name    string
	epoch   fields
}

var unitSeconds = map[string]float64{
	"day": 86400, "days": 86400, "d": 86400,
	"hour": 3600, "hours": 3600, "hr": 3600, "hrs": 3600, "h": 3600,
	"minute": 60, "minutes": 60, "min": 60, "mins": 60,
	"second": 1, "seconds": 1, "sec": 1, "secs": 1, "s": 1,
}

// ParseUnits parses a CF "<unit> since <epoch>" string
func ParseUnits(s string) (Units, error) {
	parts := strings.SplitN(strings.TrimSpace(s), " since ", 2)
	if len(parts) != 2 {
		return Units{}, fmt.Errorf("time units %q are not of the form '<unit> since <epoch>'", s)
	}
	name := strings.ToLower(strings.TrimSpace(parts[0]))
	secs, ok := unitSeconds[name]
	if !ok {
		return Units{}, fmt.Errorf("unsupported time unit %q", parts[0])
	}
	epoch, err := parseFields(parts[1])
	if err != nil {
		return Units{}, fmt.Errorf("invalid epoch in time units %q: %w", s, err)
	}
	return Units{Seconds: secs, Name: name, epoch: epoch}, nil
}

// MustParseUnits is like ParseUnits but panics on error
func MustParseUnits(s string) Units {
	u, err := ParseUnits(s)
	if err != nil {
		panic(err)
	}
	return u
}

func (u Units) String() string {
	e := u.epoch
	return fmt.Sprintf("%s since %04d-%02d-%02d %02d:%02d:%02d", u.Name, e.year, e.month, e.day, e.hour, e.minute, int(e.second))
}

// Coordinate decodes the numeric values of a time variable
type Coordinate struct {
	Units    Units
	Calendar Calendar
	// FillValue marks missing entries when HasFill is set
	FillValue float64
	HasFill   bool
}

// NewCoordinate builds a Coordinate from the CF units and calendar attributes
func NewCoordinate(units, calendar string) (Coordinate, error) {
	u, err := ParseUnits(units)
	if err != nil {
		return Coordinate{}, err
	}
	cal, err := ParseCalendar(calendar)
	if err != nil {
		return Coordinate{}, err
	}
	if !cal.ValidDate(u.epoch.year, u.epoch.month, u.epoch.day) {
		return Coordinate{}, fmt.Errorf("epoch of %q does not exist in the %s calendar", units, cal)
	}
	return Coordinate{Units: u, Calendar: cal}, nil
}

// WithFill returns a copy of the coordinate that treats v as missing
func (c Coordinate) WithFill(v float64) Coordinate {
	c.FillValue = v
	c.HasFill = true
	return c
}

func (c Coordinate) epochSeconds() float64 {
	e := c.Units.epoch
	days := c.Calendar.dayNumber(e.year, e.month, e.day)
	return float64(days)*86400 + float64(e.hour*3600+e.minute*60) + e.second
}

// IsMissing reports whether v is a fill value, NaN or infinite
func (c Coordinate) IsMissing(v float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return true
	}
	return c.HasFill && v == c.FillValue
}

// Decode converts one encoded value. Missing values decode to an invalid
// TimePoint rather than an error.
func (c Coordinate) Decode(v float64) TimePoint {
	if c.IsMissing(v) {
		return Invalid()
	}
	return fromSecondsSinceOrigin(c.Calendar, c.epochSeconds()+v*c.Units.Seconds)
}

// DecodeAll decodes a whole time axis
func (c Coordinate) DecodeAll(values []float64) []TimePoint {
	out := make([]TimePoint, len(values))
	for i, v := range values {
		out[i] = c.Decode(v)
	}
	return out
}

// Encode converts a TimePoint into the coordinate's units. Invalid
// TimePoints encode to the fill value, or NaN when none is set.
func (c Coordinate) Encode(tp TimePoint) (float64, error) {
	if !tp.IsValid() {
		if c.HasFill {
			return c.FillValue, nil
		}
		return math.NaN(), nil
	}
	if tp.Calendar != c.Calendar {
		converted, err := tp.In(c.Calendar)
		if err != nil {
			return 0, fmt.Errorf("cannot encode %s timestamp in %s calendar: %w", tp.Calendar, c.Calendar, err)
		}
		tp = converted
	}
	return (tp.secondsSinceOrigin() - c.epochSeconds()) / c.Units.Seconds, nil
}

// EncodeAll encodes a sequence of TimePoints
func (c Coordinate) EncodeAll(tps []TimePoint) ([]float64, error) {
	out := make([]float64, len(tps))
	for i, tp := range tps {
		v, err := c.Encode(tp)
		if err != nil {
			return nil, fmt.Errorf("timestamp %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}
