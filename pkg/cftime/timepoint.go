package cftime

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// TimePoint is an instant expressed in the fields of a specific calendar.
// The zero value is an invalid TimePoint.
type TimePoint struct {
	Calendar Calendar
	Year     int
	Month    int
	Day      int
	Hour     int
	Minute   int
	Second   float64
	valid    bool
}

// Key is the (year, month, day, hour) tuple used to match timestamps across
// datasets. It carries no calendar, so equal fields match even when the two
// datasets use different calendar systems.
type Key struct {
	Year  int
	Month int
	Day   int
	Hour  int
}

func (k Key) String() string {
	return fmt.Sprintf("%04d-%02d-%02dT%02d", k.Year, k.Month, k.Day, k.Hour)
}

// Date builds a TimePoint and validates its fields against the calendar
func Date(cal Calendar, year, month, day, hour, minute int, second float64) (TimePoint, error) {
	if !cal.ValidDate(year, month, day) {
		return TimePoint{}, fmt.Errorf("%04d-%02d-%02d does not exist in the %s calendar", year, month, day, cal)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 || second < 0 || second >= 60 {
		return TimePoint{}, fmt.Errorf("invalid time of day %02d:%02d:%06.3f", hour, minute, second)
	}
	return TimePoint{
		Calendar: cal,
		Year:     year,
		Month:    month,
		Day:      day,
		Hour:     hour,
		Minute:   minute,
		Second:   second,
		valid:    true,
	}, nil
}

// MustDate is like Date but panics on invalid fields
func MustDate(cal Calendar, year, month, day, hour, minute int, second float64) TimePoint {
	tp, err := Date(cal, year, month, day, hour, minute, second)
	if err != nil {
		panic(err)
	}
	return tp
}

// Invalid returns a TimePoint that represents a missing timestamp
func Invalid() TimePoint {
	return TimePoint{}
}

// IsValid reports whether the TimePoint holds a real timestamp
func (tp TimePoint) IsValid() bool {
	return tp.valid
}

// Key normalizes the TimePoint to hour granularity. Invalid TimePoints
// return ok == false.
func (tp TimePoint) Key() (Key, bool) {
	if !tp.valid {
		return Key{}, false
	}
	return Key{Year: tp.Year, Month: tp.Month, Day: tp.Day, Hour: tp.Hour}, true
}

func (tp TimePoint) String() string {
	if !tp.valid {
		return "NaT"
	}
	return fmt.Sprintf("%04d-%02d-%02dT%02d:%02d:%02d", tp.Year, tp.Month, tp.Day, tp.Hour, tp.Minute, int(tp.Second))
}

// In reinterprets the same calendar fields in another calendar
func (tp TimePoint) In(cal Calendar) (TimePoint, error) {
	if !tp.valid {
		return tp, nil
	}
	return Date(cal, tp.Year, tp.Month, tp.Day, tp.Hour, tp.Minute, tp.Second)
}

// secondsSinceOrigin counts seconds from the calendar's day-number origin
func (tp TimePoint) secondsSinceOrigin() float64 {
	days := tp.Calendar.dayNumber(tp.Year, tp.Month, tp.Day)
	return float64(days)*86400 + float64(tp.Hour*3600+tp.Minute*60) + tp.Second
}

func fromSecondsSinceOrigin(cal Calendar, secs float64) TimePoint {
	// Millisecond resolution absorbs floating point drift in encoded offsets
	ms := int64(math.Round(secs * 1000))
	days := floorDiv(ms, 86400000)
	msOfDay := ms - days*86400000
	y, m, d := cal.fromDayNumber(days)
	return TimePoint{
		Calendar: cal,
		Year:     y,
		Month:    m,
		Day:      d,
		Hour:     int(msOfDay / 3600000),
		Minute:   int(msOfDay % 3600000 / 60000),
		Second:   float64(msOfDay%60000) / 1000,
		valid:    true,
	}
}

// Add returns the TimePoint shifted by d within its calendar
func (tp TimePoint) Add(d time.Duration) TimePoint {
	if !tp.valid {
		return tp
	}
	return fromSecondsSinceOrigin(tp.Calendar, tp.secondsSinceOrigin()+d.Seconds())
}

// SubSeconds returns tp - u in seconds. Both must be valid and share a
// calendar. Unlike Sub it covers any span between two dates.
func (tp TimePoint) SubSeconds(u TimePoint) (float64, error) {
	if !tp.valid || !u.valid {
		return 0, fmt.Errorf("cannot subtract invalid timestamps")
	}
	if tp.Calendar != u.Calendar {
		return 0, fmt.Errorf("cannot subtract %s timestamp from %s timestamp", u.Calendar, tp.Calendar)
	}
	return tp.secondsSinceOrigin() - u.secondsSinceOrigin(), nil
}

// maxDurationSeconds is the largest span a time.Duration holds, about 292 years
const maxDurationSeconds = float64(math.MaxInt64) / float64(time.Second)

// Sub returns tp - u. Both must be valid and share a calendar. Spans that do
// not fit in a time.Duration return an error.
func (tp TimePoint) Sub(u TimePoint) (time.Duration, error) {
	secs, err := tp.SubSeconds(u)
	if err != nil {
		return 0, err
	}
	if math.Abs(secs) >= maxDurationSeconds {
		return 0, fmt.Errorf("%s - %s overflows a time.Duration", tp, u)
	}
	return time.Duration(math.Round(secs * float64(time.Second))), nil
}

// Time converts the TimePoint to a real-world UTC instant. Model calendar
// dates with no Gregorian counterpart (for example 360_day February 30)
// return an error.
func (tp TimePoint) Time() (time.Time, error) {
	if !tp.valid {
		return time.Time{}, fmt.Errorf("invalid timestamp")
	}
	whole := math.Floor(tp.Second)
	nsec := int(math.Round((tp.Second - whole) * 1e9))

	switch tp.Calendar {
	case Standard, Julian, ProlepticGregorian:
		// Julian Day Numbers are shared by all three calendars
		n := tp.Calendar.dayNumber(tp.Year, tp.Month, tp.Day)
		base := time.Unix((n-unixEpochJDN)*86400, 0).UTC()
		return base.Add(time.Duration(tp.Hour)*time.Hour +
			time.Duration(tp.Minute)*time.Minute +
			time.Duration(whole)*time.Second +
			time.Duration(nsec)), nil
	}

	t := time.Date(tp.Year, time.Month(tp.Month), tp.Day, tp.Hour, tp.Minute, int(whole), nsec, time.UTC)
	if t.Year() != tp.Year || int(t.Month()) != tp.Month || t.Day() != tp.Day {
		return time.Time{}, fmt.Errorf("%s date %s has no gregorian equivalent", tp.Calendar, tp)
	}
	return t, nil
}

// FromTime expresses a real-world instant in the given calendar. For model
// calendars the Gregorian fields are reused, which fails for dates the
// calendar does not have.
func FromTime(t time.Time, cal Calendar) (TimePoint, error) {
	t = t.UTC()
	second := float64(t.Second()) + float64(t.Nanosecond())/1e9

	switch cal {
	case Standard, Julian:
		n := ProlepticGregorian.dayNumber(t.Year(), int(t.Month()), t.Day())
		y, m, d := cal.fromDayNumber(n)
		return Date(cal, y, m, d, t.Hour(), t.Minute(), second)
	}
	return Date(cal, t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), second)
}

// Parse reads a timestamp such as "2020-02-01", "2020-02-01T03",
// "2020-02-01 03:00" or "2020-02-01T03:00:00Z" in the given calendar.
func Parse(s string, cal Calendar) (TimePoint, error) {
	f, err := parseFields(s)
	if err != nil {
		return TimePoint{}, err
	}
	return Date(cal, f.year, f.month, f.day, f.hour, f.minute, f.second)
}

type fields struct {
	year, month, day, hour, minute int
	second                         float64
}

func parseFields(s string) (fields, error) {
	var f fields
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "Z")
	s = strings.TrimSpace(strings.TrimSuffix(s, "UTC"))
	if s == "" {
		return f, fmt.Errorf("empty timestamp")
	}

	datePart, clockPart := s, ""
	if i := strings.IndexAny(s, "T "); i >= 0 {
		datePart, clockPart = s[:i], strings.TrimSpace(s[i+1:])
	}

	d := strings.Split(datePart, "-")
	if len(d) != 3 {
		return f, fmt.Errorf("malformed date %q", datePart)
	}
	var err error
	if f.year, err = strconv.Atoi(d[0]); err != nil {
		return f, fmt.Errorf("malformed year in %q: %w", s, err)
	}
	if f.month, err = strconv.Atoi(d[1]); err != nil {
		return f, fmt.Errorf("malformed month in %q: %w", s, err)
	}
	if f.day, err = strconv.Atoi(d[2]); err != nil {
		return f, fmt.Errorf("malformed day in %q: %w", s, err)
	}

	if clockPart == "" {
		return f, nil
	}
	c := strings.Split(clockPart, ":")
	if len(c) > 3 {
		return f, fmt.Errorf("malformed time of day %q", clockPart)
	}
	if f.hour, err = strconv.Atoi(c[0]); err != nil {
		return f, fmt.Errorf("malformed hour in %q: %w", s, err)
	}
	if len(c) > 1 {
		if f.minute, err = strconv.Atoi(c[1]); err != nil {
			return f, fmt.Errorf("malformed minute in %q: %w", s, err)
		}
	}
	if len(c) > 2 {
		if f.second, err = strconv.ParseFloat(c[2], 64); err != nil {
			return f, fmt.Errorf("malformed second in %q: %w", s, err)
		}
	}
	return f, nil
}
