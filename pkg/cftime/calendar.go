// Package cftime decodes and compares calendar-aware timestamps as they are
// stored in climate-model datasets, where time is a numeric offset from an
// epoch in one of several calendar systems.
package cftime

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
)

// Calendar identifies a calendar system
type Calendar int

const (
	// Standard is the mixed Julian/Gregorian calendar with the 1582-10-15 switch
	Standard Calendar = iota
	ProlepticGregorian
	Julian
	NoLeap
	AllLeap
	Day360
)

// unixEpochJDN is the Julian Day Number of 1970-01-01
const unixEpochJDN = 2440588

var calendarNames = map[string]Calendar{
	"":                    Standard,
	"standard":            Standard,
	"gregorian":           Standard,
	"proleptic_gregorian": ProlepticGregorian,
	"julian":              Julian,
	"noleap":              NoLeap,
	"365_day":             NoLeap,
	"all_leap":            AllLeap,
	"366_day":             AllLeap,
	"360_day":             Day360,
}

// ParseCalendar maps a CF calendar attribute to a Calendar. An empty name is
// the CF default, standard.
func ParseCalendar(name string) (Calendar, error) {
	cal, ok := calendarNames[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Standard, fmt.Errorf("unsupported calendar %q", name)
	}
	return cal, nil
}

func (c Calendar) String() string {
	switch c {
	case Standard:
		return "standard"
	case ProlepticGregorian:
		return "proleptic_gregorian"
	case Julian:
		return "julian"
	case NoLeap:
		return "noleap"
	case AllLeap:
		return "all_leap"
	case Day360:
		return "360_day"
	}
	return fmt.Sprintf("calendar(%d)", int(c))
}

var cumulativeDays = [2][13]int{
	{0, 31, 59, 90, 120, 151, 181, 212, 243, 273, 304, 334, 365},
	{0, 31, 60, 91, 121, 152, 182, 213, 244, 274, 305, 335, 366},
}

// IsLeap reports whether year has a February 29 in the calendar
func (c Calendar) IsLeap(year int) bool {
	switch c {
	case ProlepticGregorian:
		return julian.LeapYearGregorian(year)
	case Julian:
		return julian.LeapYearJulian(year)
	case Standard:
		if year > 1582 {
			return julian.LeapYearGregorian(year)
		}
		return julian.LeapYearJulian(year)
	case AllLeap:
		return true
	}
	return false
}

// DaysInMonth returns the number of days in the given month
func (c Calendar) DaysInMonth(year, month int) int {
	if month < 1 || month > 12 {
		return 0
	}
	if c == Day360 {
		return 30
	}
	leap := 0
	if c.IsLeap(year) {
		leap = 1
	}
	return cumulativeDays[leap][month] - cumulativeDays[leap][month-1]
}

// ValidDate reports whether year-month-day exists in the calendar
func (c Calendar) ValidDate(year, month, day int) bool {
	if day < 1 || day > c.DaysInMonth(year, month) {
		return false
	}
	// Dates dropped by the Gregorian reform
	if c == Standard && year == 1582 && month == 10 && day > 4 && day < 15 {
		return false
	}
	return true
}

// dayNumber returns a day count that increases by one per calendar day. The
// origin differs between calendars, so values are only comparable within a
// calendar.
func (c Calendar) dayNumber(year, month, day int) int64 {
	switch c {
	case NoLeap:
		return int64(year)*365 + int64(cumulativeDays[0][month-1]+day-1)
	case AllLeap:
		return int64(year)*366 + int64(cumulativeDays[1][month-1]+day-1)
	case Day360:
		return int64(year)*360 + int64((month-1)*30+day-1)
	case ProlepticGregorian:
		return jdn(julian.CalendarGregorianToJD(year, month, float64(day)))
	case Julian:
		return jdn(julian.CalendarJulianToJD(year, month, float64(day)))
	}
	if afterReform(year, month, day) {
		return jdn(julian.CalendarGregorianToJD(year, month, float64(day)))
	}
	return jdn(julian.CalendarJulianToJD(year, month, float64(day)))
}

// fromDayNumber is the inverse of dayNumber
func (c Calendar) fromDayNumber(n int64) (year, month, day int) {
	switch c {
	case NoLeap, AllLeap:
		size := int64(365)
		leap := 0
		if c == AllLeap {
			size, leap = 366, 1
		}
		year = int(floorDiv(n, size))
		doy := int(n - int64(year)*size)
		month = 1
		for month < 12 && doy >= cumulativeDays[leap][month] {
			month++
		}
		return year, month, doy - cumulativeDays[leap][month-1] + 1
	case Day360:
		year = int(floorDiv(n, 360))
		doy := int(n - int64(year)*360)
		return year, doy/30 + 1, doy%30 + 1
	case ProlepticGregorian:
		t := time.Unix((n-unixEpochJDN)*86400, 0).UTC()
		return t.Year(), int(t.Month()), t.Day()
	case Julian:
		return julianFromJDN(n)
	}
	y, m, d := julian.JDToCalendar(float64(n) - 0.5)
	return y, m, int(math.Floor(d + 1e-9))
}

func afterReform(year, month, day int) bool {
	if year != 1582 {
		return year > 1582
	}
	if month != 10 {
		return month > 10
	}
	return day >= 15
}

// jdn converts the Julian Date of a midnight to its Julian Day Number
func jdn(jd float64) int64 {
	return int64(math.Floor(jd + 0.5))
}

// julianFromJDN converts a Julian Day Number to a Julian calendar date
// (Meeus, Astronomical Algorithms, ch. 7 with A = Z).
func julianFromJDN(n int64) (year, month, day int) {
	b := float64(n) + 1524
	c := math.Floor((b - 122.1) / 365.25)
	d := math.Floor(365.25 * c)
	e := math.Floor((b - d) / 30.6001)
	day = int(b - d - math.Floor(30.6001*e))
	if e < 14 {
		month = int(e) - 1
	} else {
		month = int(e) - 13
	}
	if month > 2 {
		year = int(c) - 4716
	} else {
		year = int(c) - 4715
	}
	return year, month, day
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
