package cftime

import (
	"math"
	"testing"
	"time"
)

func TestParseCalendar(t *testing.T) {
	tests := []struct {
		name     string
		expected Calendar
		wantErr  bool
	}{
		{"", Standard, false},
		{"gregorian", Standard, false},
		{"Standard", Standard, false},
		{"proleptic_gregorian", ProlepticGregorian, false},
		{"noleap", NoLeap, false},
		{"365_day", NoLeap, false},
		{"366_day", AllLeap, false},
		{"360_day", Day360, false},
		{"julian", Julian, false},
		{"lunar", Standard, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cal, err := ParseCalendar(tt.name)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseCalendar(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			}
			if !tt.wantErr && cal != tt.expected {
				t.Errorf("ParseCalendar(%q) = %s, expected %s", tt.name, cal, tt.expected)
			}
		})
	}
}

func TestValidDate(t *testing.T) {
	tests := []struct {
		name  string
		cal   Calendar
		date  [3]int
		valid bool
	}{
		{"noleap has no Feb 29", NoLeap, [3]int{2020, 2, 29}, false},
		{"proleptic has Feb 29 2020", ProlepticGregorian, [3]int{2020, 2, 29}, true},
		{"proleptic 1900 not leap", ProlepticGregorian, [3]int{1900, 2, 29}, false},
		{"julian 1900 leap", Julian, [3]int{1900, 2, 29}, true},
		{"360_day has Feb 30", Day360, [3]int{2001, 2, 30}, true},
		{"360_day has no Jan 31", Day360, [3]int{2001, 1, 31}, false},
		{"all_leap Feb 29", AllLeap, [3]int{2001, 2, 29}, true},
		{"standard reform gap", Standard, [3]int{1582, 10, 10}, false},
		{"standard after reform", Standard, [3]int{1582, 10, 15}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.cal.ValidDate(tt.date[0], tt.date[1], tt.date[2])
			if got != tt.valid {
				t.Errorf("ValidDate(%v) = %v, expected %v", tt.date, got, tt.valid)
			}
		})
	}
}

func TestDayNumberRoundTrip(t *testing.T) {
	calendars := []Calendar{Standard, ProlepticGregorian, Julian, NoLeap, AllLeap, Day360}
	for _, cal := range calendars {
		t.Run(cal.String(), func(t *testing.T) {
			start := cal.dayNumber(1499, 12, 20)
			prevY, prevM, prevD := cal.fromDayNumber(start)
			for n := start + 1; n < start+200000; n += 7 {
				y, m, d := cal.fromDayNumber(n)
				if !cal.ValidDate(y, m, d) {
					t.Fatalf("day %d decoded to invalid date %04d-%02d-%02d", n, y, m, d)
				}
				if back := cal.dayNumber(y, m, d); back != n {
					t.Fatalf("%04d-%02d-%02d: dayNumber = %d, expected %d", y, m, d, back, n)
				}
				if y < prevY || (y == prevY && (m < prevM || (m == prevM && d <= prevD))) {
					t.Fatalf("dates not increasing at day %d", n)
				}
				prevY, prevM, prevD = y, m, d
			}
		})
	}
}

func TestStandardCalendarReform(t *testing.T) {
	before := MustDate(Standard, 1582, 10, 4, 0, 0, 0)
	after := before.Add(24 * time.Hour)
	if after.Year != 1582 || after.Month != 10 || after.Day != 15 {
		t.Errorf("day after 1582-10-04 = %s, expected 1582-10-15", after)
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name     string
		units    string
		calendar string
		value    float64
		expected string
	}{
		{"hours standard", "hours since 1970-01-01 00:00:00", "standard", 24, "1970-01-02T00:00:00"},
		{"days noleap skips Feb 29", "days since 2020-02-28", "noleap", 1, "2020-03-01T00:00:00"},
		{"days proleptic keeps Feb 29", "days since 2020-02-28", "proleptic_gregorian", 1, "2020-02-29T00:00:00"},
		{"360_day month length", "days since 2001-01-01", "360_day", 30, "2001-02-01T00:00:00"},
		{"fractional days", "days since 2000-01-01", "standard", 1.5, "2000-01-02T12:00:00"},
		{"negative offset", "hours since 2000-01-01", "noleap", -1, "1999-12-31T23:00:00"},
		{"iso epoch", "seconds since 1970-01-01T00:00:00Z", "gregorian", 3600, "1970-01-01T01:00:00"},
		{"drift below one hour", "hours since 2020-02-01", "standard", 0.9999999999, "2020-02-01T01:00:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			coord, err := NewCoordinate(tt.units, tt.calendar)
			if err != nil {
				t.Fatalf("NewCoordinate: %v", err)
			}
			got := coord.Decode(tt.value)
			if got.String() != tt.expected {
				t.Errorf("Decode(%v) = %s, expected %s", tt.value, got, tt.expected)
			}
		})
	}
}

func TestDecodeMissing(t *testing.T) {
	coord, err := NewCoordinate("hours since 2000-01-01", "noleap")
	if err != nil {
		t.Fatalf("NewCoordinate: %v", err)
	}
	coord = coord.WithFill(-999)

	for _, v := range []float64{math.NaN(), math.Inf(1), -999} {
		if tp := coord.Decode(v); tp.IsValid() {
			t.Errorf("Decode(%v) = %s, expected invalid", v, tp)
		}
	}
	if _, ok := coord.Decode(math.NaN()).Key(); ok {
		t.Error("invalid TimePoint produced a key")
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	coord, err := NewCoordinate("hours since 1979-01-01 00:00:00", "noleap")
	if err != nil {
		t.Fatalf("NewCoordinate: %v", err)
	}
	for _, v := range []float64{0, 1, 25, 8760, 123456} {
		tp := coord.Decode(v)
		back, err := coord.Encode(tp)
		if err != nil {
			t.Fatalf("Encode(%s): %v", tp, err)
		}
		if math.Abs(back-v) > 1e-6 {
			t.Errorf("Encode(Decode(%v)) = %v", v, back)
		}
	}

	missing, err := coord.Encode(Invalid())
	if err != nil || !math.IsNaN(missing) {
		t.Errorf("Encode(Invalid()) = %v, %v; expected NaN", missing, err)
	}
}

func TestParseUnitsErrors(t *testing.T) {
	for _, s := range []string{"hours", "fortnights since 2000-01-01", "hours since 2000/01/01"} {
		if _, err := ParseUnits(s); err == nil {
			t.Errorf("ParseUnits(%q) expected error", s)
		}
	}
	if _, err := NewCoordinate("days since 2001-02-29", "noleap"); err == nil {
		t.Error("expected error for epoch missing from calendar")
	}
}

func TestKeyIgnoresCalendar(t *testing.T) {
	a := MustDate(NoLeap, 2020, 2, 1, 3, 15, 0)
	b := MustDate(ProlepticGregorian, 2020, 2, 1, 3, 59, 59.9)
	ka, _ := a.Key()
	kb, _ := b.Key()
	if ka != kb {
		t.Errorf("keys differ: %s vs %s", ka, kb)
	}
}

func TestTimeConversion(t *testing.T) {
	tp := MustDate(Julian, 2000, 1, 1, 6, 0, 0)
	got, err := tp.Time()
	if err != nil {
		t.Fatalf("Time: %v", err)
	}
	// Julian 2000-01-01 is Gregorian 2000-01-14
	expected := time.Date(2000, 1, 14, 6, 0, 0, 0, time.UTC)
	if !got.Equal(expected) {
		t.Errorf("Time() = %s, expected %s", got, expected)
	}

	back, err := FromTime(got, Julian)
	if err != nil {
		t.Fatalf("FromTime: %v", err)
	}
	if back.String() != tp.String() {
		t.Errorf("FromTime(Time()) = %s, expected %s", back, tp)
	}

	if _, err := MustDate(Day360, 2001, 2, 30, 0, 0, 0).Time(); err == nil {
		t.Error("expected error converting 360_day Feb 30")
	}
	if _, err := FromTime(time.Date(2020, 2, 29, 0, 0, 0, 0, time.UTC), NoLeap); err == nil {
		t.Error("expected error for Feb 29 in noleap")
	}
}

func TestSub(t *testing.T) {
	a := MustDate(NoLeap, 2021, 3, 1, 0, 0, 0)
	b := MustDate(NoLeap, 2021, 2, 28, 0, 0, 0)
	d, err := a.Sub(b)
	if err != nil {
		t.Fatalf("Sub: %v", err)
	}
	if d != 24*time.Hour {
		t.Errorf("Sub = %s, expected 24h", d)
	}
	if _, err := a.Sub(MustDate(Standard, 2021, 2, 28, 0, 0, 0)); err == nil {
		t.Error("expected error subtracting across calendars")
	}
}

func TestSubLongSpans(t *testing.T) {
	a := MustDate(NoLeap, 2000, 1, 1, 0, 0, 0)
	b := MustDate(NoLeap, 1500, 1, 1, 0, 0, 0)

	secs, err := a.SubSeconds(b)
	if err != nil {
		t.Fatalf("SubSeconds: %v", err)
	}
	if expected := 500 * 365 * 86400.0; secs != expected {
		t.Errorf("SubSeconds = %g, expected %g", secs, expected)
	}
	if back, _ := b.SubSeconds(a); back != -secs {
		t.Errorf("SubSeconds reversed = %g, expected %g", back, -secs)
	}

	if _, err := a.Sub(b); err == nil {
		t.Error("expected overflow error for a 500 year span")
	}
	if _, err := b.Sub(a); err == nil {
		t.Error("expected overflow error for a negative 500 year span")
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		in       string
		expected string
		wantErr  bool
	}{
		{"2020-02-01", "2020-02-01T00:00:00", false},
		{"2020-02-01T03", "2020-02-01T03:00:00", false},
		{"2020-02-01 03:30", "2020-02-01T03:30:00", false},
		{"2020-02-01T03:30:15Z", "2020-02-01T03:30:15", false},
		{"2020-02-30", "", true},
		{"yesterday", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			tp, err := Parse(tt.in, ProlepticGregorian)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && tp.String() != tt.expected {
				t.Errorf("Parse(%q) = %s, expected %s", tt.in, tp, tt.expected)
			}
		})
	}
}
