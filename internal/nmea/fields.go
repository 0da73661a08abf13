package nmea

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var reDegreesMinutes = regexp.MustCompile(`^(\d+)(\d\d\.\d+)$`)

func parseFloat(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func parseInt(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return v, true
}

// parseDegreesMinutes converts "dddmm.mmmm" to decimal degrees.
func parseDegreesMinutes(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	if s == "0" {
		return 0, true
	}
	m := reDegreesMinutes.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	deg, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	min, err := strconv.ParseFloat(m[2], 64)
	if err != nil || min >= 60 {
		return 0, false
	}
	return deg + min/60, true
}

// ParseLatitude decodes a latitude and its hemisphere; 'S' negates it.
func ParseLatitude(value, hemisphere string) (float64, bool) {
	v, ok := parseDegreesMinutes(value)
	if !ok || v > 90 {
		return 0, false
	}
	if strings.EqualFold(hemisphere, "S") {
		v = -v
	}
	return v, true
}

// ParseLongitude decodes a longitude and its hemisphere; 'W' negates it.
func ParseLongitude(value, hemisphere string) (float64, bool) {
	v, ok := parseDegreesMinutes(value)
	if !ok || v > 180 {
		return 0, false
	}
	if strings.EqualFold(hemisphere, "W") {
		v = -v
	}
	return v, true
}

// ParseTime decodes "hhmmss[.sss]".
func ParseTime(s string) (TimeOfDay, bool) {
	if len(s) < 6 {
		return 0, false
	}
	h, err := strconv.Atoi(s[:2])
	if err != nil || h > 23 {
		return 0, false
	}
	m, err := strconv.Atoi(s[2:4])
	if err != nil || m > 59 {
		return 0, false
	}
	sec, err := strconv.ParseFloat(s[4:], 64)
	if err != nil || sec < 0 || sec >= 61 {
		return 0, false
	}
	d := time.Duration(h)*time.Hour + time.Duration(m)*time.Minute +
		time.Duration(sec*float64(time.Second))
	return TimeOfDay(d), true
}

// parseDateTime combines "ddmmyy" and "hhmmss[.sss]" into a UTC instant.
func parseDateTime(date, clock string) (time.Time, bool) {
	tod, ok := ParseTime(clock)
	if !ok || len(date) != 6 {
		return time.Time{}, false
	}
	day, err1 := strconv.Atoi(date[:2])
	month, err2 := strconv.Atoi(date[2:4])
	year, err3 := strconv.Atoi(date[4:])
	if err1 != nil || err2 != nil || err3 != nil || day < 1 || day > 31 || month < 1 || month > 12 {
		return time.Time{}, false
	}
	// two digit years pivot at 1980, before GPS existed
	if year < 80 {
		year += 2000
	} else {
		year += 1900
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day {
		return time.Time{}, false
	}
	return t.Add(time.Duration(tod).Round(time.Second)), true
}

// ---------------------------------------------------------------------------
// record setters: absent or unreadable fields are skipped, never defaulted

func setFloat(rec *Record, name, s string) {
	if v, ok := parseFloat(s); ok {
		rec.Set(name, v)
	}
}

func setInt(rec *Record, name, s string) {
	if v, ok := parseInt(s); ok {
		rec.Set(name, v)
	}
}

// setChar passes a status or mode indicator through as its literal character.
func setChar(rec *Record, name, s string) {
	if s != "" {
		rec.Set(name, s[:1])
	}
}

func setTime(rec *Record, name, s string) {
	if v, ok := ParseTime(s); ok {
		rec.Set(name, v)
	}
}

func setPosition(rec *Record, f Fields, lat int) {
	if v, ok := ParseLatitude(f.At(lat), f.At(lat+1)); ok {
		rec.Set("latitude", v)
	}
	if v, ok := ParseLongitude(f.At(lat+2), f.At(lat+3)); ok {
		rec.Set("longitude", v)
	}
}

func intPtr(s string) *int {
	v, ok := parseInt(s)
	if !ok {
		return nil
	}
	return &v
}
