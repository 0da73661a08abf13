package nmea

import (
	"fmt"
	"strings"
	"time"
)

func decodeErr(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}

// requireActive rejects sentences whose status flag marks the data void.
func requireActive(status string) error {
	if !strings.EqualFold(status, "A") {
		return decodeErr(ErrInvalidStatus, "status %q, expected 'A'", status)
	}
	return nil
}

// GGA - Global Positioning System Fix Data
//
//	$--GGA,hhmmss.ss,ddmm.mm,a,dddmm.mm,a,x,xx,x.x,x.x,M,x.x,M,x.x,xxxx*hh
func decodeGGA(f Fields) (*Record, error) {
	if f.At(9) != "" && !strings.EqualFold(f.At(10), "M") {
		return nil, decodeErr(ErrInvalidField, "altitude unit %q, expected 'M'", f.At(10))
	}
	rec := NewRecord()
	setTime(rec, "timeUTC", f.At(1))
	setPosition(rec, f, 2)
	setChar(rec, "fix_quality", f.At(6))
	setInt(rec, "num_satellites", f.At(7))
	setFloat(rec, "hdop", f.At(8))
	setFloat(rec, "altitude_meter", f.At(9))
	if strings.EqualFold(f.At(12), "M") {
		setFloat(rec, "geoid_separation_meter", f.At(11))
	}
	return rec, nil
}

// GLL - Geographic Position, Latitude/Longitude
//
//	$--GLL,ddmm.mm,a,dddmm.mm,a,hhmmss.ss,A[,a]*hh
func decodeGLL(f Fields) (*Record, error) {
	if err := requireActive(f.At(6)); err != nil {
		return nil, err
	}
	rec := NewRecord()
	setPosition(rec, f, 1)
	setTime(rec, "timeUTC", f.At(5))
	setChar(rec, "status", f.At(6))
	setChar(rec, "gll_mode", f.At(7))
	return rec, nil
}

// RMC - Recommended Minimum Navigation Information
//
//	$--RMC,hhmmss.ss,A,ddmm.mm,a,dddmm.mm,a,x.x,x.x,ddmmyy,x.x,a[,a]*hh
func decodeRMC(f Fields) (*Record, error) {
	if err := requireActive(f.At(2)); err != nil {
		return nil, err
	}
	rec := NewRecord()
	if dt, ok := parseDateTime(f.At(9), f.At(1)); ok {
		rec.Set("datetimeUTC", dt.Format(time.RFC3339))
	} else {
		setTime(rec, "timeUTC", f.At(1))
	}
	setChar(rec, "status", f.At(2))
	setPosition(rec, f, 3)
	setFloat(rec, "sog_knots", f.At(7))
	setFloat(rec, "cog_true", f.At(8))
	if v, ok := parseFloat(f.At(10)); ok {
		if strings.EqualFold(f.At(11), "W") {
			v = -v
		}
		rec.Set("magnetic_variation", v)
	}
	setChar(rec, "rmc_mode", f.At(12))
	return rec, nil
}

// VTG - Track Made Good and Ground Speed
//
//	$--VTG,x.x,T,x.x,M,x.x,N,x.x,K[,a]*hh
func decodeVTG(f Fields) (*Record, error) {
	rec := NewRecord()
	setFloat(rec, "cog_true", f.At(1))
	setFloat(rec, "cog_magnetic", f.At(3))
	setFloat(rec, "sog_knots", f.At(5))
	setFloat(rec, "sog_kph", f.At(7))
	setChar(rec, "vtg_mode", f.At(9))
	return rec, nil
}

// GSV - Satellites in View. Up to four satellites per sentence; NMEA 4.10
// talkers append a signal id, which is ignored.
//
//	$--GSV,x,x,x,x,x,x,x,...*hh
func decodeGSV(f Fields) (*Record, error) {
	rec := NewRecord()
	setInt(rec, "gsv_messages", f.At(1))
	setInt(rec, "message_number", f.At(2))
	setInt(rec, "satellites_in_view", f.At(3))

	sats := make([]Satellite, 0, 4)
	for i := 4; i+3 < len(f); i += 4 {
		sat := Satellite{
			PRN:       intPtr(f.At(i)),
			Elevation: intPtr(f.At(i + 1)),
			Azimuth:   intPtr(f.At(i + 2)),
			SNR:       intPtr(f.At(i + 3)),
		}
		if sat.PRN == nil && sat.Elevation == nil && sat.Azimuth == nil && sat.SNR == nil {
			continue
		}
		sats = append(sats, sat)
	}
	if len(sats) > 0 {
		rec.Set("satellites", sats)
	}
	return rec, nil
}
