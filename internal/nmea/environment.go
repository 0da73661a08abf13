package nmea

import "strings"

const (
	knotsPerMPS = 1.94384
	knotsPerKPH = 0.539957
)

// MWV - Wind Speed and Angle. Reference 'T' is true wind; 'R' or an empty
// reference is apparent wind. Speed is normalized to knots.
//
//	$--MWV,x.x,a,x.x,a,A*hh
func decodeMWV(f Fields) (*Record, error) {
	if err := requireActive(f.At(5)); err != nil {
		return nil, err
	}

	angleKey, speedKey := "", ""
	switch strings.ToUpper(f.At(2)) {
	case "T":
		angleKey, speedKey = "twa", "tws_knots"
	case "R", "":
		angleKey, speedKey = "awa", "aws_knots"
	default:
		return nil, decodeErr(ErrInvalidField, "MWV reference %q, expected 'T' or 'R'", f.At(2))
	}

	factor := 1.0
	switch strings.ToUpper(f.At(4)) {
	case "N":
	case "M":
		factor = knotsPerMPS
	case "K":
		factor = knotsPerKPH
	default:
		return nil, decodeErr(ErrInvalidField, "MWV unit %q, expected 'M', 'K' or 'N'", f.At(4))
	}

	rec := NewRecord()
	setFloat(rec, angleKey, f.At(1))
	if v, ok := parseFloat(f.At(3)); ok {
		rec.Set(speedKey, v*factor)
	}
	return rec, nil
}

// VWR - Relative Wind Speed and Angle. 'L' (port) makes the angle negative.
//
//	$--VWR,x.x,a,x.x,N,x.x,M,x.x,K*hh
func decodeVWR(f Fields) (*Record, error) {
	rec := NewRecord()
	if v, ok := parseFloat(f.At(1)); ok {
		if strings.EqualFold(f.At(2), "L") {
			v = -v
		}
		rec.Set("awa", v)
	}
	setFloat(rec, "aws_knots", f.At(3))
	setFloat(rec, "aws_mps", f.At(5))
	setFloat(rec, "aws_kph", f.At(7))
	return rec, nil
}

// MDA - Meteorological Composite
//
//	$--MDA,x.x,I,x.x,B,x.x,C,x.x,C,x.x,x.x,x.x,C,x.x,T,x.x,M,x.x,N,x.x,M*hh
func decodeMDA(f Fields) (*Record, error) {
	rec := NewRecord()
	setFloat(rec, "pressure_inches", f.At(1))
	if v, ok := parseFloat(f.At(3)); ok {
		rec.Set("pressure_bars", v)
		rec.Set("pressure_millibars", v*1000)
	}
	setFloat(rec, "temperature_air_celsius", f.At(5))
	setFloat(rec, "temperature_water_celsius", f.At(7))
	setFloat(rec, "humidity_relative", f.At(9))
	setFloat(rec, "dew_point_celsius", f.At(11))
	setFloat(rec, "twd_true", f.At(13))
	setFloat(rec, "twd_magnetic", f.At(15))
	setFloat(rec, "tws_knots", f.At(17))
	setFloat(rec, "tws_mps", f.At(19))
	return rec, nil
}

// DPT - Depth of Water. A positive offset is the transducer's depth below
// the waterline, so the sum is the water depth.
//
//	$--DPT,x.x,x.x[,x.x]*hh
func decodeDPT(f Fields) (*Record, error) {
	rec := NewRecord()
	below, okBelow := parseFloat(f.At(1))
	offset, okOffset := parseFloat(f.At(2))
	if okBelow {
		rec.Set("depth_below_transducer_meters", below)
	}
	if okOffset {
		rec.Set("transducer_depth_meters", offset)
	}
	if okBelow && okOffset {
		rec.Set("water_depth_meters", below+offset)
	}
	setFloat(rec, "max_range_meters", f.At(3))
	return rec, nil
}

// VLW - Distance Traveled through Water. Ground distances were added in
// NMEA 3.0 and are often missing.
//
//	$--VLW,x.x,N,x.x,N[,x.x,N,x.x,N]*hh
func decodeVLW(f Fields) (*Record, error) {
	rec := NewRecord()
	setFloat(rec, "water_total_nm", f.At(1))
	setFloat(rec, "water_since_reset_nm", f.At(3))
	setFloat(rec, "ground_total_nm", f.At(5))
	setFloat(rec, "ground_since_reset_nm", f.At(7))
	return rec, nil
}
