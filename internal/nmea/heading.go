package nmea

import "strings"

// HDT - Heading, True
//
//	$--HDT,x.x,T*hh
func decodeHDT(f Fields) (*Record, error) {
	if !strings.EqualFold(f.At(2), "T") {
		return nil, decodeErr(ErrInvalidField, "HDT reference %q, expected 'T'", f.At(2))
	}
	rec := NewRecord()
	setFloat(rec, "hdg_true", f.At(1))
	return rec, nil
}

// HDM - Heading, Magnetic
//
//	$--HDM,x.x,M*hh
func decodeHDM(f Fields) (*Record, error) {
	if !strings.EqualFold(f.At(2), "M") {
		return nil, decodeErr(ErrInvalidField, "HDM reference %q, expected 'M'", f.At(2))
	}
	rec := NewRecord()
	setFloat(rec, "hdg_magnetic", f.At(1))
	return rec, nil
}

// HDG - Heading, Deviation & Variation
//
//	$--HDG,x.x,x.x,a,x.x,a*hh
func decodeHDG(f Fields) (*Record, error) {
	rec := NewRecord()
	setFloat(rec, "hdg_magnetic", f.At(1))
	setSigned(rec, "deviation", f.At(2), f.At(3))
	setSigned(rec, "variation", f.At(4), f.At(5))
	return rec, nil
}

// setSigned stores an angle that is negative when its direction is west.
func setSigned(rec *Record, name, value, dir string) {
	v, ok := parseFloat(value)
	if !ok {
		return
	}
	if strings.EqualFold(dir, "W") {
		v = -v
	}
	rec.Set(name, v)
}

// ROT - Rate Of Turn, degrees per minute; negative turns to port.
//
//	$--ROT,x.x,A*hh
func decodeROT(f Fields) (*Record, error) {
	rec := NewRecord()
	if strings.EqualFold(f.At(2), "A") {
		setFloat(rec, "rate_of_turn", f.At(1))
	}
	return rec, nil
}

// RSA - Rudder Sensor Angle. Single-rudder vessels only fill the
// starboard pair.
//
//	$--RSA,x.x,A,x.x,A*hh
func decodeRSA(f Fields) (*Record, error) {
	rec := NewRecord()
	if strings.EqualFold(f.At(2), "A") {
		setFloat(rec, "rudder_angle", f.At(1))
	}
	if strings.EqualFold(f.At(4), "A") {
		setFloat(rec, "rudder_angle_port", f.At(3))
	}
	return rec, nil
}
