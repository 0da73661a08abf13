package nmea

import "fmt"

// VDO - AIS VHF Data-link Own-vessel report. Only the header of the
// armored payload is decoded: message type and MMSI, which identifies
// the vessel the talker is installed on.
//
//	!--VDO,x,x,x,a,s--s,x*hh
func decodeVDO(f Fields) (*Record, error) {
	count, okCount := parseInt(f.At(1))
	number, okNumber := parseInt(f.At(2))
	if !okCount || !okNumber || number < 1 || number > count {
		return nil, decodeErr(ErrInvalidField, "fragment %q of %q", f.At(2), f.At(1))
	}
	bits, err := unarmor(f.At(5))
	if err != nil {
		return nil, err
	}

	rec := NewRecord()
	rec.Set("fragment_count", count)
	rec.Set("fragment_number", number)
	setChar(rec, "channel", f.At(4))
	if number != 1 {
		// continuation fragments carry no header
		return rec, nil
	}
	if len(bits) < 38 {
		return nil, decodeErr(ErrIncompleteSentence, "AIS payload has %d bits, need 38", len(bits))
	}
	mmsi := bits.uint(8, 30)
	rec.Set("ais_message_type", int(bits.uint(0, 6)))
	rec.Set("mmsi", int(mmsi))
	rec.SetIdentifier(FormatMMSI(mmsi))
	return rec, nil
}

// FormatMMSI renders an MMSI as its nine digit form.
func FormatMMSI(mmsi uint64) string {
	return fmt.Sprintf("%09d", mmsi)
}

// bitstream holds one bit per byte, most significant first.
type bitstream []byte

func (b bitstream) uint(start, n int) uint64 {
	var v uint64
	for i := start; i < start+n; i++ {
		v = v<<1 | uint64(b[i])
	}
	return v
}

// unarmor decodes the AIS 6-bit ASCII payload armoring.
func unarmor(payload string) (bitstream, error) {
	bits := make(bitstream, 0, len(payload)*6)
	for i := 0; i < len(payload); i++ {
		c := payload[i]
		if c < '0' || c > 'w' || (c > 'W' && c < '`') {
			return nil, decodeErr(ErrInvalidField, "AIS payload character %q", c)
		}
		v := c - '0'
		if v > 40 {
			v -= 8
		}
		for j := 5; j >= 0; j-- {
			bits = append(bits, (v>>j)&1)
		}
	}
	return bits, nil
}
