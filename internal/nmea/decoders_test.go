package nmea

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, line string) *Record {
	t.Helper()
	rec, err := newTestValidator().Decode(NewRawSentence(line))
	require.NoError(t, err, line)
	return rec
}

func field(t *testing.T, rec *Record, name string) any {
	t.Helper()
	v, ok := rec.Get(name)
	require.True(t, ok, "missing field %q", name)
	return v
}

func TestDecodeGLL(t *testing.T) {
	rec := decodeLine(t, Encode("GPGLL", "2255.74", "S", "10945.30", "W", "235531", "A", "D"))

	lat, _ := rec.Float("latitude")
	lon, _ := rec.Float("longitude")
	assert.InDelta(t, -22.929, lat, 1e-9)
	assert.InDelta(t, -109.755, lon, 1e-9)
	assert.Equal(t, "23:55:31", field(t, rec, "timeUTC").(TimeOfDay).String())
	assert.Equal(t, "A", field(t, rec, "status"))
	assert.Equal(t, "D", field(t, rec, "gll_mode"))
	assert.Equal(t, "GLL", rec.SentenceType())
}

func TestDecodeGLLWithoutMode(t *testing.T) {
	rec := decodeLine(t, Encode("GPGLL", "4916.45", "N", "12311.12", "W", "225444", "A"))
	assert.False(t, rec.Has("gll_mode"))
	lat, _ := rec.Float("latitude")
	assert.InDelta(t, 49.274167, lat, 1e-6)
}

func TestDecodeGLLVoidStatus(t *testing.T) {
	_, err := newTestValidator().Decode(NewRawSentence(Encode("GPGLL", "4916.45", "N", "12311.12", "W", "225444", "V", "N")))
	assert.ErrorIs(t, err, ErrInvalidStatus)
	assert.True(t, IsRecoverable(err))
}

func TestDecodeGGA(t *testing.T) {
	rec := decodeLine(t, Encode("GPGGA", "123519.80", "4807.038", "N", "01131.000", "E", "1", "08", "0.9", "545.4", "M", "46.9", "M", "", ""))

	assert.Equal(t, "12:35:20", field(t, rec, "timeUTC").(TimeOfDay).String())
	lat, _ := rec.Float("latitude")
	lon, _ := rec.Float("longitude")
	assert.InDelta(t, 48.1173, lat, 1e-9)
	assert.InDelta(t, 11.516667, lon, 1e-6)
	assert.Equal(t, "1", field(t, rec, "fix_quality"))
	assert.Equal(t, 8, field(t, rec, "num_satellites"))
	assert.Equal(t, 0.9, field(t, rec, "hdop"))
	assert.Equal(t, 545.4, field(t, rec, "altitude_meter"))
	assert.Equal(t, 46.9, field(t, rec, "geoid_separation_meter"))
}

func TestDecodeGGAOmitsEmptyFields(t *testing.T) {
	rec := decodeLine(t, Encode("GPGGA", "", "", "", "", "", "0", "", "", "", "", "", "", "", ""))
	assert.Equal(t, []Field{
		{Name: "fix_quality", Value: "0"},
		{Name: FieldSentenceType, Value: "GGA"},
	}, rec.Fields())
}

func TestDecodeGGABadAltitudeUnit(t *testing.T) {
	_, err := newTestValidator().Decode(NewRawSentence(Encode("GPGGA", "123519", "4807.038", "N", "01131.000", "E", "1", "08", "0.9", "545.4", "F", "46.9", "M", "", "")))
	assert.ErrorIs(t, err, ErrInvalidField)
}

func TestDecodeRMC(t *testing.T) {
	rec := decodeLine(t, "$GPRMC,162254.00,A,3723.02837,N,12159.39853,W,0.820,188.36,110706,,,A*74")

	assert.Equal(t, "2006-07-11T16:22:54Z", field(t, rec, "datetimeUTC"))
	assert.Equal(t, "A", field(t, rec, "status"))
	lat, _ := rec.Float("latitude")
	lon, _ := rec.Float("longitude")
	assert.InDelta(t, 37.383806, lat, 1e-6)
	assert.InDelta(t, -121.989976, lon, 1e-6)
	assert.Equal(t, 0.820, field(t, rec, "sog_knots"))
	assert.Equal(t, 188.36, field(t, rec, "cog_true"))
	assert.False(t, rec.Has("magnetic_variation"))
	assert.Equal(t, "A", field(t, rec, "rmc_mode"))
}

func TestDecodeRMCWestVariation(t *testing.T) {
	rec := decodeLine(t, Encode("GPRMC", "081836", "A", "3751.65", "S", "14507.36", "E", "000.0", "360.0", "130998", "011.3", "W"))
	assert.Equal(t, -11.3, field(t, rec, "magnetic_variation"))
	assert.Equal(t, "1998-09-13T08:18:36Z", field(t, rec, "datetimeUTC"))
	assert.False(t, rec.Has("rmc_mode"))
}

func TestDecodeVTG(t *testing.T) {
	rec := decodeLine(t, Encode("GPVTG", "054.7", "T", "034.4", "M", "005.5", "N", "010.2", "K", "A"))
	assert.Equal(t, 54.7, field(t, rec, "cog_true"))
	assert.Equal(t, 34.4, field(t, rec, "cog_magnetic"))
	assert.Equal(t, 5.5, field(t, rec, "sog_knots"))
	assert.Equal(t, 10.2, field(t, rec, "sog_kph"))
	assert.Equal(t, "A", field(t, rec, "vtg_mode"))
}

func TestDecodeHeadings(t *testing.T) {
	rec := decodeLine(t, Encode("IIHDT", "274.07", "T"))
	assert.Equal(t, 274.07, field(t, rec, "hdg_true"))

	rec = decodeLine(t, Encode("IIHDM", "270.5", "M"))
	assert.Equal(t, 270.5, field(t, rec, "hdg_magnetic"))

	rec = decodeLine(t, Encode("HCHDG", "98.3", "0.0", "E", "12.6", "W"))
	assert.Equal(t, 98.3, field(t, rec, "hdg_magnetic"))
	assert.Equal(t, 0.0, field(t, rec, "deviation"))
	assert.Equal(t, -12.6, field(t, rec, "variation"))

	_, err := newTestValidator().Decode(NewRawSentence(Encode("IIHDT", "274.07", "M")))
	assert.ErrorIs(t, err, ErrInvalidField)
}

func TestDecodeRateOfTurnAndRudder(t *testing.T) {
	rec := decodeLine(t, Encode("IIROT", "-3.5", "A"))
	assert.Equal(t, -3.5, field(t, rec, "rate_of_turn"))

	rec = decodeLine(t, Encode("IIROT", "-3.5", "V"))
	assert.False(t, rec.Has("rate_of_turn"))

	rec = decodeLine(t, Encode("IIRSA", "10.5", "A", "", "V"))
	assert.Equal(t, 10.5, field(t, rec, "rudder_angle"))
	assert.False(t, rec.Has("rudder_angle_port"))
}

func TestDecodeMWV(t *testing.T) {
	rec := decodeLine(t, Encode("IIMWV", "45.0", "R", "10.0", "M", "A"))
	assert.Equal(t, 45.0, field(t, rec, "awa"))
	assert.InDelta(t, 19.4384, field(t, rec, "aws_knots").(float64), 1e-9)

	rec = decodeLine(t, Encode("IIMWV", "270.0", "T", "20.0", "K", "A"))
	assert.Equal(t, 270.0, field(t, rec, "twa"))
	assert.InDelta(t, 10.79914, field(t, rec, "tws_knots").(float64), 1e-9)

	rec = decodeLine(t, Encode("IIMWV", "30.0", "", "5.0", "N", "A"))
	assert.Equal(t, 5.0, field(t, rec, "aws_knots"))

	_, err := newTestValidator().Decode(NewRawSentence(Encode("IIMWV", "30.0", "R", "5.0", "N", "V")))
	assert.ErrorIs(t, err, ErrInvalidStatus)
	_, err = newTestValidator().Decode(NewRawSentence(Encode("IIMWV", "30.0", "X", "5.0", "N", "A")))
	assert.ErrorIs(t, err, ErrInvalidField)
	_, err = newTestValidator().Decode(NewRawSentence(Encode("IIMWV", "30.0", "R", "5.0", "F", "A")))
	assert.ErrorIs(t, err, ErrInvalidField)
}

func TestDecodeVWR(t *testing.T) {
	rec := decodeLine(t, Encode("IIVWR", "75.0", "L", "12.3", "N", "6.3", "M", "22.8", "K"))
	assert.Equal(t, -75.0, field(t, rec, "awa"))
	assert.Equal(t, 12.3, field(t, rec, "aws_knots"))
	assert.Equal(t, 6.3, field(t, rec, "aws_mps"))
	assert.Equal(t, 22.8, field(t, rec, "aws_kph"))
}

func TestDecodeMDA(t *testing.T) {
	rec := decodeLine(t, Encode("IIMDA", "30.0", "I", "1.016", "B", "21.5", "C", "", "", "", "", "15.0", "C", "", "", "", "", "", "", "", ""))
	assert.Equal(t, 30.0, field(t, rec, "pressure_inches"))
	assert.Equal(t, 1.016, field(t, rec, "pressure_bars"))
	assert.InDelta(t, 1016.0, field(t, rec, "pressure_millibars").(float64), 1e-9)
	assert.Equal(t, 21.5, field(t, rec, "temperature_air_celsius"))
	assert.Equal(t, 15.0, field(t, rec, "dew_point_celsius"))
	assert.False(t, rec.Has("temperature_water_celsius"))
	assert.False(t, rec.Has("tws_knots"))
}

func TestDecodeDPT(t *testing.T) {
	rec := decodeLine(t, Encode("IIDPT", "15.2", "1.5", "100.0"))
	assert.Equal(t, 15.2, field(t, rec, "depth_below_transducer_meters"))
	assert.Equal(t, 1.5, field(t, rec, "transducer_depth_meters"))
	assert.InDelta(t, 16.7, field(t, rec, "water_depth_meters").(float64), 1e-9)
	assert.Equal(t, 100.0, field(t, rec, "max_range_meters"))

	rec = decodeLine(t, Encode("IIDPT", "15.2", ""))
	assert.False(t, rec.Has("water_depth_meters"))
}

func TestDecodeVLW(t *testing.T) {
	rec := decodeLine(t, Encode("IIVLW", "123.4", "N", "12.3", "N"))
	assert.Equal(t, 123.4, field(t, rec, "water_total_nm"))
	assert.Equal(t, 12.3, field(t, rec, "water_since_reset_nm"))
	assert.False(t, rec.Has("ground_total_nm"))
}

func TestDecodeGSV(t *testing.T) {
	rec := decodeLine(t, Encode("GPGSV", "3", "1", "11", "03", "03", "111", "00", "04", "15", "270", "", "06", "01", "010", "00", "13", "06", "292", "00"))
	assert.Equal(t, 3, field(t, rec, "gsv_messages"))
	assert.Equal(t, 1, field(t, rec, "message_number"))
	assert.Equal(t, 11, field(t, rec, "satellites_in_view"))

	sats := field(t, rec, "satellites").([]Satellite)
	require.Len(t, sats, 4)
	assert.Equal(t, 4, *sats[1].PRN)
	assert.Nil(t, sats[1].SNR)

	b, err := json.Marshal(sats[1])
	require.NoError(t, err)
	assert.JSONEq(t, `{"satellite_prn":4,"elevation_angle":15,"azimuth_angle":270}`, string(b))
}

// armor packs bits into the AIS 6-bit payload alphabet.
func armor(bits []byte) string {
	for len(bits)%6 != 0 {
		bits = append(bits, 0)
	}
	out := make([]byte, 0, len(bits)/6)
	for i := 0; i < len(bits); i += 6 {
		var v byte
		for _, b := range bits[i : i+6] {
			v = v<<1 | b
		}
		if v < 40 {
			out = append(out, v+48)
		} else {
			out = append(out, v+56)
		}
	}
	return string(out)
}

func appendUint(bits []byte, v uint64, n int) []byte {
	for i := n - 1; i >= 0; i-- {
		bits = append(bits, byte(v>>uint(i))&1)
	}
	return bits
}

func ownVesselPayload(msgType, mmsi uint64) string {
	bits := appendUint(nil, msgType, 6)
	bits = appendUint(bits, 0, 2)
	bits = appendUint(bits, mmsi, 30)
	bits = append(bits, make([]byte, 168-len(bits))...)
	return armor(bits)
}

func TestDecodeVDO(t *testing.T) {
	line := Encode("AIVDO", "1", "1", "", "A", ownVesselPayload(1, 123456789), "0")
	require.Equal(t, byte('!'), line[0])

	rec := decodeLine(t, line)
	assert.Equal(t, 1, field(t, rec, "ais_message_type"))
	assert.Equal(t, 123456789, field(t, rec, "mmsi"))
	assert.Equal(t, "A", field(t, rec, "channel"))
	id, ok := rec.Identifier()
	assert.True(t, ok)
	assert.Equal(t, "123456789", id)
}

func TestDecodeVDOPadsShortMMSI(t *testing.T) {
	rec := decodeLine(t, Encode("AIVDO", "1", "1", "", "B", ownVesselPayload(18, 2579999), "0"))
	id, _ := rec.Identifier()
	assert.Equal(t, "002579999", id)
	assert.Equal(t, 18, field(t, rec, "ais_message_type"))
}

func TestDecodeVDOFailures(t *testing.T) {
	v := newTestValidator()
	_, err := v.Decode(NewRawSentence(Encode("AIVDO", "1", "1", "", "A", "1P00", "0")))
	assert.ErrorIs(t, err, ErrIncompleteSentence)

	_, err = v.Decode(NewRawSentence(Encode("AIVDO", "1", "1", "", "A", "1P0~Ok", "0")))
	assert.ErrorIs(t, err, ErrInvalidField)

	_, err = v.Decode(NewRawSentence(Encode("AIVDO", "1", "3", "", "A", "1P00", "0")))
	assert.ErrorIs(t, err, ErrInvalidField)

	rec, err := v.Decode(NewRawSentence(Encode("AIVDO", "2", "2", "7", "A", "00000", "2")))
	require.NoError(t, err)
	_, ok := rec.Identifier()
	assert.False(t, ok)
}

func TestDecodeIncompleteSentence(t *testing.T) {
	tests := []string{
		Encode("GPGLL", "2255.74", "S", "10945.30", "W"),
		Encode("GPGGA", "123519", "4807.038", "N"),
		Encode("IIHDT", "274.07"),
		"$GPRMC,162254.00,A",
	}
	for _, line := range tests {
		_, err := newTestValidator().Decode(NewRawSentence(line))
		assert.ErrorIs(t, err, ErrIncompleteSentence, line)
		assert.True(t, IsRecoverable(err))
	}
}

func TestDecodeIsIdempotent(t *testing.T) {
	v := newTestValidator()
	lines := []string{
		Encode("GPGLL", "2255.74", "S", "10945.30", "W", "235531", "A", "D"),
		"$GPRMC,162254.00,A,3723.02837,N,12159.39853,W,0.820,188.36,110706,,,A*74",
		Encode("GPGSV", "1", "1", "02", "03", "03", "111", "00", "04", "15", "270", "30"),
	}
	for _, line := range lines {
		raw := NewRawSentence(line)
		first, err := v.Decode(raw)
		require.NoError(t, err)
		second, err := v.Decode(raw)
		require.NoError(t, err)

		a, err := json.Marshal(first)
		require.NoError(t, err)
		b, err := json.Marshal(second)
		require.NoError(t, err)
		assert.Equal(t, string(a), string(b))
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		address string
		fields  []string
		want    map[string]any
	}{
		{
			"IIHDT", []string{"45.3", "T"},
			map[string]any{"hdg_true": 45.3},
		},
		{
			"GPVTG", []string{"45.0", "T", "30.0", "M", "6.1", "N", "11.3", "K", "A"},
			map[string]any{"cog_true": 45.0, "cog_magnetic": 30.0, "sog_knots": 6.1, "sog_kph": 11.3, "vtg_mode": "A"},
		},
		{
			"IIVLW", []string{"123.4", "N", "12.3", "N", "110.0", "N", "11.0", "N"},
			map[string]any{"water_total_nm": 123.4, "water_since_reset_nm": 12.3, "ground_total_nm": 110.0, "ground_since_reset_nm": 11.0},
		},
		{
			"GPGGA", []string{"101530.00", "4530.000", "N", "12240.000", "W", "1", "08", "0.9", "10.0", "M", "-30.0", "M", "", ""},
			map[string]any{"timeUTC": "10:15:30", "latitude": 45.5, "longitude": -122.666666666666671, "fix_quality": "1",
				"num_satellites": 8.0, "hdop": 0.9, "altitude_meter": 10.0, "geoid_separation_meter": -30.0},
		},
	}
	v := newTestValidator()
	for _, tt := range tests {
		rec, err := v.Decode(NewRawSentence(Encode(tt.address, tt.fields...)))
		require.NoError(t, err, tt.address)

		b, err := json.Marshal(rec)
		require.NoError(t, err)
		var got map[string]any
		require.NoError(t, json.Unmarshal(b, &got))

		for k, want := range tt.want {
			if f, ok := want.(float64); ok {
				assert.InDelta(t, f, got[k], 1e-9, "%s.%s", tt.address, k)
				continue
			}
			assert.Equal(t, want, got[k], "%s.%s", tt.address, k)
		}
		assert.Equal(t, tt.address[2:], got[FieldSentenceType])
	}
}
