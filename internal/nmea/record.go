package nmea

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// FieldSentenceType is the key every record carries.
const FieldSentenceType = "sentence_type"

// Field is one named value of a record.
type Field struct {
	Name  string
	Value any
}

// Record is the decoded form of one sentence. Fields keep insertion order
// and only exist when the sentence supplied them.
type Record struct {
	fields     []Field
	index      map[string]int
	identifier string
}

func NewRecord() *Record {
	return &Record{index: make(map[string]int, 8)}
}

// Set adds name or replaces its value in place.
func (r *Record) Set(name string, value any) {
	if i, ok := r.index[name]; ok {
		r.fields[i].Value = value
		return
	}
	r.index[name] = len(r.fields)
	r.fields = append(r.fields, Field{Name: name, Value: value})
}

func (r *Record) Get(name string) (any, bool) {
	i, ok := r.index[name]
	if !ok {
		return nil, false
	}
	return r.fields[i].Value, true
}

func (r *Record) Has(name string) bool {
	_, ok := r.index[name]
	return ok
}

// Float returns a numeric field as float64.
func (r *Record) Float(name string) (float64, bool) {
	v, ok := r.Get(name)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

// Fields returns a copy of the fields in insertion order.
func (r *Record) Fields() []Field {
	out := make([]Field, len(r.fields))
	copy(out, r.fields)
	return out
}

func (r *Record) Len() int {
	return len(r.fields)
}

// SentenceType returns the tag set by the registry, e.g. "GLL".
func (r *Record) SentenceType() string {
	v, _ := r.Get(FieldSentenceType)
	s, _ := v.(string)
	return s
}

// SetIdentifier marks the record as carrying a vessel identifier.
func (r *Record) SetIdentifier(id string) {
	r.identifier = id
}

// Identifier returns the vessel identifier carried by the sentence itself.
func (r *Record) Identifier() (string, bool) {
	return r.identifier, r.identifier != ""
}

// MarshalJSON writes the fields as an object in insertion order.
func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := r.AppendJSON(&buf, nil); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// AppendJSON writes the record followed by extra fields as one JSON object.
func (r *Record) AppendJSON(buf *bytes.Buffer, extra []Field) error {
	buf.WriteByte('{')
	n := 0
	write := func(f Field) error {
		key, err := json.Marshal(f.Name)
		if err != nil {
			return err
		}
		val, err := json.Marshal(f.Value)
		if err != nil {
			return fmt.Errorf("field %q: %w", f.Name, err)
		}
		if n > 0 {
			buf.WriteByte(',')
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
		n++
		return nil
	}
	for _, f := range r.fields {
		if err := write(f); err != nil {
			return err
		}
	}
	for _, f := range extra {
		if r.Has(f.Name) {
			continue
		}
		if err := write(f); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

// TimeOfDay is a UTC time of day. It renders as "HH:MM:SS", rounded to
// the nearest second.
type TimeOfDay time.Duration

func (t TimeOfDay) String() string {
	d := time.Duration(t).Round(time.Second)
	secs := int64(d/time.Second) % (24 * 3600)
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, secs/60%60, secs%60)
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// Satellite is one entry of a GSV sentence.
type Satellite struct {
	PRN       *int `json:"satellite_prn,omitempty"`
	Elevation *int `json:"elevation_angle,omitempty"`
	Azimuth   *int `json:"azimuth_angle,omitempty"`
	SNR       *int `json:"snr,omitempty"`
}
