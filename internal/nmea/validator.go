package nmea

import (
	"errors"
	"strings"
)

// Validated is a sentence that passed structural checks and has a decoder.
type Validated struct {
	Tag    string
	Fields Fields
}

// Validator checks candidate lines against the NMEA 0183 grammar and the
// registry of supported types.
type Validator struct {
	registry *Registry
}

func NewValidator(r *Registry) *Validator {
	return &Validator{registry: r}
}

// Validate checks, in order: leading delimiter, checksum when present,
// and that the sentence type has a decoder. Sentences without a checksum
// are accepted unverified.
func (v *Validator) Validate(raw RawSentence) (Validated, error) {
	if !raw.Delimited {
		return Validated{}, sentenceErr("", raw.Text, ErrMalformedSentence, "missing leading '$' or '!'")
	}
	if raw.HasChecksum {
		want, ok := parseChecksum(raw.Checksum)
		if !ok {
			return Validated{}, sentenceErr("", raw.Text, ErrMalformedSentence, "bad checksum digits %q", raw.Checksum)
		}
		if got := Checksum(raw.Body); got != want {
			return Validated{}, sentenceErr("", raw.Text, ErrChecksumMismatch, "computed %s, sentence has %s", FormatChecksum(got), FormatChecksum(want))
		}
	}

	fields := Fields(strings.Split(raw.Body, fieldSeparator))
	tag, ok := sentenceTag(fields.Address())
	if !ok {
		return Validated{}, sentenceErr("", raw.Text, ErrMalformedSentence, "bad address field %q", fields.Address())
	}
	if _, ok := v.registry.Lookup(tag); !ok {
		return Validated{}, sentenceErr(tag, raw.Text, ErrUnsupportedSentenceType, "")
	}
	return Validated{Tag: tag, Fields: fields}, nil
}

// Decode validates raw and runs its decoder.
func (v *Validator) Decode(raw RawSentence) (*Record, error) {
	s, err := v.Validate(raw)
	if err != nil {
		return nil, err
	}
	rec, err := v.registry.Decode(s.Tag, s.Fields)
	if err != nil {
		var se *SentenceError
		if errors.As(err, &se) {
			se.Line = raw.Text
		}
		return nil, err
	}
	return rec, nil
}

// sentenceTag strips the talker from an address field: "GPGLL" -> "GLL".
// Proprietary addresses ("PGRME") are returned whole.
func sentenceTag(address string) (string, bool) {
	if len(address) < 3 {
		return "", false
	}
	for i := 0; i < len(address); i++ {
		c := address[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return "", false
		}
	}
	if address[0] == 'P' {
		return address, true
	}
	return address[2:], true
}
