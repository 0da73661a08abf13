package nmea

import "strings"

const (
	// StartDelimiter opens a parametric sentence.
	StartDelimiter = '$'
	// EncapsulationDelimiter opens an encapsulated (AIS) sentence.
	EncapsulationDelimiter = '!'
	checksumDelimiter      = '*'
	fieldSeparator         = ","
)

// RawSentence is one candidate line split into body and checksum.
type RawSentence struct {
	Text        string // trimmed line as received
	Body        string // text between the delimiter and '*', or to the end
	Checksum    string // digits after '*', empty when absent
	HasChecksum bool
	Delimited   bool // starts with '$' or '!'
}

// NewRawSentence trims line and locates its delimiters.
func NewRawSentence(line string) RawSentence {
	text := strings.TrimSpace(line)
	raw := RawSentence{Text: text}
	if text == "" {
		return raw
	}
	raw.Delimited = text[0] == StartDelimiter || text[0] == EncapsulationDelimiter

	body := text
	if raw.Delimited {
		body = text[1:]
	}
	if i := strings.LastIndexByte(body, checksumDelimiter); i >= 0 {
		raw.HasChecksum = true
		raw.Checksum = body[i+1:]
		body = body[:i]
	}
	raw.Body = body
	return raw
}

// Fields is a validated sentence split on commas. Index 0 is the address
// field (talker + type), so indices match the NMEA field numbering.
type Fields []string

// At returns field i, or "" when the sentence is shorter.
func (f Fields) At(i int) string {
	if i < 0 || i >= len(f) {
		return ""
	}
	return f[i]
}

// Address returns the talker+type field.
func (f Fields) Address() string {
	return f.At(0)
}

// Encode builds a complete sentence with checksum from an address field
// such as "GPGLL" and the remaining fields. Addresses of encapsulated
// sentences ("AIVDO", "AIVDM") get the '!' delimiter.
func Encode(address string, fields ...string) string {
	body := strings.Join(append([]string{address}, fields...), fieldSeparator)
	delim := string(StartDelimiter)
	if isEncapsulated(address) {
		delim = string(EncapsulationDelimiter)
	}
	return delim + body + string(checksumDelimiter) + FormatChecksum(Checksum(body))
}

func isEncapsulated(address string) bool {
	if len(address) < 5 {
		return false
	}
	switch address[len(address)-3:] {
	case "VDM", "VDO":
		return true
	}
	return false
}
