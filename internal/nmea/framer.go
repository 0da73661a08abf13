package nmea

import (
	"bufio"
	"io"
)

// MaxLineLength bounds a candidate line. NMEA allows 82 characters; the
// rest is head-room for chatty proprietary talkers.
const MaxLineLength = 1024

// Framer splits a byte stream into candidate sentence lines. Lines end on
// CR, LF or both. Empty lines are skipped, and a trailing line without a
// terminator is discarded when the stream ends.
type Framer struct {
	sc *bufio.Scanner
	// discarding is set after a runaway line was dropped and stays set
	// until that line's terminator has been consumed.
	discarding bool
}

// NewFramer wraps r. Reads block until r delivers bytes or fails.
func NewFramer(r io.Reader) *Framer {
	f := &Framer{sc: bufio.NewScanner(r)}
	f.sc.Buffer(make([]byte, 0, 256), 2*MaxLineLength)
	f.sc.Split(f.split)
	return f
}

// Next returns the next candidate line. It returns io.EOF once the stream
// is closed, or the transport's read error.
func (f *Framer) Next() (string, error) {
	if f.sc.Scan() {
		return f.sc.Text(), nil
	}
	if err := f.sc.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (f *Framer) split(data []byte, atEOF bool) (int, []byte, error) {
	for i, b := range data {
		if b != '\r' && b != '\n' {
			continue
		}
		if f.discarding {
			f.discarding = false
			return i + 1, nil, nil
		}
		if i == 0 {
			// empty line, or the LF of a CRLF pair
			return 1, nil, nil
		}
		return i + 1, data[:i], nil
	}
	if atEOF {
		// unterminated tail
		return len(data), nil, nil
	}
	if len(data) >= MaxLineLength {
		// runaway line: drop it up to its terminator
		f.discarding = true
		return len(data), nil, nil
	}
	return 0, nil, nil
}
