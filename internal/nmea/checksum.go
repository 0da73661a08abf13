package nmea

import (
	"fmt"
	"strconv"
)

// Checksum XORs every byte of body. body is the text between the leading
// delimiter and the '*'.
func Checksum(body string) byte {
	var cs byte
	for i := 0; i < len(body); i++ {
		cs ^= body[i]
	}
	return cs
}

// FormatChecksum renders cs the way talkers send it.
func FormatChecksum(cs byte) string {
	return fmt.Sprintf("%02X", cs)
}

// parseChecksum accepts exactly two hex digits, either case.
func parseChecksum(s string) (byte, bool) {
	if len(s) != 2 {
		return 0, false
	}
	v, err := strconv.ParseUint(s, 16, 8)
	if err != nil {
		return 0, false
	}
	return byte(v), true
}
