package nmea

import (
	"errors"
	"fmt"
)

// Per-sentence failures. None of them is fatal to a stream.
var (
	ErrMalformedSentence       = errors.New("malformed sentence")
	ErrChecksumMismatch        = errors.New("checksum mismatch")
	ErrUnsupportedSentenceType = errors.New("unsupported sentence type")
	ErrIncompleteSentence      = errors.New("incomplete sentence")
	ErrInvalidStatus           = errors.New("invalid status")
	ErrInvalidField            = errors.New("invalid field")
)

// SentenceError carries the sentence that failed and why.
type SentenceError struct {
	Tag  string
	Line string
	Err  error
}

func (e *SentenceError) Error() string {
	if e.Tag != "" {
		return fmt.Sprintf("%s: %v", e.Tag, e.Err)
	}
	return e.Err.Error()
}

func (e *SentenceError) Unwrap() error {
	return e.Err
}

func sentenceErr(tag, line string, kind error, format string, args ...any) error {
	err := kind
	if format != "" {
		err = fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
	}
	return &SentenceError{Tag: tag, Line: line, Err: err}
}

// IsRecoverable reports whether err only invalidates the current sentence.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrMalformedSentence) ||
		errors.Is(err, ErrChecksumMismatch) ||
		errors.Is(err, ErrUnsupportedSentenceType) ||
		errors.Is(err, ErrIncompleteSentence) ||
		errors.Is(err, ErrInvalidStatus) ||
		errors.Is(err, ErrInvalidField)
}

// Reason maps an error to a short label for logs and metrics.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrMalformedSentence):
		return "malformed"
	case errors.Is(err, ErrChecksumMismatch):
		return "checksum"
	case errors.Is(err, ErrUnsupportedSentenceType):
		return "unsupported"
	case errors.Is(err, ErrIncompleteSentence):
		return "incomplete"
	case errors.Is(err, ErrInvalidStatus):
		return "status"
	case errors.Is(err, ErrInvalidField):
		return "field"
	default:
		return "other"
	}
}
