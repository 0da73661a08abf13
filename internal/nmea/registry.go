package nmea

import (
	"sort"
	"strings"
	"sync"
)

// Decoder turns the fields of one sentence type into a Record. Decoders
// are pure: same fields in, same record out.
type Decoder interface {
	Decode(f Fields) (*Record, error)
}

// DecoderFunc adapts a function to Decoder.
type DecoderFunc func(f Fields) (*Record, error)

func (fn DecoderFunc) Decode(f Fields) (*Record, error) {
	return fn(f)
}

// Entry binds a sentence type tag to its decoder.
type Entry struct {
	Tag         string
	Description string
	// MinFields counts the address field too.
	MinFields int
	Decoder   Decoder
}

// Registry maps sentence type tags to decoders. New types are added with
// Register; existing decoders and the dispatch are left untouched.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

// Register adds or replaces the entry for e.Tag.
func (r *Registry) Register(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e.Tag = strings.ToUpper(e.Tag)
	r.entries[e.Tag] = e
}

func (r *Registry) Lookup(tag string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[tag]
	return e, ok
}

// Tags lists registered tags in sorted order.
func (r *Registry) Tags() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.entries))
	for tag := range r.entries {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// Describe lists registered tags in sorted order, each followed by its
// description when one is set.
func (r *Registry) Describe() []string {
	out := r.Tags()
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i, tag := range out {
		if d := r.entries[tag].Description; d != "" {
			out[i] = tag + " (" + d + ")"
		}
	}
	return out
}

// Only returns a registry restricted to tags. Tags without a decoder are
// returned in missing.
func (r *Registry) Only(tags []string) (sub *Registry, missing []string) {
	sub = NewRegistry()
	for _, tag := range tags {
		tag = strings.ToUpper(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		e, ok := r.Lookup(tag)
		if !ok {
			missing = append(missing, tag)
			continue
		}
		sub.Register(e)
	}
	return sub, missing
}

// Decode runs the decoder for tag over f. Short sentences report
// ErrIncompleteSentence before the decoder sees them.
func (r *Registry) Decode(tag string, f Fields) (*Record, error) {
	e, ok := r.Lookup(tag)
	if !ok {
		return nil, sentenceErr(tag, "", ErrUnsupportedSentenceType, "")
	}
	if len(f) < e.MinFields {
		return nil, sentenceErr(tag, "", ErrIncompleteSentence, "%d fields, need %d", len(f), e.MinFields)
	}
	rec, err := e.Decoder.Decode(f)
	if err != nil {
		return nil, &SentenceError{Tag: tag, Err: err}
	}
	rec.Set(FieldSentenceType, tag)
	return rec, nil
}

// DefaultRegistry holds every decoder shipped with the package.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, e := range builtin {
		r.Register(e)
	}
	return r
}

var builtin = []Entry{
	{Tag: "GGA", Description: "GPS fix data", MinFields: 11, Decoder: DecoderFunc(decodeGGA)},
	{Tag: "GLL", Description: "geographic position", MinFields: 7, Decoder: DecoderFunc(decodeGLL)},
	{Tag: "RMC", Description: "recommended minimum navigation", MinFields: 12, Decoder: DecoderFunc(decodeRMC)},
	{Tag: "VTG", Description: "course and speed over ground", MinFields: 9, Decoder: DecoderFunc(decodeVTG)},
	{Tag: "HDT", Description: "heading true", MinFields: 3, Decoder: DecoderFunc(decodeHDT)},
	{Tag: "HDG", Description: "heading, deviation and variation", MinFields: 6, Decoder: DecoderFunc(decodeHDG)},
	{Tag: "HDM", Description: "heading magnetic", MinFields: 3, Decoder: DecoderFunc(decodeHDM)},
	{Tag: "ROT", Description: "rate of turn", MinFields: 3, Decoder: DecoderFunc(decodeROT)},
	{Tag: "RSA", Description: "rudder sensor angle", MinFields: 3, Decoder: DecoderFunc(decodeRSA)},
	{Tag: "MWV", Description: "wind speed and angle", MinFields: 6, Decoder: DecoderFunc(decodeMWV)},
	{Tag: "VWR", Description: "relative wind speed and angle", MinFields: 9, Decoder: DecoderFunc(decodeVWR)},
	{Tag: "MDA", Description: "meteorological composite", MinFields: 21, Decoder: DecoderFunc(decodeMDA)},
	{Tag: "DPT", Description: "depth of water", MinFields: 3, Decoder: DecoderFunc(decodeDPT)},
	{Tag: "VLW", Description: "distance traveled", MinFields: 5, Decoder: DecoderFunc(decodeVLW)},
	{Tag: "GSV", Description: "satellites in view", MinFields: 4, Decoder: DecoderFunc(decodeGSV)},
	{Tag: "VDO", Description: "AIS own-vessel report", MinFields: 7, Decoder: DecoderFunc(decodeVDO)},
}
