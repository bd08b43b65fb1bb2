// Package codec encodes and decodes a single event as one line of JSON.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ErrDecodeFailed is returned when a line is not valid JSON.
var ErrDecodeFailed = fmt.Errorf("codec: decode failed")

// Event is an opaque JSON object. The engine never interprets its fields
// beyond reading source/id for optional dedup; bytes are preserved
// round-trip via json.RawMessage.
type Event = json.RawMessage

// Encode validates ev and appends the line terminator. The returned
// slice includes the terminator, so its full length is the line's
// on-disk contribution; callers advance offsets by that length.
func Encode(ev Event) ([]byte, error) {
	if !json.Valid(ev) {
		return nil, fmt.Errorf("codec: encode: %w", ErrDecodeFailed)
	}
	buf := make([]byte, 0, len(ev)+1)
	buf = append(buf, ev...)
	buf = append(buf, '\n')
	return buf, nil
}

// Decode trims the trailing newline from line and validates it as JSON.
func Decode(line []byte) (Event, error) {
	trimmed := bytes.TrimRight(line, "\n")
	if len(trimmed) == 0 || !json.Valid(trimmed) {
		return nil, fmt.Errorf("codec: decode: %w", ErrDecodeFailed)
	}
	out := make(Event, len(trimmed))
	copy(out, trimmed)
	return out, nil
}

// sourceID is the subset of an event's fields needed for optional dedup.
type sourceID struct {
	Source string `json:"source"`
	ID     string `json:"id"`
}

// SourceID extracts the (source, id) pair from ev for dedup purposes.
// Events lacking either field yield empty strings, which never match a
// legitimate duplicate since real producers always populate both.
func SourceID(ev Event) (source string, id string, err error) {
	var s sourceID
	if err := json.Unmarshal(ev, &s); err != nil {
		return "", "", fmt.Errorf("codec: source id: %w", ErrDecodeFailed)
	}
	return s.Source, s.ID, nil
}
