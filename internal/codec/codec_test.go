package codec

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		ev   Event
	}{
		{"simple", Event(`{"source":"a","id":"1"}`)},
		{"nested", Event(`{"source":"a","id":"1","data":{"x":[1,2,3]}}`)},
		{"unicode", Event(`{"source":"Ã©","id":"ðŸ˜€"}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line, err := Encode(tt.ev)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			if line[len(line)-1] != '\n' {
				t.Fatalf("expected trailing newline")
			}
			decoded, err := Decode(line)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if !bytes.Equal(decoded, tt.ev) {
				t.Fatalf("round trip mismatch: got %s want %s", decoded, tt.ev)
			}
		})
	}
}

func TestEncodeRejectsInvalidJSON(t *testing.T) {
	_, err := Encode(Event(`not json`))
	if !errors.Is(err, ErrDecodeFailed) {
		t.Fatalf("expected ErrDecodeFailed, got %v", err)
	}
}

func TestDecodeRejectsInvalidJSON(t *testing.T) {
	_, err := Decode([]byte("not json\n"))
	if !errors.Is(err, ErrDecodeFailed) {
		t.Fatalf("expected ErrDecodeFailed, got %v", err)
	}
}

func TestDecodeRejectsEmptyLine(t *testing.T) {
	_, err := Decode([]byte("\n"))
	if !errors.Is(err, ErrDecodeFailed) {
		t.Fatalf("expected ErrDecodeFailed, got %v", err)
	}
}

func TestSourceID(t *testing.T) {
	source, id, err := SourceID(Event(`{"source":"svc-a","id":"42","data":{}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if source != "svc-a" || id != "42" {
		t.Fatalf("got source=%q id=%q", source, id)
	}
}
