package store

import (
	"errors"
	"testing"
)

func TestEncodeDecodeRecord(t *testing.T) {
	in := &Record{Token: "a.b.c", StoredAt: 1700000000, ExpiresAt: 1700003600}
	data, err := Encode(in)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if data[0] != recordFormatVersionCurrent {
		t.Fatalf("expected version byte %d, got %d", recordFormatVersionCurrent, data[0])
	}
	out, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if *out != *in {
		t.Fatalf("record mismatch: %+v != %+v", out, in)
	}
}

func TestEncodeRejectsEmptyToken(t *testing.T) {
	if _, err := Encode(&Record{}); !errors.Is(err, ErrEmptyToken) {
		t.Fatalf("expected ErrEmptyToken, got %v", err)
	}
	if _, err := Encode(nil); !errors.Is(err, ErrEmptyToken) {
		t.Fatalf("expected ErrEmptyToken for nil, got %v", err)
	}
}

func TestDecodeCorruptInputs(t *testing.T) {
	valid, err := Encode(&Record{Token: "tok", StoredAt: 1, ExpiresAt: 2})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	badVersion := append([]byte{}, valid...)
	badVersion[0] = 9
	longLen := append([]byte{}, valid...)
	longLen[20] = 0xFF

	cases := map[string][]byte{
		"empty":       nil,
		"version":     badVersion,
		"truncated":   valid[:10],
		"length":      longLen,
		"missing tok": valid[:21],
	}
	for name, data := range cases {
		if _, err := Decode(data); !errors.Is(err, ErrCorrupt) {
			t.Fatalf("%s: expected ErrCorrupt, got %v", name, err)
		}
	}
}

func FuzzDecodeRecord(f *testing.F) {
	seed, _ := Encode(&Record{Token: "x.y.z", StoredAt: 1, ExpiresAt: 2})
	f.Add(seed)
	f.Add([]byte{})
	f.Add([]byte{1, 0, 0})
	f.Fuzz(func(t *testing.T, data []byte) {
		r, err := Decode(data)
		if err != nil {
			if !errors.Is(err, ErrCorrupt) {
				t.Fatalf("unexpected error class: %v", err)
			}
			return
		}
		if r.Token == "" {
			t.Fatal("decoded record with empty token")
		}
	})
}
