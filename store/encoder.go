package store

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

const (
	recordFormatVersionCurrent = 1
)

// Record is the persisted form of the credential slot.
type Record struct {
	Token     string
	StoredAt  int64
	ExpiresAt int64
}

// Encode serializes r as: version(1) | storedAt(8) | expiresAt(8) | len(4) | token.
func Encode(r *Record) ([]byte, error) {
	if r == nil || r.Token == "" {
		return nil, ErrEmptyToken
	}
	if uint64(len(r.Token)) > math.MaxUint32 {
		return nil, errors.New("token too long")
	}

	var buf bytes.Buffer
	buf.Grow(21 + len(r.Token))
	buf.WriteByte(recordFormatVersionCurrent)

	if err := binary.Write(&buf, binary.BigEndian, r.StoredAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, r.ExpiresAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, uint32(len(r.Token))); err != nil {
		return nil, err
	}
	buf.WriteString(r.Token)

	return buf.Bytes(), nil
}

// Decode parses a record produced by [Encode]. Any structural problem is reported as
// [ErrCorrupt].
func Decode(data []byte) (*Record, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, corrupt(err)
	}
	if version != recordFormatVersionCurrent {
		return nil, fmt.Errorf("%w: unknown version %d", ErrCorrupt, version)
	}

	r := &Record{}
	if err := binary.Read(reader, binary.BigEndian, &r.StoredAt); err != nil {
		return nil, corrupt(err)
	}
	if err := binary.Read(reader, binary.BigEndian, &r.ExpiresAt); err != nil {
		return nil, corrupt(err)
	}

	var tokenLen uint32
	if err := binary.Read(reader, binary.BigEndian, &tokenLen); err != nil {
		return nil, corrupt(err)
	}
	if tokenLen == 0 || int64(tokenLen) > int64(reader.Len()) {
		return nil, fmt.Errorf("%w: bad token length", ErrCorrupt)
	}
	tok := make([]byte, tokenLen)
	if _, err := io.ReadFull(reader, tok); err != nil {
		return nil, corrupt(err)
	}
	r.Token = string(tok)

	return r, nil
}

func corrupt(err error) error {
	return fmt.Errorf("%w: %v", ErrCorrupt, err)
}
