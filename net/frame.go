package net

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MaxFrame bounds a single message, so a bogus length can't make us allocate 4GiB.
const MaxFrame = 16 << 20

// frames are a 4-byte big-endian length followed by the message
func writeFrame(w io.Writer, msg []byte) error {
	if len(msg) > MaxFrame {
		return fmt.Errorf("message too long: %d bytes", len(msg))
	}

	b := make([]byte, 4+len(msg))
	binary.BigEndian.PutUint32(b[:4], uint32(len(msg)))
	copy(b[4:], msg)

	_, err := w.Write(b)
	return err
}

func readFrame(r io.Reader) ([]byte, error) {
	var l [4]byte
	if _, err := io.ReadFull(r, l[:]); err != nil {
		return nil, fmt.Errorf("reading length: %w", err)
	}

	n := binary.BigEndian.Uint32(l[:])
	if n > MaxFrame {
		return nil, fmt.Errorf("message too long: %d bytes", n)
	}

	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, fmt.Errorf("reading message: %w", err)
	}
	return b, nil
}
