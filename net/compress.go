package net

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

const gzheaderLen = 10

// MaxChunk bounds a decompressed chunk.
const MaxChunk = 64 << 20

// every header we write is the same, so it doesn't go over the wire
var gzheader = [gzheaderLen]byte{0x1f, 0x8b, 0x08, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xff}

func compress(c []byte) ([]byte, error) {
	var b bytes.Buffer
	w, err := gzip.NewWriterLevel(&b, gzip.DefaultCompression)
	if err != nil {
		return nil, err
	}

	if _, err = w.Write(c); err != nil {
		return nil, err
	} else if err = w.Close(); err != nil {
		return nil, err
	}

	return b.Bytes()[gzheaderLen:], nil // remove the header
}

func decompress(c []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(append(gzheader[:], c...))) // add the header
	if err != nil {
		return nil, fmt.Errorf("decompressing chunk: %w", err)
	}

	var b bytes.Buffer
	if _, err = b.ReadFrom(io.LimitReader(r, MaxChunk+1)); err != nil {
		return nil, fmt.Errorf("decompressing chunk: %w", err)
	} else if b.Len() > MaxChunk {
		return nil, fmt.Errorf("chunk larger than %d bytes", MaxChunk)
	} else if err = r.Close(); err != nil {
		return nil, fmt.Errorf("decompressing chunk: %w", err)
	}
	return b.Bytes(), nil
}
