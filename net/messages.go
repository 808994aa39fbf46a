package net

import (
	"errors"
	"fmt"

	. "github.com/Heliodex/minilua/types"
	"github.com/fxamacker/cbor/v2"
)

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("net: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// same tags as the chunk format's constants
const (
	tNil   uint8 = 0x00
	tBool  uint8 = 0x01
	tFloat uint8 = 0x03
	tInt   uint8 = 0x13
)

// ErrRemote wraps errors reported by the execution server.
var ErrRemote = errors.New("remote error")

// Value is a VM value on the wire.
type Value struct {
	Type  uint8   `cbor:"1,keyasint"`
	Int   int64   `cbor:"2,keyasint,omitempty"`
	Float float64 `cbor:"3,keyasint,omitempty"`
	Bool  bool    `cbor:"4,keyasint,omitempty"`
}

func FromVal(v Val) Value {
	switch x := v.(type) {
	case Bool:
		return Value{Type: tBool, Bool: bool(x)}
	case Int:
		return Value{Type: tInt, Int: int64(x)}
	case Float:
		return Value{Type: tFloat, Float: float64(x)}
	}
	return Value{Type: tNil}
}

func (w Value) Val() (Val, error) {
	switch w.Type {
	case tNil:
		return Nil{}, nil
	case tBool:
		return Bool(w.Bool), nil
	case tInt:
		return Int(w.Int), nil
	case tFloat:
		return Float(w.Float), nil
	}
	return nil, fmt.Errorf("%w: unknown value type %d", ErrFormat, w.Type)
}

// RunRequest asks the server to interpret a binary chunk. On the wire the chunk is gzipped, without the gzip header.
type RunRequest struct {
	Chunk      []byte `cbor:"1,keyasint"`
	Iterations int    `cbor:"2,keyasint,omitempty"`
}

// RunResponse is the result of a RunRequest. Exactly one of Returns and Error is meaningful.
type RunResponse struct {
	Hash    [32]byte `cbor:"1,keyasint"`
	Returns []Value  `cbor:"2,keyasint,omitempty"`
	Error   string   `cbor:"3,keyasint,omitempty"`
	Elapsed int64    `cbor:"4,keyasint,omitempty"` // nanoseconds, all iterations
	Cached  bool     `cbor:"5,keyasint,omitempty"`
}

// Err returns the server-side error, if any.
func (r *RunResponse) Err() error {
	if r.Error == "" {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrRemote, r.Error)
}

// Values decodes the returned values.
func (r *RunResponse) Values() ([]Val, error) {
	vs := make([]Val, len(r.Returns))
	for i, w := range r.Returns {
		v, err := w.Val()
		if err != nil {
			return nil, err
		}
		vs[i] = v
	}
	return vs, nil
}

func MarshalRequest(r *RunRequest) ([]byte, error) {
	return cborEncMode.Marshal(r)
}

func UnmarshalRequest(data []byte) (*RunRequest, error) {
	var r RunRequest
	if err := cbor.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("net: unmarshal run request: %w", err)
	}
	return &r, nil
}

func MarshalResponse(r *RunResponse) ([]byte, error) {
	return cborEncMode.Marshal(r)
}

func UnmarshalResponse(data []byte) (*RunResponse, error) {
	var r RunResponse
	if err := cbor.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("net: unmarshal run response: %w", err)
	}
	return &r, nil
}
