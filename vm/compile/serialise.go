package compile

import (
	"encoding/binary"
	"math"

	. "github.com/Heliodex/minilua/types"
)

type writer struct {
	b []byte
}

func (w *writer) wByte(b byte) {
	w.b = append(w.b, b)
}

func (w *writer) wInt(n int32) {
	w.b = binary.LittleEndian.AppendUint32(w.b, uint32(n))
}

func (w *writer) wInteger(n int64) {
	w.b = binary.LittleEndian.AppendUint64(w.b, uint64(n))
}

func (w *writer) wNumber(f float64) {
	w.b = binary.LittleEndian.AppendUint64(w.b, math.Float64bits(f))
}

func (w *writer) wString(s string) {
	if size := len(s) + 1; size < 0xff {
		w.wByte(byte(size))
	} else {
		w.wByte(0xff)
		w.b = binary.LittleEndian.AppendUint64(w.b, uint64(size))
	}
	w.b = append(w.b, s...)
}

func (w *writer) header() {
	w.b = append(w.b, Signature...)
	w.wByte(Version)
	w.wByte(Format)
	w.b = append(w.b, Data...)
	w.wByte(SizeInt)
	w.wByte(SizeSizeT)
	w.wByte(SizeInstruction)
	w.wByte(SizeInteger)
	w.wByte(SizeNumber)
	w.wInteger(CheckInt)
	w.wNumber(CheckNum)
}

func (w *writer) proto(p *Proto) {
	w.wString(p.Source)
	w.wInt(p.LineDefined)
	w.wInt(p.LastLineDefined)
	w.wByte(p.NumParams)
	if p.IsVararg {
		w.wByte(1)
	} else {
		w.wByte(0)
	}
	w.wByte(p.MaxStackSize)

	w.wInt(int32(len(p.Code)))
	for _, i := range p.Code {
		w.b = binary.LittleEndian.AppendUint32(w.b, uint32(i))
	}

	w.wInt(int32(len(p.K)))
	for _, k := range p.K {
		switch v := k.(type) {
		case Bool:
			w.wByte(tagBoolean)
			if v {
				w.wByte(1)
			} else {
				w.wByte(0)
			}
		case Int:
			w.wByte(tagNumInt)
			w.wInteger(int64(v))
		case Float:
			w.wByte(tagNumFlt)
			w.wNumber(float64(v))
		default:
			w.wByte(tagNil)
		}
	}

	w.wInt(0) // upvalues
	w.wInt(0) // protos

	// stripped debug info: lineinfo, locvars, upvalue names
	w.wInt(0)
	w.wInt(0)
	w.wInt(0)
}

// Serialise writes p as a Lua 5.3 binary chunk that Deserialise (and luac -l) can read back.
// Upvalue descriptors and debug information are written empty.
func Serialise(p *Proto) []byte {
	w := &writer{}
	w.header()
	w.wByte(0) // closure size
	w.proto(p)
	return w.b
}
