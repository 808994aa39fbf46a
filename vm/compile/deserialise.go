package compile

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	. "github.com/Heliodex/minilua/types"
)

// header constants, for a 64-bit little-endian luac 5.3
const (
	Signature = "\x1bLua"
	Version   = 0x53
	Format    = 0
	Data      = "\x19\x93\r\n\x1a\n"

	SizeInt         = 4
	SizeSizeT       = 8
	SizeInstruction = 4
	SizeInteger     = 8
	SizeNumber      = 8

	CheckInt = 0x5678
	CheckNum = 370.5
)

// constant type tags
const (
	tagNil     = 0x00
	tagBoolean = 0x01
	tagNumFlt  = 0x03
	tagNumInt  = 0x13
	tagShrStr  = 0x04
	tagLngStr  = 0x14
)

// ErrEOF is returned for truncated chunks.
var ErrEOF = fmt.Errorf("%w: unexpected end of file", ErrFormat)

type stream struct {
	data []byte
	pos  int
}

// reads past the end unwind to Deserialise
func (s *stream) rBytes(n int) (b []byte) {
	if n < 0 || len(s.data)-s.pos < n {
		panic(ErrEOF)
	}
	b = s.data[s.pos:][:n]
	s.pos += n
	return
}

func (s *stream) rByte() byte {
	return s.rBytes(1)[0]
}

func (s *stream) rInt() int32 {
	return int32(binary.LittleEndian.Uint32(s.rBytes(SizeInt)))
}

func (s *stream) rSize() uint64 {
	return binary.LittleEndian.Uint64(s.rBytes(SizeSizeT))
}

func (s *stream) rInteger() int64 {
	return int64(binary.LittleEndian.Uint64(s.rBytes(SizeInteger)))
}

func (s *stream) rNumber() float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(s.rBytes(SizeNumber)))
}

func (s *stream) checkLiteral(lit string) bool {
	return string(s.rBytes(len(lit))) == lit
}

// strings are prefixed with size+1, 0 means no string at all
func (s *stream) rString() (str string, ok bool) {
	size := uint64(s.rByte())
	if size == 0xff {
		size = s.rSize()
	}

	if size == 0 {
		return "", false
	} else if size-1 > uint64(len(s.data)-s.pos) {
		panic(ErrEOF)
	}
	return string(s.rBytes(int(size - 1))), true
}

func (s *stream) rCount(what string) (int, error) {
	n := s.rInt()
	if n < 0 {
		return 0, fmt.Errorf("%w: negative %s count %d", ErrFormat, what, n)
	}
	return int(n), nil
}

func (s *stream) checkHeader() error {
	if !s.checkLiteral(Signature) {
		return fmt.Errorf("%w: bad signature", ErrFormat)
	} else if s.rByte() != Version {
		return fmt.Errorf("%w: lua version mismatch", ErrFormat)
	} else if s.rByte() != Format {
		return fmt.Errorf("%w: luac format mismatch", ErrFormat)
	} else if !s.checkLiteral(Data) {
		return fmt.Errorf("%w: corrupted", ErrFormat)
	}

	for _, size := range [...]struct {
		name string
		n    byte
	}{
		{"machine int", SizeInt},
		{"size_t", SizeSizeT},
		{"Instruction", SizeInstruction},
		{"lua_Integer", SizeInteger},
		{"lua_Number", SizeNumber},
	} {
		if s.rByte() != size.n {
			return fmt.Errorf("%w: wrong size: %s", ErrFormat, size.name)
		}
	}

	if s.rInteger() != CheckInt {
		return fmt.Errorf("%w: endianness mismatch", ErrFormat)
	} else if s.rNumber() != CheckNum {
		return fmt.Errorf("%w: bad floating point format", ErrFormat)
	}
	return nil
}

func (s *stream) readConstant() (Val, error) {
	switch kt := s.rByte(); kt {
	case tagNil:
		return Nil{}, nil
	case tagBoolean:
		return Bool(s.rByte() != 0), nil
	case tagNumFlt:
		return Float(s.rNumber()), nil
	case tagNumInt:
		return Int(s.rInteger()), nil
	case tagShrStr, tagLngStr:
		return nil, fmt.Errorf("%w: string constants", ErrNotImplemented)
	default:
		return nil, fmt.Errorf("%w: unknown constant type %d", ErrFormat, kt)
	}
}

func (s *stream) readProto(parentSource string) (*Proto, error) {
	p := &Proto{}

	if src, ok := s.rString(); ok {
		p.Source = src
	} else if parentSource != "" {
		p.Source = parentSource
	} else {
		return nil, fmt.Errorf("%w: missing source", ErrFormat)
	}

	p.LineDefined, p.LastLineDefined = s.rInt(), s.rInt()
	p.NumParams = s.rByte()
	p.IsVararg = s.rByte() != 0
	p.MaxStackSize = s.rByte()

	sizecode, err := s.rCount("code")
	if err != nil {
		return nil, err
	}
	code := s.rBytes(sizecode * SizeInstruction)
	p.Code = make([]Inst, sizecode)
	for i := range p.Code {
		p.Code[i] = Inst(binary.LittleEndian.Uint32(code[i*SizeInstruction:]))
	}

	sizek, err := s.rCount("constant")
	if err != nil {
		return nil, err
	}
	p.K = make([]Val, 0, min(sizek, len(s.data)-s.pos)) // don't trust the count for preallocation
	for range sizek {
		k, err := s.readConstant()
		if err != nil {
			return nil, err
		}
		p.K = append(p.K, k)
	}

	sizeupvalues, err := s.rCount("upvalue")
	if err != nil {
		return nil, err
	}
	p.NumUpvalues = int32(sizeupvalues)
	s.rBytes(sizeupvalues * 2) // instack, idx

	if sizep, err := s.rCount("proto"); err != nil {
		return nil, err
	} else if sizep != 0 {
		return nil, fmt.Errorf("%w: loading inner functions", ErrNotImplemented)
	}

	// debug info is left unread
	return p, nil
}

// Deserialise loads the main function prototype of a Lua 5.3 binary chunk.
func Deserialise(b []byte) (p *Proto, err error) {
	s := &stream{data: b}

	defer func() {
		if r := recover(); r != nil {
			if r != ErrEOF {
				panic(r)
			}
			p, err = nil, ErrEOF
		}
	}()

	if err = s.checkHeader(); err != nil {
		return
	}

	s.rByte() // closure size, legacy
	return s.readProto("")
}

// Load reads a whole binary chunk from r and deserialises it.
func Load(r io.Reader) (*Proto, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("error reading chunk: %w", err)
	}
	return Deserialise(b)
}

// IsChunk reports whether b starts with the binary chunk signature.
func IsChunk(b []byte) bool {
	return len(b) >= len(Signature) && string(b[:len(Signature)]) == Signature
}

