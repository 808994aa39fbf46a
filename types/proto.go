package types

// Proto is a loaded function prototype. Code and K are never modified after loading.
type Proto struct {
	Source                       string
	K                            []Val
	Code                         []Inst
	LineDefined, LastLineDefined int32
	NumUpvalues                  int32

	NumParams, MaxStackSize uint8
	IsVararg                bool
}
