package compile

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"

	. "github.com/Heliodex/minilua/types"
	"golang.org/x/crypto/blake2b"
)

const (
	Ext         = ".lua"
	DefaultLuac = "luac5.3"
)

// Compiler turns Lua source files into prototypes, caching by content hash.
type Compiler struct {
	Luac  string
	Cache map[[32]byte]*Proto
	mu    sync.Mutex
}

// NewCompiler creates a compiler that uses the given luac binary, or DefaultLuac if empty.
func NewCompiler(luac string) *Compiler {
	if luac == "" {
		luac = DefaultLuac
	}
	return &Compiler{
		Luac:  luac,
		Cache: make(map[[32]byte]*Proto),
	}
}

func (c *Compiler) luac(path string) ([]byte, error) {
	// "-" writes to stdout. No -s: a stripped dump has no source name, which the loader rejects
	cmd := exec.Command(c.Luac, "-o", "-", path)
	b, err := cmd.Output()
	if ee := (*exec.ExitError)(nil); errors.As(err, &ee) && len(ee.Stderr) > 0 {
		return nil, fmt.Errorf("%w: %s", err, ee.Stderr)
	}
	return b, err
}

// Compile loads the prototype for a file. Precompiled chunks are deserialised directly, anything else is compiled with luac first.
func (c *Compiler) Compile(path string) (*Proto, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		if _, err2 := os.Stat(path + Ext); err2 != nil {
			return nil, fmt.Errorf("error finding file: %w", err)
		}
		path += Ext
		if src, err = os.ReadFile(path); err != nil {
			return nil, fmt.Errorf("error reading file: %w", err)
		}
	}

	hash := blake2b.Sum256(src)
	c.mu.Lock()
	defer c.mu.Unlock()

	if p, ok := c.Cache[hash]; ok {
		return p, nil
	}

	b := src
	if !IsChunk(src) {
		if b, err = c.luac(path); err != nil {
			return nil, fmt.Errorf("error compiling file: %w", err)
		}
	}

	p, err := Deserialise(b)
	if err != nil {
		return nil, fmt.Errorf("error deserialising bytecode: %w", err)
	}

	c.Cache[hash] = p
	return p, nil
}
