package bench

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Heliodex/minilua/vm/compile"
	"gopkg.in/yaml.v3"
)

// Entry is a single benchmark in a suite file.
type Entry struct {
	Name       string `yaml:"name"`
	Chunk      string `yaml:"chunk"`
	Iterations int    `yaml:"iterations"`
}

// Suite is a list of benchmarks, with an optional baseline everything else is compared against.
//
//	baseline: sum
//	benchmarks:
//	  - name: sum
//	    chunk: sum.luac
//	    iterations: 100000
type Suite struct {
	Baseline   string  `yaml:"baseline"`
	Benchmarks []Entry `yaml:"benchmarks"`

	dir string
}

// LoadSuite reads a YAML suite. Chunk paths are relative to the suite file.
func LoadSuite(path string) (*Suite, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading suite: %w", err)
	}

	s := &Suite{dir: filepath.Dir(path)}
	if err = yaml.Unmarshal(b, s); err != nil {
		return nil, fmt.Errorf("error parsing suite %s: %w", path, err)
	}

	for i, e := range s.Benchmarks {
		if e.Name == "" {
			s.Benchmarks[i].Name = e.Chunk
		}
		if e.Chunk == "" {
			return nil, fmt.Errorf("benchmark %d in %s has no chunk", i, path)
		}
	}
	return s, nil
}

// Run runs every benchmark in order, using defaultIters for entries that don't give an iteration count.
func (s *Suite) Run(c *compile.Compiler, defaultIters int) ([]*Result, error) {
	var rs []*Result
	for _, e := range s.Benchmarks {
		path := e.Chunk
		if !filepath.IsAbs(path) {
			path = filepath.Join(s.dir, path)
		}

		p, err := c.Compile(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name, err)
		}

		n := e.Iterations
		if n == 0 {
			n = defaultIters
		}

		log.Infof("running %s, %d iterations", e.Name, n)
		r, err := Run(e.Name, p, n)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name, err)
		}
		rs = append(rs, r)
	}
	return rs, nil
}
