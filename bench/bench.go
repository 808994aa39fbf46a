// Package bench runs prototypes repeatedly and keeps track of how long they took.
package bench

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	. "github.com/Heliodex/minilua/types"
	"github.com/Heliodex/minilua/vm"
	"github.com/google/uuid"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("minilua.bench")

var ErrIterations = errors.New("iteration count must be at least 1")

// Result is one benchmark run of a prototype.
type Result struct {
	ID         uuid.UUID
	Name       string
	Iterations int
	Returns    []Val
	Start      time.Time
	Elapsed    time.Duration
}

// PerIteration is the mean time taken by a single interpretation.
func (r *Result) PerIteration() time.Duration {
	if r.Iterations == 0 {
		return 0
	}
	return r.Elapsed / time.Duration(r.Iterations)
}

// ReturnString formats the returned values tab-separated, like print would.
func (r *Result) ReturnString() string {
	strs := make([]string, len(r.Returns))
	for i, v := range r.Returns {
		strs[i] = ToString(v)
	}
	return strings.Join(strs, "\t")
}

// Run interprets p n times, each time from a cleared register file.
// The returned values are those of the last iteration.
func Run(name string, p *Proto, n int) (*Result, error) {
	return RunStep(name, p, n, vm.Step)
}

// RunStep is Run with a different StepFunc, e.g. one that limits execution.
func RunStep(name string, p *Proto, n int, step vm.StepFunc) (*Result, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w, got %d", ErrIterations, n)
	}

	s, err := vm.NewState(p)
	if err != nil {
		return nil, err
	}

	r := &Result{
		ID:         uuid.New(),
		Name:       name,
		Iterations: n,
		Start:      time.Now(),
	}

	for range n {
		s.Reset()
		if err = s.Run(step); err != nil {
			return nil, err
		}
	}
	r.Elapsed = time.Since(r.Start)
	r.Returns = slices.Clone(s.Returns())

	log.Debugf("%s: %d iterations in %s", name, n, r.Elapsed)
	return r, nil
}
