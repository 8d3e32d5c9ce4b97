// Package divergence runs several copies of a simulation with identical
// input and reports the first copy whose significant state disagrees with
// the first one.
package divergence

import (
	"bytes"

	"github.com/pkg/errors"
	"github.com/zeusync/lockstep/internal/core/entropy"
)

var ErrTooFewClones = errors.New("divergence: at least two clones are required")

// Simulation is what the harness steps and compares.
type Simulation interface {
	Advance(entropy.StepEntropy) error
	AppendSignificant(dst []byte) []byte
	Step() uint64
}

// Report describes the first divergence. Clone is the index of the first
// clone whose state differed from clone 0 at Step.
type Report struct {
	Diverged bool
	Clone    int
	Step     uint64
}

type Harness[S Simulation] struct {
	clones  []S
	report  Report
	scratch [2][]byte
	steps   uint64
}

func New[S Simulation](clones ...S) (*Harness[S], error) {
	if len(clones) < 2 {
		return nil, ErrTooFewClones
	}
	return &Harness[S]{clones: clones}, nil
}

func (h *Harness[S]) Clones() []S { return h.clones }

func (h *Harness[S]) Report() Report { return h.report }

// Steps is the number of steps applied through the harness.
func (h *Harness[S]) Steps() uint64 { return h.steps }

// Advance feeds e to every clone, then compares their significant state
// against clone 0 unless a divergence was already found. Stepping goes on
// after a divergence so the clones can be inspected further.
func (h *Harness[S]) Advance(e entropy.StepEntropy) (Report, error) {
	for i, c := range h.clones {
		if err := c.Advance(e.Clone()); err != nil {
			return h.report, errors.Wrapf(err, "clone %d", i)
		}
	}
	h.steps++
	if h.report.Diverged {
		return h.report, nil
	}

	h.scratch[0] = h.clones[0].AppendSignificant(h.scratch[0][:0])
	for i := 1; i < len(h.clones); i++ {
		h.scratch[1] = h.clones[i].AppendSignificant(h.scratch[1][:0])
		if !bytes.Equal(h.scratch[0], h.scratch[1]) {
			h.report = Report{Diverged: true, Clone: i, Step: h.clones[0].Step()}
			break
		}
	}
	return h.report, nil
}

// Run feeds every entropy produced by next until it reports false.
func (h *Harness[S]) Run(next func() (entropy.StepEntropy, bool)) (Report, error) {
	for {
		e, ok := next()
		if !ok {
			return h.report, nil
		}
		if _, err := h.Advance(e); err != nil {
			return h.report, err
		}
	}
}
