package dragonfly

import (
	"fmt"
	"strings"
)

// Step is one hunting-and-pecking iteration
type Step struct {
	Counter int
	// Valid is true when the seed was below P and gave an element other than 1
	Valid bool
}

// Trace represents the iterations executed during one derivation
type Trace struct {
	Steps []Step
}

// NewTrace creates an empty trace with room for n steps
func NewTrace(n int) *Trace {
	return &Trace{Steps: make([]Step, 0, n)}
}

func (t *Trace) record(counter int, valid bool) {
	t.Steps = append(t.Steps, Step{Counter: counter, Valid: valid})
}

// Iterations is the number of counters tried, the observable timing signal
func (t *Trace) Iterations() int {
	return len(t.Steps)
}

// ValidCounters returns the counters that produced a valid element
func (t *Trace) ValidCounters() []int {
	var out []int
	for _, s := range t.Steps {
		if s.Valid {
			out = append(out, s.Counter)
		}
	}
	return out
}

// String renders the trace as one mark per counter, '+' for a valid
// candidate and '.' otherwise, e.g. "..+.+"
func (t *Trace) String() string {
	var sb strings.Builder
	for _, s := range t.Steps {
		if s.Valid {
			sb.WriteByte('+')
		} else {
			sb.WriteByte('.')
		}
	}
	return fmt.Sprintf("%d [%s]", len(t.Steps), sb.String())
}
