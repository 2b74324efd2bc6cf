package sidechannel

import (
	"time"

	dragonfly "github.com/backkem/dragonfly-go"
)

// IterationOracle reports how many iterations the reference generator needs
// for a secret and identifier pair. It never reveals the element itself.
type IterationOracle interface {
	Iterations(secret []byte, ids dragonfly.IdentifierPair) (int, error)
}

// ReferenceOracle answers with the variable-time reference generator
type ReferenceOracle struct {
	d *dragonfly.Dragonfly
}

// NewReferenceOracle wraps an instance's GeneratePEVariable
func NewReferenceOracle(d *dragonfly.Dragonfly) *ReferenceOracle {
	return &ReferenceOracle{d: d}
}

// Iterations implements IterationOracle
func (o *ReferenceOracle) Iterations(secret []byte, ids dragonfly.IdentifierPair) (int, error) {
	pe, err := o.d.GeneratePEVariable(secret, ids)
	if err != nil {
		return 0, err
	}
	return pe.Iterations, nil
}

// Observation is what an attacker learns from one exchange: the identifiers
// used and the iteration count, usually inferred from elapsed time.
type Observation struct {
	IDs        dragonfly.IdentifierPair
	Iterations int

	// Elapsed is the measured derivation time, zero when not measured
	Elapsed time.Duration
}

// Observe records the observations an attacker would collect against a
// victim secret, one per identifier pair.
func Observe(oracle IterationOracle, secret []byte, pairs []dragonfly.IdentifierPair) ([]Observation, error) {
	observations := make([]Observation, 0, len(pairs))
	for _, ids := range pairs {
		start := time.Now()
		n, err := oracle.Iterations(secret, ids)
		if err != nil {
			return nil, err
		}
		observations = append(observations, Observation{
			IDs:        ids,
			Iterations: n,
			Elapsed:    time.Since(start),
		})
	}
	return observations, nil
}
