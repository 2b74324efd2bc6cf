package dragonfly

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"go.dedis.ch/kyber/v4/util/random"
)

var (
	// ErrInvalidCounter indicates a hunting-and-pecking counter outside 1..255
	ErrInvalidCounter = errors.New("invalid counter")

	// ErrElementNotFound indicates that no counter up to 255 gave a valid element
	ErrElementNotFound = errors.New("password element not found")

	// ErrNoElementByMinimum indicates an empty pool once the minimum iteration count was reached
	ErrNoElementByMinimum = errors.New("no password element found by minimum iteration count")

	// ErrInvalidIdentifier indicates a malformed peer identifier
	ErrInvalidIdentifier = errors.New("invalid identifier")

	// ErrInvalidOptions indicates inconsistent generator options
	ErrInvalidOptions = errors.New("invalid options")
)

// PasswordElement is the result of a derivation
type PasswordElement struct {
	// Value is the element, 1 < Value < P, in the order-Q subgroup
	Value *big.Int

	// Iterations is the counter at which the loop stopped
	Iterations int

	// Trace lists every counter tried
	Trace *Trace

	// PoolSize is the number of elements the fixed-effort generator drew from;
	// it is 1 for the reference generator.
	PoolSize int
}

// Dragonfly derives password elements with hunting-and-pecking
type Dragonfly struct {
	// Configuration options, copied at construction
	options *Options
}

// drawMu guards every Options.Rand. A stream may be shared by instances
// built from the same Options, and cipher.Stream is not safe for concurrent use.
var drawMu sync.Mutex

// New creates a Dragonfly instance. Nil options select DefaultOptions.
func New(options *Options) (*Dragonfly, error) {
	if options == nil {
		options = DefaultOptions()
	}
	if err := options.Validate(); err != nil {
		return nil, err
	}
	o := *options
	cs := *options.Ciphersuite
	o.Ciphersuite = &cs
	if o.Rand == nil {
		o.Rand = random.New()
	}

	return &Dragonfly{options: &o}, nil
}

// Options returns the options in use
func (d *Dragonfly) Options() Options {
	return *d.options
}

// DeriveSeed maps (secret, identifiers, counter) to the seed tried at that
// counter, interpreted as a big-endian integer.
func (d *Dragonfly) DeriveSeed(secret []byte, ids IdentifierPair, counter int) (*big.Int, error) {
	if counter < 1 || counter > MaxCounter {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCounter, counter)
	}

	cs := d.options.Ciphersuite
	seed := cs.KDF(cs.Hash, secret, ids.Local[:], ids.Peer[:], byte(counter), cs.Group.ElementLen())
	return new(big.Int).SetBytes(seed), nil
}

// candidate runs one iteration: seed < P, then G^seed mod P > 1.
func (d *Dragonfly) candidate(secret []byte, ids IdentifierPair, counter int) (*big.Int, bool, error) {
	group := d.options.Ciphersuite.Group

	seed, err := d.DeriveSeed(secret, ids, counter)
	if err != nil {
		return nil, false, err
	}
	if seed.Cmp(group.Modulus()) >= 0 {
		return nil, false, nil
	}
	pe := group.Exp(seed)
	if pe.Cmp(big.NewInt(1)) <= 0 {
		return nil, false, nil
	}
	return pe, true, nil
}

// GeneratePEVariable is the reference hunting-and-pecking loop. It returns
// the first valid element; the number of iterations depends on the secret
// and the identifiers, which is the timing side channel.
func (d *Dragonfly) GeneratePEVariable(secret []byte, ids IdentifierPair) (*PasswordElement, error) {
	trace := NewTrace(4)

	for counter := 1; counter <= MaxCounter; counter++ {
		pe, ok, err := d.candidate(secret, ids, counter)
		if err != nil {
			return nil, err
		}
		trace.record(counter, ok)
		if ok {
			return &PasswordElement{
				Value:      pe,
				Iterations: counter,
				Trace:      trace,
				PoolSize:   1,
			}, nil
		}
	}

	return nil, ErrElementNotFound
}

// GeneratePEFixed is the fixed-effort loop. It never stops before KMin
// counters, collects valid elements instead of returning the first, and
// returns one drawn uniformly from the pool.
//
// The loop stops after counter c when the pool holds PoolSize elements and
// c >= KMin, or when c == KMin, whichever comes first.
func (d *Dragonfly) GeneratePEFixed(secret []byte, ids IdentifierPair) (*PasswordElement, error) {
	kMin, kMax, poolSize := d.options.KMin, d.options.KMax, d.options.PoolSize

	capacity := poolSize
	if capacity < 1 {
		capacity = 1
	}
	pool := make([]*big.Int, 0, capacity)
	trace := NewTrace(kMin)

	iterations := 0
	for counter := 1; counter <= kMax; counter++ {
		iterations = counter

		pe, ok, err := d.candidate(secret, ids, counter)
		if err != nil {
			return nil, err
		}
		trace.record(counter, ok)
		if ok && len(pool) < capacity {
			pool = append(pool, pe)
		}

		if len(pool) >= poolSize && counter >= kMin {
			break
		}
		if counter == kMin {
			break
		}
	}

	if len(pool) == 0 {
		return nil, fmt.Errorf("%w: %d iterations", ErrNoElementByMinimum, iterations)
	}

	return &PasswordElement{
		Value:      pool[d.pick(len(pool))],
		Iterations: iterations,
		Trace:      trace,
		PoolSize:   len(pool),
	}, nil
}

// pick returns a uniform index in [0, n). random.Int only yields values in
// [1, mod), so it draws from [1, n] and shifts down by one.
func (d *Dragonfly) pick(n int) int {
	drawMu.Lock()
	defer drawMu.Unlock()

	return int(random.Int(big.NewInt(int64(n)+1), d.options.Rand).Int64()) - 1
}
