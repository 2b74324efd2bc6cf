package dragonfly

import (
	"errors"
	"hash"
	"math/big"
	"sync"
	"testing"

	"go.dedis.ch/kyber/v4/xof/blake2xb"
)

// oneStream sets every byte to 0x01, so each pool draw returns index 0
type oneStream struct{}

func (oneStream) XORKeyStream(dst, src []byte) {
	for i := range src {
		dst[i] = src[i] ^ 0x01
	}
}

func newTestDragonfly(t *testing.T, mutate func(o *Options)) *Dragonfly {
	t.Helper()
	opts := DefaultOptions()
	if mutate != nil {
		mutate(opts)
	}
	d, err := New(opts)
	if err != nil {
		t.Fatalf("Failed to create instance: %v", err)
	}
	return d
}

func mustPair(t *testing.T, local, peer string) IdentifierPair {
	t.Helper()
	ids, err := NewIdentifierPair(local, peer)
	if err != nil {
		t.Fatalf("Failed to parse identifiers: %v", err)
	}
	return ids
}

// validCandidates recomputes the valid elements for counters 1..n
func validCandidates(t *testing.T, d *Dragonfly, secret []byte, ids IdentifierPair, n int) []*big.Int {
	t.Helper()
	group := d.options.Ciphersuite.Group
	var out []*big.Int
	for c := 1; c <= n; c++ {
		seed, err := d.DeriveSeed(secret, ids, c)
		if err != nil {
			t.Fatalf("DeriveSeed(%d): %v", c, err)
		}
		if seed.Cmp(group.Modulus()) >= 0 {
			continue
		}
		e := group.Exp(seed)
		if e.Cmp(big.NewInt(1)) > 0 {
			out = append(out, e)
		}
	}
	return out
}

func TestDeriveSeedInvalidCounter(t *testing.T) {
	d := newTestDragonfly(t, nil)
	ids := mustPair(t, "00:00:00:00:00:00", "00:00:00:00:00:00")

	for _, counter := range []int{0, 256, -1, 1000} {
		_, err := d.DeriveSeed([]byte("letmein"), ids, counter)
		if !errors.Is(err, ErrInvalidCounter) {
			t.Errorf("Counter %d: expected ErrInvalidCounter, got %v", counter, err)
		}
	}

	for _, counter := range []int{1, 255} {
		seed, err := d.DeriveSeed([]byte("letmein"), ids, counter)
		if err != nil {
			t.Fatalf("Counter %d: %v", counter, err)
		}
		if seed.BitLen() > 1024 {
			t.Errorf("Counter %d: seed wider than 1024 bits", counter)
		}
	}
}

func TestDeriveSeedDeterministic(t *testing.T) {
	d := newTestDragonfly(t, nil)
	ids := mustPair(t, "00:11:22:33:44:55", "66:77:88:99:AA:BB")

	a, err := d.DeriveSeed([]byte("password123"), ids, 3)
	if err != nil {
		t.Fatalf("DeriveSeed: %v", err)
	}
	b, err := d.DeriveSeed([]byte("password123"), ids, 3)
	if err != nil {
		t.Fatalf("DeriveSeed: %v", err)
	}
	if a.Cmp(b) != 0 {
		t.Fatalf("Seeds differ for identical inputs")
	}

	swapped, err := d.DeriveSeed([]byte("password123"), ids.Swap(), 3)
	if err != nil {
		t.Fatalf("DeriveSeed: %v", err)
	}
	if a.Cmp(swapped) == 0 {
		t.Fatalf("Swapping the identifier pair should change the seed")
	}
}

func TestGeneratePEVariableLetmein(t *testing.T) {
	d := newTestDragonfly(t, nil)
	ids := mustPair(t, "00:00:00:00:00:00", "00:00:00:00:00:00")
	group := d.options.Ciphersuite.Group

	first, err := d.GeneratePEVariable([]byte("letmein"), ids)
	if err != nil {
		t.Fatalf("GeneratePEVariable: %v", err)
	}
	if first.Iterations < 1 || first.Iterations > MaxCounter {
		t.Fatalf("Iterations out of range: %d", first.Iterations)
	}
	if new(big.Int).Exp(first.Value, group.Order(), group.Modulus()).Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("Element is not in the order-Q subgroup")
	}

	second, err := d.GeneratePEVariable([]byte("letmein"), ids)
	if err != nil {
		t.Fatalf("GeneratePEVariable: %v", err)
	}
	if second.Iterations != first.Iterations || second.Value.Cmp(first.Value) != 0 {
		t.Fatalf("Re-running gave (%d, %x), first run (%d, %x)",
			second.Iterations, second.Value, first.Iterations, first.Value)
	}

	t.Logf("letmein: %d iterations", first.Iterations)
}

func TestGeneratePEVariableMatchesLoop(t *testing.T) {
	d := newTestDragonfly(t, nil)

	cases := []struct {
		secret      string
		local, peer string
	}{
		{"password123", "00:11:22:33:44:55", "66:77:88:99:AA:BB"},
		{"s3cr3t!", "AA:BB:CC:DD:EE:FF", "11:22:33:44:55:66"},
		{"dragonfly", "11:22:33:44:55:66", "AA:BB:CC:DD:EE:FF"},
		{"", "FF:FF:FF:FF:FF:FF", "00:00:00:00:00:01"},
		{"guestwifi", "02:00:00:00:00:01", "AA:BB:CC:DD:EE:FF"},
	}

	for _, tc := range cases {
		t.Run(tc.secret, func(t *testing.T) {
			ids := mustPair(t, tc.local, tc.peer)
			pe, err := d.GeneratePEVariable([]byte(tc.secret), ids)
			if err != nil {
				t.Fatalf("GeneratePEVariable: %v", err)
			}

			if !d.options.Ciphersuite.Group.IsMember(pe.Value) {
				t.Fatalf("Element is not a subgroup member")
			}

			// The first valid counter is the returned one
			group := d.options.Ciphersuite.Group
			for c := 1; c < pe.Iterations; c++ {
				seed, _ := d.DeriveSeed([]byte(tc.secret), ids, c)
				if seed.Cmp(group.Modulus()) < 0 && group.Exp(seed).Cmp(big.NewInt(1)) > 0 {
					t.Fatalf("Counter %d was valid but the loop continued to %d", c, pe.Iterations)
				}
			}
			seed, _ := d.DeriveSeed([]byte(tc.secret), ids, pe.Iterations)
			if group.Exp(seed).Cmp(pe.Value) != 0 {
				t.Fatalf("Element does not match G^seed at counter %d", pe.Iterations)
			}

			if pe.Trace.Iterations() != pe.Iterations {
				t.Errorf("Trace length %d, iterations %d", pe.Trace.Iterations(), pe.Iterations)
			}
			if vc := pe.Trace.ValidCounters(); len(vc) != 1 || vc[0] != pe.Iterations {
				t.Errorf("Trace should have exactly the last counter valid, got %v", vc)
			}
		})
	}
}

func TestGeneratePEFixedFloor(t *testing.T) {
	d := newTestDragonfly(t, nil)

	pairs := []IdentifierPair{
		mustPair(t, "00:00:00:00:00:00", "00:00:00:00:00:00"),
		mustPair(t, "11:22:33:44:55:66", "AA:BB:CC:DD:EE:FF"),
		mustPair(t, "AA:BB:CC:DD:EE:FF", "11:22:33:44:55:66"),
	}

	for _, secret := range []string{"letmein", "password123", "dragonfly"} {
		for _, ids := range pairs {
			pe, err := d.GeneratePEFixed([]byte(secret), ids)
			if err != nil {
				t.Fatalf("GeneratePEFixed(%s, %s): %v", secret, ids, err)
			}
			if pe.Iterations < DefaultKMin {
				t.Fatalf("Iterations %d below floor %d", pe.Iterations, DefaultKMin)
			}
			if pe.PoolSize < 1 || pe.PoolSize > DefaultPoolSize {
				t.Fatalf("Pool size %d outside [1, %d]", pe.PoolSize, DefaultPoolSize)
			}
			if !d.options.Ciphersuite.Group.IsMember(pe.Value) {
				t.Fatalf("Element is not a subgroup member")
			}

			pool := validCandidates(t, d, []byte(secret), ids, pe.Iterations)
			if len(pool) > DefaultPoolSize {
				pool = pool[:DefaultPoolSize]
			}
			found := false
			for _, e := range pool {
				if e.Cmp(pe.Value) == 0 {
					found = true
					break
				}
			}
			if !found {
				t.Fatalf("Returned element is not in the collected pool")
			}
		}
	}
}

func TestGeneratePEFixedStopsAtKMin(t *testing.T) {
	ids := mustPair(t, "11:22:33:44:55:66", "AA:BB:CC:DD:EE:FF")

	cases := []struct {
		kMin, kMax, poolSize int
	}{
		{31, 255, 20},
		{1, 255, 20},
		{5, 5, 1},
		{31, 255, 1},
		{31, 255, 0},
		{60, 255, 5},
		{40, 100, 200},
	}

	for _, tc := range cases {
		d := newTestDragonfly(t, func(o *Options) {
			o.KMin, o.KMax, o.PoolSize = tc.kMin, tc.kMax, tc.poolSize
		})
		pe, err := d.GeneratePEFixed([]byte("password123"), ids)
		if err != nil {
			// A very low floor can legitimately find nothing
			if tc.kMin < 10 && errors.Is(err, ErrNoElementByMinimum) {
				continue
			}
			t.Fatalf("kmin=%d: %v", tc.kMin, err)
		}
		if pe.Iterations != tc.kMin {
			t.Errorf("kmin=%d kmax=%d pool=%d: stopped at %d", tc.kMin, tc.kMax, tc.poolSize, pe.Iterations)
		}
		if pe.Trace.Iterations() != pe.Iterations {
			t.Errorf("Trace length %d, iterations %d", pe.Trace.Iterations(), pe.Iterations)
		}
		if limit := max(tc.poolSize, 1); pe.PoolSize > limit {
			t.Errorf("Pool grew to %d, limit %d", pe.PoolSize, limit)
		}
		if !d.options.Ciphersuite.Group.IsMember(pe.Value) {
			t.Errorf("kmin=%d pool=%d: element outside the subgroup", tc.kMin, tc.poolSize)
		}
	}
}

func TestGeneratePEFixedZeroPoolSize(t *testing.T) {
	d := newTestDragonfly(t, func(o *Options) { o.PoolSize = 0 })
	ids := mustPair(t, "00:00:00:00:00:00", "00:00:00:00:00:00")

	pe, err := d.GeneratePEFixed([]byte("letmein"), ids)
	if err != nil {
		t.Fatalf("GeneratePEFixed: %v", err)
	}
	if pe.Value == nil || !d.options.Ciphersuite.Group.IsMember(pe.Value) {
		t.Fatalf("Expected a valid element with pool size 0")
	}
	if pe.PoolSize != 1 {
		t.Errorf("Expected a single pooled element, got %d", pe.PoolSize)
	}
	if pe.Iterations != DefaultKMin {
		t.Errorf("Expected %d iterations, got %d", DefaultKMin, pe.Iterations)
	}
}

func TestGeneratePEFixedInjectedRandomness(t *testing.T) {
	ids := mustPair(t, "00:11:22:33:44:55", "66:77:88:99:AA:BB")
	secret := []byte("hunter2")

	d := newTestDragonfly(t, func(o *Options) { o.Rand = oneStream{} })
	fixed, err := d.GeneratePEFixed(secret, ids)
	if err != nil {
		t.Fatalf("GeneratePEFixed: %v", err)
	}
	ref, err := d.GeneratePEVariable(secret, ids)
	if err != nil {
		t.Fatalf("GeneratePEVariable: %v", err)
	}
	if fixed.Value.Cmp(ref.Value) != 0 {
		t.Fatalf("Index 0 of the pool should be the first valid element")
	}

	// Same seed, same draws
	seed := []byte("deterministic pool draws")
	a := newTestDragonfly(t, func(o *Options) { o.Rand = blake2xb.New(seed) })
	b := newTestDragonfly(t, func(o *Options) { o.Rand = blake2xb.New(seed) })
	for i := 0; i < 5; i++ {
		pa, err := a.GeneratePEFixed(secret, ids)
		if err != nil {
			t.Fatalf("GeneratePEFixed: %v", err)
		}
		pb, err := b.GeneratePEFixed(secret, ids)
		if err != nil {
			t.Fatalf("GeneratePEFixed: %v", err)
		}
		if pa.Value.Cmp(pb.Value) != 0 {
			t.Fatalf("Draw %d differs between identically seeded streams", i)
		}
	}
}

func TestPickCoversEveryIndex(t *testing.T) {
	d := newTestDragonfly(t, func(o *Options) { o.Rand = blake2xb.New([]byte("pool index")) })

	for n := 1; n <= 7; n++ {
		hits := make([]int, n)
		for i := 0; i < 300*n; i++ {
			idx := d.pick(n)
			if idx < 0 || idx >= n {
				t.Fatalf("pick(%d) = %d, out of range", n, idx)
			}
			hits[idx]++
		}
		for idx, c := range hits {
			if c == 0 {
				t.Errorf("pick(%d) never returned %d: %v", n, idx, hits)
			}
		}
	}
}

func TestGeneratePEFixedDrawsFromWholePool(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping repeated derivations in short mode")
	}

	d := newTestDragonfly(t, func(o *Options) { o.Rand = blake2xb.New([]byte("spread")) })
	ids := mustPair(t, "11:22:33:44:55:66", "AA:BB:CC:DD:EE:FF")

	seen := make(map[string]bool)
	for i := 0; i < 40; i++ {
		pe, err := d.GeneratePEFixed([]byte("dragonfly"), ids)
		if err != nil {
			t.Fatalf("GeneratePEFixed: %v", err)
		}
		seen[pe.Value.Text(16)] = true
	}
	if len(seen) < 2 {
		t.Fatalf("Forty draws returned a single element; the pool is not being sampled")
	}
}

// exhaustedKDF produces seeds that are never below P
func exhaustedKDF(_ func() hash.Hash, _, _, _ []byte, _ byte, length int) []byte {
	out := make([]byte, length)
	for i := range out {
		out[i] = 0xff
	}
	return out
}

func TestExhaustedSearch(t *testing.T) {
	ids := mustPair(t, "00:00:00:00:00:00", "00:00:00:00:00:00")
	d := newTestDragonfly(t, func(o *Options) { o.Ciphersuite.KDF = exhaustedKDF })

	if _, err := d.GeneratePEVariable([]byte("x"), ids); !errors.Is(err, ErrElementNotFound) {
		t.Errorf("Expected ErrElementNotFound, got %v", err)
	}
	if _, err := d.GeneratePEFixed([]byte("x"), ids); !errors.Is(err, ErrNoElementByMinimum) {
		t.Errorf("Expected ErrNoElementByMinimum, got %v", err)
	}
}

func TestNewRejectsInvalidOptions(t *testing.T) {
	cases := map[string]func(o *Options){
		"zero kmin":       func(o *Options) { o.KMin = 0 },
		"kmax above 255":  func(o *Options) { o.KMax = 256 },
		"kmin above kmax": func(o *Options) { o.KMin, o.KMax = 50, 40 },
		"negative pool":   func(o *Options) { o.PoolSize = -1 },
		"nil ciphersuite": func(o *Options) { o.Ciphersuite = nil },
		"nil group":       func(o *Options) { o.Ciphersuite.Group = nil },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			opts := DefaultOptions()
			mutate(opts)
			if _, err := New(opts); !errors.Is(err, ErrInvalidOptions) {
				t.Fatalf("Expected ErrInvalidOptions, got %v", err)
			}
		})
	}

	d, err := New(nil)
	if err != nil {
		t.Fatalf("New(nil): %v", err)
	}
	if d.Options().KMin != DefaultKMin || d.Options().PoolSize != DefaultPoolSize {
		t.Errorf("New(nil) should use the defaults")
	}

	opts := DefaultOptions()
	opts.Rand = nil
	d, err = New(opts)
	if err != nil {
		t.Fatalf("New with nil Rand: %v", err)
	}
	if d.Options().Rand == nil {
		t.Errorf("A randomness source should be filled in")
	}
}

func TestGeneratePEFixedConcurrent(t *testing.T) {
	d := newTestDragonfly(t, func(o *Options) { o.KMin = 8 })
	ids := mustPair(t, "00:11:22:33:44:55", "66:77:88:99:AA:BB")

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pe, err := d.GeneratePEFixed([]byte("concurrent"), ids)
			if err != nil {
				errs <- err
				return
			}
			if pe.Iterations != 8 {
				errs <- errors.New("unexpected iteration count")
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		// kmin=8 may rarely find nothing; anything else is a failure
		if !errors.Is(err, ErrNoElementByMinimum) {
			t.Fatalf("Concurrent derivation failed: %v", err)
		}
	}
}

func TestNewCopiesOptions(t *testing.T) {
	opts := DefaultOptions()
	d, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	opts.KMin = 0
	opts.PoolSize = -1
	opts.Ciphersuite.KDF = exhaustedKDF

	ids := mustPair(t, "00:00:00:00:00:00", "00:00:00:00:00:00")
	pe, err := d.GeneratePEFixed([]byte("letmein"), ids)
	if err != nil {
		t.Fatalf("Later changes to the options leaked into the instance: %v", err)
	}
	if pe.Iterations != DefaultKMin {
		t.Errorf("Expected %d iterations, got %d", DefaultKMin, pe.Iterations)
	}
	if got := d.Options(); got.KMin != DefaultKMin || got.PoolSize != DefaultPoolSize {
		t.Errorf("Options() = kmin %d, pool %d", got.KMin, got.PoolSize)
	}
}

func TestSharedStreamAcrossInstances(t *testing.T) {
	opts := DefaultOptions()
	opts.Rand = blake2xb.New([]byte("shared stream"))
	a, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	b, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var wg sync.WaitGroup
	for _, d := range []*Dragonfly{a, b, a, b} {
		wg.Add(1)
		go func(d *Dragonfly) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				if idx := d.pick(5); idx < 0 || idx >= 5 {
					t.Errorf("pick(5) = %d", idx)
					return
				}
			}
		}(d)
	}
	wg.Wait()
}
