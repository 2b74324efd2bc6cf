package sidechannel

import (
	"math"
	"sort"
)

// DefaultDistinguishThreshold is the total variation distance above which two
// iteration-count distributions are treated as telling secrets apart.
const DefaultDistinguishThreshold = 0.1

// Distribution is an empirical distribution of iteration counts
type Distribution struct {
	counts map[int]int
	total  int
}

// NewDistribution creates an empty distribution
func NewDistribution() *Distribution {
	return &Distribution{counts: make(map[int]int)}
}

// Sample runs fn n times and records the iteration count of each run
func Sample(n int, fn func() (int, error)) (*Distribution, error) {
	dist := NewDistribution()
	for i := 0; i < n; i++ {
		it, err := fn()
		if err != nil {
			return nil, err
		}
		dist.Add(it)
	}
	return dist, nil
}

// Add records one iteration count
func (d *Distribution) Add(iterations int) {
	d.counts[iterations]++
	d.total++
}

// Total is the number of recorded samples
func (d *Distribution) Total() int {
	return d.total
}

// Count is the number of samples with the given iteration count
func (d *Distribution) Count(iterations int) int {
	return d.counts[iterations]
}

// Counts returns a copy of the iteration count to frequency map
func (d *Distribution) Counts() map[int]int {
	out := make(map[int]int, len(d.counts))
	for k, v := range d.counts {
		out[k] = v
	}
	return out
}

// Values returns the observed iteration counts in ascending order
func (d *Distribution) Values() []int {
	values := make([]int, 0, len(d.counts))
	for v := range d.counts {
		values = append(values, v)
	}
	sort.Ints(values)
	return values
}

// Probability is the empirical probability of an iteration count
func (d *Distribution) Probability(iterations int) float64 {
	if d.total == 0 {
		return 0
	}
	return float64(d.counts[iterations]) / float64(d.total)
}

// Mean is the average iteration count, NaN when empty
func (d *Distribution) Mean() float64 {
	if d.total == 0 {
		return math.NaN()
	}
	sum := 0
	for v, c := range d.counts {
		sum += v * c
	}
	return float64(sum) / float64(d.total)
}

// Mode is the most frequent iteration count; ties go to the smaller count
func (d *Distribution) Mode() int {
	mode, best := 0, -1
	for _, v := range d.Values() {
		if d.counts[v] > best {
			mode, best = v, d.counts[v]
		}
	}
	return mode
}

// TotalVariation is half the L1 distance between the two empirical
// distributions: 0 for identical, 1 for disjoint supports.
func TotalVariation(a, b *Distribution) float64 {
	support := make(map[int]struct{})
	for v := range a.counts {
		support[v] = struct{}{}
	}
	for v := range b.counts {
		support[v] = struct{}{}
	}

	sum := 0.0
	for v := range support {
		sum += math.Abs(a.Probability(v) - b.Probability(v))
	}
	return sum / 2
}

// Distinguishable reports whether an observer of iteration counts can tell
// the two sample sets apart at the given threshold.
func Distinguishable(a, b *Distribution, threshold float64) bool {
	return TotalVariation(a, b) > threshold
}
