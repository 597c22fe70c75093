package basket

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/sync/errgroup"
)

// MaxItemsetSize is the largest itemset the miner produces.
const MaxItemsetSize = 2

// Itemset is a set of one or two items tagged with its support.
// Items are sorted ascending.
type Itemset struct {
	Items   []string
	Support float64
}

// Len returns the number of items in the set.
func (s Itemset) Len() int {
	return len(s.Items)
}

func (s Itemset) String() string {
	return fmt.Sprintf("{%s}:%.4f", strings.Join(s.Items, ","), s.Support)
}

type mineOptions struct {
	maxSize int
	workers int
}

// MineOption tunes Mine.
type MineOption func(*mineOptions)

// WithMaxSize caps the itemset size. Only 1 and 2 are valid.
func WithMaxSize(n int) MineOption {
	return func(o *mineOptions) { o.maxSize = n }
}

// WithWorkers counts candidate pairs on up to n goroutines. Values below 2
// keep the count on the calling goroutine.
func WithWorkers(n int) MineOption {
	return func(o *mineOptions) { o.workers = n }
}

// ValidateSupport checks that a support threshold lies in [0, 1].
func ValidateSupport(minSupport float64) error {
	if math.IsNaN(minSupport) || minSupport < 0 || minSupport > 1 {
		return fmt.Errorf("%w: min support %v outside [0, 1]", ErrPrecondition, minSupport)
	}
	return nil
}

// Mine runs level-wise Apriori over m and returns every itemset of size one
// or two whose support is at least minSupport. Pairs are only formed from
// frequent single items. The result is ordered by size, then by items.
func Mine(m Matrix, minSupport float64, opts ...MineOption) ([]Itemset, error) {
	o := mineOptions{maxSize: MaxItemsetSize, workers: 1}
	for _, opt := range opts {
		opt(&o)
	}
	if err := ValidateSupport(minSupport); err != nil {
		return nil, err
	}
	if o.maxSize < 1 || o.maxSize > MaxItemsetSize {
		return nil, fmt.Errorf("%w: max itemset size %d, want 1..%d", ErrPrecondition, o.maxSize, MaxItemsetSize)
	}

	total := m.Len()
	if total == 0 {
		return nil, nil
	}
	n := float64(total)

	occ := m.occurrences()

	// L1
	var frequent []string
	var result []Itemset
	for _, item := range m.items {
		support := float64(len(occ[item])) / n
		if support >= minSupport {
			frequent = append(frequent, item)
			result = append(result, Itemset{Items: []string{item}, Support: support})
		}
	}
	if o.maxSize < 2 || len(frequent) < 2 {
		return result, nil
	}

	candidates := make([][2]string, 0, len(frequent)*(len(frequent)-1)/2)
	for i := 0; i < len(frequent); i++ {
		for j := i + 1; j < len(frequent); j++ {
			candidates = append(candidates, [2]string{frequent[i], frequent[j]})
		}
	}

	counts := countPairs(candidates, occ, o.workers)

	// L2
	for i, pair := range candidates {
		support := float64(counts[i]) / n
		if support >= minSupport {
			result = append(result, Itemset{Items: []string{pair[0], pair[1]}, Support: support})
		}
	}

	return result, nil
}

// countPairs returns, for every candidate, the number of rows holding both items.
func countPairs(candidates [][2]string, occ map[string][]int, workers int) []int {
	counts := make([]int, len(candidates))
	if workers < 2 || len(candidates) < workers {
		for i, pair := range candidates {
			counts[i] = intersectCount(occ[pair[0]], occ[pair[1]])
		}
		return counts
	}

	chunk := (len(candidates) + workers - 1) / workers
	var g errgroup.Group
	g.SetLimit(workers)
	for start := 0; start < len(candidates); start += chunk {
		end := min(start+chunk, len(candidates))
		g.Go(func() error {
			for i := start; i < end; i++ {
				counts[i] = intersectCount(occ[candidates[i][0]], occ[candidates[i][1]])
			}
			return nil
		})
	}
	_ = g.Wait()

	return counts
}

// intersectCount counts common values of two ascending slices.
func intersectCount(a, b []int) int {
	count := 0
	for i, j := 0, 0; i < len(a) && j < len(b); {
		switch {
		case a[i] == b[j]:
			count++
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return count
}
