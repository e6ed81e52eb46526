/*
   Copyright 2018-2019 Banco Bilbao Vizcaya Argentaria, S.A.

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

package partition

import (
	"math"
	"sort"

	"github.com/pkg/errors"
)

var ErrTooFewElements = errors.New("too few elements to partition")

// Rand is the part of a random stream the draws consume.
type Rand interface {
	UniformReal() float64
	UniformInt(lo, hi int) int
}

// RandomSetPartition draws one of the Bell(n) partitions of {0..n-1}
// uniformly. Blocks are sorted and ordered by their smallest element.
func (c *Cache) RandomSetPartition(r Rand, n int) [][]int {
	if n < 1 {
		panic(errors.Wrapf(ErrTooFewElements, "set partition of %d elements", n))
	}
	remaining := make([]int, n)
	for i := range remaining {
		remaining[i] = i
	}
	var blocks [][]int
	for len(remaining) > 0 {
		head := remaining[0]
		others := remaining[1:]
		m := len(others)

		// the block holding head takes s of the others with probability
		// C(m, s) Bell(m-s) / Bell(m+1)
		s := m
		u := r.UniformReal()
		lnTotal := c.LogBell(m + 1)
		cum := 0.0
		for k := 0; k <= m; k++ {
			cum += math.Exp(logBinomial(m, k) + c.LogBell(m-k) - lnTotal)
			if u < cum {
				s = k
				break
			}
		}

		// partial Fisher-Yates over the others
		pool := append([]int(nil), others...)
		for i := 0; i < s; i++ {
			j := r.UniformInt(i, len(pool)-1)
			pool[i], pool[j] = pool[j], pool[i]
		}
		block := append([]int{head}, pool[:s]...)
		sort.Ints(block)
		blocks = append(blocks, block)

		rest := pool[s:]
		sort.Ints(rest)
		remaining = rest
	}
	return blocks
}

// RandomSubsets draws one of the Stirling2(n, k) partitions of {0..n-1}
// into exactly k non-empty blocks uniformly.
func (c *Cache) RandomSubsets(r Rand, n, k int) [][]int {
	if k < 1 || n < k {
		panic(errors.Wrapf(ErrTooFewElements, "%d elements into %d subsets", n, k))
	}
	labels := make([]int, n)
	for {
		used := make([]bool, k)
		nused := 0
		for i := range labels {
			labels[i] = r.UniformInt(0, k-1)
			if !used[labels[i]] {
				used[labels[i]] = true
				nused++
			}
		}
		if nused == k {
			break
		}
	}
	return blocksFromLabels(labels)
}

// RandomNonEmptySubset draws one of the 2^n - 1 non-empty subsets of
// {0..n-1} uniformly.
func RandomNonEmptySubset(r Rand, n int) []int {
	if n < 1 {
		panic(errors.Wrapf(ErrTooFewElements, "non-empty subset of %d elements", n))
	}
	for {
		var subset []int
		for i := 0; i < n; i++ {
			if r.UniformInt(0, 1) == 1 {
				subset = append(subset, i)
			}
		}
		if len(subset) > 0 {
			return subset
		}
	}
}

// blocksFromLabels groups element indices by label, ordering blocks by
// their smallest element.
func blocksFromLabels(labels []int) [][]int {
	order := make(map[int]int)
	var blocks [][]int
	for i, l := range labels {
		b, ok := order[l]
		if !ok {
			b = len(blocks)
			order[l] = b
			blocks = append(blocks, nil)
		}
		blocks[b] = append(blocks[b], i)
	}
	return blocks
}

// RandomSetPartition draws from the default cache.
func RandomSetPartition(r Rand, n int) [][]int {
	return DefaultCache.RandomSetPartition(r, n)
}

// RandomSubsets draws from the default cache.
func RandomSubsets(r Rand, n, k int) [][]int {
	return DefaultCache.RandomSubsets(r, n, k)
}
