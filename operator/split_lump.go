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

package operator

import (
	"math"

	"github.com/pkg/errors"

	"github.com/bbva/phycoeval/partition"
	"github.com/bbva/phycoeval/rng"
	"github.com/bbva/phycoeval/tree"
)

// SplitLumpName names the split-lump operator in tallies, reports and
// metrics.
const SplitLumpName = "SplitLumpNodesRevJumpSampler"

// SplitLump is the reversible-jump move between tree models. A split
// pulls part of the structure mapped to a shared height down to a new
// height; a lump merges two adjacent heights.
type SplitLump struct {
	Op
	cache *partition.Cache
}

// NewSplitLump returns a split-lump operator drawn with the given schedule
// weight.
func NewSplitLump(weight float64, opts ...Option) *SplitLump {
	return &SplitLump{
		Op:    newOp(SplitLumpName, "topology", weight, opts...),
		cache: partition.DefaultCache,
	}
}

func (s *SplitLump) Type() Type {
	return RJ
}

// Propose splits or merges a height of t and returns the log Hastings
// ratio. It panics with ErrInvariant when t has fewer than three leaves.
func (s *SplitLump) Propose(r *rng.Generator, t *tree.Tree) float64 {
	if t.LeafCount() < 3 {
		panic(errors.Wrapf(ErrInvariant, "split-lump needs more than two leaves, got %d", t.LeafCount()))
	}
	general := t.InGeneralState()
	if !general && (t.InCombState() || r.UniformReal() < 0.5) {
		return s.split(r, t)
	}
	return s.merge(r, t)
}

func (s *SplitLump) Operate(r *rng.Generator, t *tree.Tree, n int) error {
	return operate(r, t, s, n)
}

// OperatePlus performs n split-lump moves, each followed by m moves of
// every other operator.
func (s *SplitLump) OperatePlus(r *rng.Generator, t *tree.Tree, others []Operator, n, m int) error {
	for i := 0; i < n; i++ {
		if _, err := PerformMove(r, t, s); err != nil {
			return err
		}
		for _, op := range others {
			if err := op.Operate(r, t, m); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *SplitLump) split(r *rng.Generator, t *tree.Tree) float64 {
	splittable := t.SplittableHeightIndices()
	if len(splittable) == 0 {
		panic(errors.Wrap(ErrInvariant, "split proposed with no splittable height"))
	}
	i := splittable[r.UniformInt(0, len(splittable)-1)]
	return s.splitAt(r, t, i, len(splittable))
}

// splitAt splits height i, one of the splittable heights of t.
func (s *SplitLump) splitAt(r *rng.Generator, t *tree.Tree, i, splittable int) float64 {
	k := t.NumberOfNodeHeights()
	comb := t.InCombState()

	result := t.SplitHeightDown(r, i)
	d := t.Height(i+1) - result.Lower

	lnHR := math.Log(float64(splittable)) + math.Log(d) - math.Log(float64(k))
	switch {
	case result.MappedNodes == 1:
		lnHR += math.Log(s.cache.Bell(result.PolytomySizes[0]) - 2)
	case !result.IncludesPolytomy:
		lnHR += math.Ln2 + math.Log(s.cache.Stirling2(result.MappedNodes, 2))
	default:
		lnHR += s.lnSubsets(result.MappedNodes) +
			s.lnResolutions(result.PolytomySizes, result.SubsetSize == result.MappedNodes)
	}

	general := t.InGeneralState()
	if comb && !general {
		lnHR -= math.Ln2
	}
	if general && !comb {
		lnHR += math.Ln2
	}
	s.log.Tracef("split height %d (%d mapped nodes, %d moving) down to %v: ln HR %v",
		i, result.MappedNodes, result.SubsetSize, t.Height(i), lnHR)
	return lnHR
}

func (s *SplitLump) merge(r *rng.Generator, t *tree.Tree) float64 {
	k := t.NumberOfNodeHeights()
	if k < 2 {
		panic(errors.Wrap(ErrInvariant, "merge proposed with a single height"))
	}
	return s.mergeAt(t, r.UniformInt(0, k-2))
}

// mergeAt merges height i into height i+1.
func (s *SplitLump) mergeAt(t *tree.Tree, i int) float64 {
	k := t.NumberOfNodeHeights()
	general := t.InGeneralState()

	result := t.MergeHeightUp(i)
	lower := 0.0
	if i > 0 {
		lower = t.Height(i - 1)
	}
	d := t.Height(i) - lower
	splittable := t.NumberOfSplittableHeights()
	mapped := t.MappedNodeCount(i)

	lnReverse := math.Log(float64(splittable)) + math.Log(d)
	switch {
	case mapped == 1:
		c := t.MappedNodes(i)[0].NumberOfChildren()
		lnReverse += math.Log(s.cache.Bell(c) - 2)
	case t.MappedPolytomyCount(i) == 0:
		lnReverse += math.Ln2 + math.Log(s.cache.Stirling2(mapped, 2))
	default:
		lnReverse += s.lnSubsets(mapped) +
			s.lnResolutions(result.PolytomySizes, mapped == result.MergedNodes)
	}
	lnHR := math.Log(float64(k-1)) - lnReverse

	comb := t.InCombState()
	if general && !comb {
		lnHR -= math.Ln2
	}
	if comb && !general {
		lnHR += math.Ln2
	}
	s.log.Tracef("merged height %d up (%d nodes touched): ln HR %v", i, result.MergedNodes, lnHR)
	return lnHR
}

// lnSubsets is the log of the number of non-empty subsets of n nodes,
// 2 S2(n, 2) + 1.
func (s *SplitLump) lnSubsets(n int) float64 {
	s2 := s.cache.Stirling2(n, 2)
	if math.IsInf(2*s2, 1) {
		return math.Ln2 + math.Log(s2)
	}
	return math.Log(2*s2 + 1)
}

// lnResolutions is the log of the number of ways the moving polytomies
// can resolve. When every mapped node moves, the outcome that moves them
// all whole is excluded.
func (s *SplitLump) lnResolutions(sizes []int, whole bool) float64 {
	sum := 0.0
	prod := 1.0
	for _, c := range sizes {
		b := s.cache.Bell(c) - 1
		sum += math.Log(b)
		prod *= b
	}
	if !whole || math.IsInf(prod, 1) {
		return sum
	}
	return math.Log(prod - 1)
}
