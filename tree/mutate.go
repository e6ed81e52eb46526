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

package tree

import (
	"math"

	"github.com/pkg/errors"

	"github.com/bbva/phycoeval/partition"
)

// Rand is the random stream the topology moves draw from.
type Rand interface {
	partition.Rand
	UniformRealRange(a, b float64) float64
}

func (t *Tree) setNodeHeight(n *Node, id HeightID) {
	if n.height == id {
		return
	}
	old := n.height
	n.height = id
	t.cells[id].refs++
	if old != leafHeight {
		t.cells[old].refs--
		if t.cells[old].refs == 0 {
			t.release(old)
		}
	}
}

// ExposeNewHeight adds an unmapped height to the index. It must receive
// at least one node before the tree is used again.
func (t *Tree) ExposeNewHeight(value float64) (HeightID, error) {
	if !(value > 0) || math.IsInf(value, 0) {
		return leafHeight, errors.Wrapf(ErrInvalidHeight, "new height %v", value)
	}
	for _, id := range t.index {
		if t.cells[id].value == value {
			return leafHeight, errors.Wrapf(ErrInvalidHeight, "height %v already exists", value)
		}
	}
	id := t.allocate(value)
	t.index = append(t.index, id)
	t.sortIndex()
	return id, nil
}

// Collapse removes an internal non-root node, handing its children to its
// parent at the position it occupied.
func (t *Tree) Collapse(n *Node) {
	if n.IsLeaf() || n.parent == nil {
		panic(errors.Wrap(ErrInvalidTree, "only internal non-root nodes collapse"))
	}
	p := n.parent
	pos := p.removeChild(n)
	children := n.children
	n.children = nil
	for _, c := range children {
		c.parent = p
	}
	rest := append([]*Node(nil), p.children[pos:]...)
	p.children = append(append(p.children[:pos], children...), rest...)

	old := n.height
	n.height = leafHeight
	n.tree = nil
	t.cells[old].refs--
	if t.cells[old].refs == 0 {
		t.release(old)
	}
}

// SplitChildren moves children of n below a new node at height id. When
// children covers all of n's children, n itself moves to id instead.
func (t *Tree) SplitChildren(n *Node, children []*Node, id HeightID) *Node {
	if len(children) == len(n.children) {
		t.setNodeHeight(n, id)
		return n
	}
	if len(children) < 2 {
		panic(errors.Wrap(ErrInvalidTree, "a new node needs at least two children"))
	}
	m := &Node{leaf: -1, height: leafHeight, tree: t}
	for _, c := range children {
		n.removeChild(c)
		m.addChild(c)
	}
	n.addChild(m)
	t.setNodeHeight(m, id)
	return m
}

// SetHeight moves height i to value, keeping it strictly between the
// oldest child and the youngest parent of its nodes.
func (t *Tree) SetHeight(i int, value float64) error {
	t.checkIndex(i)
	if i == len(t.index)-1 && t.rootFixed {
		return errors.Wrap(ErrFixedRoot, "set root height")
	}
	if !(value > t.HeightOfOldestChild(i)) || !(value < t.HeightOfYoungestParent(i)) {
		return errors.Wrapf(ErrInvalidHeight, "height %v out of bounds", value)
	}
	id := t.index[i]
	for _, other := range t.index {
		if other != id && t.cells[other].value == value {
			return errors.Wrapf(ErrInvalidHeight, "height %v already exists", value)
		}
	}
	t.cells[id].value = value
	t.sortIndex()
	return nil
}

// ScaleHeights multiplies every internal height by m.
func (t *Tree) ScaleHeights(m float64) error {
	if t.rootFixed {
		return errors.Wrap(ErrFixedRoot, "scale tree")
	}
	if !(m > 0) || math.IsInf(m, 0) {
		return errors.Wrapf(ErrInvalidHeight, "multiplier %v", m)
	}
	for _, id := range t.index {
		t.cells[id].value *= m
	}
	return nil
}

// MergeResult describes a merge of two adjacent heights.
type MergeResult struct {
	// PolytomySizes holds the child counts of the merged nodes that are
	// polytomies after the merge.
	PolytomySizes []int
	// MergedNodes is the number of nodes that changed height or absorbed
	// children.
	MergedNodes int
}

// MergeHeightUp merges height i into height i+1. Nodes at i whose parent
// is at i+1 are collapsed into it; the rest move up. Index i then refers
// to the merged height.
func (t *Tree) MergeHeightUp(i int) MergeResult {
	t.checkIndex(i + 1)
	t.checkIndex(i)
	up := t.index[i+1]

	var touched []*Node
	seen := make(map[*Node]bool)
	for _, n := range t.MappedNodes(i) {
		target := n
		if n.parent.height == up {
			target = n.parent
			t.Collapse(n)
		} else {
			t.setNodeHeight(n, up)
		}
		if !seen[target] {
			seen[target] = true
			touched = append(touched, target)
		}
	}

	var result MergeResult
	result.MergedNodes = len(touched)
	for _, n := range touched {
		if n.IsPolytomy() {
			result.PolytomySizes = append(result.PolytomySizes, len(n.children))
		}
	}
	return result
}

// SplitResult describes a split of one height into two.
type SplitResult struct {
	// Lower is the height below the split one, zero for the youngest.
	Lower float64
	// MappedNodes is the node count at the split height before the move.
	MappedNodes int
	// SubsetSize is the number of those nodes that contributed to the new
	// height.
	SubsetSize int
	// PolytomySizes holds the child counts, before the split, of the
	// polytomies in the subset.
	PolytomySizes []int
	// IncludesPolytomy reports whether any node at the height was a
	// polytomy.
	IncludesPolytomy bool
}

type splitPlan struct {
	node   *Node
	blocks [][]*Node
}

// SplitHeightDown splits height i, drawing a new height uniformly between
// it and the height below. Afterwards index i holds the new height and
// index i+1 the old one.
func (t *Tree) SplitHeightDown(r Rand, i int) SplitResult {
	mapped := t.MappedNodes(i)
	if !t.IsSplittable(i) {
		panic(errors.Wrapf(ErrHeightIndex, "height %d is not splittable", i))
	}

	result := SplitResult{MappedNodes: len(mapped)}
	if i > 0 {
		result.Lower = t.Height(i - 1)
	}
	upper := t.Height(i)
	for _, n := range mapped {
		if n.IsPolytomy() {
			result.IncludesPolytomy = true
			break
		}
	}

	var plan []splitPlan
	switch {
	case len(mapped) == 1:
		n := mapped[0]
		plan = []splitPlan{{node: n, blocks: drawResolution(r, n, func(blocks [][]int) bool {
			return len(blocks) > 1 && len(blocks) < len(n.children)
		})}}
		result.SubsetSize = 1
		result.PolytomySizes = []int{len(n.children)}

	case !result.IncludesPolytomy:
		subsets := partition.RandomSubsets(r, len(mapped), 2)
		moving := subsets[r.UniformInt(0, 1)]
		for _, j := range moving {
			plan = append(plan, splitPlan{node: mapped[j]})
		}
		result.SubsetSize = len(moving)

	default:
		subset := partition.RandomNonEmptySubset(r, len(mapped))
		full := len(subset) == len(mapped)
		for {
			plan = plan[:0]
			whole := true
			for _, j := range subset {
				n := mapped[j]
				if !n.IsPolytomy() {
					plan = append(plan, splitPlan{node: n})
					continue
				}
				blocks := drawResolution(r, n, func(blocks [][]int) bool {
					return len(blocks) < len(n.children)
				})
				if len(blocks) != 1 || len(blocks[0]) != len(n.children) {
					whole = false
				}
				plan = append(plan, splitPlan{node: n, blocks: blocks})
			}
			// moving every node whole would only rename the height
			if !full || !whole {
				break
			}
		}
		result.SubsetSize = len(subset)
		for _, p := range plan {
			if p.blocks != nil {
				result.PolytomySizes = append(result.PolytomySizes, len(p.node.children))
			}
		}
	}

	value := r.UniformRealRange(result.Lower, upper)
	for !(value > result.Lower) {
		value = r.UniformRealRange(result.Lower, upper)
	}
	id, err := t.ExposeNewHeight(value)
	if err != nil {
		panic(err)
	}
	for _, p := range plan {
		if p.blocks == nil {
			t.setNodeHeight(p.node, id)
			continue
		}
		for _, block := range p.blocks {
			if len(block) > 1 {
				t.SplitChildren(p.node, block, id)
			}
		}
	}
	return result
}

// drawResolution draws set partitions of n's children until accept holds
// and returns the blocks as nodes.
func drawResolution(r Rand, n *Node, accept func([][]int) bool) [][]*Node {
	var blocks [][]int
	for {
		blocks = partition.RandomSetPartition(r, len(n.children))
		if accept(blocks) {
			break
		}
	}
	nodes := make([][]*Node, len(blocks))
	for b, block := range blocks {
		for _, j := range block {
			nodes[b] = append(nodes[b], n.children[j])
		}
	}
	return nodes
}
