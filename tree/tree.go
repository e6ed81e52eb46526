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

// Package tree implements rooted trees whose internal nodes may share
// divergence times. Heights live in an arena owned by the tree and nodes
// hold handles into it, so assigning several nodes to one height is a
// matter of pointing them at the same cell.
package tree

import (
	"math"
	"sort"

	"github.com/pkg/errors"

	"github.com/bbva/phycoeval/rng"
)

type heightCell struct {
	value float64
	refs  int
	live  bool
}

// Tree holds a topology, the sorted index of distinct internal heights
// and the cached posterior terms of the current state.
type Tree struct {
	root   *Node
	leaves []*Node

	cells []heightCell
	free  []HeightID
	index []HeightID

	rootFixed  bool
	rootPrior  rng.Distribution
	likelihood Likelihood
	ignoreData bool

	lnL     float64
	lnPrior float64
	stored  *Snapshot
}

// Option configures a tree at construction time.
type Option func(*Tree)

// WithRootFixed keeps the root height constant during sampling.
func WithRootFixed(fixed bool) Option {
	return func(t *Tree) {
		t.rootFixed = fixed
	}
}

func WithRootPrior(d rng.Distribution) Option {
	return func(t *Tree) {
		t.rootPrior = d
	}
}

func WithLikelihood(l Likelihood) Option {
	return func(t *Tree) {
		t.likelihood = l
	}
}

// IgnoreData makes the log likelihood identically zero so the chain
// samples from the prior.
func IgnoreData(ignore bool) Option {
	return func(t *Tree) {
		t.ignoreData = ignore
	}
}

// New builds a tree from an assembled root. Internal nodes assembled with
// the same *Height share it. Leaves are indexed in label order.
func New(root *Node, opts ...Option) (*Tree, error) {
	if root == nil || root.parent != nil {
		return nil, errors.Wrap(ErrInvalidTree, "root must be a parentless node")
	}
	t := &Tree{root: root}
	cells := make(map[*Height]HeightID)

	stack := []*Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n.tree = t
		if n.IsLeaf() {
			n.height = leafHeight
			n.pending = nil
			t.leaves = append(t.leaves, n)
			continue
		}
		if n.pending == nil {
			return nil, errors.Wrapf(ErrInvalidHeight, "internal node %q has no height", n.label)
		}
		id, ok := cells[n.pending]
		if !ok {
			id = t.allocate(n.pending.value)
			cells[n.pending] = id
		}
		n.height = id
		n.pending = nil
		t.cells[id].refs++
		stack = append(stack, n.children...)
	}

	if len(t.leaves) < 2 {
		return nil, errors.Wrapf(ErrTooFewLeaves, "%d leaves", len(t.leaves))
	}
	sortLeaves(t.leaves)
	for i := 1; i < len(t.leaves); i++ {
		if t.leaves[i-1].label == t.leaves[i].label {
			return nil, errors.Wrapf(ErrInvalidTree, "duplicate leaf label %q", t.leaves[i].label)
		}
	}
	for id := range t.cells {
		t.index = append(t.index, HeightID(id))
	}
	t.sortIndex()

	for _, opt := range opts {
		opt(t)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

func sortLeaves(leaves []*Node) {
	sort.Slice(leaves, func(i, j int) bool {
		return leaves[i].label < leaves[j].label
	})
	for i, l := range leaves {
		l.leaf = i
	}
}

func (t *Tree) allocate(value float64) HeightID {
	if n := len(t.free); n > 0 {
		id := t.free[n-1]
		t.free = t.free[:n-1]
		t.cells[id] = heightCell{value: value, live: true}
		return id
	}
	t.cells = append(t.cells, heightCell{value: value, live: true})
	return HeightID(len(t.cells) - 1)
}

func (t *Tree) release(id HeightID) {
	t.cells[id] = heightCell{}
	t.free = append(t.free, id)
	for i, h := range t.index {
		if h == id {
			t.index = append(t.index[:i], t.index[i+1:]...)
			return
		}
	}
}

func (t *Tree) sortIndex() {
	sort.SliceStable(t.index, func(i, j int) bool {
		return t.cells[t.index[i]].value < t.cells[t.index[j]].value
	})
}

func (t *Tree) positionOf(id HeightID) int {
	for i, h := range t.index {
		if h == id {
			return i
		}
	}
	return -1
}

func (t *Tree) checkIndex(i int) {
	if i < 0 || i >= len(t.index) {
		panic(errors.Wrapf(ErrHeightIndex, "index %d of %d heights", i, len(t.index)))
	}
}

func (t *Tree) Root() *Node {
	return t.root
}

// Leaves returns the leaves in label order.
func (t *Tree) Leaves() []*Node {
	return t.leaves
}

func (t *Tree) LeafCount() int {
	return len(t.leaves)
}

func (t *Tree) RootFixed() bool {
	return t.rootFixed
}

// FixRoot fixes or frees the root height after construction.
func (t *Tree) FixRoot(fixed bool) {
	t.rootFixed = fixed
}

func (t *Tree) RootPrior() rng.Distribution {
	return t.rootPrior
}

// IgnoringData reports whether the log likelihood is held at zero.
func (t *Tree) IgnoringData() bool {
	return t.ignoreData
}

// NumberOfNodeHeights is the number of distinct internal heights,
// the root height included.
func (t *Tree) NumberOfNodeHeights() int {
	return len(t.index)
}

// Height is the value of the i-th youngest internal height.
func (t *Tree) Height(i int) float64 {
	t.checkIndex(i)
	return t.cells[t.index[i]].value
}

// Heights returns a copy of the distinct heights, youngest first.
func (t *Tree) Heights() []float64 {
	hs := make([]float64, len(t.index))
	for i, id := range t.index {
		hs[i] = t.cells[id].value
	}
	return hs
}

func (t *Tree) RootHeight() float64 {
	return t.cells[t.root.height].value
}

// RootHeightIndex is the index of the root height, always the last one.
func (t *Tree) RootHeightIndex() int {
	return len(t.index) - 1
}

// traverse visits nodes in preorder with children in their stored order.
func (t *Tree) traverse(visit func(n *Node)) {
	stack := []*Node{t.root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		visit(n)
		for i := len(n.children) - 1; i >= 0; i-- {
			stack = append(stack, n.children[i])
		}
	}
}

// Nodes returns every node in preorder.
func (t *Tree) Nodes() []*Node {
	var nodes []*Node
	t.traverse(func(n *Node) {
		nodes = append(nodes, n)
	})
	return nodes
}

// MappedNodes returns the nodes assigned to height i in preorder.
func (t *Tree) MappedNodes(i int) []*Node {
	t.checkIndex(i)
	id := t.index[i]
	var mapped []*Node
	t.traverse(func(n *Node) {
		if n.height == id {
			mapped = append(mapped, n)
		}
	})
	return mapped
}

// MappedNodeCount is the number of nodes sharing height i.
func (t *Tree) MappedNodeCount(i int) int {
	t.checkIndex(i)
	return t.cells[t.index[i]].refs
}

// MappedPolytomyCount is the number of nodes at height i with more than
// two children.
func (t *Tree) MappedPolytomyCount(i int) int {
	count := 0
	for _, n := range t.MappedNodes(i) {
		if n.IsPolytomy() {
			count++
		}
	}
	return count
}

// IsSplittable reports whether height i can be split into two: it holds
// more than one node or one of its nodes is a polytomy.
func (t *Tree) IsSplittable(i int) bool {
	if t.MappedNodeCount(i) > 1 {
		return true
	}
	return t.MappedPolytomyCount(i) > 0
}

// SplittableHeightIndices returns, in ascending order, the indices of the
// heights shared by several nodes or mapped to a polytomy.
func (t *Tree) SplittableHeightIndices() []int {
	var indices []int
	for i := range t.index {
		if t.IsSplittable(i) {
			indices = append(indices, i)
		}
	}
	return indices
}

// NumberOfSplittableHeights is len(SplittableHeightIndices()).
func (t *Tree) NumberOfSplittableHeights() int {
	return len(t.SplittableHeightIndices())
}

// HeightOfOldestChild is the largest height among the children of the
// nodes at height i.
func (t *Tree) HeightOfOldestChild(i int) float64 {
	oldest := 0.0
	for _, n := range t.MappedNodes(i) {
		for _, c := range n.children {
			oldest = math.Max(oldest, c.Height())
		}
	}
	return oldest
}

// HeightOfYoungestParent is the smallest height among the parents of the
// nodes at height i, or +Inf for the root height.
func (t *Tree) HeightOfYoungestParent(i int) float64 {
	youngest := math.Inf(1)
	for _, n := range t.MappedNodes(i) {
		if n.parent != nil {
			youngest = math.Min(youngest, n.parent.Height())
		}
	}
	return youngest
}

// InCombState reports whether every internal node shares the root height.
func (t *Tree) InCombState() bool {
	return len(t.index) == 1
}

// InGeneralState reports whether every height holds one bifurcating node.
func (t *Tree) InGeneralState() bool {
	return len(t.index) == len(t.leaves)-1
}

// LogLikelihood is the value cached by the last ComputeLogLikelihoodAndPrior.
func (t *Tree) LogLikelihood() float64 {
	return t.lnL
}

func (t *Tree) LogPrior() float64 {
	return t.lnPrior
}
