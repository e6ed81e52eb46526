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
	"github.com/hashicorp/go-msgpack/codec"
	"github.com/pkg/errors"
)

var msgpackHandle = new(codec.MsgpackHandle)

// NodeRecord is a node in a flat preorder listing. Parent refers to an
// earlier record, -1 for the root; Height is a position in the height
// index, -1 for leaves.
type NodeRecord struct {
	Label  string
	Parent int
	Height int
}

// Snapshot is a flat copy of a tree state.
type Snapshot struct {
	Nodes         []NodeRecord
	Heights       []float64
	RootFixed     bool
	LogLikelihood float64
	LogPrior      float64
}

func (t *Tree) Snapshot() *Snapshot {
	s := &Snapshot{
		Heights:       t.Heights(),
		RootFixed:     t.rootFixed,
		LogLikelihood: t.lnL,
		LogPrior:      t.lnPrior,
	}
	position := make(map[HeightID]int, len(t.index))
	for i, id := range t.index {
		position[id] = i
	}
	records := make(map[*Node]int)
	t.traverse(func(n *Node) {
		r := NodeRecord{Label: n.label, Parent: -1, Height: -1}
		if n.parent != nil {
			r.Parent = records[n.parent]
		}
		if !n.IsLeaf() {
			r.Height = position[n.height]
		}
		records[n] = len(s.Nodes)
		s.Nodes = append(s.Nodes, r)
	})
	return s
}

// load replaces the topology and heights with the snapshot's, keeping the
// options the tree was built with.
func (t *Tree) load(s *Snapshot) error {
	if len(s.Nodes) == 0 || s.Nodes[0].Parent != -1 {
		return errors.Wrap(ErrInvalidTree, "snapshot has no root")
	}
	nodes := make([]*Node, len(s.Nodes))
	cells := make([]heightCell, len(s.Heights))
	for i, v := range s.Heights {
		cells[i] = heightCell{value: v, live: true}
	}
	var leaves []*Node
	for i, r := range s.Nodes {
		n := &Node{label: r.Label, leaf: -1, height: leafHeight, tree: t}
		if r.Height >= 0 {
			if r.Height >= len(cells) {
				return errors.Wrapf(ErrHeightIndex, "snapshot node %d", i)
			}
			n.height = HeightID(r.Height)
			cells[r.Height].refs++
		}
		if i > 0 {
			if r.Parent < 0 || r.Parent >= i {
				return errors.Wrapf(ErrInvalidTree, "snapshot node %d has parent %d", i, r.Parent)
			}
			nodes[r.Parent].addChild(n)
		}
		nodes[i] = n
	}
	for _, n := range nodes {
		if n.IsLeaf() {
			leaves = append(leaves, n)
		}
	}

	t.root = nodes[0]
	t.cells = cells
	t.free = nil
	t.index = make([]HeightID, len(cells))
	for i := range cells {
		t.index[i] = HeightID(i)
	}
	t.leaves = leaves
	sortLeaves(t.leaves)
	t.rootFixed = s.RootFixed
	t.lnL = s.LogLikelihood
	t.lnPrior = s.LogPrior
	return nil
}

// FromSnapshot builds a tree from a snapshot and validates it.
func FromSnapshot(s *Snapshot, opts ...Option) (*Tree, error) {
	t := &Tree{}
	if err := t.load(s); err != nil {
		return nil, err
	}
	for _, opt := range opts {
		opt(t)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Clone returns an independent copy sharing the options of t.
func (t *Tree) Clone() *Tree {
	c := &Tree{
		rootFixed:  t.rootFixed,
		rootPrior:  t.rootPrior,
		likelihood: t.likelihood,
		ignoreData: t.ignoreData,
	}
	if err := c.load(t.Snapshot()); err != nil {
		panic(err)
	}
	return c
}

func (t *Tree) MarshalBinary() ([]byte, error) {
	var buf []byte
	enc := codec.NewEncoderBytes(&buf, msgpackHandle)
	if err := enc.Encode(t.Snapshot()); err != nil {
		return nil, errors.Wrap(err, "encode tree")
	}
	return buf, nil
}

// UnmarshalBinary replaces the state of t, keeping its options.
func (t *Tree) UnmarshalBinary(data []byte) error {
	var s Snapshot
	dec := codec.NewDecoderBytes(data, msgpackHandle)
	if err := dec.Decode(&s); err != nil {
		return errors.Wrap(err, "decode tree")
	}
	if err := t.load(&s); err != nil {
		return err
	}
	return t.Validate()
}
