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
	"github.com/pkg/errors"
)

// Validate checks the structural invariants of the tree: parent and child
// links agree, internal nodes have at least two children and are older
// than them, the height index is strictly increasing with every height
// mapped, and the root alone holds the oldest height.
func (t *Tree) Validate() error {
	if t.root == nil || t.root.parent != nil {
		return errors.Wrap(ErrInvalidTree, "missing root")
	}
	if t.root.IsLeaf() {
		return errors.Wrap(ErrInvalidTree, "root is a leaf")
	}

	refs := make(map[HeightID]int)
	leaves := 0
	var err error
	t.traverse(func(n *Node) {
		if err != nil {
			return
		}
		if n.IsLeaf() {
			leaves++
			if n.height != leafHeight {
				err = errors.Wrapf(ErrInvalidHeight, "leaf %q has an internal height", n.label)
			}
			return
		}
		if len(n.children) < 2 {
			err = errors.Wrapf(ErrInvalidTree, "internal node %q has %d children", n.label, len(n.children))
			return
		}
		if n.height < 0 || int(n.height) >= len(t.cells) || !t.cells[n.height].live {
			err = errors.Wrapf(ErrInvalidHeight, "internal node %q points to a dead height", n.label)
			return
		}
		refs[n.height]++
		h := n.Height()
		for _, c := range n.children {
			if c.parent != n {
				err = errors.Wrapf(ErrInvalidTree, "child %q does not point to its parent", c.label)
				return
			}
			if !(c.Height() < h) {
				err = errors.Wrapf(ErrInvalidHeight, "child %q is not younger than its parent", c.label)
				return
			}
		}
	})
	if err != nil {
		return err
	}

	if leaves != len(t.leaves) {
		return errors.Wrapf(ErrInvalidTree, "%d leaves reachable, %d indexed", leaves, len(t.leaves))
	}
	for i := 1; i < len(t.leaves); i++ {
		if t.leaves[i-1].label == t.leaves[i].label {
			return errors.Wrapf(ErrInvalidTree, "duplicate leaf label %q", t.leaves[i].label)
		}
	}

	if len(refs) != len(t.index) {
		return errors.Wrapf(ErrHeightIndex, "%d heights mapped, %d indexed", len(refs), len(t.index))
	}
	for i, id := range t.index {
		if refs[id] == 0 {
			return errors.Wrapf(ErrHeightIndex, "height %d is not mapped", i)
		}
		if refs[id] != t.cells[id].refs {
			return errors.Wrapf(ErrHeightIndex, "height %d counts %d nodes, %d found", i, t.cells[id].refs, refs[id])
		}
		if i > 0 && !(t.cells[t.index[i-1]].value < t.cells[id].value) {
			return errors.Wrapf(ErrInvalidHeight, "heights %d and %d are not increasing", i-1, i)
		}
	}
	if !(t.cells[t.index[0]].value > 0) {
		return errors.Wrap(ErrInvalidHeight, "youngest height is not positive")
	}
	if t.index[len(t.index)-1] != t.root.height || refs[t.root.height] != 1 {
		return errors.Wrap(ErrHeightIndex, "the root must hold the oldest height alone")
	}
	return nil
}
