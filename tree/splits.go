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
	"sort"
	"strings"
)

// Split is the set of leaves below a node, as a bit per leaf index.
type Split struct {
	bits []uint64
	n    int
}

func newSplit(n int) Split {
	return Split{bits: make([]uint64, (n+63)/64), n: n}
}

func (s Split) set(i int) {
	s.bits[i/64] |= 1 << uint(i%64)
}

func (s Split) union(o Split) {
	for i := range s.bits {
		s.bits[i] |= o.bits[i]
	}
}

func (s Split) Has(i int) bool {
	return s.bits[i/64]&(1<<uint(i%64)) != 0
}

func (s Split) Len() int {
	count := 0
	for i := 0; i < s.n; i++ {
		if s.Has(i) {
			count++
		}
	}
	return count
}

// String renders one character per leaf index, '1' for leaves in the split.
func (s Split) String() string {
	var b strings.Builder
	b.Grow(s.n)
	for i := 0; i < s.n; i++ {
		if s.Has(i) {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return b.String()
}

// clades computes the split of every node bottom-up.
func (t *Tree) clades() map[*Node]Split {
	nodes := t.Nodes()
	splits := make(map[*Node]Split, len(nodes))
	for i := len(nodes) - 1; i >= 0; i-- {
		n := nodes[i]
		s := newSplit(len(t.leaves))
		if n.IsLeaf() {
			s.set(n.leaf)
		} else {
			for _, c := range n.children {
				s.union(splits[c])
			}
		}
		splits[n] = s
	}
	return splits
}

// Splits returns, for each height youngest first, the rendered splits of
// the nodes mapped to it in sorted order.
func (t *Tree) Splits() [][]string {
	clades := t.clades()
	position := make(map[HeightID]int, len(t.index))
	for i, id := range t.index {
		position[id] = i
	}
	groups := make([][]string, len(t.index))
	t.traverse(func(n *Node) {
		if n.IsLeaf() {
			return
		}
		i := position[n.height]
		groups[i] = append(groups[i], clades[n].String())
	})
	for _, g := range groups {
		sort.Strings(g)
	}
	return groups
}

// Signature identifies the topology together with the grouping of nodes
// into shared heights, ignoring the height values and child order.
func (t *Tree) Signature() string {
	groups := t.Splits()
	rendered := make([]string, len(groups))
	for i, g := range groups {
		rendered[i] = "{" + strings.Join(g, ",") + "}"
	}
	sort.Strings(rendered)
	return strings.Join(rendered, "")
}
