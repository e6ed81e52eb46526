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

// HeightID is a handle to a height cell owned by a Tree.
type HeightID int

const leafHeight HeightID = -1

// Height is a construction handle: internal nodes assembled with the same
// *Height share one height once the tree is built.
type Height struct {
	value float64
}

func NewHeight(value float64) *Height {
	return &Height{value: value}
}

func (h *Height) Value() float64 {
	return h.value
}

// Node is a leaf or an internal node of a Tree. A parent owns its children;
// the parent pointer is a back reference.
type Node struct {
	label    string
	leaf     int
	height   HeightID
	parent   *Node
	children []*Node

	tree    *Tree
	pending *Height
}

func NewLeaf(label string) *Node {
	return &Node{label: label, leaf: 0, height: leafHeight}
}

func NewNode(label string, height *Height, children ...*Node) *Node {
	n := &Node{label: label, leaf: -1, height: leafHeight, pending: height}
	for _, c := range children {
		n.addChild(c)
	}
	return n
}

func (n *Node) addChild(c *Node) {
	c.parent = n
	n.children = append(n.children, c)
}

func (n *Node) removeChild(c *Node) int {
	for i, child := range n.children {
		if child == c {
			n.children = append(n.children[:i], n.children[i+1:]...)
			c.parent = nil
			return i
		}
	}
	return -1
}

func (n *Node) Label() string {
	return n.label
}

func (n *Node) IsLeaf() bool {
	return len(n.children) == 0
}

// LeafIndex is the position of the leaf in label order, or -1 for
// internal nodes.
func (n *Node) LeafIndex() int {
	if !n.IsLeaf() {
		return -1
	}
	return n.leaf
}

func (n *Node) Parent() *Node {
	return n.parent
}

func (n *Node) IsRoot() bool {
	return n.parent == nil
}

// Children returns the node's children. The slice must not be modified.
func (n *Node) Children() []*Node {
	return n.children
}

func (n *Node) NumberOfChildren() int {
	return len(n.children)
}

func (n *Node) Child(i int) *Node {
	return n.children[i]
}

// IsPolytomy reports whether the node has more than two children.
func (n *Node) IsPolytomy() bool {
	return len(n.children) > 2
}

// IsChild reports whether a direct child carries the label.
func (n *Node) IsChild(label string) bool {
	for _, c := range n.children {
		if c.label == label {
			return true
		}
	}
	return false
}

// Height returns the node age; leaves are at zero.
func (n *Node) Height() float64 {
	if n.height == leafHeight || n.tree == nil {
		if n.pending != nil {
			return n.pending.value
		}
		return 0
	}
	return n.tree.cells[n.height].value
}

// HeightIndex is the position of the node's height in the tree height
// index, or -1 for leaves.
func (n *Node) HeightIndex() int {
	if n.height == leafHeight || n.tree == nil {
		return -1
	}
	return n.tree.positionOf(n.height)
}

// SharesHeightWith reports whether both nodes point to the same height.
func (n *Node) SharesHeightWith(o *Node) bool {
	return n.height != leafHeight && n.height == o.height
}
