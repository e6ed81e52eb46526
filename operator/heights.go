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

	"github.com/bbva/phycoeval/rng"
	"github.com/bbva/phycoeval/tree"
)

// NodeHeightScaler scales one non-root height drawn uniformly.
type NodeHeightScaler struct {
	ScaleOp
}

func NewNodeHeightScaler(weight, scale float64, opts ...Option) *NodeHeightScaler {
	return &NodeHeightScaler{newScaleOp("NodeHeightScaler", "node heights", weight, scale, opts...)}
}

func (s *NodeHeightScaler) Propose(r *rng.Generator, t *tree.Tree) float64 {
	k := t.NumberOfNodeHeights()
	if k < 2 {
		return math.Inf(-1)
	}
	i := r.UniformInt(0, k-2)
	m, lnHR := s.Multiplier(r)
	if err := t.SetHeight(i, t.Height(i)*m); err != nil {
		return math.Inf(-1)
	}
	return lnHR
}

func (s *NodeHeightScaler) Operate(r *rng.Generator, t *tree.Tree, n int) error {
	return operate(r, t, s, n)
}

// NodeHeightMover slides one non-root height drawn uniformly.
type NodeHeightMover struct {
	WindowOp
}

func NewNodeHeightMover(weight, window float64, opts ...Option) *NodeHeightMover {
	return &NodeHeightMover{newWindowOp("NodeHeightMover", "node heights", weight, window, opts...)}
}

func (w *NodeHeightMover) Propose(r *rng.Generator, t *tree.Tree) float64 {
	k := t.NumberOfNodeHeights()
	if k < 2 {
		return math.Inf(-1)
	}
	i := r.UniformInt(0, k-2)
	a, lnHR := w.Addend(r)
	if err := t.SetHeight(i, t.Height(i)+a); err != nil {
		return math.Inf(-1)
	}
	return lnHR
}

func (w *NodeHeightMover) Operate(r *rng.Generator, t *tree.Tree, n int) error {
	return operate(r, t, w, n)
}

// RootHeightScaler scales the root height, staying above its oldest child.
type RootHeightScaler struct {
	ScaleOp
}

func NewRootHeightScaler(weight, scale float64, opts ...Option) *RootHeightScaler {
	return &RootHeightScaler{newScaleOp("RootHeightScaler", "root height", weight, scale, opts...)}
}

func (s *RootHeightScaler) Propose(r *rng.Generator, t *tree.Tree) float64 {
	if t.RootFixed() {
		return math.Inf(-1)
	}
	i := t.RootHeightIndex()
	m, lnHR := s.Multiplier(r)
	if err := t.SetHeight(i, t.Height(i)*m); err != nil {
		return math.Inf(-1)
	}
	return lnHR
}

func (s *RootHeightScaler) Operate(r *rng.Generator, t *tree.Tree, n int) error {
	return operate(r, t, s, n)
}

// TreeScaler scales every internal height by one multiplier.
type TreeScaler struct {
	ScaleOp
}

func NewTreeScaler(weight, scale float64, opts ...Option) *TreeScaler {
	return &TreeScaler{newScaleOp("TreeScaler", "tree", weight, scale, opts...)}
}

// Propose returns k ln m for k scaled heights.
func (s *TreeScaler) Propose(r *rng.Generator, t *tree.Tree) float64 {
	if t.RootFixed() {
		return math.Inf(-1)
	}
	m, lnM := s.Multiplier(r)
	if err := t.ScaleHeights(m); err != nil {
		return math.Inf(-1)
	}
	return float64(t.NumberOfNodeHeights()) * lnM
}

func (s *TreeScaler) Operate(r *rng.Generator, t *tree.Tree, n int) error {
	return operate(r, t, s, n)
}
