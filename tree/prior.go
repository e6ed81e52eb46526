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
)

// Likelihood scores a tree against data.
type Likelihood interface {
	LogLikelihood(t *Tree) (float64, error)
}

// LikelihoodFunc adapts a function to the Likelihood interface.
type LikelihoodFunc func(t *Tree) (float64, error)

func (f LikelihoodFunc) LogLikelihood(t *Tree) (float64, error) {
	return f(t)
}

// LogPriorDensity is the log density of the heights: the root prior,
// unless the root is fixed, plus for every other height a uniform density
// between zero and the youngest parent of its nodes.
func (t *Tree) LogPriorDensity() float64 {
	d := 0.0
	if !t.rootFixed && t.rootPrior != nil {
		d += t.rootPrior.LnPDF(t.RootHeight())
	}

	youngest := make(map[HeightID]float64, len(t.index))
	t.traverse(func(n *Node) {
		if n.IsLeaf() || n.parent == nil {
			return
		}
		h := n.parent.Height()
		if y, ok := youngest[n.height]; !ok || h < y {
			youngest[n.height] = h
		}
	})
	for _, id := range t.index[:len(t.index)-1] {
		d -= math.Log(youngest[id])
	}
	return d
}

// ComputeLogLikelihoodAndPrior refreshes the cached posterior terms.
func (t *Tree) ComputeLogLikelihoodAndPrior() error {
	t.lnPrior = t.LogPriorDensity()
	if t.ignoreData || t.likelihood == nil {
		t.lnL = 0
		return nil
	}
	lnL, err := t.likelihood.LogLikelihood(t)
	if err != nil {
		return errors.Wrap(err, "log likelihood")
	}
	t.lnL = lnL
	return nil
}

// Store saves the topology, heights and posterior terms so a rejected
// move can be undone.
func (t *Tree) Store() {
	t.stored = t.Snapshot()
}

// Restore brings back the state saved by the last Store.
func (t *Tree) Restore() error {
	if t.stored == nil {
		return ErrNoSnapshot
	}
	return t.load(t.stored)
}

// StoredLogLikelihood is the log likelihood saved by the last Store.
func (t *Tree) StoredLogLikelihood() float64 {
	if t.stored == nil {
		return t.lnL
	}
	return t.stored.LogLikelihood
}

func (t *Tree) StoredLogPrior() float64 {
	if t.stored == nil {
		return t.lnPrior
	}
	return t.stored.LogPrior
}
