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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bbva/phycoeval/rng"
)

const caterpillar = "(((A,B)[&height_index=0,height=0.1],C)[&height_index=1,height=0.2],D)[&height_index=2,height=0.4];"

func mustParse(t *testing.T, s string, opts ...Option) *Tree {
	t.Helper()
	tr, err := Parse(s, opts...)
	require.NoError(t, err, s)
	return tr
}

func TestNewSharesHeights(t *testing.T) {

	shared := NewHeight(0.1)
	root := NewNode("root", NewHeight(0.3),
		NewNode("", shared, NewLeaf("C"), NewLeaf("D")),
		NewNode("", shared, NewLeaf("A"), NewLeaf("B")),
	)
	tr, err := New(root)
	require.NoError(t, err)

	require.Equal(t, 4, tr.LeafCount())
	require.Equal(t, 2, tr.NumberOfNodeHeights())
	require.Equal(t, []float64{0.1, 0.3}, tr.Heights())
	require.Equal(t, 2, tr.MappedNodeCount(0))
	require.Equal(t, 1, tr.MappedNodeCount(1))
	require.True(t, tr.IsSplittable(0))
	require.False(t, tr.IsSplittable(1))
	require.Equal(t, []int{0}, tr.SplittableHeightIndices())
	require.True(t, root.Child(0).SharesHeightWith(root.Child(1)))
	require.Equal(t, 1, root.HeightIndex())

	for i, l := range tr.Leaves() {
		require.Equal(t, i, l.LeafIndex())
		require.Equal(t, string(rune('A'+i)), l.Label())
	}
	require.Equal(t, 0.1, tr.HeightOfOldestChild(1))
	require.Equal(t, 0.3, tr.HeightOfYoungestParent(0))
	require.True(t, math.IsInf(tr.HeightOfYoungestParent(1), 1))
	require.Panics(t, func() { tr.Height(2) })
}

func TestNewRejectsInvalidTrees(t *testing.T) {

	testCases := []struct {
		name string
		root func() *Node
		err  error
	}{
		{
			"duplicate leaves",
			func() *Node { return NewNode("", NewHeight(1), NewLeaf("A"), NewLeaf("A")) },
			ErrInvalidTree,
		},
		{
			"child older than parent",
			func() *Node {
				return NewNode("", NewHeight(1), NewLeaf("A"),
					NewNode("", NewHeight(2), NewLeaf("B"), NewLeaf("C")))
			},
			ErrInvalidHeight,
		},
		{
			"internal node without height",
			func() *Node { return NewNode("", nil, NewLeaf("A"), NewLeaf("B")) },
			ErrInvalidHeight,
		},
		{
			"single leaf",
			func() *Node { return NewNode("", NewHeight(1), NewLeaf("A")) },
			ErrTooFewLeaves,
		},
		{
			"root shares its height",
			func() *Node {
				h := NewHeight(1)
				return NewNode("", h, NewLeaf("A"), NewNode("", h, NewLeaf("B"), NewLeaf("C")))
			},
			ErrInvalidHeight,
		},
	}

	for _, c := range testCases {
		_, err := New(c.root())
		require.ErrorIs(t, err, c.err, c.name)
	}
}

func TestCombState(t *testing.T) {

	tr, err := Comb(4, 1.5)
	require.NoError(t, err)

	require.True(t, tr.InCombState())
	require.False(t, tr.InGeneralState())
	require.Equal(t, 1, tr.NumberOfNodeHeights())
	require.Equal(t, 1, tr.MappedPolytomyCount(0))
	require.True(t, tr.IsSplittable(0))
	require.Equal(t, 1.5, tr.RootHeight())
	require.Equal(t, "T1", tr.Leaves()[0].Label())
	require.Equal(t, "{1111}", tr.Signature())

	_, err = Comb(1, 1)
	require.ErrorIs(t, err, ErrTooFewLeaves)

	tr, err = Comb(12, 1)
	require.NoError(t, err)
	require.Equal(t, "T01", tr.Leaves()[0].Label())
	require.Equal(t, "T12", tr.Leaves()[11].Label())
}

func TestLogPriorDensity(t *testing.T) {

	tr := mustParse(t, caterpillar, WithRootFixed(true))
	require.True(t, tr.InGeneralState())
	require.InDelta(t, math.Log((1/0.4)*(1/0.2)), tr.LogPriorDensity(), 1e-12)

	prior, err := rng.NewExponential(10)
	require.NoError(t, err)
	tr = mustParse(t, caterpillar, WithRootPrior(prior))
	require.InDelta(t, math.Log(10)-10*0.4+math.Log((1/0.4)*(1/0.2)), tr.LogPriorDensity(), 1e-12)

	tr = mustParse(t, "((A,B,C)[&height_index=0,height=0.2],D)[&height_index=1,height=0.3];", WithRootFixed(true))
	require.InDelta(t, math.Log(1/0.3), tr.LogPriorDensity(), 1e-12)

	tr, err = Comb(5, 2, WithRootFixed(true))
	require.NoError(t, err)
	require.Equal(t, 0.0, tr.LogPriorDensity())
}

func TestComputeLogLikelihoodAndPrior(t *testing.T) {

	calls := 0
	lnL := LikelihoodFunc(func(tr *Tree) (float64, error) {
		calls++
		return -tr.RootHeight(), nil
	})

	tr := mustParse(t, caterpillar, WithRootFixed(true), WithLikelihood(lnL))
	require.NoError(t, tr.ComputeLogLikelihoodAndPrior())
	require.Equal(t, -0.4, tr.LogLikelihood())
	require.Equal(t, 1, calls)
	require.InDelta(t, tr.LogPriorDensity(), tr.LogPrior(), 1e-12)

	tr = mustParse(t, caterpillar, WithRootFixed(true), WithLikelihood(lnL), IgnoreData(true))
	require.NoError(t, tr.ComputeLogLikelihoodAndPrior())
	require.Equal(t, 0.0, tr.LogLikelihood())
	require.Equal(t, 1, calls)
}

func TestSetHeight(t *testing.T) {

	testCases := []struct {
		index int
		value float64
		err   error
	}{
		{0, 0.15, nil},
		{0, 0.05, nil},
		{0, 0.2, ErrInvalidHeight},
		{0, 0, ErrInvalidHeight},
		{1, 0.1, ErrInvalidHeight},
		{1, 0.39, nil},
		{2, 0.5, ErrFixedRoot},
	}

	for _, c := range testCases {
		tr := mustParse(t, caterpillar, WithRootFixed(true))
		err := tr.SetHeight(c.index, c.value)
		if c.err != nil {
			require.ErrorIs(t, err, c.err, "index %d value %v", c.index, c.value)
			continue
		}
		require.NoError(t, err)
		require.Equal(t, c.value, tr.Height(c.index))
		require.NoError(t, tr.Validate())
	}

	tr := mustParse(t, caterpillar)
	require.NoError(t, tr.SetHeight(2, 1))
	require.Equal(t, 1.0, tr.RootHeight())
}

func TestSetHeightResortsSharedHeights(t *testing.T) {

	tr := mustParse(t, "((A,B)[&height_index=0,height=0.1],(C,D)[&height_index=1,height=0.2])[&height_index=2,height=0.3];")
	require.NoError(t, tr.SetHeight(0, 0.25))
	require.Equal(t, []float64{0.2, 0.25, 0.3}, tr.Heights())
	require.Equal(t, "C", tr.MappedNodes(0)[0].Child(0).Label())
	require.NoError(t, tr.Validate())
}

func TestScaleHeights(t *testing.T) {

	tr := mustParse(t, caterpillar)
	require.NoError(t, tr.ScaleHeights(2))
	require.InDeltaSlice(t, []float64{0.2, 0.4, 0.8}, tr.Heights(), 1e-12)

	tr = mustParse(t, caterpillar, WithRootFixed(true))
	require.ErrorIs(t, tr.ScaleHeights(2), ErrFixedRoot)
	require.Equal(t, 0.4, tr.RootHeight())
}

func TestSnapshotRoundTrip(t *testing.T) {

	tr := mustParse(t, "((A,B,C)[&height_index=0,height=0.1],(D,E)[&height_index=0,height=0.1],F)[&height_index=1,height=0.7];", WithRootFixed(true))
	require.NoError(t, tr.ComputeLogLikelihoodAndPrior())

	data, err := tr.MarshalBinary()
	require.NoError(t, err)

	other := mustParse(t, caterpillar, WithRootFixed(true))
	require.NoError(t, other.UnmarshalBinary(data))
	require.Equal(t, tr.Signature(), other.Signature())
	require.Equal(t, tr.Heights(), other.Heights())
	require.Equal(t, tr.String(), other.String())
	require.Equal(t, tr.LogPrior(), other.LogPrior())
	require.Equal(t, 6, other.LeafCount())

	fresh, err := FromSnapshot(tr.Snapshot())
	require.NoError(t, err)
	require.Equal(t, tr.String(), fresh.String())

	clone := tr.Clone()
	require.NoError(t, clone.SetHeight(0, 0.2))
	require.Equal(t, 0.1, tr.Height(0))

	require.Error(t, other.UnmarshalBinary([]byte{0xc1}))
}

func TestStoreRestore(t *testing.T) {

	tr := mustParse(t, caterpillar, WithRootFixed(true))
	require.ErrorIs(t, tr.Restore(), ErrNoSnapshot)

	require.NoError(t, tr.ComputeLogLikelihoodAndPrior())
	before := tr.String()
	prior := tr.LogPrior()
	tr.Store()

	tr.MergeHeightUp(0)
	require.NoError(t, tr.ComputeLogLikelihoodAndPrior())
	require.NotEqual(t, before, tr.String())
	require.Equal(t, prior, tr.StoredLogPrior())

	require.NoError(t, tr.Restore())
	require.Equal(t, before, tr.String())
	require.Equal(t, prior, tr.LogPrior())
	require.NoError(t, tr.Validate())
}
