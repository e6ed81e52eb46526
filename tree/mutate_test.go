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

func TestMergeHeightUp(t *testing.T) {

	testCases := []struct {
		name      string
		input     string
		index     int
		heights   []float64
		signature string
		merged    int
		sizes     []int
	}{
		{
			name:      "collapse into parent",
			input:     caterpillar,
			index:     0,
			heights:   []float64{0.2, 0.4},
			signature: "{1110}{1111}",
			merged:    1,
			sizes:     []int{3},
		},
		{
			name:      "collapse into root",
			input:     caterpillar,
			index:     1,
			heights:   []float64{0.1, 0.4},
			signature: "{1100}{1111}",
			merged:    1,
			sizes:     []int{3},
		},
		{
			name:      "move to a shared height",
			input:     "((A,B)[&height=0.1],(C,D)[&height=0.2])[&height=0.3];",
			index:     0,
			heights:   []float64{0.2, 0.3},
			signature: "{0011,1100}{1111}",
			merged:    1,
		},
		{
			name:      "collapse and move",
			input:     "(((A,B)[&height_index=0,height=0.1],C)[&height_index=1,height=0.2],((D,E)[&height_index=0,height=0.1],F)[&height_index=2,height=0.3],G)[&height=0.5];",
			index:     0,
			heights:   []float64{0.2, 0.3, 0.5},
			signature: "{0001100,1110000}{0001110}{1111111}",
			merged:    2,
			sizes:     []int{3},
		},
		{
			name:      "two children of one parent",
			input:     "((A,B)[&height_index=0,height=0.1],(C,D)[&height_index=0,height=0.1])[&height=0.3];",
			index:     0,
			heights:   []float64{0.3},
			signature: "{1111}",
			merged:    1,
			sizes:     []int{4},
		},
	}

	for _, c := range testCases {
		tr := mustParse(t, c.input)
		result := tr.MergeHeightUp(c.index)
		require.NoError(t, tr.Validate(), c.name)
		require.Equal(t, c.heights, tr.Heights(), c.name)
		require.Equal(t, c.signature, tr.Signature(), c.name)
		require.Equal(t, c.merged, result.MergedNodes, c.name)
		require.Equal(t, c.sizes, result.PolytomySizes, c.name)
	}

	tr := mustParse(t, caterpillar)
	require.Panics(t, func() { tr.MergeHeightUp(2) })
}

func TestSplitSinglePolytomy(t *testing.T) {

	tr := mustParse(t, "((A,B,C)[&height_index=0,height=0.2],D)[&height_index=1,height=0.3];", WithRootFixed(true))
	require.Equal(t, []int{0}, tr.SplittableHeightIndices())
	g := rng.NewGenerator(123)

	counts := make(map[string]int)
	n := 3000
	for i := 0; i < n; i++ {
		tr.Store()
		result := tr.SplitHeightDown(g, 0)
		require.NoError(t, tr.Validate())

		require.Equal(t, 0.0, result.Lower)
		require.Equal(t, 1, result.MappedNodes)
		require.Equal(t, 1, result.SubsetSize)
		require.Equal(t, []int{3}, result.PolytomySizes)
		require.True(t, result.IncludesPolytomy)

		require.Equal(t, 3, tr.NumberOfNodeHeights())
		require.Equal(t, 0, tr.NumberOfSplittableHeights())
		require.Less(t, tr.Height(0), 0.2)
		require.Greater(t, tr.Height(0), 0.0)
		require.InDelta(t, math.Log((1/0.3)*(1/0.2)), tr.LogPriorDensity(), 1e-12)
		counts[tr.Signature()]++

		require.NoError(t, tr.Restore())
	}

	require.Len(t, counts, 3)
	for _, sig := range []string{"{1100}{1110}{1111}", "{1010}{1110}{1111}", "{0110}{1110}{1111}"} {
		require.InDelta(t, 1.0/3.0, float64(counts[sig])/float64(n), 0.03, sig)
	}
}

func TestSplitSharedBifurcations(t *testing.T) {

	tr := mustParse(t, "((A,B)[&height_index=0,height=0.1],(C,D)[&height_index=0,height=0.1])[&height_index=1,height=0.3];")
	g := rng.NewGenerator(7)

	counts := make(map[string]int)
	for i := 0; i < 1000; i++ {
		tr.Store()
		result := tr.SplitHeightDown(g, 0)
		require.NoError(t, tr.Validate())
		require.Equal(t, 2, result.MappedNodes)
		require.Equal(t, 1, result.SubsetSize)
		require.False(t, result.IncludesPolytomy)
		require.Empty(t, result.PolytomySizes)
		require.True(t, tr.InGeneralState())
		require.Equal(t, 0.1, tr.Height(1))
		counts[tr.MappedNodes(0)[0].Child(0).Label()]++
		require.NoError(t, tr.Restore())
	}
	require.InDelta(t, 500, counts["A"], 80)
	require.InDelta(t, 500, counts["C"], 80)
}

func TestSplitWithPolytomies(t *testing.T) {

	tr := mustParse(t, "((A,B,C)[&height_index=0,height=0.1],(D,E)[&height_index=0,height=0.1],F)[&height_index=1,height=0.7];")
	g := rng.NewGenerator(99)
	before := tr.Signature()

	for i := 0; i < 1000; i++ {
		tr.Store()
		result := tr.SplitHeightDown(g, 0)
		require.NoError(t, tr.Validate())
		require.Equal(t, 2, result.MappedNodes)
		require.True(t, result.IncludesPolytomy)
		require.GreaterOrEqual(t, result.SubsetSize, 1)
		require.LessOrEqual(t, len(result.PolytomySizes), 1)
		require.Equal(t, 3, tr.NumberOfNodeHeights())
		require.NotEqual(t, before, tr.Signature())

		// merging the new height back restores the model
		tr.MergeHeightUp(0)
		require.NoError(t, tr.Validate())
		require.Equal(t, before, tr.Signature())
		require.NoError(t, tr.Restore())
	}
}

func TestRandomSplitMergeWalk(t *testing.T) {

	tr, err := Comb(7, 1, WithRootFixed(true))
	require.NoError(t, err)
	g := rng.NewGenerator(2024)

	for i := 0; i < 3000; i++ {
		splittable := tr.SplittableHeightIndices()
		k := tr.NumberOfNodeHeights()
		if len(splittable) > 0 && (k == 1 || g.UniformReal() < 0.5) {
			j := splittable[g.UniformInt(0, len(splittable)-1)]
			tr.SplitHeightDown(g, j)
			require.Equal(t, k+1, tr.NumberOfNodeHeights())
		} else {
			tr.MergeHeightUp(g.UniformInt(0, k-2))
			require.Equal(t, k-1, tr.NumberOfNodeHeights())
		}
		require.NoError(t, tr.Validate())
		require.Equal(t, 1.0, tr.RootHeight())
		require.Equal(t, 7, tr.LeafCount())
	}
}
