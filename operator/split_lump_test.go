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
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bbva/phycoeval/rng"
	"github.com/bbva/phycoeval/tree"
)

type outcome struct {
	lnHR float64
	freq float64
}

func TestSplitLumpProposals(t *testing.T) {

	testCases := []struct {
		name       string
		input      string
		outcomes   map[string]outcome
		heights    int
		splittable int
	}{
		{
			name:  "three leaves merge to the comb",
			input: "((A,B)[&height=0.1],C)[&height=0.3];",
			outcomes: map[string]outcome{
				"{111}": {math.Log(1 / (3 * 0.3)), 1},
			},
			heights:    1,
			splittable: 1,
		},
		{
			name:  "three leaves split from the comb",
			input: "(A,B,C)[&height=0.3];",
			outcomes: map[string]outcome{
				"{110}{111}": {math.Log(3 * 0.3), 1.0 / 3},
				"{101}{111}": {math.Log(3 * 0.3), 1.0 / 3},
				"{011}{111}": {math.Log(3 * 0.3), 1.0 / 3},
			},
			heights:    2,
			splittable: 0,
		},
		{
			name:  "caterpillar merges",
			input: "(((A,B)[&height=0.1],C)[&height=0.2],D)[&height=0.4];",
			outcomes: map[string]outcome{
				"{1110}{1111}": {math.Log(1 / (3 * 0.2)), 0.5},
				"{1100}{1111}": {math.Log(1 / (3 * 0.3)), 0.5},
			},
			heights:    2,
			splittable: 1,
		},
		{
			name:  "internal polytomy splits or merges",
			input: "((A,B,C)[&height=0.2],D)[&height=0.3];",
			outcomes: map[string]outcome{
				"{1100}{1110}{1111}": {math.Log(3 * 0.2), 1.0 / 6},
				"{1010}{1110}{1111}": {math.Log(3 * 0.2), 1.0 / 6},
				"{0110}{1110}{1111}": {math.Log(3 * 0.2), 1.0 / 6},
				"{1111}":             {math.Log(2 / (13 * 0.3)), 0.5},
			},
			heights:    -1,
			splittable: -1,
		},
	}

	for _, c := range testCases {
		tr := mustParse(t, c.input, tree.WithRootFixed(true), tree.IgnoreData(true))
		root := tr.RootHeight()
		op := NewSplitLump(1)
		g := rng.NewGenerator(31)
		counts := make(map[string]int)
		n := 6000
		for i := 0; i < n; i++ {
			tr.Store()
			lnHR := op.Propose(g, tr)
			require.NoError(t, tr.Validate(), c.name)
			require.Equal(t, root, tr.RootHeight(), c.name)

			sig := tr.Signature()
			expected, ok := c.outcomes[sig]
			require.True(t, ok, "%s: unexpected model %s", c.name, sig)
			require.InDelta(t, expected.lnHR, lnHR, 1e-8, c.name)
			if c.heights >= 0 {
				require.Equal(t, c.heights, tr.NumberOfNodeHeights(), c.name)
				require.Equal(t, c.splittable, tr.NumberOfSplittableHeights(), c.name)
			}
			counts[sig]++
			require.NoError(t, tr.Restore())
		}
		for sig, o := range c.outcomes {
			require.InDelta(t, o.freq, float64(counts[sig])/float64(n), 0.025, "%s: %s", c.name, sig)
		}
	}
}

func TestSplitFourLeafComb(t *testing.T) {

	tr := mustParse(t, "(A,B,C,D)[&height=1.7];", tree.WithRootFixed(true))
	op := NewSplitLump(1)
	g := rng.NewGenerator(8)
	counts := make(map[string]int)
	n := 13000
	for i := 0; i < n; i++ {
		tr.Store()
		lnHR := op.Propose(g, tr)
		require.InDelta(t, math.Log(13*1.7/2), lnHR, 1e-8)
		require.Equal(t, 2, tr.NumberOfNodeHeights())
		counts[tr.Signature()]++
		require.NoError(t, tr.Restore())
	}
	require.Len(t, counts, 13)
	for sig, count := range counts {
		require.InDelta(t, 1.0/13, float64(count)/float64(n), 0.02, sig)
	}
}

func TestSplitThenMergeCancels(t *testing.T) {

	tr, err := tree.Comb(7, 1, tree.WithRootFixed(true), tree.IgnoreData(true))
	require.NoError(t, err)
	require.NoError(t, tr.ComputeLogLikelihoodAndPrior())
	op := NewSplitLump(1, WithAutoOptimize(false))
	g := rng.NewGenerator(77)

	checked := 0
	for step := 0; step < 300; step++ {
		_, err := PerformMove(g, tr, op)
		require.NoError(t, err)

		splittable := tr.SplittableHeightIndices()
		for _, i := range splittable {
			c := tr.Clone()
			lnSplit := op.splitAt(g, c, i, len(splittable))
			require.NoError(t, c.Validate())
			lnMerge := op.mergeAt(c, i)
			require.NoError(t, c.Validate())

			require.Equal(t, tr.Signature(), c.Signature())
			require.InDelta(t, 0, lnSplit+lnMerge, 1e-9, "split %d of %s", i, tr)
			checked++
		}
	}
	require.Greater(t, checked, 300)
}

func TestSplitLumpNeedsThreeLeaves(t *testing.T) {

	tr := mustParse(t, "(A,B)[&height=1];")
	op := NewSplitLump(1)
	require.Panics(t, func() { op.Propose(rng.NewGenerator(1), tr) })
}

func sampleModels(t *testing.T, input string, n int) map[string]int {
	tr := mustParse(t, input, tree.WithRootFixed(true), tree.IgnoreData(true))
	op := NewSplitLump(1, WithAutoOptimize(false))
	g := rng.NewGenerator(2019)
	counts := make(map[string]int)
	for i := 0; i < n; i++ {
		if _, err := PerformMove(g, tr, op); err != nil {
			require.NoError(t, err)
		}
		counts[tr.Signature()]++
	}
	return counts
}

func TestSplitLumpSamplesModelsUniformly(t *testing.T) {

	n := 40000
	counts := sampleModels(t, "((A,B)[&height=0.5],C)[&height=1];", n)
	require.Len(t, counts, 4)
	for sig, count := range counts {
		require.InDelta(t, 0.25, float64(count)/float64(n), 0.02, sig)
	}

	if testing.Short() {
		t.Skip("skipping four leaf model frequencies in short mode")
	}

	n = 300000
	counts = sampleModels(t, "(A,B,C,D)[&height=1];", n)
	require.Len(t, counts, 29)
	byHeights := make(map[int]int)
	for sig, count := range counts {
		require.InDelta(t, 1.0/29, float64(count)/float64(n), 0.01, sig)
		byHeights[strings.Count(sig, "{")] += count
	}
	require.InDelta(t, 13.0/29, float64(byHeights[2])/float64(n), 0.02)
	require.InDelta(t, 15.0/29, float64(byHeights[3])/float64(n), 0.02)
	require.InDelta(t, 1.0/29, float64(byHeights[1])/float64(n), 0.01)
}

func TestSplitLumpSamplesFiveLeafModels(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping five leaf model frequencies in short mode")
	}

	n := 2000000
	counts := sampleModels(t, "(A,B,C,D,E)[&height=1];", n)
	require.Len(t, counts, 336)
	for sig, count := range counts {
		require.InDelta(t, 1.0/336, float64(count)/float64(n), 0.001, sig)
	}
}
