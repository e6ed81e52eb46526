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

package mcmc

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bbva/phycoeval/log"
	"github.com/bbva/phycoeval/operator"
	"github.com/bbva/phycoeval/tree"
)

func testConfig() *Config {
	conf := DefaultConfig()
	conf.Log = "error"
	conf.Leaves = 3
	conf.Seed = 42
	conf.Iterations = 2000
	conf.SampleFrequency = 10
	conf.TreeLog = ""
	return conf
}

func testLogger() log.Logger {
	return log.New(&log.LoggerOptions{Level: log.Error, Output: &bytes.Buffer{}})
}

func TestTopologyTally(t *testing.T) {

	tally := NewTopologyTally()
	for _, s := range []string{
		"((A,B)[&height=0.1],C)[&height=1];",
		"((B,A)[&height=0.4],C)[&height=1];",
		"(A,B,C)[&height=1];",
		"((A,C)[&height=0.3],B)[&height=2];",
	} {
		tr, err := tree.Parse(s)
		require.NoError(t, err)
		tally.Add(tr)
	}

	require.Equal(t, 4, tally.Total())
	require.Equal(t, 3, tally.Len())
	require.Equal(t, 2, tally.Count("{110}{111}"))
	require.Equal(t, 0.5, tally.Frequency("{110}{111}"))
	require.Equal(t, 0.0, tally.Frequency("{011}{111}"))

	models := tally.Models()
	require.Len(t, models, 3)
	require.Equal(t, ModelFrequency{Signature: "{110}{111}", Heights: 2, Count: 2, Frequency: 0.5}, models[0])
	require.Equal(t, "{101}{111}", models[1].Signature)
	require.Equal(t, "{111}", models[2].Signature)
	require.Equal(t, map[int]float64{1: 0.25, 2: 0.75}, tally.HeightCountFrequencies())

	mean, variance := tally.RootHeightMeanVariance()
	require.InDelta(t, 1.25, mean, 1e-12)
	require.InDelta(t, 0.25, variance, 1e-12)

	var buf bytes.Buffer
	require.NoError(t, tally.Write(&buf))
	require.True(t, strings.HasPrefix(buf.String(), "count\tfrequency\theights\tsignature\n2\t0.500000\t2\t{110}{111}\n"))
	require.Contains(t, buf.String(), "heights\tcount\tfrequency\n1\t1\t0.250000\n2\t3\t0.750000\n")
}

func TestReadTreeLog(t *testing.T) {

	input := "# run test\n((A,B)[&height=0.1],C)[&height=1];\n\n(A,B,C)[&height=1];\n"
	tally := NewTopologyTally()
	require.NoError(t, tally.ReadTreeLog(strings.NewReader(input), 0))
	require.Equal(t, 2, tally.Total())

	burnt := NewTopologyTally()
	require.NoError(t, burnt.ReadTreeLog(strings.NewReader(input), 1))
	require.Equal(t, 1, burnt.Total())
	require.Equal(t, 1, burnt.Count("{111}"))

	err := NewTopologyTally().ReadTreeLog(strings.NewReader("(A,B\n"), 0)
	require.ErrorIs(t, err, tree.ErrParse)
}

func TestChainSamplesModels(t *testing.T) {

	conf := testConfig()
	conf.Iterations = 60000
	conf.HeightMovesPerJump = 1
	tally := NewTopologyTally()
	var trees bytes.Buffer
	logWriter := NewTreeLogWriter(&trees)

	chain, err := NewChain(conf, WithSampler(tally), WithSampler(logWriter), WithLogger(testLogger()))
	require.NoError(t, err)
	require.NoError(t, chain.Run(context.Background()))
	require.NoError(t, logWriter.Flush())

	require.Equal(t, conf.Iterations, chain.Iteration())
	require.Equal(t, conf.Iterations/conf.SampleFrequency+1, tally.Total())
	require.Equal(t, 4, tally.Len())
	for _, m := range tally.Models() {
		require.InDelta(t, 0.25, m.Frequency, 0.04, m.Signature)
	}

	lines := strings.Split(strings.TrimSpace(trees.String()), "\n")
	require.Equal(t, "# run "+chain.ID(), lines[0])
	require.Len(t, lines, tally.Total()+1)

	reread := NewTopologyTally()
	require.NoError(t, reread.ReadTreeLog(strings.NewReader(trees.String()), 0))
	require.Equal(t, tally.Models(), reread.Models())
}

func TestChainStopsOnCancel(t *testing.T) {

	chain, err := NewChain(testConfig(), WithLogger(testLogger()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, chain.Run(ctx), context.Canceled)
	require.Equal(t, 0, chain.Iteration())
}

func TestNewChainErrors(t *testing.T) {

	testCases := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"bad prior", func(c *Config) { c.RootPrior = "cauchy:1" }},
		{"free root without prior", func(c *Config) { c.FixRoot = false }},
		{"bad tree", func(c *Config) { c.Tree = "((A,B),C);" }},
		{"two leaves", func(c *Config) { c.Tree = "(A,B)[&height=1];" }},
		{"invalid config", func(c *Config) { c.SampleFrequency = 0 }},
	}

	for _, c := range testCases {
		conf := testConfig()
		c.mutate(conf)
		_, err := NewChain(conf, WithLogger(testLogger()))
		require.Error(t, err, c.name)
	}
}

func TestCheckpointResume(t *testing.T) {

	dir := t.TempDir()
	conf := testConfig()
	conf.Leaves = 6
	conf.FixRoot = false
	conf.RootPrior = "exponential:1"
	conf.RootHeightScalerWeight = 1
	conf.TreeScalerWeight = 1
	conf.AutoOptimizeDelay = 100
	conf.Iterations = 1000

	straight, err := NewChain(conf, WithLogger(testLogger()))
	require.NoError(t, err)
	require.NoError(t, straight.Run(context.Background()))

	half := *conf
	half.Iterations = 500
	half.Checkpoint = filepath.Join(dir, "chain.ckp")
	first, err := NewChain(&half, WithLogger(testLogger()))
	require.NoError(t, err)
	require.NoError(t, first.Run(context.Background()))

	cp, err := ReadCheckpoint(half.Checkpoint)
	require.NoError(t, err)
	require.Equal(t, 500, cp.Iteration)
	require.Equal(t, first.ID(), cp.RunID)
	require.Equal(t, uint64(42), cp.Seed)

	second, err := NewChain(conf, WithLogger(testLogger()))
	require.NoError(t, err)
	require.NoError(t, second.Resume(cp))
	require.Equal(t, first.ID(), second.ID())
	require.NoError(t, second.Run(context.Background()))

	require.Equal(t, straight.Tree().String(), second.Tree().String())
	require.Equal(t, straight.Schedule().Tallies(), second.Schedule().Tallies())

	_, err = ReadCheckpoint(filepath.Join(dir, "missing"))
	require.Error(t, err)
}

func TestChainRecoversInvariantPanics(t *testing.T) {

	conf := testConfig()
	chain, err := NewChain(conf, WithLogger(testLogger()))
	require.NoError(t, err)

	broken := tree.LikelihoodFunc(func(*tree.Tree) (float64, error) {
		panic(operator.ErrInvariant)
	})
	chain.tree, err = tree.Comb(3, 1, tree.WithRootFixed(true), tree.WithLikelihood(broken))
	require.NoError(t, err)
	require.ErrorIs(t, chain.Run(context.Background()), operator.ErrInvariant)
}
