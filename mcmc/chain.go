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

// Package mcmc drives Markov chains over trees with shared node heights.
package mcmc

import (
	"context"
	"fmt"
	"time"

	"github.com/pborman/uuid"
	"github.com/pkg/errors"

	"github.com/bbva/phycoeval/log"
	"github.com/bbva/phycoeval/metrics"
	"github.com/bbva/phycoeval/operator"
	"github.com/bbva/phycoeval/rng"
	"github.com/bbva/phycoeval/tree"
)

// Chain runs one sequential MCMC over a tree.
type Chain struct {
	id        string
	conf      Config
	tree      *tree.Tree
	gen       *rng.Generator
	schedule  *operator.Schedule
	samplers  []Sampler
	iteration int

	log log.Logger
}

type ChainOption func(*chainOptions)

type chainOptions struct {
	likelihood tree.Likelihood
	samplers   []Sampler
	logger     log.Logger
}

// WithLikelihood scores trees against data; without it the chain samples
// from the prior.
func WithLikelihood(l tree.Likelihood) ChainOption {
	return func(o *chainOptions) {
		o.likelihood = l
	}
}

func WithSampler(s Sampler) ChainOption {
	return func(o *chainOptions) {
		o.samplers = append(o.samplers, s)
	}
}

func WithLogger(l log.Logger) ChainOption {
	return func(o *chainOptions) {
		o.logger = l
	}
}

func NewChain(conf *Config, opts ...ChainOption) (*Chain, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	o := &chainOptions{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = log.L()
	}

	treeOpts := []tree.Option{
		tree.WithRootFixed(conf.FixRoot),
		tree.WithLikelihood(o.likelihood),
		tree.IgnoreData(o.likelihood == nil),
	}
	if conf.RootPrior != "" {
		prior, err := rng.ParseDistribution(conf.RootPrior)
		if err != nil {
			return nil, errors.Wrap(err, "root prior")
		}
		treeOpts = append(treeOpts, tree.WithRootPrior(prior))
	} else if !conf.FixRoot {
		return nil, errors.Wrap(ErrConfig, "a free root height needs a root prior")
	}

	var t *tree.Tree
	var err error
	if conf.Tree != "" {
		t, err = tree.Parse(conf.Tree, treeOpts...)
	} else {
		t, err = tree.Comb(conf.Leaves, conf.RootHeight, treeOpts...)
	}
	if err != nil {
		return nil, errors.Wrap(err, "starting tree")
	}
	if t.LeafCount() < 3 && conf.SplitLumpWeight > 0 {
		return nil, errors.Wrapf(tree.ErrTooFewLeaves, "split-lump needs 3 leaves, tree has %d", t.LeafCount())
	}

	seed := conf.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	id := uuid.New()
	c := &Chain{
		id:       id,
		conf:     *conf,
		tree:     t,
		gen:      rng.NewGenerator(seed),
		samplers: o.samplers,
		log:      o.logger.Named("chain"),
	}
	c.schedule = c.buildSchedule()
	c.log.Infof("Chain %s built with seed %d, %d leaves and %d operators",
		id, seed, t.LeafCount(), len(c.schedule.Operators()))
	return c, nil
}

func (c *Chain) buildSchedule() *operator.Schedule {
	opts := []operator.Option{
		operator.WithAutoOptimize(c.conf.AutoOptimize),
		operator.WithAutoOptimizeDelay(c.conf.AutoOptimizeDelay),
		operator.WithLogger(c.log),
	}
	return operator.NewSchedule(
		operator.NewSplitLump(c.conf.SplitLumpWeight, opts...),
		operator.NewNodeHeightScaler(c.conf.NodeHeightScalerWeight, c.conf.Scale, opts...),
		operator.NewNodeHeightMover(c.conf.NodeHeightMoverWeight, c.conf.Window, opts...),
		operator.NewRootHeightScaler(c.conf.RootHeightScalerWeight, c.conf.Scale, opts...),
		operator.NewTreeScaler(c.conf.TreeScalerWeight, c.conf.Scale, opts...),
	)
}

func (c *Chain) ID() string {
	return c.id
}

func (c *Chain) Tree() *tree.Tree {
	return c.tree
}

func (c *Chain) Schedule() *operator.Schedule {
	return c.schedule
}

func (c *Chain) Iteration() int {
	return c.iteration
}

// Run iterates until the configured number of iterations or until ctx is
// done. Invariant violations detected by the operators come back as
// errors wrapping operator.ErrInvariant.
func (c *Chain) Run(ctx context.Context) (err error) {
	metrics.PhycoevalChainsCount.Inc()
	defer metrics.PhycoevalChainsCount.Dec()
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = errors.Wrapf(e, "chain %s at iteration %d", c.id, c.iteration)
			} else {
				err = errors.Wrapf(operator.ErrInvariant, "chain %s at iteration %d: %v", c.id, c.iteration, r)
			}
			c.log.Errorf("Chain failed: %v", err)
		}
	}()

	if err := c.tree.ComputeLogLikelihoodAndPrior(); err != nil {
		return errors.Wrap(err, "initial state")
	}
	if c.iteration == 0 {
		if err := c.sample(); err != nil {
			return err
		}
	}

	c.log.Infof("Running chain %s from iteration %d to %d", c.id, c.iteration, c.conf.Iterations)
	debug := c.log.IsEnabled(log.Debug)
	rj := c.schedule.SplitLump()
	heightOps := c.schedule.NodeHeightOperators()

	for c.iteration < c.conf.Iterations {
		select {
		case <-ctx.Done():
			c.log.Infof("Chain %s stopped at iteration %d", c.id, c.iteration)
			return ctx.Err()
		default:
		}

		start := time.Now()
		op := c.schedule.Draw(c.gen)
		if op == operator.Operator(rj) && c.conf.HeightMovesPerJump > 0 {
			err = rj.OperatePlus(c.gen, c.tree, heightOps, 1, c.conf.HeightMovesPerJump)
		} else {
			_, err = operator.PerformMove(c.gen, c.tree, op)
		}
		if err != nil {
			return errors.Wrapf(err, "iteration %d", c.iteration)
		}
		c.iteration++

		if debug {
			if err := c.tree.Validate(); err != nil {
				return errors.Wrapf(operator.ErrInvariant, "after %s at iteration %d: %v", op.Name(), c.iteration, err)
			}
		}

		metrics.PhycoevalChainIterationsTotal.Inc()
		metrics.PhycoevalChainIterationDurationSeconds.Observe(time.Since(start).Seconds())

		if c.iteration%c.conf.SampleFrequency == 0 {
			if err := c.sample(); err != nil {
				return err
			}
		}
		if c.conf.Checkpoint != "" && c.conf.CheckpointFrequency > 0 && c.iteration%c.conf.CheckpointFrequency == 0 {
			if err := c.WriteCheckpoint(c.conf.Checkpoint); err != nil {
				return err
			}
		}
	}

	if c.conf.Checkpoint != "" {
		if err := c.WriteCheckpoint(c.conf.Checkpoint); err != nil {
			return err
		}
	}
	c.log.Infof("Chain %s finished %d iterations", c.id, c.iteration)
	return nil
}

func (c *Chain) sample() error {
	s := &Sample{
		RunID:         c.id,
		Iteration:     c.iteration,
		Tree:          c.tree,
		LogLikelihood: c.tree.LogLikelihood(),
		LogPrior:      c.tree.LogPrior(),
	}
	for _, sampler := range c.samplers {
		if err := sampler.Sample(s); err != nil {
			return errors.Wrapf(err, "sample at iteration %d", c.iteration)
		}
	}

	metrics.PhycoevalChainSamplesTotal.Inc()
	metrics.PhycoevalTreeNodeHeightsCount.Set(float64(c.tree.NumberOfNodeHeights()))
	metrics.PhycoevalTreeRootHeight.Set(c.tree.RootHeight())
	metrics.PhycoevalTreeLogPosterior.Set(s.LogLikelihood + s.LogPrior)
	metrics.Chain.Set(c.id, metrics.Uint64ToVar(c.iteration))

	c.log.Debugf("iteration %d: %d heights, ln likelihood %v, ln prior %v",
		c.iteration, c.tree.NumberOfNodeHeights(), s.LogLikelihood, s.LogPrior)
	return nil
}

// Checkpoint captures the chain state.
func (c *Chain) Checkpoint() (*Checkpoint, error) {
	gen, err := c.gen.MarshalBinary()
	if err != nil {
		return nil, err
	}
	t, err := c.tree.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return &Checkpoint{
		RunID:     c.id,
		Iteration: c.iteration,
		Seed:      c.gen.Seed(),
		Generator: gen,
		Tree:      t,
		Operators: c.schedule.Tallies(),
	}, nil
}

func (c *Chain) WriteCheckpoint(path string) error {
	cp, err := c.Checkpoint()
	if err != nil {
		return err
	}
	if err := WriteCheckpoint(path, cp); err != nil {
		return err
	}
	c.log.Debugf("Checkpoint written to %s at iteration %d", path, c.iteration)
	return nil
}

// Resume continues from cp: the run id, iteration, random stream, tree and
// operator tallies are all taken from it.
func (c *Chain) Resume(cp *Checkpoint) error {
	if err := c.tree.UnmarshalBinary(cp.Tree); err != nil {
		return errors.Wrap(err, "resume tree")
	}
	c.tree.FixRoot(c.conf.FixRoot)
	gen := rng.NewGenerator(cp.Seed)
	if err := gen.UnmarshalBinary(cp.Generator); err != nil {
		return errors.Wrap(err, "resume generator")
	}
	if err := c.schedule.RestoreTallies(cp.Operators); err != nil {
		return errors.Wrap(err, "resume operators")
	}
	c.gen = gen
	c.id = cp.RunID
	c.iteration = cp.Iteration
	c.log.Infof("Resumed chain %s at iteration %d", c.id, c.iteration)
	return nil
}

func (c *Chain) String() string {
	return fmt.Sprintf("chain %s at iteration %d: %s", c.id, c.iteration, c.tree)
}
