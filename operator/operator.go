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

// Package operator implements the Metropolis-Hastings moves over trees
// with shared node heights, the reversible-jump split/lump move among them.
package operator

import (
	"math"

	"github.com/pkg/errors"

	"github.com/bbva/phycoeval/log"
	"github.com/bbva/phycoeval/metrics"
	"github.com/bbva/phycoeval/rng"
	"github.com/bbva/phycoeval/tree"
)

var ErrInvariant = errors.New("operator invariant violated")

const (
	DefaultAutoOptimizeDelay = 1000
	DefaultTargetAcceptance  = 0.44
	DefaultScale             = 0.5
	DefaultWindow            = 0.1
)

// Type classifies how an operator proposes.
type Type int

const (
	RJ Type = iota
	Scale
	Window
)

func (t Type) String() string {
	switch t {
	case RJ:
		return "rj"
	case Scale:
		return "scale"
	case Window:
		return "window"
	default:
		return "unknown"
	}
}

// Operator is a move over a tree.
type Operator interface {
	Name() string
	Target() string
	Type() Type
	Weight() float64

	// Propose mutates the tree and returns the log Hastings ratio of the
	// move, -Inf when the proposal must be rejected outright.
	Propose(r *rng.Generator, t *tree.Tree) float64

	// Operate performs n complete Metropolis-Hastings moves.
	Operate(r *rng.Generator, t *tree.Tree, n int) error

	// Optimize tunes the operator given the acceptance probability of the
	// last move.
	Optimize(lnAlpha float64)

	// Tuning is the value of the tuned parameter, NaN when there is none.
	Tuning() float64

	// Base returns the embedded tallies.
	Base() *Op
}

// Op keeps the acceptance tallies shared by all operators.
type Op struct {
	name   string
	target string
	weight float64

	accepted              int
	rejected              int
	acceptedForCorrection int
	rejectedForCorrection int

	autoOptimize      bool
	autoOptimizeDelay int
	targetAcceptance  float64

	log log.Logger
}

type Option func(*Op)

func WithAutoOptimize(enabled bool) Option {
	return func(o *Op) {
		o.autoOptimize = enabled
	}
}

func WithAutoOptimizeDelay(delay int) Option {
	return func(o *Op) {
		o.autoOptimizeDelay = delay
	}
}

func WithTargetAcceptance(p float64) Option {
	return func(o *Op) {
		o.targetAcceptance = p
	}
}

func WithLogger(l log.Logger) Option {
	return func(o *Op) {
		o.log = l
	}
}

func newOp(name, target string, weight float64, opts ...Option) Op {
	o := Op{
		name:              name,
		target:            target,
		weight:            weight,
		autoOptimize:      true,
		autoOptimizeDelay: DefaultAutoOptimizeDelay,
		targetAcceptance:  DefaultTargetAcceptance,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = log.L().Named("operator")
	}
	o.log = o.log.Named(name)
	return o
}

func (o *Op) Base() *Op {
	return o
}

func (o *Op) Name() string {
	return o.name
}

func (o *Op) Target() string {
	return o.target
}

func (o *Op) Weight() float64 {
	return o.weight
}

func (o *Op) Accepted() int {
	return o.accepted
}

func (o *Op) Rejected() int {
	return o.rejected
}

func (o *Op) Attempts() int {
	return o.accepted + o.rejected
}

func (o *Op) AutoOptimizing() bool {
	return o.autoOptimize
}

func (o *Op) Tuning() float64 {
	return math.NaN()
}

func (o *Op) Optimize(float64) {}

func (o *Op) SetWeight(w float64) {
	o.weight = w
}

func (o *Op) SetAutoOptimize(enabled bool) {
	o.autoOptimize = enabled
}

func (o *Op) AcceptanceRate() float64 {
	if o.Attempts() == 0 {
		return math.NaN()
	}
	return float64(o.accepted) / float64(o.Attempts())
}

func (o *Op) Accept() {
	o.accepted++
	if o.Attempts() > o.autoOptimizeDelay {
		o.acceptedForCorrection++
	}
	metrics.PhycoevalOperatorAcceptedTotal.WithLabelValues(o.name).Inc()
}

func (o *Op) Reject() {
	o.rejected++
	if o.Attempts() > o.autoOptimizeDelay {
		o.rejectedForCorrection++
	}
	metrics.PhycoevalOperatorRejectedTotal.WithLabelValues(o.name).Inc()
}

// CalcDelta is the step of the tuning parameter on the log scale. It is
// zero until the operator has made more than the delay of attempts.
func (o *Op) CalcDelta(lnAlpha float64) float64 {
	if !o.autoOptimize || o.Attempts() <= o.autoOptimizeDelay {
		return 0
	}
	delta := math.Exp(math.Min(lnAlpha, 0)) - o.targetAcceptance
	return delta / float64(o.rejectedForCorrection+o.acceptedForCorrection+1)
}

// Tallies is the persistent part of an Op.
type Tallies struct {
	Name                  string
	Accepted              int
	Rejected              int
	AcceptedForCorrection int
	RejectedForCorrection int
	Tuning                float64
}

func (o *Op) Tallies() Tallies {
	return Tallies{
		Name:                  o.name,
		Accepted:              o.accepted,
		Rejected:              o.rejected,
		AcceptedForCorrection: o.acceptedForCorrection,
		RejectedForCorrection: o.rejectedForCorrection,
	}
}

func (o *Op) restoreTallies(t Tallies) {
	o.accepted = t.Accepted
	o.rejected = t.Rejected
	o.acceptedForCorrection = t.AcceptedForCorrection
	o.rejectedForCorrection = t.RejectedForCorrection
}

// ScaleOp proposes multiplying a value by exp(scale (2u - 1)).
type ScaleOp struct {
	Op
	scale float64
}

func newScaleOp(name, target string, weight, scale float64, opts ...Option) ScaleOp {
	if scale <= 0 {
		scale = DefaultScale
	}
	return ScaleOp{Op: newOp(name, target, weight, opts...), scale: scale}
}

func (s *ScaleOp) scaleOp() *ScaleOp {
	return s
}

func (s *ScaleOp) Type() Type {
	return Scale
}

func (s *ScaleOp) Tuning() float64 {
	return s.scale
}

// Multiplier draws a multiplier and returns it with its log Hastings ratio.
func (s *ScaleOp) Multiplier(r *rng.Generator) (float64, float64) {
	m := math.Exp(s.scale * (2*r.UniformReal() - 1))
	return m, math.Log(m)
}

func (s *ScaleOp) Optimize(lnAlpha float64) {
	delta := s.CalcDelta(lnAlpha)
	if delta == 0 {
		return
	}
	s.scale = math.Exp(delta + math.Log(s.scale))
	metrics.PhycoevalOperatorTuningParameter.WithLabelValues(s.name).Set(s.scale)
}

// WindowOp proposes adding a uniform draw from (-window, window).
type WindowOp struct {
	Op
	window float64
}

func newWindowOp(name, target string, weight, window float64, opts ...Option) WindowOp {
	if window <= 0 {
		window = DefaultWindow
	}
	return WindowOp{Op: newOp(name, target, weight, opts...), window: window}
}

func (w *WindowOp) windowOp() *WindowOp {
	return w
}

func (w *WindowOp) Type() Type {
	return Window
}

func (w *WindowOp) Tuning() float64 {
	return w.window
}

// Addend draws an addend and returns it with its log Hastings ratio.
func (w *WindowOp) Addend(r *rng.Generator) (float64, float64) {
	return 2*w.window*r.UniformReal() - w.window, 0
}

func (w *WindowOp) Optimize(lnAlpha float64) {
	delta := w.CalcDelta(lnAlpha)
	if delta == 0 {
		return
	}
	w.window = math.Exp(delta + math.Log(w.window))
	metrics.PhycoevalOperatorTuningParameter.WithLabelValues(w.name).Set(w.window)
}

// PerformMove runs one Metropolis-Hastings step of op: store, propose,
// score and either keep the proposal or restore the stored state. The
// tree must hold current log likelihood and prior values.
func PerformMove(r *rng.Generator, t *tree.Tree, op Operator) (bool, error) {
	o := op.Base()
	lnL, lnPrior := t.LogLikelihood(), t.LogPrior()
	t.Store()

	lnHR := op.Propose(r, t)
	lnAlpha := math.Inf(-1)
	if !math.IsInf(lnHR, 0) && !math.IsNaN(lnHR) {
		metrics.PhycoevalOperatorLnHastingsRatio.WithLabelValues(o.name).Observe(lnHR)
		if err := t.ComputeLogLikelihoodAndPrior(); err != nil {
			if rerr := t.Restore(); rerr != nil {
				return false, errors.Wrap(rerr, "restore after failed proposal")
			}
			return false, errors.Wrapf(err, "operator %s", o.name)
		}
		lnAlpha = (t.LogLikelihood() - lnL) + (t.LogPrior() - lnPrior) + lnHR
	}

	accepted := r.UniformReal() < math.Exp(lnAlpha)
	if accepted {
		o.Accept()
		o.log.Tracef("accepted with ln alpha %v", lnAlpha)
	} else {
		o.Reject()
		o.log.Tracef("rejected with ln alpha %v", lnAlpha)
		if err := t.Restore(); err != nil {
			return false, errors.Wrapf(err, "operator %s", o.name)
		}
	}
	if o.autoOptimize {
		op.Optimize(lnAlpha)
	}
	return accepted, nil
}

func operate(r *rng.Generator, t *tree.Tree, op Operator, n int) error {
	for i := 0; i < n; i++ {
		if _, err := PerformMove(r, t, op); err != nil {
			return err
		}
	}
	return nil
}
