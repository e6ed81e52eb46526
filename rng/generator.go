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

// Package rng provides the seeded random number stream shared by every
// draw of a chain, plus the continuous distributions used as priors.
package rng

import (
	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mathext/prng"
	"gonum.org/v1/gonum/stat/distuv"
)

// Generator is a deterministic stream of random draws. It is not safe for
// concurrent use: every chain owns its own generator.
type Generator struct {
	seed uint64
	src  *prng.MT19937
	rnd  *rand.Rand
}

func NewGenerator(seed uint64) *Generator {
	src := prng.NewMT19937()
	src.Seed(seed)
	return &Generator{
		seed: seed,
		src:  src,
		rnd:  rand.New(src),
	}
}

func (g *Generator) Seed() uint64 {
	return g.seed
}

// Source exposes the underlying stream so gonum distributions can draw
// from it.
func (g *Generator) Source() rand.Source {
	return g.src
}

// UniformReal returns a value in [0, 1).
func (g *Generator) UniformReal() float64 {
	return g.rnd.Float64()
}

// UniformRealRange returns a value in [a, b).
func (g *Generator) UniformRealRange(a, b float64) float64 {
	return a + (b-a)*g.rnd.Float64()
}

// UniformInt returns an integer in [lo, hi], both ends included.
func (g *Generator) UniformInt(lo, hi int) int {
	if hi < lo {
		panic(errors.Wrapf(ErrParameter, "uniform int range [%d, %d]", lo, hi))
	}
	return lo + int(g.rnd.Uint64n(uint64(hi-lo)+1))
}

// UniformPositiveInt returns an integer in [0, hi].
func (g *Generator) UniformPositiveInt(hi int) int {
	return g.UniformInt(0, hi)
}

func (g *Generator) Gamma(shape, scale float64) float64 {
	return distuv.Gamma{Alpha: shape, Beta: 1.0 / scale, Src: g.src}.Rand()
}

func (g *Generator) Exponential(rate float64) float64 {
	return distuv.Exponential{Rate: rate, Src: g.src}.Rand()
}

// Shuffle permutes n elements in place through swap.
func (g *Generator) Shuffle(n int, swap func(i, j int)) {
	g.rnd.Shuffle(n, swap)
}

// MarshalBinary captures the exact position of the stream.
func (g *Generator) MarshalBinary() ([]byte, error) {
	state, err := g.src.MarshalBinary()
	if err != nil {
		return nil, errors.Wrap(err, "marshalling generator state")
	}
	return state, nil
}

// UnmarshalBinary restores a stream captured with MarshalBinary.
func (g *Generator) UnmarshalBinary(data []byte) error {
	if g.src == nil {
		g.src = prng.NewMT19937()
		g.rnd = rand.New(g.src)
	}
	if err := g.src.UnmarshalBinary(data); err != nil {
		return errors.Wrap(err, "unmarshalling generator state")
	}
	return nil
}
