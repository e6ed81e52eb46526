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

package rng

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat/distuv"
)

var (
	ErrParameter    = errors.New("invalid distribution parameter")
	ErrDistribution = errors.New("unknown distribution")
)

// Distribution is a continuous probability distribution used as a prior.
type Distribution interface {
	LnPDF(x float64) float64
	Mean() float64
	Variance() float64
	Draw(g *Generator) float64
	String() string
}

type Exponential struct {
	rate float64
}

func NewExponential(rate float64) (*Exponential, error) {
	if rate <= 0 {
		return nil, errors.Wrapf(ErrParameter, "exponential rate %v", rate)
	}
	return &Exponential{rate: rate}, nil
}

func (d Exponential) dist() distuv.Exponential {
	return distuv.Exponential{Rate: d.rate}
}

func (d Exponential) LnPDF(x float64) float64 { return d.dist().LogProb(x) }
func (d Exponential) Mean() float64           { return d.dist().Mean() }
func (d Exponential) Variance() float64       { return d.dist().Variance() }
func (d Exponential) Draw(g *Generator) float64 {
	return g.Exponential(d.rate)
}
func (d Exponential) String() string {
	return fmt.Sprintf("exponential(rate = %v)", d.rate)
}

// Gamma is parameterized by shape and scale.
type Gamma struct {
	shape, scale float64
}

func NewGamma(shape, scale float64) (*Gamma, error) {
	if shape <= 0 || scale <= 0 {
		return nil, errors.Wrapf(ErrParameter, "gamma shape %v scale %v", shape, scale)
	}
	return &Gamma{shape: shape, scale: scale}, nil
}

func (d Gamma) dist() distuv.Gamma {
	return distuv.Gamma{Alpha: d.shape, Beta: 1.0 / d.scale}
}

func (d Gamma) LnPDF(x float64) float64 { return d.dist().LogProb(x) }
func (d Gamma) Mean() float64           { return d.dist().Mean() }
func (d Gamma) Variance() float64       { return d.dist().Variance() }
func (d Gamma) Draw(g *Generator) float64 {
	return g.Gamma(d.shape, d.scale)
}
func (d Gamma) String() string {
	return fmt.Sprintf("gamma(shape = %v, scale = %v)", d.shape, d.scale)
}

type Uniform struct {
	min, max float64
}

func NewUniform(min, max float64) (*Uniform, error) {
	if !(min < max) {
		return nil, errors.Wrapf(ErrParameter, "uniform bounds [%v, %v]", min, max)
	}
	return &Uniform{min: min, max: max}, nil
}

func (d Uniform) dist() distuv.Uniform {
	return distuv.Uniform{Min: d.min, Max: d.max}
}

func (d Uniform) LnPDF(x float64) float64 { return d.dist().LogProb(x) }
func (d Uniform) Mean() float64           { return d.dist().Mean() }
func (d Uniform) Variance() float64       { return d.dist().Variance() }
func (d Uniform) Draw(g *Generator) float64 {
	return g.UniformRealRange(d.min, d.max)
}
func (d Uniform) String() string {
	return fmt.Sprintf("uniform(%v, %v)", d.min, d.max)
}

// ParseDistribution reads the "name:p1,p2" notation used on the command
// line, e.g. "exponential:10", "gamma:2,0.05" or "uniform:0,1".
func ParseDistribution(s string) (Distribution, error) {
	name, args, _ := strings.Cut(strings.TrimSpace(s), ":")
	var params []float64
	if args != "" {
		for _, a := range strings.Split(args, ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(a), 64)
			if err != nil {
				return nil, errors.Wrapf(ErrParameter, "%q in %q", a, s)
			}
			params = append(params, v)
		}
	}
	arity := func(n int) error {
		if len(params) != n {
			return errors.Wrapf(ErrParameter, "%s expects %d parameters, got %d", name, n, len(params))
		}
		return nil
	}
	var (
		d   Distribution
		err error
	)
	switch strings.ToLower(name) {
	case "exponential", "exp":
		if err = arity(1); err == nil {
			d, err = asDistribution(NewExponential(params[0]))
		}
	case "gamma":
		if err = arity(2); err == nil {
			d, err = asDistribution(NewGamma(params[0], params[1]))
		}
	case "uniform":
		if err = arity(2); err == nil {
			d, err = asDistribution(NewUniform(params[0], params[1]))
		}
	default:
		err = errors.Wrapf(ErrDistribution, "%q", name)
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

func asDistribution[D Distribution](d D, err error) (Distribution, error) {
	if err != nil {
		return nil, err
	}
	return d, nil
}
