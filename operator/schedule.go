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
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/pkg/errors"

	"github.com/bbva/phycoeval/rng"
)

// Schedule draws operators in proportion to their weights.
type Schedule struct {
	operators  []Operator
	cumulative []float64
	total      float64
}

func NewSchedule(ops ...Operator) *Schedule {
	s := &Schedule{}
	for _, op := range ops {
		s.Add(op)
	}
	return s
}

// Add appends op. Operators without positive weight are left out.
func (s *Schedule) Add(op Operator) {
	if !(op.Weight() > 0) {
		return
	}
	s.operators = append(s.operators, op)
	s.total += op.Weight()
	s.cumulative = s.cumulative[:0]
	cum := 0.0
	for _, o := range s.operators {
		cum += o.Weight() / s.total
		s.cumulative = append(s.cumulative, cum)
	}
}

func (s *Schedule) Draw(r *rng.Generator) Operator {
	if len(s.operators) == 0 {
		panic(errors.Wrap(ErrInvariant, "draw from an empty schedule"))
	}
	u := r.UniformReal()
	for i, c := range s.cumulative {
		if u <= c {
			return s.operators[i]
		}
	}
	return s.operators[len(s.operators)-1]
}

func (s *Schedule) Operators() []Operator {
	return s.operators
}

func (s *Schedule) TotalWeight() float64 {
	return s.total
}

// NodeHeightOperators returns every operator but the reversible-jump ones.
func (s *Schedule) NodeHeightOperators() []Operator {
	var ops []Operator
	for _, op := range s.operators {
		if op.Type() != RJ {
			ops = append(ops, op)
		}
	}
	return ops
}

// SplitLump returns the reversible-jump operator, if scheduled.
func (s *Schedule) SplitLump() *SplitLump {
	for _, op := range s.operators {
		if sl, ok := op.(*SplitLump); ok {
			return sl
		}
	}
	return nil
}

// WriteOperatorRates writes one tab-separated line per operator after a
// header.
func (s *Schedule) WriteOperatorRates(w io.Writer) error {
	if _, err := fmt.Fprintln(w, "name\tnumber_accepted\tnumber_rejected\tweight\ttuning_parameter"); err != nil {
		return err
	}
	for _, op := range s.operators {
		o := op.Base()
		_, err := fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\n",
			o.Name(), o.Accepted(), o.Rejected(), formatFloat(o.Weight()), formatFloat(op.Tuning()))
		if err != nil {
			return err
		}
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Tallies returns the tallies and tuning of every scheduled operator.
func (s *Schedule) Tallies() []Tallies {
	tallies := make([]Tallies, len(s.operators))
	for i, op := range s.operators {
		tallies[i] = op.Base().Tallies()
		if tuning := op.Tuning(); !math.IsNaN(tuning) {
			tallies[i].Tuning = tuning
		}
	}
	return tallies
}

// RestoreTallies sets the tallies and tuning of the scheduled operators
// matched by name.
func (s *Schedule) RestoreTallies(tallies []Tallies) error {
	byName := make(map[string]Operator, len(s.operators))
	for _, op := range s.operators {
		byName[op.Name()] = op
	}
	for _, t := range tallies {
		op, ok := byName[t.Name]
		if !ok {
			return errors.Errorf("no scheduled operator named %q", t.Name)
		}
		op.Base().restoreTallies(t)
		switch o := op.(type) {
		case interface{ scaleOp() *ScaleOp }:
			if t.Tuning > 0 {
				o.scaleOp().scale = t.Tuning
			}
		case interface{ windowOp() *WindowOp }:
			if t.Tuning > 0 {
				o.windowOp().window = t.Tuning
			}
		}
	}
	return nil
}
