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
	"bufio"
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/bbva/phycoeval/tree"
)

// Sample is the state of a chain at a sampled iteration.
type Sample struct {
	RunID         string
	Iteration     int
	Tree          *tree.Tree
	LogLikelihood float64
	LogPrior      float64
}

// Sampler receives the samples of a chain.
type Sampler interface {
	Sample(s *Sample) error
}

// TreeLogWriter writes one tree per line after a header comment naming
// the run.
type TreeLogWriter struct {
	w      *bufio.Writer
	header bool
}

func NewTreeLogWriter(w io.Writer) *TreeLogWriter {
	return &TreeLogWriter{w: bufio.NewWriter(w)}
}

func (t *TreeLogWriter) Sample(s *Sample) error {
	if !t.header {
		if _, err := fmt.Fprintf(t.w, "# run %s\n", s.RunID); err != nil {
			return errors.Wrap(err, "write tree log header")
		}
		t.header = true
	}
	if err := s.Tree.Write(t.w); err != nil {
		return errors.Wrap(err, "write tree log")
	}
	return t.w.WriteByte('\n')
}

func (t *TreeLogWriter) Flush() error {
	return t.w.Flush()
}
