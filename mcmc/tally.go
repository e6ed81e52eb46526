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
	"sort"
	"strings"

	"github.com/google/btree"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"

	"github.com/bbva/phycoeval/tree"
)

type modelItem struct {
	signature string
	heights   int
	count     int
}

func (m *modelItem) Less(than btree.Item) bool {
	return m.signature < than.(*modelItem).signature
}

// ModelFrequency is the tally of one tree model.
type ModelFrequency struct {
	Signature string
	Heights   int
	Count     int
	Frequency float64
}

// TopologyTally counts sampled tree models by signature.
type TopologyTally struct {
	models       *btree.BTree
	total        int
	heightCounts map[int]int
	rootHeights  []float64
}

func NewTopologyTally() *TopologyTally {
	return &TopologyTally{
		models:       btree.New(2),
		heightCounts: make(map[int]int),
	}
}

func (t *TopologyTally) Add(tr *tree.Tree) {
	key := &modelItem{signature: tr.Signature()}
	if item := t.models.Get(key); item != nil {
		item.(*modelItem).count++
	} else {
		key.heights = tr.NumberOfNodeHeights()
		key.count = 1
		t.models.ReplaceOrInsert(key)
	}
	t.total++
	t.heightCounts[tr.NumberOfNodeHeights()]++
	t.rootHeights = append(t.rootHeights, tr.RootHeight())
}

func (t *TopologyTally) Sample(s *Sample) error {
	t.Add(s.Tree)
	return nil
}

func (t *TopologyTally) Total() int {
	return t.total
}

func (t *TopologyTally) Len() int {
	return t.models.Len()
}

func (t *TopologyTally) Count(signature string) int {
	if item := t.models.Get(&modelItem{signature: signature}); item != nil {
		return item.(*modelItem).count
	}
	return 0
}

func (t *TopologyTally) Frequency(signature string) float64 {
	if t.total == 0 {
		return 0
	}
	return float64(t.Count(signature)) / float64(t.total)
}

// Models returns the tallied models, most frequent first and by signature
// among ties.
func (t *TopologyTally) Models() []ModelFrequency {
	models := make([]ModelFrequency, 0, t.models.Len())
	t.models.Ascend(func(i btree.Item) bool {
		m := i.(*modelItem)
		models = append(models, ModelFrequency{
			Signature: m.signature,
			Heights:   m.heights,
			Count:     m.count,
			Frequency: float64(m.count) / float64(t.total),
		})
		return true
	})
	sort.SliceStable(models, func(i, j int) bool {
		return models[i].Count > models[j].Count
	})
	return models
}

// HeightCountFrequencies maps a number of distinct heights to the fraction
// of samples with it.
func (t *TopologyTally) HeightCountFrequencies() map[int]float64 {
	freqs := make(map[int]float64, len(t.heightCounts))
	for k, c := range t.heightCounts {
		freqs[k] = float64(c) / float64(t.total)
	}
	return freqs
}

func (t *TopologyTally) RootHeightMeanVariance() (float64, float64) {
	return stat.MeanVariance(t.rootHeights, nil)
}

// ReadTreeLog tallies the trees of a tree log after the first burnin ones.
// Empty lines and lines starting with '#' are skipped.
func (t *TopologyTally) ReadTreeLog(r io.Reader, burnin int, opts ...tree.Option) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	line, seen := 0, 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		seen++
		if seen <= burnin {
			continue
		}
		tr, err := tree.Parse(text, opts...)
		if err != nil {
			return errors.Wrapf(err, "tree log line %d", line)
		}
		t.Add(tr)
	}
	return scanner.Err()
}

// Write reports the models and the distribution of the number of heights
// as tab-separated tables.
func (t *TopologyTally) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "count\tfrequency\theights\tsignature\n")
	for _, m := range t.Models() {
		fmt.Fprintf(bw, "%d\t%.6f\t%d\t%s\n", m.Count, m.Frequency, m.Heights, m.Signature)
	}

	keys := make([]int, 0, len(t.heightCounts))
	for k := range t.heightCounts {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	freqs := t.HeightCountFrequencies()
	fmt.Fprintf(bw, "\nheights\tcount\tfrequency\n")
	for _, k := range keys {
		fmt.Fprintf(bw, "%d\t%d\t%.6f\n", k, t.heightCounts[k], freqs[k])
	}

	if t.total > 1 {
		mean, variance := t.RootHeightMeanVariance()
		fmt.Fprintf(bw, "\nroot_height_mean\troot_height_variance\n%.6g\t%.6g\n", mean, variance)
	}
	return bw.Flush()
}
