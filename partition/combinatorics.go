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

// Package partition counts and draws set partitions and subsets of small
// collections of tree nodes or children.
package partition

import (
	"math"
	"sync"
)

type stirlingKey struct {
	n, k int
}

// Cache memoizes Bell numbers and Stirling numbers of the second kind.
// Values are float64 and become +Inf once they no longer fit.
type Cache struct {
	mu       sync.Mutex
	bell     map[int]float64
	stirling map[stirlingKey]float64
}

func NewCache() *Cache {
	return &Cache{
		bell:     make(map[int]float64),
		stirling: make(map[stirlingKey]float64),
	}
}

// DefaultCache is shared by callers that do not bring their own.
var DefaultCache = NewCache()

// Stirling2 returns the number of ways of partitioning n elements into k
// non-empty blocks.
func (c *Cache) Stirling2(n, k int) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stirling2(n, k)
}

func (c *Cache) stirling2(n, k int) float64 {
	switch {
	case n < 0 || k < 0 || k > n:
		return 0
	case n == k:
		return 1
	case k == 0:
		return 0
	}
	if v, ok := c.stirling[stirlingKey{n, k}]; ok {
		return v
	}
	// fill rows bottom-up so no recursion depth grows with n
	row := []float64{1}
	for i := 1; i <= n; i++ {
		next := make([]float64, i+1)
		for j := 1; j <= i; j++ {
			var left, diag float64
			if j < len(row) {
				left = row[j]
			}
			diag = row[j-1]
			next[j] = float64(j)*left + diag
		}
		row = next
		for j := 1; j <= i; j++ {
			c.stirling[stirlingKey{i, j}] = row[j]
		}
	}
	return c.stirling[stirlingKey{n, k}]
}

// Bell returns the number of set partitions of n elements.
func (c *Cache) Bell(n int) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.bell[n]; ok {
		return v
	}
	var b float64
	if n == 0 {
		b = 1
	}
	for k := 1; k <= n; k++ {
		b += c.stirling2(n, k)
	}
	c.bell[n] = b
	return b
}

// LogBell returns ln(Bell(n)).
func (c *Cache) LogBell(n int) float64 {
	return math.Log(c.Bell(n))
}

func logBinomial(n, k int) float64 {
	a, _ := math.Lgamma(float64(n + 1))
	b, _ := math.Lgamma(float64(k + 1))
	d, _ := math.Lgamma(float64(n - k + 1))
	return a - b - d
}
