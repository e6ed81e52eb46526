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

// Package metrics holds the prometheus collectors and expvar stats shared
// by chains and operators.
package metrics

import (
	"expvar"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (

	// Chain has a Map of the stats of the running chains.
	Chain *expvar.Map

	// Prometheus

	// CHAIN

	PhycoevalChainsCount = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "phycoeval_chains_count",
			Help: "Number of chains currently running",
		},
	)
	PhycoevalChainIterationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "phycoeval_chain_iterations_total",
			Help: "Number of MCMC iterations performed.",
		},
	)
	PhycoevalChainSamplesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "phycoeval_chain_samples_total",
			Help: "Number of samples written.",
		},
	)
	PhycoevalChainIterationDurationSeconds = prometheus.NewSummary(
		prometheus.SummaryOpts{
			Name: "phycoeval_chain_iteration_duration_seconds",
			Help: "Duration of one MCMC iteration.",
		},
	)

	// TREE

	PhycoevalTreeNodeHeightsCount = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "phycoeval_tree_node_heights_count",
			Help: "Number of distinct internal heights of the current tree.",
		},
	)
	PhycoevalTreeRootHeight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "phycoeval_tree_root_height",
			Help: "Root height of the current tree.",
		},
	)
	PhycoevalTreeLogPosterior = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "phycoeval_tree_log_posterior",
			Help: "Log likelihood plus log prior of the current tree.",
		},
	)

	// OPERATORS

	PhycoevalOperatorAcceptedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phycoeval_operator_accepted_total",
			Help: "Number of accepted proposals per operator.",
		},
		[]string{"operator"},
	)
	PhycoevalOperatorRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phycoeval_operator_rejected_total",
			Help: "Number of rejected proposals per operator.",
		},
		[]string{"operator"},
	)
	PhycoevalOperatorLnHastingsRatio = prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name: "phycoeval_operator_ln_hastings_ratio",
			Help: "Finite log Hastings ratios of the proposals per operator.",
		},
		[]string{"operator"},
	)
	PhycoevalOperatorTuningParameter = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "phycoeval_operator_tuning_parameter",
			Help: "Current value of the tuning parameter per operator.",
		},
		[]string{"operator"},
	)

	// PROMETHEUS

	metricsList = []prometheus.Collector{
		PhycoevalChainsCount,
		PhycoevalChainIterationsTotal,
		PhycoevalChainSamplesTotal,
		PhycoevalChainIterationDurationSeconds,

		PhycoevalTreeNodeHeightsCount,
		PhycoevalTreeRootHeight,
		PhycoevalTreeLogPosterior,

		PhycoevalOperatorAcceptedTotal,
		PhycoevalOperatorRejectedTotal,
		PhycoevalOperatorLnHastingsRatio,
		PhycoevalOperatorTuningParameter,
	}

	registerMetrics sync.Once
)

// Register all metrics.
func Register(r *prometheus.Registry) {
	registerMetrics.Do(
		func() {
			for _, metric := range metricsList {
				r.MustRegister(metric)
			}
		},
	)
}

// Implement expVar.Var interface
type Uint64ToVar uint64

func (v Uint64ToVar) String() string {
	return fmt.Sprintf("%d", v)
}

func init() {
	Chain = expvar.NewMap("phycoeval_chain_stats")
}
