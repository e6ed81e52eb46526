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

package cmd

import (
	"expvar"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bbva/phycoeval/metrics"
)

// registry holds the chain collectors, which can only be registered once
// per process.
var registry = prometheus.NewRegistry()

// newMetricsHTTP returns a mux serving the chain metrics on /metrics and
// the expvar map on /debug/vars.
func newMetricsHTTP() *http.ServeMux {
	metrics.Register(registry)

	mux := http.NewServeMux()
	g := prometheus.Gatherers{
		prometheus.DefaultGatherer,
		registry,
	}

	handler := promhttp.HandlerFor(g, promhttp.HandlerOpts{})
	instrumentedHandler := promhttp.InstrumentMetricHandler(registry, handler)
	mux.Handle("/metrics", instrumentedHandler)
	mux.Handle("/debug/vars", expvar.Handler())
	return mux
}
