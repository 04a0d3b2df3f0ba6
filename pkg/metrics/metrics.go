// This file is part of FATMount
// Copyright (c) 2025 The FATMount Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package metrics

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"k8s.io/klog/v2"

	"github.com/openembed/fatmount/pkg/fat"
)

func metricsHandler(adapter *fat.Adapter) http.Handler {
	registry := prometheus.NewRegistry()
	if err := registry.Register(newMetricsCollector(adapter)); err != nil {
		panic(err)
	}

	gatherers := prometheus.Gatherers{
		registry,
	}

	return promhttp.InstrumentMetricHandler(
		registry,
		promhttp.HandlerFor(gatherers,
			promhttp.HandlerOpts{
				ErrorHandling: promhttp.ContinueOnError,
			}),
	)
}

// ServeMetrics starts metrics service for the adapter.
func ServeMetrics(ctx context.Context, adapter *fat.Adapter, port int) {
	config := net.ListenConfig{}
	listener, err := config.Listen(ctx, "tcp", fmt.Sprintf(":%v", port))
	if err != nil {
		panic(err)
	}

	server := &http.Server{Handler: metricsHandler(adapter)}

	klog.V(2).Infof("Starting metrics exporter at port %v", port)
	if err := server.Serve(listener); err != nil {
		klog.ErrorS(err, "unable to start metrics server")
		if err != http.ErrServerClosed {
			panic(err)
		}
	}
}
