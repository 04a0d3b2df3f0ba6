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

// Package metrics exposes mount and transfer statistics of a FAT adapter as
// Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/openembed/fatmount/pkg/consts"
	"github.com/openembed/fatmount/pkg/fat"
)

type metricsCollector struct {
	adapter *fat.Adapter
	desc    *prometheus.Desc
}

func newMetricsCollector(adapter *fat.Adapter) *metricsCollector {
	return &metricsCollector{
		adapter: adapter,
		desc:    prometheus.NewDesc(consts.AppName+"_stats", "Statistics exposed by "+consts.AppPrettyName, nil, nil),
	}
}

// Describe sends the super set of all possible descriptors of metrics
func (c *metricsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

func (c *metricsCollector) publishMountStats(info fat.MountInfo, ch chan<- prometheus.Metric) {
	labels := []string{"mount", "mountID"}
	labelValues := []string{info.Path, info.MountID}

	ch <- prometheus.MustNewConstMetric(
		prometheus.NewDesc(
			prometheus.BuildFQName(consts.AppName, "stats", "bytes_total"),
			"Total capacity of the mounted volume",
			labels, nil),
		prometheus.GaugeValue,
		float64(info.TotalBytes), labelValues...,
	)

	ch <- prometheus.MustNewConstMetric(
		prometheus.NewDesc(
			prometheus.BuildFQName(consts.AppName, "stats", "bytes_free"),
			"Free capacity of the mounted volume",
			labels, nil),
		prometheus.GaugeValue,
		float64(info.FreeBytes), labelValues...,
	)

	ch <- prometheus.MustNewConstMetric(
		prometheus.NewDesc(
			prometheus.BuildFQName(consts.AppName, "stats", "sectors_read_total"),
			"Total number of sectors read from the volume's transports",
			labels, nil),
		prometheus.CounterValue,
		float64(info.Stats.SectorsRead), labelValues...,
	)

	ch <- prometheus.MustNewConstMetric(
		prometheus.NewDesc(
			prometheus.BuildFQName(consts.AppName, "stats", "sectors_written_total"),
			"Total number of sectors written to the volume's transports",
			labels, nil),
		prometheus.CounterValue,
		float64(info.Stats.SectorsWritten), labelValues...,
	)

	routes := []struct {
		name  string
		value uint64
	}{
		{"pio", info.Stats.PIOTransfers},
		{"dma", info.Stats.DMATransfers},
		{"staged", info.Stats.StagedTransfers},
	}
	for _, route := range routes {
		ch <- prometheus.MustNewConstMetric(
			prometheus.NewDesc(
				prometheus.BuildFQName(consts.AppName, "stats", "transfers_total"),
				"Total number of transfers by routing decision",
				[]string{"mount", "mountID", "route"}, nil),
			prometheus.CounterValue,
			float64(route.value), info.Path, info.MountID, route.name,
		)
	}
}

// Collect is called by Prometheus registry when collecting metrics.
func (c *metricsCollector) Collect(ch chan<- prometheus.Metric) {
	for _, info := range c.adapter.Mounts() {
		c.publishMountStats(info, ch)
	}
}
