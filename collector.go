package main

import (
	"github.com/czerwonk/delay_tracker/config"
	"github.com/czerwonk/delay_tracker/sampler"
	"github.com/prometheus/client_golang/prometheus"
)

const prefix = "delay_"

type snapshotter interface {
	Snapshot() sampler.Snapshot
}

type delayCollector struct {
	source  snapshotter
	targets []config.TargetConfig
	labels  *customLabelSet

	lastDesc     delayGauge
	scaleDesc    delayGauge
	samplesDesc  *prometheus.Desc
	failuresDesc *prometheus.Desc
	ticksDesc    *prometheus.Desc
}

func newDelayCollector(source snapshotter, targets []config.TargetConfig, unit delayUnit) *delayCollector {
	labels := newCustomLabelSet(targets)
	labelNames := append([]string{"target"}, labels.labelNames()...)

	return &delayCollector{
		source:       source,
		targets:      targets,
		labels:       labels,
		lastDesc:     newDelayGauge("last", "Newest delay sample of the target, 0 if the probe failed", unit, labelNames),
		scaleDesc:    newDelayGauge("scale_max", "Highest delay seen since start, at least the scale floor", unit, nil),
		samplesDesc:  newDesc("window_samples", "Number of samples held for the target", labelNames, nil),
		failuresDesc: newDesc("probe_failures_total", "Number of probes without reply", labelNames, nil),
		ticksDesc:    newDesc("ticks_total", "Number of completed sampling ticks", nil, nil),
	}
}

func newDesc(name, help string, variableLabels []string, constLabels prometheus.Labels) *prometheus.Desc {
	return prometheus.NewDesc(prefix+name, help, variableLabels, constLabels)
}

func (c *delayCollector) Describe(ch chan<- *prometheus.Desc) {
	c.lastDesc.describe(ch)
	c.scaleDesc.describe(ch)
	ch <- c.samplesDesc
	ch <- c.failuresDesc
	ch <- c.ticksDesc
}

func (c *delayCollector) Collect(ch chan<- prometheus.Metric) {
	snap := c.source.Snapshot()

	ch <- prometheus.MustNewConstMetric(c.ticksDesc, prometheus.CounterValue, float64(snap.Epoch))
	c.scaleDesc.collect(ch, snap.Max)

	for i, target := range snap.Targets {
		l := append([]string{target}, c.labelValues(i)...)

		if last, ok := snap.Last(i); ok {
			c.lastDesc.collect(ch, last, l...)
		}
		ch <- prometheus.MustNewConstMetric(c.samplesDesc, prometheus.GaugeValue, float64(len(snap.Series[i])), l...)
		ch <- prometheus.MustNewConstMetric(c.failuresDesc, prometheus.CounterValue, float64(snap.Failures[i]), l...)
	}
}

func (c *delayCollector) labelValues(i int) []string {
	if i >= len(c.targets) {
		return make([]string, len(c.labels.labelNames()))
	}

	return c.labels.labelValues(c.targets[i])
}
