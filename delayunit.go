// SPDX-License-Identifier: MIT

package main

import "github.com/prometheus/client_golang/prometheus"

// delayUnit selects the units delays are exported in.
type delayUnit int

const (
	unitInvalid delayUnit = iota
	unitMillis
	unitSeconds
	unitBoth
)

var delayUnits = map[string]delayUnit{
	"ms":   unitMillis,
	"s":    unitSeconds,
	"both": unitBoth,
}

func delayUnitFromString(s string) delayUnit {
	return delayUnits[s]
}

func (u delayUnit) millis() bool {
	return u == unitMillis || u == unitBoth
}

func (u delayUnit) seconds() bool {
	return u == unitSeconds || u == unitBoth
}

// delayGauge is a gauge of a value in millis, exported once per enabled unit.
type delayGauge struct {
	descs    []*prometheus.Desc
	divisors []float64
}

func newDelayGauge(name, help string, unit delayUnit, variableLabels []string) delayGauge {
	g := delayGauge{}
	if unit.millis() {
		g.add(newDesc(name+"_ms", help+" in millis", variableLabels, nil), 1)
	}
	if unit.seconds() {
		g.add(newDesc(name+"_seconds", help+" in seconds", variableLabels, nil), 1000)
	}

	return g
}

func (g *delayGauge) add(desc *prometheus.Desc, divisor float64) {
	g.descs = append(g.descs, desc)
	g.divisors = append(g.divisors, divisor)
}

func (g *delayGauge) describe(ch chan<- *prometheus.Desc) {
	for _, d := range g.descs {
		ch <- d
	}
}

func (g *delayGauge) collect(ch chan<- prometheus.Metric, millis uint32, labelValues ...string) {
	for i, d := range g.descs {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, float64(millis)/g.divisors[i], labelValues...)
	}
}
