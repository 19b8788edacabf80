package main

import (
	"sort"

	"github.com/czerwonk/delay_tracker/config"
)

// customLabelSet is the union of the label names of all targets. Targets
// without a label get an empty value for it.
type customLabelSet struct {
	names   []string
	nameMap map[string]struct{}
}

func newCustomLabelSet(targets []config.TargetConfig) *customLabelSet {
	cl := &customLabelSet{
		nameMap: make(map[string]struct{}),
		names:   make([]string, 0),
	}

	for _, t := range targets {
		cl.addLabelsForTarget(t)
	}

	return cl
}

func (cl *customLabelSet) addLabelsForTarget(t config.TargetConfig) {
	names := make([]string, 0, len(t.Labels))
	for name := range t.Labels {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		cl.addLabel(name)
	}
}

func (cl *customLabelSet) addLabel(name string) {
	if _, exists := cl.nameMap[name]; exists || name == "target" {
		return
	}

	cl.names = append(cl.names, name)
	cl.nameMap[name] = struct{}{}
}

func (cl *customLabelSet) labelNames() []string {
	return cl.names
}

func (cl *customLabelSet) labelValues(t config.TargetConfig) []string {
	values := make([]string, len(cl.names))
	if t.Labels == nil {
		return values
	}

	for i, name := range cl.names {
		if value, isSet := t.Labels[name]; isSet {
			values[i] = value
		}
	}

	return values
}
