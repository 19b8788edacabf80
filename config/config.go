package config

import (
	"errors"
	"fmt"
	"io"
	"time"

	yaml "gopkg.in/yaml.v2"
)

// Config represents configuration for the tracker
type Config struct {
	Targets []TargetConfig `yaml:"targets"`

	Sampling struct {
		Interval   duration `yaml:"interval"`
		Length     duration `yaml:"length"`
		ScaleFloor uint32   `yaml:"scale-floor"`
	} `yaml:"sampling"`

	Probe struct {
		Mode       string   `yaml:"mode"`
		Command    string   `yaml:"command"`
		Timeout    duration `yaml:"timeout"`
		Format     string   `yaml:"format"`
		Size       uint16   `yaml:"payload-size"`
		PreferIPv6 bool     `yaml:"prefer-ipv6"`
	} `yaml:"probe"`

	DNS struct {
		Refresh    duration `yaml:"refresh"`
		Nameserver string   `yaml:"nameserver"`
		K8s        bool     `yaml:"k8s"`
	} `yaml:"dns"`
}

const (
	// ModeCommand runs the system ping utility.
	ModeCommand = "command"
	// ModeICMP sends echo requests from within the process.
	ModeICMP = "icmp"
)

type duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler interface.
func (d *duration) UnmarshalYAML(unmashal func(interface{}) error) error {
	var s string
	if err := unmashal(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = duration(dur)
	return nil
}

// Duration is a convenience getter.
func (d duration) Duration() time.Duration {
	return time.Duration(d)
}

// Set updates the underlying duration.
func (d *duration) Set(dur time.Duration) {
	*d = duration(dur)
}

// FromYAML reads YAML from reader and unmarshals it to Config
func FromYAML(r io.Reader) (*Config, error) {
	c := &Config{}
	err := yaml.NewDecoder(r).Decode(c)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Capacity is the number of samples kept per target.
func (c *Config) Capacity() int {
	interval := c.Sampling.Interval.Duration()
	if interval <= 0 {
		return 0
	}

	return int(c.Sampling.Length.Duration() / interval)
}

// Hosts returns the plain target addresses in configured order.
func (c *Config) Hosts() []string {
	hosts := make([]string, len(c.Targets))
	for i, t := range c.Targets {
		hosts[i] = t.Addr
	}

	return hosts
}

// Validate checks the config after all defaults were applied.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return errors.New("at least one target must be specified")
	}

	for _, t := range c.Targets {
		if t.Addr == "" {
			return errors.New("targets must not be empty")
		}
	}

	if c.Sampling.Interval <= 0 {
		return errors.New("sampling.interval must be greater than 0")
	}

	if c.Capacity() < 1 {
		return fmt.Errorf("sampling.length must be at least one interval (%s)", c.Sampling.Interval.Duration())
	}

	switch c.Probe.Mode {
	case ModeCommand, ModeICMP:
	default:
		return fmt.Errorf("probe.mode must be %q or %q, got %q", ModeCommand, ModeICMP, c.Probe.Mode)
	}

	switch c.Probe.Format {
	case "auto", "windows", "unix":
	default:
		return fmt.Errorf("probe.format must be auto, windows or unix, got %q", c.Probe.Format)
	}

	if c.Probe.Size > 65500 {
		return errors.New("probe.payload-size must be between 0 and 65500")
	}

	return nil
}
