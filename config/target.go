package config

// TargetConfig is a target with optional custom labels. In YAML it is either
// a plain host or a map of the host to its labels.
type TargetConfig struct {
	Addr   string
	Labels map[string]string
}

// UnmarshalYAML implements yaml.Unmarshaler interface.
func (t *TargetConfig) UnmarshalYAML(unmashal func(interface{}) error) error {
	var s string
	if err := unmashal(&s); err == nil {
		t.Addr = s
		return nil
	}

	var x map[string]map[string]string
	if err := unmashal(&x); err != nil {
		return err
	}

	for addr, l := range x {
		t.Addr = addr
		t.Labels = l
	}

	return nil
}

// MarshalYAML implements yaml.Marshaler interface.
func (t TargetConfig) MarshalYAML() (interface{}, error) {
	if len(t.Labels) == 0 {
		return t.Addr, nil
	}

	return map[string]map[string]string{t.Addr: t.Labels}, nil
}

// TargetsFromHosts wraps plain hosts without labels.
func TargetsFromHosts(hosts []string) []TargetConfig {
	targets := make([]TargetConfig, len(hosts))
	for i, h := range hosts {
		targets[i] = TargetConfig{Addr: h}
	}

	return targets
}
