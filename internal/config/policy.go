package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Policy is the YAML form of the dispatch policy. Unset fields keep the current value.
//
//	offer_window: 45s
//	sweep_grace: 5s
//	exhausted_action: cancel
//	reoffer_on_reject: false
type Policy struct {
	OfferWindow     *Duration `yaml:"offer_window"`
	SweepInterval   *Duration `yaml:"sweep_interval"`
	SweepGrace      *Duration `yaml:"sweep_grace"`
	ExhaustedAction *string   `yaml:"exhausted_action"`
	ReofferOnReject *bool     `yaml:"reoffer_on_reject"`
}

// Duration decodes "60s"-style YAML scalars.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(v)
	return nil
}

// LoadPolicy reads a policy file.
func LoadPolicy(path string) (Policy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("read policy %s: %w", path, err)
	}
	return ParsePolicy(raw)
}

// ParsePolicy decodes a YAML policy document, rejecting unknown keys.
func ParsePolicy(raw []byte) (Policy, error) {
	var p Policy
	if len(raw) == 0 {
		return p, nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return Policy{}, fmt.Errorf("decode policy: %w", err)
	}
	return p, nil
}

// ApplyTo overrides the fields that the policy sets.
func (p Policy) ApplyTo(d *Dispatch) {
	if p.OfferWindow != nil {
		d.OfferWindow = time.Duration(*p.OfferWindow)
	}
	if p.SweepInterval != nil {
		d.SweepInterval = time.Duration(*p.SweepInterval)
	}
	if p.SweepGrace != nil {
		d.SweepGrace = time.Duration(*p.SweepGrace)
	}
	if p.ExhaustedAction != nil {
		d.ExhaustedAction = *p.ExhaustedAction
	}
	if p.ReofferOnReject != nil {
		d.ReofferOnReject = *p.ReofferOnReject
	}
}
