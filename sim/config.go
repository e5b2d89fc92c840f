package sim

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

// Config is the full, fixed set of simulation parameters. It is validated
// once by NewEngine; an Engine never sees an invalid Config.
type Config struct {
	ArrivalRate       float64 `yaml:"arrival_rate"`        // exponential rate parameter per source (> 0)
	MaxPacketSize     int     `yaml:"max_packet_size"`     // packets are sized uniformly in [1, MaxPacketSize]
	SubBufferCount    int     `yaml:"sub_buffers"`         // number of source/sub-buffer pairs (>= 1)
	SubBufferCapacity int     `yaml:"sub_buffer_capacity"` // capacity of each sub-buffer (> 0)
	CentralCapacity   int     `yaml:"central_capacity"`    // capacity of the central buffer (> 0)
	TransmissionRate  float64 `yaml:"transmission_rate"`   // rate threshold splitting fast and slow sources (> 0)
	TargetPacketCount int     `yaml:"packets"`             // number of Running steps before draining (> 0)
	Policy            string  `yaml:"policy"`              // "round-robin" (default), "random", "fullest-first"
	Seed              int64   `yaml:"seed"`

	// RandomizeSources draws each source's arrival rate uniformly from
	// [1, ArrivalRate] and each sub-buffer capacity from [1, SubBufferCapacity].
	RandomizeSources bool `yaml:"randomize_sources"`
}

// DefaultConfig returns the parameters the CLI starts from.
func DefaultConfig() Config {
	return Config{
		ArrivalRate:       1,
		MaxPacketSize:     1,
		SubBufferCount:    1,
		SubBufferCapacity: 1,
		CentralCapacity:   1,
		TransmissionRate:  1,
		TargetPacketCount: 50,
		Policy:            PolicyRoundRobin,
		Seed:              42,
	}
}

// Validate checks every constraint and reports all violations at once.
// Returns nil or a *ConfigurationError.
func (c *Config) Validate() error {
	var errs *multierror.Error
	if !(c.ArrivalRate > 0) {
		errs = multierror.Append(errs, fmt.Errorf("arrival_rate must be > 0, got %v", c.ArrivalRate))
	}
	if c.MaxPacketSize <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("max_packet_size must be > 0, got %d", c.MaxPacketSize))
	}
	if c.SubBufferCount < 1 {
		errs = multierror.Append(errs, fmt.Errorf("sub_buffers must be >= 1, got %d", c.SubBufferCount))
	}
	if c.SubBufferCapacity <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("sub_buffer_capacity must be > 0, got %d", c.SubBufferCapacity))
	}
	if c.CentralCapacity <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("central_capacity must be > 0, got %d", c.CentralCapacity))
	}
	if !(c.TransmissionRate > 0) {
		errs = multierror.Append(errs, fmt.Errorf("transmission_rate must be > 0, got %v", c.TransmissionRate))
	}
	if c.TargetPacketCount <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("packets must be > 0, got %d", c.TargetPacketCount))
	}
	if !IsValidForwardingPolicy(c.Policy) {
		errs = multierror.Append(errs, fmt.Errorf("unknown forwarding policy %q (valid: %v)", c.Policy, ValidForwardingPolicyNames()))
	}
	if errs.ErrorOrNil() == nil {
		return nil
	}
	return newConfigurationError(errs)
}

// LoadConfig reads a YAML scenario file on top of DefaultConfig.
// Unknown keys are rejected. The result is not validated.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("reading scenario: %w", err)
	}
	defer f.Close()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("parsing scenario %s: %w", path, err)
	}
	return cfg, nil
}
