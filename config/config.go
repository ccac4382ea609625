// Package config loads the topology of a co-simulation from a YAML file.
package config

import (
	"os"
	"sort"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/outofforest/tandem"
	"github.com/outofforest/tandem/link"
	"github.com/outofforest/tandem/transport"
	"github.com/outofforest/tandem/wire"
)

// Defaults of the master.
const (
	DefaultListen           = "localhost:7500"
	DefaultTimeout          = 30 * time.Second
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultStep             = 1
	DefaultStop             = 10
)

// Config is the topology: the master and the slave instances it drives.
type Config struct {
	Master    MasterConfig     `yaml:"master"`
	Instances []InstanceConfig `yaml:"instances"`
}

// MasterConfig configures the master process.
type MasterConfig struct {
	Listen           string        `yaml:"listen"`
	Advertise        string        `yaml:"advertise,omitempty"`
	Timeout          time.Duration `yaml:"timeout"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	MaxMessageSize   uint64        `yaml:"max_message_size,omitempty"`
	SharedMemoryDir  string        `yaml:"shared_memory_dir,omitempty"`
	Metrics          string        `yaml:"metrics,omitempty"`

	// Start, Stop and Step define the clock of the master in seconds.
	Start int64 `yaml:"start"`
	Stop  int64 `yaml:"stop"`
	Step  int64 `yaml:"step"`

	// Properties are initial values of the master's properties.
	Properties map[string]float64 `yaml:"properties,omitempty"`
}

// InstanceConfig configures one slave instance.
type InstanceConfig struct {
	Launcher  string   `yaml:"launcher,omitempty"`
	Model     string   `yaml:"model"`
	Transport string   `yaml:"transport,omitempty"`
	Session   uint64   `yaml:"session,omitempty"`
	Flags     string   `yaml:"flags,omitempty"`
	Writes    []string `yaml:"writes,omitempty"`
	Reads     []string `yaml:"reads,omitempty"`
}

// Default returns the config with the default master and no instances.
func Default() *Config {
	return &Config{
		Master: MasterConfig{
			Listen:           DefaultListen,
			Timeout:          DefaultTimeout,
			HandshakeTimeout: DefaultHandshakeTimeout,
			Stop:             DefaultStop,
			Step:             DefaultStep,
		},
	}
}

// Load reads the config from the file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(tandem.ErrConfig, "parsing %s: %s", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config to the file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(os.WriteFile(path, data, 0o644))
}

// Validate checks the config before anything is started.
func (c *Config) Validate() error {
	if c.Master.Step <= 0 {
		return errors.Wrapf(tandem.ErrConfig, "step must be positive, got %d", c.Master.Step)
	}
	if c.Master.Stop < c.Master.Start {
		return errors.Wrapf(tandem.ErrConfig, "stop %d precedes start %d", c.Master.Stop, c.Master.Start)
	}
	for name := range c.Master.Properties {
		if err := wire.ValidateName(name); err != nil {
			return errors.Wrap(tandem.ErrConfig, err.Error())
		}
	}

	sessions := map[uint64]int{}
	for i, inst := range c.Instances {
		if inst.Model == "" {
			return errors.Wrapf(tandem.ErrConfig, "instance %d has no model", i)
		}
		if _, err := transport.ParseKind(inst.Transport); err != nil {
			return errors.Wrapf(tandem.ErrConfig, "instance %d: %s", i, err)
		}
		for _, name := range append(append([]string{}, inst.Writes...), inst.Reads...) {
			if err := wire.ValidateName(name); err != nil {
				return errors.Wrapf(tandem.ErrConfig, "instance %d: %s", i, err)
			}
		}
		if inst.Session != 0 {
			if j, exists := sessions[inst.Session]; exists {
				return errors.Wrapf(tandem.ErrConfig, "instances %d and %d share session %d", j, i, inst.Session)
			}
			sessions[inst.Session] = i
		}
	}
	return nil
}

// MasterConfig returns the config of the master driver.
func (c *Config) MasterConfig() tandem.MasterConfig {
	return tandem.MasterConfig{
		Advertise:        c.Master.Advertise,
		Timeout:          c.Master.Timeout,
		HandshakeTimeout: c.Master.HandshakeTimeout,
		MaxMessageSize:   c.Master.MaxMessageSize,
		SharedMemoryDir:  c.Master.SharedMemoryDir,
	}
}

// InstanceConfigs returns the configs of the instances.
func (c *Config) InstanceConfigs() []tandem.InstanceConfig {
	configs := make([]tandem.InstanceConfig, 0, len(c.Instances))
	for _, inst := range c.Instances {
		kind, _ := transport.ParseKind(inst.Transport)
		configs = append(configs, tandem.InstanceConfig{
			Launcher:  inst.Launcher,
			Model:     inst.Model,
			Transport: kind,
			Session:   wire.SessionID(inst.Session),
			Flags:     inst.Flags,
			Writes:    inst.Writes,
			Reads:     inst.Reads,
		})
	}
	return configs
}

// Values builds the properties of the master: every linked name plus the configured ones,
// all of them float64.
func (c *Config) Values() (*link.Values, error) {
	names := map[string]float64{}
	for _, inst := range c.Instances {
		for _, n := range append(append([]string{}, inst.Writes...), inst.Reads...) {
			names[n] = 0
		}
	}
	for n, v := range c.Master.Properties {
		names[n] = v
	}

	sorted := make([]string, 0, len(names))
	for n := range names {
		sorted = append(sorted, n)
	}
	sort.Strings(sorted)

	values := link.NewValues()
	for _, n := range sorted {
		if err := values.DefineFloat64(n, names[n]); err != nil {
			return nil, errors.Wrap(tandem.ErrConfig, err.Error())
		}
	}
	return values, nil
}
