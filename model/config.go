package model

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Defaults of the spring-mass model.
const (
	DefaultMass      = 1.0
	DefaultStiffness = 10.0
	DefaultDamping   = 0.5
	DefaultDt        = 0.01
	DefaultPeriod    = 1
)

// Config describes the spring-mass model run by a slave.
type Config struct {
	// Name is the object name of the exported properties.
	Name      string  `yaml:"name"`
	Mass      float64 `yaml:"mass"`
	Stiffness float64 `yaml:"stiffness"`
	Damping   float64 `yaml:"damping"`
	Position  float64 `yaml:"position"`
	Velocity  float64 `yaml:"velocity"`

	// Dt is the integration step in seconds.
	Dt float64 `yaml:"dt"`

	// Period is the number of seconds after which the model asks to be stepped again.
	// Zero means the model never asks on its own.
	Period int64 `yaml:"period"`
}

// DefaultConfig returns the default config of the model exported as the object.
func DefaultConfig(name string) Config {
	return Config{
		Name:      name,
		Mass:      DefaultMass,
		Stiffness: DefaultStiffness,
		Damping:   DefaultDamping,
		Dt:        DefaultDt,
		Period:    DefaultPeriod,
	}
}

// LoadConfig reads the model config from the YAML file.
func LoadConfig(path string, name string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.WithStack(err)
	}
	config := DefaultConfig(name)
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, errors.Wrapf(err, "parsing %s", path)
	}
	return config, nil
}

// Validate checks the parameters are physically meaningful.
func (c Config) Validate() error {
	switch {
	case c.Name == "":
		return errors.New("model name is empty")
	case c.Mass <= 0:
		return errors.Errorf("mass must be positive, got %f", c.Mass)
	case c.Stiffness < 0:
		return errors.Errorf("stiffness must not be negative, got %f", c.Stiffness)
	case c.Damping < 0:
		return errors.Errorf("damping must not be negative, got %f", c.Damping)
	case c.Dt <= 0:
		return errors.Errorf("dt must be positive, got %f", c.Dt)
	case c.Period < 0:
		return errors.Errorf("period must not be negative, got %d", c.Period)
	}
	return nil
}
