package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/outofforest/tandem"
	"github.com/outofforest/tandem/transport"
)

const topology = `
master:
  listen: 0.0.0.0:7600
  timeout: 2s
  stop: 60
  step: 5
  properties:
    ctl.gain: 1.5
instances:
  - launcher: 10.0.0.2:7700
    model: spring_mass
    transport: shm
    flags: --name plant
    writes: [plant.force]
    reads: [plant.position, plant.velocity]
  - model: spring_mass
    writes: [other.force]
`

func TestLoad(t *testing.T) {
	requireT := require.New(t)

	path := filepath.Join(t.TempDir(), "topology.yaml")
	requireT.NoError(os.WriteFile(path, []byte(topology), 0o600))

	cfg, err := Load(path)
	requireT.NoError(err)
	requireT.Equal("0.0.0.0:7600", cfg.Master.Listen)
	requireT.Equal(2*time.Second, cfg.Master.Timeout)
	requireT.Equal(DefaultHandshakeTimeout, cfg.Master.HandshakeTimeout)
	requireT.EqualValues(60, cfg.Master.Stop)
	requireT.EqualValues(5, cfg.Master.Step)
	requireT.Len(cfg.Instances, 2)

	instances := cfg.InstanceConfigs()
	requireT.Equal(transport.SharedMemory, instances[0].Transport)
	requireT.Equal(transport.Socket, instances[1].Transport)
	requireT.Equal("10.0.0.2:7700", instances[0].Launcher)
	requireT.Equal([]string{"plant.position", "plant.velocity"}, instances[0].Reads)

	values, err := cfg.Values()
	requireT.NoError(err)
	gain, err := values.Float64("ctl.gain")
	requireT.NoError(err)
	requireT.InDelta(1.5, gain, 0)
	for _, n := range []string{"plant.force", "plant.position", "plant.velocity", "other.force"} {
		_, err := values.Resolve(n)
		requireT.NoError(err)
	}
}

func TestSaveAndLoad(t *testing.T) {
	requireT := require.New(t)

	cfg := Default()
	cfg.Instances = append(cfg.Instances, InstanceConfig{
		Model:   "spring_mass",
		Session: 42,
		Writes:  []string{"plant.force"},
	})

	path := filepath.Join(t.TempDir(), "topology.yaml")
	requireT.NoError(Save(path, cfg))

	loaded, err := Load(path)
	requireT.NoError(err)
	requireT.Equal(cfg, loaded)
}

func TestValidate(t *testing.T) {
	requireT := require.New(t)

	for name, mutate := range map[string]func(cfg *Config){
		"zero step":         func(cfg *Config) { cfg.Master.Step = 0 },
		"stop before start": func(cfg *Config) { cfg.Master.Start = 100 },
		"no model":          func(cfg *Config) { cfg.Instances[0].Model = "" },
		"bad transport":     func(cfg *Config) { cfg.Instances[0].Transport = "udp" },
		"bad name":          func(cfg *Config) { cfg.Instances[0].Writes = []string{"force"} },
		"shared session": func(cfg *Config) {
			cfg.Instances[0].Session = 7
			cfg.Instances = append(cfg.Instances, cfg.Instances[0])
		},
	} {
		cfg := Default()
		cfg.Instances = []InstanceConfig{{Model: "spring_mass", Writes: []string{"plant.force"}}}
		requireT.NoError(cfg.Validate(), name)

		mutate(cfg)
		requireT.ErrorIs(cfg.Validate(), tandem.ErrConfig, name)
	}
}
