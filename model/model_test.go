package model

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/outofforest/qa"
	"github.com/outofforest/tandem/wire"
)

func TestRK4ExponentialDecay(t *testing.T) {
	requireT := require.New(t)

	rk4 := NewRK4()
	x := []float64{1}
	decay := func(dst, x []float64, _ float64) {
		dst[0] = -x[0]
	}

	const dt = 0.1
	for i := range 10 {
		rk4.Step(decay, x, float64(i)*dt, dt)
	}
	requireT.InDelta(math.Exp(-1), x[0], 1e-6)
}

func TestSpringMassSettlesUnderForce(t *testing.T) {
	requireT := require.New(t)
	ctx := qa.NewContext(t)

	config := DefaultConfig("plant")
	config.Damping = 2
	s, err := NewSpringMass(config)
	requireT.NoError(err)

	requireT.NoError(s.Values().SetFloat64("plant.force", 5))
	next, err := s.Advance(ctx, 30)
	requireT.NoError(err)
	requireT.Equal(wire.Timestamp(31), next)

	position, err := s.Values().Float64("plant.position")
	requireT.NoError(err)
	requireT.InDelta(0.5, position, 1e-3)
	velocity, err := s.Values().Float64("plant.velocity")
	requireT.NoError(err)
	requireT.InDelta(0, velocity, 1e-3)
}

func TestSpringMassConservesEnergyWithoutDamping(t *testing.T) {
	requireT := require.New(t)
	ctx := qa.NewContext(t)

	config := DefaultConfig("osc")
	config.Damping = 0
	config.Position = 1
	config.Period = 0
	s, err := NewSpringMass(config)
	requireT.NoError(err)
	initial := s.Energy()

	next, err := s.Advance(ctx, 10)
	requireT.NoError(err)
	requireT.Equal(wire.Never, next)
	requireT.True(s.HardEvent())
	requireT.InEpsilon(initial, s.Energy(), 1e-4)

	// Already at the requested time, nothing happens.
	position, err := s.Values().Float64("osc.position")
	requireT.NoError(err)
	_, err = s.Advance(ctx, 10)
	requireT.NoError(err)
	requireT.False(s.HardEvent())
	position2, err := s.Values().Float64("osc.position")
	requireT.NoError(err)
	requireT.InDelta(position, position2, 0)
}

func TestConfig(t *testing.T) {
	requireT := require.New(t)

	path := filepath.Join(t.TempDir(), "plant.yaml")
	requireT.NoError(os.WriteFile(path, []byte("mass: 2\nstiffness: 8\nperiod: 5\n"), 0o600))

	config, err := LoadConfig(path, "plant")
	requireT.NoError(err)
	requireT.Equal("plant", config.Name)
	requireT.InDelta(2.0, config.Mass, 0)
	requireT.InDelta(8.0, config.Stiffness, 0)
	requireT.InDelta(DefaultDamping, config.Damping, 0)
	requireT.EqualValues(5, config.Period)
	requireT.NoError(config.Validate())

	config.Mass = 0
	requireT.Error(config.Validate())

	_, err = NewSpringMass(Config{Name: "broken"})
	requireT.Error(err)
}
