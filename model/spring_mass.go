// Package model contains sub-models runnable by slaves.
package model

import (
	"context"
	"math"

	"github.com/pkg/errors"

	"github.com/outofforest/tandem/link"
	"github.com/outofforest/tandem/wire"
)

// Property names of the spring-mass model, relative to its object name.
const (
	PropertyPosition = "position"
	PropertyVelocity = "velocity"
	PropertyForce    = "force"
)

// SpringMass is a damped mass on a spring driven by an external force.
// The force is an input, position and velocity are outputs.
type SpringMass struct {
	config Config
	values *link.Values
	rk4    *RK4

	state     []float64
	time      float64
	force     float64
	hardEvent bool
}

// NewSpringMass creates the model and defines its properties.
func NewSpringMass(config Config) (*SpringMass, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	values := link.NewValues()
	s := &SpringMass{
		config: config,
		values: values,
		rk4:    NewRK4(),
		state:  []float64{config.Position, config.Velocity},
	}
	for name, v := range map[string]float64{
		PropertyPosition: config.Position,
		PropertyVelocity: config.Velocity,
		PropertyForce:    0,
	} {
		if err := values.DefineFloat64(s.property(name), v); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Values returns the properties of the model.
func (s *SpringMass) Values() *link.Values {
	return s.values
}

// Advance integrates the model up to the time.
func (s *SpringMass) Advance(ctx context.Context, until wire.Timestamp) (wire.Timestamp, error) {
	force, err := s.values.Float64(s.property(PropertyForce))
	if err != nil {
		return wire.Invalid, err
	}
	s.force = force
	s.hardEvent = false

	end := float64(until)
	for i := 0; s.time < end; i++ {
		if i%1024 == 0 && ctx.Err() != nil {
			return wire.Invalid, errors.WithStack(ctx.Err())
		}

		dt := math.Min(s.config.Dt, end-s.time)
		before := s.state[0]
		s.rk4.Step(s.derive, s.state, s.time, dt)
		s.time += dt
		if end-s.time < 1e-9 {
			s.time = end
		}
		if before != 0 && math.Signbit(before) != math.Signbit(s.state[0]) {
			s.hardEvent = true
		}
	}
	if math.IsNaN(s.state[0]) || math.IsInf(s.state[0], 0) {
		return wire.Invalid, errors.Errorf("model %s diverged at %s", s.config.Name, until)
	}

	if err := s.values.SetFloat64(s.property(PropertyPosition), s.state[0]); err != nil {
		return wire.Invalid, err
	}
	if err := s.values.SetFloat64(s.property(PropertyVelocity), s.state[1]); err != nil {
		return wire.Invalid, err
	}

	if s.config.Period == 0 {
		return wire.Never, nil
	}
	return until + wire.Timestamp(s.config.Period), nil
}

// HardEvent reports whether the mass crossed its rest position during the last step.
func (s *SpringMass) HardEvent() bool {
	return s.hardEvent
}

// Energy returns the mechanical energy of the system.
func (s *SpringMass) Energy() float64 {
	pos, vel := s.state[0], s.state[1]
	return 0.5*s.config.Mass*vel*vel + 0.5*s.config.Stiffness*pos*pos
}

func (s *SpringMass) derive(dst, x []float64, _ float64) {
	pos, vel := x[0], x[1]
	dst[0] = vel
	dst[1] = (s.force - s.config.Stiffness*pos - s.config.Damping*vel) / s.config.Mass
}

func (s *SpringMass) property(name string) string {
	return s.config.Name + "." + name
}
