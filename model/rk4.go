package model

// Derivative returns the time derivative of the state.
type Derivative func(dst, x []float64, t float64)

// RK4 is the classic fourth-order Runge-Kutta integrator.
type RK4 struct {
	k1, k2, k3, k4 []float64
	scratch        []float64
}

// NewRK4 creates new integrator.
func NewRK4() *RK4 {
	return &RK4{}
}

func (r *RK4) ensureScratch(n int) {
	if len(r.k1) != n {
		r.k1 = make([]float64, n)
		r.k2 = make([]float64, n)
		r.k3 = make([]float64, n)
		r.k4 = make([]float64, n)
		r.scratch = make([]float64, n)
	}
}

// Step advances x in place by dt.
func (r *RK4) Step(f Derivative, x []float64, t, dt float64) {
	n := len(x)
	r.ensureScratch(n)

	f(r.k1, x, t)

	for i := range n {
		r.scratch[i] = x[i] + dt*0.5*r.k1[i]
	}
	f(r.k2, r.scratch, t+dt*0.5)

	for i := range n {
		r.scratch[i] = x[i] + dt*0.5*r.k2[i]
	}
	f(r.k3, r.scratch, t+dt*0.5)

	for i := range n {
		r.scratch[i] = x[i] + dt*r.k3[i]
	}
	f(r.k4, r.scratch, t+dt)

	dt6 := dt / 6.0
	for i := range n {
		x[i] += dt6 * (r.k1[i] + 2*r.k2[i] + 2*r.k3[i] + r.k4[i])
	}
}
