package profile

import (
	"math"

	"github.com/gravlens/lensray/grid"
)

// circular captures what an axisymmetric profile needs to provide: the
// deflection magnitude and convergence as functions of radius from the centre.
// Deflections and Jacobians then follow from axisymmetry alone.
//
// For an axisymmetric lens alpha(r) = (2/r) * integral of kappa(r') r' dr',
// so d(alpha)/dr = 2*kappa(r) - alpha(r)/r. That identity gives every
// circular profile an analytic Jacobian without per-profile derivative code.
type circular interface {
	centre() grid.Coord
	deflectionMagnitude(r float64) float64
	convergenceRadial(r float64) float64
}

func circularDeflections(p circular, c grid.Coord) grid.Coord {
	dx := c.X - p.centre().X
	dy := c.Y - p.centre().Y
	r := math.Sqrt(dx*dx + dy*dy)
	if r < coreRadius {
		r = coreRadius
	}
	a := p.deflectionMagnitude(r)
	return grid.Coord{X: a * dx / r, Y: a * dy / r}
}

func circularConvergence(p circular, c grid.Coord) float64 {
	dx := c.X - p.centre().X
	dy := c.Y - p.centre().Y
	r := math.Sqrt(dx*dx + dy*dy)
	if r < coreRadius {
		r = coreRadius
	}
	return p.convergenceRadial(r)
}

func circularJacobian(p circular, c grid.Coord) Jacobian2 {
	dx := c.X - p.centre().X
	dy := c.Y - p.centre().Y
	r := math.Sqrt(dx*dx + dy*dy)
	if r < coreRadius {
		r = coreRadius
	}
	a := p.deflectionMagnitude(r)
	aOverR := a / r
	da := 2*p.convergenceRadial(r) - aOverR // d(alpha)/dr

	// Gradient of alpha in Cartesian components, from the radial/tangential split:
	// d(alpha)/d(theta) = (alpha/r) I + (da - alpha/r) rhat rhat^T.
	cx := dx / r
	cy := dy / r
	diff := da - aOverR
	return Jacobian2{
		A11: 1 - (aOverR + diff*cx*cx),
		A12: -diff * cx * cy,
		A21: -diff * cx * cy,
		A22: 1 - (aOverR + diff*cy*cy),
	}
}
