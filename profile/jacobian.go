package profile

import "github.com/gravlens/lensray/grid"

// jacobianStep is the central-difference step, in arcseconds. Lensing grids
// work at pixel scales of 0.01-0.2 arcsec, so 1e-6 sits well below any
// feature of interest while staying far from float64 cancellation.
const jacobianStep = 1e-6

// deflector is the subset of MassProfile needed to difference a deflection
// field.
type deflector interface {
	DeflectionsAt(c grid.Coord) grid.Coord
}

// NumericalJacobian evaluates A = I - d(alpha)/d(theta) by central finite
// differences of the deflection field. It is the fallback for profiles with
// no cheap analytic derivative (the elliptical isothermal) and is also used
// by tests to cross-check the analytic forms.
func NumericalJacobian(p deflector, c grid.Coord) Jacobian2 {
	h := jacobianStep
	axp := p.DeflectionsAt(grid.Coord{X: c.X + h, Y: c.Y})
	axm := p.DeflectionsAt(grid.Coord{X: c.X - h, Y: c.Y})
	ayp := p.DeflectionsAt(grid.Coord{X: c.X, Y: c.Y + h})
	aym := p.DeflectionsAt(grid.Coord{X: c.X, Y: c.Y - h})

	inv := 1.0 / (2 * h)
	return Jacobian2{
		A11: 1 - (axp.X-axm.X)*inv,
		A12: -(ayp.X - aym.X) * inv,
		A21: -(axp.Y - axm.Y) * inv,
		A22: 1 - (ayp.Y-aym.Y)*inv,
	}
}
