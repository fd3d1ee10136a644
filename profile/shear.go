package profile

import "github.com/gravlens/lensray/grid"

// ExternalShear is the linear tidal field from mass outside the modeled lens,
// in the standard (gamma1, gamma2) components. It has no convergence and a
// constant, exactly analytic Jacobian.
type ExternalShear struct {
	Gamma1 float64
	Gamma2 float64
}

// DeflectionsAt returns the shear deflection at c.
func (p ExternalShear) DeflectionsAt(c grid.Coord) grid.Coord {
	return grid.Coord{
		X: p.Gamma1*c.X + p.Gamma2*c.Y,
		Y: p.Gamma2*c.X - p.Gamma1*c.Y,
	}
}

// ConvergenceAt returns zero: a pure shear carries no surface density.
func (p ExternalShear) ConvergenceAt(grid.Coord) float64 { return 0 }

// JacobianAt returns the constant shear mapping matrix.
func (p ExternalShear) JacobianAt(grid.Coord) Jacobian2 {
	return Jacobian2{
		A11: 1 - p.Gamma1, A12: -p.Gamma2,
		A21: -p.Gamma2, A22: 1 + p.Gamma1,
	}
}
