package profile

import (
	"math"

	"github.com/gravlens/lensray/grid"
)

// PowerLaw is the circular power-law profile with 3D density slope Slope
// (gamma). Slope 2 reduces to the singular isothermal sphere. Physical
// models use Slope in (1, 3).
type PowerLaw struct {
	Centre         grid.Coord
	EinsteinRadius float64
	Slope          float64
}

func (p PowerLaw) centre() grid.Coord { return p.Centre }

func (p PowerLaw) deflectionMagnitude(r float64) float64 {
	// alpha(r) = thetaE * (thetaE/r)^(gamma-2)
	return p.EinsteinRadius * math.Pow(p.EinsteinRadius/r, p.Slope-2)
}

func (p PowerLaw) convergenceRadial(r float64) float64 {
	return (3 - p.Slope) / 2 * math.Pow(p.EinsteinRadius/r, p.Slope-1)
}

// DeflectionsAt returns the power-law deflection angle at c.
func (p PowerLaw) DeflectionsAt(c grid.Coord) grid.Coord { return circularDeflections(p, c) }

// ConvergenceAt returns the power-law convergence at c.
func (p PowerLaw) ConvergenceAt(c grid.Coord) float64 { return circularConvergence(p, c) }

// JacobianAt returns the analytic lens mapping matrix at c.
func (p PowerLaw) JacobianAt(c grid.Coord) Jacobian2 { return circularJacobian(p, c) }

// PointMass is the point-mass (Schwarzschild) lens.
type PointMass struct {
	Centre         grid.Coord
	EinsteinRadius float64
}

func (p PointMass) centre() grid.Coord { return p.Centre }

func (p PointMass) deflectionMagnitude(r float64) float64 {
	return p.EinsteinRadius * p.EinsteinRadius / r
}

func (p PointMass) convergenceRadial(float64) float64 { return 0 }

// DeflectionsAt returns the point-mass deflection angle at c.
func (p PointMass) DeflectionsAt(c grid.Coord) grid.Coord { return circularDeflections(p, c) }

// ConvergenceAt returns zero everywhere away from the (clamped) centre.
func (p PointMass) ConvergenceAt(c grid.Coord) float64 { return circularConvergence(p, c) }

// JacobianAt returns the analytic lens mapping matrix at c.
func (p PointMass) JacobianAt(c grid.Coord) Jacobian2 { return circularJacobian(p, c) }
