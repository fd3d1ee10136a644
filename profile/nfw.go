package profile

import (
	"math"

	"github.com/gravlens/lensray/grid"
)

// NFW is the spherical Navarro-Frenk-White profile in the Wright & Brainerd
// (2000) lensing form, parameterized by the characteristic convergence
// KappaS and scale radius ScaleRadius (arcseconds).
type NFW struct {
	Centre      grid.Coord
	KappaS      float64
	ScaleRadius float64
}

func (p NFW) centre() grid.Coord { return p.Centre }

func (p NFW) deflectionMagnitude(r float64) float64 {
	x := r / p.ScaleRadius
	if x < coreRadius {
		x = coreRadius
	}
	return 4 * p.KappaS * p.ScaleRadius * nfwG(x) / x
}

func (p NFW) convergenceRadial(r float64) float64 {
	x := r / p.ScaleRadius
	if x < coreRadius {
		x = coreRadius
	}
	return 2 * p.KappaS * nfwF(x)
}

// DeflectionsAt returns the NFW deflection angle at c.
func (p NFW) DeflectionsAt(c grid.Coord) grid.Coord { return circularDeflections(p, c) }

// ConvergenceAt returns the NFW convergence at c.
func (p NFW) ConvergenceAt(c grid.Coord) float64 { return circularConvergence(p, c) }

// JacobianAt returns the analytic lens mapping matrix at c.
func (p NFW) JacobianAt(c grid.Coord) Jacobian2 { return circularJacobian(p, c) }

// nfwXTol guards the removable singularity of the NFW forms at x = 1.
const nfwXTol = 1e-6

// nfwG is g(x) = ln(x/2) + F(x), the projected mass integrand of the NFW
// deflection.
func nfwG(x float64) float64 {
	switch {
	case x < 1-nfwXTol:
		s := math.Sqrt(1 - x*x)
		return math.Log(x/2) + math.Acosh(1/x)/s
	case x > 1+nfwXTol:
		s := math.Sqrt(x*x - 1)
		return math.Log(x/2) + math.Acos(1/x)/s
	}
	return 1 + math.Log(0.5)
}

// nfwF is the radial convergence shape of Wright & Brainerd eq. 11.
func nfwF(x float64) float64 {
	switch {
	case x < 1-nfwXTol:
		return (1 - 2/math.Sqrt(1-x*x)*math.Atanh(math.Sqrt((1-x)/(1+x)))) / (x*x - 1)
	case x > 1+nfwXTol:
		return (1 - 2/math.Sqrt(x*x-1)*math.Atan(math.Sqrt((x-1)/(x+1)))) / (x*x - 1)
	}
	return 1.0 / 3.0
}
