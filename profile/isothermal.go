package profile

import (
	"math"

	"github.com/gravlens/lensray/grid"
)

// Isothermal is the singular isothermal profile. With AxisRatio 1 it is the
// singular isothermal sphere (SIS); with AxisRatio < 1 it is the singular
// isothermal ellipsoid (SIE) in the Kormann et al. (1994) form, with the
// Einstein radius defined on the intermediate axis.
type Isothermal struct {
	Centre grid.Coord
	// EinsteinRadius in arcseconds.
	EinsteinRadius float64
	// AxisRatio is the minor-to-major axis ratio q, in (0, 1].
	AxisRatio float64
	// PositionAngle is the major-axis angle in degrees, counter-clockwise
	// from the positive x-axis.
	PositionAngle float64
}

// nearSpherical is the axis ratio above which the SIE formulae lose precision
// (the sqrt(1-q^2) denominators vanish) and the SIS closed form takes over.
const nearSpherical = 0.9999

// DeflectionsAt returns the isothermal deflection angle at c.
func (p Isothermal) DeflectionsAt(c grid.Coord) grid.Coord {
	if p.AxisRatio >= nearSpherical {
		return circularDeflections(sisAdapter{p}, c)
	}
	x, y := toProfileFrame(c, p.Centre, p.PositionAngle)
	q := p.AxisRatio
	psi := math.Sqrt(q*q*x*x + y*y)
	if psi < coreRadius {
		psi = coreRadius
	}
	e := math.Sqrt(1 - q*q)
	factor := p.EinsteinRadius * math.Sqrt(q) / e
	ax := factor * math.Atan(e*x/psi)
	ay := factor * math.Atanh(e*y/psi)
	return fromProfileFrame(ax, ay, p.PositionAngle)
}

// ConvergenceAt returns the isothermal convergence at c.
func (p Isothermal) ConvergenceAt(c grid.Coord) float64 {
	if p.AxisRatio >= nearSpherical {
		return circularConvergence(sisAdapter{p}, c)
	}
	x, y := toProfileFrame(c, p.Centre, p.PositionAngle)
	q := p.AxisRatio
	psi := math.Sqrt(q*q*x*x + y*y)
	if psi < coreRadius {
		psi = coreRadius
	}
	return p.EinsteinRadius * math.Sqrt(q) / (2 * psi)
}

// JacobianAt returns the lens mapping matrix at c. The spherical case is
// analytic; the elliptical case uses central finite differences (see
// NumericalJacobian), which fixes the sign conventions used for image parity.
func (p Isothermal) JacobianAt(c grid.Coord) Jacobian2 {
	if p.AxisRatio >= nearSpherical {
		return circularJacobian(sisAdapter{p}, c)
	}
	return NumericalJacobian(p, c)
}

// sisAdapter exposes the SIS closed form through the circular helper.
type sisAdapter struct{ p Isothermal }

func (a sisAdapter) centre() grid.Coord { return a.p.Centre }

func (a sisAdapter) deflectionMagnitude(float64) float64 { return a.p.EinsteinRadius }

func (a sisAdapter) convergenceRadial(r float64) float64 { return a.p.EinsteinRadius / (2 * r) }

// toProfileFrame shifts c by the centre and rotates it into the frame where
// the profile's major axis lies along x.
func toProfileFrame(c, centre grid.Coord, positionAngleDeg float64) (x, y float64) {
	dx := c.X - centre.X
	dy := c.Y - centre.Y
	phi := positionAngleDeg * math.Pi / 180.0
	cos, sin := math.Cos(phi), math.Sin(phi)
	return dx*cos + dy*sin, -dx*sin + dy*cos
}

// fromProfileFrame rotates a profile-frame vector back to the sky frame.
func fromProfileFrame(ax, ay, positionAngleDeg float64) grid.Coord {
	phi := positionAngleDeg * math.Pi / 180.0
	cos, sin := math.Cos(phi), math.Sin(phi)
	return grid.Coord{X: ax*cos - ay*sin, Y: ax*sin + ay*cos}
}
