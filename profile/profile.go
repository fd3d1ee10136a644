// Package profile implements analytic mass profiles for gravitational lensing.
//
// Every profile is a pure function of image-plane coordinates exposing the
// capability interface MassProfile: reduced deflection angles, convergence and
// the lensing Jacobian. Profiles superpose by summing deflection vectors, which
// a Set does for a whole collection at once.
//
// Sign conventions: the Jacobian returned everywhere is A = I - d(alpha)/d(theta),
// the matrix of the lens mapping beta = theta - alpha(theta). Magnification is
// 1/det A and image parity is sign(det A).
package profile

import (
	"math"

	"github.com/gravlens/lensray/grid"
)

// coreRadius is the clamp applied to coordinates arbitrarily close to a
// profile's singular centre, so callers get a large bounded deflection
// instead of a NaN.
const coreRadius = 1e-8

// MassProfile is the capability interface all analytic profiles implement.
type MassProfile interface {
	// DeflectionsAt returns the reduced deflection angle at the coordinate.
	DeflectionsAt(c grid.Coord) grid.Coord
	// ConvergenceAt returns the dimensionless surface density at the coordinate.
	ConvergenceAt(c grid.Coord) float64
	// JacobianAt returns A = I - d(alpha)/d(theta) at the coordinate.
	JacobianAt(c grid.Coord) Jacobian2
}

// Jacobian2 is the 2x2 lens-mapping matrix A = I - d(alpha)/d(theta).
type Jacobian2 struct {
	A11, A12 float64
	A21, A22 float64
}

// Identity returns the identity mapping (no lensing).
func Identity() Jacobian2 { return Jacobian2{A11: 1, A22: 1} }

// Det returns the determinant of the mapping.
func (j Jacobian2) Det() float64 { return j.A11*j.A22 - j.A12*j.A21 }

// Magnification returns 1/det. It diverges on critical curves; callers that
// sample near one should expect very large values, not errors.
func (j Jacobian2) Magnification() float64 { return 1.0 / j.Det() }

// Parity returns +1 for positive-parity images, -1 for negative parity,
// and 0 exactly on a critical curve.
func (j Jacobian2) Parity() int {
	d := j.Det()
	switch {
	case d > 0:
		return 1
	case d < 0:
		return -1
	}
	return 0
}

// Convergence returns the effective convergence 1 - tr(A)/2 implied by the
// mapping. For a pure gravitational lens this equals the surface density.
func (j Jacobian2) Convergence() float64 { return 1.0 - (j.A11+j.A22)/2.0 }

// Shear returns the magnitude of the effective shear implied by the mapping.
func (j Jacobian2) Shear() float64 {
	g1 := (j.A22 - j.A11) / 2.0
	g2 := -(j.A12 + j.A21) / 2.0
	return hypot2(g1, g2)
}

// Eigenvalues returns the tangential and radial eigenvalues
// (1-kappa-gamma, 1-kappa+gamma). The tangential one vanishes on tangential
// critical curves, the radial one on radial critical curves.
func (j Jacobian2) Eigenvalues() (tangential, radial float64) {
	k := j.Convergence()
	g := j.Shear()
	return 1 - k - g, 1 - k + g
}

// add accumulates the deflection-gradient part of o into j, keeping the
// identity counted exactly once: both inputs are I - d(alpha), so the sum of
// the gradients is j + o - I.
func (j Jacobian2) add(o Jacobian2) Jacobian2 {
	return Jacobian2{
		A11: j.A11 + o.A11 - 1,
		A12: j.A12 + o.A12,
		A21: j.A21 + o.A21,
		A22: j.A22 + o.A22 - 1,
	}
}

// Set is a collection of mass profiles treated as a single thin lens by
// superposition.
type Set []MassProfile

// DeflectionsAt sums the member deflections.
func (s Set) DeflectionsAt(c grid.Coord) grid.Coord {
	var sum grid.Coord
	for _, p := range s {
		d := p.DeflectionsAt(c)
		sum.X += d.X
		sum.Y += d.Y
	}
	return sum
}

// ConvergenceAt sums the member convergences.
func (s Set) ConvergenceAt(c grid.Coord) float64 {
	sum := 0.0
	for _, p := range s {
		sum += p.ConvergenceAt(c)
	}
	return sum
}

// JacobianAt sums the member deflection gradients.
func (s Set) JacobianAt(c grid.Coord) Jacobian2 {
	j := Identity()
	for _, p := range s {
		j = j.add(p.JacobianAt(c))
	}
	return j
}

func hypot2(a, b float64) float64 {
	// math.Hypot is overkill for well-scaled lensing quantities.
	return math.Sqrt(a*a + b*b)
}
