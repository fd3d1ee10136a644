package profile_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gravlens/lensray/grid"
	"github.com/gravlens/lensray/profile"
)

// The SIS deflection has magnitude thetaE everywhere, pointing radially.
func TestSISClosedForm(t *testing.T) {
	sis := profile.Isothermal{EinsteinRadius: 1.2, AxisRatio: 1.0}

	cases := []grid.Coord{
		{X: 2.0, Y: 0.0},
		{X: 0.0, Y: -3.0},
		{X: 1.0, Y: 1.0},
		{X: 0.05, Y: 0.0},
	}
	for _, c := range cases {
		a := sis.DeflectionsAt(c)
		r := math.Hypot(c.X, c.Y)
		assert.InDelta(t, 1.2, math.Hypot(a.X, a.Y), 1e-10, "deflection magnitude at %+v", c)
		assert.InDelta(t, c.X/r*1.2, a.X, 1e-10)
		assert.InDelta(t, c.Y/r*1.2, a.Y, 1e-10)
	}

	// Convergence on the symmetry axis: kappa = thetaE / 2r.
	assert.InDelta(t, 1.2/4.0, sis.ConvergenceAt(grid.Coord{X: 2, Y: 0}), 1e-12)
}

// Coordinates arbitrarily close to the singular centre must produce a large
// but finite deflection, never NaN.
func TestSingularCentreIsBounded(t *testing.T) {
	profiles := []profile.MassProfile{
		profile.Isothermal{EinsteinRadius: 1.0, AxisRatio: 1.0},
		profile.Isothermal{EinsteinRadius: 1.0, AxisRatio: 0.7},
		profile.PowerLaw{EinsteinRadius: 1.0, Slope: 2.2},
		profile.NFW{KappaS: 0.3, ScaleRadius: 2.0},
		profile.PointMass{EinsteinRadius: 1.0},
	}
	for _, p := range profiles {
		a := p.DeflectionsAt(grid.Coord{X: 1e-15, Y: 0})
		assert.False(t, math.IsNaN(a.X) || math.IsNaN(a.Y), "%T deflection is NaN at the centre", p)
		assert.False(t, math.IsInf(a.X, 0) || math.IsInf(a.Y, 0), "%T deflection is Inf at the centre", p)
		k := p.ConvergenceAt(grid.Coord{})
		assert.False(t, math.IsNaN(k), "%T convergence is NaN at the centre", p)
	}
}

// An SIE with axis ratio approaching 1 must converge to the SIS.
func TestSIEReducesToSIS(t *testing.T) {
	sis := profile.Isothermal{EinsteinRadius: 1.0, AxisRatio: 1.0}
	sie := profile.Isothermal{EinsteinRadius: 1.0, AxisRatio: 0.999}

	for _, c := range []grid.Coord{{X: 1.5, Y: 0.3}, {X: -0.7, Y: 1.1}} {
		a := sis.DeflectionsAt(c)
		b := sie.DeflectionsAt(c)
		assert.InDelta(t, a.X, b.X, 2e-3)
		assert.InDelta(t, a.Y, b.Y, 2e-3)
	}
}

// Rotating an SIE by its position angle must rotate its deflection field.
func TestSIEPositionAngle(t *testing.T) {
	flat := profile.Isothermal{EinsteinRadius: 1.0, AxisRatio: 0.5}
	rot := profile.Isothermal{EinsteinRadius: 1.0, AxisRatio: 0.5, PositionAngle: 90}

	a := flat.DeflectionsAt(grid.Coord{X: 1.0, Y: 0.4})
	// The 90-degree rotated profile evaluated at the 90-degree rotated
	// coordinate must give the rotated deflection: (x,y)->(-y,x).
	b := rot.DeflectionsAt(grid.Coord{X: -0.4, Y: 1.0})
	assert.InDelta(t, -a.Y, b.X, 1e-10)
	assert.InDelta(t, a.X, b.Y, 1e-10)
}

// The analytic Jacobians of the circular profiles must agree with central
// finite differencing of their deflection fields.
func TestAnalyticJacobianMatchesNumerical(t *testing.T) {
	cases := []struct {
		name string
		p    profile.MassProfile
	}{
		{"SIS", profile.Isothermal{EinsteinRadius: 1.3, AxisRatio: 1.0}},
		{"PowerLaw", profile.PowerLaw{EinsteinRadius: 1.1, Slope: 2.3}},
		{"NFW", profile.NFW{KappaS: 0.25, ScaleRadius: 3.0}},
		{"PointMass", profile.PointMass{EinsteinRadius: 0.8}},
		{"Shear", profile.ExternalShear{Gamma1: 0.05, Gamma2: -0.03}},
	}
	coords := []grid.Coord{{X: 1.4, Y: 0.2}, {X: -0.6, Y: -0.9}, {X: 0.1, Y: 2.2}}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for _, c := range coords {
				got := tc.p.JacobianAt(c)
				want := profile.NumericalJacobian(tc.p, c)
				assert.InDelta(t, want.A11, got.A11, 1e-6)
				assert.InDelta(t, want.A12, got.A12, 1e-6)
				assert.InDelta(t, want.A21, got.A21, 1e-6)
				assert.InDelta(t, want.A22, got.A22, 1e-6)
			}
		})
	}
}

// For the SIS, kappa = gamma = thetaE/2r, so the tangential eigenvalue is
// 1 - thetaE/r and the radial eigenvalue is exactly 1.
func TestSISEigenvalues(t *testing.T) {
	sis := profile.Isothermal{EinsteinRadius: 1.0, AxisRatio: 1.0}

	j := sis.JacobianAt(grid.Coord{X: 2.0, Y: 0})
	tang, rad := j.Eigenvalues()
	assert.InDelta(t, 0.5, tang, 1e-10)
	assert.InDelta(t, 1.0, rad, 1e-10)

	// Outside the Einstein radius images have positive parity, inside negative.
	assert.Equal(t, 1, sis.JacobianAt(grid.Coord{X: 2, Y: 0}).Parity())
	assert.Equal(t, -1, sis.JacobianAt(grid.Coord{X: 0.5, Y: 0}).Parity())
}

// Superposed profiles sum deflections, convergences and deflection gradients.
func TestSetSuperposition(t *testing.T) {
	a := profile.Isothermal{EinsteinRadius: 0.8, AxisRatio: 1.0}
	b := profile.ExternalShear{Gamma1: 0.1}
	set := profile.Set{a, b}

	c := grid.Coord{X: 1.0, Y: 0.5}
	da, db := a.DeflectionsAt(c), b.DeflectionsAt(c)
	got := set.DeflectionsAt(c)
	assert.InDelta(t, da.X+db.X, got.X, 1e-12)
	assert.InDelta(t, da.Y+db.Y, got.Y, 1e-12)

	assert.InDelta(t, a.ConvergenceAt(c), set.ConvergenceAt(c), 1e-12)

	want := profile.NumericalJacobian(set, c)
	j := set.JacobianAt(c)
	assert.InDelta(t, want.A11, j.A11, 1e-6)
	assert.InDelta(t, want.A22, j.A22, 1e-6)
}

// Point-mass magnification: for a source at beta the two images sit at
// theta+- = (beta +- sqrt(beta^2+4thetaE^2))/2, with known magnifications.
func TestPointMassMagnification(t *testing.T) {
	pm := profile.PointMass{EinsteinRadius: 1.0}
	beta := 0.5
	disc := math.Sqrt(beta*beta + 4)
	thetaPlus := (beta + disc) / 2
	thetaMinus := (beta - disc) / 2

	// Both positions solve the lens equation.
	for _, th := range []float64{thetaPlus, thetaMinus} {
		a := pm.DeflectionsAt(grid.Coord{X: th})
		assert.InDelta(t, beta, th-a.X, 1e-10)
	}

	// u = beta/thetaE; mu+- = (u^2+2)/(2u sqrt(u^2+4)) +- 1/2.
	u := beta
	muPlus := (u*u+2)/(2*u*math.Sqrt(u*u+4)) + 0.5
	muMinus := muPlus - 1

	jp := pm.JacobianAt(grid.Coord{X: thetaPlus})
	jm := pm.JacobianAt(grid.Coord{X: thetaMinus})
	require.InDelta(t, muPlus, jp.Magnification(), 1e-8)
	require.InDelta(t, -muMinus, jm.Magnification(), 1e-8)
	assert.Equal(t, 1, jp.Parity())
	assert.Equal(t, -1, jm.Parity())
}

func TestNFWConvergenceContinuity(t *testing.T) {
	nfw := profile.NFW{KappaS: 0.4, ScaleRadius: 1.0}
	// The x=1 removable singularity must be smooth.
	below := nfw.ConvergenceAt(grid.Coord{X: 1 - 1e-7})
	at := nfw.ConvergenceAt(grid.Coord{X: 1})
	above := nfw.ConvergenceAt(grid.Coord{X: 1 + 1e-7})
	assert.InDelta(t, at, below, 1e-4)
	assert.InDelta(t, at, above, 1e-4)
	assert.InDelta(t, 2*0.4/3, at, 1e-6)
}
