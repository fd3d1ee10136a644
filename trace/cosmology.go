package trace

import "math"

// Cosmology is a flat Lambda-CDM background, used only for the distance
// ratios that scale deflections between planes in multi-plane tracing.
type Cosmology struct {
	// H0 is the Hubble constant in km/s/Mpc.
	H0 float64
	// OmegaM is the present-day matter density parameter; the dark-energy
	// density is 1 - OmegaM (flatness).
	OmegaM float64
}

// Planck15 returns the cosmology the original modeling toolchain defaults to.
func Planck15() Cosmology { return Cosmology{H0: 67.7, OmegaM: 0.307} }

// hubbleDistanceMpc is c/H0 with c in km/s.
func (c Cosmology) hubbleDistanceMpc() float64 { return 299792.458 / c.H0 }

func (c Cosmology) efunc(z float64) float64 {
	zp := 1 + z
	return math.Sqrt(c.OmegaM*zp*zp*zp + (1 - c.OmegaM))
}

// ComovingDistance returns the line-of-sight comoving distance to redshift z
// in Mpc, by composite Simpson integration of 1/E(z).
func (c Cosmology) ComovingDistance(z float64) float64 {
	if z <= 0 {
		return 0
	}
	const steps = 256 // even
	h := z / steps
	sum := 1/c.efunc(0) + 1/c.efunc(z)
	for i := 1; i < steps; i++ {
		w := 2.0
		if i%2 == 1 {
			w = 4.0
		}
		sum += w / c.efunc(float64(i)*h)
	}
	return c.hubbleDistanceMpc() * sum * h / 3
}

// AngularDiameterDistance returns the angular diameter distance between two
// redshifts in Mpc. For a flat universe it is the comoving-distance
// difference over (1 + z2).
func (c Cosmology) AngularDiameterDistance(z1, z2 float64) float64 {
	return (c.ComovingDistance(z2) - c.ComovingDistance(z1)) / (1 + z2)
}

// ScalingFactor returns the multi-plane deflection scaling
// beta = D(z1, z2) * D(0, zs) / (D(0, z2) * D(z1, zs)): the fraction of the
// deflection accumulated at plane z1 that applies when tracing to plane z2,
// for a final source plane at zs. It is 1 when z2 == zs.
func (c Cosmology) ScalingFactor(z1, z2, zs float64) float64 {
	return c.AngularDiameterDistance(z1, z2) * c.AngularDiameterDistance(0, zs) /
		(c.AngularDiameterDistance(0, z2) * c.AngularDiameterDistance(z1, zs))
}
