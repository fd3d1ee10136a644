package main

import (
	"fmt"

	"github.com/gravlens/lensray/grid"
	"github.com/gravlens/lensray/profile"
	"github.com/gravlens/lensray/trace"
)

// Scenario is a fully validated parameter file: the lens system, the point
// source to solve for, and the optional pixelized-reconstruction demo.
type Scenario struct {
	Title string

	WindowHalfWidth float64
	WindowSamples   int

	Source grid.Coord

	// Lenses and LensRedshifts run in parallel; redshift 0 means the lens
	// has no plane assignment and the scenario is single-plane.
	Lenses         []profile.MassProfile
	LensRedshifts  []float64
	SourceRedshift float64
	Cosmology      trace.Cosmology

	SeedPitch       float64
	SolverTolerance float64

	Inversion *InversionSpec

	OutputFolder string
}

// InversionSpec configures the simulated-dataset reconstruction demo.
type InversionSpec struct {
	GridSize    int
	PixelScale  float64
	SubSize     int
	SourceCells int

	SourceSigma float64
	SourceFlux  float64

	PSFSigma   float64
	NoiseSigma float64
	RegCoeff   float64
}

// MultiPlane reports whether any lens carries a redshift assignment.
func (s *Scenario) MultiPlane() bool {
	for _, z := range s.LensRedshifts {
		if z > 0 {
			return true
		}
	}
	return false
}

func getLeafValue(jsonTable map[string]interface{}, path ...string) (interface{}, bool) {
	var cur interface{} = jsonTable
	for _, p := range path {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = m[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func floatField(m map[string]interface{}, key string, dst *float64, required bool, path ...string) (string, bool) {
	v, ok := getLeafValue(m, append(path, key)...)
	if !ok {
		if required {
			return fieldPath(key, path) + ": not found", false
		}
		return "", true
	}
	value, ok := v.(float64)
	if !ok {
		return fieldPath(key, path) + ": is not a float64", false
	}
	*dst = value
	return "", true
}

func fieldPath(key string, path []string) string {
	out := ""
	for _, p := range path {
		out += p + "."
	}
	return out + key
}

// validateScenario checks the parsed parameter file and fills the scenario,
// applying defaults for the optional fields. It returns a description of the
// first problem found.
func validateScenario(jsonTable map[string]interface{}) (*Scenario, string, bool) {
	s := &Scenario{
		WindowHalfWidth: 3.0,
		WindowSamples:   400,
		SeedPitch:       0.05,
		SolverTolerance: 1e-6,
		Cosmology:       trace.Planck15(),
		OutputFolder:    ".",
	}

	title, ok := getLeafValue(jsonTable, "title")
	if ok {
		s.Title, ok = title.(string)
		if !ok {
			return nil, "title: is not a string", false
		}
	}

	folder, ok := getLeafValue(jsonTable, "output_folder")
	if ok {
		s.OutputFolder, ok = folder.(string)
		if !ok {
			return nil, "output_folder: is not a string", false
		}
	}

	if msg, ok := floatField(jsonTable, "window_half_width_arcsec", &s.WindowHalfWidth, false); !ok {
		return nil, msg, false
	}
	if s.WindowHalfWidth <= 0 {
		return nil, "window_half_width_arcsec: must be positive", false
	}

	samples := float64(s.WindowSamples)
	if msg, ok := floatField(jsonTable, "window_samples", &samples, false); !ok {
		return nil, msg, false
	}
	s.WindowSamples = int(samples)
	if s.WindowSamples < 2 {
		return nil, "window_samples: must be at least 2", false
	}

	if _, ok := getLeafValue(jsonTable, "source"); !ok {
		return nil, "source group not found and is required.", false
	}
	if msg, ok := floatField(jsonTable, "x_arcsec", &s.Source.X, true, "source"); !ok {
		return nil, msg, false
	}
	if msg, ok := floatField(jsonTable, "y_arcsec", &s.Source.Y, true, "source"); !ok {
		return nil, msg, false
	}

	if msg, ok := floatField(jsonTable, "seed_pitch_arcsec", &s.SeedPitch, false, "solver"); !ok {
		return nil, msg, false
	}
	if msg, ok := floatField(jsonTable, "tolerance_arcsec", &s.SolverTolerance, false, "solver"); !ok {
		return nil, msg, false
	}
	if s.SeedPitch <= 0 || s.SolverTolerance <= 0 {
		return nil, "solver: seed_pitch_arcsec and tolerance_arcsec must be positive", false
	}

	lensesRaw, ok := getLeafValue(jsonTable, "lenses")
	if !ok {
		return nil, "lenses group not found and is required.", false
	}
	lensList, ok := lensesRaw.([]interface{})
	if !ok || len(lensList) == 0 {
		return nil, "lenses: must be a non-empty array", false
	}
	for i, raw := range lensList {
		lensMap, ok := raw.(map[string]interface{})
		if !ok {
			return nil, fmt.Sprintf("lenses[%d]: is not a group", i), false
		}
		p, z, msg, ok := parseLens(lensMap)
		if !ok {
			return nil, fmt.Sprintf("lenses[%d].%s", i, msg), false
		}
		s.Lenses = append(s.Lenses, p)
		s.LensRedshifts = append(s.LensRedshifts, z)
	}

	if msg, ok := floatField(jsonTable, "source_redshift", &s.SourceRedshift, false); !ok {
		return nil, msg, false
	}
	if s.MultiPlane() {
		if s.SourceRedshift <= 0 {
			return nil, "source_redshift: required when lenses carry redshifts", false
		}
		for i, z := range s.LensRedshifts {
			if z <= 0 {
				return nil, fmt.Sprintf("lenses[%d].redshift: required when any lens carries a redshift", i), false
			}
			if z >= s.SourceRedshift {
				return nil, fmt.Sprintf("lenses[%d].redshift: must be below source_redshift", i), false
			}
		}
	}
	if msg, ok := floatField(jsonTable, "h0_km_per_sec_per_mpc", &s.Cosmology.H0, false, "cosmology"); !ok {
		return nil, msg, false
	}
	if msg, ok := floatField(jsonTable, "omega_matter", &s.Cosmology.OmegaM, false, "cosmology"); !ok {
		return nil, msg, false
	}

	if _, ok := getLeafValue(jsonTable, "inversion"); ok {
		spec, msg, ok := parseInversion(jsonTable)
		if !ok {
			return nil, msg, false
		}
		s.Inversion = spec
	}

	return s, "No problem found in parameter file", true
}

// parseLens builds one mass profile from its group. The optional redshift is
// returned separately; zero means unassigned.
func parseLens(m map[string]interface{}) (profile.MassProfile, float64, string, bool) {
	kindRaw, ok := m["type"]
	if !ok {
		return nil, 0, "type: not found", false
	}
	kind, ok := kindRaw.(string)
	if !ok {
		return nil, 0, "type: is not a string", false
	}

	var centre grid.Coord
	if msg, ok := floatField(m, "x_center_arcsec", &centre.X, false); !ok {
		return nil, 0, msg, false
	}
	if msg, ok := floatField(m, "y_center_arcsec", &centre.Y, false); !ok {
		return nil, 0, msg, false
	}
	redshift := 0.0
	if msg, ok := floatField(m, "redshift", &redshift, false); !ok {
		return nil, 0, msg, false
	}

	switch kind {
	case "isothermal":
		p := profile.Isothermal{Centre: centre, AxisRatio: 1}
		if msg, ok := floatField(m, "einstein_radius_arcsec", &p.EinsteinRadius, true); !ok {
			return nil, 0, msg, false
		}
		if msg, ok := floatField(m, "axis_ratio", &p.AxisRatio, false); !ok {
			return nil, 0, msg, false
		}
		if msg, ok := floatField(m, "position_angle_degrees", &p.PositionAngle, false); !ok {
			return nil, 0, msg, false
		}
		if p.AxisRatio <= 0 || p.AxisRatio > 1 {
			return nil, 0, "axis_ratio: must be in (0, 1]", false
		}
		return p, redshift, "", true

	case "power_law":
		p := profile.PowerLaw{Centre: centre, Slope: 2}
		if msg, ok := floatField(m, "einstein_radius_arcsec", &p.EinsteinRadius, true); !ok {
			return nil, 0, msg, false
		}
		if msg, ok := floatField(m, "slope", &p.Slope, false); !ok {
			return nil, 0, msg, false
		}
		if p.Slope <= 1 || p.Slope >= 3 {
			return nil, 0, "slope: must be in (1, 3)", false
		}
		return p, redshift, "", true

	case "point_mass":
		p := profile.PointMass{Centre: centre}
		if msg, ok := floatField(m, "einstein_radius_arcsec", &p.EinsteinRadius, true); !ok {
			return nil, 0, msg, false
		}
		return p, redshift, "", true

	case "nfw":
		p := profile.NFW{Centre: centre}
		if msg, ok := floatField(m, "kappa_s", &p.KappaS, true); !ok {
			return nil, 0, msg, false
		}
		if msg, ok := floatField(m, "scale_radius_arcsec", &p.ScaleRadius, true); !ok {
			return nil, 0, msg, false
		}
		return p, redshift, "", true

	case "shear":
		p := profile.ExternalShear{}
		if msg, ok := floatField(m, "gamma_1", &p.Gamma1, true); !ok {
			return nil, 0, msg, false
		}
		if msg, ok := floatField(m, "gamma_2", &p.Gamma2, true); !ok {
			return nil, 0, msg, false
		}
		return p, redshift, "", true
	}

	return nil, 0, fmt.Sprintf("type: unknown profile %q", kind), false
}

func parseInversion(jsonTable map[string]interface{}) (*InversionSpec, string, bool) {
	spec := &InversionSpec{
		GridSize:    48,
		PixelScale:  0.1,
		SubSize:     2,
		SourceCells: 20,
		SourceSigma: 0.1,
		SourceFlux:  1.0,
		PSFSigma:    1.0,
		NoiseSigma:  0.01,
		RegCoeff:    0.5,
	}

	gridSize := float64(spec.GridSize)
	if msg, ok := floatField(jsonTable, "grid_size_pixels", &gridSize, false, "inversion"); !ok {
		return nil, msg, false
	}
	spec.GridSize = int(gridSize)

	subSize := float64(spec.SubSize)
	if msg, ok := floatField(jsonTable, "sub_size", &subSize, false, "inversion"); !ok {
		return nil, msg, false
	}
	spec.SubSize = int(subSize)

	cells := float64(spec.SourceCells)
	if msg, ok := floatField(jsonTable, "source_cells_per_side", &cells, false, "inversion"); !ok {
		return nil, msg, false
	}
	spec.SourceCells = int(cells)

	for _, f := range []struct {
		key string
		dst *float64
	}{
		{"pixel_scale_arcsec", &spec.PixelScale},
		{"source_sigma_arcsec", &spec.SourceSigma},
		{"source_flux", &spec.SourceFlux},
		{"psf_sigma_pixels", &spec.PSFSigma},
		{"noise_sigma", &spec.NoiseSigma},
		{"regularization_coeff", &spec.RegCoeff},
	} {
		if msg, ok := floatField(jsonTable, f.key, f.dst, false, "inversion"); !ok {
			return nil, msg, false
		}
	}

	if spec.GridSize < 4 || spec.SubSize < 1 || spec.SourceCells < 2 {
		return nil, "inversion: grid_size_pixels, sub_size and source_cells_per_side are too small", false
	}
	if spec.PixelScale <= 0 || spec.NoiseSigma <= 0 || spec.SourceSigma <= 0 {
		return nil, "inversion: pixel_scale_arcsec, noise_sigma and source_sigma_arcsec must be positive", false
	}
	return spec, "", true
}
