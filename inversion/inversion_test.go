package inversion_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gravlens/lensray/grid"
	"github.com/gravlens/lensray/inversion"
	"github.com/gravlens/lensray/pixelize"
)

// buildSystem returns a mapper over an untraced grid (identity lensing) so
// tests control the linear system exactly.
func buildSystem(t *testing.T, rows, cols, sub, pixRows, pixCols int) (*grid.Grid, *pixelize.Mapper) {
	t.Helper()
	mask, err := grid.NewMask(rows, cols, 0.5)
	require.NoError(t, err)
	g, err := grid.New(mask, sub)
	require.NoError(t, err)
	pix, err := pixelize.FitRectangular(pixRows, pixCols, g.Coords())
	require.NoError(t, err)
	m, err := pixelize.Build(g, pix)
	require.NoError(t, err)
	return g, m
}

func flatNoise(n int, sigma float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = sigma
	}
	return out
}

// A noiseless image generated from a known source must be recovered by the
// inversion when the regularization is negligible.
func TestSolveRecoversKnownSource(t *testing.T) {
	_, m := buildSystem(t, 8, 8, 2, 4, 4)

	truth := make([]float64, m.Cells())
	for i := range truth {
		truth[i] = 1.0 + 0.1*float64(i%5)
	}
	data, err := m.MapToImage(truth)
	require.NoError(t, err)

	res, err := inversion.Solve(m, data, flatNoise(m.Pixels(), 1.0), inversion.Gradient{Coefficient: 1e-5})
	require.NoError(t, err)

	for i := range truth {
		assert.InDelta(t, truth[i], res.Source[i], 1e-4, "cell %d", i)
	}
	assert.InDelta(t, 0, res.ChiSquared, 1e-8)

	// The reconstruction invariant: Reconstructed = M * Source and
	// Residuals = data - Reconstructed.
	proj, err := m.MapToImage(res.Source)
	require.NoError(t, err)
	for i := range proj {
		assert.InDelta(t, proj[i], res.Reconstructed[i], 1e-12)
		assert.InDelta(t, data[i]-proj[i], res.Residuals[i], 1e-12)
	}
}

// Re-running with identical inputs must yield identical results.
func TestSolveIdempotent(t *testing.T) {
	_, m := buildSystem(t, 6, 6, 1, 3, 3)

	data := make([]float64, m.Pixels())
	for i := range data {
		data[i] = math.Sin(float64(i) * 0.7)
	}
	noise := flatNoise(m.Pixels(), 0.3)

	a, err := inversion.Solve(m, data, noise, inversion.Constant{Coefficient: 0.5})
	require.NoError(t, err)
	b, err := inversion.Solve(m, data, noise, inversion.Constant{Coefficient: 0.5})
	require.NoError(t, err)

	assert.Equal(t, a.Source, b.Source)
	assert.Equal(t, a.ChiSquared, b.ChiSquared)
	assert.Equal(t, a.Evidence(), b.Evidence())
}

// More source cells than the data can constrain, with no regularization to
// break the degeneracy, must fail loudly rather than return a garbage source.
func TestSolveSingularSystem(t *testing.T) {
	mask, err := grid.NewMask(3, 3, 0.5)
	require.NoError(t, err)
	g, err := grid.New(mask, 2)
	require.NoError(t, err)

	// The 6x6 sub-lattice spreads bilinear weight onto every cell of the
	// 5x5 pixelization, so the mapper builds, but 9 image pixels cannot
	// constrain 25 cells: with zero regularization the curvature matrix is
	// rank deficient and the factorization must fail.
	pix, err := pixelize.FitRectangular(5, 5, g.Coords())
	require.NoError(t, err)
	m, err := pixelize.Build(g, pix)
	require.NoError(t, err)
	require.Equal(t, 9, m.Pixels())
	require.Equal(t, 25, m.Cells())

	_, err = inversion.Solve(m, make([]float64, 9), flatNoise(9, 1.0), inversion.Constant{Coefficient: 0})
	assert.ErrorIs(t, err, inversion.ErrSingularInversion)
}

func TestSolveInputValidation(t *testing.T) {
	_, m := buildSystem(t, 4, 4, 1, 2, 2)

	_, err := inversion.Solve(m, make([]float64, 3), flatNoise(m.Pixels(), 1), inversion.Constant{Coefficient: 1})
	assert.ErrorIs(t, err, grid.ErrShapeMismatch)

	noise := flatNoise(m.Pixels(), 1)
	noise[2] = 0
	_, err = inversion.Solve(m, make([]float64, m.Pixels()), noise, inversion.Constant{Coefficient: 1})
	assert.ErrorIs(t, err, inversion.ErrBadNoise)
}

// Evidence terms: for a diagonal system the decomposition is checkable by hand.
func TestEvidenceTerms(t *testing.T) {
	_, m := buildSystem(t, 6, 6, 1, 3, 3)

	data := make([]float64, m.Pixels())
	for i := range data {
		data[i] = 1.0
	}
	sigma := 2.0
	res, err := inversion.Solve(m, data, flatNoise(m.Pixels(), sigma), inversion.Constant{Coefficient: 0.1})
	require.NoError(t, err)

	// Noise normalization is exactly n * ln(2 pi sigma^2).
	want := float64(m.Pixels()) * math.Log(2*math.Pi*sigma*sigma)
	assert.InDelta(t, want, res.NoiseNormalization, 1e-9)

	// ln det H for coeff^2 I is cells * ln(coeff^2).
	assert.InDelta(t, float64(m.Cells())*math.Log(0.01), res.LogDetRegularization, 1e-9)

	// All terms appear in the evidence with the right signs.
	evidence := -0.5 * (res.ChiSquared + res.RegularizationTerm +
		res.LogDetCurvatureReg - res.LogDetRegularization + res.NoiseNormalization)
	assert.InDelta(t, evidence, res.Evidence(), 1e-12)

	assert.False(t, res.Diagnostics.NearSingular)
	assert.Greater(t, res.Diagnostics.ConditionNumber, 0.0)
}

// Stronger regularization pulls the source toward smoothness at the cost of
// chi^2; the evidence must reflect the trade-off monotonically on each side.
func TestRegularizationTradeoff(t *testing.T) {
	_, m := buildSystem(t, 8, 8, 1, 4, 4)

	data := make([]float64, m.Pixels())
	for i := range data {
		data[i] = math.Mod(float64(i)*0.37, 1.0)
	}
	noise := flatNoise(m.Pixels(), 0.1)

	weak, err := inversion.Solve(m, data, noise, inversion.Gradient{Coefficient: 1e-3})
	require.NoError(t, err)
	strong, err := inversion.Solve(m, data, noise, inversion.Gradient{Coefficient: 10})
	require.NoError(t, err)

	assert.Less(t, weak.ChiSquared, strong.ChiSquared)
	assert.GreaterOrEqual(t, weak.RegularizationTerm, 0.0)
	assert.GreaterOrEqual(t, strong.RegularizationTerm, 0.0)
	assert.False(t, math.IsInf(strong.Evidence(), 0))
}
