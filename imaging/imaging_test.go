package imaging_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gravlens/lensray/grid"
	"github.com/gravlens/lensray/imaging"
)

func TestKernelValidation(t *testing.T) {
	tests := []struct {
		name   string
		values [][]float64
	}{
		{"empty", nil},
		{"even rows", [][]float64{{1}, {1}}},
		{"even cols", [][]float64{{1, 1}}},
		{"ragged", [][]float64{{1, 2, 3}, {1, 2}, {1, 2, 3}}},
		{"zero sum", [][]float64{{1, 0, -1}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := imaging.NewKernel(tc.values)
			assert.ErrorIs(t, err, imaging.ErrBadKernel)
		})
	}
}

func TestDeltaKernelIdentity(t *testing.T) {
	image := make([][]float64, 7)
	for r := range image {
		image[r] = make([]float64, 9)
		for c := range image[r] {
			image[r][c] = math.Sin(float64(r)*1.3 + float64(c)*0.7)
		}
	}

	out, err := imaging.DeltaKernel().Convolve(image)
	require.NoError(t, err)
	for r := range image {
		for c := range image[r] {
			assert.InDelta(t, image[r][c], out[r][c], 1e-9)
		}
	}
}

// Blurring an interior point source must spread flux without creating or
// destroying it.
func TestGaussianKernelPreservesFlux(t *testing.T) {
	image := make([][]float64, 16)
	for r := range image {
		image[r] = make([]float64, 16)
	}
	image[8][8] = 3.0

	out, err := imaging.GaussianKernel(5, 1.2).Convolve(image)
	require.NoError(t, err)

	total := 0.0
	for r := range out {
		for c := range out[r] {
			total += out[r][c]
		}
	}
	assert.InDelta(t, 3.0, total, 1e-9)
	// The peak is lowered and the neighbours lifted.
	assert.Less(t, out[8][8], 3.0)
	assert.Greater(t, out[8][9], 0.0)
	// Symmetric kernel on a symmetric scene gives symmetric output.
	assert.InDelta(t, out[8][7], out[8][9], 1e-9)
	assert.InDelta(t, out[7][8], out[9][8], 1e-9)
}

// The blur must stay centred on the source pixel: taps above and left of the
// kernel centre reach the rows and columns before it, not a translated copy
// in the +row/+col quadrant.
func TestConvolveKeepsBlurCentred(t *testing.T) {
	image := make([][]float64, 16)
	for r := range image {
		image[r] = make([]float64, 16)
	}
	image[8][8] = 1.0

	out, err := imaging.GaussianKernel(3, 1.0).Convolve(image)
	require.NoError(t, err)

	// The peak stays on the source pixel with flux on every side of it.
	assert.Greater(t, out[8][8], out[7][8])
	assert.Greater(t, out[7][8], 0.0)
	assert.Greater(t, out[8][7], 0.0)
	assert.InDelta(t, out[7][8], out[9][8], 1e-9)
	assert.InDelta(t, out[8][7], out[8][9], 1e-9)
	// Nothing lands beyond the kernel half-width.
	assert.InDelta(t, 0.0, out[11][11], 1e-9)
	assert.InDelta(t, 0.0, out[5][5], 1e-9)
}

func TestConvolveRaggedImage(t *testing.T) {
	_, err := imaging.DeltaKernel().Convolve([][]float64{{1, 2}, {1}})
	assert.ErrorIs(t, err, imaging.ErrRaggedImage)
}

func TestConvolveMasked(t *testing.T) {
	mask, err := grid.NewMask(8, 8, 0.1)
	require.NoError(t, err)

	values := make([]float64, mask.UnmaskedCount())
	values[mask.UnmaskedCount()/2] = 1.0

	out, err := imaging.GaussianKernel(3, 0.8).ConvolveMasked(mask, values)
	require.NoError(t, err)
	require.Len(t, out, mask.UnmaskedCount())

	_, err = imaging.DeltaKernel().ConvolveMasked(mask, values[:3])
	assert.ErrorIs(t, err, grid.ErrShapeMismatch)
}

func TestDatasetValidation(t *testing.T) {
	mask, err := grid.NewMask(4, 4, 0.1)
	require.NoError(t, err)
	n := mask.UnmaskedCount()

	_, err = imaging.NewDataset(nil, make([]float64, n), make([]float64, n), nil)
	assert.ErrorIs(t, err, imaging.ErrNoMask)

	ones := func(n int) []float64 {
		out := make([]float64, n)
		for i := range out {
			out[i] = 1
		}
		return out
	}

	_, err = imaging.NewDataset(mask, make([]float64, n-1), ones(n), nil)
	assert.ErrorIs(t, err, imaging.ErrMaskMismatch)
	_, err = imaging.NewDataset(mask, make([]float64, n), ones(n-1), nil)
	assert.ErrorIs(t, err, imaging.ErrMaskMismatch)

	bad := ones(n)
	bad[0] = -1
	_, err = imaging.NewDataset(mask, make([]float64, n), bad, nil)
	assert.ErrorIs(t, err, imaging.ErrBadNoise)

	_, err = imaging.Simulate(mask, make([]float64, n), nil, 0)
	assert.ErrorIs(t, err, imaging.ErrBadNoise)
	_, err = imaging.Simulate(mask, make([]float64, n-2), nil, 1)
	assert.ErrorIs(t, err, imaging.ErrMaskMismatch)
}

// A dataset simulated from a model must fit that same model perfectly.
func TestFitPerfectModel(t *testing.T) {
	mask, err := grid.NewMask(12, 12, 0.1)
	require.NoError(t, err)

	model := make([]float64, mask.UnmaskedCount())
	for i := range model {
		model[i] = 1.0 + 0.2*math.Cos(float64(i)*0.4)
	}

	sigma := 0.5
	d, err := imaging.Simulate(mask, model, imaging.GaussianKernel(3, 0.9), sigma)
	require.NoError(t, err)

	f, err := imaging.NewFit(d, model)
	require.NoError(t, err)
	assert.InDelta(t, 0, f.ChiSquared, 1e-12)

	want := float64(mask.UnmaskedCount()) * math.Log(2*math.Pi*sigma*sigma)
	assert.InDelta(t, want, f.NoiseNormalization, 1e-9)
	assert.InDelta(t, -0.5*want, f.LogLikelihood, 1e-9)
}

// With the delta PSF the fit statistics are checkable by hand.
func TestFitResidualMaps(t *testing.T) {
	mask, err := grid.NewMask(2, 2, 0.1)
	require.NoError(t, err)

	data := []float64{1, 2, 3, 4}
	noise := []float64{0.5, 0.5, 2, 2}
	d, err := imaging.NewDataset(mask, data, noise, nil)
	require.NoError(t, err)

	model := []float64{0.5, 2, 3, 8}
	f, err := imaging.NewFit(d, model)
	require.NoError(t, err)

	wantRes := []float64{0.5, 0, 0, -4}
	wantNorm := []float64{1, 0, 0, -2}
	for i := range wantRes {
		assert.InDelta(t, wantRes[i], f.Residuals[i], 1e-9, "pixel %d", i)
		assert.InDelta(t, wantNorm[i], f.NormalizedResiduals[i], 1e-9, "pixel %d", i)
		assert.InDelta(t, wantNorm[i]*wantNorm[i], f.ChiSquaredMap[i], 1e-9, "pixel %d", i)
	}
	assert.InDelta(t, 5.0, f.ChiSquared, 1e-9)

	_, err = imaging.NewFit(d, model[:2])
	assert.ErrorIs(t, err, imaging.ErrMaskMismatch)
}
