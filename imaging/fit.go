package imaging

import (
	"fmt"
	"math"
)

// Fit is the per-pixel comparison of a model image against a dataset. The
// model is blurred by the dataset's PSF before differencing, matching how the
// data was observed. Scalar model comparison consumes LogLikelihood; the
// per-pixel maps exist for residual inspection.
type Fit struct {
	// Data is the observed masked image.
	Data []float64
	// Model is the PSF-blurred model image.
	Model []float64
	// Residuals is Data - Model.
	Residuals []float64
	// NormalizedResiduals is Residuals / sigma.
	NormalizedResiduals []float64
	// ChiSquaredMap is NormalizedResiduals squared, per pixel.
	ChiSquaredMap []float64

	// ChiSquared is the sum of ChiSquaredMap.
	ChiSquared float64
	// NoiseNormalization is sum(ln(2 pi sigma^2)).
	NoiseNormalization float64
	// LogLikelihood is -0.5 * (ChiSquared + NoiseNormalization).
	LogLikelihood float64
}

// NewFit blurs the unblurred model image with the dataset's PSF and computes
// the residual statistics.
func NewFit(d *Dataset, model []float64) (*Fit, error) {
	n := d.Mask.UnmaskedCount()
	if len(model) != n {
		return nil, fmt.Errorf("%w: model has %d entries, mask has %d pixels",
			ErrMaskMismatch, len(model), n)
	}

	blurred, err := d.PSF.ConvolveMasked(d.Mask, model)
	if err != nil {
		return nil, err
	}

	f := &Fit{
		Data:                d.Image,
		Model:               blurred,
		Residuals:           make([]float64, n),
		NormalizedResiduals: make([]float64, n),
		ChiSquaredMap:       make([]float64, n),
	}
	for i := range blurred {
		r := d.Image[i] - blurred[i]
		nr := r / d.NoiseMap[i]
		f.Residuals[i] = r
		f.NormalizedResiduals[i] = nr
		f.ChiSquaredMap[i] = nr * nr
		f.ChiSquared += nr * nr
		f.NoiseNormalization += math.Log(2 * math.Pi * d.NoiseMap[i] * d.NoiseMap[i])
	}
	f.LogLikelihood = -0.5 * (f.ChiSquared + f.NoiseNormalization)
	return f, nil
}
