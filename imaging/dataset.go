package imaging

import (
	"errors"
	"fmt"

	"github.com/gravlens/lensray/grid"
)

var (
	// ErrMaskMismatch indicates a masked array whose length disagrees with
	// the mask's unmasked pixel count.
	ErrMaskMismatch = errors.New("imaging: array length disagrees with the mask's unmasked pixel count")
	// ErrNoMask indicates a dataset constructed without a mask.
	ErrNoMask = errors.New("imaging: dataset requires a mask")
	// ErrBadNoise indicates a noise map with non-positive entries.
	ErrBadNoise = errors.New("imaging: noise map entries must be positive")
)

// Dataset is one observed imaging frame in masked 1D form: the image and its
// per-pixel RMS noise, the PSF it was observed through, and the mask that
// defines the pixel ordering. Construct with NewDataset or Simulate; the
// fields are exported for reading, not for mutation.
type Dataset struct {
	Image    []float64
	NoiseMap []float64
	PSF      *Kernel
	Mask     *grid.Mask
}

// NewDataset validates the masked arrays against the mask. A nil PSF means
// the data is unblurred and is replaced by the delta kernel.
func NewDataset(mask *grid.Mask, image, noise []float64, psf *Kernel) (*Dataset, error) {
	if mask == nil {
		return nil, ErrNoMask
	}
	n := mask.UnmaskedCount()
	if len(image) != n {
		return nil, fmt.Errorf("%w: image has %d entries, mask has %d pixels",
			ErrMaskMismatch, len(image), n)
	}
	if len(noise) != n {
		return nil, fmt.Errorf("%w: noise map has %d entries, mask has %d pixels",
			ErrMaskMismatch, len(noise), n)
	}
	for i, s := range noise {
		if s <= 0 {
			return nil, fmt.Errorf("%w: sigma[%d] = %g", ErrBadNoise, i, s)
		}
	}
	if psf == nil {
		psf = DeltaKernel()
	}
	return &Dataset{
		Image:    append([]float64(nil), image...),
		NoiseMap: append([]float64(nil), noise...),
		PSF:      psf,
		Mask:     mask,
	}, nil
}

// Simulate builds a noiseless mock dataset from an unblurred model image: the
// model is blurred by the PSF and paired with a flat noise map of the given
// sigma. Useful for demo pipelines and round-trip tests.
func Simulate(mask *grid.Mask, model []float64, psf *Kernel, sigma float64) (*Dataset, error) {
	if mask == nil {
		return nil, ErrNoMask
	}
	if sigma <= 0 {
		return nil, fmt.Errorf("%w: sigma = %g", ErrBadNoise, sigma)
	}
	if psf == nil {
		psf = DeltaKernel()
	}
	blurred, err := psf.ConvolveMasked(mask, model)
	if err != nil {
		if errors.Is(err, grid.ErrShapeMismatch) {
			return nil, fmt.Errorf("%w: model has %d entries, mask has %d pixels",
				ErrMaskMismatch, len(model), mask.UnmaskedCount())
		}
		return nil, err
	}
	noise := make([]float64, len(blurred))
	for i := range noise {
		noise[i] = sigma
	}
	return NewDataset(mask, blurred, noise, psf)
}
