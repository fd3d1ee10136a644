// Package imaging holds the observed-data side of lens modelling: a masked
// imaging dataset with its noise map and PSF, FFT blurring of model images,
// and the per-pixel fit of a model image against the data.
package imaging

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/gravlens/lensray/grid"
)

var (
	// ErrBadKernel indicates a PSF kernel that is empty, non-rectangular,
	// even-sized or sums to zero.
	ErrBadKernel = errors.New("imaging: psf kernel must be non-empty, rectangular, odd-sized and have non-zero sum")
	// ErrRaggedImage indicates a 2D image whose rows differ in length.
	ErrRaggedImage = errors.New("imaging: image rows must all have the same length")
)

// Kernel is a centred 2D point spread function. Dimensions are odd so the
// central pixel is unambiguous; convolution divides by the kernel sum, so the
// stored values need not be normalized.
type Kernel struct {
	values     [][]float64
	rows, cols int
	sum        float64
}

// NewKernel validates and copies a centred PSF.
func NewKernel(values [][]float64) (*Kernel, error) {
	rows := len(values)
	if rows == 0 || rows%2 == 0 {
		return nil, fmt.Errorf("%w: %d rows", ErrBadKernel, rows)
	}
	cols := len(values[0])
	if cols == 0 || cols%2 == 0 {
		return nil, fmt.Errorf("%w: %d columns", ErrBadKernel, cols)
	}
	sum := 0.0
	cp := make([][]float64, rows)
	for r, row := range values {
		if len(row) != cols {
			return nil, fmt.Errorf("%w: row %d has %d columns", ErrBadKernel, r, len(row))
		}
		cp[r] = append([]float64(nil), row...)
		for _, v := range row {
			sum += v
		}
	}
	if sum == 0 {
		return nil, fmt.Errorf("%w: zero sum", ErrBadKernel)
	}
	return &Kernel{values: cp, rows: rows, cols: cols, sum: sum}, nil
}

// GaussianKernel returns a circular Gaussian PSF of the given standard
// deviation in pixels, truncated to a size x size window. Even sizes are
// rounded up so the kernel stays centred.
func GaussianKernel(size int, sigma float64) *Kernel {
	if size < 1 {
		size = 1
	}
	if size%2 == 0 {
		size++
	}
	centre := size / 2
	values := make([][]float64, size)
	for r := range values {
		values[r] = make([]float64, size)
		for c := range values[r] {
			dr, dc := float64(r-centre), float64(c-centre)
			values[r][c] = math.Exp(-(dr*dr + dc*dc) / (2 * sigma * sigma))
		}
	}
	k, err := NewKernel(values)
	if err != nil {
		panic(err)
	}
	return k
}

// DeltaKernel returns the 1x1 identity PSF.
func DeltaKernel() *Kernel {
	k, err := NewKernel([][]float64{{1}})
	if err != nil {
		panic(err)
	}
	return k
}

// Shape returns the kernel dimensions in (rows, cols).
func (k *Kernel) Shape() (int, int) { return k.rows, k.cols }

// Convolve blurs a 2D image with the kernel and returns an image of the same
// shape. The convolution is linear with zero padding beyond the borders, done
// on a power-of-two FFT lattice, and is normalized by the kernel sum so a flat
// image stays flat.
func (k *Kernel) Convolve(image [][]float64) ([][]float64, error) {
	h := len(image)
	if h == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrRaggedImage)
	}
	w := len(image[0])
	for r, row := range image {
		if len(row) != w {
			return nil, fmt.Errorf("%w: row %d has %d columns, row 0 has %d",
				ErrRaggedImage, r, len(row), w)
		}
	}

	// The FFT lattice must fit the full linear convolution to avoid wrap.
	fh := nextPow2(h + k.rows - 1)
	fw := nextPow2(w + k.cols - 1)

	a := makeComplex2D(fh, fw)
	b := makeComplex2D(fh, fw)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			a[y][x] = complex(image[y][x], 0)
		}
	}
	// The kernel is stored centred; each tap goes to its signed offset from
	// the centre, negative offsets wrapping to the far end of the padded
	// lattice, so the output does not translate the image.
	cr, cc := k.rows/2, k.cols/2
	for y := 0; y < k.rows; y++ {
		for x := 0; x < k.cols; x++ {
			b[wrapIndex(y-cr, fh)][wrapIndex(x-cc, fw)] = complex(k.values[y][x], 0)
		}
	}

	fft2InPlace(a, true)
	fft2InPlace(b, true)
	for y := 0; y < fh; y++ {
		for x := 0; x < fw; x++ {
			a[y][x] *= b[y][x]
		}
	}
	fft2InPlace(a, false)

	// Gonum transforms are unnormalized; forward then inverse scales by the
	// lattice size. The kernel sum folds in the flux normalization.
	scale := float64(fh*fw) * k.sum
	out := make([][]float64, h)
	for y := 0; y < h; y++ {
		out[y] = make([]float64, w)
		for x := 0; x < w; x++ {
			out[y][x] = real(a[y][x]) / scale
		}
	}
	return out, nil
}

// ConvolveMasked blurs a masked 1D image by embedding it in the mask's 2D
// frame, convolving, and extracting the unmasked pixels again. Flux can leak
// into masked pixels; callers that care should grow the mask beyond the PSF
// half-width.
func (k *Kernel) ConvolveMasked(mask *grid.Mask, values []float64) ([]float64, error) {
	img, err := mask.Embed(values)
	if err != nil {
		return nil, err
	}
	blurred, err := k.Convolve(img)
	if err != nil {
		return nil, err
	}
	return mask.Extract(blurred)
}

func fft2InPlace(a [][]complex128, forward bool) {
	h, w := len(a), len(a[0])
	rowFFT := fourier.NewCmplxFFT(w)
	colFFT := fourier.NewCmplxFFT(h)

	tmp := make([]complex128, w)
	for y := 0; y < h; y++ {
		copy(tmp, a[y])
		if forward {
			rowFFT.Coefficients(tmp, tmp)
		} else {
			rowFFT.Sequence(tmp, tmp)
		}
		copy(a[y], tmp)
	}

	col := make([]complex128, h)
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			col[y] = a[y][x]
		}
		if forward {
			colFFT.Coefficients(col, col)
		} else {
			colFFT.Sequence(col, col)
		}
		for y := 0; y < h; y++ {
			a[y][x] = col[y]
		}
	}
}

// wrapIndex maps a signed offset in (-n, n) onto [0, n).
func wrapIndex(i, n int) int {
	if i < 0 {
		return i + n
	}
	return i
}

func makeComplex2D(h, w int) [][]complex128 {
	m := make([][]complex128, h)
	for i := range m {
		m[i] = make([]complex128, w)
	}
	return m
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
