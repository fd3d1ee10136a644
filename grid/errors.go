package grid

import "errors"

var (
	// ErrShapeMismatch indicates that two arrays which must describe the same
	// set of pixels disagree about how many pixels there are.
	ErrShapeMismatch = errors.New("grid: shape mismatch between mask and data")
	// ErrEmptyMask indicates a mask with no unmasked pixels.
	ErrEmptyMask = errors.New("grid: mask has no unmasked pixels")
	// ErrNonRectangular indicates mask rows of differing lengths.
	ErrNonRectangular = errors.New("grid: all mask rows must have the same length")
	// ErrBadSubSize indicates a sub-grid size below 1.
	ErrBadSubSize = errors.New("grid: sub-grid size must be at least 1")
	// ErrBadPixelScale indicates a non-positive pixel scale.
	ErrBadPixelScale = errors.New("grid: pixel scale must be positive")
)
