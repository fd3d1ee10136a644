package inversion

import (
	"gonum.org/v1/gonum/mat"

	"github.com/gravlens/lensray/pixelize"
)

// Regularization builds the penalty matrix H added to the curvature matrix of
// the normal equations; the solve minimizes chi^2 + s^T H s. The matrix form
// is a pluggable policy, since different sources favour different priors.
type Regularization interface {
	// Matrix returns H for the given pixelization, symmetric and scaled by
	// the policy's coefficient.
	Matrix(pix pixelize.Pixelization) *mat.SymDense
}

// Constant is zeroth-order regularization: every cell value is pulled toward
// zero with equal strength, H = coeff^2 * I. It is always positive definite.
type Constant struct {
	Coefficient float64
}

// Matrix returns coeff^2 * I.
func (r Constant) Matrix(pix pixelize.Pixelization) *mat.SymDense {
	n := pix.Cells()
	h := mat.NewSymDense(n, nil)
	c2 := r.Coefficient * r.Coefficient
	for i := 0; i < n; i++ {
		h.SetSym(i, i, c2)
	}
	return h
}

// Gradient is first-order regularization: differences between neighbouring
// cells are penalized, smoothing the reconstruction. A small diagonal term
// keeps the matrix positive definite despite the Laplacian's flat zero mode.
type Gradient struct {
	Coefficient float64
}

// gradientFloor is the diagonal added to make the neighbour Laplacian
// invertible; it must stay negligible next to any physical coefficient.
const gradientFloor = 1e-8

// Matrix returns the symmetric neighbour-difference penalty.
func (r Gradient) Matrix(pix pixelize.Pixelization) *mat.SymDense {
	n := pix.Cells()
	h := mat.NewSymDense(n, nil)
	c2 := r.Coefficient * r.Coefficient

	// Each unordered neighbour pair contributes once, even if the
	// pixelization's neighbour lists are asymmetric.
	seen := make(map[[2]int]bool)
	for i := 0; i < n; i++ {
		for _, j := range pix.Neighbors(i) {
			a, b := i, j
			if a > b {
				a, b = b, a
			}
			key := [2]int{a, b}
			if seen[key] {
				continue
			}
			seen[key] = true
			h.SetSym(a, a, h.At(a, a)+c2)
			h.SetSym(b, b, h.At(b, b)+c2)
			h.SetSym(a, b, h.At(a, b)-c2)
		}
	}
	for i := 0; i < n; i++ {
		h.SetSym(i, i, h.At(i, i)+gradientFloor)
	}
	return h
}
