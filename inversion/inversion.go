// Package inversion solves the regularized linear system that reconstructs a
// pixelized source from an observed, lensed image.
//
// Given the mapper relation M, data d, per-pixel noise sigma and a
// regularization matrix H, the most probable source is the solution of the
// normal equations (M^T N^-1 M + H) s = M^T N^-1 d with N the diagonal noise
// covariance. Alongside the source vector the package exposes every term the
// Bayesian evidence needs, since parameter inference consumes the evidence,
// not just the reconstruction.
package inversion

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/gravlens/lensray/grid"
	"github.com/gravlens/lensray/pixelize"
)

var (
	// ErrSingularInversion indicates a curvature matrix that is singular to
	// numerical precision; the solve is aborted rather than returning an
	// unchecked result.
	ErrSingularInversion = errors.New("inversion: curvature matrix is singular to numerical precision")
	// ErrBadNoise indicates a noise map with non-positive entries.
	ErrBadNoise = errors.New("inversion: noise map entries must be positive")
)

// nearSingularCondition is the condition-number threshold above which a
// solvable system is flagged in the diagnostics.
const nearSingularCondition = 1e12

// Diagnostics carries numerical warnings that accompany a best-effort result,
// distinct from hard failures.
type Diagnostics struct {
	// ConditionNumber estimates the 2-norm condition of the curvature matrix.
	ConditionNumber float64
	// NearSingular is set when the condition number exceeds the package
	// threshold; the result is still returned.
	NearSingular bool
}

// Result is one immutable inversion outcome.
type Result struct {
	// Source is the solved source-cell vector.
	Source []float64
	// Reconstructed is the forward projection M * Source into image pixels.
	Reconstructed []float64
	// Residuals is data - Reconstructed, the likelihood-relevant quantity.
	Residuals []float64

	// ChiSquared is sum((residual/sigma)^2).
	ChiSquared float64
	// RegularizationTerm is s^T H s.
	RegularizationTerm float64
	// LogDetCurvatureReg is ln det(M^T N^-1 M + H).
	LogDetCurvatureReg float64
	// LogDetRegularization is ln det H.
	LogDetRegularization float64
	// NoiseNormalization is sum(ln(2 pi sigma^2)).
	NoiseNormalization float64

	Diagnostics Diagnostics
}

// Evidence returns the Bayesian log evidence of the reconstruction,
//
//	-0.5 * (chi^2 + s^T H s + ln det F - ln det H + sum ln 2 pi sigma^2)
//
// the scalar the inference collaborator compares across models.
func (r *Result) Evidence() float64 {
	return -0.5 * (r.ChiSquared + r.RegularizationTerm +
		r.LogDetCurvatureReg - r.LogDetRegularization + r.NoiseNormalization)
}

// Solve runs one inversion. The mapper may be reused across calls with
// different data/noise; each call returns its own immutable Result.
func Solve(m *pixelize.Mapper, data, noise []float64, reg Regularization) (*Result, error) {
	if len(data) != m.Pixels() || len(noise) != m.Pixels() {
		return nil, fmt.Errorf("%w: data %d, noise %d, mapper expects %d image pixels",
			grid.ErrShapeMismatch, len(data), len(noise), m.Pixels())
	}
	for i, s := range noise {
		if s <= 0 {
			return nil, fmt.Errorf("%w: sigma[%d] = %g", ErrBadNoise, i, s)
		}
	}

	cells := m.Cells()
	h := reg.Matrix(m.Pixelization())
	if r, c := h.Dims(); r != cells || c != cells {
		return nil, fmt.Errorf("%w: regularization matrix is %dx%d for %d cells",
			grid.ErrShapeMismatch, r, c, cells)
	}

	// Assemble F = M^T N^-1 M + H and the data vector D = M^T N^-1 d from
	// the mapper's sparse rows; only the upper triangle is stored.
	f := mat.NewSymDense(cells, nil)
	f.CopySym(h)
	dvec := make([]float64, cells)
	for i := 0; i < m.Pixels(); i++ {
		invVar := 1.0 / (noise[i] * noise[i])
		row := m.Weights(i)
		for _, a := range row {
			dvec[a.Cell] += a.Weight * data[i] * invVar
			for _, b := range row {
				if b.Cell < a.Cell {
					continue
				}
				f.SetSym(a.Cell, b.Cell, f.At(a.Cell, b.Cell)+a.Weight*b.Weight*invVar)
			}
		}
	}

	var fChol mat.Cholesky
	if ok := fChol.Factorize(f); !ok {
		return nil, fmt.Errorf("%w: %d source cells, %d image pixels", ErrSingularInversion,
			cells, m.Pixels())
	}

	// ln det H, needed by the evidence once the curvature system is known
	// to be solvable.
	var hChol mat.Cholesky
	if ok := hChol.Factorize(h); !ok {
		return nil, fmt.Errorf("%w: regularization matrix is not positive definite", ErrSingularInversion)
	}
	logDetH := hChol.LogDet()

	var s mat.VecDense
	if err := fChol.SolveVecTo(&s, mat.NewVecDense(cells, dvec)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSingularInversion, err)
	}

	source := make([]float64, cells)
	for i := range source {
		source[i] = s.AtVec(i)
	}

	reconstructed, err := m.MapToImage(source)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Source:               source,
		Reconstructed:        reconstructed,
		Residuals:            make([]float64, m.Pixels()),
		LogDetCurvatureReg:   fChol.LogDet(),
		LogDetRegularization: logDetH,
	}
	for i := range data {
		r := data[i] - reconstructed[i]
		res.Residuals[i] = r
		n := r / noise[i]
		res.ChiSquared += n * n
		res.NoiseNormalization += math.Log(2 * math.Pi * noise[i] * noise[i])
	}

	// s^T H s via the symmetric product.
	hv := mat.NewVecDense(cells, nil)
	hv.MulVec(h, &s)
	res.RegularizationTerm = mat.Dot(hv, &s)

	cond := fChol.Cond()
	res.Diagnostics = Diagnostics{
		ConditionNumber: cond,
		NearSingular:    cond > nearSingularCondition,
	}
	return res, nil
}
