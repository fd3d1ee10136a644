package trace

import (
	"errors"

	"github.com/gravlens/lensray/grid"
)

// ErrBadWindow indicates a degenerate critical-curve search window.
var ErrBadWindow = errors.New("trace: critical-curve window needs positive extent and at least 2x2 samples")

// Window is the rectangular image-plane region a critical-curve search scans.
type Window struct {
	MinX, MaxX float64
	MinY, MaxY float64
	// Samples is the lattice resolution per axis.
	Samples int
}

// SquareWindow returns a window of half-width r centred on the origin.
func SquareWindow(r float64, samples int) Window {
	return Window{MinX: -r, MaxX: r, MinY: -r, MaxY: r, Samples: samples}
}

// CurveSet holds the located critical-curve points, split by type, and their
// source-plane counterparts (the caustics). Coordinates are exposed uncropped;
// any display cropping belongs to the visualization collaborator.
type CurveSet struct {
	Tangential []grid.Coord
	Radial     []grid.Coord
	// TangentialCaustic and RadialCaustic are the traced critical points.
	TangentialCaustic []grid.Coord
	RadialCaustic     []grid.Coord
}

// CriticalCurves locates the zero contours of det(Jacobian) inside the window
// by marching squares: the Jacobian determinant is sampled on the lattice and
// each sign-changing lattice edge contributes a linearly interpolated contour
// point. Points are classified tangential or radial by which eigenvalue of
// the mapping vanishes there.
func (t *Tracer) CriticalCurves(w Window) (*CurveSet, error) {
	if w.Samples < 2 || w.MaxX <= w.MinX || w.MaxY <= w.MinY {
		return nil, ErrBadWindow
	}
	n := w.Samples
	xs := linspace(w.MinX, w.MaxX, n)
	ys := linspace(w.MinY, w.MaxY, n)

	// Sample det(J) over the lattice in parallel.
	det := make([]float64, n*n)
	t.sweep(n*n, func(i int) {
		row, col := i/n, i%n
		det[i] = t.JacobianAt(grid.Coord{X: xs[col], Y: ys[row]}).Det()
	})

	set := &CurveSet{}
	addPoint := func(c grid.Coord) {
		tang, rad := t.JacobianAt(c).Eigenvalues()
		if abs(tang) <= abs(rad) {
			set.Tangential = append(set.Tangential, c)
		} else {
			set.Radial = append(set.Radial, c)
		}
	}

	// Horizontal edges.
	for row := 0; row < n; row++ {
		for col := 0; col < n-1; col++ {
			a, b := det[row*n+col], det[row*n+col+1]
			if frac, ok := zeroCrossing(a, b); ok {
				addPoint(grid.Coord{
					X: xs[col] + frac*(xs[col+1]-xs[col]),
					Y: ys[row],
				})
			}
		}
	}
	// Vertical edges.
	for row := 0; row < n-1; row++ {
		for col := 0; col < n; col++ {
			a, b := det[row*n+col], det[(row+1)*n+col]
			if frac, ok := zeroCrossing(a, b); ok {
				addPoint(grid.Coord{
					X: xs[col],
					Y: ys[row] + frac*(ys[row+1]-ys[row]),
				})
			}
		}
	}

	set.TangentialCaustic = t.TraceCoords(set.Tangential)
	set.RadialCaustic = t.TraceCoords(set.Radial)
	return set, nil
}

// zeroCrossing returns the interpolated fraction along an edge whose endpoint
// values bracket zero.
func zeroCrossing(a, b float64) (float64, bool) {
	if a == 0 {
		return 0, true
	}
	if (a > 0) == (b > 0) {
		return 0, false
	}
	return a / (a - b), true
}

// linspace returns n evenly spaced values covering [start, end] inclusive.
func linspace(start, end float64, n int) []float64 {
	if n <= 1 {
		return []float64{start}
	}
	step := (end - start) / float64(n-1)
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
