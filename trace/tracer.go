// Package trace composes mass profiles into ray tracers that map image-plane
// grids to the source plane through the lens equation beta = theta - alpha(theta),
// for a single lens plane or a redshift-ordered stack of planes. It also
// derives the products of the lens mapping's Jacobian: magnifications,
// critical curves and caustics.
package trace

import (
	"errors"
	"math"
	"runtime"
	"sort"
	"sync"

	"github.com/gravlens/lensray/grid"
	"github.com/gravlens/lensray/profile"
)

var (
	// ErrNoPlanes indicates a tracer built without any lens plane.
	ErrNoPlanes = errors.New("trace: tracer needs at least one plane")
	// ErrPlaneOrder indicates a multi-plane tracer with fewer than two
	// distinct redshifts (nothing to trace between).
	ErrPlaneOrder = errors.New("trace: multi-plane tracer needs at least two planes at distinct redshifts")
)

// Plane is a set of mass profiles at a common redshift.
type Plane struct {
	Profiles profile.Set
	Redshift float64
}

// Tracer ray-traces coordinates from the image plane to the source plane.
// It is immutable once constructed and safe for concurrent use.
type Tracer struct {
	planes []Plane
	cosmo  *Cosmology // nil for single-plane tracing

	// Workers bounds the goroutines used by grid-sweep methods.
	// Zero means one per CPU.
	Workers int

	// betas[i] is the deflection scaling of plane i when tracing to the
	// final plane; precomputed at construction.
	betas [][]float64
}

// New returns a single-plane tracer for the given profiles. All deflections
// are reduced (already scaled to the source plane), so no cosmology is needed.
func New(profiles profile.Set) *Tracer {
	return &Tracer{planes: []Plane{{Profiles: profiles}}}
}

// NewMultiPlane returns a tracer over redshift-sorted planes. The last plane
// is the source plane; deflections of plane i are scaled toward plane j by
// the cosmology's ScalingFactor, composed in redshift order as a pure
// geometric recursion.
func NewMultiPlane(planes []Plane, cosmo Cosmology) (*Tracer, error) {
	if len(planes) == 0 {
		return nil, ErrNoPlanes
	}
	sorted := append([]Plane(nil), planes...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Redshift < sorted[j].Redshift })
	if sorted[0].Redshift >= sorted[len(sorted)-1].Redshift {
		return nil, ErrPlaneOrder
	}

	t := &Tracer{planes: sorted, cosmo: &cosmo}
	zs := sorted[len(sorted)-1].Redshift
	t.betas = make([][]float64, len(sorted))
	for j := range sorted {
		t.betas[j] = make([]float64, j)
		for i := 0; i < j; i++ {
			t.betas[j][i] = cosmo.ScalingFactor(sorted[i].Redshift, sorted[j].Redshift, zs)
		}
	}
	return t, nil
}

// Planes returns the redshift-ordered planes.
func (t *Tracer) Planes() []Plane { return t.planes }

// TraceCoord maps one image-plane coordinate to the source plane.
func (t *Tracer) TraceCoord(c grid.Coord) grid.Coord {
	if t.cosmo == nil {
		return c.Sub(t.planes[0].Profiles.DeflectionsAt(c))
	}
	xs, _ := t.traceThrough(c)
	return xs[len(xs)-1]
}

// traceThrough runs the multi-plane recursion
//
//	x_j = theta - sum_{i<j} beta_ij * alpha_i(x_i)
//
// returning the coordinate in every plane and the per-plane deflections.
func (t *Tracer) traceThrough(theta grid.Coord) (xs, alphas []grid.Coord) {
	n := len(t.planes)
	xs = make([]grid.Coord, n)
	alphas = make([]grid.Coord, n)
	for j := 0; j < n; j++ {
		x := theta
		for i := 0; i < j; i++ {
			x = x.Sub(alphas[i].Scale(t.betas[j][i]))
		}
		xs[j] = x
		if j < n-1 {
			alphas[j] = t.planes[j].Profiles.DeflectionsAt(x)
		}
	}
	return xs, alphas
}

// DeflectionsAt returns the effective deflection theta - beta(theta): the
// total bend accumulated between the image plane and the source plane.
func (t *Tracer) DeflectionsAt(c grid.Coord) grid.Coord {
	return c.Sub(t.TraceCoord(c))
}

// TraceCoords maps a batch of image-plane coordinates to the source plane,
// fanning out across workers. Inputs are read-only, so no synchronization
// beyond the final join is needed.
func (t *Tracer) TraceCoords(coords []grid.Coord) []grid.Coord {
	out := make([]grid.Coord, len(coords))
	t.sweep(len(coords), func(i int) {
		out[i] = t.TraceCoord(coords[i])
	})
	return out
}

// TraceGrid ray-traces a whole grid, returning the source-plane grid with the
// same mask and sub-size.
func (t *Tracer) TraceGrid(g *grid.Grid) (*grid.Grid, error) {
	return grid.FromCoords(g, t.TraceCoords(g.Coords()))
}

// TraceGridPerPlane returns the traced coordinates in every plane for each
// grid coordinate; index [j][i] is grid coordinate i in plane j. For a
// single-plane tracer plane 0 is the image plane and plane 1 the source plane.
func (t *Tracer) TraceGridPerPlane(g *grid.Grid) [][]grid.Coord {
	return t.TraceCoordsPerPlane(g.Coords())
}

// TraceCoordsPerPlane is TraceGridPerPlane for a bare coordinate list.
func (t *Tracer) TraceCoordsPerPlane(coords []grid.Coord) [][]grid.Coord {
	if t.cosmo == nil {
		planes := [][]grid.Coord{append([]grid.Coord(nil), coords...), t.TraceCoords(coords)}
		return planes
	}
	out := make([][]grid.Coord, len(t.planes))
	for j := range out {
		out[j] = make([]grid.Coord, len(coords))
	}
	t.sweep(len(coords), func(i int) {
		xs, _ := t.traceThrough(coords[i])
		for j := range xs {
			out[j][i] = xs[j]
		}
	})
	return out
}

// JacobianAt returns the lens mapping matrix at c. Single-plane tracers use
// the profiles' own Jacobians (analytic where available); multi-plane tracers
// difference the composed mapping numerically, since the recursion has no
// closed-form derivative. Sign conventions match profile.Jacobian2.
func (t *Tracer) JacobianAt(c grid.Coord) profile.Jacobian2 {
	if t.cosmo == nil {
		return t.planes[0].Profiles.JacobianAt(c)
	}
	return profile.NumericalJacobian(effectiveDeflector{t}, c)
}

// MagnificationAt returns the point magnification 1/det(Jacobian) at c.
func (t *Tracer) MagnificationAt(c grid.Coord) float64 {
	return t.JacobianAt(c).Magnification()
}

// ConvergenceAt returns the total convergence at c: the profile sum for a
// single plane, the effective (Jacobian-implied) convergence for multi-plane.
func (t *Tracer) ConvergenceAt(c grid.Coord) float64 {
	if t.cosmo == nil {
		return t.planes[0].Profiles.ConvergenceAt(c)
	}
	return t.JacobianAt(c).Convergence()
}

// effectiveDeflector adapts the tracer's composed deflection field to the
// finite-difference helper in package profile.
type effectiveDeflector struct{ t *Tracer }

func (d effectiveDeflector) DeflectionsAt(c grid.Coord) grid.Coord {
	return d.t.DeflectionsAt(c)
}

// sweep runs fn(i) for i in [0, n) across the tracer's worker budget.
func (t *Tracer) sweep(n int, fn func(i int)) {
	workers := t.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > n {
		workers = n
	}
	if workers <= 1 {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}
	chunk := int(math.Ceil(float64(n) / float64(workers)))
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := lo + chunk
		if hi > n {
			hi = n
		}
		if lo >= hi {
			break
		}
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			for i := lo; i < hi; i++ {
				fn(i)
			}
		}(lo, hi)
	}
	wg.Wait()
}
