// Package point locates the multiple images of a point source: the discrete
// set of image-plane positions whose traced source-plane position coincides
// with a target source point. It brackets candidate cells by testing whether
// the target falls inside each cell's traced corner quadrilateral, then
// refines the candidates on an explicit work stack until the source-plane
// distance converges, and finally merges duplicates.
package point

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/gravlens/lensray/grid"
	"github.com/gravlens/lensray/trace"
)

var (
	// ErrSolverResolution indicates a seed grid coarser than the imaging
	// data it is meant to model; solving anyway would miss images, so this
	// is a precondition failure, not a best-effort warning.
	ErrSolverResolution = errors.New("point: solver grid is coarser than the data grid")
	// ErrConvergenceFailure indicates candidates that exhausted the maximum
	// refinement depth without meeting the source-plane tolerance.
	ErrConvergenceFailure = errors.New("point: refinement reached maximum depth without converging")
	// ErrBadSeed indicates a degenerate seed region or pitch.
	ErrBadSeed = errors.New("point: seed window must have positive extent and pitch")
)

// Solution is one located image of the point source.
type Solution struct {
	// Position is the image-plane coordinate.
	Position grid.Coord
	// SourceDistance is the residual distance in the source plane.
	SourceDistance float64
	// Magnification is the signed point magnification at the position.
	Magnification float64
	// Parity is the image parity, sign(det Jacobian).
	Parity int
}

// Result is the full solution set for one source position.
type Result struct {
	Solutions []Solution
	// MultiplicityNote flags solution counts that violate the odd/even
	// image-number expectations for smooth lenses, e.g. merging images on
	// a caustic. It is advisory: the positions are still returned.
	MultiplicityNote string
}

// TotalUnsignedMagnification sums |mu| over the solutions, the quantity flux
// ratios are measured against.
func (r *Result) TotalUnsignedMagnification() float64 {
	sum := 0.0
	for _, s := range r.Solutions {
		sum += math.Abs(s.Magnification)
	}
	return sum
}

// Solver finds point-source images for a fixed tracer and seed geometry.
// Construct with New; the zero value is not usable.
type Solver struct {
	tracer *trace.Tracer

	window trace.Window
	pitch  float64

	// Tolerance is the source-plane distance below which a candidate is
	// converged, in arcseconds.
	Tolerance float64
	// MaxDepth bounds the recursive subdivisions per candidate cell.
	MaxDepth int
	// MinSeparation merges solutions closer than this in the image plane;
	// zero defaults to the seed pitch.
	MinSeparation float64
}

// New builds a solver seeding candidate cells of the given pitch across the
// window. If dataGrid is non-nil, the seed pitch is checked against the data
// pixel scale: a solver coarser than the data is refused up front.
func New(tracer *trace.Tracer, window trace.Window, pitch float64, dataGrid *grid.Grid) (*Solver, error) {
	if pitch <= 0 || window.MaxX <= window.MinX || window.MaxY <= window.MinY {
		return nil, ErrBadSeed
	}
	if dataGrid != nil {
		if scale := dataGrid.Mask().PixelScale(); pitch > scale {
			return nil, fmt.Errorf("%w: pitch %g arcsec vs data pixel scale %g arcsec",
				ErrSolverResolution, pitch, scale)
		}
	}
	return &Solver{
		tracer:    tracer,
		window:    window,
		pitch:     pitch,
		Tolerance: 1e-6,
		MaxDepth:  24,
	}, nil
}

// cell is one candidate square on the refinement work stack.
type cell struct {
	x0, y0 float64 // lower-left corner
	size   float64
	depth  int
}

// Solve locates every image of the given source-plane position.
func (s *Solver) Solve(source grid.Coord) (*Result, error) {
	nx := int(math.Ceil((s.window.MaxX - s.window.MinX) / s.pitch))
	ny := int(math.Ceil((s.window.MaxY - s.window.MinY) / s.pitch))

	// Seed pass: trace the corner lattice once, then bracket.
	corners := make([]grid.Coord, (nx+1)*(ny+1))
	for row := 0; row <= ny; row++ {
		for col := 0; col <= nx; col++ {
			corners[row*(nx+1)+col] = grid.Coord{
				X: s.window.MinX + float64(col)*s.pitch,
				Y: s.window.MinY + float64(row)*s.pitch,
			}
		}
	}
	traced := s.tracer.TraceCoords(corners)

	// Explicit work stack instead of recursion: depth bookkeeping rides on
	// each cell, and the loop is trivially cancelable or parallelizable.
	var stack []cell
	for row := 0; row < ny; row++ {
		for col := 0; col < nx; col++ {
			q := [4]grid.Coord{
				traced[row*(nx+1)+col],
				traced[row*(nx+1)+col+1],
				traced[(row+1)*(nx+1)+col+1],
				traced[(row+1)*(nx+1)+col],
			}
			if quadContains(q, source) {
				stack = append(stack, cell{
					x0:   s.window.MinX + float64(col)*s.pitch,
					y0:   s.window.MinY + float64(row)*s.pitch,
					size: s.pitch,
				})
			}
		}
	}

	var converged []Solution
	exhausted := 0
	for len(stack) > 0 {
		c := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		centre := grid.Coord{X: c.x0 + c.size/2, Y: c.y0 + c.size/2}
		dist := distance(s.tracer.TraceCoord(centre), source)
		if dist <= s.Tolerance {
			converged = append(converged, Solution{Position: centre, SourceDistance: dist})
			continue
		}
		if c.depth >= s.MaxDepth {
			if !s.singularCell(c) {
				exhausted++
			}
			continue
		}

		// Subdivide into four children and keep those whose traced corner
		// quad still contains the source. Corners are re-traced per child;
		// the quads share edges so a contained point survives subdivision.
		half := c.size / 2
		for _, child := range [4]cell{
			{c.x0, c.y0, half, c.depth + 1},
			{c.x0 + half, c.y0, half, c.depth + 1},
			{c.x0, c.y0 + half, half, c.depth + 1},
			{c.x0 + half, c.y0 + half, half, c.depth + 1},
		} {
			q := s.tracedQuad(child)
			if quadContains(q, source) {
				stack = append(stack, child)
			}
		}
	}

	if exhausted > 0 && len(converged) == 0 {
		return nil, fmt.Errorf("%w: %d candidate cells at depth %d",
			ErrConvergenceFailure, exhausted, s.MaxDepth)
	}

	solutions := s.deduplicate(converged)
	for i := range solutions {
		j := s.tracer.JacobianAt(solutions[i].Position)
		solutions[i].Magnification = j.Magnification()
		solutions[i].Parity = j.Parity()
	}
	sort.Slice(solutions, func(a, b int) bool {
		return math.Abs(solutions[a].Magnification) > math.Abs(solutions[b].Magnification)
	})

	res := &Result{Solutions: solutions}
	res.MultiplicityNote = multiplicityNote(solutions, exhausted)
	return res, nil
}

// singularFootprintRatio separates cells that genuinely failed to converge
// from cells collapsed onto a singularity of the deflection field. A cell
// bracketing an image has a traced footprint comparable to its own size; at
// a singular point the footprint stays finite as the cell shrinks, so the
// ratio diverges and no amount of further subdivision would converge.
const singularFootprintRatio = 1e3

func (s *Solver) singularCell(c cell) bool {
	return quadDiameter(s.tracedQuad(c)) > singularFootprintRatio*c.size
}

func quadDiameter(q [4]grid.Coord) float64 {
	d := 0.0
	for i := 0; i < 4; i++ {
		for j := i + 1; j < 4; j++ {
			if dist := distance(q[i], q[j]); dist > d {
				d = dist
			}
		}
	}
	return d
}

// tracedQuad traces a single cell's corners serially; the parallel sweep only
// pays off on the seed lattice.
func (s *Solver) tracedQuad(c cell) [4]grid.Coord {
	return [4]grid.Coord{
		s.tracer.TraceCoord(grid.Coord{X: c.x0, Y: c.y0}),
		s.tracer.TraceCoord(grid.Coord{X: c.x0 + c.size, Y: c.y0}),
		s.tracer.TraceCoord(grid.Coord{X: c.x0 + c.size, Y: c.y0 + c.size}),
		s.tracer.TraceCoord(grid.Coord{X: c.x0, Y: c.y0 + c.size}),
	}
}

// deduplicate merges converged candidates closer than the minimum separation,
// keeping the one with the smallest source-plane residual. Adjacent refined
// cells routinely converge onto the same image.
func (s *Solver) deduplicate(cands []Solution) []Solution {
	minSep := s.MinSeparation
	if minSep <= 0 {
		minSep = s.pitch
	}
	sort.Slice(cands, func(a, b int) bool {
		return cands[a].SourceDistance < cands[b].SourceDistance
	})
	var out []Solution
	for _, c := range cands {
		dup := false
		for _, kept := range out {
			if distance(c.Position, kept.Position) < minSep {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, c)
		}
	}
	return out
}

// multiplicityNote applies the image-number theorems as a sanity check:
// a smooth, non-degenerate lens produces images in pairs as the source
// crosses caustics, and an odd total for transparent lenses. Violations are
// flagged, not dropped.
func multiplicityNote(solutions []Solution, exhausted int) string {
	n := len(solutions)
	if exhausted > 0 {
		return fmt.Sprintf("%d candidates hit max depth without converging; the image count may be incomplete", exhausted)
	}
	if n == 0 {
		return "no images found inside the seed window"
	}
	neg := 0
	for _, s := range solutions {
		if s.Parity < 0 {
			neg++
		}
	}
	if n > 1 && neg == 0 {
		return fmt.Sprintf("%d images all share positive parity; expected negative-parity counterparts (possible merging images on a caustic)", n)
	}
	return ""
}

// quadContains reports whether p lies inside the (possibly non-convex,
// possibly degenerate) quadrilateral, by splitting it into two triangles.
func quadContains(q [4]grid.Coord, p grid.Coord) bool {
	return triangleContains(q[0], q[1], q[2], p) || triangleContains(q[0], q[2], q[3], p)
}

// triangleContains is a same-side sign test tolerant of degenerate (folded)
// triangles, which occur when a cell straddles a critical curve.
func triangleContains(a, b, c, p grid.Coord) bool {
	d1 := cross(p, a, b)
	d2 := cross(p, b, c)
	d3 := cross(p, c, a)
	hasNeg := d1 < 0 || d2 < 0 || d3 < 0
	hasPos := d1 > 0 || d2 > 0 || d3 > 0
	return !(hasNeg && hasPos)
}

func cross(p, a, b grid.Coord) float64 {
	return (a.X-p.X)*(b.Y-p.Y) - (b.X-p.X)*(a.Y-p.Y)
}

func distance(a, b grid.Coord) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}
