// Package pixelize discretizes the source plane into reconstruction cells and
// builds the sparse linear relation between image pixels and those cells.
//
// A Pixelization is decoupled from the image grid: its resolution is chosen by
// the modeler, not by the telescope. The Mapper ties the two together through
// a traced (source-plane) grid, conserving each image pixel's flux across the
// source cells it lands in.
package pixelize

import (
	"math"
	"sort"

	"github.com/gravlens/lensray/grid"
)

// CellWeight is one term of the sparse image-to-source relation: a source
// cell index and the fraction of an image (sub-)pixel's flux it receives.
type CellWeight struct {
	Cell   int
	Weight float64
}

// Pixelization is a set of source-plane reconstruction cells.
type Pixelization interface {
	// Cells returns the number of cells.
	Cells() int
	// Centre returns the centre of cell i.
	Centre(i int) grid.Coord
	// Neighbors returns the indices of the cells adjacent to cell i, used
	// by gradient-style regularization.
	Neighbors(i int) []int
	// Assign distributes a traced source-plane coordinate over one or more
	// cells; the returned weights sum to 1.
	Assign(c grid.Coord) []CellWeight
}

// Rectangular is a uniform rows x cols cell lattice spanning a source-plane
// extent. Assignment interpolates bilinearly over the four enclosing cell
// centres, the smooth variant of nearest-cell gridding.
type Rectangular struct {
	rows, cols             int
	minX, maxX, minY, maxY float64
	stepX, stepY           float64
}

// extentBuffer pads the fitted extent so boundary coordinates fall strictly
// inside the outer cells.
const extentBuffer = 1e-8

// FitRectangular builds a rectangular pixelization spanning the bounding box
// of the given (typically traced) coordinates.
func FitRectangular(rows, cols int, coords []grid.Coord) (*Rectangular, error) {
	if rows < 2 || cols < 2 {
		return nil, ErrBadShape
	}
	if len(coords) == 0 {
		return nil, ErrNoCells
	}
	minX, maxX := coords[0].X, coords[0].X
	minY, maxY := coords[0].Y, coords[0].Y
	for _, c := range coords[1:] {
		minX = math.Min(minX, c.X)
		maxX = math.Max(maxX, c.X)
		minY = math.Min(minY, c.Y)
		maxY = math.Max(maxY, c.Y)
	}
	return NewRectangular(rows, cols, minX-extentBuffer, maxX+extentBuffer,
		minY-extentBuffer, maxY+extentBuffer)
}

// NewRectangular builds a rectangular pixelization over an explicit extent.
func NewRectangular(rows, cols int, minX, maxX, minY, maxY float64) (*Rectangular, error) {
	if rows < 2 || cols < 2 {
		return nil, ErrBadShape
	}
	if maxX <= minX || maxY <= minY {
		return nil, ErrBadShape
	}
	return &Rectangular{
		rows: rows, cols: cols,
		minX: minX, maxX: maxX, minY: minY, maxY: maxY,
		stepX: (maxX - minX) / float64(cols),
		stepY: (maxY - minY) / float64(rows),
	}, nil
}

// Shape returns the (rows, cols) of the cell lattice.
func (p *Rectangular) Shape() (rows, cols int) { return p.rows, p.cols }

// Cells returns rows*cols.
func (p *Rectangular) Cells() int { return p.rows * p.cols }

// Centre returns the centre of cell i. Row 0 is the top of the source plane.
func (p *Rectangular) Centre(i int) grid.Coord {
	row, col := i/p.cols, i%p.cols
	return grid.Coord{
		X: p.minX + (float64(col)+0.5)*p.stepX,
		Y: p.maxY - (float64(row)+0.5)*p.stepY,
	}
}

// Neighbors returns the 4-connected lattice neighbours of cell i.
func (p *Rectangular) Neighbors(i int) []int {
	row, col := i/p.cols, i%p.cols
	out := make([]int, 0, 4)
	if row > 0 {
		out = append(out, i-p.cols)
	}
	if row < p.rows-1 {
		out = append(out, i+p.cols)
	}
	if col > 0 {
		out = append(out, i-1)
	}
	if col < p.cols-1 {
		out = append(out, i+1)
	}
	return out
}

// Assign bilinearly distributes c over the four cell centres enclosing it.
// Coordinates outside the extent clamp to the boundary cells, so the weights
// always sum to 1.
func (p *Rectangular) Assign(c grid.Coord) []CellWeight {
	// Continuous cell coordinates of c relative to the centre lattice.
	fx := (c.X-p.minX)/p.stepX - 0.5
	fy := (p.maxY-c.Y)/p.stepY - 0.5

	col0 := clampInt(int(math.Floor(fx)), 0, p.cols-2)
	row0 := clampInt(int(math.Floor(fy)), 0, p.rows-2)
	tx := clampFloat(fx-float64(col0), 0, 1)
	ty := clampFloat(fy-float64(row0), 0, 1)

	base := row0*p.cols + col0
	return []CellWeight{
		{Cell: base, Weight: (1 - tx) * (1 - ty)},
		{Cell: base + 1, Weight: tx * (1 - ty)},
		{Cell: base + p.cols, Weight: (1 - tx) * ty},
		{Cell: base + p.cols + 1, Weight: tx * ty},
	}
}

// Voronoi is an irregular pixelization whose cells are the nearest-centre
// regions of an explicit centre set, typically a sparse traced image-plane
// grid so that cell density follows magnification. Neighbour lists are the
// k nearest centres, which approximates the true Voronoi adjacency well
// enough for gradient regularization.
type Voronoi struct {
	centres   []grid.Coord
	neighbors [][]int
}

// voronoiNeighborCount bounds the per-cell neighbour list.
const voronoiNeighborCount = 8

// NewVoronoi builds a Voronoi-style pixelization from explicit cell centres.
func NewVoronoi(centres []grid.Coord) (*Voronoi, error) {
	if len(centres) == 0 {
		return nil, ErrNoCells
	}
	v := &Voronoi{centres: append([]grid.Coord(nil), centres...)}
	v.buildNeighbors()
	return v, nil
}

func (v *Voronoi) buildNeighbors() {
	n := len(v.centres)
	k := voronoiNeighborCount
	if k > n-1 {
		k = n - 1
	}
	v.neighbors = make([][]int, n)
	type distIdx struct {
		d float64
		i int
	}
	for i := range v.centres {
		ds := make([]distIdx, 0, n-1)
		for j := range v.centres {
			if i == j {
				continue
			}
			dx := v.centres[i].X - v.centres[j].X
			dy := v.centres[i].Y - v.centres[j].Y
			ds = append(ds, distIdx{d: dx*dx + dy*dy, i: j})
		}
		sort.Slice(ds, func(a, b int) bool { return ds[a].d < ds[b].d })
		nb := make([]int, k)
		for j := 0; j < k; j++ {
			nb[j] = ds[j].i
		}
		v.neighbors[i] = nb
	}
}

// Cells returns the number of centres.
func (v *Voronoi) Cells() int { return len(v.centres) }

// Centre returns centre i.
func (v *Voronoi) Centre(i int) grid.Coord { return v.centres[i] }

// Neighbors returns the nearest-centre neighbour list of cell i.
func (v *Voronoi) Neighbors(i int) []int { return v.neighbors[i] }

// Assign maps c wholly to its nearest centre.
func (v *Voronoi) Assign(c grid.Coord) []CellWeight {
	best := 0
	bestD := math.Inf(1)
	for i, ct := range v.centres {
		dx := c.X - ct.X
		dy := c.Y - ct.Y
		if d := dx*dx + dy*dy; d < bestD {
			bestD = d
			best = i
		}
	}
	return []CellWeight{{Cell: best, Weight: 1}}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
