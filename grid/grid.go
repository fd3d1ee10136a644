package grid

import "fmt"

// Grid is an immutable ordered set of (x, y) coordinates derived from the
// unmasked pixels of a Mask. With SubSize() == 1 there is one coordinate per
// unmasked pixel, at the pixel centre. With SubSize() == n each pixel is
// subdivided into an n x n lattice of sub-pixels, giving n*n coordinates per
// pixel, ordered sub-row-major within each pixel. Sub-grids exist so that
// ray-tracing can be anti-aliased where it matters without paying the
// sub-resolution cost everywhere.
type Grid struct {
	mask    *Mask
	subSize int
	coords  []Coord
}

// New builds a grid over the unmasked pixels of the mask. subSize 1 gives
// pixel-centre coordinates; subSize n > 1 gives the n x n sub-lattice.
func New(mask *Mask, subSize int) (*Grid, error) {
	if subSize < 1 {
		return nil, ErrBadSubSize
	}
	n := mask.UnmaskedCount()
	coords := make([]Coord, 0, n*subSize*subSize)
	sub := float64(subSize)
	step := mask.PixelScale() / sub
	for i := 0; i < n; i++ {
		row, col := mask.PixelAt(i)
		centre := mask.CentreOf(row, col)
		for sr := 0; sr < subSize; sr++ {
			// Sub-pixel centres span the pixel symmetrically about its centre.
			dy := (sub-1)/2.0 - float64(sr)
			for sc := 0; sc < subSize; sc++ {
				dx := float64(sc) - (sub-1)/2.0
				coords = append(coords, Coord{
					X: centre.X + dx*step,
					Y: centre.Y + dy*step,
				})
			}
		}
	}
	if len(coords) != n*subSize*subSize {
		// Cannot happen unless the mask index is corrupt; never let an index
		// bound hide a data mismatch.
		return nil, fmt.Errorf("%w: built %d coordinates for %d unmasked pixels at sub-size %d",
			ErrShapeMismatch, len(coords), n, subSize)
	}
	return &Grid{mask: mask, subSize: subSize, coords: coords}, nil
}

// FromCoords wraps an explicit coordinate list that shares the geometry of an
// existing grid. It is how traced (source-plane) grids are represented: same
// mask, same sub-size, different coordinates.
func FromCoords(like *Grid, coords []Coord) (*Grid, error) {
	if len(coords) != len(like.coords) {
		return nil, fmt.Errorf("%w: %d coordinates, grid has %d",
			ErrShapeMismatch, len(coords), len(like.coords))
	}
	return &Grid{mask: like.mask, subSize: like.subSize, coords: coords}, nil
}

// Mask returns the mask the grid was built from.
func (g *Grid) Mask() *Mask { return g.mask }

// SubSize returns the per-pixel subdivision factor.
func (g *Grid) SubSize() int { return g.subSize }

// Len returns the total number of coordinates (pixels times sub-size squared).
func (g *Grid) Len() int { return len(g.coords) }

// PixelCount returns the number of native (unsubdivided) pixels.
func (g *Grid) PixelCount() int { return g.mask.UnmaskedCount() }

// Coords returns the coordinate slice. Callers must not modify it.
func (g *Grid) Coords() []Coord { return g.coords }

// At returns the i-th coordinate.
func (g *Grid) At(i int) Coord { return g.coords[i] }

// PixelOf returns the native pixel ordinal that the i-th coordinate belongs to.
func (g *Grid) PixelOf(i int) int { return i / (g.subSize * g.subSize) }

// Binned area-averages one value per coordinate down to one value per native
// pixel. For a sub-size-1 grid it returns a copy of the input.
func (g *Grid) Binned(values []float64) ([]float64, error) {
	if len(values) != len(g.coords) {
		return nil, fmt.Errorf("%w: %d values for %d coordinates",
			ErrShapeMismatch, len(values), len(g.coords))
	}
	per := g.subSize * g.subSize
	out := make([]float64, g.PixelCount())
	for i, v := range values {
		out[i/per] += v
	}
	inv := 1.0 / float64(per)
	for i := range out {
		out[i] *= inv
	}
	return out, nil
}

// BinnedCoords area-averages the coordinates themselves to native resolution,
// which for an untraced grid recovers the pixel centres.
func (g *Grid) BinnedCoords() []Coord {
	per := g.subSize * g.subSize
	out := make([]Coord, g.PixelCount())
	for i, c := range g.coords {
		p := i / per
		out[p].X += c.X
		out[p].Y += c.Y
	}
	inv := 1.0 / float64(per)
	for i := range out {
		out[i].X *= inv
		out[i].Y *= inv
	}
	return out
}

// Extent returns the bounding box (minX, maxX, minY, maxY) of the coordinates.
func (g *Grid) Extent() (minX, maxX, minY, maxY float64) {
	if len(g.coords) == 0 {
		return 0, 0, 0, 0
	}
	minX, maxX = g.coords[0].X, g.coords[0].X
	minY, maxY = g.coords[0].Y, g.coords[0].Y
	for _, c := range g.coords[1:] {
		if c.X < minX {
			minX = c.X
		}
		if c.X > maxX {
			maxX = c.X
		}
		if c.Y < minY {
			minY = c.Y
		}
		if c.Y > maxY {
			maxY = c.Y
		}
	}
	return minX, maxX, minY, maxY
}
