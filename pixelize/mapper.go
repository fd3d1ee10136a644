package pixelize

import (
	"fmt"
	"sort"

	"github.com/gravlens/lensray/grid"
)

// Mapper is the sparse linear relation between native image pixels and source
// cells induced by ray tracing: row i holds (cell, weight) pairs whose weights
// sum to 1, so each image pixel's flux is conserved across the source cells it
// is distributed into. A Mapper is immutable and may be reused across repeated
// inversions that share geometry but differ in data or noise.
type Mapper struct {
	pixels  int
	cells   int
	pix     Pixelization
	entries [][]CellWeight
}

// Build traces nothing itself: it takes an already-traced (sub-)grid, assigns
// every traced sub-coordinate to source cells, and bins the sub-weights back
// to native image-pixel granularity. It fails with an UnconstrainedError when
// any source cell receives no contribution at all.
func Build(traced *grid.Grid, pix Pixelization) (*Mapper, error) {
	if pix.Cells() == 0 {
		return nil, ErrNoCells
	}
	per := traced.SubSize() * traced.SubSize()
	subWeight := 1.0 / float64(per)

	pixels := traced.PixelCount()
	cells := pix.Cells()
	entries := make([][]CellWeight, pixels)
	acc := make(map[int]float64, 8)

	for p := 0; p < pixels; p++ {
		clear(acc)
		for s := 0; s < per; s++ {
			c := traced.At(p*per + s)
			for _, cw := range pix.Assign(c) {
				acc[cw.Cell] += cw.Weight * subWeight
			}
		}
		row := make([]CellWeight, 0, len(acc))
		for cell, w := range acc {
			if w == 0 {
				continue
			}
			row = append(row, CellWeight{Cell: cell, Weight: w})
		}
		sort.Slice(row, func(a, b int) bool { return row[a].Cell < row[b].Cell })
		entries[p] = row
	}

	covered := make([]bool, cells)
	for _, row := range entries {
		for _, cw := range row {
			covered[cw.Cell] = true
		}
	}
	var missing []int
	for cell, ok := range covered {
		if !ok {
			missing = append(missing, cell)
		}
	}
	if len(missing) > 0 {
		return nil, &UnconstrainedError{Cells: missing}
	}

	return &Mapper{pixels: pixels, cells: cells, pix: pix, entries: entries}, nil
}

// Pixels returns the number of native image pixels (matrix rows).
func (m *Mapper) Pixels() int { return m.pixels }

// Cells returns the number of source cells (matrix columns).
func (m *Mapper) Cells() int { return m.cells }

// Pixelization returns the pixelization the mapper was built against.
func (m *Mapper) Pixelization() Pixelization { return m.pix }

// Weights returns the sparse row of image pixel i. Callers must not modify it.
func (m *Mapper) Weights(i int) []CellWeight { return m.entries[i] }

// MapToImage forward-projects a source-cell vector into image pixels:
// the matrix-vector product M * s.
func (m *Mapper) MapToImage(source []float64) ([]float64, error) {
	if len(source) != m.cells {
		return nil, fmt.Errorf("%w: %d source values for %d cells",
			grid.ErrShapeMismatch, len(source), m.cells)
	}
	out := make([]float64, m.pixels)
	for i, row := range m.entries {
		sum := 0.0
		for _, cw := range row {
			sum += cw.Weight * source[cw.Cell]
		}
		out[i] = sum
	}
	return out, nil
}
