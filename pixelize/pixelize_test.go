package pixelize_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gravlens/lensray/grid"
	"github.com/gravlens/lensray/pixelize"
)

func TestRectangularGeometry(t *testing.T) {
	p, err := pixelize.NewRectangular(4, 4, -1, 1, -1, 1)
	require.NoError(t, err)
	assert.Equal(t, 16, p.Cells())

	// Cell 0 is the top-left cell.
	c := p.Centre(0)
	assert.InDelta(t, -0.75, c.X, 1e-12)
	assert.InDelta(t, 0.75, c.Y, 1e-12)

	// Corner cell has exactly two lattice neighbours, interior cell four.
	assert.ElementsMatch(t, []int{1, 4}, p.Neighbors(0))
	assert.ElementsMatch(t, []int{1, 9, 4, 6}, p.Neighbors(5))
}

func TestRectangularAssignWeights(t *testing.T) {
	p, err := pixelize.NewRectangular(4, 4, -1, 1, -1, 1)
	require.NoError(t, err)

	// A coordinate exactly on a cell centre gets the whole weight there.
	ws := p.Assign(p.Centre(5))
	total := 0.0
	for _, w := range ws {
		total += w.Weight
		if w.Cell == 5 {
			assert.InDelta(t, 1.0, w.Weight, 1e-9)
		}
	}
	assert.InDelta(t, 1.0, total, 1e-12)

	// Anywhere else the four weights still sum to 1.
	for _, c := range []grid.Coord{{X: 0.3, Y: -0.2}, {X: -0.999, Y: 0.999}, {X: 5, Y: -5}} {
		sum := 0.0
		for _, w := range p.Assign(c) {
			require.GreaterOrEqual(t, w.Weight, 0.0)
			sum += w.Weight
		}
		assert.InDelta(t, 1.0, sum, 1e-12, "weights at %+v", c)
	}
}

func TestRectangularValidation(t *testing.T) {
	_, err := pixelize.NewRectangular(1, 4, -1, 1, -1, 1)
	assert.ErrorIs(t, err, pixelize.ErrBadShape)
	_, err = pixelize.NewRectangular(4, 4, 1, -1, -1, 1)
	assert.ErrorIs(t, err, pixelize.ErrBadShape)
	_, err = pixelize.FitRectangular(4, 4, nil)
	assert.ErrorIs(t, err, pixelize.ErrNoCells)
}

func TestVoronoiAssignAndNeighbors(t *testing.T) {
	centres := []grid.Coord{{X: -1, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1.5}}
	v, err := pixelize.NewVoronoi(centres)
	require.NoError(t, err)
	assert.Equal(t, 3, v.Cells())

	ws := v.Assign(grid.Coord{X: -0.9, Y: 0.1})
	require.Len(t, ws, 1)
	assert.Equal(t, 0, ws[0].Cell)
	assert.Equal(t, 1.0, ws[0].Weight)

	// With three centres every cell neighbours the other two.
	assert.ElementsMatch(t, []int{1, 2}, v.Neighbors(0))
}

func buildTracedGrid(t *testing.T, rows, cols, sub int) *grid.Grid {
	t.Helper()
	mask, err := grid.NewMask(rows, cols, 0.5)
	require.NoError(t, err)
	g, err := grid.New(mask, sub)
	require.NoError(t, err)
	return g
}

// Flux conservation: every mapper row's weights sum to 1.
func TestMapperFluxConservation(t *testing.T) {
	g := buildTracedGrid(t, 8, 8, 2)
	pix, err := pixelize.FitRectangular(5, 5, g.Coords())
	require.NoError(t, err)

	m, err := pixelize.Build(g, pix)
	require.NoError(t, err)
	require.Equal(t, g.PixelCount(), m.Pixels())
	require.Equal(t, 25, m.Cells())

	for i := 0; i < m.Pixels(); i++ {
		sum := 0.0
		for _, cw := range m.Weights(i) {
			sum += cw.Weight
		}
		assert.InDelta(t, 1.0, sum, 1e-9, "row %d", i)
	}
}

// A pixelization with cells outside the reach of any traced coordinate must
// be reported, never silently zero-filled.
func TestMapperUnconstrainedCells(t *testing.T) {
	g := buildTracedGrid(t, 4, 4, 1)

	// An extent far wider than the traced coordinates leaves border cells
	// with no contributions.
	pix, err := pixelize.NewRectangular(8, 8, -50, 50, -50, 50)
	require.NoError(t, err)

	_, err = pixelize.Build(g, pix)
	require.ErrorIs(t, err, pixelize.ErrUnconstrainedPixelization)

	var unconstrained *pixelize.UnconstrainedError
	require.ErrorAs(t, err, &unconstrained)
	assert.NotEmpty(t, unconstrained.Cells)
}

func TestMapperMapToImage(t *testing.T) {
	g := buildTracedGrid(t, 6, 6, 1)
	pix, err := pixelize.FitRectangular(3, 3, g.Coords())
	require.NoError(t, err)
	m, err := pixelize.Build(g, pix)
	require.NoError(t, err)

	// A flat source maps to a flat image (weights sum to 1).
	flat := make([]float64, m.Cells())
	for i := range flat {
		flat[i] = 2.5
	}
	img, err := m.MapToImage(flat)
	require.NoError(t, err)
	for _, v := range img {
		assert.InDelta(t, 2.5, v, 1e-9)
	}

	_, err = m.MapToImage(flat[:2])
	assert.ErrorIs(t, err, grid.ErrShapeMismatch)
}

// Sub-gridding refines the relation but keeps flux conserved and the same
// overall structure.
func TestMapperSubGridBinning(t *testing.T) {
	coarse := buildTracedGrid(t, 6, 6, 1)
	fine := buildTracedGrid(t, 6, 6, 3)

	pix, err := pixelize.FitRectangular(4, 4, fine.Coords())
	require.NoError(t, err)

	mc, err := pixelize.Build(coarse, pix)
	require.NoError(t, err)
	mf, err := pixelize.Build(fine, pix)
	require.NoError(t, err)

	require.Equal(t, mc.Pixels(), mf.Pixels())
	for i := 0; i < mf.Pixels(); i++ {
		sum := 0.0
		for _, cw := range mf.Weights(i) {
			sum += cw.Weight
		}
		assert.InDelta(t, 1.0, sum, 1e-9)
	}

	// The sub-grid mapper spreads weight over at least as many cells.
	moreCells := 0
	for i := 0; i < mf.Pixels(); i++ {
		if len(mf.Weights(i)) >= len(mc.Weights(i)) {
			moreCells++
		}
	}
	assert.Greater(t, float64(moreCells), 0.9*float64(mf.Pixels()))
}

func TestVoronoiValidation(t *testing.T) {
	_, err := pixelize.NewVoronoi(nil)
	assert.ErrorIs(t, err, pixelize.ErrNoCells)
}
