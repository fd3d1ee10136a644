// Package grid provides the coordinate substrate of the lensing engine: boolean
// masks over a regular pixel lattice and the immutable (x, y) coordinate grids
// derived from them, including anti-aliasing sub-grids.
//
// Coordinates are in arcseconds with x increasing to the right and y increasing
// upward, origin at the centre of the mask (plus an optional offset). This
// matches the fundamental-plane convention used throughout the engine.
package grid

import "fmt"

// Coord is a single (x, y) position in arcseconds.
type Coord struct {
	X float64
	Y float64
}

// Add returns c + d.
func (c Coord) Add(d Coord) Coord { return Coord{c.X + d.X, c.Y + d.Y} }

// Sub returns c - d.
func (c Coord) Sub(d Coord) Coord { return Coord{c.X - d.X, c.Y - d.Y} }

// Scale returns c scaled by s.
func (c Coord) Scale(s float64) Coord { return Coord{c.X * s, c.Y * s} }

// Mask is a boolean lattice over a regular (row, column) pixel space.
// A true entry means the pixel is masked out and excluded from all
// downstream numerical arrays. Masks are immutable after construction.
type Mask struct {
	rows, cols int
	pixelScale float64
	originX    float64
	originY    float64
	masked     []bool // row-major, true = excluded

	// Bijective mapping between unmasked-cell ordinal and (row, col),
	// built once at construction.
	pixelIndex []int // row-major cell -> ordinal, -1 if masked
	pixelRC    [][2]int
}

// NewMask returns an all-unmasked mask of the given shape and pixel scale.
func NewMask(rows, cols int, pixelScale float64) (*Mask, error) {
	masked := make([]bool, rows*cols)
	return MaskFrom(masked, rows, cols, pixelScale)
}

// MaskFrom builds a mask from a row-major boolean slice (true = masked out).
func MaskFrom(masked []bool, rows, cols int, pixelScale float64) (*Mask, error) {
	if pixelScale <= 0 {
		return nil, ErrBadPixelScale
	}
	if len(masked) != rows*cols {
		return nil, fmt.Errorf("%w: %d mask entries for a %dx%d lattice",
			ErrShapeMismatch, len(masked), rows, cols)
	}
	m := &Mask{
		rows:       rows,
		cols:       cols,
		pixelScale: pixelScale,
		masked:     append([]bool(nil), masked...),
	}
	m.buildIndex()
	if len(m.pixelRC) == 0 {
		return nil, ErrEmptyMask
	}
	return m, nil
}

// MaskFrom2D builds a mask from a 2D boolean slice (true = masked out).
// All rows must have the same length.
func MaskFrom2D(masked [][]bool, pixelScale float64) (*Mask, error) {
	rows := len(masked)
	if rows == 0 {
		return nil, ErrEmptyMask
	}
	cols := len(masked[0])
	flat := make([]bool, 0, rows*cols)
	for _, row := range masked {
		if len(row) != cols {
			return nil, ErrNonRectangular
		}
		flat = append(flat, row...)
	}
	return MaskFrom(flat, rows, cols, pixelScale)
}

// CircularMask unmasks the pixels whose centres lie within radius arcseconds
// of the given centre; everything else is masked out.
func CircularMask(rows, cols int, pixelScale, radius float64, centre Coord) (*Mask, error) {
	return AnnularMask(rows, cols, pixelScale, 0, radius, centre)
}

// AnnularMask unmasks the pixels whose centres lie between innerRadius and
// outerRadius arcseconds of the given centre.
func AnnularMask(rows, cols int, pixelScale, innerRadius, outerRadius float64, centre Coord) (*Mask, error) {
	if pixelScale <= 0 {
		return nil, ErrBadPixelScale
	}
	masked := make([]bool, rows*cols)
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			c := pixelCentre(row, col, rows, cols, pixelScale, 0, 0)
			dx := c.X - centre.X
			dy := c.Y - centre.Y
			r2 := dx*dx + dy*dy
			if r2 < innerRadius*innerRadius || r2 > outerRadius*outerRadius {
				masked[row*cols+col] = true
			}
		}
	}
	return MaskFrom(masked, rows, cols, pixelScale)
}

func (m *Mask) buildIndex() {
	m.pixelIndex = make([]int, m.rows*m.cols)
	for i := range m.pixelIndex {
		m.pixelIndex[i] = -1
	}
	for row := 0; row < m.rows; row++ {
		for col := 0; col < m.cols; col++ {
			cell := row*m.cols + col
			if m.masked[cell] {
				continue
			}
			m.pixelIndex[cell] = len(m.pixelRC)
			m.pixelRC = append(m.pixelRC, [2]int{row, col})
		}
	}
}

// Shape returns the (rows, cols) of the mask lattice.
func (m *Mask) Shape() (rows, cols int) { return m.rows, m.cols }

// PixelScale returns the arcseconds-per-pixel conversion of the lattice.
func (m *Mask) PixelScale() float64 { return m.pixelScale }

// UnmaskedCount returns the number of unmasked pixels.
func (m *Mask) UnmaskedCount() int { return len(m.pixelRC) }

// IsMasked reports whether the pixel at (row, col) is masked out.
// Out-of-bounds pixels are treated as masked.
func (m *Mask) IsMasked(row, col int) bool {
	if row < 0 || row >= m.rows || col < 0 || col >= m.cols {
		return true
	}
	return m.masked[row*m.cols+col]
}

// PixelIndex returns the ordinal of the unmasked pixel at (row, col),
// or -1 if the pixel is masked out.
func (m *Mask) PixelIndex(row, col int) int {
	if row < 0 || row >= m.rows || col < 0 || col >= m.cols {
		return -1
	}
	return m.pixelIndex[row*m.cols+col]
}

// PixelAt returns the (row, col) of the i-th unmasked pixel.
func (m *Mask) PixelAt(i int) (row, col int) {
	rc := m.pixelRC[i]
	return rc[0], rc[1]
}

// CentreOf returns the arcsecond coordinates of the pixel centre at (row, col).
func (m *Mask) CentreOf(row, col int) Coord {
	return pixelCentre(row, col, m.rows, m.cols, m.pixelScale, m.originX, m.originY)
}

// Embed scatters per-unmasked-pixel values into a full 2D row-major array,
// with masked cells left at zero. The values length must equal UnmaskedCount.
func (m *Mask) Embed(values []float64) ([][]float64, error) {
	if len(values) != m.UnmaskedCount() {
		return nil, fmt.Errorf("%w: %d values for %d unmasked pixels",
			ErrShapeMismatch, len(values), m.UnmaskedCount())
	}
	out := make([][]float64, m.rows)
	for row := range out {
		out[row] = make([]float64, m.cols)
	}
	for i, v := range values {
		rc := m.pixelRC[i]
		out[rc[0]][rc[1]] = v
	}
	return out, nil
}

// Extract gathers the unmasked pixels of a full 2D array into ordinal order,
// the inverse of Embed.
func (m *Mask) Extract(image [][]float64) ([]float64, error) {
	if len(image) != m.rows {
		return nil, fmt.Errorf("%w: image has %d rows, mask has %d",
			ErrShapeMismatch, len(image), m.rows)
	}
	out := make([]float64, m.UnmaskedCount())
	for i, rc := range m.pixelRC {
		row := image[rc[0]]
		if len(row) != m.cols {
			return nil, fmt.Errorf("%w: image row %d has %d columns, mask has %d",
				ErrShapeMismatch, rc[0], len(row), m.cols)
		}
		out[i] = row[rc[1]]
	}
	return out, nil
}

// pixelCentre converts a (row, col) lattice index to arcsecond coordinates.
// Row 0 is the top of the image, so y decreases with increasing row.
func pixelCentre(row, col, rows, cols int, scale, originX, originY float64) Coord {
	x := (float64(col)-float64(cols-1)/2.0)*scale + originX
	y := (float64(rows-1)/2.0-float64(row))*scale + originY
	return Coord{X: x, Y: y}
}
