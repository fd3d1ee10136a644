package main

import (
	"image/color"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	// Liberation fonts register automatically on import
	_ "gonum.org/v1/plot/font/liberation"

	"github.com/gravlens/lensray/grid"
	"github.com/gravlens/lensray/pixelize"
	"github.com/gravlens/lensray/point"
	"github.com/gravlens/lensray/trace"
)

var (
	blue  = color.RGBA{R: 0, G: 0, B: 255, A: 255}
	red   = color.RGBA{R: 255, G: 0, B: 0, A: 255}
	black = color.RGBA{R: 0, G: 0, B: 0, A: 255}
)

func newStyledPlot(title, xLabel, yLabel string) *plot.Plot {
	p := plot.New()

	// Modify the font fields directly on existing styles
	p.Title.TextStyle.Font.Typeface = "Liberation"
	p.Title.TextStyle.Font.Variant = "Sans"
	p.Title.TextStyle.Font.Size = vg.Points(12)

	p.X.Label.TextStyle.Font.Typeface = "Liberation"
	p.X.Label.TextStyle.Font.Variant = "Sans"
	p.X.Label.TextStyle.Font.Size = vg.Points(12)

	p.Y.Label.TextStyle.Font.Typeface = "Liberation"
	p.Y.Label.TextStyle.Font.Variant = "Sans"
	p.Y.Label.TextStyle.Font.Size = vg.Points(12)

	p.X.Tick.Label.Font.Typeface = "Liberation"
	p.X.Tick.Label.Font.Variant = "Sans"
	p.X.Tick.Label.Font.Size = vg.Points(10)

	p.Y.Tick.Label.Font.Typeface = "Liberation"
	p.Y.Tick.Label.Font.Variant = "Sans"
	p.Y.Tick.Label.Font.Size = vg.Points(10)

	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	p.Add(plotter.NewGrid())
	return p
}

func coordScatter(coords []grid.Coord, c color.Color, radius vg.Length) (*plotter.Scatter, error) {
	pts := make(plotter.XYs, len(coords))
	for i, coord := range coords {
		pts[i].X = coord.X
		pts[i].Y = coord.Y
	}
	s, err := plotter.NewScatter(pts)
	if err != nil {
		return nil, err
	}
	s.Shape = draw.CircleGlyph{}
	s.Radius = radius
	s.Color = c
	return s, nil
}

// makeCriticalCurvePlot draws tangential and radial critical curves with the
// solved image positions overlaid.
func makeCriticalCurvePlot(s *Scenario, curves *trace.CurveSet, solutions []point.Solution, path string) error {
	title := "Critical curves"
	if s.Title != "" {
		title = s.Title + ": critical curves"
	}
	p := newStyledPlot(title, "x (arcsec)", "y (arcsec)")
	p.X.Min, p.X.Max = -s.WindowHalfWidth, s.WindowHalfWidth
	p.Y.Min, p.Y.Max = -s.WindowHalfWidth, s.WindowHalfWidth

	tang, err := coordScatter(curves.Tangential, blue, vg.Points(1))
	if err != nil {
		return err
	}
	rad, err := coordScatter(curves.Radial, red, vg.Points(1))
	if err != nil {
		return err
	}
	p.Add(tang, rad)
	p.Legend.Add("tangential", tang)
	p.Legend.Add("radial", rad)

	if len(solutions) > 0 {
		images := make([]grid.Coord, len(solutions))
		for i, sol := range solutions {
			images[i] = sol.Position
		}
		imgScatter, err := coordScatter(images, black, vg.Points(3))
		if err != nil {
			return err
		}
		p.Add(imgScatter)
		p.Legend.Add("images", imgScatter)
	}

	return p.Save(6*vg.Inch, 6*vg.Inch, filepath.Join(s.OutputFolder, path))
}

// sourceGrid adapts a rectangular source reconstruction to the heat map's
// grid interface. Rows are flipped so y increases with the row index.
type sourceGrid struct {
	pix    *pixelize.Rectangular
	values []float64
}

func (g sourceGrid) Dims() (int, int) {
	rows, cols := g.pix.Shape()
	return cols, rows
}

func (g sourceGrid) X(c int) float64 { return g.pix.Centre(c).X }

func (g sourceGrid) Y(r int) float64 {
	rows, cols := g.pix.Shape()
	return g.pix.Centre((rows - 1 - r) * cols).Y
}

func (g sourceGrid) Z(c, r int) float64 {
	rows, cols := g.pix.Shape()
	return g.values[(rows-1-r)*cols+c]
}

// makeSourcePlanePlot draws the caustics and the point-source position, with
// the reconstructed source underneath when an inversion ran.
func makeSourcePlanePlot(s *Scenario, curves *trace.CurveSet, pix *pixelize.Rectangular, reconstruction []float64, path string) error {
	title := "Source plane"
	if s.Title != "" {
		title = s.Title + ": source plane"
	}
	p := newStyledPlot(title, "x (arcsec)", "y (arcsec)")

	if pix != nil && reconstruction != nil {
		heat := plotter.NewHeatMap(sourceGrid{pix: pix, values: reconstruction}, palette.Heat(12, 1))
		p.Add(heat)
	}

	tang, err := coordScatter(curves.TangentialCaustic, blue, vg.Points(1))
	if err != nil {
		return err
	}
	rad, err := coordScatter(curves.RadialCaustic, red, vg.Points(1))
	if err != nil {
		return err
	}
	src, err := coordScatter([]grid.Coord{s.Source}, black, vg.Points(3))
	if err != nil {
		return err
	}
	p.Add(tang, rad, src)
	p.Legend.Add("tangential caustic", tang)
	p.Legend.Add("radial caustic", rad)
	p.Legend.Add("source", src)

	return p.Save(6*vg.Inch, 6*vg.Inch, filepath.Join(s.OutputFolder, path))
}
