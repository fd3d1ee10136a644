// Command lensray runs a gravitational lens scenario end to end: critical
// curves and caustics, the point-source image positions, and optionally a
// pixelized source reconstruction of a simulated dataset. Parameters come
// from a single json5 file.
package main

import (
	"fmt"
	"math"
	"os"
	"time"

	json "github.com/KevinWang15/go-json5"

	"github.com/gravlens/lensray/grid"
	"github.com/gravlens/lensray/imaging"
	"github.com/gravlens/lensray/inversion"
	"github.com/gravlens/lensray/pixelize"
	"github.com/gravlens/lensray/point"
	"github.com/gravlens/lensray/profile"
	"github.com/gravlens/lensray/trace"
)

const version = "1_0_0"

func main() {
	programStart := time.Now()

	args := os.Args
	if len(args) != 2 {
		fmt.Println("\n\tWrong number of arguments.\n\tUsage: lensray <scenario-file>")
		os.Exit(1)
	}
	path := args[1]

	// Read the Json5 (or Json) parameter file
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Println(fmt.Errorf("\n\tAttempt to read input file %q failed: %w", path, err))
		os.Exit(2)
	}

	var jsonTable map[string]interface{}
	err = json.Unmarshal(data, &jsonTable)
	if err != nil {
		fmt.Println(fmt.Errorf("\n\tFormat error in file %q: %w", path, err))
		os.Exit(3)
	}

	scenario, msg, ok := validateScenario(jsonTable)
	if !ok {
		fmt.Println(msg)
		os.Exit(4)
	}

	if scenario.Title != "" {
		fmt.Printf("lensray %s: %s\n", version, scenario.Title)
	} else {
		fmt.Printf("lensray %s\n", version)
	}

	tracer, err := buildTracer(scenario)
	if err != nil {
		fmt.Println(fmt.Errorf("building tracer: %w", err))
		os.Exit(5)
	}

	window := trace.SquareWindow(scenario.WindowHalfWidth, scenario.WindowSamples)
	curves, err := tracer.CriticalCurves(window)
	if err != nil {
		fmt.Println(fmt.Errorf("locating critical curves: %w", err))
		os.Exit(5)
	}
	fmt.Printf("critical curves: %d tangential, %d radial points\n",
		len(curves.Tangential), len(curves.Radial))

	solutions := solveImages(scenario, tracer)

	if err := makeCriticalCurvePlot(scenario, curves, solutions, "critical_curves.png"); err != nil {
		fmt.Println(fmt.Errorf("writing critical_curves.png: %w", err))
		os.Exit(6)
	}

	var pix *pixelize.Rectangular
	var reconstruction []float64
	if scenario.Inversion != nil {
		pix, reconstruction = runInversion(scenario, tracer)
	}

	if err := makeSourcePlanePlot(scenario, curves, pix, reconstruction, "source_plane.png"); err != nil {
		fmt.Println(fmt.Errorf("writing source_plane.png: %w", err))
		os.Exit(6)
	}

	fmt.Printf("done in %v\n", time.Since(programStart).Round(time.Millisecond))
}

// buildTracer assembles the single- or multi-plane tracer from the scenario's
// lens list.
func buildTracer(s *Scenario) (*trace.Tracer, error) {
	if !s.MultiPlane() {
		return trace.New(profile.Set(s.Lenses)), nil
	}

	// Group lenses sharing a redshift into one plane each.
	byRedshift := map[float64]profile.Set{}
	for i, p := range s.Lenses {
		z := s.LensRedshifts[i]
		byRedshift[z] = append(byRedshift[z], p)
	}
	planes := make([]trace.Plane, 0, len(byRedshift)+1)
	for z, set := range byRedshift {
		planes = append(planes, trace.Plane{Profiles: set, Redshift: z})
	}
	planes = append(planes, trace.Plane{Redshift: s.SourceRedshift})
	return trace.NewMultiPlane(planes, s.Cosmology)
}

func solveImages(s *Scenario, tracer *trace.Tracer) []point.Solution {
	window := trace.SquareWindow(s.WindowHalfWidth, 0)
	solver, err := point.New(tracer, window, s.SeedPitch, nil)
	if err != nil {
		fmt.Println(fmt.Errorf("building point solver: %w", err))
		os.Exit(5)
	}
	solver.Tolerance = s.SolverTolerance

	res, err := solver.Solve(s.Source)
	if err != nil {
		fmt.Println(fmt.Errorf("solving for images of (%g, %g): %w", s.Source.X, s.Source.Y, err))
		os.Exit(5)
	}

	fmt.Printf("source (%g, %g): %d images\n", s.Source.X, s.Source.Y, len(res.Solutions))
	for i, sol := range res.Solutions {
		fmt.Printf("  image %d: (%+.4f, %+.4f)  mu = %+8.3f  parity %+d\n",
			i+1, sol.Position.X, sol.Position.Y, sol.Magnification, sol.Parity)
	}
	fmt.Printf("total |mu| = %.3f\n", res.TotalUnsignedMagnification())
	if res.MultiplicityNote != "" {
		fmt.Println("note:", res.MultiplicityNote)
	}
	return res.Solutions
}

// runInversion simulates an imaging dataset of a Gaussian source seen through
// the lens and reconstructs the source on a rectangular pixelization.
func runInversion(s *Scenario, tracer *trace.Tracer) (*pixelize.Rectangular, []float64) {
	spec := s.Inversion

	fail := func(err error) {
		fmt.Println(fmt.Errorf("inversion demo: %w", err))
		os.Exit(7)
	}

	mask, err := grid.NewMask(spec.GridSize, spec.GridSize, spec.PixelScale)
	if err != nil {
		fail(err)
	}
	g, err := grid.New(mask, spec.SubSize)
	if err != nil {
		fail(err)
	}
	traced, err := tracer.TraceGrid(g)
	if err != nil {
		fail(err)
	}

	pix, err := pixelize.FitRectangular(spec.SourceCells, spec.SourceCells, traced.Coords())
	if err != nil {
		fail(err)
	}
	mapper, err := pixelize.Build(traced, pix)
	if err != nil {
		fail(err)
	}

	// True source: a circular Gaussian blob at the scenario's source point,
	// sampled on the pixelization's cell centres and projected to the image.
	truth := make([]float64, pix.Cells())
	for i := range truth {
		c := pix.Centre(i)
		dx, dy := c.X-s.Source.X, c.Y-s.Source.Y
		truth[i] = spec.SourceFlux * math.Exp(-(dx*dx+dy*dy)/(2*spec.SourceSigma*spec.SourceSigma))
	}
	model, err := mapper.MapToImage(truth)
	if err != nil {
		fail(err)
	}

	psf := imaging.GaussianKernel(int(4*spec.PSFSigma)+1, spec.PSFSigma)
	dataset, err := imaging.Simulate(mask, model, psf, spec.NoiseSigma)
	if err != nil {
		fail(err)
	}

	res, err := inversion.Solve(mapper, dataset.Image, dataset.NoiseMap, inversion.Gradient{Coefficient: spec.RegCoeff})
	if err != nil {
		fail(err)
	}

	fit, err := imaging.NewFit(dataset, res.Reconstructed)
	if err != nil {
		fail(err)
	}

	fmt.Printf("inversion: %d pixels -> %d cells, chi2 = %.4f, evidence = %.4f, log likelihood = %.4f\n",
		mapper.Pixels(), mapper.Cells(), res.ChiSquared, res.Evidence(), fit.LogLikelihood)
	if res.Diagnostics.NearSingular {
		fmt.Printf("note: curvature matrix is near singular (condition %.3g)\n",
			res.Diagnostics.ConditionNumber)
	}
	return pix, res.Source
}
