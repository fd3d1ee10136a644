package trace_test

import (
	"fmt"

	"github.com/gravlens/lensray/grid"
	"github.com/gravlens/lensray/profile"
	"github.com/gravlens/lensray/trace"
)

func ExampleTracer_TraceCoord() {
	// A singular isothermal sphere deflects every ray by its Einstein
	// radius toward the centre.
	tracer := trace.New(profile.Set{
		profile.Isothermal{EinsteinRadius: 1.0, AxisRatio: 1.0},
	})

	beta := tracer.TraceCoord(grid.Coord{X: 2.0})
	fmt.Printf("(%.2f, %.2f)\n", beta.X, beta.Y)
	// Output: (1.00, 0.00)
}

func ExampleTracer_MagnificationAt() {
	tracer := trace.New(profile.Set{
		profile.Isothermal{EinsteinRadius: 1.0, AxisRatio: 1.0},
	})

	// Outside the Einstein radius the image is magnified and upright.
	fmt.Printf("%.1f\n", tracer.MagnificationAt(grid.Coord{X: 2.0}))
	// Output: 2.0
}
