package layout_test

import (
	"fmt"

	"github.com/matzehuels/collage/pkg/layout"
)

func ExampleCompute() {
	g, _ := layout.Compute(layout.Grid, 3, layout.DefaultParams())

	fmt.Println("Canvas:", g.Width, "x", g.Height)
	for _, r := range g.Rects {
		fmt.Println(r)
	}
	// Output:
	// Canvas: 2540 x 870
	// (35,35 800x800)
	// (870,35 800x800)
	// (1705,35 800x800)
}

func ExampleCompute_twoRows() {
	g, _ := layout.Compute(layout.Grid, 6, layout.DefaultParams())

	fmt.Println("Canvas:", g.Width, "x", g.Height)
	// Second row is centered under the first.
	for _, r := range g.Rects[4:] {
		fmt.Println(r)
	}
	// Output:
	// Canvas: 3375 x 1705
	// (870,870 800x800)
	// (1705,870 800x800)
}

func ExampleCompute_asymmetric() {
	g, _ := layout.Compute(layout.Asymmetric, 4, layout.DefaultParams())

	fmt.Printf("Canvas: %.0f x %.0f\n", g.Width, g.Height)
	for _, r := range g.Rects {
		fmt.Printf("x=%.0f width=%.0f\n", r.X, r.W)
	}
	// Output:
	// Canvas: 3375 x 870
	// x=35 width=800
	// x=870 width=944
	// x=1849 width=656
	// x=2540 width=800
}

func ExampleGeometry_Fit() {
	g, _ := layout.Compute(layout.Grid, 2, layout.DefaultParams())
	preview := g.Fit(341)

	fmt.Printf("Preview: %.0f x %.0f\n", preview.Width, preview.Height)
	fmt.Printf("First slot: %.0f px\n", preview.Rects[0].W)
	// Output:
	// Preview: 341 x 174
	// First slot: 160 px
}
