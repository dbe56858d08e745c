// Package layout computes slot rectangles for collage arrangements.
//
// # Overview
//
// The layout engine is a pure function from a layout [Kind] and the number of
// occupied slots to a [Geometry]: the canvas size plus one [Rect] per occupied
// slot, in slot order. It holds no state; calling [Compute] twice with the
// same inputs yields identical rectangles.
//
// The same geometry drives both the on-screen preview and the exported
// raster. Previews call [Geometry.Fit] to scale the export geometry to a
// display width, so the two can never drift apart in proportion.
//
// # Grid
//
// Up to four occupied slots form a single row of equal squares. Five to
// eight form two rows: the first row always holds four squares and the
// second row, when shorter, is centered under the first.
//
// # Asymmetric
//
// Four fixed-width columns with widths {1, 1+a, 1-a, 1} × base unit, where a
// is [Params.Asymmetry] (0.18 by default). The canvas always spans all four
// columns regardless of occupancy. Slots past the fourth wrap into a second
// row that repeats the column pattern from the left.
//
// # Parameters
//
//	g, err := layout.Compute(layout.Grid, 3, layout.DefaultParams())
//	// g.Width == 3*800 + 2*35 + 2*35
//
// Callers must reject exports with zero occupied slots before computing
// geometry; Compute still returns a minimal canvas for zero so previews of
// an empty store have something to draw.
package layout
