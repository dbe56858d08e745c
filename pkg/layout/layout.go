package layout

import (
	"fmt"
	"math"
	"strings"

	"github.com/matzehuels/collage/pkg/errors"
)

// Kind names a geometric arrangement.
type Kind string

const (
	Grid       Kind = "grid"
	Asymmetric Kind = "asymmetric"
)

// ValidKinds lists every supported layout kind.
var ValidKinds = map[Kind]bool{
	Grid:       true,
	Asymmetric: true,
}

// Kinds returns the supported layout kinds in display order.
func Kinds() []Kind {
	return []Kind{Grid, Asymmetric}
}

// ParseKind parses a layout name, case-insensitively.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !ValidKinds[k] {
		return "", errors.New(errors.ErrCodeInvalidLayout, "unknown layout %q (want grid or asymmetric)", s)
	}
	return k, nil
}

const (
	// MaxSlots is the largest number of occupied slots a layout places.
	MaxSlots = 8

	// RowCapacity is the number of slots per row.
	RowCapacity = 4
)

// Default geometry, in export pixels.
const (
	DefaultBaseUnit    = 800
	DefaultSpacing     = 35
	DefaultOuterBorder = 35
	DefaultAsymmetry   = 0.18
)

// Params are the geometric constants shared by preview and export.
type Params struct {
	BaseUnit    float64 `json:"base_unit" toml:"base_unit"`
	Spacing     float64 `json:"spacing" toml:"spacing"`
	OuterBorder float64 `json:"outer_border" toml:"outer_border"`
	Asymmetry   float64 `json:"asymmetry" toml:"asymmetry"`
}

// DefaultParams returns the export geometry.
func DefaultParams() Params {
	return Params{
		BaseUnit:    DefaultBaseUnit,
		Spacing:     DefaultSpacing,
		OuterBorder: DefaultOuterBorder,
		Asymmetry:   DefaultAsymmetry,
	}
}

// Validate checks that p describes a drawable geometry.
func (p Params) Validate() error {
	switch {
	case !(p.BaseUnit > 0) || math.IsInf(p.BaseUnit, 0):
		return errors.New(errors.ErrCodeInvalidLayout, "base unit must be positive, got %v", p.BaseUnit)
	case p.Spacing < 0 || math.IsNaN(p.Spacing):
		return errors.New(errors.ErrCodeInvalidLayout, "spacing must be non-negative, got %v", p.Spacing)
	case p.OuterBorder < 0 || math.IsNaN(p.OuterBorder):
		return errors.New(errors.ErrCodeInvalidLayout, "outer border must be non-negative, got %v", p.OuterBorder)
	case p.Asymmetry < 0 || p.Asymmetry >= 1 || math.IsNaN(p.Asymmetry):
		return errors.New(errors.ErrCodeInvalidLayout, "asymmetry must be in [0, 1), got %v", p.Asymmetry)
	}
	return nil
}

// ColumnWidths returns the four asymmetric column widths.
func (p Params) ColumnWidths() [RowCapacity]float64 {
	b := p.BaseUnit
	return [RowCapacity]float64{b, b * (1 + p.Asymmetry), b * (1 - p.Asymmetry), b}
}

// Rect is an axis-aligned rectangle with its origin at the top-left.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"width"`
	H float64 `json:"height"`
}

// Center returns the midpoint of r.
func (r Rect) Center() (x, y float64) {
	return r.X + r.W/2, r.Y + r.H/2
}

func (r Rect) String() string {
	return fmt.Sprintf("(%g,%g %gx%g)", r.X, r.Y, r.W, r.H)
}

// Geometry is the canvas size plus one rectangle per occupied slot.
type Geometry struct {
	Kind   Kind    `json:"layout"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Rects  []Rect  `json:"rects"`
}

// Size returns the canvas size in whole pixels, rounded up.
func (g Geometry) Size() (width, height int) {
	return int(math.Ceil(g.Width)), int(math.Ceil(g.Height))
}

// Fit scales g uniformly so the canvas is width units wide. It is used for
// previews; the proportions are those of the export geometry.
func (g Geometry) Fit(width float64) Geometry {
	if g.Width <= 0 || width <= 0 {
		return g
	}
	f := width / g.Width
	out := Geometry{
		Kind:   g.Kind,
		Width:  width,
		Height: g.Height * f,
		Rects:  make([]Rect, len(g.Rects)),
	}
	for i, r := range g.Rects {
		out.Rects[i] = Rect{X: r.X * f, Y: r.Y * f, W: r.W * f, H: r.H * f}
	}
	return out
}

// Compute returns the geometry for occupied slots under kind. Rectangles are
// assigned to occupied slots only, in slot order.
func Compute(kind Kind, occupied int, p Params) (Geometry, error) {
	if !ValidKinds[kind] {
		return Geometry{}, errors.New(errors.ErrCodeInvalidLayout, "unknown layout %q", kind)
	}
	if occupied < 0 || occupied > MaxSlots {
		return Geometry{}, errors.New(errors.ErrCodeInvalidIndex, "occupied count %d out of range [0, %d]", occupied, MaxSlots)
	}
	if err := p.Validate(); err != nil {
		return Geometry{}, err
	}

	switch kind {
	case Asymmetric:
		return asymmetric(occupied, p), nil
	default:
		return grid(occupied, p), nil
	}
}

// rowWidth is the width of n equal squares with spacing between them.
func rowWidth(n int, p Params) float64 {
	if n <= 0 {
		return 0
	}
	return float64(n)*p.BaseUnit + float64(n-1)*p.Spacing
}

func canvasHeight(rows int, p Params) float64 {
	return float64(rows)*p.BaseUnit + float64(rows-1)*p.Spacing + 2*p.OuterBorder
}

func grid(occupied int, p Params) Geometry {
	g := Geometry{Kind: Grid, Rects: make([]Rect, 0, occupied)}
	step := p.BaseUnit + p.Spacing

	if occupied <= RowCapacity {
		g.Width = rowWidth(occupied, p) + 2*p.OuterBorder
		g.Height = canvasHeight(1, p)
		for i := range occupied {
			g.Rects = append(g.Rects, Rect{
				X: p.OuterBorder + float64(i)*step,
				Y: p.OuterBorder,
				W: p.BaseUnit,
				H: p.BaseUnit,
			})
		}
		return g
	}

	g.Width = rowWidth(RowCapacity, p) + 2*p.OuterBorder
	g.Height = canvasHeight(2, p)
	for i := range RowCapacity {
		g.Rects = append(g.Rects, Rect{
			X: p.OuterBorder + float64(i)*step,
			Y: p.OuterBorder,
			W: p.BaseUnit,
			H: p.BaseUnit,
		})
	}

	second := occupied - RowCapacity
	// Center the second row under the first.
	x0 := p.OuterBorder + float64(RowCapacity-second)*step/2
	for i := range second {
		g.Rects = append(g.Rects, Rect{
			X: x0 + float64(i)*step,
			Y: p.OuterBorder + step,
			W: p.BaseUnit,
			H: p.BaseUnit,
		})
	}
	return g
}

func asymmetric(occupied int, p Params) Geometry {
	widths := p.ColumnWidths()

	var xs [RowCapacity]float64
	x := p.OuterBorder
	for i, w := range widths {
		xs[i] = x
		x += w + p.Spacing
	}

	rows := 1
	if occupied > RowCapacity {
		rows = 2
	}
	g := Geometry{
		Kind:   Asymmetric,
		Width:  x - p.Spacing + p.OuterBorder,
		Height: canvasHeight(rows, p),
		Rects:  make([]Rect, 0, occupied),
	}
	for i := range occupied {
		col, row := i%RowCapacity, i/RowCapacity
		g.Rects = append(g.Rects, Rect{
			X: xs[col],
			Y: p.OuterBorder + float64(row)*(p.BaseUnit+p.Spacing),
			W: widths[col],
			H: p.BaseUnit,
		})
	}
	return g
}
