// Package composite paints slot sources into one flattened raster.
//
// Each Ready slot, in store order, is decoded upright (EXIF orientation is
// applied), assigned the next rectangle of the layout geometry and drawn
// with cover-fit placement: a uniform scale that fills the rectangle,
// centered, with the overflow clipped. Empty and Unsupported slots are
// skipped before the geometry is computed, so they never leave holes.
package composite

import (
	"context"
	"image"
	"image/color"
	"math"
	"time"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"golang.org/x/sync/errgroup"

	// Decoders for every encoding a Ready source may hold.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/matzehuels/collage/pkg/errors"
	"github.com/matzehuels/collage/pkg/layout"
	"github.com/matzehuels/collage/pkg/observability"
	"github.com/matzehuels/collage/pkg/slots"
)

// Compositor draws collages with fixed layout parameters.
type Compositor struct {
	Params     layout.Params
	Background color.Color
}

// New returns a compositor with a white background.
func New(p layout.Params) *Compositor {
	return &Compositor{Params: p, Background: color.White}
}

// Surface is a finished composite.
type Surface struct {
	Image    image.Image
	Geometry layout.Geometry

	// Indices are the store indices drawn, in rectangle order.
	Indices []int
}

// Composite draws every Ready slot of snap into a new surface. It fails
// with NO_CONTENT when no slot is Ready, and with COMPOSITE_FAILURE naming
// the slot when any source cannot be decoded; no partial surface is
// returned in either case.
func (c *Compositor) Composite(ctx context.Context, snap [slots.Count]slots.Slot, kind layout.Kind) (*Surface, error) {
	var (
		indices []int
		sources []*slots.Source
	)
	for i, sl := range snap {
		if sl.State() == slots.Ready {
			indices = append(indices, i)
			sources = append(sources, sl.Source())
		}
	}
	if len(indices) == 0 {
		return nil, errors.New(errors.ErrCodeNoContent, "nothing to export: add at least one photo")
	}

	start := time.Now()
	observability.Pipeline().OnCompositeStart(ctx, string(kind), len(indices))
	surface, err := c.composite(ctx, kind, snap, indices, sources)
	observability.Pipeline().OnCompositeComplete(ctx, string(kind), time.Since(start), err)
	return surface, err
}

func (c *Compositor) composite(ctx context.Context, kind layout.Kind, snap [slots.Count]slots.Slot, indices []int, sources []*slots.Source) (*Surface, error) {
	geo, err := layout.Compute(kind, len(indices), c.Params)
	if err != nil {
		return nil, err
	}

	images := make([]image.Image, len(sources))
	g, ctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			img, err := imaging.Decode(src.Reader(), imaging.AutoOrientation(true))
			if err != nil {
				return errors.Wrap(errors.ErrCodeCompositeFailure, err,
					"slot %d (%s) could not be decoded", indices[i], snap[indices[i]].Name())
			}
			images[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	w, h := geo.Size()
	dc := gg.NewContext(w, h)
	bg := c.Background
	if bg == nil {
		bg = color.White
	}
	dc.SetColor(bg)
	dc.Clear()

	for i, img := range images {
		Draw(dc, img, geo.Rects[i])
	}

	return &Surface{Image: dc.Image(), Geometry: geo, Indices: indices}, nil
}

// Draw paints img into r of dc with cover-fit placement, clipped to r.
func Draw(dc *gg.Context, img image.Image, r layout.Rect) {
	b := img.Bounds()
	if b.Empty() {
		return
	}
	scale, ox, oy := CoverFit(r.W, r.H, float64(b.Dx()), float64(b.Dy()))

	dc.Push()
	dc.DrawRectangle(r.X, r.Y, r.W, r.H)
	dc.Clip()
	dc.Translate(r.X+ox, r.Y+oy)
	dc.Scale(scale, scale)
	dc.DrawImage(img, -b.Min.X, -b.Min.Y)
	dc.Pop()
	// Pop keeps the clip mask.
	dc.ResetClip()
}

// CoverFit returns the uniform scale that makes a srcW x srcH image cover a
// rectW x rectH rectangle, and the offset that centers the scaled image in
// it. Offsets are negative along the overflowing axis.
func CoverFit(rectW, rectH, srcW, srcH float64) (scale, offsetX, offsetY float64) {
	scale = math.Max(rectW/srcW, rectH/srcH)
	offsetX = (rectW - srcW*scale) / 2
	offsetY = (rectH - srcH*scale) / 2
	return scale, offsetX, offsetY
}
