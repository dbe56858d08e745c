package ingest

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"math"

	"github.com/disintegration/imaging"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"

	// Decoders the runtime can re-encode from. imaging registers BMP and TIFF.
	_ "golang.org/x/image/webp"
)

// maxPixels bounds the raster any accepted source may decode to.
const maxPixels = 64 << 20

// reencodeTarget is the encoding every re-encoded source ends up in.
const reencodeTarget = "image/png"

// reencode decodes data at its native pixel dimensions and serializes it
// as PNG.
func reencode(data []byte, mediaType string) ([]byte, error) {
	var (
		img image.Image
		err error
	)
	if mediaType == "image/svg+xml" {
		img, err = rasterizeSVG(data)
	} else {
		img, err = decodeRaster(data)
	}
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeRaster(data []byte) (image.Image, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := checkDimensions(cfg, format); err != nil {
		return nil, err
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", format, err)
	}
	return img, nil
}

// checkDimensions rejects headers declaring an empty raster or one larger
// than maxPixels.
func checkDimensions(cfg image.Config, format string) error {
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > maxPixels {
		return fmt.Errorf("%s image is %dx%d, outside the supported size", format, cfg.Width, cfg.Height)
	}
	return nil
}

// rasterizeSVG draws an SVG document at its view box size.
func rasterizeSVG(data []byte) (image.Image, error) {
	icon, err := oksvg.ReadIconStream(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse svg: %w", err)
	}
	w := int(math.Ceil(icon.ViewBox.W))
	h := int(math.Ceil(icon.ViewBox.H))
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("svg has no view box")
	}
	if w*h > maxPixels {
		return nil, fmt.Errorf("svg is %dx%d, outside the supported size", w, h)
	}

	icon.SetTarget(0, 0, float64(w), float64(h))
	rgba := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(rgba, rgba.Bounds(), image.Transparent, image.Point{}, draw.Src)
	scanner := rasterx.NewScannerGV(w, h, rgba, rgba.Bounds())
	icon.Draw(rasterx.NewDasher(w, h, scanner), 1)
	return rgba, nil
}
