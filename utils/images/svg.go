package images

import (
	"bytes"
	"image"
	"image/draw"
	"math"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// defaultSVGSize is used when SVG has no usable viewBox.
const defaultSVGSize = 1024

// maxRasterDim caps rasterized dimension, huge viewBox values would
// otherwise allocate gigabytes.
var maxRasterDim = 8192

func readIcon(data []byte) (*oksvg.SvgIcon, int, int, error) {
	icon, err := oksvg.ReadIconStream(bytes.NewReader(data), oksvg.IgnoreErrorMode)
	if err != nil {
		return nil, 0, 0, err
	}
	w, h := int(math.Ceil(icon.ViewBox.W)), int(math.Ceil(icon.ViewBox.H))
	if w <= 0 {
		w = defaultSVGSize
	}
	if h <= 0 {
		h = defaultSVGSize
	}
	return icon, w, h, nil
}

// SVGSize returns intrinsic size of SVG image taken from its viewBox.
func SVGSize(data []byte) (int, int, error) {
	_, w, h, err := readIcon(data)
	return w, h, err
}

// FitSize scales intrinsic size w x h to target. With both target dimensions
// zero size is unchanged, with one of them zero aspect ratio is kept,
// otherwise result fits into the box keeping aspect ratio.
func FitSize(w, h, targetW, targetH int) (int, int) {
	if w <= 0 || h <= 0 {
		return max(targetW, 1), max(targetH, 1)
	}
	fw, fh := float64(w), float64(h)
	switch {
	case targetW <= 0 && targetH <= 0:
	case targetH <= 0:
		fw, fh = float64(targetW), float64(targetW)*fh/fw
	case targetW <= 0:
		fw, fh = float64(targetH)*fw/fh, float64(targetH)
	default:
		s := math.Min(float64(targetW)/fw, float64(targetH)/fh)
		fw, fh = fw*s, fh*s
	}
	return max(int(math.Round(fw)), 1), max(int(math.Round(fh)), 1)
}

// RasterizeSVG renders SVG into transparent RGBA image of requested size (see
// FitSize for meaning of target dimensions).
func RasterizeSVG(data []byte, targetW, targetH int) (*image.RGBA, error) {
	icon, iw, ih, err := readIcon(data)
	if err != nil {
		return nil, err
	}

	w, h := FitSize(iw, ih, targetW, targetH)
	if w > maxRasterDim || h > maxRasterDim {
		w, h = FitSize(w, h, maxRasterDim, maxRasterDim)
	}

	icon.SetTarget(0, 0, float64(w), float64(h))
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.Transparent, image.Point{}, draw.Src)

	scanner := rasterx.NewScannerGV(w, h, dst, dst.Bounds())
	icon.Draw(rasterx.NewDasher(w, h, scanner), 1.0)
	return dst, nil
}
