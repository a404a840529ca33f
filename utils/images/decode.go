// Package images decodes, measures and rasterizes book illustrations.
package images

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"mime"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/h2non/filetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// FormatSVG is reported for SVG images, which have no magic bytes filetype
// could detect.
const FormatSVG = "svg"

// ErrUnknownFormat is returned for data which is not a supported image.
var ErrUnknownFormat = errors.New("unknown image format")

// Sniff detects image format by content. Returned names are file extensions
// without dot ("jpg", "png", "svg").
func Sniff(data []byte) (string, bool) {
	if kind, err := filetype.Image(data); err == nil && kind != filetype.Unknown {
		return kind.Extension, true
	}
	if looksLikeSVG(data) {
		return FormatSVG, true
	}
	return "", false
}

func looksLikeSVG(data []byte) bool {
	head := data[:min(len(data), 1024)]
	return bytes.Contains(head, []byte("<svg")) || bytes.Contains(head, []byte(":svg"))
}

// FormatFromMime maps media type into format name used by Sniff.
func FormatFromMime(mediaType string) string {
	mt, _, err := mime.ParseMediaType(mediaType)
	if err != nil {
		mt = strings.ToLower(strings.TrimSpace(mediaType))
	}
	switch mt {
	case "image/jpeg", "image/jpg":
		return "jpg"
	case "image/svg+xml":
		return FormatSVG
	}
	return strings.TrimPrefix(mt, "image/")
}

// Size returns intrinsic pixel dimensions without decoding whole image.
func Size(data []byte) (w, h int, format string, err error) {
	format, ok := Sniff(data)
	if !ok {
		return 0, 0, "", ErrUnknownFormat
	}
	if format == FormatSVG {
		w, h, err = SVGSize(data)
		return w, h, format, err
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, format, fmt.Errorf("unable to decode %s header: %w", format, err)
	}
	return cfg.Width, cfg.Height, format, nil
}

// Decode returns decoded image, SVG is rasterized at its intrinsic size. EXIF
// orientation of JPEG images is applied.
func Decode(data []byte) (image.Image, string, error) {
	format, ok := Sniff(data)
	if !ok {
		return nil, "", ErrUnknownFormat
	}
	if format == FormatSVG {
		img, err := RasterizeSVG(data, 0, 0)
		if err != nil {
			return nil, format, fmt.Errorf("unable to rasterize svg: %w", err)
		}
		return img, format, nil
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, format, fmt.Errorf("unable to decode %s image: %w", format, err)
	}
	return img, format, nil
}
