package preview

import (
	"fmt"
	"image"
	"image/png"
	"io"

	"reflow/config"
	"reflow/utils/images"
)

// Encode writes rendered page. Pages without color are stored as grayscale
// PNG.
func Encode(w io.Writer, img image.Image, format config.PreviewFormat, quality, dpi int) error {
	switch format {
	case config.PreviewFormatPng:
		if images.IsGrayscale(img) {
			img = images.ToGray(img)
		}
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		if err := enc.Encode(w, img); err != nil {
			return fmt.Errorf("unable to encode png: %w", err)
		}
	case config.PreviewFormatJpeg:
		data, err := images.EncodeJPEG(img, quality, dpi)
		if err != nil {
			return fmt.Errorf("unable to encode jpeg: %w", err)
		}
		if _, err := w.Write(data); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported preview format %s", format)
	}
	return nil
}
