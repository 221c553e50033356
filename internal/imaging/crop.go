package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/disintegration/imaging"
)

// CropRegion extracts a rectangular region from an image for per-region OCR.
//
// Parameters:
//   - img: The source image.
//   - r: The region in img's coordinate space. It is padded by pad pixels on
//     every side and then clamped to the image bounds.
//   - pad: Margin added around the region; recognizers misread glyphs that
//     touch the crop edge.
//   - minHeight: When the cropped region is shorter than this many pixels it
//     is upscaled (Lanczos) so that it is exactly minHeight tall. Zero
//     disables upscaling.
//
// Returns an error when the region does not intersect the image.
func CropRegion(img image.Image, r image.Rectangle, pad, minHeight int) (image.Image, error) {
	bounds := img.Bounds()
	padded := r.Inset(-pad).Intersect(bounds)
	if padded.Empty() {
		return nil, fmt.Errorf("crop region (%d,%d)-(%d,%d) outside image bounds (%d,%d)-(%d,%d)",
			r.Min.X, r.Min.Y, r.Max.X, r.Max.Y, bounds.Min.X, bounds.Min.Y, bounds.Max.X, bounds.Max.Y)
	}

	cropped := imaging.Crop(img, padded)

	if minHeight > 0 && cropped.Bounds().Dy() < minHeight {
		cropped = imaging.Resize(cropped, 0, minHeight, imaging.Lanczos)
	}
	return cropped, nil
}

// EncodePNG encodes img as PNG, the interchange format for OCR engines that
// take encoded bytes.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}
