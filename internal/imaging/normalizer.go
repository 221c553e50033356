package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // Register WEBP format decoder
)

// ErrInvalidImage is returned when an input cannot be accepted for extraction.
// It is fatal for the request and is never retried.
var ErrInvalidImage = errors.New("invalid image")

// Default limits applied when a Normalizer field is left at zero.
const (
	DefaultMaxBytes     int64 = 20 << 20
	DefaultMaxDimension       = 10000
)

// Format is one of the image encodings accepted by the pipeline.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
	FormatWEBP Format = "webp"
)

// MIMEType returns the IANA media type for the format.
func (f Format) MIMEType() string {
	return "image/" + string(f)
}

// ParseFormat maps a MIME type or file extension hint to a Format.
//
// Accepted hints (case-insensitive): "image/png", "image/jpeg", "image/jpg",
// "image/webp", and the bare or dotted extensions "png", "jpg", "jpeg", "webp".
// An empty hint returns ("", nil), meaning the format will be sniffed.
func ParseFormat(hint string) (Format, error) {
	h := strings.ToLower(strings.TrimSpace(hint))
	if i := strings.IndexByte(h, ';'); i >= 0 {
		h = strings.TrimSpace(h[:i])
	}
	h = strings.TrimPrefix(h, "image/")
	h = strings.TrimPrefix(h, ".")
	switch h {
	case "":
		return "", nil
	case "png":
		return FormatPNG, nil
	case "jpg", "jpeg", "pjpeg":
		return FormatJPEG, nil
	case "webp":
		return FormatWEBP, nil
	default:
		return "", fmt.Errorf("%w: unsupported format %q", ErrInvalidImage, hint)
	}
}

// Asset is a validated image in canonical form.
//
// Pixels is always an *image.NRGBA whose bounds start at (0,0), regardless of
// how the original bytes were encoded. An Asset is never mutated after
// Normalize returns it.
type Asset struct {
	Pixels    *image.NRGBA
	Format    Format
	Width     int
	Height    int
	SizeBytes int
}

// PNG encodes the canonical pixels as PNG.
func (a *Asset) PNG() ([]byte, error) {
	return EncodePNG(a.Pixels)
}

// FitWithin returns the pixels scaled down so that neither side exceeds
// maxSide, preserving aspect ratio. Images already within bounds are
// returned as-is; the image is never upscaled.
func (a *Asset) FitWithin(maxSide int) image.Image {
	if maxSide <= 0 || (a.Width <= maxSide && a.Height <= maxSide) {
		return a.Pixels
	}
	return imaging.Fit(a.Pixels, maxSide, maxSide, imaging.Lanczos)
}

// Normalizer validates raw uploads and canonicalizes them into Assets.
//
// The zero value is usable and applies DefaultMaxBytes and
// DefaultMaxDimension. A Normalizer holds no state and is safe for
// concurrent use.
type Normalizer struct {
	// MaxBytes bounds the encoded input size.
	MaxBytes int64

	// MaxDimension bounds both width and height in pixels. The check runs on
	// the image header before the pixel buffer is allocated.
	MaxDimension int
}

// Normalize validates raw image bytes and decodes them into an Asset.
//
// Parameters:
//   - raw: The encoded image bytes.
//   - declared: An optional MIME type or extension hint. When given it must
//     name a supported format; the decoded content decides the final Format.
//
// Every rejection wraps ErrInvalidImage:
//   - empty input or input larger than MaxBytes
//   - unsupported declared or sniffed format (anything but PNG, JPEG, WEBP)
//   - zero-sized images, or width/height above MaxDimension
//   - corrupt data that fails to decode
func (n Normalizer) Normalize(raw []byte, declared string) (*Asset, error) {
	maxBytes := n.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	maxDim := n.MaxDimension
	if maxDim <= 0 {
		maxDim = DefaultMaxDimension
	}

	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrInvalidImage)
	}
	if int64(len(raw)) > maxBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit of %d bytes", ErrInvalidImage, len(raw), maxBytes)
	}
	if _, err := ParseFormat(declared); err != nil {
		return nil, err
	}

	cfg, sniffed, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: unrecognized image data: %v", ErrInvalidImage, err)
	}
	format, err := ParseFormat(sniffed)
	if err != nil {
		return nil, err
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: image has no pixels", ErrInvalidImage)
	}
	if cfg.Width > maxDim || cfg.Height > maxDim {
		return nil, fmt.Errorf("%w: %dx%d exceeds maximum dimension %d",
			ErrInvalidImage, cfg.Width, cfg.Height, maxDim)
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode %s: %v", ErrInvalidImage, format, err)
	}

	// imaging.Clone always yields an *image.NRGBA anchored at (0,0), which
	// flattens palette, YCbCr, gray and 16-bit inputs into one representation.
	pixels := imaging.Clone(img)
	bounds := pixels.Bounds()

	return &Asset{
		Pixels:    pixels,
		Format:    format,
		Width:     bounds.Dx(),
		Height:    bounds.Dy(),
		SizeBytes: len(raw),
	}, nil
}
