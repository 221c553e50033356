// Package imaging validates uploaded images and prepares pixels for the
// recognition backends.
//
// Normalizer turns raw PNG, JPEG or WEBP bytes into an Asset: decoded and
// converted to *image.NRGBA with its origin at (0,0).
// The decoded content decides the format; a declared MIME type or file
// extension is only checked for being a supported kind.
//
// # Coordinate System
//
// All pixel coordinates in this package are 0-based:
//   - X: horizontal position (0 = leftmost pixel)
//   - Y: vertical position (0 = topmost pixel)
//   - For regions, Min is inclusive (top-left), Max is exclusive (bottom-right)
//
// # Preprocessing
//
// PrepareForOCR flattens transparency onto white, converts to grayscale,
// inverts dark-background images (light text on dark) and raises contrast.
// CropRegion cuts one detected text line out with padding and upscales
// short lines.
//
// # Thread Safety
//
// An Asset is never mutated after Normalize returns it, so it can be shared
// by backends running concurrently. Every function here is stateless.
package imaging
