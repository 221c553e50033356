package imaging

import (
	"image"
	"image/color"

	"github.com/anthonynsimon/bild/adjust"
	"github.com/anthonynsimon/bild/effect"
	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
)

// DarkBackgroundThreshold is the mean CIE L* (0..1) below which an image is
// treated as light text on a dark background and inverted before OCR.
const DarkBackgroundThreshold = 0.45

// contrastBoost is the bild contrast change applied before OCR (+20%).
const contrastBoost = 0.2

// luminanceSamples caps the number of pixels visited by MeanLuminance.
const luminanceSamples = 40000

// ImageInfo contains metadata about a normalized image.
type ImageInfo struct {
	// Width is the image width in pixels.
	Width int `json:"width"`

	// Height is the image height in pixels.
	Height int `json:"height"`

	// Format is the decoded format: "png", "jpeg" or "webp".
	Format Format `json:"format"`

	// SizeBytes is the encoded size of the upload.
	SizeBytes int `json:"size_bytes"`

	// MeanLuminance is the mean perceptual lightness (CIE L*, 0..1).
	MeanLuminance float64 `json:"mean_luminance"`

	// DarkBackground reports whether OCR preprocessing will invert the image.
	DarkBackground bool `json:"dark_background"`
}

// Info summarizes an Asset for display and diagnostics. It reads a sample
// of the pixels in place and never copies the image.
func Info(a *Asset) *ImageInfo {
	lum := MeanLuminance(a.Pixels)
	return &ImageInfo{
		Width:          a.Width,
		Height:         a.Height,
		Format:         a.Format,
		SizeBytes:      a.SizeBytes,
		MeanLuminance:  lum,
		DarkBackground: lum < DarkBackgroundThreshold,
	}
}

// MeanLuminance returns the mean CIE L* lightness of img in the range 0..1,
// as seen when img is composited over white.
//
// Large images are sampled on a regular grid so the cost stays bounded.
// Fully transparent pixels count as white and an empty image reports 1.
func MeanLuminance(img image.Image) float64 {
	b := img.Bounds()
	if b.Empty() {
		return 1
	}
	step := 1
	for (b.Dx()/step)*(b.Dy()/step) > luminanceSamples {
		step++
	}

	var sum float64
	var n int
	for y := b.Min.Y; y < b.Max.Y; y += step {
		for x := b.Min.X; x < b.Max.X; x += step {
			sum += lightnessOverWhite(img, x, y)
			n++
		}
	}
	return sum / float64(n)
}

// lightnessOverWhite returns the L* of the pixel at (x, y) after compositing
// it onto opaque white.
func lightnessOverWhite(img image.Image, x, y int) float64 {
	var r, g, b, a uint32
	if n, ok := img.(*image.NRGBA); ok {
		r, g, b, a = n.NRGBAAt(x, y).RGBA()
	} else {
		r, g, b, a = img.At(x, y).RGBA()
	}
	if a == 0 {
		return 1
	}
	// RGBA is alpha-premultiplied: over white adds the uncovered share.
	pad := 0xffff - a
	c := colorful.Color{
		R: float64(r+pad) / 0xffff,
		G: float64(g+pad) / 0xffff,
		B: float64(b+pad) / 0xffff,
	}
	l, _, _ := c.Lab()
	return l
}

// PrepareForOCR produces the image handed to the local OCR engine.
//
// Steps:
//  1. Flatten transparency onto white; opaque images skip this copy.
//  2. Convert to grayscale.
//  3. Invert when the mean lightness is below DarkBackgroundThreshold, so
//     light-on-dark text becomes dark-on-light.
//  4. Increase contrast by 20%.
//
// The input is not modified.
func PrepareForOCR(img image.Image) image.Image {
	if !isOpaque(img) {
		img = flatten(img)
	}
	var out image.Image = effect.Grayscale(img)
	if MeanLuminance(out) < DarkBackgroundThreshold {
		out = effect.Invert(out)
	}
	return adjust.Contrast(out, contrastBoost)
}

// flatten composites img over an opaque white canvas of the same size.
func flatten(img image.Image) *image.NRGBA {
	b := img.Bounds()
	bg := imaging.New(b.Dx(), b.Dy(), color.White)
	return imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)
}

func isOpaque(img image.Image) bool {
	o, ok := img.(interface{ Opaque() bool })
	return ok && o.Opaque()
}
