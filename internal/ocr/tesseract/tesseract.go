// Package tesseract provides the gosseract-backed ocr.ModelSet.
//
// Each loaded Models value owns one gosseract client configured for a fixed
// language combination. A gosseract client is not safe for concurrent use,
// so every engine call is serialized by a mutex; separate language
// combinations use separate clients and run in parallel.
package tesseract

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"

	"github.com/ironsheep/image-text-mcp/internal/imaging"
	"github.com/ironsheep/image-text-mcp/internal/ocr"
)

// Defaults for Options fields left at zero.
const (
	DefaultRegionPad     = 4
	DefaultMinLineHeight = 32
)

// warmupSize is the side of the blank canvas recognized at load time.
const warmupSize = 32

// Options configures loaded model sets.
type Options struct {
	// TessdataPrefix overrides the directory holding *.traineddata files.
	TessdataPrefix string

	// RegionPad is the margin in pixels kept around each region before
	// decoding.
	RegionPad int

	// MinLineHeight upscales short regions so glyphs are large enough for
	// the recognizer.
	MinLineHeight int
}

// Models is a loaded Tesseract engine for one language combination.
type Models struct {
	mu        sync.Mutex
	client    *gosseract.Client
	languages []string
	opts      Options
	closed    bool
}

// NewLoader returns an ocr.Loader that loads Tesseract model sets.
func NewLoader(opts Options) ocr.Loader {
	return func(languages []string) (ocr.ModelSet, error) {
		return Load(languages, opts)
	}
}

// Load creates a client for languages and verifies that the language data
// can be initialized by running recognition on a blank canvas. Missing
// traineddata therefore fails here, at load time, rather than on the first
// real request.
func Load(languages []string, opts Options) (*Models, error) {
	if len(languages) == 0 {
		return nil, fmt.Errorf("no languages requested")
	}
	if opts.RegionPad <= 0 {
		opts.RegionPad = DefaultRegionPad
	}
	if opts.MinLineHeight <= 0 {
		opts.MinLineHeight = DefaultMinLineHeight
	}

	client := gosseract.NewClient()

	if opts.TessdataPrefix != "" {
		if err := client.SetTessdataPrefix(opts.TessdataPrefix); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to set tessdata path: %w", err)
		}
	}
	if err := client.SetLanguage(languages...); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set language: %w", err)
	}

	canvas := image.NewGray(image.Rect(0, 0, warmupSize, warmupSize))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	blank, err := imaging.EncodePNG(canvas)
	if err != nil {
		client.Close()
		return nil, err
	}
	if err := client.SetImageFromBytes(blank); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set image: %w", err)
	}
	if _, err := client.Text(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to initialize tesseract for %s: %w", strings.Join(languages, "+"), err)
	}

	return &Models{
		client:    client,
		languages: append([]string(nil), languages...),
		opts:      opts,
	}, nil
}

// Languages implements ocr.ModelSet.
func (m *Models) Languages() []string {
	return append([]string(nil), m.languages...)
}

// DetectRegions runs Tesseract layout analysis and returns one region per
// text line (RIL_TEXTLINE). Lines without any recognized characters are
// skipped.
func (m *Models) DetectRegions(ctx context.Context, img image.Image) ([]ocr.Region, error) {
	data, err := imaging.EncodePNG(img)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ready(ctx); err != nil {
		return nil, err
	}

	if err := m.client.SetPageSegMode(gosseract.PSM_AUTO); err != nil {
		return nil, fmt.Errorf("failed to set page segmentation mode: %w", err)
	}
	if err := m.client.SetImageFromBytes(data); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}
	boxes, err := m.client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, fmt.Errorf("failed to get text regions: %w", err)
	}

	offset := img.Bounds().Min
	regions := make([]ocr.Region, 0, len(boxes))
	for _, box := range boxes {
		if strings.TrimSpace(box.Word) == "" {
			continue
		}
		regions = append(regions, ocr.Region{
			Bounds:     box.Box.Add(offset),
			Confidence: float64(box.Confidence) / 100.0,
		})
	}
	return regions, nil
}

// DecodeRegion crops r (with padding), upscales short lines and recognizes
// the crop as a single block of text.
func (m *Models) DecodeRegion(ctx context.Context, img image.Image, r ocr.Region) (ocr.Fragment, error) {
	cropped, err := imaging.CropRegion(img, r.Bounds, m.opts.RegionPad, m.opts.MinLineHeight)
	if err != nil {
		return ocr.Fragment{}, err
	}
	data, err := imaging.EncodePNG(cropped)
	if err != nil {
		return ocr.Fragment{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ready(ctx); err != nil {
		return ocr.Fragment{}, err
	}

	if err := m.client.SetPageSegMode(gosseract.PSM_SINGLE_BLOCK); err != nil {
		return ocr.Fragment{}, fmt.Errorf("failed to set page segmentation mode: %w", err)
	}
	if err := m.client.SetImageFromBytes(data); err != nil {
		return ocr.Fragment{}, fmt.Errorf("failed to set image: %w", err)
	}
	text, err := m.client.Text()
	if err != nil {
		return ocr.Fragment{}, fmt.Errorf("OCR failed: %w", err)
	}

	return ocr.Fragment{
		Text:       strings.TrimSpace(text),
		Bounds:     r.Bounds,
		Confidence: r.Confidence,
	}, nil
}

// Close implements ocr.ModelSet.
func (m *Models) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	return m.client.Close()
}

// ready must be called with m.mu held.
func (m *Models) ready(ctx context.Context) error {
	if m.closed {
		return fmt.Errorf("model set %s is closed", strings.Join(m.languages, "+"))
	}
	return ctx.Err()
}

// Version returns the linked Tesseract version.
func Version() string {
	client := gosseract.NewClient()
	defer client.Close()
	return client.Version()
}
