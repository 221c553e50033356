package ocr

import (
	"context"
	"image"
	"sort"
	"strings"
)

// Region is a candidate text area found by layout analysis.
type Region struct {
	// Bounds is the region in the coordinate space of the analyzed image.
	Bounds image.Rectangle `json:"bounds"`

	// Confidence is the detector's score for this region (0.0 to 1.0).
	Confidence float64 `json:"confidence"`
}

// Fragment is the decoded text of one Region.
type Fragment struct {
	Text       string          `json:"text"`
	Bounds     image.Rectangle `json:"bounds"`
	Confidence float64         `json:"confidence"`
}

// ModelSet is a loaded recognizer for one language combination.
//
// Implementations must be safe for concurrent use: a cached ModelSet is
// shared by every request that asks for the same languages.
type ModelSet interface {
	// Languages returns the sorted language codes the set was loaded for.
	Languages() []string

	// DetectRegions finds candidate text regions in img.
	DetectRegions(ctx context.Context, img image.Image) ([]Region, error)

	// DecodeRegion recognizes the text inside a single region of img.
	DecodeRegion(ctx context.Context, img image.Image, r Region) (Fragment, error)

	// Close releases the engine resources held by the set.
	Close() error
}

// Loader builds a ModelSet for a sorted, de-duplicated list of Tesseract
// language codes. Loading is expensive; callers go through ModelCache.
type Loader func(languages []string) (ModelSet, error)

// Assemble joins decoded fragments in reading order.
//
// Fragments are ordered top-to-bottom by their top edge, then left-to-right
// by their left edge. Whitespace around each fragment is trimmed, blank
// fragments are dropped, and the rest are joined with newlines.
func Assemble(fragments []Fragment) string {
	ordered := make([]Fragment, 0, len(fragments))
	for _, f := range fragments {
		f.Text = strings.TrimSpace(f.Text)
		if f.Text == "" {
			continue
		}
		ordered = append(ordered, f)
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i].Bounds.Min, ordered[j].Bounds.Min
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.X < b.X
	})

	lines := make([]string, len(ordered))
	for i, f := range ordered {
		lines[i] = f.Text
	}
	return strings.Join(lines, "\n")
}
