package ocr

import (
	"context"
	"errors"
	"image"
	"sync/atomic"
	"time"
)

// fakeModels is a scripted ModelSet.
type fakeModels struct {
	langs     []string
	regions   []Region
	texts     map[image.Rectangle]string
	detectErr error
	decodeErr error
	panicMsg  string
	delay     time.Duration
	closed    atomic.Bool
}

func (f *fakeModels) Languages() []string { return f.langs }

func (f *fakeModels) DetectRegions(ctx context.Context, img image.Image) ([]Region, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	if f.detectErr != nil {
		return nil, f.detectErr
	}
	return f.regions, nil
}

func (f *fakeModels) DecodeRegion(ctx context.Context, img image.Image, r Region) (Fragment, error) {
	if f.decodeErr != nil {
		return Fragment{}, f.decodeErr
	}
	return Fragment{Text: f.texts[r.Bounds], Bounds: r.Bounds, Confidence: r.Confidence}, nil
}

func (f *fakeModels) Close() error {
	if f.closed.Swap(true) {
		return errors.New("closed twice")
	}
	return nil
}

// staticLoader returns a Loader that always yields m, counting calls.
func staticLoader(m ModelSet, calls *atomic.Int64) Loader {
	return func(langs []string) (ModelSet, error) {
		if calls != nil {
			calls.Add(1)
		}
		return m, nil
	}
}
