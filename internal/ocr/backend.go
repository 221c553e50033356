package ocr

import (
	"context"
	"image"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/image-text-mcp/internal/backend"
	"github.com/ironsheep/image-text-mcp/internal/imaging"
)

// DefaultTimeout bounds a single local recognition when Backend.Timeout is zero.
const DefaultTimeout = 60 * time.Second

// Backend is the local OCR implementation of backend.Backend.
type Backend struct {
	// Cache supplies model sets per language combination. Required.
	Cache *ModelCache

	// Timeout bounds model loading plus recognition. Zero means DefaultTimeout.
	Timeout time.Duration

	// SkipPreprocess hands the canonical pixels to the engine unchanged
	// instead of running imaging.PrepareForOCR first.
	SkipPreprocess bool

	Logger logrus.FieldLogger
}

// ID implements backend.Backend.
func (b *Backend) ID() backend.ID { return backend.Local }

// Recognize detects text regions, decodes each of them and joins the
// fragments in reading order.
//
// It never returns an error and never panics: model-load failures, engine
// errors and recovered panics come back as a failed Result. Recognition runs
// on its own goroutine so the call returns as soon as the timeout expires or
// ctx is cancelled; the abandoned work finishes in the background without
// touching the cache state.
func (b *Backend) Recognize(ctx context.Context, req backend.Request) backend.Result {
	start := time.Now()

	timeout := b.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan backend.Result, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- backend.Failed(backend.Local, backend.KindUnavailable, 1, "decode failed: %v", p)
			}
		}()
		done <- b.recognize(ctx, req)
	}()

	var res backend.Result
	select {
	case res = <-done:
	case <-ctx.Done():
		res = backend.FromContext(ctx, backend.Local, 1)
	}
	res.Elapsed = time.Since(start)

	b.logger().WithFields(logrus.Fields{
		"backend":   backend.Local,
		"languages": req.Languages(),
		"success":   res.Success,
		"reason":    res.Reason,
		"elapsed":   res.Elapsed,
	}).Debug("local recognition finished")
	return res
}

func (b *Backend) recognize(ctx context.Context, req backend.Request) backend.Result {
	if b.Cache == nil {
		return backend.Failed(backend.Local, backend.KindUnavailable, 1, "model load failed: no model cache configured")
	}

	langs := req.Languages()
	codes := make([]string, len(langs))
	for i, l := range langs {
		codes[i] = backend.TesseractCode(l)
	}

	models, err := b.Cache.Get(codes)
	if err != nil {
		return backend.Failed(backend.Local, backend.KindUnavailable, 1, "model load failed: %v", err)
	}
	if ctx.Err() != nil {
		return backend.FromContext(ctx, backend.Local, 1)
	}

	var img image.Image = req.Asset.Pixels
	if !b.SkipPreprocess {
		img = imaging.PrepareForOCR(img)
	}

	regions, err := models.DetectRegions(ctx, img)
	if err != nil {
		return b.decodeFailure(ctx, err)
	}

	fragments := make([]Fragment, 0, len(regions))
	var confSum float64
	for _, r := range regions {
		if ctx.Err() != nil {
			return backend.FromContext(ctx, backend.Local, 1)
		}
		f, err := models.DecodeRegion(ctx, img, r)
		if err != nil {
			return b.decodeFailure(ctx, err)
		}
		fragments = append(fragments, f)
		confSum += f.Confidence
	}

	var confidence float64
	if len(fragments) > 0 {
		confidence = confSum / float64(len(fragments))
	}
	return backend.Succeeded(backend.Local, Assemble(fragments), confidence, 1)
}

func (b *Backend) decodeFailure(ctx context.Context, err error) backend.Result {
	if ctx.Err() != nil {
		return backend.FromContext(ctx, backend.Local, 1)
	}
	return backend.Failed(backend.Local, backend.KindUnavailable, 1, "decode failed: %v", err)
}

func (b *Backend) logger() logrus.FieldLogger {
	if b.Logger == nil {
		return logrus.StandardLogger()
	}
	return b.Logger
}
