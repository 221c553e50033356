package extract

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/ironsheep/image-text-mcp/internal/backend"
)

// fakeBackend returns a fixed result and records how it was called.
type fakeBackend struct {
	id     backend.ID
	result backend.Result
	delay  time.Duration
	ready  chan struct{} // closed when Recognize starts, if non-nil
	wait   chan struct{} // Recognize blocks on it, if non-nil

	mu    sync.Mutex
	calls int
	langs []string
}

func succeeding(id backend.ID, text string) *fakeBackend {
	return &fakeBackend{id: id, result: backend.Succeeded(id, text, 0.9, 1)}
}

func failing(id backend.ID, reason string) *fakeBackend {
	return &fakeBackend{id: id, result: backend.Failed(id, backend.KindUnavailable, 1, "%s", reason)}
}

func (f *fakeBackend) ID() backend.ID { return f.id }

func (f *fakeBackend) Recognize(ctx context.Context, req backend.Request) backend.Result {
	f.mu.Lock()
	f.calls++
	f.langs = req.Languages()
	f.mu.Unlock()

	if f.ready != nil {
		close(f.ready)
	}
	if f.wait != nil {
		select {
		case <-f.wait:
		case <-ctx.Done():
			return backend.FromContext(ctx, f.id, 1)
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.result
}

func (f *fakeBackend) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeBackend) Languages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.langs
}

// minimalPNG returns a small valid PNG.
func minimalPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	img.Set(2, 2, color.Black)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}
