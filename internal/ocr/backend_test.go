package ocr

import (
	"context"
	"errors"
	"image"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/ironsheep/image-text-mcp/internal/backend"
	"github.com/ironsheep/image-text-mcp/internal/imaging"
)

func testRequest(t *testing.T, langs ...string) backend.Request {
	t.Helper()
	if len(langs) == 0 {
		langs = []string{"en"}
	}
	pixels := image.NewNRGBA(image.Rect(0, 0, 200, 100))
	for i := range pixels.Pix {
		pixels.Pix[i] = 0xff
	}
	asset := &imaging.Asset{Pixels: pixels, Format: imaging.FormatPNG, Width: 200, Height: 100}
	req, err := backend.NewRequest(asset, langs)
	if err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}
	return req
}

func TestBackend_ReadingOrder(t *testing.T) {
	top := image.Rect(10, 10, 90, 30)
	right := image.Rect(100, 50, 190, 70)
	left := image.Rect(10, 50, 90, 70)
	models := &fakeModels{
		regions: []Region{
			{Bounds: right, Confidence: 0.5},
			{Bounds: top, Confidence: 0.9},
			{Bounds: left, Confidence: 0.7},
		},
		texts: map[image.Rectangle]string{top: "Title", left: "left", right: "right"},
	}
	b := &Backend{Cache: NewModelCache(staticLoader(models, nil))}

	res := b.Recognize(context.Background(), testRequest(t))
	if !res.Success {
		t.Fatalf("Recognize failed: %s", res.Reason)
	}
	if res.Text != "Title\nleft\nright" {
		t.Errorf("Text = %q", res.Text)
	}
	if res.Backend != backend.Local {
		t.Errorf("Backend = %s, want local", res.Backend)
	}
	if res.Confidence < 0.69 || res.Confidence > 0.71 {
		t.Errorf("Confidence = %.3f, want mean 0.7", res.Confidence)
	}
	if res.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", res.Attempts)
	}
	if res.Elapsed <= 0 {
		t.Error("Elapsed should be set")
	}
}

func TestBackend_NoRegionsIsEmptySuccess(t *testing.T) {
	b := &Backend{Cache: NewModelCache(staticLoader(&fakeModels{}, nil)), SkipPreprocess: true}

	res := b.Recognize(context.Background(), testRequest(t))
	if !res.Success || res.Text != "" {
		t.Errorf("got %+v, want empty success", res)
	}
}

func TestBackend_MapsLanguagesToTesseractCodes(t *testing.T) {
	var got []string
	cache := NewModelCache(func(langs []string) (ModelSet, error) {
		got = langs
		return &fakeModels{}, nil
	})
	b := &Backend{Cache: cache}

	b.Recognize(context.Background(), testRequest(t, "es", "en", "ch_sim"))
	if want := []string{"chi_sim", "eng", "spa"}; !reflect.DeepEqual(got, want) {
		t.Errorf("loader languages = %v, want %v", got, want)
	}
}

func TestBackend_Failures(t *testing.T) {
	tests := []struct {
		name       string
		backend    *Backend
		wantKind   backend.Kind
		wantPrefix string
	}{
		{
			"no cache",
			&Backend{},
			backend.KindUnavailable,
			"model load failed",
		},
		{
			"load error",
			&Backend{Cache: NewModelCache(func([]string) (ModelSet, error) {
				return nil, errors.New("eng.traineddata not found")
			})},
			backend.KindUnavailable,
			"model load failed: eng.traineddata not found",
		},
		{
			"detect error",
			&Backend{Cache: NewModelCache(staticLoader(&fakeModels{detectErr: errors.New("layout")}, nil))},
			backend.KindUnavailable,
			"decode failed: layout",
		},
		{
			"decode error",
			&Backend{Cache: NewModelCache(staticLoader(&fakeModels{
				regions:   []Region{{Bounds: image.Rect(0, 0, 10, 10)}},
				decodeErr: errors.New("engine crashed"),
			}, nil))},
			backend.KindUnavailable,
			"decode failed: engine crashed",
		},
		{
			"panic recovered",
			&Backend{Cache: NewModelCache(staticLoader(&fakeModels{panicMsg: "boom"}, nil))},
			backend.KindUnavailable,
			"decode failed: boom",
		},
		{
			"timeout",
			&Backend{
				Cache:   NewModelCache(staticLoader(&fakeModels{delay: time.Second}, nil)),
				Timeout: 20 * time.Millisecond,
			},
			backend.KindTimeout,
			"timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := tt.backend.Recognize(context.Background(), testRequest(t))
			if res.Success {
				t.Fatal("Recognize should fail")
			}
			if res.Text != "" {
				t.Errorf("failed result carries text %q", res.Text)
			}
			if res.Kind != tt.wantKind {
				t.Errorf("Kind = %s, want %s", res.Kind, tt.wantKind)
			}
			if !strings.HasPrefix(res.Reason, tt.wantPrefix) {
				t.Errorf("Reason = %q, want prefix %q", res.Reason, tt.wantPrefix)
			}
		})
	}
}

func TestBackend_Cancelled(t *testing.T) {
	b := &Backend{Cache: NewModelCache(staticLoader(&fakeModels{delay: time.Second}, nil))}
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	res := b.Recognize(ctx, testRequest(t))
	if res.Success || res.Reason != "cancelled" || res.Kind != backend.KindCancelled {
		t.Errorf("got %+v, want cancelled failure", res)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("Recognize did not return promptly after cancellation")
	}
}

func TestBackend_CancellationKeepsCacheUsable(t *testing.T) {
	models := &fakeModels{
		regions: []Region{{Bounds: image.Rect(0, 0, 10, 10)}},
		texts:   map[image.Rectangle]string{image.Rect(0, 0, 10, 10): "ok"},
	}
	cache := NewModelCache(staticLoader(models, nil))
	b := &Backend{Cache: cache}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b.Recognize(ctx, testRequest(t))

	res := b.Recognize(context.Background(), testRequest(t))
	if !res.Success || res.Text != "ok" {
		t.Errorf("after a cancelled call: got %+v", res)
	}
	if cache.Loads() != 1 {
		t.Errorf("Loads() = %d, want 1", cache.Loads())
	}
}
