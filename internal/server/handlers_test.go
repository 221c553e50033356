package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ironsheep/image-text-mcp/internal/backend"
	"github.com/ironsheep/image-text-mcp/internal/config"
	"github.com/ironsheep/image-text-mcp/internal/extract"
	"github.com/ironsheep/image-text-mcp/internal/ocr"
	"github.com/ironsheep/image-text-mcp/internal/stats"
)

// stubBackend always returns the same result.
type stubBackend struct {
	result backend.Result
	calls  int
}

func (b *stubBackend) ID() backend.ID { return b.result.Backend }

func (b *stubBackend) Recognize(ctx context.Context, req backend.Request) backend.Result {
	b.calls++
	return b.result
}

// createTestImageFile creates a test image file and returns its path
func createTestImageFile(t *testing.T, width, height int, c color.Color) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}

	path := filepath.Join(t.TempDir(), "handler-test.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return path
}

func newTestServer(remote, local backend.Backend) *Server {
	return New(Options{
		Orchestrator: &extract.Orchestrator{Remote: remote, Local: local},
		Config:       config.Default(),
	})
}

// callTool runs a tools/call request and returns the response.
func callTool(t *testing.T, s *Server, name string, args interface{}) *MCPResponse {
	t.Helper()
	params := map[string]interface{}{"name": name, "arguments": args}
	paramsJSON, _ := json.Marshal(params)

	resp := s.handleRequest(context.Background(), &MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params:  paramsJSON,
	})
	if resp == nil {
		t.Fatal("handleRequest returned nil")
	}
	return resp
}

// toolText extracts the JSON text payload from a successful tool response.
func toolText(t *testing.T, resp *MCPResponse) string {
	t.Helper()
	if resp.Error != nil {
		t.Fatalf("Unexpected error: %+v", resp.Error)
	}
	result := resp.Result.(map[string]interface{})
	content := result["content"].([]map[string]interface{})
	if len(content) != 1 || content[0]["type"] != "text" {
		t.Fatalf("unexpected content: %v", content)
	}
	return content[0]["text"].(string)
}

func TestHandleToolsCall_ExtractText_Path(t *testing.T) {
	remote := &stubBackend{result: backend.Succeeded(backend.Remote, "Hello world", 0, 1)}
	s := newTestServer(remote, nil)
	imgPath := createTestImageFile(t, 40, 20, color.White)

	resp := callTool(t, s, "extract_text", map[string]interface{}{"path": imgPath})

	var res extract.Result
	if err := json.Unmarshal([]byte(toolText(t, resp)), &res); err != nil {
		t.Fatalf("failed to decode result: %v", err)
	}
	if res.Text != "Hello world" || res.Backend != backend.Remote {
		t.Errorf("result: %+v", res)
	}
	if res.Statistics != (stats.TextStatistics{Characters: 11, Words: 2, Lines: 1}) {
		t.Errorf("Statistics: %+v", res.Statistics)
	}
	if res.Image == nil || res.Image.Width != 40 || res.Image.Height != 20 {
		t.Errorf("Image: %+v", res.Image)
	}
}

func TestHandleToolsCall_ExtractText_Base64(t *testing.T) {
	local := &stubBackend{result: backend.Succeeded(backend.Local, "ocr text", 0.8, 1)}
	s := newTestServer(nil, local)
	data, _ := os.ReadFile(createTestImageFile(t, 10, 10, color.Black))

	for name, payload := range map[string]string{
		"plain":    base64.StdEncoding.EncodeToString(data),
		"data url": "data:image/png;base64," + base64.StdEncoding.EncodeToString(data),
	} {
		t.Run(name, func(t *testing.T) {
			resp := callTool(t, s, "extract_text", map[string]interface{}{
				"image_base64": payload,
				"policy":       "local",
				"languages":    []string{"en", "de"},
			})
			var res extract.Result
			if err := json.Unmarshal([]byte(toolText(t, resp)), &res); err != nil {
				t.Fatalf("failed to decode result: %v", err)
			}
			if res.Text != "ocr text" || res.Policy != extract.PolicyLocal {
				t.Errorf("result: %+v", res)
			}
			if len(res.Languages) != 2 {
				t.Errorf("Languages: %v", res.Languages)
			}
		})
	}
}

func TestHandleToolsCall_ExtractText_Errors(t *testing.T) {
	remote := &stubBackend{result: backend.Failed(backend.Remote, backend.KindUnavailable, 0, "missing credential")}
	local := &stubBackend{result: backend.Failed(backend.Local, backend.KindTimeout, 1, "timeout")}
	s := newTestServer(remote, local)
	imgPath := createTestImageFile(t, 10, 10, color.White)

	empty := filepath.Join(t.TempDir(), "empty.png")
	os.WriteFile(empty, nil, 0o600)

	tests := []struct {
		name     string
		args     map[string]interface{}
		wantData string
	}{
		{"no source", map[string]interface{}{}, "path or image_base64 is required"},
		{"both sources", map[string]interface{}{"path": imgPath, "image_base64": "AAAA"}, "either path or image_base64"},
		{"missing file", map[string]interface{}{"path": "/nonexistent/image.png"}, "failed to open image"},
		{"empty file", map[string]interface{}{"path": empty}, "invalid image"},
		{"bad base64", map[string]interface{}{"image_base64": "!!!"}, "invalid image"},
		{"bad policy", map[string]interface{}{"path": imgPath, "policy": "fastest"}, "invalid backend policy"},
		{"all failed", map[string]interface{}{"path": imgPath}, "all backends failed: remote: missing credential; local: timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := callTool(t, s, "extract_text", tt.args)
			if resp.Error == nil {
				t.Fatal("expected an error response")
			}
			if resp.Error.Code != -32000 {
				t.Errorf("Code: got %d, want -32000", resp.Error.Code)
			}
			data, _ := resp.Error.Data.(string)
			if !strings.Contains(data, tt.wantData) {
				t.Errorf("Data: got %q, want it to contain %q", data, tt.wantData)
			}
		})
	}
}

func TestHandleToolsCall_ExtractText_FileTooLarge(t *testing.T) {
	cfg := config.Default()
	cfg.MaxBytes = 16
	s := New(Options{Config: cfg})

	resp := callTool(t, s, "extract_text", map[string]interface{}{"path": createTestImageFile(t, 50, 50, color.White)})
	if resp.Error == nil || !strings.Contains(resp.Error.Data.(string), "exceeds limit") {
		t.Errorf("expected a size error, got %+v", resp.Error)
	}
}

func TestHandleToolsCall_ImageInfo(t *testing.T) {
	s := newTestServer(nil, nil)
	imgPath := createTestImageFile(t, 30, 15, color.Black)

	resp := callTool(t, s, "image_info", map[string]interface{}{"path": imgPath})

	var info map[string]interface{}
	if err := json.Unmarshal([]byte(toolText(t, resp)), &info); err != nil {
		t.Fatalf("failed to decode result: %v", err)
	}
	if info["width"] != float64(30) || info["height"] != float64(15) || info["format"] != "png" {
		t.Errorf("info: %v", info)
	}
	if info["dark_background"] != true {
		t.Errorf("black image should report dark_background, got %v", info["dark_background"])
	}
}

func TestHandleToolsCall_TextStatistics(t *testing.T) {
	s := newTestServer(nil, nil)

	tests := []struct {
		text string
		want stats.TextStatistics
	}{
		{"", stats.TextStatistics{}},
		{"Hello world", stats.TextStatistics{Characters: 11, Words: 2, Lines: 1}},
		{"a\nb\n", stats.TextStatistics{Characters: 4, Words: 2, Lines: 2}},
	}

	for _, tt := range tests {
		resp := callTool(t, s, "text_statistics", map[string]interface{}{"text": tt.text})
		var got stats.TextStatistics
		if err := json.Unmarshal([]byte(toolText(t, resp)), &got); err != nil {
			t.Fatalf("failed to decode result: %v", err)
		}
		if got != tt.want {
			t.Errorf("text_statistics(%q) = %+v, want %+v", tt.text, got, tt.want)
		}
	}

	if resp := callTool(t, s, "text_statistics", map[string]interface{}{}); resp.Error == nil {
		t.Error("text_statistics without text should fail")
	}
}

func TestHandleToolsCall_ListLanguages(t *testing.T) {
	s := newTestServer(nil, nil)
	resp := callTool(t, s, "list_languages", nil)

	var got LanguagesResult
	if err := json.Unmarshal([]byte(toolText(t, resp)), &got); err != nil {
		t.Fatalf("failed to decode result: %v", err)
	}
	if len(got.Languages) != 10 {
		t.Errorf("got %d languages, want 10", len(got.Languages))
	}
	if len(got.Default) != 1 || got.Default[0] != "en" {
		t.Errorf("Default: %v", got.Default)
	}
}

func TestHandleToolsCall_BackendStatus(t *testing.T) {
	cfg := config.Default()
	cfg.APIKey = "secret-key"
	cache := ocr.NewModelCache(func(langs []string) (ocr.ModelSet, error) { return nil, nil })
	s := New(Options{
		Orchestrator:     &extract.Orchestrator{Remote: &stubBackend{}},
		Cache:            cache,
		Config:           cfg,
		TesseractVersion: func() string { return "5.3.0" },
	})

	resp := callTool(t, s, "backend_status", nil)
	text := toolText(t, resp)
	if strings.Contains(text, "secret-key") {
		t.Fatal("backend_status must not leak the credential")
	}

	var st BackendStatus
	if err := json.Unmarshal([]byte(text), &st); err != nil {
		t.Fatalf("failed to decode result: %v", err)
	}
	if !st.Remote.Configured || !st.Remote.HasCredential || st.Remote.Model != "gemini-2.5-flash" {
		t.Errorf("Remote: %+v", st.Remote)
	}
	if st.Local.Configured || st.Local.TesseractVersion != "5.3.0" {
		t.Errorf("Local: %+v", st.Local)
	}
	if st.Policy != extract.PolicyRemoteThenLocal {
		t.Errorf("Policy: %s", st.Policy)
	}
}

func TestHandleToolsCall_UnknownTool(t *testing.T) {
	s := newTestServer(nil, nil)
	resp := callTool(t, s, "image_detect_circles", nil)

	if resp.Error == nil || resp.Error.Code != -32000 {
		t.Fatalf("expected tool error, got %+v", resp.Error)
	}
	if !strings.Contains(resp.Error.Data.(string), "unknown tool") {
		t.Errorf("Data: %v", resp.Error.Data)
	}
}

func TestHandleToolsCall_InvalidParams(t *testing.T) {
	s := newTestServer(nil, nil)
	resp := s.handleRequest(context.Background(), &MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params:  json.RawMessage(`"not an object"`),
	})

	if resp.Error == nil || resp.Error.Code != -32602 {
		t.Errorf("expected invalid params, got %+v", resp.Error)
	}
}
