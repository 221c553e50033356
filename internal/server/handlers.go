package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ironsheep/image-text-mcp/internal/backend"
	"github.com/ironsheep/image-text-mcp/internal/extract"
	"github.com/ironsheep/image-text-mcp/internal/imaging"
	"github.com/ironsheep/image-text-mcp/internal/stats"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "extract_text").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
// The data field carries the categorized reason, e.g. "invalid image: ..."
// or "all backends failed: remote: ...; local: ...".
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		s.log.WithField("tool", params.Name).WithError(err).Warn("tool execution failed")
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	switch name {
	case "extract_text":
		return s.handleExtractText(ctx, args)
	case "image_info":
		return s.handleImageInfo(args)
	case "text_statistics":
		return s.handleTextStatistics(args)
	case "list_languages":
		return s.handleListLanguages()
	case "backend_status":
		return s.handleBackendStatus()
	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// Panics are suppressed; on marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// unmarshalArgs tolerates a missing arguments object.
func unmarshalArgs(args json.RawMessage, v interface{}) error {
	if len(args) == 0 || string(args) == "null" {
		return nil
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

// === Image Source ===

type imageSourceArgs struct {
	Path        string `json:"path"`
	ImageBase64 string `json:"image_base64"`
	MIMEType    string `json:"mime_type"`
}

// load returns the raw image bytes and the best available format hint.
// Files larger than the configured limit are rejected before being read.
func (s *Server) load(a imageSourceArgs) ([]byte, string, error) {
	hint := a.MIMEType
	switch {
	case a.Path != "" && a.ImageBase64 != "":
		return nil, "", errors.New("provide either path or image_base64, not both")

	case a.Path != "":
		info, err := os.Stat(a.Path)
		if err != nil {
			return nil, "", fmt.Errorf("failed to open image: %w", err)
		}
		if info.IsDir() {
			return nil, "", fmt.Errorf("%w: %s is a directory", imaging.ErrInvalidImage, a.Path)
		}
		if info.Size() > s.cfg.MaxBytes {
			return nil, "", fmt.Errorf("%w: %d bytes exceeds limit of %d bytes", imaging.ErrInvalidImage, info.Size(), s.cfg.MaxBytes)
		}
		data, err := os.ReadFile(a.Path)
		if err != nil {
			return nil, "", fmt.Errorf("failed to read image: %w", err)
		}
		if hint == "" {
			hint = strings.TrimPrefix(filepath.Ext(a.Path), ".")
		}
		return data, hint, nil

	case a.ImageBase64 != "":
		payload := strings.TrimSpace(a.ImageBase64)
		if strings.HasPrefix(payload, "data:") {
			comma := strings.IndexByte(payload, ',')
			if comma < 0 {
				return nil, "", fmt.Errorf("%w: malformed data URL", imaging.ErrInvalidImage)
			}
			if hint == "" {
				hint = strings.TrimSuffix(strings.TrimPrefix(payload[:comma], "data:"), ";base64")
			}
			payload = payload[comma+1:]
		}
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, "", fmt.Errorf("%w: invalid base64: %v", imaging.ErrInvalidImage, err)
		}
		return data, hint, nil

	default:
		return nil, "", errors.New("path or image_base64 is required")
	}
}

// === Extraction Handlers ===

type extractTextArgs struct {
	imageSourceArgs
	Languages []string `json:"languages"`
	Policy    string   `json:"policy"`
}

func (s *Server) handleExtractText(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a extractTextArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}

	policy := s.cfg.Policy
	if a.Policy != "" {
		p, err := extract.ParsePolicy(a.Policy)
		if err != nil {
			return nil, err
		}
		policy = p
	}

	data, hint, err := s.load(a.imageSourceArgs)
	if err != nil {
		return nil, err
	}

	return s.orchestrator.Extract(ctx, extract.Input{
		Image:     data,
		MIMEType:  hint,
		Languages: a.Languages,
		Policy:    policy,
	})
}

func (s *Server) handleImageInfo(args json.RawMessage) (interface{}, error) {
	var a imageSourceArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	data, hint, err := s.load(a)
	if err != nil {
		return nil, err
	}
	asset, err := s.orchestrator.Normalizer.Normalize(data, hint)
	if err != nil {
		return nil, err
	}
	return imaging.Info(asset), nil
}

type textStatisticsArgs struct {
	Text *string `json:"text"`
}

func (s *Server) handleTextStatistics(args json.RawMessage) (interface{}, error) {
	var a textStatisticsArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Text == nil {
		return nil, errors.New("text is required")
	}
	return stats.Compute(*a.Text), nil
}

// === Status Handlers ===

// LanguagesResult is returned by list_languages.
type LanguagesResult struct {
	Languages []backend.Language `json:"languages"`
	Default   []string           `json:"default"`
}

func (s *Server) handleListLanguages() (interface{}, error) {
	return &LanguagesResult{
		Languages: backend.SupportedLanguages(),
		Default:   s.cfg.Languages,
	}, nil
}

// BackendStatus is returned by backend_status.
type BackendStatus struct {
	Policy extract.Policy `json:"default_policy"`
	Remote RemoteStatus   `json:"remote"`
	Local  LocalStatus    `json:"local"`
}

// RemoteStatus describes the remote AI backend. The credential itself is
// never reported.
type RemoteStatus struct {
	Configured    bool   `json:"configured"`
	HasCredential bool   `json:"has_credential"`
	Model         string `json:"model"`
}

// LocalStatus describes the local OCR backend.
type LocalStatus struct {
	Configured       bool     `json:"configured"`
	TesseractVersion string   `json:"tesseract_version,omitempty"`
	LoadedLanguages  []string `json:"loaded_language_sets"`
	ModelLoads       int64    `json:"model_loads"`
}

func (s *Server) handleBackendStatus() (interface{}, error) {
	st := &BackendStatus{
		Policy: s.cfg.Policy,
		Remote: RemoteStatus{
			Configured:    s.orchestrator.Remote != nil,
			HasCredential: s.cfg.HasCredential(),
			Model:         s.cfg.Model,
		},
		Local: LocalStatus{
			Configured:      s.orchestrator.Local != nil,
			LoadedLanguages: []string{},
		},
	}
	if s.tesseract != nil {
		st.Local.TesseractVersion = s.tesseract()
	}
	if s.cache != nil {
		st.Local.LoadedLanguages = s.cache.Keys()
		st.Local.ModelLoads = s.cache.Loads()
	}
	return st, nil
}
