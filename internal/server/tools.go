package server

import (
	"github.com/ironsheep/image-text-mcp/internal/extract"
)

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// imageSourceProperties are shared by every tool that takes an image.
func imageSourceProperties() map[string]interface{} {
	return map[string]interface{}{
		"path": map[string]interface{}{
			"type":        "string",
			"description": "Absolute path to a PNG, JPEG or WEBP image file. Either path or image_base64 is required.",
		},
		"image_base64": map[string]interface{}{
			"type":        "string",
			"description": "Base64-encoded image bytes, optionally as a data: URL",
		},
		"mime_type": map[string]interface{}{
			"type":        "string",
			"description": "Optional MIME type or extension hint (image/png, image/jpeg, image/webp)",
		},
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	policies := make([]string, 0, 4)
	for _, p := range extract.Policies() {
		policies = append(policies, string(p))
	}

	extractProps := imageSourceProperties()
	extractProps["languages"] = map[string]interface{}{
		"type":        "array",
		"items":       map[string]interface{}{"type": "string"},
		"description": "Language codes expected in the image (e.g. [\"en\", \"es\"]). Defaults to the server's configured languages.",
	}
	extractProps["policy"] = map[string]interface{}{
		"type":        "string",
		"enum":        policies,
		"description": "Backend policy. remote-then-local (default) tries the AI service and falls back to local OCR on failure.",
		"default":     string(extract.DefaultPolicy),
	}

	return []Tool{
		{
			Name:        "extract_text",
			Description: "Extract all readable text from an image, including handwriting, using a hosted AI model with a local OCR fallback. Returns the text, the backend that produced it and character/word/line statistics.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": extractProps,
			},
		},
		{
			Name:        "image_info",
			Description: "Validate an image and return its format, dimensions, byte size and whether it has a dark background.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": imageSourceProperties(),
			},
		},
		{
			Name:        "text_statistics",
			Description: "Count characters (Unicode code points), words and lines in a piece of text.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"text": map[string]interface{}{
						"type":        "string",
						"description": "The text to measure",
					},
				},
				"required": []string{"text"},
			},
		},
		{
			Name:        "list_languages",
			Description: "List the language codes the extractor understands and the configured default set.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			Name:        "backend_status",
			Description: "Report whether the remote AI backend has a credential, which model it uses, the local OCR engine version and the language sets already loaded.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
