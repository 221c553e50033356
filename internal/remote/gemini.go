package remote

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"google.golang.org/api/generativelanguage/v1beta"
	"google.golang.org/api/option"
)

// GenerateRequest is one multimodal prompt: an instruction plus one image.
type GenerateRequest struct {
	Model    string
	Prompt   string
	MIMEType string
	Data     []byte
}

// Response is the service answer reduced to what recognition needs.
type Response struct {
	// Text is the concatenated text of the first candidate's parts.
	Text string

	// FinishReason is the first candidate's finish reason, e.g. "STOP".
	FinishReason string

	// BlockReason is set when the prompt itself was blocked.
	BlockReason string

	// Candidates is the number of candidates returned.
	Candidates int
}

// Generator performs a single generation call. Implementations return a
// *CallError (or an error Classify understands) on failure and must not
// retry on their own.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (*Response, error)
}

// GeminiGenerator calls the Gemini generateContent method through the
// generativelanguage v1beta client.
type GeminiGenerator struct {
	service *generativelanguage.Service
}

// NewGeminiGenerator creates a generator authenticated with apiKey. An
// empty endpoint uses the public service.
func NewGeminiGenerator(ctx context.Context, apiKey, endpoint string, opts ...option.ClientOption) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	if endpoint != "" {
		if !strings.HasSuffix(endpoint, "/") {
			endpoint += "/"
		}
		opts = append(opts, option.WithEndpoint(endpoint))
	}

	svc, err := generativelanguage.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create generative language client: %w", err)
	}
	return &GeminiGenerator{service: svc}, nil
}

// Generate implements Generator.
func (g *GeminiGenerator) Generate(ctx context.Context, req GenerateRequest) (*Response, error) {
	body := &generativelanguage.GenerateContentRequest{
		Contents: []*generativelanguage.Content{{
			Role: "user",
			Parts: []*generativelanguage.Part{
				{Text: req.Prompt},
				{InlineData: &generativelanguage.Blob{
					MimeType: req.MIMEType,
					Data:     base64.StdEncoding.EncodeToString(req.Data),
				}},
			},
		}},
	}

	resp, err := g.service.Models.GenerateContent(modelName(req.Model), body).Context(ctx).Do()
	if err != nil {
		return nil, Classify(err)
	}

	out := &Response{Candidates: len(resp.Candidates)}
	if resp.PromptFeedback != nil {
		out.BlockReason = resp.PromptFeedback.BlockReason
	}
	if len(resp.Candidates) > 0 {
		c := resp.Candidates[0]
		out.FinishReason = c.FinishReason
		if c.Content != nil {
			var sb strings.Builder
			for _, p := range c.Content.Parts {
				if p != nil {
					sb.WriteString(p.Text)
				}
			}
			out.Text = sb.String()
		}
	}
	return out, nil
}

// modelName accepts both "gemini-2.5-flash" and "models/gemini-2.5-flash".
func modelName(model string) string {
	if strings.HasPrefix(model, "models/") {
		return model
	}
	return "models/" + model
}
