package oracle

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// DefaultModel is the multimodal model used when none is configured.
const DefaultModel = "gemini-1.5-pro"

var (
	// ErrUnreachable wraps any failure to get a reply from the model.
	ErrUnreachable = errors.New("oracle unreachable")
	// ErrMalformedReply marks a reply that did not follow the requested format.
	ErrMalformedReply = errors.New("oracle reply malformed")
)

// Part is one piece of a multimodal request: inline bytes or text.
type Part struct {
	Data []byte
	MIME string
	Text string
}

// InlinePart returns a part carrying raw media bytes.
func InlinePart(data []byte, mime string) Part {
	return Part{Data: data, MIME: mime}
}

// TextPart returns a part carrying a text prompt.
func TextPart(text string) Part {
	return Part{Text: text}
}

// Model sends a single request to a multimodal model and returns its text reply.
type Model interface {
	Generate(ctx context.Context, parts []Part) (string, error)
}

// GenAIModel talks to Gemini through the Google GenAI SDK.
type GenAIModel struct {
	client *genai.Client
	model  string
}

// NewGenAIModel creates a Gemini-backed model.
func NewGenAIModel(ctx context.Context, apiKey, model string) (*GenAIModel, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	if model == "" {
		model = DefaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating GenAI client: %w", err)
	}

	return &GenAIModel{client: client, model: model}, nil
}

// Generate sends the parts as one user turn. No retry, no streaming.
func (m *GenAIModel) Generate(ctx context.Context, parts []Part) (string, error) {
	gparts := make([]*genai.Part, 0, len(parts))
	for _, p := range parts {
		if p.Data != nil {
			gparts = append(gparts, genai.NewPartFromBytes(p.Data, p.MIME))
			continue
		}
		gparts = append(gparts, genai.NewPartFromText(p.Text))
	}

	contents := []*genai.Content{genai.NewContentFromParts(gparts, genai.RoleUser)}
	resp, err := m.client.Models.GenerateContent(ctx, m.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	return resp.Text(), nil
}

// Name returns the model name.
func (m *GenAIModel) Name() string {
	return fmt.Sprintf("genai:%s", m.model)
}
