package ai

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/sehenaz/docsort/internal/page"
)

// GeminiClient is a provider for Google Gemini. The underlying genai client
// is created on first use and shared by every call until Close.
type GeminiClient struct {
	apiKey string
	opts   []option.ClientOption

	mu     sync.Mutex
	client *genai.Client
}

func NewGeminiClient(apiKey string, opts ...option.ClientOption) *GeminiClient {
	return &GeminiClient{apiKey: apiKey, opts: opts}
}

func (c *GeminiClient) Name() string { return "gemini" }

func (c *GeminiClient) conn(ctx context.Context) (*genai.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		return c.client, nil
	}
	opts := append([]option.ClientOption{option.WithAPIKey(c.apiKey)}, c.opts...)
	// the client outlives this call's deadline
	client, err := genai.NewClient(context.WithoutCancel(ctx), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create new gemini client: %w", err)
	}
	c.client = client
	return client, nil
}

// Close releases the shared genai client, if one was created.
func (c *GeminiClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	c.client = nil
	return err
}

func labelSchema() *genai.Schema {
	enum := make([]string, 0, len(page.Categories()))
	for _, cat := range page.Categories() {
		enum = append(enum, string(cat))
	}
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"category":    {Type: genai.TypeString, Enum: enum},
			"subCategory": {Type: genai.TypeString, Description: "Specific document type like Aadhar, PAN"},
		},
		Required: []string{"category", "subCategory"},
	}
}

func (c *GeminiClient) Do(ctx context.Context, req Request) (Response, error) {
	if c.apiKey == "" {
		return Response{}, fmt.Errorf("gemini: %w", ErrMissingAPIKey)
	}

	client, err := c.conn(ctx)
	if err != nil {
		return Response{}, err
	}

	model := client.GenerativeModel(req.Model)
	model.SetTemperature(0)
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = labelSchema()
	if req.SystemPrompt != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(req.SystemPrompt))
	}

	format := strings.TrimPrefix(req.ImageMIME, "image/")
	resp, err := model.GenerateContent(ctx, genai.ImageData(format, req.Image), genai.Text(req.UserPrompt))
	if err != nil {
		return Response{}, fmt.Errorf("failed to generate content: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return Response{}, ErrEmptyResponse
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil {
		return Response{}, ErrEmptyResponse
	}

	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}
	out := Response{Text: text.String()}
	if resp.UsageMetadata != nil {
		out.TokensIn = int(resp.UsageMetadata.PromptTokenCount)
		out.TokensOut = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return out, nil
}
