package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"goalsectors-backend/internal/llm"
)

const providerName = "gemini"

// Client implements llm.Completer on the Gemini API with JSON output.
type Client struct {
	client      *genai.Client
	model       string
	temperature float32
}

func NewClient(ctx context.Context, apiKey, model string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, llm.ErrNoCredential
	}
	if strings.TrimSpace(model) == "" {
		model = "gemini-2.0-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &Client{client: client, model: model, temperature: 0.7}, nil
}

func (c *Client) Name() string { return providerName }

func (c *Client) Complete(ctx context.Context, messages []llm.Message) (string, error) {
	system, contents := toContents(messages)
	temp := c.temperature
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      &temp,
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, cfg)
	if err != nil {
		return "", classify(err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", &llm.ProviderError{Provider: providerName, Kind: llm.KindBadResponse, Err: errors.New("response empty content")}
	}
	return text, nil
}

// toContents splits system messages into one instruction and maps the rest
// onto Gemini roles.
func toContents(messages []llm.Message) (string, []*genai.Content) {
	var system []string
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case llm.RoleSystem:
			system = append(system, m.Content)
		case llm.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	return strings.Join(system, "\n\n"), contents
}

func classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &llm.ProviderError{Provider: providerName, Status: apiErr.Code, Kind: llm.KindForStatus(apiErr.Code), Err: err}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return &llm.ProviderError{Provider: providerName, Status: apiErrPtr.Code, Kind: llm.KindForStatus(apiErrPtr.Code), Err: err}
	}
	kind := llm.Classify(err)
	if kind == llm.KindOther {
		kind = llm.KindTransient
		if errors.Is(err, context.Canceled) {
			kind = llm.KindOther
		}
	}
	return &llm.ProviderError{Provider: providerName, Kind: kind, Err: err}
}

var _ llm.Completer = (*Client)(nil)
