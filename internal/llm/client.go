package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"outline/internal/config"
	"outline/internal/models"
	"outline/internal/report"
)

const defaultModel = openai.GPT4oMini

var ErrNoChoices = errors.New("model returned no choices")

const systemPrompt = `You summarize source files from their structural outline.
The outline lists top-level classes, functions and variables, with methods
indented under their class. Answer with JSON only, no extra text:

{
  "summary": "one or two sentences on what the module is for",
  "responsibilities": ["short phrase", "..."]
}`

type Client struct {
	client *openai.Client
	model  string
}

func NewClient() *Client {
	cfg := openai.DefaultConfig(config.Get("OPENAI_API_KEY", "openai_key"))
	if baseURL := config.Get("OPENAI_BASE_URL", "openai_base_url"); baseURL != "" {
		cfg.BaseURL = baseURL
	}
	model := config.Get("OUTLINE_LLM_MODEL", "outline_llm_model")
	return NewClientWithConfig(cfg, model)
}

func NewClientWithConfig(cfg openai.ClientConfig, model string) *Client {
	if model == "" {
		model = defaultModel
	}
	return &Client{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

// BuildPrompt renders the user message for path's outline.
func BuildPrompt(path string, entries []string) string {
	var buf bytes.Buffer
	_ = report.Render(&buf, path, entries)
	if len(entries) == 0 {
		buf.WriteString("(no top-level elements)\n")
	}
	return buf.String()
}

func (c *Client) Summarize(ctx context.Context, path string, entries []string) (*models.OutlineSummary, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: BuildPrompt(path, entries)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, ErrNoChoices
	}

	var summary models.OutlineSummary
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &summary); err != nil {
		return nil, fmt.Errorf("decode summary: %w", err)
	}
	return &summary, nil
}
