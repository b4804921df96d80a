package langchain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/quailyquaily/notionbolt/llm"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// generator is the part of llms.Model the client calls.
type generator interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

type Config struct {
	APIKey         string
	Model          string
	BaseURL        string
	Temperature    float64
	RequestTimeout time.Duration
}

type Client struct {
	model   generator
	name    string
	temp    float64
	timeout time.Duration
}

// New builds an OpenAI-compatible chat client.
func New(cfg Config) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("missing llm.api_key")
	}
	name := strings.TrimSpace(cfg.Model)
	if name == "" {
		return nil, fmt.Errorf("missing llm.model")
	}
	opts := []openai.Option{
		openai.WithToken(apiKey),
		openai.WithModel(name),
	}
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	model, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create openai client: %w", err)
	}
	return newWithModel(model, name, cfg.Temperature, cfg.RequestTimeout), nil
}

func newWithModel(model generator, name string, temperature float64, timeout time.Duration) *Client {
	return &Client{model: model, name: name, temp: temperature, timeout: timeout}
}

func (c *Client) Chat(ctx context.Context, req llm.Request) (llm.Result, error) {
	if c == nil || c.model == nil {
		return llm.Result{}, fmt.Errorf("llm client is not initialized")
	}
	if len(req.Messages) == 0 {
		return llm.Result{}, fmt.Errorf("llm request has no messages")
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	messages := make([]llms.MessageContent, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, llms.TextParts(toChatMessageType(m.Role), m.Content))
	}

	temp := c.temp
	if req.Temperature != nil {
		temp = *req.Temperature
	}
	opts := []llms.CallOption{llms.WithTemperature(temp)}
	if model := strings.TrimSpace(req.Model); model != "" {
		opts = append(opts, llms.WithModel(model))
	} else if c.name != "" {
		opts = append(opts, llms.WithModel(c.name))
	}
	if req.ForceJSON {
		opts = append(opts, llms.WithJSONMode())
	}
	if req.OnStream != nil {
		stream := req.OnStream
		opts = append(opts, llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
			return stream(ctx, string(chunk))
		}))
	}

	started := time.Now()
	resp, err := c.model.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return llm.Result{}, err
	}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return llm.Result{}, fmt.Errorf("llm returned no choices")
	}
	choice := resp.Choices[0]
	return llm.Result{
		Text:     strings.TrimSpace(choice.Content),
		Usage:    usageFromGenerationInfo(choice.GenerationInfo),
		Duration: time.Since(started),
	}, nil
}

func toChatMessageType(role string) llms.ChatMessageType {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case llm.RoleSystem:
		return llms.ChatMessageTypeSystem
	case llm.RoleAssistant, "ai":
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}

func usageFromGenerationInfo(info map[string]any) llm.Usage {
	return llm.Usage{
		InputTokens:  intFromAny(info["PromptTokens"]),
		OutputTokens: intFromAny(info["CompletionTokens"]),
		TotalTokens:  intFromAny(info["TotalTokens"]),
	}
}

func intFromAny(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}
