package llm

import (
	"context"
	"time"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// StreamFunc receives partial output as it is generated. Returning an error aborts the call.
type StreamFunc func(ctx context.Context, chunk string) error

type Request struct {
	Model       string
	Messages    []Message
	Temperature *float64
	ForceJSON   bool
	OnStream    StreamFunc
}

type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

type Result struct {
	Text     string
	Usage    Usage
	Duration time.Duration
}

type Client interface {
	Chat(ctx context.Context, req Request) (Result, error)
}
