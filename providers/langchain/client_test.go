package langchain

import (
	"context"
	"errors"
	"testing"

	"github.com/quailyquaily/notionbolt/llm"
	"github.com/tmc/langchaingo/llms"
)

type fakeGenerator struct {
	got  []llms.MessageContent
	opts llms.CallOptions
	resp *llms.ContentResponse
	err  error
}

func (f *fakeGenerator) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.got = messages
	for _, opt := range options {
		opt(&f.opts)
	}
	if f.opts.StreamingFunc != nil {
		if err := f.opts.StreamingFunc(ctx, []byte("chunk")); err != nil {
			return nil, err
		}
	}
	return f.resp, f.err
}

func TestChatMapsRolesAndUsage(t *testing.T) {
	gen := &fakeGenerator{resp: &llms.ContentResponse{Choices: []*llms.ContentChoice{{
		Content:        "  答え  ",
		GenerationInfo: map[string]any{"PromptTokens": 10, "CompletionTokens": 5, "TotalTokens": 15},
	}}}}
	c := newWithModel(gen, "gpt-4o-mini", 0, 0)

	var streamed string
	res, err := c.Chat(context.Background(), llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: "sys"},
			{Role: llm.RoleUser, Content: "hi"},
			{Role: llm.RoleAssistant, Content: "prev"},
		},
		OnStream: func(ctx context.Context, chunk string) error {
			streamed += chunk
			return nil
		},
	})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if res.Text != "答え" {
		t.Fatalf("text mismatch: got %q want %q", res.Text, "答え")
	}
	if res.Usage.TotalTokens != 15 || res.Usage.InputTokens != 10 {
		t.Fatalf("usage mismatch: got %+v", res.Usage)
	}
	if streamed != "chunk" {
		t.Fatalf("stream mismatch: got %q want %q", streamed, "chunk")
	}
	if len(gen.got) != 3 {
		t.Fatalf("messages mismatch: got %d want 3", len(gen.got))
	}
	wantRoles := []llms.ChatMessageType{llms.ChatMessageTypeSystem, llms.ChatMessageTypeHuman, llms.ChatMessageTypeAI}
	for i, want := range wantRoles {
		if gen.got[i].Role != want {
			t.Fatalf("role[%d] mismatch: got %q want %q", i, gen.got[i].Role, want)
		}
	}
	if gen.opts.Model != "gpt-4o-mini" {
		t.Fatalf("model mismatch: got %q want %q", gen.opts.Model, "gpt-4o-mini")
	}
}

func TestChatErrors(t *testing.T) {
	c := newWithModel(&fakeGenerator{resp: &llms.ContentResponse{}}, "m", 0, 0)
	if _, err := c.Chat(context.Background(), llm.Request{}); err == nil {
		t.Fatalf("expected error for empty messages")
	}
	if _, err := c.Chat(context.Background(), llm.Request{Messages: []llm.Message{{Role: "user", Content: "x"}}}); err == nil {
		t.Fatalf("expected error for empty choices")
	}

	boom := errors.New("boom")
	c = newWithModel(&fakeGenerator{err: boom}, "m", 0, 0)
	if _, err := c.Chat(context.Background(), llm.Request{Messages: []llm.Message{{Role: "user", Content: "x"}}}); !errors.Is(err, boom) {
		t.Fatalf("error mismatch: got %v want %v", err, boom)
	}
}

func TestNewRequiresKeyAndModel(t *testing.T) {
	if _, err := New(Config{Model: "m"}); err == nil {
		t.Fatalf("expected missing key error")
	}
	if _, err := New(Config{APIKey: "k"}); err == nil {
		t.Fatalf("expected missing model error")
	}
}
