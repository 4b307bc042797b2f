package classifier

import (
	"context"
	"strings"
	"testing"

	"github.com/tmc/langchaingo/llms"

	"github.com/AlexandroAurellino/live-shop-bot/catalog"
	"github.com/AlexandroAurellino/live-shop-bot/logging"
	"github.com/AlexandroAurellino/live-shop-bot/types"
)

// mockLLM returns a fixed response and counts invocations.
type mockLLM struct {
	content string
	err     error
	calls   int
}

func (m *mockLLM) GenerateContent(ctx context.Context, messages []llms.MessageContent, opts ...llms.CallOption) (*llms.ContentResponse, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{
			{Content: m.content},
		},
	}, nil
}

func (m *mockLLM) Call(ctx context.Context, prompt string, opts ...llms.CallOption) (string, error) {
	return "", nil
}

func testCatalog() *catalog.Catalog {
	return catalog.New([]types.Product{
		{Name: "Lamp", MediaFile: "lamp.mp4", Description: "lamp, light"},
		{Name: "Mouse", MediaFile: "mouse.mp4", Description: "mouse, gaming"},
	})
}

func testClient(llm llms.Model) *Client {
	return &Client{
		llm:     llm,
		timeout: defaultTimeout,
		logger:  logging.NewLogger(logging.LogLevelError, nil),
	}
}

func TestPassesCheapFilter(t *testing.T) {
	cat := testCatalog()
	tests := []struct {
		name    string
		comment string
		want    bool
	}{
		{name: "trigger word", comment: "can you show me something", want: true},
		{name: "product name", comment: "that Lamp is nice", want: true},
		{name: "product name case folded", comment: "LAMP!!", want: true},
		{name: "description keyword", comment: "love the gaming setup", want: true},
		{name: "how much phrase", comment: "how much is that", want: true},
		{name: "plain chatter", comment: "hello from brazil", want: false},
		{name: "empty comment", comment: "", want: false},
		{name: "emoji only", comment: "🔥🔥🔥", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := passesCheapFilter(tt.comment, cat); got != tt.want {
				t.Errorf("passesCheapFilter(%q) = %v, want %v", tt.comment, got, tt.want)
			}
		})
	}
}

func TestClassify_CheapFilterSkipsLLM(t *testing.T) {
	llm := &mockLLM{content: `{"intent": "product_request", "product_name": "Lamp"}`}
	c := testClient(llm)

	v := c.Classify(context.Background(), "hello everyone", testCatalog())

	if llm.calls != 0 {
		t.Errorf("expected no LLM calls for a filtered comment, got %d", llm.calls)
	}
	if v.Intent != types.IntentOther || v.ProductName != "" {
		t.Errorf("expected {other, none}, got %+v", v)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		llm     *mockLLM
		comment string
		want    types.Verdict
	}{
		{
			name:    "product request",
			llm:     &mockLLM{content: `{"intent": "product_request", "product_name": "the lamp"}`},
			comment: "show me the lamp",
			want:    types.Verdict{Intent: types.IntentProductRequest, ProductName: "the lamp"},
		},
		{
			name:    "other with null product",
			llm:     &mockLLM{content: `{"intent": "other", "product_name": null}`},
			comment: "show me your setup",
			want:    types.Verdict{Intent: types.IntentOther},
		},
		{
			name:    "malformed JSON degrades to error",
			llm:     &mockLLM{content: `not json at all`},
			comment: "show me the lamp",
			want:    types.Verdict{Intent: types.IntentError},
		},
		{
			name:    "missing intent field degrades to error",
			llm:     &mockLLM{content: `{"product_name": "Lamp"}`},
			comment: "show me the lamp",
			want:    types.Verdict{Intent: types.IntentError},
		},
		{
			name:    "unknown intent degrades to error",
			llm:     &mockLLM{content: `{"intent": "buy_now", "product_name": "Lamp"}`},
			comment: "show me the lamp",
			want:    types.Verdict{Intent: types.IntentError},
		},
		{
			name:    "transport failure degrades to error",
			llm:     &mockLLM{err: context.DeadlineExceeded},
			comment: "show me the lamp",
			want:    types.Verdict{Intent: types.IntentError},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testClient(tt.llm)
			got := c.Classify(context.Background(), tt.comment, testCatalog())
			if got != tt.want {
				t.Errorf("Classify() = %+v, want %+v", got, tt.want)
			}
			if tt.llm.calls != 1 {
				t.Errorf("expected exactly 1 LLM call, got %d", tt.llm.calls)
			}
		})
	}
}

func TestBuildSystemPrompt(t *testing.T) {
	prompt := buildSystemPrompt(testCatalog())
	for _, want := range []string{"'Lamp'", "'Mouse'", "lamp, light", "mouse, gaming", "product_request"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("system prompt missing %q:\n%s", want, prompt)
		}
	}
}
