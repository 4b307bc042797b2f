// Package classifier turns free-text chat comments into structured
// product-request verdicts. Classification is two-staged: a cheap keyword
// pre-filter runs first, and only comments that pass it spend a remote
// language-model call.
package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"

	"github.com/AlexandroAurellino/live-shop-bot/catalog"
	"github.com/AlexandroAurellino/live-shop-bot/logging"
	"github.com/AlexandroAurellino/live-shop-bot/metrics"
	"github.com/AlexandroAurellino/live-shop-bot/types"
)

// triggerWords are generic purchase-intent words that let a comment through
// the cheap filter even when it names no product directly.
var triggerWords = []string{
	"show", "see", "look", "display", "view", "preview",
	"buy", "get", "price", "cost", "how much", "can i", "open",
	"interested", "demo", "close up",
}

const defaultTimeout = 8 * time.Second

// Client classifies comments against a product catalog using an
// OpenAI-compatible chat-completion endpoint.
type Client struct {
	llm     llms.Model
	timeout time.Duration
	logger  *logging.Logger
}

// New creates a classifier client. baseURL points at any OpenAI-compatible
// endpoint; model names the chat model to use.
func New(apiKey, baseURL, model string, logger *logging.Logger) (*Client, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if apiKey == "" {
		return nil, errors.New("classifier API key is required")
	}

	logger.Info("setting up classifier LLM client", "model", model, "baseURL", baseURL)

	opts := []openai.Option{
		openai.WithToken(apiKey),
		openai.WithModel(model),
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		logger.Error("failed to create classifier LLM", "error", err.Error())
		return nil, errors.Wrap(err, "failed to create classifier LLM")
	}

	return &Client{
		llm:     llm,
		timeout: defaultTimeout,
		logger:  logger,
	}, nil
}

// Classify returns a verdict for one comment. It never returns an error to
// the caller: any transport failure, malformed response, or missing field
// degrades to an IntentError verdict, which callers treat as a no-op.
func (c *Client) Classify(ctx context.Context, comment string, cat *catalog.Catalog) types.Verdict {
	if !passesCheapFilter(comment, cat) {
		metrics.CheapFilterSkipCount.Add(1)
		c.logger.Debug("cheap filter rejected comment, skipping LLM", "comment", comment)
		return types.Verdict{Intent: types.IntentOther}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.logger.Debug("invoking classifier LLM", "comment", comment)
	metrics.ClassifierCallCount.Add(1)
	start := time.Now()

	resp, err := c.llm.GenerateContent(ctx,
		[]llms.MessageContent{
			llms.TextParts(schema.ChatMessageTypeSystem, buildSystemPrompt(cat)),
			llms.TextParts(schema.ChatMessageTypeHuman, comment),
		},
		llms.WithTemperature(0.1),
		llms.WithJSONMode(),
	)
	metrics.ClassifierDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ClassifierErrorCount.Add(1)
		c.logger.Error("classifier LLM call failed", "error", err.Error())
		return types.Verdict{Intent: types.IntentError}
	}
	if len(resp.Choices) == 0 {
		metrics.ClassifierErrorCount.Add(1)
		c.logger.Error("classifier LLM returned no choices")
		return types.Verdict{Intent: types.IntentError}
	}

	verdict, err := parseVerdict(resp.Choices[0].Content)
	if err != nil {
		metrics.ClassifierErrorCount.Add(1)
		c.logger.Error("failed to parse classifier response", "error", err.Error())
		return types.Verdict{Intent: types.IntentError}
	}
	return verdict
}

// passesCheapFilter reports whether a comment is worth a remote call. It
// only suppresses comments that would almost certainly classify as "other";
// it never decides that a comment IS a product request.
func passesCheapFilter(comment string, cat *catalog.Catalog) bool {
	lower := strings.ToLower(comment)

	for _, trigger := range triggerWords {
		if strings.Contains(lower, trigger) {
			return true
		}
	}

	for _, p := range cat.Products() {
		if strings.Contains(lower, strings.ToLower(p.Name)) {
			return true
		}
	}

	for _, k := range cat.Keywords() {
		if strings.Contains(lower, k) {
			return true
		}
	}

	return false
}

// buildSystemPrompt enumerates every catalog product with its keyword
// context so the model can return an exact name from the list.
func buildSystemPrompt(cat *catalog.Catalog) string {
	var b strings.Builder
	b.WriteString("You are a live-stream shopping assistant. ")
	b.WriteString("Determine if the user wants to SEE or is ASKING about a specific product.\n\n")
	b.WriteString("Available Products:\n")
	for _, p := range cat.Products() {
		desc := p.Description
		if desc == "" {
			desc = "No keywords"
		}
		fmt.Fprintf(&b, "- Product: '%s' (Keywords/Context: %s)\n", p.Name, desc)
	}
	b.WriteString("\nIf the user mentions a product name OR its keywords/description, return that product name.\n")
	b.WriteString(`Return JSON: {"intent": "product_request" or "other", "product_name": "Exact Name From List" or null}.`)
	return b.String()
}

// rawVerdict mirrors the JSON object the model is asked to return.
// ProductName is a pointer so a JSON null is accepted.
type rawVerdict struct {
	Intent      string  `json:"intent"`
	ProductName *string `json:"product_name"`
}

// parseVerdict parses the model output as strict JSON and validates the
// intent field.
func parseVerdict(content string) (types.Verdict, error) {
	var raw rawVerdict
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return types.Verdict{}, errors.Wrap(err, "malformed classifier JSON")
	}

	var intent types.Intent
	switch raw.Intent {
	case string(types.IntentProductRequest):
		intent = types.IntentProductRequest
	case string(types.IntentOther):
		intent = types.IntentOther
	case "":
		return types.Verdict{}, errors.New("classifier response missing intent field")
	default:
		return types.Verdict{}, errors.Errorf("classifier returned unknown intent %q", raw.Intent)
	}

	v := types.Verdict{Intent: intent}
	if raw.ProductName != nil {
		v.ProductName = *raw.ProductName
	}
	return v, nil
}
