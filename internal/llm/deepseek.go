package llm

import (
	"context"
	"fmt"
	"sync"
	"time"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	DefaultModel       = "deepseek-chat"
	defaultTemperature = 0.1
	defaultMaxTokens   = 2000
	defaultTimeout     = 50 * time.Second
)

// TokenUsage tracks usage counts per model.
type TokenUsage struct {
	CompletionTokens int64 `json:"completion_tokens"`
	PromptTokens     int64 `json:"prompt_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

type Config struct {
	APIKey      string
	BaseURL     string // OpenAI-compatible endpoint, e.g. https://api.deepseek.com
	Model       string
	Temperature float64
	MaxTokens   int64
	Timeout     time.Duration
}

// DeepSeek talks to the DeepSeek chat completion API through its
// OpenAI-compatible surface and tracks token usage.
type DeepSeek struct {
	client openai.Client
	model  string
	temp   float64
	tokens int64
	wait   time.Duration

	mu    sync.Mutex
	usage map[string]*TokenUsage
}

func NewDeepSeek(cfg Config) *DeepSeek {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	temp := cfg.Temperature
	if temp == 0 {
		temp = defaultTemperature
	}
	tokens := cfg.MaxTokens
	if tokens == 0 {
		tokens = defaultMaxTokens
	}
	wait := cfg.Timeout
	if wait == 0 {
		wait = defaultTimeout
	}

	return &DeepSeek{
		client: openai.NewClient(opts...),
		model:  model,
		temp:   temp,
		tokens: tokens,
		wait:   wait,
		usage:  make(map[string]*TokenUsage),
	}
}

func (d *DeepSeek) Generate(ctx context.Context, systemPrompt, prompt string) (string, error) {
	return d.generate(ctx, systemPrompt, prompt, openai.ChatCompletionNewParamsResponseFormatUnion{})
}

func (d *DeepSeek) GenerateJSON(ctx context.Context, systemPrompt, prompt string) (string, error) {
	format := openai.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
	}
	return d.generate(ctx, systemPrompt, prompt, format)
}

func (d *DeepSeek) generate(ctx context.Context, systemPrompt, prompt string, responseFormat openai.ChatCompletionNewParamsResponseFormatUnion) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, d.wait)
	defer cancel()

	var messages []openai.ChatCompletionMessageParamUnion
	if systemPrompt != "" {
		messages = append(messages, openai.SystemMessage(systemPrompt))
	}
	messages = append(messages, openai.UserMessage(prompt))

	chatReq := openai.ChatCompletionNewParams{
		Model:       d.model,
		Messages:    messages,
		Temperature: openai.Float(d.temp),
		MaxTokens:   openai.Int(d.tokens),
	}
	chatReq.ResponseFormat = responseFormat

	res, err := d.client.Chat.Completions.New(ctx, chatReq)
	if err != nil {
		return "", fmt.Errorf("llm generation failed: %w", err)
	}
	if len(res.Choices) == 0 {
		return "", fmt.Errorf("llm returned no choices")
	}

	d.mu.Lock()
	tu, ok := d.usage[d.model]
	if !ok {
		tu = &TokenUsage{}
		d.usage[d.model] = tu
	}
	tu.CompletionTokens += res.Usage.CompletionTokens
	tu.PromptTokens += res.Usage.PromptTokens
	tu.TotalTokens += res.Usage.TotalTokens
	d.mu.Unlock()

	return res.Choices[0].Message.Content, nil
}

// Usage returns a snapshot of accumulated token usage per model.
func (d *DeepSeek) Usage() map[string]TokenUsage {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make(map[string]TokenUsage, len(d.usage))
	for model, tu := range d.usage {
		out[model] = *tu
	}
	return out
}
