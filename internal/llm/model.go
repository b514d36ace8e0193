package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/raphaelgruber/complycheck/internal/config"
	"github.com/raphaelgruber/complycheck/internal/metrics"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/bedrock"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"golang.org/x/time/rate"
)

// Deterministic sampling settings for verdict generation.
const (
	defaultSeed      = 42
	defaultMaxTokens = 1000
)

// Model wraps a langchaingo LLM as a rate-limited, deterministic reasoning
// service.
type Model struct {
	llm       llms.Model
	modelName string
	maxTokens int
	limiter   *rate.Limiter
	metrics   *metrics.Collector
}

// ModelOptions tunes a Model built around an existing LLM.
type ModelOptions struct {
	MaxTokens         int
	RequestsPerSecond float64
	Metrics           *metrics.Collector
}

// NewModel creates a reasoning model based on configuration.
func NewModel(ctx context.Context, cfg config.Config, collector *metrics.Collector) (*Model, error) {
	var model llms.Model
	var err error

	switch cfg.LLMProvider {
	case config.ProviderOllama:
		model, err = ollama.New(
			ollama.WithModel(cfg.LLMModel),
			ollama.WithServerURL(cfg.OllamaHost),
		)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}

	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, errors.New("OpenAI API key required")
		}
		model, err = openai.New(
			openai.WithToken(cfg.OpenAIAPIKey),
			openai.WithModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}

	case config.ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, errors.New("Anthropic API key required")
		}
		model, err = anthropic.New(
			anthropic.WithToken(cfg.AnthropicAPIKey),
			anthropic.WithModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create anthropic model: %w", err)
		}

	case config.ProviderBedrock:
		client, clientErr := newBedrockClient(ctx, cfg)
		if clientErr != nil {
			return nil, clientErr
		}
		model, err = bedrock.New(
			bedrock.WithClient(client),
			bedrock.WithModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create bedrock model: %w", err)
		}

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.LLMProvider)
	}

	return NewModelFrom(model, cfg.LLMModel, ModelOptions{
		MaxTokens:         cfg.LLMMaxTokens,
		RequestsPerSecond: cfg.LLMRequestsPerSecond,
		Metrics:           collector,
	}), nil
}

// NewModelFrom wraps an existing langchaingo model. A non-positive
// RequestsPerSecond disables rate limiting.
func NewModelFrom(model llms.Model, modelName string, opts ModelOptions) *Model {
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &Model{
		llm:       model,
		modelName: modelName,
		maxTokens: maxTokens,
		limiter:   rate.NewLimiter(limit, 1),
		metrics:   opts.Metrics,
	}
}

// Complete sends prompt to the model and returns the raw text response.
// When schemaHint is non-empty it is sent as the system message and the
// provider is asked for JSON output. Sampling is fixed (temperature 0,
// constant seed) so repeated runs give stable verdicts where the provider
// supports it.
func (m *Model) Complete(ctx context.Context, prompt, schemaHint string) (string, error) {
	if err := m.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}

	var messages []llms.MessageContent
	if schemaHint != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, schemaHint))
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, prompt))

	opts := []llms.CallOption{
		llms.WithTemperature(0),
		llms.WithSeed(defaultSeed),
		llms.WithMaxTokens(m.maxTokens),
	}
	if schemaHint != "" {
		opts = append(opts, llms.WithJSONMode())
	}

	start := time.Now()
	response, err := m.llm.GenerateContent(ctx, messages, opts...)
	duration := time.Since(start)
	if err != nil {
		m.metrics.RecordFailure(metrics.OpReasoning)
		slog.Warn("reasoning call failed", "model", m.modelName, "duration_ms", duration.Milliseconds(), "error", err)
		return "", fmt.Errorf("generate: %w", wrapFatalError(err))
	}

	if len(response.Choices) == 0 {
		m.metrics.RecordFailure(metrics.OpReasoning)
		return "", errors.New("no response choices")
	}

	choice := response.Choices[0]
	in, out := tokenUsage(choice.GenerationInfo)
	m.metrics.RecordLLMUsage(metrics.OpReasoning, duration, in, out)

	slog.Debug("reasoning complete", "model", m.modelName, "duration_ms", duration.Milliseconds(),
		"input_tokens", in, "output_tokens", out)
	return choice.Content, nil
}

// Model returns the LLM model name.
func (m *Model) Model() string {
	return m.modelName
}

// tokenUsage reads token counts from provider generation info. OpenAI and
// Ollama report PromptTokens/CompletionTokens, Anthropic and Bedrock report
// InputTokens/OutputTokens.
func tokenUsage(info map[string]any) (int64, int64) {
	return firstInt(info, "PromptTokens", "InputTokens"), firstInt(info, "CompletionTokens", "OutputTokens")
}

func firstInt(info map[string]any, keys ...string) int64 {
	for _, k := range keys {
		switch v := info[k].(type) {
		case int:
			return int64(v)
		case int32:
			return int64(v)
		case int64:
			return v
		case float64:
			return int64(v)
		}
	}
	return 0
}
