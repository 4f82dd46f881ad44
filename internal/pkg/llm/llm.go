package llm

import (
	"context"
	"errors"
	"fmt"
	neturl "net/url"
	"strings"
	"time"

	anthropicclient "github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	openaiclient "github.com/openai/openai-go/v2"
	openaioption "github.com/openai/openai-go/v2/option"
	jetai "go.jetify.com/ai"
	jetapi "go.jetify.com/ai/api"
	jetanthropic "go.jetify.com/ai/provider/anthropic"
	jetopenai "go.jetify.com/ai/provider/openai"

	"github.com/Iyabivuz-e/SomaAI/internal/config"
)

// ErrEmptyResponse is returned when the provider answered with no text.
var ErrEmptyResponse = errors.New("empty response from model")

// Model generates text from a system prompt and a user prompt.
type Model interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

const (
	defaultOpenAIModel    = "gpt-4o-mini"
	defaultAnthropicModel = "claude-haiku-4-5-20251001"

	defaultMaxOutputTokens = 1024
)

// New builds the generation model selected by cfg.Provider.
func New(cfg config.LLMConfig) (Model, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("llm api key is empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	switch normalizeProviderType(cfg.Provider) {
	case "openai-compatible", "openaicompatible":
		return &compatModel{
			endpoint:  normalizeOpenAICompatibleEndpoint(cfg.Endpoint),
			apiKey:    apiKey,
			model:     orDefault(cfg.Model, defaultOpenAIModel),
			maxTokens: cfg.MaxOutputTokens,
			timeout:   timeout,
		}, nil
	case "anthropic":
		opts := []anthropicoption.RequestOption{
			anthropicoption.WithAPIKey(apiKey),
			anthropicoption.WithMaxRetries(0),
			anthropicoption.WithRequestTimeout(timeout),
		}
		if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
			opts = append(opts, anthropicoption.WithBaseURL(strings.TrimRight(endpoint, "/")))
		}
		client := anthropicclient.NewClient(opts...)
		lm := jetanthropic.NewLanguageModel(orDefault(cfg.Model, defaultAnthropicModel), jetanthropic.WithClient(client))
		return &jetModel{lm: lm, maxTokens: cfg.MaxOutputTokens}, nil
	case "openai", "":
		opts := []openaioption.RequestOption{
			openaioption.WithAPIKey(apiKey),
			openaioption.WithMaxRetries(0),
			openaioption.WithRequestTimeout(timeout),
		}
		if normalized := normalizeOpenAIBaseURL(cfg.Endpoint); normalized != "" {
			opts = append(opts, openaioption.WithBaseURL(normalized))
		}
		client := openaiclient.NewClient(opts...)
		lm := jetopenai.NewLanguageModel(orDefault(cfg.Model, defaultOpenAIModel), jetopenai.WithClient(client))
		return &jetModel{lm: lm, maxTokens: cfg.MaxOutputTokens}, nil
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
}

// jetModel drives OpenAI and Anthropic through the provider-neutral jetify API.
type jetModel struct {
	lm        jetapi.LanguageModel
	maxTokens int
}

func (m *jetModel) Generate(ctx context.Context, system, prompt string) (string, error) {
	maxTokens := m.maxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxOutputTokens
	}
	resp, err := jetai.GenerateText(
		ctx,
		buildPromptMessages(system, prompt),
		jetai.WithModel(m.lm),
		jetai.WithMaxOutputTokens(maxTokens),
	)
	if err != nil {
		return "", err
	}
	return extractText(resp)
}

func buildPromptMessages(system, prompt string) []jetapi.Message {
	messages := make([]jetapi.Message, 0, 2)
	if strings.TrimSpace(system) != "" {
		messages = append(messages, &jetapi.SystemMessage{Content: system})
	}
	messages = append(messages, &jetapi.UserMessage{Content: jetapi.ContentFromText(prompt)})
	return messages
}

func extractText(resp *jetapi.Response) (string, error) {
	if resp == nil {
		return "", ErrEmptyResponse
	}
	var full strings.Builder
	for _, block := range resp.Content {
		textBlock, ok := block.(*jetapi.TextBlock)
		if !ok || textBlock.Text == "" {
			continue
		}
		full.WriteString(textBlock.Text)
	}
	text := full.String()
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func normalizeProviderType(raw string) string {
	t := strings.ToLower(strings.TrimSpace(raw))
	t = strings.ReplaceAll(t, "_", "-")
	t = strings.ReplaceAll(t, " ", "")
	return t
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return def
}

// normalizeOpenAIBaseURL makes sure the SDK base URL ends in /v1.
func normalizeOpenAIBaseURL(raw string) string {
	base := strings.TrimSpace(raw)
	if base == "" {
		return ""
	}
	parsed, err := neturl.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return strings.TrimRight(base, "/")
	}
	path := strings.TrimRight(parsed.Path, "/")
	if !strings.HasSuffix(path, "/v1") {
		path += "/v1"
	}
	parsed.Path = path
	return strings.TrimRight(parsed.String(), "/")
}

// normalizeOpenAICompatibleEndpoint strips a trailing /v1; requests add it back.
func normalizeOpenAICompatibleEndpoint(raw string) string {
	base := strings.TrimSpace(raw)
	if base == "" {
		return "https://api.openai.com"
	}
	parsed, err := neturl.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return strings.TrimSuffix(strings.TrimRight(base, "/"), "/v1")
	}
	parsed.Path = strings.TrimSuffix(strings.TrimRight(parsed.Path, "/"), "/v1")
	return strings.TrimRight(parsed.String(), "/")
}
