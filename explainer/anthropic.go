package explainer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/linanwx/hypermath/logger"
)

const (
	defaultAnthropicModel     = "claude-sonnet-4-5"
	defaultAnthropicMaxTokens = 2048
)

// Anthropic explains through the Messages API.
type Anthropic struct {
	model           string
	maxTokens       int
	maxPromptTokens int
	client          anthropic.Client
}

// NewAnthropic builds an Anthropic explainer.
func NewAnthropic(opts Options) (*Anthropic, error) {
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultAnthropicModel
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}
	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithMaxRetries(sdkMaxRetries),
	}
	if base := strings.TrimSpace(opts.APIBase); base != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(base))
	}
	return &Anthropic{
		model:           model,
		maxTokens:       maxTokens,
		maxPromptTokens: opts.MaxPromptTokens,
		client:          anthropic.NewClient(reqOpts...),
	}, nil
}

// Name returns "anthropic".
func (p *Anthropic) Name() string { return "anthropic" }

// Explain sends one message and splits the Manim block out of the answer.
func (p *Anthropic) Explain(ctx context.Context, prompt string) (*Explanation, error) {
	start := time.Now()
	prompt, truncated, err := TruncatePrompt(prompt, p.maxPromptTokens)
	if err != nil {
		return nil, err
	}
	if truncated {
		logger.Warn("prompt truncated", "explainer", p.Name(), "maxPromptTokens", p.maxPromptTokens)
	}

	msg, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: int64(p.maxTokens),
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		logger.Error("anthropic request send error", "model", p.model, "err", err)
		return nil, fmt.Errorf("request failed: %w", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	content := sb.String()
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyAnswer
	}

	markdown, code := SplitManim(content)
	logger.Info(
		"anthropic response",
		"model", p.model,
		"stopReason", msg.StopReason,
		"inputTokens", msg.Usage.InputTokens,
		"outputTokens", msg.Usage.OutputTokens,
		"hasCode", code != "",
		"latencyMs", time.Since(start).Milliseconds(),
	)
	return &Explanation{Markdown: markdown, ManimCode: code}, nil
}
