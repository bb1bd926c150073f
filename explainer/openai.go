package explainer

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"
	oaioption "github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/linanwx/hypermath/logger"
)

const (
	defaultOpenAIModel = "gpt-4o-mini"
	sdkMaxRetries      = 1
)

// OpenAI explains through any OpenAI-compatible chat completions endpoint.
type OpenAI struct {
	model           string
	maxTokens       int
	maxPromptTokens int
	client          openai.Client
}

// NewOpenAI builds an OpenAI explainer. APIBase may point at any compatible
// service.
func NewOpenAI(opts Options) (*OpenAI, error) {
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultOpenAIModel
	}
	reqOpts := []oaioption.RequestOption{
		oaioption.WithAPIKey(opts.APIKey),
		oaioption.WithMaxRetries(sdkMaxRetries),
	}
	if base := strings.TrimSpace(opts.APIBase); base != "" {
		reqOpts = append(reqOpts, oaioption.WithBaseURL(strings.TrimRight(base, "/")+"/"))
	}
	return &OpenAI{
		model:           model,
		maxTokens:       opts.MaxTokens,
		maxPromptTokens: opts.MaxPromptTokens,
		client:          openai.NewClient(reqOpts...),
	}, nil
}

// Name returns "openai".
func (p *OpenAI) Name() string { return "openai" }

// Explain sends one chat completion and splits the Manim block out of it.
func (p *OpenAI) Explain(ctx context.Context, prompt string) (*Explanation, error) {
	start := time.Now()
	prompt, truncated, err := TruncatePrompt(prompt, p.maxPromptTokens)
	if err != nil {
		return nil, err
	}
	if truncated {
		logger.Warn("prompt truncated", "explainer", p.Name(), "maxPromptTokens", p.maxPromptTokens)
	}

	req := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(p.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(prompt),
		},
	}
	if p.maxTokens > 0 {
		req.MaxTokens = openai.Int(int64(p.maxTokens))
	}

	resp, err := p.client.Chat.Completions.New(ctx, req)
	if err != nil {
		logger.Error("openai request send error", "model", p.model, "err", err)
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}
	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyAnswer
	}

	markdown, code := SplitManim(content)
	logger.Info(
		"openai response",
		"model", p.model,
		"finishReason", resp.Choices[0].FinishReason,
		"promptTokens", resp.Usage.PromptTokens,
		"completionTokens", resp.Usage.CompletionTokens,
		"hasCode", code != "",
		"latencyMs", time.Since(start).Milliseconds(),
	)
	return &Explanation{Markdown: markdown, ManimCode: code}, nil
}
