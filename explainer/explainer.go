// Package explainer produces math explanations for the bundled backend.
package explainer

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Explanation is one answer: markdown for the reader and optional Manim
// source for the renderer.
type Explanation struct {
	Markdown  string
	ManimCode string
}

// HasCode reports whether the explanation carries Manim source.
func (e *Explanation) HasCode() bool {
	return e != nil && strings.TrimSpace(e.ManimCode) != ""
}

// Explainer answers one prompt.
type Explainer interface {
	Name() string
	Explain(ctx context.Context, prompt string) (*Explanation, error)
}

// ErrEmptyAnswer is returned when a model produced no text.
var ErrEmptyAnswer = errors.New("explainer: empty answer")

// Options selects and configures an explainer.
type Options struct {
	Kind            string // demo, openai, anthropic
	Model           string
	APIKey          string
	APIBase         string
	MaxTokens       int
	MaxPromptTokens int
}

// New returns the explainer named by opts.Kind.
func New(opts Options) (Explainer, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Kind)) {
	case "", "demo":
		return NewDemo(), nil
	case "openai":
		if opts.APIKey == "" {
			return nil, fmt.Errorf("explainer openai: api key is required")
		}
		return NewOpenAI(opts)
	case "anthropic":
		if opts.APIKey == "" {
			return nil, fmt.Errorf("explainer anthropic: api key is required")
		}
		return NewAnthropic(opts)
	default:
		return nil, fmt.Errorf("unknown explainer %q (want demo, openai or anthropic)", opts.Kind)
	}
}

const systemPrompt = `You are HyperMath, a patient mathematics tutor.
Explain the concept the user asks about in Markdown: a top-level heading, a short intuitive explanation, the key formulas, and one worked example.
Then provide exactly one fenced code block tagged python containing a complete Manim Community scene (from manim import *) that visualizes the idea in under 15 seconds.
Do not include any other code blocks.`
