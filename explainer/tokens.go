package explainer

import (
	"fmt"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

var (
	codecOnce sync.Once
	codec     tokenizer.Codec
	codecErr  error
)

func cl100k() (tokenizer.Codec, error) {
	codecOnce.Do(func() {
		codec, codecErr = tokenizer.Get(tokenizer.Cl100kBase)
	})
	return codec, codecErr
}

// countTokens returns the cl100k token count of s.
func countTokens(s string) (int, error) {
	enc, err := cl100k()
	if err != nil {
		return 0, fmt.Errorf("load tokenizer: %w", err)
	}
	ids, _, err := enc.Encode(s)
	if err != nil {
		return 0, fmt.Errorf("encode: %w", err)
	}
	return len(ids), nil
}

// TruncatePrompt cuts prompt to at most maxTokens cl100k tokens. It reports
// whether anything was removed. maxTokens <= 0 disables the limit.
func TruncatePrompt(prompt string, maxTokens int) (string, bool, error) {
	if maxTokens <= 0 || prompt == "" {
		return prompt, false, nil
	}
	enc, err := cl100k()
	if err != nil {
		return "", false, fmt.Errorf("load tokenizer: %w", err)
	}
	ids, _, err := enc.Encode(prompt)
	if err != nil {
		return "", false, fmt.Errorf("encode: %w", err)
	}
	if len(ids) <= maxTokens {
		return prompt, false, nil
	}
	out, err := enc.Decode(ids[:maxTokens])
	if err != nil {
		return "", false, fmt.Errorf("decode: %w", err)
	}
	return out, true, nil
}
