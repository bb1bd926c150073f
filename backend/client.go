// Package backend is the HTTP client for the explanation service.
package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/linanwx/hypermath/logger"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const (
	chatPath        = "/api/chat"
	maxResponseBody = 8 << 20
	maxErrorBody    = 512
	defaultBaseURL  = "http://localhost:5000"
)

var (
	// ErrEmptyPrompt is returned when the prompt is blank after trimming.
	ErrEmptyPrompt = errors.New("backend: empty prompt")
	// ErrMalformedResponse is returned when the reply body is not a JSON object.
	ErrMalformedResponse = errors.New("backend: malformed response")
	// ErrMissingExplanation is returned when the reply has no usable explanation.
	ErrMissingExplanation = errors.New("backend: response has no explanation")
)

// StatusError reports a non-2xx reply.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("backend: status %d", e.Code)
	}
	return fmt.Sprintf("backend: status %d: %s", e.Code, e.Body)
}

// Reply is the normalized backend answer.
type Reply struct {
	Explanation string
	VideoRef    string // absolute when the service returned a path
	CodeText    string
}

// Config describes how to reach the service.
type Config struct {
	BaseURL    string
	Timeout    time.Duration // 0 waits forever
	HTTPClient *http.Client
	UserAgent  string
}

// Client sends prompts to the explanation service. It is stateless and safe
// for concurrent use.
type Client struct {
	base       *url.URL
	timeout    time.Duration
	httpClient *http.Client
	userAgent  string
}

// NewClient creates a client for the service rooted at cfg.BaseURL.
func NewClient(cfg Config) (*Client, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		raw = defaultBaseURL
	}
	base, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return nil, fmt.Errorf("backend: parse base url %q: %w", raw, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("backend: base url %q must be absolute", raw)
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = "hypermath"
	}
	return &Client{base: base, timeout: cfg.Timeout, httpClient: hc, userAgent: ua}, nil
}

// BaseURL returns the service root.
func (c *Client) BaseURL() string { return c.base.String() }

// Send posts one prompt and waits for the reply. It never retries.
func (c *Client) Send(ctx context.Context, prompt string) (*Reply, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	body, err := sjson.SetBytes([]byte(`{}`), "prompt", prompt)
	if err != nil {
		return nil, fmt.Errorf("backend: build request: %w", err)
	}

	endpoint := c.base.JoinPath(chatPath).String()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("backend: create request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", requestID)

	start := time.Now()
	logger.Debug("backend request", "requestId", requestID, "url", endpoint, "promptChars", len(prompt))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("backend: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("backend: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode, Body: truncate(strings.TrimSpace(string(raw)), maxErrorBody)}
	}

	reply, err := c.decode(raw)
	if err != nil {
		return nil, err
	}

	logger.Info(
		"backend response",
		"requestId", requestID,
		"status", resp.StatusCode,
		"hasVideo", reply.VideoRef != "",
		"hasCode", reply.CodeText != "",
		"explanationChars", len(reply.Explanation),
		"latencyMs", time.Since(start).Milliseconds(),
	)
	return reply, nil
}

func (c *Client) decode(raw []byte) (*Reply, error) {
	if !gjson.ValidBytes(raw) {
		return nil, ErrMalformedResponse
	}
	doc := gjson.ParseBytes(raw)
	if !doc.IsObject() {
		return nil, ErrMalformedResponse
	}

	explanation := doc.Get("explanation")
	if explanation.Type != gjson.String || strings.TrimSpace(explanation.Str) == "" {
		return nil, ErrMissingExplanation
	}

	reply := &Reply{Explanation: explanation.Str}
	if v := doc.Get("video_url"); v.Type == gjson.String {
		// An unusable video reference only costs the artifact.
		ref, err := c.resolve(v.Str)
		if err != nil {
			logger.Warn("ignoring invalid video_url", "videoUrl", truncate(v.Str, maxErrorBody), "err", err)
		}
		reply.VideoRef = ref
	}
	if v := doc.Get("manim_code"); v.Type == gjson.String {
		reply.CodeText = v.Str
	}
	return reply, nil
}

// resolve makes service-relative video paths playable from any front-end.
func (c *Client) resolve(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", nil
	}
	u, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	if u.IsAbs() {
		return ref, nil
	}
	root := *c.base
	root.Path = strings.TrimRight(root.Path, "/") + "/"
	return root.ResolveReference(u).String(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
