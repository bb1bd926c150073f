// Package config handles configuration loading and saving.
package config

import (
	"strings"
	"time"
)

const (
	configFileName = "config.yaml"
	configDirName  = ".hypermath"
)

var configDirOverride string

// SetConfigDir overrides the config directory for the current process.
// Empty value clears the override.
func SetConfigDir(dir string) {
	configDirOverride = strings.TrimSpace(dir)
}

// Config is the root configuration structure.
type Config struct {
	Backend BackendConfig `json:"backend" yaml:"backend"`
	Web     WebConfig     `json:"web,omitempty" yaml:"web,omitempty"`
	Server  ServerConfig  `json:"server,omitempty" yaml:"server,omitempty"`
	Logging LoggingConfig `json:"logging,omitempty" yaml:"logging,omitempty"`
}

// BackendConfig describes how front-ends reach the explanation service.
type BackendConfig struct {
	URL     string        `json:"url" yaml:"url"`
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"` // 0 waits forever
}

// WebConfig contains web front-end configuration.
type WebConfig struct {
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty"` // default: 127.0.0.1:8080
}

// ServerConfig configures the bundled explanation service.
type ServerConfig struct {
	Addr            string   `json:"addr,omitempty" yaml:"addr,omitempty"`                       // default: 127.0.0.1:5000
	StaticDir       string   `json:"staticDir,omitempty" yaml:"staticDir,omitempty"`             // relative to the config dir
	Explainer       string   `json:"explainer,omitempty" yaml:"explainer,omitempty"`             // demo, openai, anthropic
	Model           string   `json:"model,omitempty" yaml:"model,omitempty"`                     // provider model name
	APIKey          string   `json:"apiKey,omitempty" yaml:"apiKey,omitempty"`                   // falls back to OPENAI_API_KEY / ANTHROPIC_API_KEY
	APIBase         string   `json:"apiBase,omitempty" yaml:"apiBase,omitempty"`                 // optional custom base URL
	MaxTokens       int      `json:"maxTokens,omitempty" yaml:"maxTokens,omitempty"`             // defaults to 2048
	MaxPromptTokens int      `json:"maxPromptTokens,omitempty" yaml:"maxPromptTokens,omitempty"` // defaults to 512
	Renderer        string   `json:"renderer,omitempty" yaml:"renderer,omitempty"`               // ffmpeg, manim or command
	RenderCommand   string   `json:"renderCommand,omitempty" yaml:"renderCommand,omitempty"`     // ffmpeg or python by renderer
	RenderArgs      []string `json:"renderArgs,omitempty" yaml:"renderArgs,omitempty"`           // {scene} and {out} are replaced
	RenderQuality   string   `json:"renderQuality,omitempty" yaml:"renderQuality,omitempty"`     // manim preset, default medium_quality

	Retention     time.Duration `json:"retention,omitempty" yaml:"retention,omitempty"`         // default 168h, negative keeps files forever
	SweepSchedule string        `json:"sweepSchedule,omitempty" yaml:"sweepSchedule,omitempty"` // cron expression, default @hourly
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Enabled *bool  `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Level   string `json:"level,omitempty" yaml:"level,omitempty"`   // debug, info, warn, error
	Stdout  bool   `json:"stdout,omitempty" yaml:"stdout,omitempty"` // log to stdout
	File    string `json:"file,omitempty" yaml:"file,omitempty"`     // log file path
	Format  string `json:"format,omitempty" yaml:"format,omitempty"` // text or json
}
