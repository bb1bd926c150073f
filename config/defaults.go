package config

import "time"

const (
	defaultBackendURL      = "http://localhost:5000"
	defaultWebAddr         = "127.0.0.1:8080"
	defaultServerAddr      = "127.0.0.1:5000"
	defaultStaticDir       = "static"
	defaultExplainer       = "demo"
	defaultMaxTokens       = 2048
	defaultMaxPromptTokens = 512
	defaultRenderer        = "ffmpeg"
	defaultRetention       = 7 * 24 * time.Hour
	defaultSweepSchedule   = "@hourly"
)

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Backend: BackendConfig{
			URL: defaultBackendURL,
		},
		Web: WebConfig{
			Addr: defaultWebAddr,
		},
		Server: ServerConfig{
			Addr:            defaultServerAddr,
			StaticDir:       defaultStaticDir,
			Explainer:       defaultExplainer,
			MaxTokens:       defaultMaxTokens,
			MaxPromptTokens: defaultMaxPromptTokens,
			Renderer:        defaultRenderer,
			Retention:       defaultRetention,
			SweepSchedule:   defaultSweepSchedule,
		},
		Logging: defaultLoggingConfig(),
	}
}

func defaultLoggingConfig() LoggingConfig {
	enabled := true
	return LoggingConfig{
		Enabled: &enabled,
		Level:   "info",
		Stdout:  false,
		File:    "logs/hypermath.log",
		Format:  "text",
	}
}

func (c *Config) applyDefaults() {
	if c.Backend.URL == "" {
		c.Backend.URL = defaultBackendURL
	}
	if c.Backend.Timeout < 0 {
		c.Backend.Timeout = 0
	}
	if c.Web.Addr == "" {
		c.Web.Addr = defaultWebAddr
	}

	s := &c.Server
	if s.Addr == "" {
		s.Addr = defaultServerAddr
	}
	if s.StaticDir == "" {
		s.StaticDir = defaultStaticDir
	}
	if s.Explainer == "" {
		s.Explainer = defaultExplainer
	}
	if s.MaxTokens <= 0 {
		s.MaxTokens = defaultMaxTokens
	}
	if s.MaxPromptTokens <= 0 {
		s.MaxPromptTokens = defaultMaxPromptTokens
	}
	if s.Renderer == "" {
		s.Renderer = defaultRenderer
	}
	if s.Retention == 0 {
		s.Retention = defaultRetention
	}
	if s.SweepSchedule == "" {
		s.SweepSchedule = defaultSweepSchedule
	}

	def := defaultLoggingConfig()
	if c.Logging == (LoggingConfig{}) {
		c.Logging = def
		return
	}

	hasAny := c.Logging.Level != "" || c.Logging.File != "" || c.Logging.Stdout
	if c.Logging.Enabled == nil && hasAny {
		enabled := true
		c.Logging.Enabled = &enabled
	}
	if c.Logging.Level == "" {
		c.Logging.Level = def.Level
	}
	if c.Logging.File == "" && !c.Logging.Stdout {
		c.Logging.File = def.File
	}
	if c.Logging.Format == "" {
		c.Logging.Format = def.Format
	}
	if c.Logging.Enabled == nil {
		c.Logging.Enabled = def.Enabled
	}
}
