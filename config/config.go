package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bytedance/sonic"
	"gopkg.in/yaml.v3"
)

type ProviderConfig struct {
	APIKey         string `json:"api_key" yaml:"api_key"`
	BaseURL        string `json:"base_url" yaml:"base_url"`
	Model          string `json:"model" yaml:"model"`
	TimeoutSeconds int    `json:"timeout_seconds" yaml:"timeout_seconds"`
}

type ServerConfig struct {
	Addr           string   `json:"addr" yaml:"addr"`
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins"`
}

// StoreConfig selects where sessions live. Driver is "memory" or "sqlite".
type StoreConfig struct {
	Driver string `json:"driver" yaml:"driver"`
	Path   string `json:"path" yaml:"path"`
}

// LogConfig configures slog. An empty File logs to stderr.
type LogConfig struct {
	Level      string `json:"level" yaml:"level"`
	Format     string `json:"format" yaml:"format"`
	File       string `json:"file" yaml:"file"`
	MaxSizeMB  int    `json:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `json:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `json:"max_age_days" yaml:"max_age_days"`
	Compress   bool   `json:"compress" yaml:"compress"`
}

type DialogueConfig struct {
	MaxToolHops    int    `json:"max_tool_hops" yaml:"max_tool_hops"`
	TransitionRole string `json:"transition_role" yaml:"transition_role"`
	Brand          string `json:"brand" yaml:"brand"`
	Greeting       string `json:"greeting" yaml:"greeting"`

	// TransitionTemplate is formatted with the finished and the next step name.
	TransitionTemplate string `json:"transition_template" yaml:"transition_template"`

	// Intro replaces the opening of the system prompt. A "%s" in it is the brand.
	Intro string `json:"intro" yaml:"intro"`

	// ContextLimit bounds the non-system history messages sent per model call.
	// 0 sends the whole conversation. Stored history is never trimmed.
	ContextLimit int `json:"context_limit" yaml:"context_limit"`

	// LLMCommands also asks the model whether free text is a navigation command.
	LLMCommands bool `json:"llm_commands" yaml:"llm_commands"`
}

type Config struct {
	Provider ProviderConfig `json:"provider" yaml:"provider"`
	Server   ServerConfig   `json:"server" yaml:"server"`
	Store    StoreConfig    `json:"store" yaml:"store"`
	Log      LogConfig      `json:"log" yaml:"log"`
	Dialogue DialogueConfig `json:"dialogue" yaml:"dialogue"`
}

func Default() *Config {
	return &Config{
		Provider: ProviderConfig{
			Model:          "gpt-4o-mini",
			TimeoutSeconds: 60,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Store: StoreConfig{
			Driver: "memory",
			Path:   "intakeagent.db",
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  15,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Dialogue: DialogueConfig{
			MaxToolHops:    3,
			TransitionRole: "user",
			Brand:          "PivotHire",
		},
	}
}

// Load reads a JSON or YAML file (by extension) over the defaults, then applies the
// OPENAI_API_KEY, OPENAI_BASE_URL and OPENAI_MODEL environment overrides.
// An empty path skips the file.
func Load(path string) (*Config, error) {
	conf := Default()
	if path != "" {
		file, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			err = yaml.Unmarshal(file, conf)
		default:
			err = sonic.Unmarshal(file, conf)
		}
		if err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	conf.applyEnv(os.LookupEnv)
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup("OPENAI_API_KEY"); ok && v != "" {
		c.Provider.APIKey = v
	}
	if v, ok := lookup("OPENAI_BASE_URL"); ok && v != "" {
		c.Provider.BaseURL = v
	}
	if v, ok := lookup("OPENAI_MODEL"); ok && v != "" {
		c.Provider.Model = v
	}
}

func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("store.driver must be memory or sqlite, got %q", c.Store.Driver)
	}
	if c.Store.Driver == "sqlite" && c.Store.Path == "" {
		return fmt.Errorf("store.path is required for sqlite")
	}
	switch c.Dialogue.TransitionRole {
	case "user", "system":
	default:
		return fmt.Errorf("dialogue.transition_role must be user or system, got %q", c.Dialogue.TransitionRole)
	}
	if c.Dialogue.MaxToolHops < 0 {
		return fmt.Errorf("dialogue.max_tool_hops must not be negative")
	}
	if c.Dialogue.ContextLimit < 0 {
		return fmt.Errorf("dialogue.context_limit must not be negative")
	}
	if tpl := c.Dialogue.TransitionTemplate; tpl != "" && strings.Count(tpl, "%s") != 2 {
		return fmt.Errorf("dialogue.transition_template must contain two %%s, got %q", tpl)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

func (c *ProviderConfig) String() string {
	return fmt.Sprintf("Provider{BaseURL:%q, Model:%q}", c.BaseURL, c.Model)
}
