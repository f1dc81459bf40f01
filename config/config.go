package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the chat service
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Search    SearchConfig    `mapstructure:"search"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"` // json or text
	TimeZone  string `mapstructure:"time_zone"`
}

func (g GeneralConfig) Normalize() GeneralConfig {
	g.LogLevel = strings.ToLower(strings.TrimSpace(g.LogLevel))
	if g.LogLevel == "" {
		g.LogLevel = "info"
	}
	g.LogFormat = strings.ToLower(strings.TrimSpace(g.LogFormat))
	if g.LogFormat == "" {
		g.LogFormat = "text"
	}
	if strings.TrimSpace(g.TimeZone) == "" {
		g.TimeZone = "America/New_York"
	}
	return g
}

func (g GeneralConfig) Validate() error {
	switch g.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("general.log_format must be json or text, got %q", g.LogFormat)
	}
	if _, err := time.LoadLocation(g.TimeZone); err != nil {
		return fmt.Errorf("general.time_zone: %w", err)
	}
	return nil
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Address            string        `mapstructure:"address"`
	MaxRequestDuration time.Duration `mapstructure:"max_request_duration"`
	AllowedOrigins     []string      `mapstructure:"allowed_origins"`
}

func (s ServerConfig) Normalize() ServerConfig {
	if strings.TrimSpace(s.Address) == "" {
		s.Address = ":8080"
	}
	if s.MaxRequestDuration <= 0 {
		s.MaxRequestDuration = 300 * time.Second
	}
	return s
}

// Hard bounds on the tunables below.
const (
	MaxSteps              = 6
	MaxResultsPerQuery    = 4
	MaxHighlightsPerURL   = 4
	MaxHighlightSentences = 3
	MinInterQueryDelay    = 200 * time.Millisecond
)

// LLMConfig selects the chat and planner models
type LLMConfig struct {
	Provider        string  `mapstructure:"provider"`
	APIKey          string  `mapstructure:"api_key"`
	BaseURL         string  `mapstructure:"base_url"`
	ChatModel       string  `mapstructure:"chat_model"`
	PlannerModel    string  `mapstructure:"planner_model"`
	MaxSteps        int     `mapstructure:"max_steps"`
	Temperature     float32 `mapstructure:"temperature"`
	SendReasoning   bool    `mapstructure:"send_reasoning"`
	TaggedReasoning bool    `mapstructure:"tagged_reasoning"`
}

func (l LLMConfig) Normalize() LLMConfig {
	if l.Provider == "" {
		l.Provider = "openai"
	}
	if l.APIKey == "" {
		l.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if l.ChatModel == "" {
		l.ChatModel = "gpt-4o"
	}
	if l.PlannerModel == "" {
		l.PlannerModel = l.ChatModel
	}
	if l.MaxSteps <= 0 {
		l.MaxSteps = 6
	}
	return l
}

func (l LLMConfig) Validate() error {
	if l.Temperature < 0 || l.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be within [0, 2], got %v", l.Temperature)
	}
	if l.MaxSteps > MaxSteps {
		return fmt.Errorf("llm.max_steps cannot exceed %d, got %d", MaxSteps, l.MaxSteps)
	}
	return nil
}

// SearchConfig configures the web search backend
type SearchConfig struct {
	Provider           string        `mapstructure:"provider"` // exa, brave or serper
	ExaAPIKey          string        `mapstructure:"exa_api_key"`
	ExaBaseURL         string        `mapstructure:"exa_base_url"`
	BraveAPIKey        string        `mapstructure:"brave_api_key"`
	BraveBaseURL       string        `mapstructure:"brave_base_url"`
	SerperAPIKey       string        `mapstructure:"serper_api_key"`
	SerperBaseURL      string        `mapstructure:"serper_base_url"`
	NumResults         int           `mapstructure:"num_results"`
	HighlightsPerURL   int           `mapstructure:"highlights_per_url"`
	HighlightSentences int           `mapstructure:"highlight_sentences"`
	InterQueryDelay    time.Duration `mapstructure:"inter_query_delay"`
	CallTimeout        time.Duration `mapstructure:"call_timeout"` // zero disables
	HTTPTimeout        time.Duration `mapstructure:"http_timeout"`
}

func (s SearchConfig) Normalize() SearchConfig {
	s.Provider = strings.ToLower(strings.TrimSpace(s.Provider))
	if s.Provider == "" {
		s.Provider = "exa"
	}
	if s.ExaAPIKey == "" {
		s.ExaAPIKey = os.Getenv("EXA_API_KEY")
	}
	if s.BraveAPIKey == "" {
		s.BraveAPIKey = os.Getenv("BRAVE_API_KEY")
	}
	if s.SerperAPIKey == "" {
		s.SerperAPIKey = os.Getenv("SERPER_API_KEY")
	}
	if s.NumResults <= 0 {
		s.NumResults = 4
	}
	if s.HighlightsPerURL <= 0 {
		s.HighlightsPerURL = 4
	}
	if s.HighlightSentences <= 0 {
		s.HighlightSentences = 3
	}
	if s.HTTPTimeout <= 0 {
		s.HTTPTimeout = 30 * time.Second
	}
	return s
}

func (s SearchConfig) Validate() error {
	switch s.Provider {
	case "exa", "brave", "serper":
	default:
		return fmt.Errorf("search.provider must be exa, brave or serper, got %q", s.Provider)
	}
	if s.CallTimeout < 0 {
		return fmt.Errorf("search.call_timeout cannot be negative")
	}
	if s.NumResults > MaxResultsPerQuery {
		return fmt.Errorf("search.num_results cannot exceed %d, got %d", MaxResultsPerQuery, s.NumResults)
	}
	if s.HighlightsPerURL > MaxHighlightsPerURL {
		return fmt.Errorf("search.highlights_per_url cannot exceed %d, got %d", MaxHighlightsPerURL, s.HighlightsPerURL)
	}
	if s.HighlightSentences > MaxHighlightSentences {
		return fmt.Errorf("search.highlight_sentences cannot exceed %d, got %d", MaxHighlightSentences, s.HighlightSentences)
	}
	if s.InterQueryDelay < MinInterQueryDelay {
		return fmt.Errorf("search.inter_query_delay must be at least %s, got %s", MinInterQueryDelay, s.InterQueryDelay)
	}
	return nil
}

// APIKey returns the key for the selected provider.
func (s SearchConfig) APIKey() string {
	switch s.Provider {
	case "brave":
		return s.BraveAPIKey
	case "serper":
		return s.SerperAPIKey
	default:
		return s.ExaAPIKey
	}
}

// BaseURL returns the base URL override for the selected provider.
func (s SearchConfig) BaseURL() string {
	switch s.Provider {
	case "brave":
		return s.BraveBaseURL
	case "serper":
		return s.SerperBaseURL
	default:
		return s.ExaBaseURL
	}
}

// TelemetryConfig contains tracing settings
type TelemetryConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	ServiceName  string `mapstructure:"service_name"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

func (t TelemetryConfig) Normalize() TelemetryConfig {
	if t.ServiceName == "" {
		t.ServiceName = "searchchat"
	}
	if t.OTLPEndpoint == "" {
		t.OTLPEndpoint = "localhost:4317"
	}
	return t
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("general.log_level", "info")
	v.SetDefault("general.log_format", "text")
	v.SetDefault("general.time_zone", "America/New_York")
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.max_request_duration", "300s")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.chat_model", "gpt-4o")
	v.SetDefault("llm.planner_model", "")
	v.SetDefault("llm.max_steps", 6)
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.send_reasoning", true)
	v.SetDefault("llm.tagged_reasoning", false)
	v.SetDefault("search.provider", "exa")
	v.SetDefault("search.exa_api_key", "")
	v.SetDefault("search.exa_base_url", "")
	v.SetDefault("search.brave_api_key", "")
	v.SetDefault("search.brave_base_url", "")
	v.SetDefault("search.serper_api_key", "")
	v.SetDefault("search.serper_base_url", "")
	v.SetDefault("search.num_results", 4)
	v.SetDefault("search.highlights_per_url", 4)
	v.SetDefault("search.highlight_sentences", 3)
	v.SetDefault("search.inter_query_delay", "200ms")
	v.SetDefault("search.call_timeout", "0s")
	v.SetDefault("search.http_timeout", "30s")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "searchchat")
	v.SetDefault("telemetry.otlp_endpoint", "localhost:4317")
}

// LoadConfig reads config.json from the usual locations (or path when set),
// applies SEARCHCHAT_* environment overrides and validates the result. A
// missing config file is fine when path is empty.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config") // name of config file (without extension)
	v.SetConfigType("json")   // REQUIRED if the config file does not have the extension in the name
	setDefaults(v)

	if path == "" {
		v.AddConfigPath("./config") // path to look for the config file in
		v.AddConfigPath(".")        // optionally look for config in the working directory
		if exe, err := os.Executable(); err == nil {
			exeDir := filepath.Dir(exe)
			v.AddConfigPath(exeDir)                                // bin/
			v.AddConfigPath(filepath.Join(exeDir, "..", "config")) // repo root/config
		}
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("SEARCHCHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv() // read in environment variables that match (SEARCHCHAT_*)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.General = cfg.General.Normalize()
	cfg.Server = cfg.Server.Normalize()
	cfg.LLM = cfg.LLM.Normalize()
	cfg.Search = cfg.Search.Normalize()
	cfg.Telemetry = cfg.Telemetry.Normalize()

	if err := cfg.General.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.LLM.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Search.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
