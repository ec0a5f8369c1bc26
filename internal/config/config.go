package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the venuefinder configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Provider ProviderConfig `yaml:"provider"`
	LLM      LLMConfig      `yaml:"llm"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Session  SessionConfig  `yaml:"session"`
	Cache    CacheConfig    `yaml:"cache"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
	File  string `yaml:"file"`  // optional rotated log file, in addition to stderr
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // valkey, redis, memory (default: valkey)
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	Standalone       bool     `yaml:"standalone"` // skip cluster discovery
}

// ProviderConfig holds place provider settings.
type ProviderConfig struct {
	Kind        string `yaml:"kind"` // google, foursquare (default: google)
	APIKey      string `yaml:"api_key"`
	BaseURL     string `yaml:"base_url"`
	TimeoutSec  int    `yaml:"timeout_sec"`
	MaxAttempts int    `yaml:"max_attempts"`
	BackoffMs   int    `yaml:"backoff_ms"`
}

// LLMConfig holds response composer settings. An empty api_key selects the
// template composer.
type LLMConfig struct {
	APIKey       string       `yaml:"api_key"`
	BaseURL      string       `yaml:"base_url"`
	Model        string       `yaml:"model"`
	Temperature  float32      `yaml:"temperature"`
	MaxTokens    int          `yaml:"max_tokens"`
	HistoryTurns int          `yaml:"history_turns"`
	Budget       BudgetConfig `yaml:"budget"`
}

// BudgetConfig caps language model token spend. Zero limits are unlimited.
type BudgetConfig struct {
	DailyTokenLimit   int64  `yaml:"daily_token_limit"`
	MonthlyTokenLimit int64  `yaml:"monthly_token_limit"`
	Action            string `yaml:"action"` // warn | reject
}

// Enabled reports whether any token limit is set.
func (b BudgetConfig) Enabled() bool {
	return b.DailyTokenLimit > 0 || b.MonthlyTokenLimit > 0
}

// WeightsConfig holds relevance score weights.
type WeightsConfig struct {
	Text      float64 `yaml:"text"`
	Rating    float64 `yaml:"rating"`
	Proximity float64 `yaml:"proximity"`
}

// PipelineConfig holds per-turn pipeline settings.
type PipelineConfig struct {
	ResultLimit       int           `yaml:"result_limit"`
	FetchLimit        int           `yaml:"fetch_limit"`
	EnrichTopN        int           `yaml:"enrich_top_n"`
	EnrichConcurrency int           `yaml:"enrich_concurrency"`
	TimeoutSec        int           `yaml:"timeout_sec"`
	Similarity        float64       `yaml:"similarity"`
	ToleranceMiles    float64       `yaml:"tolerance_miles"`
	CacheMaxAgeSec    *int          `yaml:"cache_max_age_sec"` // default: 900, 0 = no age limit
	Weights           WeightsConfig `yaml:"weights"`
}

// SessionConfig holds session lifecycle settings.
type SessionConfig struct {
	IdleTTLSec      int   `yaml:"idle_ttl_sec"`
	LockTimeoutSec  int   `yaml:"lock_timeout_sec"`
	CreateOnUnknown *bool `yaml:"create_on_unknown"` // default: true
}

// CacheConfig holds place detail/geocode cache settings.
type CacheConfig struct {
	PlaceTTLSec int `yaml:"place_ttl_sec"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
// A .env file in the working directory, if present, is loaded first.
func Load(env string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		// A turn may run up to pipeline.timeout_sec.
		c.HTTP.WriteTimeoutSec = 40
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "valkey"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}

	if c.Provider.Kind == "" {
		c.Provider.Kind = "google"
	}
	if c.Provider.TimeoutSec <= 0 {
		c.Provider.TimeoutSec = 10
	}
	if c.Provider.MaxAttempts <= 0 {
		c.Provider.MaxAttempts = 3
	}
	if c.Provider.BackoffMs <= 0 {
		c.Provider.BackoffMs = 200
	}

	if c.LLM.Model == "" {
		c.LLM.Model = "gpt-4o-mini"
	}
	if c.LLM.Temperature <= 0 {
		c.LLM.Temperature = 0.3
	}
	if c.LLM.MaxTokens <= 0 {
		c.LLM.MaxTokens = 400
	}
	if c.LLM.HistoryTurns <= 0 {
		c.LLM.HistoryTurns = 10
	}
	if c.LLM.Budget.Action == "" {
		c.LLM.Budget.Action = "warn"
	}

	p := &c.Pipeline
	if p.ResultLimit <= 0 {
		p.ResultLimit = 5
	}
	if p.FetchLimit <= 0 {
		p.FetchLimit = 20
	}
	if p.EnrichTopN <= 0 {
		p.EnrichTopN = 8
	}
	if p.EnrichConcurrency <= 0 {
		p.EnrichConcurrency = 4
	}
	if p.TimeoutSec <= 0 {
		p.TimeoutSec = 30
	}
	if p.Similarity <= 0 {
		p.Similarity = 0.5
	}
	if p.ToleranceMiles <= 0 {
		p.ToleranceMiles = 0.1
	}
	if p.CacheMaxAgeSec == nil {
		v := 900
		p.CacheMaxAgeSec = &v
	}
	if p.Weights == (WeightsConfig{}) {
		p.Weights = WeightsConfig{Text: 0.5, Rating: 0.3, Proximity: 0.2}
	}

	if c.Session.IdleTTLSec <= 0 {
		c.Session.IdleTTLSec = 3600
	}
	if c.Session.LockTimeoutSec <= 0 {
		c.Session.LockTimeoutSec = 5
	}
	if c.Session.CreateOnUnknown == nil {
		v := true
		c.Session.CreateOnUnknown = &v
	}

	if c.Cache.PlaceTTLSec <= 0 {
		c.Cache.PlaceTTLSec = 86400
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Database.Driver {
	case "valkey", "redis":
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required")
		}
	case "memory":
		// ok
	default:
		return fmt.Errorf("database.driver must be \"valkey\", \"redis\" or \"memory\", got %q", c.Database.Driver)
	}
	switch c.Provider.Kind {
	case "google", "foursquare":
		// ok
	default:
		return fmt.Errorf("provider.kind must be \"google\" or \"foursquare\", got %q", c.Provider.Kind)
	}
	if c.Provider.APIKey == "" {
		return fmt.Errorf("provider.api_key is required")
	}
	switch c.LLM.Budget.Action {
	case "", "warn", "reject":
		// ok
	default:
		return fmt.Errorf("llm.budget.action must be \"warn\" or \"reject\", got %q", c.LLM.Budget.Action)
	}
	if c.LLM.Budget.DailyTokenLimit < 0 || c.LLM.Budget.MonthlyTokenLimit < 0 {
		return fmt.Errorf("llm.budget limits must be non-negative")
	}
	if c.Pipeline.CacheMaxAgeSec != nil && *c.Pipeline.CacheMaxAgeSec < 0 {
		return fmt.Errorf("pipeline.cache_max_age_sec must be non-negative, got %d", *c.Pipeline.CacheMaxAgeSec)
	}
	if c.Pipeline.Similarity > 1 {
		return fmt.Errorf("pipeline.similarity must be in (0, 1], got %g", c.Pipeline.Similarity)
	}
	w := c.Pipeline.Weights
	if w.Text < 0 || w.Rating < 0 || w.Proximity < 0 {
		return fmt.Errorf("pipeline.weights must be non-negative")
	}
	if c.Session.IdleTTLSec <= c.Session.LockTimeoutSec+c.Pipeline.TimeoutSec {
		return fmt.Errorf(
			"session.idle_ttl_sec (%d) must exceed session.lock_timeout_sec + pipeline.timeout_sec (%d)",
			c.Session.IdleTTLSec, c.Session.LockTimeoutSec+c.Pipeline.TimeoutSec,
		)
	}
	return nil
}

// PipelineTimeout returns the per-turn deadline.
func (c *Config) PipelineTimeout() time.Duration {
	return time.Duration(c.Pipeline.TimeoutSec) * time.Second
}

// IdleTTL returns the session idle expiry.
func (c *Config) IdleTTL() time.Duration {
	return time.Duration(c.Session.IdleTTLSec) * time.Second
}

// CandidateMaxAge returns how long fetched candidates may be reused. Zero
// disables expiry.
func (c *Config) CandidateMaxAge() time.Duration {
	if c.Pipeline.CacheMaxAgeSec == nil {
		return 0
	}
	return time.Duration(*c.Pipeline.CacheMaxAgeSec) * time.Second
}

// LockTimeout returns the per-session lock wait.
func (c *Config) LockTimeout() time.Duration {
	return time.Duration(c.Session.LockTimeoutSec) * time.Second
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
