package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the sitesearch API configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	LLM      LLMConfig      `yaml:"llm"`
	Search   SearchConfig   `yaml:"search"`
	Auth     AuthConfig     `yaml:"auth"`
	Prompts  PromptsConfig  `yaml:"prompts"`
	Audit    AuditConfig    `yaml:"audit"`
	Storage  StorageConfig  `yaml:"storage"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds content index connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// LLMConfig holds model provider settings.
type LLMConfig struct {
	Provider          string                    `yaml:"provider"` // openai, gemini
	Providers         map[string]ProviderConfig `yaml:"providers"`
	RequestTimeoutSec int                       `yaml:"request_timeout_sec"`
}

// ProviderConfig holds per-provider credentials and model names.
type ProviderConfig struct {
	APIKey          string `yaml:"api_key"`
	BaseURL         string `yaml:"base_url"`
	ExtractionModel string `yaml:"extraction_model"`
	GenerativeModel string `yaml:"generative_model"`
}

// SearchConfig holds content retrieval settings.
type SearchConfig struct {
	PostTypes          []string `yaml:"post_types"`
	MaxContentResults  int      `yaml:"max_content_results"`
	MaxResults         int      `yaml:"max_results"`
	IncludeMetadata    bool     `yaml:"include_metadata"`
	MetadataFieldAllow []string `yaml:"metadata_field_allow"`
}

// AuthConfig holds request-origin policy settings.
type AuthConfig struct {
	SiteDomain       string   `yaml:"site_domain"`
	NonceSecret      string   `yaml:"nonce_secret"`
	NonceTTLSec      int      `yaml:"nonce_ttl_sec"`
	IntegrationToken string   `yaml:"integration_token"`
	RestrictOrigins  bool     `yaml:"restrict_origins"`
	TrustedOrigins   []string `yaml:"trusted_origins"`
}

// PromptsConfig holds optional startup prompt overrides. Empty values leave
// the stored override (or built-in default) untouched.
type PromptsConfig struct {
	ExtractTerm string `yaml:"extract_term"`
	Summarize   string `yaml:"summarize"`
	Answer      string `yaml:"answer"`
}

// AuditConfig holds audit trail settings.
type AuditConfig struct {
	Enabled   bool   `yaml:"enabled"`
	StreamKey string `yaml:"stream_key"`
	MaxLen    int64  `yaml:"max_len"`
}

// StorageConfig holds key naming settings.
type StorageConfig struct {
	KeyPrefix string `yaml:"key_prefix"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
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
		// Two sequential model calls fit inside one response window.
		c.HTTP.WriteTimeoutSec = 60
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = "openai"
	}
	if c.LLM.RequestTimeoutSec <= 0 {
		c.LLM.RequestTimeoutSec = 20
	}
	if len(c.Search.PostTypes) == 0 {
		c.Search.PostTypes = []string{"post", "page"}
	}
	if c.Search.MaxContentResults <= 0 {
		c.Search.MaxContentResults = 5
	}
	if c.Search.MaxResults <= 0 {
		c.Search.MaxResults = 20
	}
	if c.Auth.NonceTTLSec <= 0 {
		c.Auth.NonceTTLSec = 900
	}
	if c.Audit.StreamKey == "" {
		c.Audit.StreamKey = "audit"
	}
	if c.Audit.MaxLen <= 0 {
		c.Audit.MaxLen = 10000
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "sitesearch:"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	switch c.LLM.Provider {
	case "openai", "gemini":
		// ok
	default:
		return fmt.Errorf("llm.provider must be \"openai\" or \"gemini\", got %q", c.LLM.Provider)
	}
	if c.Auth.SiteDomain == "" {
		return fmt.Errorf("auth.site_domain is required")
	}
	if c.Auth.NonceSecret == "" {
		return fmt.Errorf("auth.nonce_secret is required")
	}
	return nil
}

// ActiveProvider returns the settings for the selected model provider.
func (c *Config) ActiveProvider() ProviderConfig {
	return c.LLM.Providers[c.LLM.Provider]
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
