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

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the course advisor configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Cache     CacheConfig     `yaml:"cache"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Auth      AuthConfig      `yaml:"auth"`
	Index     IndexConfig     `yaml:"index"`
	Corpus    CorpusConfig    `yaml:"corpus"`
	Guard     GuardConfig     `yaml:"guard"`
	Advisor   AdvisorConfig   `yaml:"advisor"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds login settings.
type AuthConfig struct {
	SessionTTLMin int          `yaml:"session_ttl_min"`
	Users         []UserConfig `yaml:"users"`
}

// UserConfig is one provisioned account. Hash is hex(sha256(salt + password)).
type UserConfig struct {
	Username string `yaml:"username"`
	Role     string `yaml:"role"` // Admin | User
	Salt     string `yaml:"salt"`
	Hash     string `yaml:"hash"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int  `yaml:"port"`
	ReadTimeoutSec  int  `yaml:"read_timeout_sec"`
	WriteTimeoutSec int  `yaml:"write_timeout_sec"`
	ShutdownSec     int  `yaml:"shutdown_timeout_sec"`
	MaxUploadMB     int  `yaml:"max_upload_mb"`
	SecureCookies   bool `yaml:"secure_cookies"`
}

// CacheConfig holds the optional Redis connection used for the embedding cache
// and budget counters. Empty Addrs disables both.
type CacheConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	KeyPrefix        string   `yaml:"key_prefix"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// Enabled reports whether a cache server is configured.
func (c CacheConfig) Enabled() bool { return len(c.Addrs) > 0 }

// IndexConfig holds index location and chunking settings.
type IndexConfig struct {
	Path         string `yaml:"path"`
	ChunkSize    int    `yaml:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap"`
	TopK         int    `yaml:"top_k"`
}

// CorpusConfig holds archive ingestion limits.
type CorpusConfig struct {
	MaxFileMB  int      `yaml:"max_file_mb"`
	Extensions []string `yaml:"extensions"`
	TempDir    string   `yaml:"temp_dir"` // extraction area; empty uses the OS temp dir
}

// PatternConfig is one named entry of a guard pattern table (Go regexp syntax).
type PatternConfig struct {
	Name    string `yaml:"name"`
	Pattern string `yaml:"pattern"`
}

// GuardConfig holds the input/output gate tables. Empty tables fall back to the built-in ones.
type GuardConfig struct {
	Warning         string          `yaml:"warning"`
	RedactionMarker string          `yaml:"redaction_marker"`
	InputPatterns   []PatternConfig `yaml:"input_patterns"`
	OutputPatterns  []PatternConfig `yaml:"output_patterns"`
}

// AdvisorConfig holds the instruction template. Empty uses the built-in template.
type AdvisorConfig struct {
	PromptTemplate string `yaml:"prompt_template"`
}

// LLMConfig holds the chat completion provider settings.
type LLMConfig struct {
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	TimeoutSec  int     `yaml:"timeout_sec"`
}

// EmbeddingConfig holds embedding settings.
type EmbeddingConfig struct {
	Providers   map[string]ProviderConfig   `yaml:"providers"`
	Vectorizers map[string]VectorizerConfig `yaml:"vectorizers"`
}

// BudgetConfig holds token budget settings.
type BudgetConfig struct {
	DailyTokenLimit   int64  `yaml:"daily_token_limit"`   // 0 = unlimited
	MonthlyTokenLimit int64  `yaml:"monthly_token_limit"` // 0 = unlimited
	Action            string `yaml:"action"`              // "reject" | "warn" (default)
}

// ProviderConfig holds embedding provider settings.
type ProviderConfig struct {
	APIKey  string       `yaml:"api_key"`
	BaseURL string       `yaml:"base_url"`
	Budget  BudgetConfig `yaml:"budget"`
}

// VectorizerConfig holds vectorizer settings.
type VectorizerConfig struct {
	Provider            string `yaml:"provider"`
	Model               string `yaml:"model"`
	Dimensions          int    `yaml:"dimensions"`
	DocumentInstruction string `yaml:"document_instruction"`
	QueryInstruction    string `yaml:"query_instruction"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
// A .env file (or ENV_FILE) is loaded first so its values can be substituted.
func Load(env string) (Config, error) {
	if err := loadDotEnv(); err != nil {
		return Config{}, err
	}
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit path.
func LoadFile(configPath string) (Config, error) {
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

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// loadDotEnv loads ENV_FILE or ./.env without overriding variables already set.
// A missing default file is not an error; a missing explicit ENV_FILE is.
func loadDotEnv() error {
	path := os.Getenv("ENV_FILE")
	explicit := path != ""
	if !explicit {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 30
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		// ingestion embeds the whole corpus inside the request
		c.HTTP.WriteTimeoutSec = 300
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.HTTP.MaxUploadMB <= 0 {
		c.HTTP.MaxUploadMB = 50
	}
	if c.Cache.ReadinessTimeout <= 0 {
		c.Cache.ReadinessTimeout = 10
	}
	if c.Auth.SessionTTLMin <= 0 {
		c.Auth.SessionTTLMin = 8 * 60
	}
	if c.Index.Path == "" {
		c.Index.Path = filepath.Join("data", "course_index.db")
	}
	if c.Index.ChunkSize <= 0 {
		c.Index.ChunkSize = 1000
	}
	if c.Index.ChunkOverlap < 0 {
		c.Index.ChunkOverlap = 0
	}
	if c.Index.TopK <= 0 {
		c.Index.TopK = 5
	}
	if c.Corpus.MaxFileMB <= 0 {
		c.Corpus.MaxFileMB = 20
	}
	if len(c.Corpus.Extensions) == 0 {
		c.Corpus.Extensions = []string{".csv", ".tsv", ".txt", ".xlsx"}
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "gpt-4o-mini"
	}
	if c.LLM.TimeoutSec <= 0 {
		c.LLM.TimeoutSec = 60
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Index.ChunkOverlap >= c.Index.ChunkSize {
		return fmt.Errorf("index.chunk_overlap must be smaller than index.chunk_size, got %d >= %d",
			c.Index.ChunkOverlap, c.Index.ChunkSize)
	}
	if len(c.Embedding.Vectorizers) == 0 {
		return fmt.Errorf("embedding.vectorizers requires at least one entry")
	}
	for name, v := range c.Embedding.Vectorizers {
		if _, ok := c.Embedding.Providers[v.Provider]; !ok {
			return fmt.Errorf("embedding.vectorizers.%s.provider %q is not defined in embedding.providers",
				name, v.Provider)
		}
	}
	for name, p := range c.Embedding.Providers {
		switch p.Budget.Action {
		case "", "warn", "reject":
			// ok
		default:
			return fmt.Errorf(
				"embedding.providers.%s.budget.action must be \"warn\" or \"reject\", got %q",
				name, p.Budget.Action,
			)
		}
	}
	for i, u := range c.Auth.Users {
		switch strings.ToLower(u.Role) {
		case "admin", "user":
		default:
			return fmt.Errorf("auth.users[%d].role must be \"Admin\" or \"User\", got %q", i, u.Role)
		}
		if u.Username == "" || u.Hash == "" {
			return fmt.Errorf("auth.users[%d] requires username and hash", i)
		}
	}
	for i, p := range append(append([]PatternConfig{}, c.Guard.InputPatterns...), c.Guard.OutputPatterns...) {
		if _, err := regexp.Compile(p.Pattern); err != nil {
			return fmt.Errorf("guard pattern %d (%s): %w", i, p.Name, err)
		}
	}
	return nil
}

// Vectorizer returns the vectorizer to use and its provider. With several entries the
// lexically first name wins so the choice is stable across restarts.
func (c *Config) Vectorizer() (string, VectorizerConfig, ProviderConfig) {
	var first string
	for name := range c.Embedding.Vectorizers {
		if first == "" || name < first {
			first = name
		}
	}
	v := c.Embedding.Vectorizers[first]
	return v.Provider, v, c.Embedding.Providers[v.Provider]
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
