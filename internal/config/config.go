// Package config resolves settings from defaults, an optional YAML file and
// the environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	RecipeAPIURL string        `yaml:"recipe_api_url"`
	HTTPTimeout  time.Duration `yaml:"http_timeout"`
	SessionFile  string        `yaml:"session_file"`
	LogFile      string        `yaml:"log_file"`

	Supabase SupabaseConfig `yaml:"supabase"`
	Upload   UploadConfig   `yaml:"upload"`
	AI       AIConfig       `yaml:"ai"`
}

type SupabaseConfig struct {
	URL     string `yaml:"url"`
	AnonKey string `yaml:"anon_key"`
	Bucket  string `yaml:"bucket"`
}

type UploadConfig struct {
	Concurrency int `yaml:"concurrency"`
}

type AIConfig struct {
	Provider     string `yaml:"provider"`
	OpenAIAPIKey string `yaml:"openai_api_key"`
	OpenAIModel  string `yaml:"openai_model"`
	OllamaURL    string `yaml:"ollama_url"`
	OllamaModel  string `yaml:"ollama_model"`
	GeminiAPIKey string `yaml:"gemini_api_key"`
	GeminiModel  string `yaml:"gemini_model"`
}

// Dir is where larder keeps its config and session files.
func Dir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "larder")
}

// DefaultPath is the config file read when LARDER_CONFIG is unset.
func DefaultPath() string {
	return getEnv("LARDER_CONFIG", filepath.Join(Dir(), "config.yaml"))
}

func Defaults() *Config {
	return &Config{
		RecipeAPIURL: "http://localhost:3001",
		HTTPTimeout:  30 * time.Second,
		SessionFile:  filepath.Join(Dir(), "session.yaml"),
		Supabase:     SupabaseConfig{Bucket: "recipe-images"},
		Upload:       UploadConfig{Concurrency: 4},
		AI: AIConfig{
			OpenAIModel: "gpt-4o",
			OllamaURL:   "http://localhost:11434",
			OllamaModel: "llava",
			GeminiModel: "gemini-1.5-flash",
		},
	}
}

// Load reads the YAML file at path, if it exists, over the defaults and
// then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist) || path == "":
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	if cfg.Upload.Concurrency < 1 {
		cfg.Upload.Concurrency = 1
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.RecipeAPIURL = getEnv("RECIPE_API_URL", c.RecipeAPIURL)
	c.HTTPTimeout = getEnvAsDuration("LARDER_HTTP_TIMEOUT", c.HTTPTimeout)
	c.SessionFile = getEnv("LARDER_SESSION_FILE", c.SessionFile)
	c.LogFile = getEnv("LARDER_LOG_FILE", c.LogFile)

	c.Supabase.URL = getEnv("SUPABASE_URL", c.Supabase.URL)
	c.Supabase.AnonKey = getEnv("SUPABASE_ANON_KEY", c.Supabase.AnonKey)
	c.Supabase.Bucket = getEnv("SUPABASE_BUCKET", c.Supabase.Bucket)

	c.Upload.Concurrency = getEnvAsInt("LARDER_UPLOAD_CONCURRENCY", c.Upload.Concurrency)

	c.AI.Provider = getEnv("LARDER_PROVIDER", c.AI.Provider)
	c.AI.OpenAIAPIKey = getEnv("OPENAI_API_KEY", c.AI.OpenAIAPIKey)
	c.AI.OpenAIModel = getEnv("OPENAI_MODEL", c.AI.OpenAIModel)
	c.AI.OllamaURL = getEnv("OLLAMA_URL", c.AI.OllamaURL)
	c.AI.OllamaModel = getEnv("OLLAMA_MODEL", c.AI.OllamaModel)
	c.AI.GeminiAPIKey = getEnv("GEMINI_API_KEY", c.AI.GeminiAPIKey)
	c.AI.GeminiModel = getEnv("GEMINI_MODEL", c.AI.GeminiModel)
}

// HasSupabase reports whether images can go to Supabase Storage.
func (c *Config) HasSupabase() bool {
	return c.Supabase.URL != "" && c.Supabase.AnonKey != ""
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
