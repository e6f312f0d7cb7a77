/*-------------------------------------------------------------------------
 *
 * DB Query Gateway
 *
 * Copyright (c) 2026, the DB Query Gateway authors
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the complete gateway configuration
type Config struct {
	// HTTP server configuration
	HTTP HTTPConfig `yaml:"http"`

	// Registry storage configuration
	Store StoreConfig `yaml:"store"`

	// LLM configuration (for natural language SQL generation)
	LLM LLMConfig `yaml:"llm"`

	// Query execution configuration
	Query QueryConfig `yaml:"query"`
}

// HTTPConfig holds HTTP server settings
type HTTPConfig struct {
	Address string `yaml:"address"`
}

// StoreConfig holds registry database settings
type StoreConfig struct {
	DataDir string `yaml:"data_dir"` // Directory holding the SQLite registry (default: ~/.dbquery-gateway)
}

// LLMConfig holds model provider settings for SQL generation
type LLMConfig struct {
	Provider   string `yaml:"provider"`     // "anthropic", "openai", or "ollama"
	Model      string `yaml:"model"`        // Provider-specific model name
	APIKey     string `yaml:"api_key"`      // API key (direct - discouraged, use api_key_file or env var)
	APIKeyFile string `yaml:"api_key_file"` // Path to file containing the API key
	BaseURL    string `yaml:"base_url"`     // Override the provider endpoint; required for Ollama
}

// QueryConfig holds query execution settings
type QueryConfig struct {
	ConnectTimeoutSeconds int `yaml:"connect_timeout_seconds"` // Per-operation data connection timeout (default: 10)
}

// CLIFlags represents command line flag values and whether they were
// explicitly set
type CLIFlags struct {
	ConfigFileSet bool
	ConfigFile    string

	HTTPAddr    string
	HTTPAddrSet bool

	DataDir    string
	DataDirSet bool

	LLMProvider    string
	LLMProviderSet bool
	LLMModel       string
	LLMModelSet    bool
}

// LoadConfig loads configuration with proper priority:
// 1. Command line flags (highest priority)
// 2. Environment variables
// 3. Configuration file
// 4. Hard-coded defaults (lowest priority)
func LoadConfig(configPath string, cliFlags CLIFlags) (*Config, error) {
	cfg := defaultConfig()

	if configPath != "" {
		fileCfg, err := loadConfigFile(configPath)
		if err != nil {
			// If file was explicitly specified, error out
			if cliFlags.ConfigFileSet {
				return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
			}
			// Otherwise just use defaults (file may not exist and that's ok)
		} else {
			mergeConfig(cfg, fileCfg)
		}
	}

	applyEnvironmentVariables(cfg)
	applyCLIFlags(cfg, cliFlags)

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns configuration with hard-coded defaults
func defaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Address: ":8080",
		},
		Store: StoreConfig{
			DataDir: defaultDataDir(),
		},
		LLM: LLMConfig{
			Provider: "anthropic",
			Model:    "claude-sonnet-4-5",
			BaseURL:  "",
		},
		Query: QueryConfig{
			ConnectTimeoutSeconds: 10,
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".dbquery-gateway"
	}
	return filepath.Join(home, ".dbquery-gateway")
}

// loadConfigFile loads configuration from a YAML file
func loadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	return &cfg, nil
}

// mergeConfig merges source config into dest, only overriding non-zero
// values
func mergeConfig(dest, src *Config) {
	if src.HTTP.Address != "" {
		dest.HTTP.Address = src.HTTP.Address
	}
	if src.Store.DataDir != "" {
		dest.Store.DataDir = src.Store.DataDir
	}
	if src.LLM.Provider != "" {
		dest.LLM.Provider = src.LLM.Provider
	}
	if src.LLM.Model != "" {
		dest.LLM.Model = src.LLM.Model
	}
	if src.LLM.APIKey != "" {
		dest.LLM.APIKey = src.LLM.APIKey
	}
	if src.LLM.APIKeyFile != "" {
		dest.LLM.APIKeyFile = src.LLM.APIKeyFile
	}
	if src.LLM.BaseURL != "" {
		dest.LLM.BaseURL = src.LLM.BaseURL
	}
	if src.Query.ConnectTimeoutSeconds != 0 {
		dest.Query.ConnectTimeoutSeconds = src.Query.ConnectTimeoutSeconds
	}
}

// setStringFromEnv sets a string config value from an environment variable
// if it exists
func setStringFromEnv(dest *string, key string) {
	if val := os.Getenv(key); val != "" {
		*dest = val
	}
}

// setStringFromEnvWithFallback checks multiple environment variable names
// in priority order
func setStringFromEnvWithFallback(dest *string, keys ...string) {
	for _, key := range keys {
		if val := os.Getenv(key); val != "" {
			*dest = val
			return
		}
	}
}

// setIntFromEnv sets an integer config value from an environment variable
// if it exists
func setIntFromEnv(dest *int, key string) {
	if val := os.Getenv(key); val != "" {
		var intVal int
		if _, err := fmt.Sscanf(val, "%d", &intVal); err == nil {
			*dest = intVal
		}
	}
}

// applyEnvironmentVariables overrides config with environment variables.
// All variables use the DBQUERY_ prefix to avoid collisions.
func applyEnvironmentVariables(cfg *Config) {
	setStringFromEnv(&cfg.HTTP.Address, "DBQUERY_HTTP_ADDRESS")
	setStringFromEnv(&cfg.Store.DataDir, "DBQUERY_DATA_DIR")

	setStringFromEnv(&cfg.LLM.Provider, "DBQUERY_LLM_PROVIDER")
	setStringFromEnv(&cfg.LLM.Model, "DBQUERY_LLM_MODEL")
	setStringFromEnv(&cfg.LLM.BaseURL, "DBQUERY_LLM_BASE_URL")

	// API key loading priority: env vars > api_key_file > direct config value
	setStringFromEnvWithFallback(&cfg.LLM.APIKey,
		"DBQUERY_LLM_API_KEY", "ANTHROPIC_API_KEY", "OPENAI_API_KEY")
	if cfg.LLM.APIKey == "" && cfg.LLM.APIKeyFile != "" {
		if key, err := readAPIKeyFromFile(cfg.LLM.APIKeyFile); err == nil && key != "" {
			cfg.LLM.APIKey = key
		}
		// Errors are silently ignored - the file may not exist and that's ok
	}

	setIntFromEnv(&cfg.Query.ConnectTimeoutSeconds, "DBQUERY_CONNECT_TIMEOUT_SECONDS")
}

// applyCLIFlags overrides config with CLI flags if they were explicitly set
func applyCLIFlags(cfg *Config, flags CLIFlags) {
	if flags.HTTPAddrSet {
		cfg.HTTP.Address = flags.HTTPAddr
	}
	if flags.DataDirSet {
		cfg.Store.DataDir = flags.DataDir
	}
	if flags.LLMProviderSet {
		cfg.LLM.Provider = flags.LLMProvider
	}
	if flags.LLMModelSet {
		cfg.LLM.Model = flags.LLMModel
	}
}

// validateConfig checks if the configuration is valid
func validateConfig(cfg *Config) error {
	if cfg.HTTP.Address == "" {
		return fmt.Errorf("http address is required")
	}

	switch cfg.LLM.Provider {
	case "anthropic", "openai", "ollama", "":
	default:
		return fmt.Errorf("unsupported llm provider %q (anthropic, openai, or ollama)", cfg.LLM.Provider)
	}

	if cfg.LLM.Provider == "ollama" && cfg.LLM.BaseURL == "" {
		return fmt.Errorf("llm base_url is required for the ollama provider")
	}

	if cfg.Query.ConnectTimeoutSeconds <= 0 {
		return fmt.Errorf("query connect_timeout_seconds must be positive")
	}

	return nil
}

// readAPIKeyFromFile reads an API key from a file, with ~ expanded to the
// home directory. A missing file returns empty, not an error.
func readAPIKeyFromFile(filePath string) (string, error) {
	if filePath == "" {
		return "", nil
	}

	if filePath[0] == '~' {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		filePath = filepath.Join(homeDir, filePath[1:])
	}

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return "", nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read API key file %s: %w", filePath, err)
	}

	return strings.TrimSpace(string(data)), nil
}

// GetDefaultConfigPath returns the default config file path.
// Searches /etc/dbquery-gateway/ first, then the binary directory.
func GetDefaultConfigPath(binaryPath string) string {
	systemPath := "/etc/dbquery-gateway/dbquery-gateway.yaml"
	if _, err := os.Stat(systemPath); err == nil {
		return systemPath
	}

	dir := filepath.Dir(binaryPath)
	return filepath.Join(dir, "dbquery-gateway.yaml")
}

// ConfigFileExists checks if a config file exists at the given path
func ConfigFileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
