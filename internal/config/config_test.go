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
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("", CLIFlags{})
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.HTTP.Address != ":8080" {
		t.Errorf("HTTP.Address = %q, want :8080", cfg.HTTP.Address)
	}
	if cfg.LLM.Provider != "anthropic" {
		t.Errorf("LLM.Provider = %q, want anthropic", cfg.LLM.Provider)
	}
	if cfg.Query.ConnectTimeoutSeconds != 10 {
		t.Errorf("ConnectTimeoutSeconds = %d, want 10", cfg.Query.ConnectTimeoutSeconds)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gateway.yaml")
	content := `
http:
  address: ":9090"
llm:
  provider: ollama
  model: llama3
  base_url: http://localhost:11434/v1
query:
  connect_timeout_seconds: 5
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadConfig(path, CLIFlags{ConfigFileSet: true, ConfigFile: path})
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.HTTP.Address != ":9090" {
		t.Errorf("HTTP.Address = %q, want :9090", cfg.HTTP.Address)
	}
	if cfg.LLM.Provider != "ollama" || cfg.LLM.Model != "llama3" {
		t.Errorf("LLM = %+v, want ollama/llama3", cfg.LLM)
	}
	if cfg.Query.ConnectTimeoutSeconds != 5 {
		t.Errorf("ConnectTimeoutSeconds = %d, want 5", cfg.Query.ConnectTimeoutSeconds)
	}
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.yaml")
	if _, err := LoadConfig(path, CLIFlags{ConfigFileSet: true, ConfigFile: path}); err == nil {
		t.Error("LoadConfig succeeded with explicitly specified missing file")
	}
}

func TestLoadConfigMissingImplicitFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.yaml")
	cfg, err := LoadConfig(path, CLIFlags{})
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.HTTP.Address != ":8080" {
		t.Errorf("HTTP.Address = %q, want default", cfg.HTTP.Address)
	}
}

func TestEnvironmentOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gateway.yaml")
	if err := os.WriteFile(path, []byte("http:\n  address: \":9090\"\n"), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	t.Setenv("DBQUERY_HTTP_ADDRESS", ":7070")

	cfg, err := LoadConfig(path, CLIFlags{})
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.HTTP.Address != ":7070" {
		t.Errorf("HTTP.Address = %q, want env override :7070", cfg.HTTP.Address)
	}
}

func TestCLIFlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("DBQUERY_HTTP_ADDRESS", ":7070")

	cfg, err := LoadConfig("", CLIFlags{HTTPAddr: ":6060", HTTPAddrSet: true})
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.HTTP.Address != ":6060" {
		t.Errorf("HTTP.Address = %q, want flag override :6060", cfg.HTTP.Address)
	}
}

func TestAPIKeyFromFile(t *testing.T) {
	dir := t.TempDir()
	keyPath := filepath.Join(dir, "api.key")
	if err := os.WriteFile(keyPath, []byte("sk-test-key\n"), 0600); err != nil {
		t.Fatalf("failed to write key file: %v", err)
	}

	configPath := filepath.Join(dir, "gateway.yaml")
	content := "llm:\n  api_key_file: " + keyPath + "\n"
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	// Clear any ambient keys so the file is the only source
	t.Setenv("DBQUERY_LLM_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")

	cfg, err := LoadConfig(configPath, CLIFlags{})
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.LLM.APIKey != "sk-test-key" {
		t.Errorf("LLM.APIKey = %q, want trimmed file contents", cfg.LLM.APIKey)
	}
}

func TestValidateConfigRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "empty address", mutate: func(c *Config) { c.HTTP.Address = "" }},
		{name: "unknown provider", mutate: func(c *Config) { c.LLM.Provider = "bedrock" }},
		{name: "ollama without base url", mutate: func(c *Config) { c.LLM.Provider = "ollama"; c.LLM.BaseURL = "" }},
		{name: "zero timeout", mutate: func(c *Config) { c.Query.ConnectTimeoutSeconds = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			if err := validateConfig(cfg); err == nil {
				t.Error("validateConfig succeeded, want error")
			}
		})
	}
}

func TestReloadableConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gateway.yaml")
	if err := os.WriteFile(path, []byte("http:\n  address: \":9090\"\n"), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadConfig(path, CLIFlags{})
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}

	rc := NewReloadableConfig(cfg, path, CLIFlags{})

	var callbackAddr string
	rc.OnReload(func(newCfg *Config) {
		callbackAddr = newCfg.HTTP.Address
	})

	if err := os.WriteFile(path, []byte("http:\n  address: \":9191\"\n"), 0644); err != nil {
		t.Fatalf("failed to rewrite config file: %v", err)
	}
	if err := rc.Reload(); err != nil {
		t.Fatalf("Reload returned error: %v", err)
	}

	if rc.Get().HTTP.Address != ":9191" {
		t.Errorf("Address after reload = %q, want :9191", rc.Get().HTTP.Address)
	}
	if callbackAddr != ":9191" {
		t.Errorf("callback address = %q, want :9191", callbackAddr)
	}
}
