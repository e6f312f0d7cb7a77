/*-------------------------------------------------------------------------
 *
 * DB Query Gateway
 *
 * Copyright (c) 2026, the DB Query Gateway authors
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestIsConfigured(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		apiKey   string
		baseURL  string
		model    string
		want     bool
	}{
		{name: "anthropic with key", provider: "anthropic", apiKey: "k", model: "m", want: true},
		{name: "anthropic without key", provider: "anthropic", model: "m", want: false},
		{name: "openai with key", provider: "openai", apiKey: "k", model: "m", want: true},
		{name: "openai without key", provider: "openai", model: "m", want: false},
		{name: "ollama with base url", provider: "ollama", baseURL: "http://localhost:11434/v1", model: "m", want: true},
		{name: "ollama without base url", provider: "ollama", model: "m", want: false},
		{name: "missing model", provider: "anthropic", apiKey: "k", want: false},
		{name: "unknown provider", provider: "bedrock", apiKey: "k", model: "m", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewClient(tt.provider, tt.apiKey, tt.baseURL, tt.model)
			if got := client.IsConfigured(); got != tt.want {
				t.Errorf("IsConfigured() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGenerateSQLAnthropic(t *testing.T) {
	var gotPath, gotAPIKey string
	var gotReq anthropicRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAPIKey = r.Header.Get("x-api-key")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"content": []map[string]string{
				{"type": "text", "text": "```sql\nSELECT id FROM users\n```"},
			},
		})
	}))
	defer server.Close()

	client := NewClient("anthropic", "test-key", server.URL, "test-model")
	got, err := client.GenerateSQL(context.Background(), "list user ids", "appdb", `{"users": {}}`, "PostgreSQL")
	if err != nil {
		t.Fatalf("GenerateSQL returned error: %v", err)
	}

	if got != "SELECT id FROM users" {
		t.Errorf("GenerateSQL = %q, want fences stripped", got)
	}
	if gotPath != "/messages" {
		t.Errorf("request path = %q, want /messages", gotPath)
	}
	if gotAPIKey != "test-key" {
		t.Errorf("x-api-key = %q, want test-key", gotAPIKey)
	}
	if gotReq.Model != "test-model" {
		t.Errorf("request model = %q, want test-model", gotReq.Model)
	}
	if len(gotReq.Messages) != 1 || gotReq.Messages[0].Content != "list user ids" {
		t.Errorf("request messages = %+v, want single user message with prompt", gotReq.Messages)
	}
}

func TestGenerateSQLOllama(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("request path = %q, want /v1/chat/completions", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": "SELECT 1"}},
			},
		})
	}))
	defer server.Close()

	client := NewClient("ollama", "", server.URL+"/v1", "llama3")
	got, err := client.GenerateSQL(context.Background(), "anything", "appdb", "{}", "MySQL")
	if err != nil {
		t.Fatalf("GenerateSQL returned error: %v", err)
	}
	if got != "SELECT 1" {
		t.Errorf("GenerateSQL = %q, want SELECT 1", got)
	}
}

func TestGenerateSQLErrorPaths(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		client := NewClient("anthropic", "", "", "m")
		if _, err := client.GenerateSQL(context.Background(), "p", "c", "{}", "PostgreSQL"); err == nil {
			t.Error("GenerateSQL succeeded without configuration")
		}
	})

	t.Run("non-200 response", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error": "overloaded"}`, http.StatusServiceUnavailable)
		}))
		defer server.Close()

		client := NewClient("anthropic", "k", server.URL, "m")
		if _, err := client.GenerateSQL(context.Background(), "p", "c", "{}", "PostgreSQL"); err == nil {
			t.Error("GenerateSQL succeeded on a 503 response")
		}
	})

	t.Run("empty content", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]interface{}{"content": []interface{}{}})
		}))
		defer server.Close()

		client := NewClient("anthropic", "k", server.URL, "m")
		if _, err := client.GenerateSQL(context.Background(), "p", "c", "{}", "PostgreSQL"); err == nil {
			t.Error("GenerateSQL succeeded with empty content")
		}
	})
}

func TestHealthProbe(t *testing.T) {
	t.Run("missing api key", func(t *testing.T) {
		client := NewClient("anthropic", "", "", "m")
		status := client.HealthProbe(context.Background())
		if status.Status != "missing_api_key" {
			t.Errorf("Status = %q, want missing_api_key", status.Status)
		}
		if status.Reachable {
			t.Error("Reachable = true for unconfigured client")
		}
	})

	t.Run("reachable provider", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/models" {
				t.Errorf("probe path = %q, want /models", r.URL.Path)
			}
			w.Write([]byte(`{"data": []}`))
		}))
		defer server.Close()

		client := NewClient("openai", "k", server.URL, "m")
		status := client.HealthProbe(context.Background())
		if status.Status != "ok" || !status.Reachable {
			t.Errorf("status = %+v, want ok and reachable", status)
		}
	})

	t.Run("auth rejected", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "bad key", http.StatusUnauthorized)
		}))
		defer server.Close()

		client := NewClient("openai", "wrong", server.URL, "m")
		status := client.HealthProbe(context.Background())
		if status.Status != "unreachable" || status.Reachable {
			t.Errorf("status = %+v, want unreachable", status)
		}
	})
}

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "sql fence", input: "```sql\nSELECT 1\n```", want: "SELECT 1"},
		{name: "bare fence", input: "```\nSELECT 1\n```", want: "SELECT 1"},
		{name: "no fence", input: "  SELECT 1  ", want: "SELECT 1"},
		{name: "empty", input: "```sql\n```", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripCodeFences(tt.input); got != tt.want {
				t.Errorf("stripCodeFences(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
