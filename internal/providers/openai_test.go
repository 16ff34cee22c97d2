package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func chatCompletionBody(content string) map[string]any {
	return map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "mistral",
		"choices": []map[string]any{
			{
				"index":         0,
				"finish_reason": "stop",
				"message": map[string]any{
					"role":    "assistant",
					"content": content,
				},
			},
		},
		"usage": map[string]any{
			"prompt_tokens":     12,
			"completion_tokens": 5,
			"total_tokens":      17,
		},
	}
}

func TestOpenAIClient_Chat(t *testing.T) {
	t.Run("successful chat", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/chat/completions" {
				t.Errorf("unexpected path: %s", r.URL.Path)
			}
			var body map[string]any
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("decode request: %v", err)
			}
			if body["model"] != "mistral" {
				t.Errorf("model = %v, want mistral", body["model"])
			}
			if body["temperature"] != 0.4 {
				t.Errorf("temperature = %v, want 0.4", body["temperature"])
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(chatCompletionBody(`{"chapters":[]}`))
		}))
		defer server.Close()

		client := NewOpenAIClient(OpenAIConfig{
			Name:    "ollama",
			APIKey:  "test-key",
			BaseURL: server.URL,
		})

		req := UserPrompt("mistral", "plan please")
		req.Temperature = 0.4
		result, err := client.Chat(context.Background(), req)
		if err != nil {
			t.Fatalf("Chat() error = %v", err)
		}
		if result.Content != `{"chapters":[]}` {
			t.Errorf("Content = %q", result.Content)
		}
		if result.Provider != "ollama" {
			t.Errorf("Provider = %q, want ollama", result.Provider)
		}
		if result.TotalTokens != 17 {
			t.Errorf("TotalTokens = %d, want 17", result.TotalTokens)
		}
	})

	t.Run("api error maps to HTTPError", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":{"message":"model not found","type":"invalid_request_error"}}`))
		}))
		defer server.Close()

		client := NewOpenAIClient(OpenAIConfig{APIKey: "test-key", BaseURL: server.URL, MaxRetries: 1})
		_, err := client.Chat(context.Background(), UserPrompt("missing", "hi"))

		var httpErr *HTTPError
		if !errors.As(err, &httpErr) {
			t.Fatalf("expected HTTPError, got %T: %v", err, err)
		}
		if httpErr.StatusCode != http.StatusBadRequest {
			t.Errorf("StatusCode = %d, want 400", httpErr.StatusCode)
		}
	})

	t.Run("empty content is an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(chatCompletionBody(""))
		}))
		defer server.Close()

		client := NewOpenAIClient(OpenAIConfig{APIKey: "test-key", BaseURL: server.URL})
		result, err := client.Chat(context.Background(), UserPrompt("mistral", "hi"))
		if err == nil {
			t.Fatal("expected error for empty content")
		}
		if result.ErrorType != "empty_response" {
			t.Errorf("ErrorType = %q, want empty_response", result.ErrorType)
		}
	})
}

func TestOpenAIClient_Ollama(t *testing.T) {
	cfg := LoadTestConfig()
	if !cfg.HasOllama() {
		t.Skip("QUILL_TEST_OLLAMA_URL not set")
	}

	r, err := NewRegistryFromConfig(cfg.ToRegistryConfig())
	if err != nil {
		t.Fatalf("NewRegistryFromConfig() error = %v", err)
	}
	client, err := r.GetLLM("ollama")
	if err != nil {
		t.Fatalf("GetLLM() error = %v", err)
	}
	result, err := client.Chat(context.Background(), UserPrompt("mistral", "Reply with the single word: ready"))
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if result.Content == "" {
		t.Error("expected content")
	}
}
