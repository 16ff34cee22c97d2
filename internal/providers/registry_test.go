package providers

import (
	"testing"
)

func TestRegistry(t *testing.T) {
	t.Run("register and get LLM", func(t *testing.T) {
		r := NewRegistry()
		mock := NewMockClient()

		r.RegisterLLM("test-llm", mock)

		client, err := r.GetLLM("test-llm")
		if err != nil {
			t.Fatalf("GetLLM() error = %v", err)
		}
		if client != mock {
			t.Error("got different client than registered")
		}
		if !r.HasLLM("test-llm") {
			t.Error("HasLLM() = false")
		}
	})

	t.Run("get nonexistent LLM", func(t *testing.T) {
		r := NewRegistry()
		if _, err := r.GetLLM("nonexistent"); err == nil {
			t.Error("expected error for nonexistent LLM")
		}
	})

	t.Run("list is sorted", func(t *testing.T) {
		r := NewRegistry()
		r.RegisterLLM("b", NewMockClient())
		r.RegisterLLM("a", NewMockClient())

		names := r.ListLLM()
		if len(names) != 2 || names[0] != "a" || names[1] != "b" {
			t.Errorf("ListLLM() = %v, want [a b]", names)
		}
	})
}

func TestNewRegistryFromConfig(t *testing.T) {
	t.Run("skips disabled and keyless providers", func(t *testing.T) {
		r, err := NewRegistryFromConfig(RegistryConfig{
			LLMProviders: map[string]LLMProviderConfig{
				"openrouter": {Type: TypeOpenRouter, Enabled: true},
				"openai":     {Type: TypeOpenAI, APIKey: "sk-test", Enabled: false},
				"local":      {Type: TypeOllama, Model: "mistral", Enabled: true},
				"offline":    {Type: TypeMock, Enabled: true},
			},
		})
		if err != nil {
			t.Fatalf("NewRegistryFromConfig() error = %v", err)
		}

		names := r.ListLLM()
		if len(names) != 2 || names[0] != "local" || names[1] != "offline" {
			t.Errorf("ListLLM() = %v, want [local offline]", names)
		}

		local, _ := r.GetLLM("local")
		if local.Name() != "local" {
			t.Errorf("local.Name() = %q, want configured name", local.Name())
		}
	})

	t.Run("unknown type is an error", func(t *testing.T) {
		_, err := NewRegistryFromConfig(RegistryConfig{
			LLMProviders: map[string]LLMProviderConfig{
				"weird": {Type: "carrier-pigeon", Enabled: true},
			},
		})
		if err == nil {
			t.Error("expected error for unknown provider type")
		}
	})
}
