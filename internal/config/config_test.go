package config

import (
	"os"
	"testing"

	"github.com/spf13/viper"
)

func resetViper() {
	viper.Reset()
}

func TestLoad_Defaults(t *testing.T) {
	resetViper()
	os.Setenv("STORE_URL", "postgres://x/y")
	os.Setenv("LLM_API_KEY", "key")
	os.Setenv("VECTOR_URL", "https://vector.example")
	defer os.Unsetenv("STORE_URL")
	defer os.Unsetenv("LLM_API_KEY")
	defer os.Unsetenv("VECTOR_URL")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LLMMaxTokens != 200 {
		t.Errorf("LLMMaxTokens = %d, want 200", cfg.LLMMaxTokens)
	}
	if cfg.LLMTemperature != 0.7 {
		t.Errorf("LLMTemperature = %v, want 0.7", cfg.LLMTemperature)
	}
	if cfg.MaxConversationHistory != 4 {
		t.Errorf("MaxConversationHistory = %d, want 4", cfg.MaxConversationHistory)
	}
	if cfg.RetrievalTopK != 3 {
		t.Errorf("RetrievalTopK = %d, want 3", cfg.RetrievalTopK)
	}
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	resetViper()
	os.Unsetenv("STORE_URL")
	os.Unsetenv("LLM_API_KEY")
	os.Unsetenv("VECTOR_URL")

	if _, err := Load(); err == nil {
		t.Error("expected error for missing required config, got nil")
	}
}

func TestLoad_EnvOverridesDefault(t *testing.T) {
	resetViper()
	os.Setenv("STORE_URL", "postgres://x/y")
	os.Setenv("LLM_API_KEY", "key")
	os.Setenv("VECTOR_URL", "https://vector.example")
	os.Setenv("LLM_MAX_TOKENS", "500")
	defer os.Unsetenv("STORE_URL")
	defer os.Unsetenv("LLM_API_KEY")
	defer os.Unsetenv("VECTOR_URL")
	defer os.Unsetenv("LLM_MAX_TOKENS")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LLMMaxTokens != 500 {
		t.Errorf("LLMMaxTokens = %d, want 500", cfg.LLMMaxTokens)
	}
}
