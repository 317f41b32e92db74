package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestLoadDefaults tests that default configuration values are loaded correctly.
func TestLoadDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	t.Setenv("OPENAI_API_KEY", "test-api-key")
	t.Setenv("DATABASE_URL", "")
	os.Unsetenv("DATABASE_URL")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Provider != ProviderOpenAI {
		t.Errorf("expected default Provider %q, got %q", ProviderOpenAI, cfg.Provider)
	}
	if cfg.ModelName != DefaultModelName {
		t.Errorf("expected default ModelName %q, got %q", DefaultModelName, cfg.ModelName)
	}
	if cfg.Temperature != 0.2 {
		t.Errorf("expected default Temperature 0.2, got %f", cfg.Temperature)
	}
	if cfg.EmbedderModel != DefaultEmbedderModel {
		t.Errorf("expected default EmbedderModel %q, got %q", DefaultEmbedderModel, cfg.EmbedderModel)
	}
	if cfg.EmbedderDimensions != EmbeddingDimensions {
		t.Errorf("expected default EmbedderDimensions %d, got %d", EmbeddingDimensions, cfg.EmbedderDimensions)
	}
	if cfg.ChunkSize != DefaultChunkSize {
		t.Errorf("expected default ChunkSize %d, got %d", DefaultChunkSize, cfg.ChunkSize)
	}
	if cfg.ChunkOverlap != DefaultChunkOverlap {
		t.Errorf("expected default ChunkOverlap %d, got %d", DefaultChunkOverlap, cfg.ChunkOverlap)
	}
	if cfg.TopK != DefaultTopK {
		t.Errorf("expected default TopK %d, got %d", DefaultTopK, cfg.TopK)
	}
	if cfg.PostgresHost != "localhost" {
		t.Errorf("expected default PostgresHost 'localhost', got %q", cfg.PostgresHost)
	}
	if cfg.PostgresPort != 5432 {
		t.Errorf("expected default PostgresPort 5432, got %d", cfg.PostgresPort)
	}
	if cfg.PostgresDBName != "docubot" {
		t.Errorf("expected default PostgresDBName 'docubot', got %q", cfg.PostgresDBName)
	}
	if want := filepath.Join(tmpDir, ".docubot"); cfg.DataDir != want {
		t.Errorf("expected default DataDir %q, got %q", want, cfg.DataDir)
	}
	if want := filepath.Join(tmpDir, ".docubot", "documents"); cfg.DocsDir != want {
		t.Errorf("expected default DocsDir %q, got %q", want, cfg.DocsDir)
	}
}

// TestLoadConfigFile tests loading configuration from a file.
func TestLoadConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	t.Setenv("OPENAI_API_KEY", "test-api-key")
	os.Unsetenv("DATABASE_URL")

	configDir := filepath.Join(tmpDir, ".docubot")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		t.Fatalf("creating config dir: %v", err)
	}

	configYAML := `model_name: gpt-4o
temperature: 0.5
chunk_size: 800
top_k: 3
postgres_host: db.internal
`
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(configYAML), 0o600); err != nil {
		t.Fatalf("writing config.yaml: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.ModelName != "gpt-4o" {
		t.Errorf("expected ModelName 'gpt-4o' from file, got %q", cfg.ModelName)
	}
	if cfg.Temperature != 0.5 {
		t.Errorf("expected Temperature 0.5 from file, got %f", cfg.Temperature)
	}
	if cfg.ChunkSize != 800 {
		t.Errorf("expected ChunkSize 800 from file, got %d", cfg.ChunkSize)
	}
	if cfg.TopK != 3 {
		t.Errorf("expected TopK 3 from file, got %d", cfg.TopK)
	}
	if cfg.PostgresHost != "db.internal" {
		t.Errorf("expected PostgresHost 'db.internal' from file, got %q", cfg.PostgresHost)
	}
	// Values absent from the file keep their defaults.
	if cfg.ChunkOverlap != DefaultChunkOverlap {
		t.Errorf("expected default ChunkOverlap %d, got %d", DefaultChunkOverlap, cfg.ChunkOverlap)
	}
}

// TestLoadEnvOverride tests that environment variables take priority over files.
func TestLoadEnvOverride(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	t.Setenv("OPENAI_API_KEY", "test-api-key")
	os.Unsetenv("DATABASE_URL")

	configDir := filepath.Join(tmpDir, ".docubot")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		t.Fatalf("creating config dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte("model_name: gpt-4o\n"), 0o600); err != nil {
		t.Fatalf("writing config.yaml: %v", err)
	}

	t.Setenv("DOCUBOT_MODEL", "gpt-4.1-mini")
	t.Setenv("DOCUBOT_CHUNK_SIZE", "600")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.ModelName != "gpt-4.1-mini" {
		t.Errorf("env override should win over file, got ModelName %q", cfg.ModelName)
	}
	if cfg.ChunkSize != 600 {
		t.Errorf("env override should set ChunkSize 600, got %d", cfg.ChunkSize)
	}
}

// TestMaskSecret tests secret masking behavior.
func TestMaskSecret(t *testing.T) {
	tests := []struct {
		name   string
		secret string
		want   string
	}{
		{name: "empty", secret: "", want: ""},
		{name: "short fully masked", secret: "abc", want: maskedValue},
		{name: "exactly 8 fully masked", secret: "12345678", want: maskedValue},
		{name: "long keeps edges", secret: "super_secret_password", want: "su<" + maskedValue + ">rd"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := maskSecret(tt.secret); got != tt.want {
				t.Errorf("maskSecret(%q) = %q, want %q", tt.secret, got, tt.want)
			}
		})
	}
}

// TestMarshalJSONMasksPassword tests that secrets never appear in JSON output.
func TestMarshalJSONMasksPassword(t *testing.T) {
	cfg := Config{PostgresPassword: "very_secret_password"}

	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("Marshal() failed: %v", err)
	}
	if strings.Contains(string(data), "very_secret_password") {
		t.Errorf("marshaled config leaks password: %s", data)
	}

	if s := cfg.String(); strings.Contains(s, "very_secret_password") {
		t.Errorf("String() leaks password: %s", s)
	}
}

// TestFullModelName tests provider-qualified model naming.
func TestFullModelName(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		model    string
		want     string
	}{
		{name: "openai", provider: ProviderOpenAI, model: "gpt-4o-mini", want: "openai/gpt-4o-mini"},
		{name: "gemini maps to googleai", provider: ProviderGemini, model: "gemini-2.5-flash", want: "googleai/gemini-2.5-flash"},
		{name: "googleai", provider: ProviderGoogleAI, model: "gemini-2.5-flash", want: "googleai/gemini-2.5-flash"},
		{name: "ollama", provider: ProviderOllama, model: "llama3.3", want: "ollama/llama3.3"},
		{name: "already qualified", provider: ProviderOpenAI, model: "googleai/gemini-2.5-pro", want: "googleai/gemini-2.5-pro"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Provider: tt.provider, ModelName: tt.model}
			if got := cfg.FullModelName(); got != tt.want {
				t.Errorf("FullModelName() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestAPIKeyEnvVar tests the provider to env var mapping.
func TestAPIKeyEnvVar(t *testing.T) {
	tests := []struct {
		provider string
		want     string
	}{
		{provider: ProviderOpenAI, want: "OPENAI_API_KEY"},
		{provider: ProviderGemini, want: "GEMINI_API_KEY"},
		{provider: ProviderGoogleAI, want: "GEMINI_API_KEY"},
		{provider: ProviderOllama, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			cfg := &Config{Provider: tt.provider}
			if got := cfg.APIKeyEnvVar(); got != tt.want {
				t.Errorf("APIKeyEnvVar() = %q, want %q", got, tt.want)
			}
		})
	}
}
