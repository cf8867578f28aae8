package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("MODEL_API_KEY", "test-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != 8080 {
		t.Errorf("Port = %d", cfg.Port)
	}
	if cfg.ModelStandard != "gemini-2.5-flash" || cfg.ModelDeep != "gemini-2.5-pro" {
		t.Errorf("models = %s / %s", cfg.ModelStandard, cfg.ModelDeep)
	}
	if cfg.RetryBudget != 1 {
		t.Errorf("RetryBudget = %d", cfg.RetryBudget)
	}
	if cfg.GenerationTimeout != 10*time.Minute {
		t.Errorf("GenerationTimeout = %v", cfg.GenerationTimeout)
	}
	if len(cfg.EncryptionKey) != 32 {
		t.Errorf("EncryptionKey length = %d", len(cfg.EncryptionKey))
	}
	if cfg.StorageEnabled {
		t.Error("storage enabled without bucket config")
	}
}

func TestLoadRequiresModelKey(t *testing.T) {
	t.Setenv("MODEL_API_KEY", "")

	if _, err := Load(); err == nil {
		t.Fatal("Load succeeded without MODEL_API_KEY")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("MODEL_API_KEY", "k")
	t.Setenv("ANALYSIS_RETRY_BUDGET", "3")
	t.Setenv("GENERATION_TIMEOUT", "2m")
	t.Setenv("CORS_ORIGINS", "https://a.example,https://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.RetryBudget != 3 {
		t.Errorf("RetryBudget = %d", cfg.RetryBudget)
	}
	if cfg.GenerationTimeout != 2*time.Minute {
		t.Errorf("GenerationTimeout = %v", cfg.GenerationTimeout)
	}
	if len(cfg.CORSOrigins) != 2 {
		t.Errorf("CORSOrigins = %v", cfg.CORSOrigins)
	}
}

func TestDeriveEncryptionKeyStable(t *testing.T) {
	a := deriveEncryptionKey("secret")
	b := deriveEncryptionKey("secret")
	if string(a) != string(b) {
		t.Error("derivation not deterministic")
	}
	c := deriveEncryptionKey("other")
	if string(a) == string(c) {
		t.Error("different secrets derive the same key")
	}
}
