package llm

import "testing"

func clearLLMEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"LLM_PROVIDER", "OPENAI_API_KEY", "OPENROUTER_API_KEY", "OPENAI_MODEL", "OPENROUTER_MODEL",
		"OPENAI_API_BASE", "OPENAI_BASE_URL", "OPENROUTER_API_BASE", "OPENROUTER_BASE_URL",
		"OPENROUTER_SITE_URL", "OPENROUTER_TITLE", "OPENAI_API_KEY_HEADER", "OPENAI_API_KEY_PREFIX",
		"AZURE_OPENAI_API_KEY", "AZURE_OPENAI_ENDPOINT", "AZURE_OPENAI_DEPLOYMENT", "AZURE_OPENAI_API_VERSION",
	} {
		t.Setenv(k, "")
	}
}

func TestResolveAPIConfigOpenRouterDefaults(t *testing.T) {
	clearLLMEnv(t)
	t.Setenv("OPENAI_API_BASE", "https://openrouter.ai/api/v1")
	t.Setenv("OPENAI_API_KEY", "test-key")
	cfg, err := resolveAPIConfig("meta-llama/llama-3.1-70b-instruct")
	if err != nil {
		t.Fatalf("resolveAPIConfig returned error: %v", err)
	}
	if cfg.Kind != providerOpenRouter {
		t.Fatalf("expected providerOpenRouter, got %v", cfg.Kind)
	}
	if _, ok := cfg.ExtraHeaders["HTTP-Referer"]; ok {
		t.Fatalf("HTTP-Referer should only be set from OPENROUTER_SITE_URL")
	}
	if got := cfg.ExtraHeaders["X-Title"]; got != "Blackjack Table" {
		t.Fatalf("unexpected X-Title: %q", got)
	}
	if cfg.HeaderPrefix != "Bearer " {
		t.Fatalf("unexpected prefix %q", cfg.HeaderPrefix)
	}
}

func TestResolveAPIConfigOpenRouterOverrides(t *testing.T) {
	clearLLMEnv(t)
	t.Setenv("OPENROUTER_API_KEY", "or-key")
	t.Setenv("OPENROUTER_SITE_URL", "https://example.com/app")
	t.Setenv("OPENROUTER_TITLE", "Custom Title")
	cfg, err := resolveAPIConfig("openrouter/auto")
	if err != nil {
		t.Fatalf("resolveAPIConfig returned error: %v", err)
	}
	if cfg.Kind != providerOpenRouter {
		t.Fatalf("expected providerOpenRouter, got %v", cfg.Kind)
	}
	if cfg.BaseURL != "https://openrouter.ai/api/v1" {
		t.Fatalf("unexpected base %q", cfg.BaseURL)
	}
	if cfg.APIKey != "or-key" {
		t.Fatalf("unexpected key %q", cfg.APIKey)
	}
	if got := cfg.ExtraHeaders["HTTP-Referer"]; got != "https://example.com/app" {
		t.Fatalf("unexpected HTTP-Referer: %q", got)
	}
	if got := cfg.ExtraHeaders["X-Title"]; got != "Custom Title" {
		t.Fatalf("unexpected X-Title: %q", got)
	}
}

func TestResolveAPIConfigAzure(t *testing.T) {
	clearLLMEnv(t)
	t.Setenv("AZURE_OPENAI_API_KEY", "az-key")
	t.Setenv("AZURE_OPENAI_ENDPOINT", "https://example.openai.azure.com/")
	t.Setenv("AZURE_OPENAI_DEPLOYMENT", "gpt-4o-mini")
	cfg, err := resolveAPIConfig("")
	if err != nil {
		t.Fatalf("resolveAPIConfig returned error: %v", err)
	}
	if cfg.Kind != providerAzure {
		t.Fatalf("expected providerAzure, got %v", cfg.Kind)
	}
	if cfg.BaseURL != "https://example.openai.azure.com/openai/deployments/gpt-4o-mini" {
		t.Fatalf("unexpected base %q", cfg.BaseURL)
	}
	if cfg.APIVersion != defaultAzureAPIVersion {
		t.Fatalf("unexpected api version %q", cfg.APIVersion)
	}
}

func TestResolveAPIConfigMissingKey(t *testing.T) {
	clearLLMEnv(t)
	if _, err := resolveAPIConfig("gpt-4o-mini"); err == nil {
		t.Fatalf("expected missing key error")
	}
	if Configured("gpt-4o-mini") {
		t.Fatalf("Configured should be false without a key")
	}
}

func TestResolveAPIConfigManualOverride(t *testing.T) {
	clearLLMEnv(t)
	t.Setenv("LLM_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "k")
	t.Setenv("OPENAI_API_BASE", "https://openrouter.ai/api/v1")
	cfg, err := resolveAPIConfig("gpt-4o-mini")
	if err != nil {
		t.Fatalf("resolveAPIConfig returned error: %v", err)
	}
	if cfg.Kind != providerOpenAI {
		t.Fatalf("expected manual override to keep openai, got %v", cfg.Kind)
	}
}
