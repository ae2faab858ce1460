package llm

import (
	"errors"
	"os"
	"strings"
)

type providerKind int

const (
	providerOpenAI providerKind = iota
	providerOpenRouter
	providerAzure
)

func (k providerKind) String() string {
	switch k {
	case providerOpenRouter:
		return "openrouter"
	case providerAzure:
		return "azure"
	default:
		return "openai"
	}
}

type apiConfig struct {
	Kind         providerKind
	APIKey       string
	Model        string
	BaseURL      string
	APIVersion   string
	HeaderName   string
	HeaderPrefix string
	Organization string
	ExtraHeaders map[string]string
}

const defaultAzureAPIVersion = "2024-10-21"

// resolveAPIConfig works out provider, key, model and endpoint from the
// environment. An explicit model wins over the *_MODEL variables.
func resolveAPIConfig(model string) (apiConfig, error) {
	cfg := apiConfig{
		Model:        strings.TrimSpace(model),
		ExtraHeaders: map[string]string{},
	}

	switch {
	case azureConfigured():
		cfg.Kind = providerAzure
	case preferOpenRouterEnv():
		cfg.Kind = providerOpenRouter
	default:
		cfg.Kind = providerOpenAI
	}
	if provider, ok := detectProviderFromModel(cfg.Model); ok {
		cfg.Kind = provider
	}

	manualOverride := false
	switch strings.ToLower(strings.TrimSpace(os.Getenv("LLM_PROVIDER"))) {
	case "openrouter":
		cfg.Kind, manualOverride = providerOpenRouter, true
	case "openai":
		cfg.Kind, manualOverride = providerOpenAI, true
	case "azure":
		cfg.Kind, manualOverride = providerAzure, true
	}

	if cfg.Kind == providerAzure {
		return resolveAzure(cfg)
	}

	if cfg.Model == "" {
		if cfg.Kind == providerOpenRouter {
			cfg.Model = strings.TrimSpace(os.Getenv("OPENROUTER_MODEL"))
		}
		if cfg.Model == "" {
			cfg.Model = strings.TrimSpace(os.Getenv("OPENAI_MODEL"))
		}
	}
	if cfg.Model == "" {
		return apiConfig{}, errors.New("model missing: set LLM_MODEL, OPENAI_MODEL or OPENROUTER_MODEL")
	}
	if !manualOverride {
		if provider, ok := detectProviderFromModel(cfg.Model); ok {
			cfg.Kind = provider
		}
	}

	base := firstNonEmpty(
		os.Getenv("OPENAI_API_BASE"),
		os.Getenv("OPENAI_BASE_URL"),
		os.Getenv("OPENROUTER_API_BASE"),
		os.Getenv("OPENROUTER_BASE_URL"),
	)
	if base == "" {
		if cfg.Kind == providerOpenRouter {
			base = "https://openrouter.ai/api/v1"
		} else {
			base = "https://api.openai.com/v1"
		}
	}
	cfg.BaseURL = strings.TrimRight(base, "/")
	if !manualOverride && strings.Contains(strings.ToLower(cfg.BaseURL), "openrouter") {
		cfg.Kind = providerOpenRouter
	}

	openAIKey := strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	openRouterKey := strings.TrimSpace(os.Getenv("OPENROUTER_API_KEY"))
	if cfg.Kind == providerOpenRouter {
		cfg.APIKey = firstNonEmpty(openRouterKey, openAIKey)
	} else {
		cfg.APIKey = firstNonEmpty(openAIKey, openRouterKey)
	}
	if cfg.APIKey == "" {
		return apiConfig{}, errors.New("API key missing: set OPENAI_API_KEY or OPENROUTER_API_KEY")
	}

	cfg.HeaderName = firstNonEmpty(os.Getenv("OPENAI_API_KEY_HEADER"), os.Getenv("OPENROUTER_API_KEY_HEADER"), "Authorization")
	prefix := os.Getenv("OPENAI_API_KEY_PREFIX")
	if prefix == "" {
		prefix = os.Getenv("OPENROUTER_API_KEY_PREFIX")
	}
	if cfg.HeaderName == "Authorization" && strings.TrimSpace(prefix) == "" {
		prefix = "Bearer "
	}
	cfg.HeaderPrefix = prefix
	cfg.Organization = strings.TrimSpace(os.Getenv("OPENAI_ORG"))

	if cfg.Kind == providerOpenRouter {
		if v := strings.TrimSpace(os.Getenv("OPENROUTER_SITE_URL")); v != "" {
			cfg.ExtraHeaders["HTTP-Referer"] = v
		}
		cfg.ExtraHeaders["X-Title"] = firstNonEmpty(os.Getenv("OPENROUTER_TITLE"), "Blackjack Table")
	}
	return cfg, nil
}

func resolveAzure(cfg apiConfig) (apiConfig, error) {
	cfg.Kind = providerAzure
	cfg.APIKey = strings.TrimSpace(os.Getenv("AZURE_OPENAI_API_KEY"))
	if cfg.APIKey == "" {
		return apiConfig{}, errors.New("API key missing: set AZURE_OPENAI_API_KEY")
	}
	endpoint := strings.TrimRight(strings.TrimSpace(os.Getenv("AZURE_OPENAI_ENDPOINT")), "/")
	if endpoint == "" {
		return apiConfig{}, errors.New("endpoint missing: set AZURE_OPENAI_ENDPOINT")
	}
	// Azure routes by deployment, which plays the role of the model name.
	deployment := firstNonEmpty(os.Getenv("AZURE_OPENAI_DEPLOYMENT"), cfg.Model)
	if deployment == "" {
		return apiConfig{}, errors.New("deployment missing: set AZURE_OPENAI_DEPLOYMENT")
	}
	cfg.Model = deployment
	cfg.BaseURL = endpoint + "/openai/deployments/" + deployment
	cfg.APIVersion = firstNonEmpty(os.Getenv("AZURE_OPENAI_API_VERSION"), defaultAzureAPIVersion)
	cfg.HeaderName = "Api-Key"
	return cfg, nil
}

func azureConfigured() bool {
	return strings.TrimSpace(os.Getenv("AZURE_OPENAI_API_KEY")) != "" &&
		strings.TrimSpace(os.Getenv("AZURE_OPENAI_ENDPOINT")) != ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func detectProviderFromModel(model string) (providerKind, bool) {
	normalized := strings.ToLower(strings.TrimSpace(model))
	if normalized == "" {
		return providerOpenAI, false
	}
	if strings.HasPrefix(normalized, "openrouter/") {
		return providerOpenRouter, true
	}
	return providerOpenAI, false
}

func preferOpenRouterEnv() bool {
	if strings.TrimSpace(os.Getenv("OPENROUTER_API_KEY")) != "" && strings.TrimSpace(os.Getenv("OPENAI_API_KEY")) == "" {
		return true
	}
	if strings.TrimSpace(os.Getenv("OPENROUTER_MODEL")) != "" && strings.TrimSpace(os.Getenv("OPENAI_MODEL")) == "" {
		return true
	}
	if strings.TrimSpace(os.Getenv("OPENROUTER_API_BASE")) != "" || strings.TrimSpace(os.Getenv("OPENROUTER_BASE_URL")) != "" {
		return true
	}
	for _, k := range []string{"OPENAI_API_BASE", "OPENAI_BASE_URL"} {
		if base := strings.TrimSpace(os.Getenv(k)); strings.Contains(strings.ToLower(base), "openrouter") {
			return true
		}
	}
	return false
}

// Configured reports whether the environment carries enough to reach a model.
func Configured(model string) bool {
	_, err := resolveAPIConfig(model)
	return err == nil
}
