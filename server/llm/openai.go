package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"go.uber.org/zap"
)

// Options tunes one chat request.
type Options struct {
	ReasoningEffort string
	MaxOutputTokens int
	Temperature     *float64
	TopP            *float64
	TopK            int
	JSON            bool
	Timeout         time.Duration
	MaxRetries      int
}

type Client struct {
	cfg  apiConfig
	api  openai.Client
	opts Options
	log  *zap.Logger
}

// New resolves the provider from the environment and builds a chat client.
// extra is appended last so tests can point the client at a local server.
func New(model string, opts Options, log *zap.Logger, extra ...option.RequestOption) (*Client, error) {
	cfg, err := resolveAPIConfig(model)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 45 * time.Second
	}

	ro := []option.RequestOption{
		option.WithBaseURL(cfg.BaseURL + "/"),
		option.WithRequestTimeout(opts.Timeout),
		option.WithMaxRetries(opts.MaxRetries),
	}
	switch {
	case cfg.Kind == providerAzure:
		ro = append(ro,
			option.WithHeaderDel("Authorization"),
			option.WithHeader("Api-Key", cfg.APIKey),
			option.WithQuery("api-version", cfg.APIVersion),
		)
	case cfg.HeaderName == "Authorization" && cfg.HeaderPrefix == "Bearer ":
		ro = append(ro, option.WithAPIKey(cfg.APIKey))
	default:
		ro = append(ro,
			option.WithHeaderDel("Authorization"),
			option.WithHeader(cfg.HeaderName, cfg.HeaderPrefix+cfg.APIKey),
		)
	}
	if cfg.Organization != "" {
		ro = append(ro, option.WithOrganization(cfg.Organization))
	}
	for k, v := range cfg.ExtraHeaders {
		ro = append(ro, option.WithHeader(k, v))
	}
	if opts.TopK > 0 {
		ro = append(ro, option.WithJSONSet("top_k", opts.TopK))
	}
	ro = append(ro, extra...)

	log.Debug("llm client ready",
		zap.String("provider", cfg.Kind.String()),
		zap.String("model", cfg.Model),
		zap.String("base", cfg.BaseURL))
	return &Client{cfg: cfg, api: openai.NewClient(ro...), opts: opts, log: log}, nil
}

func (c *Client) Provider() string { return c.cfg.Kind.String() }
func (c *Client) Model() string    { return c.cfg.Model }

// Text sends a system+user exchange and returns the first choice's content.
func (c *Client) Text(ctx context.Context, system, user string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: c.cfg.Model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
	}
	if c.opts.MaxOutputTokens > 0 {
		params.MaxTokens = openai.Int(int64(c.opts.MaxOutputTokens))
	}
	if c.opts.Temperature != nil {
		params.Temperature = openai.Float(*c.opts.Temperature)
	}
	if c.opts.TopP != nil {
		params.TopP = openai.Float(*c.opts.TopP)
	}
	if strings.TrimSpace(c.opts.ReasoningEffort) != "" {
		params.ReasoningEffort = shared.ReasoningEffort(c.opts.ReasoningEffort)
	}
	if c.opts.JSON {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	start := time.Now()
	resp, err := c.api.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("%s chat: %w", c.cfg.Kind, err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no choices returned")
	}
	out := resp.Choices[0].Message.Content
	c.log.Debug("llm reply",
		zap.Duration("took", time.Since(start)),
		zap.String("text", truncate(out, 200)))
	return out, nil
}

// ChooseAction asks the model for one of legal. It accepts a JSON object
// with an "action" field or a bare word such as HIT.
func (c *Client) ChooseAction(ctx context.Context, system, user string, legal []string) (string, string, error) {
	text, err := c.Text(ctx, system, user)
	if err != nil {
		return "", text, err
	}
	raw := strings.TrimSpace(text)
	if raw == "" {
		return "", raw, errors.New("empty response")
	}
	act, ok := coerceAction(raw, legal)
	if !ok {
		return "", raw, fmt.Errorf("no valid action in response %q", truncate(raw, 80))
	}
	return act, raw, nil
}

var actionAliases = map[string]string{
	"double":      "double_down",
	"doubledown":  "double_down",
	"double_down": "double_down",
	"dd":          "double_down",
	"hit":         "hit",
	"stand":       "stand",
	"stay":        "stand",
}

func coerceAction(raw string, legal []string) (string, bool) {
	var parsed map[string]any
	if obj := extractJSONObject(raw); obj != "" && json.Unmarshal([]byte(obj), &parsed) == nil {
		if v, ok := parsed["action"].(string); ok {
			return matchLegal(v, legal)
		}
	}
	for _, w := range strings.FieldsFunc(strings.ToLower(raw), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r == '_')
	}) {
		if act, ok := matchLegal(w, legal); ok {
			return act, true
		}
	}
	return "", false
}

func matchLegal(word string, legal []string) (string, bool) {
	w := strings.ToLower(strings.TrimSpace(word))
	w = strings.ReplaceAll(w, " ", "")
	if a, ok := actionAliases[w]; ok {
		w = a
	}
	for _, l := range legal {
		if l == w {
			return w, true
		}
	}
	return "", false
}

func extractJSONObject(s string) string {
	start := strings.Index(s, "{")
	if start < 0 {
		return ""
	}
	end := strings.LastIndex(s, "}")
	if end < start {
		return ""
	}
	return strings.TrimSpace(s[start : end+1])
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}

// EnvOptions reads tuning knobs, preferring OPENROUTER_* when OpenRouter is
// the likely provider.
func EnvOptions() Options {
	opts := Options{MaxRetries: 2}
	preferOpenRouter := preferOpenRouterEnv()
	if v := envWithFallback(preferOpenRouter, "OPENAI_REASONING_EFFORT", "OPENROUTER_REASONING_EFFORT"); v != "" {
		opts.ReasoningEffort = v
	}
	if v := envWithFallback(preferOpenRouter, "OPENAI_MAX_OUTPUT_TOKENS", "OPENROUTER_MAX_OUTPUT_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			opts.MaxOutputTokens = n
		}
	}
	if v := envWithFallback(preferOpenRouter, "OPENAI_TEMPERATURE", "OPENROUTER_TEMPERATURE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			opts.Temperature = &f
		}
	}
	if v := envWithFallback(preferOpenRouter, "OPENAI_TOP_P", "OPENROUTER_TOP_P"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			opts.TopP = &f
		}
	}
	if v := envWithFallback(preferOpenRouter, "OPENAI_TOP_K", "OPENROUTER_TOP_K"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			opts.TopK = n
		}
	}
	return opts
}

func envWithFallback(preferOpenRouter bool, openAIKey, openRouterKey string) string {
	keys := []string{openAIKey, openRouterKey}
	if preferOpenRouter {
		keys[0], keys[1] = keys[1], keys[0]
	}
	for _, key := range keys {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
	}
	return ""
}
