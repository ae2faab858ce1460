package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func fakeChat(t *testing.T, reply string, seen *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		if seen != nil {
			_ = json.Unmarshal(body, seen)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 0,
			"model":   "gpt-test",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": reply},
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, srv *httptest.Server, opts Options) *Client {
	t.Helper()
	clearLLMEnv(t)
	t.Setenv("OPENAI_API_KEY", "test-key")
	c, err := New("gpt-test", opts, zap.NewNop(), option.WithBaseURL(srv.URL+"/"))
	require.NoError(t, err)
	return c
}

func TestClientText(t *testing.T) {
	var seen map[string]any
	srv := fakeChat(t, "hello", &seen)
	temp := 0.2
	c := newTestClient(t, srv, Options{MaxOutputTokens: 16, Temperature: &temp, JSON: true})

	out, err := c.Text(context.Background(), "sys", "user")
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
	assert.Equal(t, "gpt-test", seen["model"])
	assert.EqualValues(t, 16, seen["max_tokens"])
	assert.EqualValues(t, 0.2, seen["temperature"])
	assert.Equal(t, map[string]any{"type": "json_object"}, seen["response_format"])
	msgs, _ := seen["messages"].([]any)
	assert.Len(t, msgs, 2)
}

func TestClientChooseAction(t *testing.T) {
	cases := []struct {
		reply string
		want  string
	}{
		{"HIT", "hit"},
		{"I will stand.", "stand"},
		{`{"action":"double"}`, "double_down"},
		{"```json\n{\"action\": \"stand\"}\n```", "stand"},
	}
	for _, tc := range cases {
		t.Run(tc.reply, func(t *testing.T) {
			srv := fakeChat(t, tc.reply, nil)
			c := newTestClient(t, srv, Options{})
			act, raw, err := c.ChooseAction(context.Background(), "sys", "user", []string{"hit", "stand", "double_down"})
			require.NoError(t, err)
			assert.Equal(t, tc.want, act)
			assert.Equal(t, tc.reply, raw)
		})
	}
}

func TestClientChooseActionRejectsIllegal(t *testing.T) {
	srv := fakeChat(t, "DOUBLE", nil)
	c := newTestClient(t, srv, Options{})
	_, _, err := c.ChooseAction(context.Background(), "sys", "user", []string{"hit", "stand"})
	assert.Error(t, err)
}

func TestCoerceAction(t *testing.T) {
	legal := []string{"hit", "stand"}
	act, ok := coerceAction(`{"action":"STAY"}`, legal)
	assert.True(t, ok)
	assert.Equal(t, "stand", act)
	_, ok = coerceAction("fold", legal)
	assert.False(t, ok)
}

func TestEnvOptions(t *testing.T) {
	clearLLMEnv(t)
	t.Setenv("OPENAI_MAX_OUTPUT_TOKENS", "32")
	t.Setenv("OPENAI_TEMPERATURE", "0.5")
	t.Setenv("OPENAI_TOP_K", "x")
	opts := EnvOptions()
	assert.Equal(t, 32, opts.MaxOutputTokens)
	require.NotNil(t, opts.Temperature)
	assert.Equal(t, 0.5, *opts.Temperature)
	assert.Equal(t, 0, opts.TopK)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab...", truncate("abcdefgh", 5))
}
