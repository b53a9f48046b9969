package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPrompt(t *testing.T) {
	got := BuildPrompt("app.py", []string{"class App:", "    def run():"})
	assert.Equal(t, "# Module elements extracted from: app.py\n\nclass App:\n    def run():\n", got)

	assert.Contains(t, BuildPrompt("empty.py", nil), "(no top-level elements)")
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = srv.URL + "/v1"
	return NewClientWithConfig(cfg, "")
}

func TestSummarize(t *testing.T) {
	var got openai.ChatCompletionRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  got.Model,
			"choices": []map[string]interface{}{{
				"index":         0,
				"finish_reason": "stop",
				"message": map[string]string{
					"role":    "assistant",
					"content": `{"summary":"HTTP application entry point.","responsibilities":["start server"]}`,
				},
			}},
		})
	})

	summary, err := c.Summarize(context.Background(), "app.py", []string{"class App:"})
	require.NoError(t, err)
	assert.Equal(t, "HTTP application entry point.", summary.Summary)
	assert.Equal(t, []string{"start server"}, summary.Responsibilities)

	assert.Equal(t, defaultModel, got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, got.Messages[0].Role)
	assert.Contains(t, got.Messages[1].Content, "class App:")
}

func TestSummarizeNoChoices(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[]}`))
	})

	_, err := c.Summarize(context.Background(), "app.py", nil)
	assert.ErrorIs(t, err, ErrNoChoices)
}

func TestSummarizeBadJSON(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":"not json"}}]}`))
	})

	_, err := c.Summarize(context.Background(), "app.py", nil)
	assert.ErrorContains(t, err, "decode summary")
}
