package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"captains-log/config"
)

func chatReply(w http.ResponseWriter, content string) {
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 0,
		"model":   "gpt-3.5-turbo",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
	})
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.OpenAI{
		APIKey:             "sk-test",
		BaseURL:            srv.URL + "/v1/",
		TranscriptionModel: "whisper-1",
		ChatModel:          "gpt-3.5-turbo",
	}, srv.Client())
}

func TestTranscribe(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasSuffix(r.URL.Path, "/audio/transcriptions"))
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "whisper-1", r.FormValue("model"))
		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		assert.Equal(t, "audio.webm", hdr.Filename)
		body, _ := io.ReadAll(f)
		assert.Equal(t, "fake-audio", string(body))
		_ = json.NewEncoder(w).Encode(map[string]any{"text": " hello world "})
	})

	text, err := c.Transcribe(context.Background(), []byte("fake-audio"), "audio.webm", "audio/webm")
	require.NoError(t, err)
	assert.Equal(t, "hello world", text)
}

func TestChatAnnotations(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		body, _ := io.ReadAll(r.Body)
		prompt := string(body)
		switch {
		case strings.Contains(prompt, "title"):
			chatReply(w, `"Greeting"`)
		case strings.Contains(prompt, "sentiment"):
			chatReply(w, "Positive.")
		case strings.Contains(prompt, "key topics"):
			chatReply(w, "hello, world")
		default:
			http.Error(w, "unexpected prompt", http.StatusBadRequest)
		}
	})
	ctx := context.Background()

	title, err := c.SummarizeTitle(ctx, "hello world")
	require.NoError(t, err)
	assert.Equal(t, "Greeting", title)

	sentiment, err := c.Sentiment(ctx, "hello world")
	require.NoError(t, err)
	assert.Equal(t, "positive", sentiment)

	keywords, err := c.Keywords(ctx, "hello world")
	require.NoError(t, err)
	assert.Equal(t, []string{"hello", "world"}, keywords)
}

func TestChatFailure(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad request","type":"invalid_request_error"}}`))
	})
	_, err := c.SummarizeTitle(context.Background(), "hello")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "generate title")
}

func TestSplitKeywords(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, SplitKeywords("a, b,, c ,d,e,f,g"))
	assert.Empty(t, SplitKeywords(" , "))
}

func TestNormalizeSentiment(t *testing.T) {
	assert.Equal(t, "neutral", NormalizeSentiment(" Neutral.\n"))
}
