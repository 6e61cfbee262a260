package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/poiesic/ragline/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeServer answers the embeddings and chat completion endpoints.
type fakeServer struct {
	embedCalls atomic.Int32
	reply      []string
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case strings.HasSuffix(r.URL.Path, "/embeddings"):
		f.embedCalls.Add(1)
		var req struct {
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		data := make([]map[string]any, len(req.Input))
		for i, text := range req.Input {
			data[i] = map[string]any{"object": "embedding", "index": i, "embedding": []float32{float32(len(text)), 1}}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": data})

	case strings.HasSuffix(r.URL.Path, "/chat/completions"):
		var req struct {
			Stream bool `json:"stream"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		if !req.Stream {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]any{
				"id": "c1", "object": "chat.completion",
				"choices": []map[string]any{{
					"index":         0,
					"message":       map[string]any{"role": "assistant", "content": "  " + strings.Join(f.reply, "") + "\n"},
					"finish_reason": "stop",
				}},
			})
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, token := range f.reply {
			chunk, _ := json.Marshal(map[string]any{
				"id": "c1", "object": "chat.completion.chunk",
				"choices": []map[string]any{{"index": 0, "delta": map[string]any{"content": token}}},
			})
			fmt.Fprintf(w, "data: %s\n\n", chunk)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")

	default:
		http.NotFound(w, r)
	}
}

func newTestProvider(t *testing.T, fake *fakeServer) ai.AIProvider {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	provider, err := NewProvider(ai.NewConfig(
		ai.WithHost(srv.URL),
		ai.WithEmbeddingModel("embed"),
		ai.WithChatModel("chat"),
		ai.WithExpansionModel("chat"),
	))
	require.NoError(t, err)
	t.Cleanup(func() { provider.Close() })
	return provider
}

func TestEmbedder(t *testing.T) {
	fake := &fakeServer{}
	embedder := newTestProvider(t, fake).Embedder()
	ctx := context.Background()

	t.Run("texts keep their order", func(t *testing.T) {
		vectors, err := embedder.EmbedTexts(ctx, []string{"a", "bbb\x00", "cc"})
		require.NoError(t, err)

		require.Len(t, vectors, 3)
		assert.Equal(t, []float32{1, 1}, vectors[0])
		assert.Equal(t, []float32{3, 1}, vectors[1], "control characters are removed")
		assert.Equal(t, []float32{2, 1}, vectors[2])
	})

	t.Run("query", func(t *testing.T) {
		vec, err := embedder.EmbedText(ctx, "four")
		require.NoError(t, err)
		assert.Equal(t, []float32{4, 1}, vec)
	})

	t.Run("empty input makes no request", func(t *testing.T) {
		before := fake.embedCalls.Load()
		vectors, err := embedder.EmbedTexts(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, vectors)
		assert.Equal(t, before, fake.embedCalls.Load())
	})
}

func TestChatModel(t *testing.T) {
	fake := &fakeServer{reply: []string{"Hel", "lo"}}
	model := newTestProvider(t, fake).ChatModel()
	ctx := context.Background()
	messages := []ai.ChatMessage{ai.SystemMessage("be brief"), ai.UserMessage("hi")}

	t.Run("generate trims the reply", func(t *testing.T) {
		reply, err := model.Generate(ctx, messages, ai.DefaultPrimaryOptions())
		require.NoError(t, err)
		assert.Equal(t, "Hello", reply)
	})

	t.Run("stream forwards tokens", func(t *testing.T) {
		var tokens []string
		reply, err := model.Stream(ctx, messages, ai.DefaultPrimaryOptions(), func(_ context.Context, chunk string) error {
			tokens = append(tokens, chunk)
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"Hel", "lo"}, tokens)
		assert.Equal(t, "Hello", reply)
	})
}

func TestProvider_SharesChatModelWhenExpansionMatches(t *testing.T) {
	provider := newTestProvider(t, &fakeServer{})
	assert.Same(t, provider.ChatModel(), provider.ExpansionModel())
}

func TestToMessageContent_DropsBlankMessages(t *testing.T) {
	content := toMessageContent([]ai.ChatMessage{
		ai.SystemMessage("rules"),
		ai.AssistantMessage(" \x07 "),
		ai.UserMessage("question"),
	})
	assert.Len(t, content, 2)
}
