package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEmbedServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *OpenAIEmbedder) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	emb, err := NewOpenAIEmbedder(EmbedConfig{APIKey: "test-key", BaseURL: srv.URL})
	require.NoError(t, err)
	return srv, emb
}

func TestNewOpenAIEmbedderRequiresKey(t *testing.T) {
	_, err := NewOpenAIEmbedder(EmbedConfig{})
	assert.Error(t, err)
}

func TestEmbedTextsEmptyInput(t *testing.T) {
	emb, err := NewOpenAIEmbedder(EmbedConfig{APIKey: "k"})
	require.NoError(t, err)
	out, err := emb.EmbedTexts(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestEmbedTextsReordersByIndex(t *testing.T) {
	_, emb := newEmbedServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req struct {
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Input, 3)

		// Items come back in reverse of input order; the client must not care.
		fmt.Fprint(w, `{"data":[
			{"index":2,"embedding":[3]},
			{"index":1,"embedding":[2]},
			{"index":0,"embedding":[1]}
		]}`)
	})

	out, err := emb.EmbedTexts(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, []float32{1}, out[0])
	assert.Equal(t, []float32{2}, out[1])
	assert.Equal(t, []float32{3}, out[2])
}

func TestEmbedTextsSurfacesStatusAndBody(t *testing.T) {
	_, emb := newEmbedServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"rate limited"}}`)
	})

	_, err := emb.EmbedTexts(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
	assert.Contains(t, err.Error(), "rate limited")
}

func TestEmbedTextsRejectsShapeViolations(t *testing.T) {
	cases := map[string]string{
		"count mismatch":  `{"data":[{"index":0,"embedding":[1]}]}`,
		"missing index":   `{"data":[{"embedding":[1]},{"index":1,"embedding":[2]}]}`,
		"index range":     `{"data":[{"index":0,"embedding":[1]},{"index":5,"embedding":[2]}]}`,
		"duplicate index": `{"data":[{"index":0,"embedding":[1]},{"index":0,"embedding":[2]}]}`,
		"empty vector":    `{"data":[{"index":0,"embedding":[1]},{"index":1,"embedding":[]}]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			resp := body
			_, emb := newEmbedServer(t, func(w http.ResponseWriter, _ *http.Request) {
				fmt.Fprint(w, resp)
			})
			_, err := emb.EmbedTexts(context.Background(), []string{"a", "b"})
			assert.Error(t, err)
		})
	}
}
