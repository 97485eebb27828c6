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

	"github.com/insightfulops/opskb/internal/core"
)

func newChatServer(t *testing.T, handler http.HandlerFunc) *OpenAIChat {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	chat, err := NewOpenAIChat(ChatConfig{APIKey: "test-key", BaseURL: srv.URL})
	require.NoError(t, err)
	return chat
}

func TestAnswerWithSourcesSendsSystemAndSources(t *testing.T) {
	chat := newChatServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)

		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Contains(t, req.Messages[1].Content, "SOURCE 1: Vacation Policy")
		assert.Contains(t, req.Messages[1].Content, "How many days off?")

		fmt.Fprint(w, `{"choices":[{"message":{"content":"  20 days.  "}}]}`)
	})

	answer, err := chat.AnswerWithSources(context.Background(), "How many days off?", []core.Source{
		{Title: "Vacation Policy", Content: "Employees get 20 days."},
	})
	require.NoError(t, err)
	assert.Equal(t, "20 days.", answer)
}

func TestAnswerWithSourcesSurfacesStatusAndBody(t *testing.T) {
	chat := newChatServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, "upstream unavailable")
	})

	_, err := chat.AnswerWithSources(context.Background(), "q", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
	assert.Contains(t, err.Error(), "upstream unavailable")
}

func TestAnswerWithSourcesNoChoices(t *testing.T) {
	chat := newChatServer(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"choices":[]}`)
	})

	_, err := chat.AnswerWithSources(context.Background(), "q", nil)
	require.ErrorContains(t, err, "no choices")
}
