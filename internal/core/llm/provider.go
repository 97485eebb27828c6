package llm

import (
	"context"
	"fmt"

	"github.com/insightfulops/opskb/internal/config"
	"github.com/insightfulops/opskb/internal/core"
)

// NewCompletionProvider builds the configured completion client. A nil, nil
// return means the selected provider has no API key configured: the assistant
// then runs in degraded mode rather than failing startup.
func NewCompletionProvider(ctx context.Context, cfg *config.Config) (core.LLMProvider, error) {
	switch cfg.GenProvider {
	case "", "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, nil
		}
		chat, err := NewOpenAIChat(ChatConfig{APIKey: cfg.OpenAIAPIKey, Model: cfg.GenModel})
		if err != nil {
			return nil, err
		}
		return chat, nil
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			return nil, nil
		}
		gem, err := NewGeminiLLM(ctx, cfg.GeminiAPIKey, cfg.GenModel)
		if err != nil {
			return nil, err
		}
		return gem, nil
	default:
		return nil, fmt.Errorf("unknown GEN_PROVIDER %q", cfg.GenProvider)
	}
}

// NewEmbeddingProvider builds the embedding client, or nil, nil when no key
// is configured (degraded mode for the assistant; the ingestion worker
// requires it and checks at startup).
func NewEmbeddingProvider(cfg *config.Config) (core.EmbeddingProvider, error) {
	if cfg.OpenAIAPIKey == "" {
		return nil, nil
	}
	emb, err := NewOpenAIEmbedder(EmbedConfig{APIKey: cfg.OpenAIAPIKey, Model: cfg.EmbedModel})
	if err != nil {
		return nil, err
	}
	return emb, nil
}
