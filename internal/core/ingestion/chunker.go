package ingestion

import (
	"errors"
	"regexp"
	"strings"
)

// Chunker config validation errors. All of them reject before any chunk is
// produced.
var (
	ErrMaxTokensNotPositive = errors.New("maxTokens must be > 0")
	ErrOverlapNegative      = errors.New("overlapTokens must be >= 0")
	ErrOverlapTooLarge      = errors.New("overlapTokens must be < maxTokens")
)

// Chunk is the transient, pre-persistence representation of one text slice.
//
// Index:      stable, zero-based position of the chunk inside the document.
// Content:    chunk text (one or more paragraphs, or a word window).
// TokenCount: word-count heuristic, always recomputed from the final content.
type Chunk struct {
	Index      int
	Content    string
	TokenCount int
}

var paragraphSep = regexp.MustCompile(`\n{2,}`)

// EstimateTokenCount approximates tokens as whitespace-separated words.
func EstimateTokenCount(text string) int {
	return len(strings.Fields(text))
}

// ChunkText splits text into ordered, overlapping chunks of at most maxTokens
// words each, preferring paragraph boundaries. Paragraphs are accumulated
// greedily; when the next paragraph would overflow the budget, the buffer is
// flushed and reseeded with the trailing overlapTokens words. A paragraph that
// alone exceeds the budget is split by a fixed word window of size maxTokens
// and stride maxTokens-overlapTokens.
//
// Empty or whitespace-only input yields an empty result, not an error. No
// emitted chunk is ever empty.
func ChunkText(text string, maxTokens, overlapTokens int) ([]Chunk, error) {
	if maxTokens <= 0 {
		return nil, ErrMaxTokensNotPositive
	}
	if overlapTokens < 0 {
		return nil, ErrOverlapNegative
	}
	if overlapTokens >= maxTokens {
		return nil, ErrOverlapTooLarge
	}

	normalized := strings.TrimSpace(strings.ReplaceAll(text, "\r\n", "\n"))
	if normalized == "" {
		return nil, nil
	}

	var paragraphs []string
	for _, p := range paragraphSep.Split(normalized, -1) {
		if p = strings.TrimSpace(p); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}

	var (
		chunks        []Chunk
		current       []string
		currentTokens int
	)

	flush := func() {
		content := strings.TrimSpace(strings.Join(current, "\n\n"))
		if content == "" {
			return
		}
		chunks = append(chunks, Chunk{
			Index:      len(chunks),
			Content:    content,
			TokenCount: EstimateTokenCount(content),
		})
	}

	for _, para := range paragraphs {
		paraTokens := EstimateTokenCount(para)

		// Paragraph alone exceeds the budget: flush whatever is pending, then
		// slide a fixed word window across it.
		if paraTokens > maxTokens {
			flush()
			current = nil
			currentTokens = 0

			words := strings.Fields(para)
			start := 0
			for start < len(words) {
				end := min(start+maxTokens, len(words))
				window := strings.Join(words[start:end], " ")
				chunks = append(chunks, Chunk{
					Index:      len(chunks),
					Content:    window,
					TokenCount: EstimateTokenCount(window),
				})
				if end >= len(words) {
					break
				}
				start = max(0, end-overlapTokens)
			}
			continue
		}

		// Paragraph fits: try to add it to the current chunk.
		if currentTokens+paraTokens <= maxTokens {
			current = append(current, para)
			currentTokens += paraTokens
			continue
		}

		// Flush and start a new chunk seeded with overlap from the previous one.
		flush()

		if overlapTokens > 0 {
			prevWords := strings.Fields(strings.Join(current, "\n\n"))
			tail := prevWords[max(0, len(prevWords)-overlapTokens):]
			overlap := strings.TrimSpace(strings.Join(tail, " "))
			if overlap != "" {
				current = []string{overlap, para}
			} else {
				current = []string{para}
			}
		} else {
			current = []string{para}
		}
		currentTokens = EstimateTokenCount(strings.Join(current, "\n\n"))
	}

	flush()
	return chunks, nil
}
