package llm

import (
	"fmt"
	"strings"

	"github.com/insightfulops/opskb/internal/core"
)

// answerSystemInstruction constrains the model to the supplied sources and
// makes it self-declare insufficiency instead of guessing.
const answerSystemInstruction = "You are the OpsKB assistant. Answer ONLY using the provided sources. " +
	"If the sources do not contain the answer, say you don't have sufficient sources."

// buildAnswerPrompt renders the question and its grounding sources into the
// user prompt shared by every completion provider.
func buildAnswerPrompt(question string, sources []core.Source) string {
	blocks := make([]string, 0, len(sources))
	for i, s := range sources {
		blocks = append(blocks, fmt.Sprintf("SOURCE %d: %s\n%s", i+1, s.Title, s.Content))
	}
	return fmt.Sprintf("Question:\n%s\n\nSources:\n%s", question, strings.Join(blocks, "\n\n---\n\n"))
}
