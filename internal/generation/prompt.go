package generation

import (
	"fmt"
	"strings"

	"github.com/ahrav/policybot/internal/domain"
)

const (
	// promptMatches is how many matches feed the prompt context.
	promptMatches = 3

	// promptExcerptLimit caps each match's text inside the prompt so the
	// whole prompt stays inside the model's context window.
	promptExcerptLimit = 600
)

// BuildPrompt assembles the bounded model prompt from a query and its top
// matches. Matches beyond the first three are dropped and each match's text
// is truncated; retrieval order is kept as-is.
func BuildPrompt(q domain.Query, matches []domain.CandidateMatch) string {
	var policyContext strings.Builder
	for i, m := range domain.TopMatches(matches, promptMatches) {
		if i > 0 {
			policyContext.WriteString("\n\n")
		}
		fmt.Fprintf(&policyContext, "=== %s ===\n%s\n=== End ===",
			m.Title, truncate(m.Text, promptExcerptLimit))
	}

	return fmt.Sprintf(
		"You are Northeastern University's policy assistant. "+
			"Answer the user's question using the policy excerpts below.\n\n"+
			"User Question: %s\n\n"+
			"Relevant University Policies:\n%s\n\n"+
			"Instructions:\n"+
			"- Give a complete, detailed answer\n"+
			"- Reference specific policies by name when relevant\n"+
			"- Include practical implications and procedures\n"+
			"- Use professional but accessible language\n\n"+
			"Complete Response:",
		q.Text, policyContext.String())
}

// trimBoilerplate strips prompt-echo prefixes that small models sometimes
// emit before the actual answer.
func trimBoilerplate(text string) string {
	text = strings.TrimSpace(text)
	for _, prefix := range []string{"Complete Response:", "Response:", "Answer:"} {
		if rest, ok := strings.CutPrefix(text, prefix); ok {
			return strings.TrimSpace(rest)
		}
	}
	return text
}

func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return text[:limit] + "..."
}
