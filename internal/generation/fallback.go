package generation

import (
	"fmt"
	"strings"

	"github.com/ahrav/policybot/internal/domain"
)

// proceduralKeywords mark sentences that carry obligations or process
// steps; those are the most useful lines to surface when the model is
// unavailable.
var proceduralKeywords = []string{
	"must", "shall", "required", "procedure",
	"process", "application", "deadline", "eligibility",
}

const (
	// fallbackExcerptSentences caps how many sentences each match
	// contributes to the fallback answer.
	fallbackExcerptSentences = 3

	// timeoutExcerptLimit caps each match's text in the timeout answer.
	timeoutExcerptLimit = 400

	// noMatchesAnswer is the fixed answer for queries the corpus does not
	// cover at all.
	noMatchesAnswer = "No matching policies were found for your question.\n\n" +
		"The policy database may not cover this topic. Please rephrase your " +
		"question with different terms, browse policies.northeastern.edu " +
		"directly, or contact the university's main information line at " +
		"(617) 373-2000 for guidance."
)

// ComposeFallback builds a deterministic answer from the retrieved matches
// alone. It is the answer of record whenever the model path fails and it
// never fails itself.
func ComposeFallback(q domain.Query, matches []domain.CandidateMatch) string {
	if len(matches) == 0 {
		return noMatchesAnswer
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Here is what the university policies say about your question:\n\n")
	for i, m := range matches {
		fmt.Fprintf(&b, "%d. %s (relevance: %.1f%%)\n", i+1, m.Title, m.Score*100)
		excerpt := selectExcerpt(m.Text, q.Text)
		if excerpt != "" {
			b.WriteString(excerpt)
		}
		b.WriteString("\n")
	}
	b.WriteString("For official policy interpretations, consult the relevant " +
		"university department or browse policies.northeastern.edu.")
	return b.String()
}

// ComposeTimeout builds the answer delivered when the generation deadline
// fires first: the already retrieved matches with short raw excerpts and a
// retry suggestion. It deliberately skips the excerpt selection above so a
// timed-out query costs no further work.
func ComposeTimeout(q domain.Query, matches []domain.CandidateMatch) string {
	if len(matches) == 0 {
		return noMatchesAnswer
	}

	var b strings.Builder
	b.WriteString("The answer service took too long to respond.\n\n")
	b.WriteString("Here are the relevant policy excerpts that were found:\n\n")
	for _, m := range domain.TopMatches(matches, promptMatches) {
		fmt.Fprintf(&b, "%s (relevance: %.1f%%)\n   %s\n\n",
			m.Title, m.Score*100, truncate(m.Text, timeoutExcerptLimit))
	}
	b.WriteString("Please try your question again in a few minutes.")
	return b.String()
}

// selectExcerpt picks up to three sentences from a policy text that either
// share a term with the query or carry a procedural keyword. When nothing
// qualifies it falls back to the first substantial sentences.
func selectExcerpt(text, query string) string {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return ""
	}

	queryTerms := strings.Fields(strings.ToLower(query))

	var b strings.Builder
	selected := 0
	for _, sentence := range sentences {
		if selected >= fallbackExcerptSentences {
			break
		}
		trimmed := strings.TrimSpace(sentence)
		if len(trimmed) <= 20 {
			continue
		}
		if sentenceRelevant(trimmed, queryTerms) {
			fmt.Fprintf(&b, "   - %s\n", trimmed)
			selected++
		}
	}

	if selected == 0 {
		for i := 0; i < len(sentences) && i < 2; i++ {
			trimmed := strings.TrimSpace(sentences[i])
			if len(trimmed) > 30 {
				fmt.Fprintf(&b, "   - %s\n", trimmed)
			}
		}
	}
	return b.String()
}

func sentenceRelevant(sentence string, queryTerms []string) bool {
	lower := strings.ToLower(sentence)
	for _, term := range queryTerms {
		if len(term) > 2 && strings.Contains(lower, term) {
			return true
		}
	}
	if len(sentence) > 25 {
		for _, kw := range proceduralKeywords {
			if strings.Contains(lower, kw) {
				return true
			}
		}
	}
	return false
}

// splitSentences breaks text after terminal punctuation followed by
// whitespace. Good enough for policy prose; no abbreviation handling.
func splitSentences(text string) []string {
	var out []string
	start := 0
	for i := 0; i < len(text)-1; i++ {
		switch text[i] {
		case '.', '!', '?':
			if text[i+1] == ' ' || text[i+1] == '\n' || text[i+1] == '\t' {
				out = append(out, text[start:i+1])
				start = i + 1
			}
		}
	}
	if rest := strings.TrimSpace(text[start:]); rest != "" {
		out = append(out, rest)
	}
	return out
}
