package domain

// CandidateMatch is a scored passage returned by the retrieval stage.
// Score is the vector store's raw cosine similarity in [0,1]. The store
// returns matches in descending score order; that ordering is significant
// and must be preserved unchanged through the generation stage.
type CandidateMatch struct {
	Title string  `json:"title"`
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// TopMatches returns the first n matches without re-sorting.
// Returns the input slice itself when it is already short enough.
func TopMatches(matches []CandidateMatch, n int) []CandidateMatch {
	if len(matches) <= n {
		return matches
	}
	return matches[:n]
}

// AverageScore is the mean relevance of a match set, used for the
// confidence framing in fallback answers. Returns 0 for an empty set.
func AverageScore(matches []CandidateMatch) float64 {
	if len(matches) == 0 {
		return 0
	}
	var sum float64
	for _, m := range matches {
		sum += m.Score
	}
	return sum / float64(len(matches))
}
