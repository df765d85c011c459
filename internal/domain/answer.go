package domain

import "time"

// Answer is the single terminal result delivered for a Query.
// ModelUsed distinguishes model-generated text from the deterministic
// fallback so the presentation layer can label confidence accordingly.
type Answer struct {
	// QueryID ties the answer back to its query.
	QueryID string `json:"query_id"`

	// Text is the answer body. It is never empty: every failure path
	// substitutes deterministic fallback text instead of erroring.
	Text string `json:"text"`

	// ProducedBy identifies the worker (or local stage) that produced the
	// final text, e.g. "worker-7f3a@10.0.0.12:8091" or "local".
	ProducedBy string `json:"produced_by"`

	// ModelUsed reports whether the generation model produced the text.
	// False means the template fallback or the timeout path supplied it.
	ModelUsed bool `json:"model_used"`

	// Elapsed is the wall time from submission to completion.
	Elapsed time.Duration `json:"elapsed"`
}
