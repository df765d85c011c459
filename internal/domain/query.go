package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Query is an immutable user question flowing through the pipeline.
// It is created once at submission and referenced by every downstream
// message; nothing mutates it after construction.
type Query struct {
	// ID is an opaque token identifying the query across components.
	ID string `json:"id" validate:"required"`

	// Text is the question as the caller typed it.
	Text string `json:"text" validate:"required"`

	// SubmittedAt records when the caller gateway accepted the query.
	SubmittedAt time.Time `json:"submitted_at"`
}

// NewQuery creates a validated Query with a fresh UUID.
// Leading and trailing whitespace is stripped; an empty question is rejected
// so coordinators never start work they cannot answer.
func NewQuery(text string, now time.Time) (Query, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Query{}, ErrEmptyQuery
	}

	q := Query{
		ID:          uuid.NewString(),
		Text:        text,
		SubmittedAt: now,
	}
	if err := validate.Struct(q); err != nil {
		return Query{}, fmt.Errorf("%w: %w", ErrInvalidQuery, err)
	}
	return q, nil
}
