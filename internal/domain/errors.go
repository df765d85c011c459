package domain

import "errors"

// ErrEmptyQuery indicates that a submitted question contained no text.
var ErrEmptyQuery = errors.New("query text is empty")

// ErrInvalidQuery indicates that query validation failed.
var ErrInvalidQuery = errors.New("invalid query")

// ErrInvalidHandle indicates that a worker handle is missing required fields.
var ErrInvalidHandle = errors.New("invalid worker handle")

// ErrUnknownRole indicates a role outside the retrieval/generation set.
var ErrUnknownRole = errors.New("unknown worker role")
