// Package domain defines the value types shared by every component of the
// policy question-answering pipeline: queries, retrieval matches, answers,
// and the worker handles tracked by the service registry.
//
// Types in this package are plain values with no behavior beyond validation.
// A Query is created once at submission and referenced, never copied, by all
// downstream messages. Exactly one Answer is ever produced per Query; the
// coordinator package enforces that invariant.
package domain
