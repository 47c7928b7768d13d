package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedIntent signals a plan intent outside the known set.
	ErrUnsupportedIntent = errors.New("unsupported intent")
	// ErrMissingEmbedding signals a hybrid plan without a query vector.
	ErrMissingEmbedding = errors.New("missing embedding")
	// ErrInvalidPlan signals a plan body that could not be decoded at all.
	ErrInvalidPlan = errors.New("invalid plan")
	// ErrBackendUnavailable signals a failed or non-2xx search backend call.
	ErrBackendUnavailable = errors.New("search backend unavailable")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
)

// UnsupportedIntentError carries the offending intent string.
type UnsupportedIntentError struct {
	Intent string
}

func (e *UnsupportedIntentError) Error() string {
	return fmt.Sprintf("%s: %q", ErrUnsupportedIntent.Error(), e.Intent)
}

func (e *UnsupportedIntentError) Unwrap() error { return ErrUnsupportedIntent }

// NewUnsupportedIntent creates an unsupported intent error.
func NewUnsupportedIntent(intent string) error {
	return &UnsupportedIntentError{Intent: intent}
}

// MissingEmbeddingError reports the intent and query text that required a vector.
type MissingEmbeddingError struct {
	Intent string
	Query  string
}

func (e *MissingEmbeddingError) Error() string {
	return fmt.Sprintf("%s: intent %q with query %q requires a query vector",
		ErrMissingEmbedding.Error(), e.Intent, e.Query)
}

func (e *MissingEmbeddingError) Unwrap() error { return ErrMissingEmbedding }

// NewMissingEmbedding creates a missing embedding error.
func NewMissingEmbedding(intent, query string) error {
	return &MissingEmbeddingError{Intent: intent, Query: query}
}
