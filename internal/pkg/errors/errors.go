package errors

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrInvalid              = errors.New("invalid")
	ErrConflict             = errors.New("conflict")
	ErrTooMany              = errors.New("too many requests")
	ErrInternal             = errors.New("internal")
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
	ErrLLMUnavailable       = errors.New("llm unavailable")
	ErrDocumentFetch        = errors.New("document fetch failed")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
