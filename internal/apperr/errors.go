package apperr

import "errors"

var (
	ErrNotFound = errors.New("not found")

	// ErrTemplateNotFound is reported when a document names a template the
	// template store does not have. It matches ErrNotFound with errors.Is.
	ErrTemplateNotFound error = &notFound{what: "template"}
)

type notFound struct {
	what string
}

func (e *notFound) Error() string { return e.what + " not found" }

func (e *notFound) Is(target error) bool { return target == ErrNotFound }
