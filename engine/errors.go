package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrTemplateNotFound is matched by every NotFoundError.
	ErrTemplateNotFound = errors.New("template not found")

	// ErrContentMarker reports a misplaced {{{content}}} marker: a layout
	// needs exactly one, a page template may not have any.
	ErrContentMarker = errors.New("invalid content marker")
)

// NotFoundError is returned when no backing source exists for a template name.
type NotFoundError struct {
	Name  string
	Cause error
}

func (e *NotFoundError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("template not found: %s (%v)", e.Name, e.Cause)
	}
	return fmt.Sprintf("template not found: %s", e.Name)
}

func (e *NotFoundError) Unwrap() error { return e.Cause }

func (e *NotFoundError) Is(target error) bool { return target == ErrTemplateNotFound }
