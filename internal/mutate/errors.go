package mutate

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidParent = errors.New("invalid parent")
	ErrUnknownChild  = errors.New("reorder does not match current children")
	ErrDuplicateNode = errors.New("node already exists")
	ErrRootNode      = errors.New("cannot remove or move the root node")
	ErrEmptyTitle    = errors.New("title is empty")
	ErrCycle         = errors.New("move would create a cycle")
	ErrInvalidStatus = errors.New("invalid status")
	ErrInvalidKind   = errors.New("invalid node kind")
)

type NotFoundError struct {
	Kind string
	ID   string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// ParentError carries the offending parent id and unwraps to ErrInvalidParent.
type ParentError struct {
	ParentID string
}

func (e ParentError) Error() string {
	return fmt.Sprintf("invalid parent: %s", e.ParentID)
}

func (e ParentError) Unwrap() error { return ErrInvalidParent }

// ChildSetError reports the ids that differ between a requested order and the current children.
type ChildSetError struct {
	ParentID string
	Missing  []string
	Extra    []string
}

func (e ChildSetError) Error() string {
	return fmt.Sprintf("reorder children of %s: missing %v, unexpected %v", e.ParentID, e.Missing, e.Extra)
}

func (e ChildSetError) Unwrap() error { return ErrUnknownChild }
