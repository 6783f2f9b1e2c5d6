package quadtree

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
)

const (
	// ErrTypeInvalidConfiguration is the type of errors returned when a tree
	// is created with unusable extents or depth.
	ErrTypeInvalidConfiguration = "invalid_configuration"

	// ErrTypeInvalidBox is the type of errors returned for boxes whose
	// minimum corner is greater than their maximum corner.
	ErrTypeInvalidBox = "invalid_box"

	// ErrTypeAlreadyLinked is the type of errors returned when inserting an
	// item that is still part of a tree.
	ErrTypeAlreadyLinked = "already_linked"

	// ErrTypeStackOverflow is the type of errors returned when a traversal
	// needs more than StackCapacity pending nodes.
	ErrTypeStackOverflow = "stack_overflow"
)

func invalidBoxError(b Box) error {
	return errors.New("invalid box").
		WithType(ErrTypeInvalidBox).
		WithTag("box", b.String())
}
