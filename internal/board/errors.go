package board

import (
	"github.com/cockroachdb/errors"
)

// Error classes. Concrete errors are marked with one of these so callers can
// branch with errors.Is while the underlying cause stays in the chain.
var (
	// ErrValidation marks placements or transitions that are rejected locally.
	ErrValidation = errors.New("validation error")
	// ErrConflict marks operations on an item that is busy.
	ErrConflict = errors.New("conflict error")
	// ErrPersistence marks failed writes to the job persistence collaborator.
	ErrPersistence = errors.New("persistence error")
	// ErrNotFound marks references to items the Store does not hold.
	ErrNotFound = errors.New("not found error")
)

// Resolver reasons. Pre-built so resolving a pointer never allocates.
var (
	ErrOutsideGrid        = validation("outside grid")
	ErrUnassignableColumn = validation("unassignable column")
	ErrOutOfBounds        = validation("out-of-bounds")
)

func validation(msg string) error {
	return errors.Mark(errors.New(msg), ErrValidation)
}

func validationf(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrValidation)
}

func conflictf(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrConflict)
}

func notFound(id string) error {
	return errors.Mark(errors.Newf("item %q not found", id), ErrNotFound)
}

func persistence(cause error, id string) error {
	err := errors.Wrapf(cause, "persist item %q", id)
	return errors.WithHint(errors.Mark(err, ErrPersistence), "the change was reverted; try again")
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

// IsPersistence reports whether err is a PersistenceError.
func IsPersistence(err error) bool { return errors.Is(err, ErrPersistence) }

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
