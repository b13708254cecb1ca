package ops

import (
	"fmt"

	"github.com/pkg/errors"
)

func track(err error) error {
	return errors.WithStack(err)
}

var (
	ErrNotInstantClientDirectory = errors.New("not an instant client directory")
	ErrInstantClientNotFound     = errors.New("instant client not found")
	ErrMutationFailed            = errors.New("mutation failed")
)

type DirErrorKind int

const (
	NotInstantClientDirectory DirErrorKind = iota
	InstantClientNotFound
)

// DirError is returned when the instant client directory can't be resolved.
type DirError struct {
	Kind DirErrorKind
	Dir  string
}

func (e *DirError) Error() string {
	switch e.Kind {
	case NotInstantClientDirectory:
		return fmt.Sprintf("%s is not an instant client directory.", e.Dir)
	default:
		return `Instant client is not found. Use --ic_dir option to set the Instant client path.

Example:
  fix-oralib --ic_dir=/opt/instantclient_11_2 ...`
	}
}

func (e *DirError) Unwrap() error {
	if e.Kind == NotInstantClientDirectory {
		return ErrNotInstantClientDirectory
	}

	return ErrInstantClientNotFound
}

// MutationError is returned when a change to a file could not be made. The
// remaining changes planned for that file are abandoned.
type MutationError struct {
	File string
	Op   string
	Err  error
}

func (e *MutationError) Error() string {
	return fmt.Sprintf("%s: failed to %s: %s", e.File, e.Op, e.Err)
}

func (e *MutationError) Unwrap() error {
	return e.Err
}

func (e *MutationError) Is(target error) bool {
	return target == ErrMutationFailed
}
