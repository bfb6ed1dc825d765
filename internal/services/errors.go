package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrConflict          = errors.New("conflict")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInternal          = errors.New("internal error")
)

// wrapDB maps a storage error onto the service error set, keeping the cause.
// Errors that already carry a service error pass through unchanged.
func wrapDB(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case isServiceErr(err):
		return err
	default:
		return fmt.Errorf("%s: %w: %w", op, ErrInternal, err)
	}
}

func isServiceErr(err error) bool {
	for _, target := range []error{ErrNotFound, ErrForbidden, ErrInvalidArgument, ErrConflict, ErrInvalidTransition, ErrInternal} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func invalid(op, msg string) error {
	return fmt.Errorf("%s: %w: %s", op, ErrInvalidArgument, msg)
}
